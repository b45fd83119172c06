package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RunServiceMessage]      = (*RunServiceCommand)(nil)
	_ gocmd.Commander[RunAsyncServiceMessage] = (*RunAsyncServiceCommand)(nil)
	_ gocmd.Commander[RegisterServiceMessage] = (*RegisterServiceCommand)(nil)
	_ gocmd.Commander[RefreshServicesMessage] = (*RefreshServicesCommand)(nil)
)
