package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-dispatcher/core"
)

var (
	_ gocmd.Querier[ListServicesMessage, []core.ServiceDescriptor] = (*ListServicesQuery)(nil)
	_ gocmd.Querier[GetServiceMessage, core.ServiceDescriptor]     = (*GetServiceQuery)(nil)
	_ gocmd.Querier[ListCallsMessage, []core.CallRecord]           = (*ListCallsQuery)(nil)
)
