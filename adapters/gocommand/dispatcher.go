package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	dispatchcmd "github.com/goliatone/go-dispatcher/command"
	"github.com/goliatone/go-dispatcher/core"
	dispatchqry "github.com/goliatone/go-dispatcher/query"
)

// DispatcherSurface is the part of *core.Dispatcher exposed over go-command.
type DispatcherSurface interface {
	dispatchcmd.ServiceRunner
	dispatchcmd.AsyncServiceRunner
	dispatchcmd.ServiceRegistrar
	dispatchqry.ServiceCatalog
}

// Subscriptions releases every handler registered together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		unsubscribe(sub)
	}
}

// RegisterDispatcher registers and subscribes the run, run-async, register and
// refresh commands plus the list/get service queries. The call log query is
// added when calls is non-nil. On failure nothing stays subscribed.
func RegisterDispatcher(
	adapter *RegistryAdapter,
	surface DispatcherSurface,
	calls dispatchqry.CallLogReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if surface == nil {
		return nil, fmt.Errorf("gocommand: dispatcher is required")
	}
	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(SubscribeCommand[dispatchcmd.RunServiceMessage](
		adapter, dispatchcmd.NewRunServiceCommand(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if err := register(SubscribeCommand[dispatchcmd.RunAsyncServiceMessage](
		adapter, dispatchcmd.NewRunAsyncServiceCommand(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if err := register(SubscribeCommand[dispatchcmd.RegisterServiceMessage](
		adapter, dispatchcmd.NewRegisterServiceCommand(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if err := register(SubscribeCommand[dispatchcmd.RefreshServicesMessage](
		adapter, dispatchcmd.NewRefreshServicesCommand(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if err := register(SubscribeQuery[dispatchqry.ListServicesMessage, []core.ServiceDescriptor](
		adapter, dispatchqry.NewListServicesQuery(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if err := register(SubscribeQuery[dispatchqry.GetServiceMessage, core.ServiceDescriptor](
		adapter, dispatchqry.NewGetServiceQuery(surface), runnerOpts...,
	)); err != nil {
		return nil, err
	}
	if calls != nil {
		if err := register(SubscribeQuery[dispatchqry.ListCallsMessage, []core.CallRecord](
			adapter, dispatchqry.NewListCallsQuery(calls), runnerOpts...,
		)); err != nil {
			return nil, err
		}
	}
	return subs, nil
}
