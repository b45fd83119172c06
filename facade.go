package dispatcher

import (
	"fmt"

	dispatchcmd "github.com/goliatone/go-dispatcher/command"
	"github.com/goliatone/go-dispatcher/core"
	dispatchqry "github.com/goliatone/go-dispatcher/query"
)

type Commands struct {
	RunService      *dispatchcmd.RunServiceCommand
	RunAsyncService *dispatchcmd.RunAsyncServiceCommand
	RegisterService *dispatchcmd.RegisterServiceCommand
	RefreshServices *dispatchcmd.RefreshServicesCommand
}

type Queries struct {
	ListServices *dispatchqry.ListServicesQuery
	GetService   *dispatchqry.GetServiceQuery
	// ListCalls is nil when no call log reader is available.
	ListCalls *dispatchqry.ListCallsQuery
}

type Facade struct {
	dispatcher *core.Dispatcher
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	callLog dispatchqry.CallLogReader
}

func WithCallLogReader(reader dispatchqry.CallLogReader) FacadeOption {
	return func(options *facadeOptions) {
		options.callLog = reader
	}
}

func NewFacade(d *core.Dispatcher, opts ...FacadeOption) (*Facade, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher: dispatcher is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.callLog
	if reader == nil {
		reader = resolveCallLogReader(d)
	}

	facade := &Facade{dispatcher: d}
	facade.commands = Commands{
		RunService:      dispatchcmd.NewRunServiceCommand(d),
		RunAsyncService: dispatchcmd.NewRunAsyncServiceCommand(d),
		RegisterService: dispatchcmd.NewRegisterServiceCommand(d),
		RefreshServices: dispatchcmd.NewRefreshServicesCommand(d),
	}
	facade.queries = Queries{
		ListServices: dispatchqry.NewListServicesQuery(d),
		GetService:   dispatchqry.NewGetServiceQuery(d),
	}
	if reader != nil {
		facade.queries.ListCalls = dispatchqry.NewListCallsQuery(reader)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Dispatcher() *core.Dispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}

// resolveCallLogReader reuses the dispatcher's call recorder when it can also
// read the log back.
func resolveCallLogReader(d *core.Dispatcher) dispatchqry.CallLogReader {
	recorder := d.CallRecorder()
	if recorder == nil {
		return nil
	}
	reader, ok := recorder.(dispatchqry.CallLogReader)
	if !ok {
		return nil
	}
	return reader
}
