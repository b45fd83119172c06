package gocommand

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	dispatchcmd "github.com/goliatone/go-dispatcher/command"
	"github.com/goliatone/go-dispatcher/core"
	dispatchqry "github.com/goliatone/go-dispatcher/query"
)

func TestRegisterDispatcher_RoutesCommandsAndQueries(t *testing.T) {
	d, err := core.NewDispatcher(core.Config{Profile: core.ProfileTest},
		core.WithHandler("", "double", func(_ context.Context, params core.Params) (core.Result, error) {
			value, _ := params["value"].(int)
			return core.SuccessWith(map[string]any{"value": value * 2}), nil
		}),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterDispatcher(adapter, d, nil)
	if err != nil {
		t.Fatalf("register dispatcher handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 6 {
		t.Fatalf("expected six subscriptions without a call log, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), dispatchcmd.RegisterServiceMessage{
		Descriptor: core.NewDescriptor("math.double", core.EngineStandard, core.WithTarget("", "double")),
	}); err != nil {
		t.Fatalf("dispatch register: %v", err)
	}

	collector := command.NewResult[core.Result]()
	ctx := command.ContextWithResult(context.Background(), collector)
	if err := Dispatch(ctx, dispatchcmd.RunServiceMessage{Service: "math.double", Params: core.Params{"value": 21}}); err != nil {
		t.Fatalf("dispatch run: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result["value"] != 42 {
		t.Fatalf("unexpected run result %#v", result)
	}

	if err := Dispatch(context.Background(), dispatchcmd.RunServiceMessage{Service: "missing"}); err == nil {
		t.Fatalf("expected not found service to fail the command")
	}

	desc, err := Query[dispatchqry.GetServiceMessage, core.ServiceDescriptor](
		context.Background(),
		dispatchqry.GetServiceMessage{Name: "math.double"},
	)
	if err != nil {
		t.Fatalf("query get service: %v", err)
	}
	if desc.Invoke != "double" {
		t.Fatalf("unexpected descriptor %#v", desc)
	}

	listed, err := Query[dispatchqry.ListServicesMessage, []core.ServiceDescriptor](
		context.Background(),
		dispatchqry.ListServicesMessage{Engine: core.EngineStandard},
	)
	if err != nil {
		t.Fatalf("query list services: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one standard service, got %d", len(listed))
	}
}

func TestRegisterDispatcher_RequiresDispatcher(t *testing.T) {
	if _, err := RegisterDispatcher(NewRegistryAdapter(nil), nil, nil); err == nil {
		t.Fatalf("expected missing dispatcher error")
	}
}
