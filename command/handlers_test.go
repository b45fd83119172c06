package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-dispatcher/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubRunner struct {
	runFn      func(ctx context.Context, serviceName string, params core.Params) core.Result
	runAsyncFn func(ctx context.Context, serviceName string, params core.Params) (string, error)
}

func (s stubRunner) RunSync(ctx context.Context, serviceName string, params core.Params) core.Result {
	return s.runFn(ctx, serviceName, params)
}

func (s stubRunner) RunAsync(ctx context.Context, serviceName string, params core.Params) (string, error) {
	return s.runAsyncFn(ctx, serviceName, params)
}

type stubRegistrar struct {
	registered []core.ServiceDescriptor
	refreshes  int
	err        error
}

func (s *stubRegistrar) RegisterService(desc core.ServiceDescriptor) error {
	s.registered = append(s.registered, desc)
	return s.err
}

func (s *stubRegistrar) Refresh(context.Context) error {
	s.refreshes++
	return s.err
}

func TestRunServiceCommand_StoresResult(t *testing.T) {
	runner := stubRunner{
		runFn: func(_ context.Context, serviceName string, params core.Params) core.Result {
			if serviceName != "orders.create" || params["sku"] != "A-1" {
				t.Fatalf("unexpected dispatch %q %#v", serviceName, params)
			}
			return core.SuccessWith(map[string]any{"order_id": "o-1"})
		},
	}

	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewRunServiceCommand(runner).Execute(ctx, RunServiceMessage{
		Service: "orders.create",
		Params:  core.Params{"sku": "A-1"},
	})
	if err != nil {
		t.Fatalf("execute run service: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result["order_id"] != "o-1" || !result.IsSuccess() {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestRunServiceCommand_FailureResultBecomesEnvelope(t *testing.T) {
	runner := stubRunner{
		runFn: func(context.Context, string, core.Params) core.Result {
			return core.Problem(core.ErrorServiceNotFound, "core: service not found")
		},
	}
	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewRunServiceCommand(runner).Execute(ctx, RunServiceMessage{Service: "missing"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorServiceNotFound {
		t.Fatalf("expected not found text code, got %q", rich.TextCode)
	}
	if result, ok := collector.Load(); !ok || result.IsSuccess() {
		t.Fatalf("expected the failed result to be stored, got %#v", result)
	}
}

func TestRunServiceCommand_DispatchesThroughDispatcher(t *testing.T) {
	d, err := core.NewDispatcher(core.Config{Profile: core.ProfileTest},
		core.WithHandler("", "echo", func(_ context.Context, params core.Params) (core.Result, error) {
			return core.SuccessWith(map[string]any{"echo": params["value"]}), nil
		}),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := NewRegisterServiceCommand(d).Execute(context.Background(), RegisterServiceMessage{
		Descriptor: core.NewDescriptor("echo", core.EngineStandard, core.WithTarget("", "echo")),
	}); err != nil {
		t.Fatalf("register service: %v", err)
	}

	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRunServiceCommand(d).Execute(ctx, RunServiceMessage{
		Service: "echo",
		Params:  core.Params{"value": 42},
	}); err != nil {
		t.Fatalf("run service: %v", err)
	}
	result, _ := collector.Load()
	if result["echo"] != 42 {
		t.Fatalf("unexpected echo result %#v", result)
	}
}

func TestRunServiceCommand_PassThroughResultIsNotAnError(t *testing.T) {
	d, err := core.NewDispatcher(core.Config{Profile: core.ProfileTest},
		core.WithHandler("", "count", func(context.Context, core.Params) (core.Result, error) {
			return core.Result{"count": 1}, nil
		}),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := d.RegisterService(core.NewDescriptor("count", core.EngineStandard, core.WithTarget("", "count"))); err != nil {
		t.Fatalf("register service: %v", err)
	}

	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRunServiceCommand(d).Execute(ctx, RunServiceMessage{Service: "count"}); err != nil {
		t.Fatalf("expected no error for result without status, got %v", err)
	}
	if result, _ := collector.Load(); result["count"] != 1 {
		t.Fatalf("expected engine result stored, got %#v", result)
	}
}

func TestRunAsyncServiceCommand_StoresIdempotencyKey(t *testing.T) {
	runner := stubRunner{
		runAsyncFn: func(_ context.Context, serviceName string, _ core.Params) (string, error) {
			return "key-" + serviceName, nil
		},
	}
	collector := gocmd.NewResult[string]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRunAsyncServiceCommand(runner).Execute(ctx, RunAsyncServiceMessage{Service: "reports.build"}); err != nil {
		t.Fatalf("run async: %v", err)
	}
	key, ok := collector.Load()
	if !ok || key != "key-reports.build" {
		t.Fatalf("unexpected idempotency key %q", key)
	}

	failing := stubRunner{
		runAsyncFn: func(context.Context, string, core.Params) (string, error) {
			return "", errors.New("queue offline")
		},
	}
	if err := NewRunAsyncServiceCommand(failing).Execute(context.Background(), RunAsyncServiceMessage{Service: "x"}); err == nil {
		t.Fatalf("expected enqueue failure")
	}
}

func TestRegisterAndRefreshCommands_DelegateToRegistrar(t *testing.T) {
	registrar := &stubRegistrar{}
	desc := core.NewDescriptor("ping", core.EngineStandard)
	if err := NewRegisterServiceCommand(registrar).Execute(context.Background(), RegisterServiceMessage{Descriptor: desc}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := NewRefreshServicesCommand(registrar).Execute(context.Background(), RefreshServicesMessage{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(registrar.registered) != 1 || registrar.registered[0].Name != "ping" {
		t.Fatalf("unexpected registrations %#v", registrar.registered)
	}
	if registrar.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", registrar.refreshes)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"run":       RunServiceMessage{},
		"run async": RunAsyncServiceMessage{Service: "  "},
		"register":  RegisterServiceMessage{Descriptor: core.ServiceDescriptor{Name: "no-engine"}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := msg.Validate()
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T (%v)", err, err)
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
			}
		})
	}
}

func TestCommands_NilDependencyReturnsRichError(t *testing.T) {
	var run *RunServiceCommand
	err := run.Execute(context.Background(), RunServiceMessage{Service: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if err := NewRegisterServiceCommand(nil).Execute(context.Background(), RegisterServiceMessage{}); err == nil {
		t.Fatalf("expected missing registrar error")
	}
}
