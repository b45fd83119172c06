package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-dispatcher/core"
)

type ServiceRunner interface {
	RunSync(ctx context.Context, serviceName string, params core.Params) core.Result
}

type AsyncServiceRunner interface {
	RunAsync(ctx context.Context, serviceName string, params core.Params) (string, error)
}

type ServiceRegistrar interface {
	RegisterService(desc core.ServiceDescriptor) error
	Refresh(ctx context.Context) error
}

// RunServiceCommand stores the dispatch result for the caller and reports
// error-status results as go-errors envelopes.
type RunServiceCommand struct {
	runner ServiceRunner
}

func NewRunServiceCommand(runner ServiceRunner) *RunServiceCommand {
	return &RunServiceCommand{runner: runner}
}

func (c *RunServiceCommand) Execute(ctx context.Context, msg RunServiceMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: service runner is required")
	}
	result := c.runner.RunSync(ctx, msg.Service, msg.Params)
	storeResult(ctx, result)
	return core.ErrorFromResult(result)
}

type RunAsyncServiceCommand struct {
	runner AsyncServiceRunner
}

func NewRunAsyncServiceCommand(runner AsyncServiceRunner) *RunAsyncServiceCommand {
	return &RunAsyncServiceCommand{runner: runner}
}

// Execute stores the idempotency key of the enqueued call.
func (c *RunAsyncServiceCommand) Execute(ctx context.Context, msg RunAsyncServiceMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: async service runner is required")
	}
	key, err := c.runner.RunAsync(ctx, msg.Service, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, key)
	return nil
}

type RegisterServiceCommand struct {
	registrar ServiceRegistrar
}

func NewRegisterServiceCommand(registrar ServiceRegistrar) *RegisterServiceCommand {
	return &RegisterServiceCommand{registrar: registrar}
}

func (c *RegisterServiceCommand) Execute(_ context.Context, msg RegisterServiceMessage) error {
	if c == nil || c.registrar == nil {
		return commandDependencyError("command: service registrar is required")
	}
	return c.registrar.RegisterService(msg.Descriptor)
}

type RefreshServicesCommand struct {
	registrar ServiceRegistrar
}

func NewRefreshServicesCommand(registrar ServiceRegistrar) *RefreshServicesCommand {
	return &RefreshServicesCommand{registrar: registrar}
}

func (c *RefreshServicesCommand) Execute(ctx context.Context, _ RefreshServicesMessage) error {
	if c == nil || c.registrar == nil {
		return commandDependencyError("command: service registrar is required")
	}
	return c.registrar.Refresh(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
