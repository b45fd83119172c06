package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const AsyncJobID = "dispatcher.service.run"

const (
	asyncParamService = "service"
	asyncParamParams  = "params"
)

// RunAsync queues a call on the configured job enqueuer. The descriptor must
// resolve now; the engine runs later through ExecuteJob.
func (d *Dispatcher) RunAsync(ctx context.Context, serviceName string, params Params) (string, error) {
	if d == nil {
		return "", internalError("core: dispatcher is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	serviceName = strings.TrimSpace(serviceName)
	if d.jobEnqueuer == nil {
		return "", dispatchError("core: job enqueuer not configured", goerrors.CategoryOperation, ErrorInternal,
			map[string]any{ResultKeyService: serviceName})
	}
	if !d.config.IsProduction() {
		_ = d.Refresh(ctx)
	}
	if _, ok := d.services.Lookup(serviceName); !ok {
		return "", dispatchError(
			fmt.Sprintf("Unable to locate service [%s]", serviceName),
			goerrors.CategoryNotFound,
			ErrorServiceNotFound,
			map[string]any{ResultKeyService: serviceName},
		)
	}

	msg := NewAsyncMessage(serviceName, params, uuid.NewString())
	if err := d.jobEnqueuer.Enqueue(ctx, msg); err != nil {
		d.logWithLevel(ctx, "error", "dispatcher: enqueue failed", map[string]any{
			"service": serviceName,
			"error":   err.Error(),
		})
		return "", dispatchWrapError(err, goerrors.CategoryExternal, "core: enqueue failed", ErrorInternal,
			map[string]any{ResultKeyService: serviceName})
	}
	d.logWithLevel(ctx, "debug", "dispatcher: service call queued", map[string]any{
		"service":         serviceName,
		"idempotency_key": msg.IdempotencyKey,
	})
	return msg.IdempotencyKey, nil
}

// ExecuteJob runs a queued call synchronously. The returned error is non nil
// only when the result carries an error status or error code.
func (d *Dispatcher) ExecuteJob(ctx context.Context, msg *JobExecutionMessage) (Result, error) {
	serviceName, params, err := ParseAsyncMessage(msg)
	if err != nil {
		return ProblemFromError(err), err
	}
	result := d.RunSync(ctx, serviceName, params)
	return result, ErrorFromResult(result)
}

func NewAsyncMessage(serviceName string, params Params, idempotencyKey string) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:      AsyncJobID,
		ScriptPath: strings.TrimSpace(serviceName),
		Parameters: map[string]any{
			asyncParamService: strings.TrimSpace(serviceName),
			asyncParamParams:  map[string]any(params.Clone()),
		},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}
}

func ParseAsyncMessage(msg *JobExecutionMessage) (string, Params, error) {
	if msg == nil {
		return "", nil, badInputError("core: job message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) != AsyncJobID {
		return "", nil, badInputError("core: unknown job id", map[string]any{"job_id": msg.JobID})
	}
	serviceName := strings.TrimSpace(stringValue(msg.Parameters[asyncParamService]))
	if serviceName == "" {
		serviceName = strings.TrimSpace(msg.ScriptPath)
	}
	if serviceName == "" {
		return "", nil, badInputError("core: job service name is required", nil)
	}
	params := Params{}
	switch typed := msg.Parameters[asyncParamParams].(type) {
	case map[string]any:
		params = Params(typed).Clone()
	case Params:
		params = typed.Clone()
	}
	return serviceName, params, nil
}
