package gojob

import (
	"context"

	"github.com/goliatone/go-dispatcher/core"
	"github.com/goliatone/go-job/queue/worker"
)

// WorkerHookAdapter lets a go-job worker report to a dispatcher job hook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnStart)
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnSuccess)
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnFailure)
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnRetry)
}

func (a *WorkerHookAdapter) forward(
	ctx context.Context,
	event worker.Event,
	emit func(core.JobWorkerHook, context.Context, core.JobWorkerEvent),
) {
	if a == nil || a.hook == nil {
		return
	}
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	emit(a.hook, ctx, core.JobWorkerEvent{
		Message:   fromJobMessage(msg),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	})
}

type nopWorkerHook struct{}

func (nopWorkerHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (nopWorkerHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (nopWorkerHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (nopWorkerHook) OnRetry(context.Context, core.JobWorkerEvent)   {}

var _ worker.Hook = (*WorkerHookAdapter)(nil)
