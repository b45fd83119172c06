package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func TestConsumer_RunsQueuedCallAndAcks(t *testing.T) {
	ctx := context.Background()
	backend := &memoryJobQueue{}
	calls := 0
	d := newQueueDispatcher(t, backend, func(_ context.Context, params core.Params) (core.Result, error) {
		calls++
		if params["report"] != "daily" {
			t.Fatalf("unexpected params %#v", params)
		}
		return core.Success(), nil
	})

	key, err := d.RunAsync(ctx, "reports.build", core.Params{"report": "daily"})
	if err != nil {
		t.Fatalf("run async: %v", err)
	}
	if key == "" || len(backend.pending) != 1 {
		t.Fatalf("expected one queued job with a key, got %q / %d", key, len(backend.pending))
	}
	if backend.pending[0].IdempotencyKey != key {
		t.Fatalf("expected idempotency key %q on go-job message", key)
	}

	hook := &capturingHook{}
	consumer, err := NewConsumer(NewDequeuerAdapter(backend), d, WithWorkerHook(hook))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := consumer.ProcessNext(ctx); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if len(backend.acked) != 1 || len(backend.nacked) != 0 {
		t.Fatalf("expected ack only, got acked=%d nacked=%d", len(backend.acked), len(backend.nacked))
	}
	if len(hook.events) != 2 || hook.events[0] != "start" || hook.events[1] != "success" {
		t.Fatalf("unexpected hook events %#v", hook.events)
	}
}

func TestConsumer_RequeuesCallExceptionsUntilBudgetSpent(t *testing.T) {
	ctx := context.Background()
	backend := &memoryJobQueue{}
	d := newQueueDispatcher(t, backend, func(context.Context, core.Params) (core.Result, error) {
		return nil, errors.New("downstream unavailable")
	})
	if _, err := d.RunAsync(ctx, "reports.build", nil); err != nil {
		t.Fatalf("run async: %v", err)
	}

	hook := &capturingHook{}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	consumer, err := NewConsumer(NewDequeuerAdapter(backend), d, WithRetryPolicy(policy), WithWorkerHook(hook))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if err := consumer.ProcessNext(ctx); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
	}

	if len(backend.nacked) != 3 {
		t.Fatalf("expected three nacks, got %d", len(backend.nacked))
	}
	first, second, last := backend.nacked[0], backend.nacked[1], backend.nacked[2]
	if !first.Requeue || first.Delay != time.Second {
		t.Fatalf("unexpected first nack %#v", first)
	}
	if !second.Requeue || second.Delay != 2*time.Second {
		t.Fatalf("unexpected second nack %#v", second)
	}
	if last.Requeue || !last.DeadLetter {
		t.Fatalf("expected dead letter after budget, got %#v", last)
	}
	if first.Reason != core.ReasonEngineFailed {
		t.Fatalf("expected engine failure reason, got %q", first.Reason)
	}
	if len(backend.pending) != 0 {
		t.Fatalf("expected queue drained, got %d pending", len(backend.pending))
	}
	if hook.events[len(hook.events)-1] != "failure" || hook.last.Attempt != 3 {
		t.Fatalf("expected terminal failure on attempt 3, got %#v / %d", hook.events, hook.last.Attempt)
	}
}

func TestConsumer_AcksPassThroughResultWithoutRetry(t *testing.T) {
	ctx := context.Background()
	backend := &memoryJobQueue{}
	calls := 0
	d := newQueueDispatcher(t, backend, func(context.Context, core.Params) (core.Result, error) {
		calls++
		return core.Result{"count": calls}, nil
	})
	if _, err := d.RunAsync(ctx, "reports.build", nil); err != nil {
		t.Fatalf("run async: %v", err)
	}

	consumer, err := NewConsumer(NewDequeuerAdapter(backend), d)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := consumer.ProcessNext(ctx); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single execution, got %d", calls)
	}
	if len(backend.acked) != 1 || len(backend.nacked) != 0 || len(backend.pending) != 0 {
		t.Fatalf("expected ack without requeue, got acked=%d nacked=%d pending=%d",
			len(backend.acked), len(backend.nacked), len(backend.pending))
	}
}

func TestConsumer_DeadLettersUnknownServiceImmediately(t *testing.T) {
	ctx := context.Background()
	backend := &memoryJobQueue{}
	d := newQueueDispatcher(t, backend, func(context.Context, core.Params) (core.Result, error) {
		return core.Success(), nil
	})
	msg := core.NewAsyncMessage("retired.service", nil, "idem-retired")
	if err := NewEnqueuerAdapter(backend).Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	consumer, err := NewConsumer(NewDequeuerAdapter(backend), d)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := consumer.ProcessNext(ctx); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if len(backend.nacked) != 1 {
		t.Fatalf("expected one nack, got %d", len(backend.nacked))
	}
	if backend.nacked[0].Requeue || !backend.nacked[0].DeadLetter {
		t.Fatalf("expected immediate dead letter, got %#v", backend.nacked[0])
	}
	if backend.nacked[0].Reason != core.ErrorServiceNotFound {
		t.Fatalf("expected not found reason, got %q", backend.nacked[0].Reason)
	}
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dequeuer := &failingDequeuer{cancel: cancel}
	consumer, err := NewConsumer(dequeuer, stubJobRunner{}, WithIdleDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := consumer.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if dequeuer.calls == 0 {
		t.Fatalf("expected at least one dequeue attempt")
	}
}

func TestNewConsumer_RequiresCollaborators(t *testing.T) {
	if _, err := NewConsumer(nil, stubJobRunner{}); err == nil {
		t.Fatalf("expected missing dequeuer error")
	}
	if _, err := NewConsumer(&failingDequeuer{}, nil); err == nil {
		t.Fatalf("expected missing runner error")
	}
}

func TestJobLoggersBridgeToGlog(t *testing.T) {
	jobProvider, jobLogger := JobLoggers("dispatcher.jobs", nil, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}
	jobProvider.GetLogger("dispatcher.jobs").Info("ready", "k", "v")
}

func newQueueDispatcher(t *testing.T, backend *memoryJobQueue, handler core.HandlerFunc) *core.Dispatcher {
	t.Helper()
	d, err := core.NewDispatcher(core.Config{Profile: core.ProfileTest},
		core.WithJobEnqueuer(NewEnqueuerAdapter(backend)),
		core.WithHandler("reports", "build", handler),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := d.RegisterService(core.NewDescriptor("reports.build", core.EngineStandard, core.WithTarget("reports", "build"))); err != nil {
		t.Fatalf("register service: %v", err)
	}
	return d
}

// memoryJobQueue is a go-job queue backend that redelivers requeued nacks.
type memoryJobQueue struct {
	pending []*job.ExecutionMessage
	acked   []*job.ExecutionMessage
	nacked  []queue.NackOptions
}

func (q *memoryJobQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.pending = append(q.pending, msg)
	return nil
}

func (q *memoryJobQueue) Dequeue(context.Context) (queue.Delivery, error) {
	if len(q.pending) == 0 {
		return nil, errors.New("queue empty")
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &memoryDelivery{queue: q, msg: msg}, nil
}

type memoryDelivery struct {
	queue *memoryJobQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.acked = append(d.queue.acked, d.msg)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.queue.nacked = append(d.queue.nacked, opts)
	if opts.Requeue {
		d.queue.pending = append(d.queue.pending, d.msg)
	}
	return nil
}

type failingDequeuer struct {
	calls  int
	cancel context.CancelFunc
}

func (d *failingDequeuer) Dequeue(context.Context) (core.JobDelivery, error) {
	d.calls++
	if d.cancel != nil {
		d.cancel()
	}
	return nil, errors.New("broker offline")
}

type stubJobRunner struct{}

func (stubJobRunner) ExecuteJob(context.Context, *core.JobExecutionMessage) (core.Result, error) {
	return core.Success(), nil
}
