package gojob

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func TestJobMessageMapping(t *testing.T) {
	original := core.NewAsyncMessage("orders.create", core.Params{"sku": "A-1"}, " idem-1 ")
	original.DedupPolicy = "drop"

	mapped := toJobMessage(original)
	if mapped.JobID != core.AsyncJobID || mapped.ScriptPath != "orders.create" || mapped.IdempotencyKey != "idem-1" {
		t.Fatalf("unexpected go-job message %#v", mapped)
	}
	if mapped.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("expected dedup policy carried, got %q", mapped.DedupPolicy)
	}

	back := fromJobMessage(mapped)
	service, params, err := core.ParseAsyncMessage(back)
	if err != nil {
		t.Fatalf("parse mapped message: %v", err)
	}
	if service != "orders.create" || params["sku"] != "A-1" {
		t.Fatalf("expected service call to survive mapping, got %s %#v", service, params)
	}

	mapped.Parameters["service"] = "mutated"
	if original.Parameters["service"] != "orders.create" {
		t.Fatalf("expected mapping to copy parameters")
	}
	if toJobMessage(nil) != nil || fromJobMessage(nil) != nil {
		t.Fatalf("expected nil messages to map to nil")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	msg := core.NewAsyncMessage("reports.build", core.Params{"batch_size": 50}, "idem-reports")
	if err := NewEnqueuerAdapter(enqueuer).Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.IdempotencyKey != "idem-reports" {
		t.Fatalf("expected mapped go-job message, got %#v", enqueuer.last)
	}
	if err := NewEnqueuerAdapter(enqueuer).Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected missing message error")
	}
	if err := NewEnqueuerAdapter(nil).Enqueue(ctx, msg); err == nil {
		t.Fatalf("expected missing enqueuer error")
	}

	raw := &stubQueueDelivery{msg: enqueuer.last}
	got, err := NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}).Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.Message().ScriptPath != "reports.build" {
		t.Fatalf("expected mapped dispatcher message, got %#v", got.Message())
	}
	if err := got.Ack(ctx); err != nil || !raw.acked {
		t.Fatalf("expected ack forwarded, err=%v", err)
	}

	empty, err := NewDequeuerAdapter(&stubQueueDequeuer{}).Dequeue(ctx)
	if err != nil || empty != nil {
		t.Fatalf("expected empty dequeue to yield no delivery, got %#v %v", empty, err)
	}
}

func TestDeliveryNackMapping(t *testing.T) {
	ctx := context.Background()
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: core.AsyncJobID, ScriptPath: "reports.build"}}
	d := delivery{raw: raw}

	if err := d.Nack(ctx, core.JobNackOptions{Delay: 2 * time.Second, Requeue: true, Reason: " engine_failed "}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if !raw.nackOpts.Requeue || raw.nackOpts.Delay != 2*time.Second || raw.nackOpts.Reason != "engine_failed" {
		t.Fatalf("unexpected nack options %#v", raw.nackOpts)
	}

	if err := d.Nack(ctx, core.JobNackOptions{Delay: -time.Second, Requeue: true, DeadLetter: true}); err != nil {
		t.Fatalf("nack dead letter: %v", err)
	}
	if raw.nackOpts.Requeue || !raw.nackOpts.DeadLetter || raw.nackOpts.Delay != 0 {
		t.Fatalf("expected dead letter to win over requeue, got %#v", raw.nackOpts)
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}
