package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	glog "github.com/goliatone/go-logger/glog"
)

// JobRunner executes a queued service call. *core.Dispatcher satisfies it.
type JobRunner interface {
	ExecuteJob(ctx context.Context, msg *core.JobExecutionMessage) (core.Result, error)
}

type ConsumerOption func(*Consumer)

func WithRetryPolicy(policy RetryPolicy) ConsumerOption {
	return func(c *Consumer) {
		c.policy = policy
	}
}

func WithWorkerHook(hook core.JobWorkerHook) ConsumerOption {
	return func(c *Consumer) {
		if hook != nil {
			c.hook = hook
		}
	}
}

func WithConsumerLogger(logger glog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithConsumerLoggerProvider(provider glog.LoggerProvider) ConsumerOption {
	return func(c *Consumer) {
		c.loggerProvider = provider
	}
}

func WithIdleDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if delay > 0 {
			c.idleDelay = delay
		}
	}
}

// Consumer pulls queued service calls and runs them through the dispatcher.
// The retry policy decides whether a failed call is requeued with backoff or
// dead-lettered.
type Consumer struct {
	dequeuer       core.JobDequeuer
	runner         JobRunner
	policy         RetryPolicy
	hook           core.JobWorkerHook
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
	idleDelay      time.Duration

	mu       sync.Mutex
	attempts map[string]int
	now      func() time.Time
}

func NewConsumer(dequeuer core.JobDequeuer, runner JobRunner, opts ...ConsumerOption) (*Consumer, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("gojob: job runner is required")
	}
	consumer := &Consumer{
		dequeuer:  dequeuer,
		runner:    runner,
		policy:    DefaultRetryPolicy(),
		hook:      nopWorkerHook{},
		idleDelay: 250 * time.Millisecond,
		attempts:  map[string]int{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(consumer)
		}
	}
	consumer.loggerProvider, consumer.logger = glog.Resolve("dispatcher.jobs", consumer.loggerProvider, consumer.logger)
	return consumer, nil
}

// Run processes deliveries until ctx is done. Dequeue errors pause the loop
// for the idle delay.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.ProcessNext(ctx); err != nil {
			c.logger.Warn("gojob: dequeue failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.idleDelay):
			}
		}
	}
}

// ProcessNext handles one delivery. Only dequeue and ack/nack failures are
// returned; service failures are resolved through the delivery.
func (c *Consumer) ProcessNext(ctx context.Context) error {
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	return c.Handle(ctx, delivery)
}

func (c *Consumer) Handle(ctx context.Context, delivery core.JobDelivery) error {
	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := c.nextAttempt(key)
	startedAt := c.now()
	c.hook.OnStart(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt})

	result, runErr := c.runner.ExecuteJob(ctx, msg)
	event := core.JobWorkerEvent{
		Message:   msg,
		Attempt:   attempt,
		Err:       runErr,
		StartedAt: startedAt,
		Duration:  c.now().Sub(startedAt),
	}
	if runErr == nil {
		c.clearAttempts(key)
		c.hook.OnSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	opts := c.policy.Decide(attempt, result, runErr)
	event.Delay = opts.Delay

	fields := []any{
		"service", jobService(msg),
		"attempt", attempt,
		"reason", opts.Reason,
		"error", runErr.Error(),
	}
	if opts.Requeue {
		c.logger.Warn("gojob: service call requeued", fields...)
		c.hook.OnRetry(ctx, event)
	} else {
		c.clearAttempts(key)
		c.logger.Error("gojob: service call dead-lettered", fields...)
		c.hook.OnFailure(ctx, event)
	}
	return delivery.Nack(ctx, opts)
}

func (c *Consumer) nextAttempt(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Consumer) clearAttempts(key string) {
	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID) + ":" + strings.TrimSpace(msg.ScriptPath)
}

func jobService(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.ScriptPath
}
