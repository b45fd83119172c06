package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Params carries the call input handed to an engine.
type Params map[string]any

// Engine performs the invocation for every service bound to its name.
// Instances are shared across calls and must be safe for concurrent use.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, desc ServiceDescriptor, params Params) (Result, error)
}

type EngineFactory func(dispatcher *Dispatcher) (Engine, error)

// Callback hooks run around the engine invocation of every descriptor that
// references them.
type Callback interface {
	BeforeInvoke(ctx context.Context, desc ServiceDescriptor, params Params) error
	AfterInvoke(ctx context.Context, desc ServiceDescriptor, params Params, result Result, err error)
}

type CallbackFactory func() (Callback, error)

// HandlerFunc is the plain function shape invoked by the standard engine.
type HandlerFunc func(ctx context.Context, params Params) (Result, error)

type DescriptorSource interface {
	Discover(ctx context.Context) ([]ServiceDescriptor, error)
}

type DescriptorSourceFunc func(ctx context.Context) ([]ServiceDescriptor, error)

func (fn DescriptorSourceFunc) Discover(ctx context.Context) ([]ServiceDescriptor, error) {
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

type Persistence interface {
	BeginTransaction(ctx context.Context) (Transaction, error)
}

type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EntityStore is the generic entity surface used by the entity-auto engine.
// A Persistence that also implements EntityStore enables that engine.
type EntityStore interface {
	CreateEntity(ctx context.Context, entity string, values map[string]any) (Entity, error)
	UpdateEntity(ctx context.Context, entity string, id string, values map[string]any) (Entity, error)
	DeleteEntity(ctx context.Context, entity string, id string) error
	FindEntity(ctx context.Context, entity string, id string) (Entity, error)
	ListEntities(ctx context.Context, entity string, filter map[string]any) ([]Entity, error)
}

type Entity struct {
	ID        string
	Name      string
	Values    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CallRecord struct {
	ID          string
	Service     string
	Engine      string
	Status      string
	ErrorCode   string
	Message     string
	Transaction bool
	StartedAt   time.Time
	Duration    time.Duration
}

type CallRecorder interface {
	RecordCall(ctx context.Context, record CallRecord) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ServiceDispatcher is the call surface consumed by the command, query and job
// adapters.
type ServiceDispatcher interface {
	RunSync(ctx context.Context, serviceName string, params Params) Result
	RunAsync(ctx context.Context, serviceName string, params Params) (string, error)
	RegisterService(desc ServiceDescriptor) error
	LookupService(name string) (ServiceDescriptor, bool)
	ListServices() map[string]ServiceDescriptor
}
