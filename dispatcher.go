package dispatcher

import "github.com/goliatone/go-dispatcher/core"

type Config = core.Config

type Option = core.Option

type Dispatcher = core.Dispatcher

type ServiceDescriptor = core.ServiceDescriptor
type DescriptorOption = core.DescriptorOption
type DescriptorSource = core.DescriptorSource

type Params = core.Params
type Result = core.Result

type Engine = core.Engine
type EngineFactory = core.EngineFactory
type Callback = core.Callback
type CallbackFactory = core.CallbackFactory
type HandlerFunc = core.HandlerFunc

type Persistence = core.Persistence
type Transaction = core.Transaction
type EntityStore = core.EntityStore
type CallRecorder = core.CallRecorder

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithPersistence      = core.WithPersistence
	WithDescriptorSource = core.WithDescriptorSource
	WithCallRecorder     = core.WithCallRecorder
	WithJobEnqueuer      = core.WithJobEnqueuer
	WithEngineFactory    = core.WithEngineFactory
	WithCallbackFactory  = core.WithCallbackFactory
	WithHandler          = core.WithHandler
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	return core.NewDispatcher(cfg, opts...)
}

// Setup builds a dispatcher and applies the given plugin packs to it.
func Setup(cfg Config, hooks *PluginHooks, opts ...Option) (*Dispatcher, error) {
	d, err := core.NewDispatcher(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := hooks.Apply(d); err != nil {
		return d, err
	}
	return d, nil
}
