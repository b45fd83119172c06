package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Dispatcher routes calls by service name to the engine named in the
// service descriptor. It owns its registries; nothing is process global.
type Dispatcher struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	persistence       Persistence
	source            DescriptorSource
	callRecorder      CallRecorder
	jobEnqueuer       JobEnqueuer
	services          *ServiceRegistry
	engines           *EngineRegistry
	callbacks         *CallbackRegistry
	handlers          *handlerTable
	engineFactories   *factoryTable[EngineFactory]
	callbackFactories *factoryTable[CallbackFactory]
}

func NewDispatcher(cfg Config, opts ...Option) (*Dispatcher, error) {
	builder := defaultDispatcherBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("dispatcher", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("dispatcher"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	d := &Dispatcher{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		persistence:       builder.persistence,
		source:            builder.source,
		callRecorder:      builder.callRecorder,
		jobEnqueuer:       builder.jobEnqueuer,
		services:          NewServiceRegistry(),
		engines:           NewEngineRegistry(),
		callbacks:         NewCallbackRegistry(),
		handlers:          newHandlerTable(),
		engineFactories:   newFactoryTable[EngineFactory](),
		callbackFactories: newFactoryTable[CallbackFactory](),
	}

	d.engineFactories.set(EngineEntityAuto, NewEntityAutoEngine)
	d.engineFactories.set(EngineStandard, NewStandardEngine)
	d.engineFactories.set(EngineJava, NewJavaEngine)
	for id, factory := range builder.engineFactories {
		_ = d.RegisterEngineFactory(id, factory)
	}
	for id, factory := range builder.callbackFactories {
		_ = d.RegisterCallbackFactory(id, factory)
	}
	for _, binding := range builder.handlers {
		_ = d.RegisterHandler(binding.location, binding.invoke, binding.handler)
	}

	if d.persistence == nil {
		d.logWithLevel(context.Background(), "warn", "dispatcher: persistence provider not configured", map[string]any{
			"name": d.config.Name,
		})
	}

	// Built-in engines go first so configured identifiers can replace them.
	_ = d.RegisterEngine(EngineEntityAuto)
	_ = d.RegisterEngine(EngineStandard)
	_ = d.RegisterEngine(EngineJava)
	for _, id := range d.config.Engines {
		_ = d.RegisterEngine(id)
	}
	for _, id := range d.config.Callbacks {
		_ = d.RegisterCallback(id)
	}

	_ = d.Refresh(context.Background())
	return d, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (d *Dispatcher) Config() Config {
	if d == nil {
		return Config{}
	}
	return d.config
}

func (d *Dispatcher) Logger() Logger {
	if d == nil || d.logger == nil {
		return glog.Nop()
	}
	return d.logger
}

func (d *Dispatcher) Persistence() Persistence {
	if d == nil {
		return nil
	}
	return d.persistence
}

func (d *Dispatcher) CallRecorder() CallRecorder {
	if d == nil {
		return nil
	}
	return d.callRecorder
}

// RunSync dispatches a call and always returns a Result; faults raised by the
// engine are reported as SERVICE_CALL_EXCEPTION, never propagated.
func (d *Dispatcher) RunSync(ctx context.Context, serviceName string, params Params) (result Result) {
	if d == nil {
		return ProblemFromError(internalError("core: dispatcher is nil", nil))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now().UTC()
	serviceName = strings.TrimSpace(serviceName)
	desc := ServiceDescriptor{Name: serviceName}
	defer func() {
		d.observeCall(ctx, startedAt, desc, result)
	}()

	if !d.config.IsProduction() {
		_ = d.Refresh(ctx)
	}

	found, ok := d.services.Lookup(serviceName)
	if !ok {
		d.logWithLevel(ctx, "warn", "dispatcher: unable to locate service", map[string]any{"service": serviceName})
		return ProblemFromError(dispatchError(
			fmt.Sprintf("Unable to locate service [%s]", serviceName),
			goerrors.CategoryNotFound,
			ErrorServiceNotFound,
			map[string]any{ResultKeyService: serviceName},
		))
	}
	desc = found

	engine, ok := d.engines.Lookup(desc.EngineName)
	if !ok {
		d.logWithLevel(ctx, "warn", "dispatcher: unsupported service engine", map[string]any{
			"service": serviceName,
			"engine":  desc.EngineName,
		})
		return ProblemFromError(unsupportedService(desc, ReasonEngineNotRegistered))
	}

	if desc.Persist && d.persistence == nil {
		d.logWithLevel(ctx, "warn", "dispatcher: service requires a persistence provider", map[string]any{
			"service": serviceName,
		})
		return ProblemFromError(unsupportedService(desc, ReasonPersistenceUnavailable))
	}

	return d.invoke(ctx, desc, engine, params.Clone())
}

func (d *Dispatcher) invoke(ctx context.Context, desc ServiceDescriptor, engine Engine, params Params) (result Result) {
	var (
		tx         Transaction
		rolledBack bool
	)
	fail := func(err *goerrors.Error) Result {
		if tx != nil && !rolledBack {
			rolledBack = true
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				d.logWithLevel(ctx, "error", "dispatcher: transaction rollback failed", map[string]any{
					"service": desc.Name,
					"error":   rollbackErr.Error(),
				})
			}
		}
		d.logWithLevel(ctx, "error", "dispatcher: service call failed", map[string]any{
			"service": desc.Name,
			"engine":  desc.EngineName,
			"error":   err.Error(),
		})
		return ProblemFromError(err)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = fail(callException(desc, ReasonEnginePanicked, fmt.Errorf("panic: %v", recovered)))
		}
		if tx != nil && !rolledBack {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				d.logWithLevel(ctx, "error", "dispatcher: transaction commit failed", map[string]any{
					"service": desc.Name,
					"error":   commitErr.Error(),
				})
				result = ProblemFromError(callException(desc, ReasonCommitFailed, commitErr))
			}
		}
	}()

	ctx = ContextWithDispatcher(ctx, d)
	if desc.Transactional() {
		began, err := d.persistence.BeginTransaction(ctx)
		if err != nil {
			return fail(callException(desc, ReasonBeginFailed, err))
		}
		if began == nil {
			return fail(callException(desc, ReasonBeginFailed, fmt.Errorf("core: persistence returned nil transaction")))
		}
		tx = began
		ctx = ContextWithTransaction(ctx, tx)
	}

	hooks := d.callbacksFor(ctx, desc)
	for _, hook := range hooks {
		if err := hook.BeforeInvoke(ctx, desc, params); err != nil {
			return fail(callException(desc, ReasonCallbackFailed, err))
		}
	}

	out, err := engine.Invoke(ctx, desc, params)
	for _, hook := range hooks {
		hook.AfterInvoke(ctx, desc, params, out, err)
	}
	if err != nil {
		return fail(callException(desc, ReasonEngineFailed, err))
	}
	if out == nil {
		out = Success()
	}
	return out
}

func (d *Dispatcher) callbacksFor(ctx context.Context, desc ServiceDescriptor) []Callback {
	if len(desc.Callbacks) == 0 {
		return nil
	}
	hooks := make([]Callback, 0, len(desc.Callbacks))
	for _, id := range desc.Callbacks {
		hook, ok := d.callbacks.Lookup(id)
		if !ok {
			d.logWithLevel(ctx, "debug", "dispatcher: callback not registered", map[string]any{
				"service":  desc.Name,
				"callback": id,
			})
			continue
		}
		hooks = append(hooks, hook)
	}
	return hooks
}

func unsupportedService(desc ServiceDescriptor, reason string) *goerrors.Error {
	return dispatchError(
		fmt.Sprintf("Unsupported service [%s]", desc.Name),
		goerrors.CategoryOperation,
		ErrorUnsupportedServiceEngine,
		map[string]any{
			ResultKeyService: desc.Name,
			ResultKeyReason:  reason,
			"engine":         desc.EngineName,
		},
	)
}

func callException(desc ServiceDescriptor, reason string, cause error) *goerrors.Error {
	return dispatchWrapError(
		cause,
		goerrors.CategoryOperation,
		fmt.Sprintf("Calling service [%s] has an exception", desc.Name),
		ErrorServiceCallException,
		map[string]any{
			ResultKeyService: desc.Name,
			ResultKeyReason:  reason,
			"engine":         desc.EngineName,
		},
	)
}

// Refresh merges the descriptor source into the registry. Discovery failures
// keep the current catalog.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	if d == nil || d.source == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	descriptors, err := d.source.Discover(ctx)
	if err != nil {
		d.logWithLevel(ctx, "warn", "dispatcher: descriptor discovery failed", map[string]any{
			"error": err.Error(),
		})
		return dispatchWrapError(err, goerrors.CategoryExternal, "core: descriptor discovery failed", ErrorInternal, nil)
	}
	for _, desc := range descriptors {
		_ = d.RegisterService(desc)
	}
	d.logWithLevel(ctx, "debug", "dispatcher: descriptors refreshed", map[string]any{
		"count": len(descriptors),
	})
	return nil
}

// RegisterService inserts or replaces a descriptor and eagerly instantiates
// the callbacks it references.
func (d *Dispatcher) RegisterService(desc ServiceDescriptor) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	desc = desc.normalized()
	if desc.Name == "" {
		d.logWithLevel(context.Background(), "warn", "dispatcher: ignoring descriptor without a name", map[string]any{
			"engine": desc.EngineName,
		})
		return badInputError("core: service name is required", nil)
	}
	for _, id := range desc.Callbacks {
		if err := d.RegisterCallback(id); err != nil {
			d.logWithLevel(context.Background(), "warn", "dispatcher: unable to load service callback", map[string]any{
				"service":  desc.Name,
				"callback": id,
			})
		}
	}
	if err := d.services.Register(desc); err != nil {
		d.logWithLevel(context.Background(), "warn", "dispatcher: invalid service descriptor", map[string]any{
			"service": desc.Name,
			"error":   err.Error(),
		})
		return badInputError(err.Error(), map[string]any{ResultKeyService: desc.Name})
	}
	return nil
}

func (d *Dispatcher) LookupService(name string) (ServiceDescriptor, bool) {
	if d == nil {
		return ServiceDescriptor{}, false
	}
	return d.services.Lookup(name)
}

func (d *Dispatcher) ListServices() map[string]ServiceDescriptor {
	if d == nil {
		return map[string]ServiceDescriptor{}
	}
	return d.services.All()
}

func (d *Dispatcher) RegisterEngineFactory(id string, factory EngineFactory) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return badInputError("core: engine identifier is required", nil)
	}
	if factory == nil {
		return badInputError("core: engine factory is nil", map[string]any{"engine_id": id})
	}
	d.engineFactories.set(id, factory)
	return nil
}

// RegisterEngine instantiates the engine registered under id and stores it by
// its name. Failures are logged and leave the registry untouched.
func (d *Dispatcher) RegisterEngine(id string) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return badInputError("core: engine identifier is required", nil)
	}
	factory, ok := d.engineFactories.get(id)
	if !ok {
		return d.registrationFailed("engine", id, fmt.Errorf("core: engine %q not registered in factory table", id))
	}
	engine, err := buildEngine(d, factory)
	if err != nil {
		return d.registrationFailed("engine", id, err)
	}
	if err := d.engines.Register(engine); err != nil {
		return d.registrationFailed("engine", id, err)
	}
	return nil
}

func (d *Dispatcher) LookupEngine(name string) (Engine, bool) {
	if d == nil {
		return nil, false
	}
	return d.engines.Lookup(name)
}

func (d *Dispatcher) EngineNames() []string {
	if d == nil {
		return []string{}
	}
	return d.engines.Names()
}

func (d *Dispatcher) RegisterCallbackFactory(id string, factory CallbackFactory) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return badInputError("core: callback identifier is required", nil)
	}
	if factory == nil {
		return badInputError("core: callback factory is nil", map[string]any{"callback_id": id})
	}
	d.callbackFactories.set(id, factory)
	return nil
}

// RegisterCallback instantiates the callback registered under id, replacing
// any instance already held for it.
func (d *Dispatcher) RegisterCallback(id string) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return badInputError("core: callback identifier is required", nil)
	}
	factory, ok := d.callbackFactories.get(id)
	if !ok {
		return d.registrationFailed("callback", id, fmt.Errorf("core: callback %q not registered in factory table", id))
	}
	callback, err := buildCallback(factory)
	if err != nil {
		return d.registrationFailed("callback", id, err)
	}
	if err := d.callbacks.Register(id, callback); err != nil {
		return d.registrationFailed("callback", id, err)
	}
	return nil
}

func (d *Dispatcher) LookupCallback(id string) (Callback, bool) {
	if d == nil {
		return nil, false
	}
	return d.callbacks.Lookup(id)
}

func (d *Dispatcher) RegisterHandler(location string, invoke string, handler HandlerFunc) error {
	if d == nil {
		return internalError("core: dispatcher is nil", nil)
	}
	if handler == nil {
		return badInputError("core: handler is nil", map[string]any{"location": location, "invoke": invoke})
	}
	if strings.TrimSpace(invoke) == "" {
		return badInputError("core: handler invoke target is required", map[string]any{"location": location})
	}
	d.handlers.set(location, invoke, handler)
	return nil
}

func (d *Dispatcher) handler(location string, invoke string) (HandlerFunc, bool) {
	if d == nil {
		return nil, false
	}
	return d.handlers.get(location, invoke)
}

func (d *Dispatcher) registrationFailed(kind string, id string, cause error) error {
	d.logWithLevel(context.Background(), "error", fmt.Sprintf("dispatcher: unable to register %s", kind), map[string]any{
		kind + "_id": id,
		"error":      cause.Error(),
	})
	return dispatchWrapError(
		cause,
		goerrors.CategoryBadInput,
		fmt.Sprintf("Unable to register %s [%s]", kind, id),
		ErrorBadInput,
		map[string]any{kind + "_id": id},
	)
}

func buildEngine(d *Dispatcher, factory EngineFactory) (engine Engine, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			engine = nil
			err = fmt.Errorf("core: engine constructor panicked: %v", recovered)
		}
	}()
	engine, err = factory(d)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("core: engine factory returned nil engine")
	}
	return engine, nil
}

func buildCallback(factory CallbackFactory) (callback Callback, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			callback = nil
			err = fmt.Errorf("core: callback constructor panicked: %v", recovered)
		}
	}()
	callback, err = factory()
	if err != nil {
		return nil, err
	}
	if callback == nil {
		return nil, fmt.Errorf("core: callback factory returned nil callback")
	}
	return callback, nil
}

func (d *Dispatcher) CallbackIDs() []string {
	if d == nil {
		return []string{}
	}
	return d.callbacks.IDs()
}

// EngineFactoryIDs lists identifiers RegisterEngine can resolve.
func (d *Dispatcher) EngineFactoryIDs() []string {
	if d == nil {
		return []string{}
	}
	return d.engineFactories.ids()
}

func (d *Dispatcher) CallbackFactoryIDs() []string {
	if d == nil {
		return []string{}
	}
	return d.callbackFactories.ids()
}
