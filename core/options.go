package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type handlerBinding struct {
	location string
	invoke   string
	handler  HandlerFunc
}

type dispatcherBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	persistence       Persistence
	source            DescriptorSource
	callRecorder      CallRecorder
	jobEnqueuer       JobEnqueuer
	engineFactories   map[string]EngineFactory
	callbackFactories map[string]CallbackFactory
	handlers          []handlerBinding
}

type Option func(*dispatcherBuilder)

func WithLogger(logger Logger) Option {
	return func(b *dispatcherBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *dispatcherBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *dispatcherBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *dispatcherBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *dispatcherBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *dispatcherBuilder) {
		b.optionsResolver = resolver
	}
}

// WithPersistence configures the provider used by persist descriptors. A nil
// provider leaves persistence unconfigured.
func WithPersistence(persistence Persistence) Option {
	return func(b *dispatcherBuilder) {
		b.persistence = persistence
	}
}

func WithDescriptorSource(source DescriptorSource) Option {
	return func(b *dispatcherBuilder) {
		b.source = source
	}
}

func WithCallRecorder(recorder CallRecorder) Option {
	return func(b *dispatcherBuilder) {
		b.callRecorder = recorder
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *dispatcherBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

// WithEngineFactory adds an engine constructor to the factory table. It is
// only instantiated when its identifier is registered.
func WithEngineFactory(id string, factory EngineFactory) Option {
	return func(b *dispatcherBuilder) {
		if b.engineFactories == nil {
			b.engineFactories = map[string]EngineFactory{}
		}
		b.engineFactories[strings.TrimSpace(id)] = factory
	}
}

func WithCallbackFactory(id string, factory CallbackFactory) Option {
	return func(b *dispatcherBuilder) {
		if b.callbackFactories == nil {
			b.callbackFactories = map[string]CallbackFactory{}
		}
		b.callbackFactories[strings.TrimSpace(id)] = factory
	}
}

// WithHandler binds a function to a (location, invoke) target of the
// standard engine.
func WithHandler(location string, invoke string, handler HandlerFunc) Option {
	return func(b *dispatcherBuilder) {
		b.handlers = append(b.handlers, handlerBinding{
			location: location,
			invoke:   invoke,
			handler:  handler,
		})
	}
}

func defaultDispatcherBuilder(runtime Config) dispatcherBuilder {
	loggerProvider, logger := glog.Resolve("dispatcher", nil, nil)
	return dispatcherBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return dispatchErrorMapper(err)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Name) != "" {
		layer["name"] = cfg.Name
	}
	if includeZero || strings.TrimSpace(cfg.Profile) != "" {
		layer["profile"] = normalizeProfile(cfg.Profile)
	}
	if includeZero || len(cfg.Locations) > 0 {
		layer["locations"] = append([]string(nil), cfg.Locations...)
	}
	if includeZero || len(cfg.Engines) > 0 {
		layer["engines"] = append([]string(nil), cfg.Engines...)
	}
	if includeZero || len(cfg.Callbacks) > 0 {
		layer["callbacks"] = append([]string(nil), cfg.Callbacks...)
	}
	return layer
}
