package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	dispatcher "github.com/goliatone/go-dispatcher"
	"github.com/goliatone/go-dispatcher/core"
	"github.com/goliatone/go-dispatcher/discovery"
	dispatchmigrations "github.com/goliatone/go-dispatcher/migrations"
	"github.com/goliatone/go-dispatcher/ratelimit"
	sqlstore "github.com/goliatone/go-dispatcher/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type runtimeOptions struct {
	driver   string
	dsn      string
	catalog  string
	profile  string
	logLevel string
}

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool {
	return false
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "dispatcher-demo"
}

type demoRuntime struct {
	client     *persistence.Client
	stores     *sqlstore.RepositoryFactory
	catalog    *sqlstore.CachedDescriptorSource
	dispatcher *core.Dispatcher
	facade     *dispatcher.Facade
}

func (r *demoRuntime) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}

func openRuntime(ctx context.Context, opts runtimeOptions) (*demoRuntime, error) {
	client, err := openPersistence(ctx, opts.driver, opts.dsn)
	if err != nil {
		return nil, err
	}
	rt := &demoRuntime{client: client}

	rt.stores, err = sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		rt.Close()
		return nil, err
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = 30 * time.Second
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("dispatcher-demo: descriptor cache: %w", err)
	}
	rt.catalog, err = sqlstore.NewCachedDescriptorSource(rt.stores.DescriptorStore(), cacheService, "demo")
	if err != nil {
		rt.Close()
		return nil, err
	}

	hooks := dispatcher.NewPluginHooks()
	if err := hooks.RegisterPack(demoPack()); err != nil {
		rt.Close()
		return nil, err
	}

	sources := []core.DescriptorSource{hooks.DescriptorSource()}
	if catalog := strings.TrimSpace(opts.catalog); catalog != "" {
		sources = append(sources, discovery.NewFileSource(os.DirFS(catalog), "."))
	}
	sources = append(sources, rt.catalog)

	cfg := dispatcher.DefaultConfig()
	if profile := strings.TrimSpace(opts.profile); profile != "" {
		cfg.Profile = profile
	}

	rt.dispatcher, err = dispatcher.Setup(cfg, hooks,
		dispatcher.WithLogger(newZerologLogger(os.Stderr, opts.logLevel)),
		dispatcher.WithPersistence(rt.stores.Persistence()),
		dispatcher.WithCallRecorder(rt.stores.CallLogStore()),
		dispatcher.WithDescriptorSource(discovery.NewMultiSource(sources...)),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.facade, err = dispatcher.NewFacade(rt.dispatcher)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func openPersistence(ctx context.Context, driver string, dsn string) (*persistence.Client, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("dispatcher-demo: open %s: %w", driver, err)
	}

	dialect, err := dispatchmigrations.DialectForDriver(driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("dispatcher-demo: %w", err)
	}

	cfg := persistenceConfig{driver: driver, server: dsn}
	var client *persistence.Client
	if dialect == dispatchmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	} else {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("dispatcher-demo: persistence client: %w", err)
	}

	if err := dispatchmigrations.Apply(ctx, client, dialect); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dispatcher-demo: %w", err)
	}
	return client, nil
}

// demoPack binds a few in-process handlers and a generic note entity so the
// binary is useful against an empty database.
func demoPack() dispatcher.PluginPack {
	throttle := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	throttle.Limit = 100
	return dispatcher.PluginPack{
		Name: "demo",
		Callbacks: map[string]core.CallbackFactory{
			ratelimit.CallbackID: ratelimit.CallbackFactory(throttle),
		},
		Handlers: []dispatcher.HandlerBinding{
			{
				Location: "demo",
				Invoke:   "echo",
				Handler: func(_ context.Context, params core.Params) (core.Result, error) {
					return core.SuccessWith(map[string]any{"echo": map[string]any(params)}), nil
				},
			},
			{
				Location: "demo",
				Invoke:   "now",
				Handler: func(context.Context, core.Params) (core.Result, error) {
					return core.SuccessWith(map[string]any{"now": time.Now().UTC().Format(time.RFC3339)}), nil
				},
			},
		},
		Descriptors: []core.ServiceDescriptor{
			core.NewDescriptor("demo.echo", core.EngineStandard,
				core.WithTarget("demo", "echo"),
				core.WithCallbacks(ratelimit.CallbackID),
				core.WithDescription("returns its parameters"),
			),
			core.NewDescriptor("demo.now", core.EngineStandard,
				core.WithTarget("demo", "now"),
				core.WithDescription("returns the current UTC time"),
			),
			noteDescriptor(core.EntityOperationCreate),
			noteDescriptor(core.EntityOperationUpdate),
			noteDescriptor(core.EntityOperationFind),
			noteDescriptor(core.EntityOperationList),
			noteDescriptor(core.EntityOperationDelete),
		},
	}
}

func noteDescriptor(operation string) core.ServiceDescriptor {
	return core.NewDescriptor("note."+operation, core.EngineEntityAuto,
		core.WithEntity("Note"),
		core.WithTarget("", operation),
		core.WithPersist(true),
		core.WithTransaction(true),
	)
}
