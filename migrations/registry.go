package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	dispatcher "github.com/goliatone/go-dispatcher"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const defaultLabel = "go-dispatcher"

// Source is the migration set of one SQL dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Plan describes which dialect sources a Register call hands to the
// callback.
type Plan struct {
	Label    string
	Dialects []string
	Sources  []Source
}

type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Plan)

func WithLabel(label string) Option {
	return func(p *Plan) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			p.Label = trimmed
		}
	}
}

// WithDialects narrows registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(p *Plan) {
		if next := normalizeDialects(dialects); len(next) > 0 {
			p.Dialects = next
		}
	}
}

// WithSources replaces the embedded schema, mostly for tests and
// downstream modules shipping their own migrations.
func WithSources(sources ...Source) Option {
	return func(p *Plan) {
		next := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := normalizeDialect(source.Dialect)
			if dialect == "" || source.FS == nil {
				continue
			}
			next = append(next, Source{Dialect: dialect, Path: source.Path, FS: source.FS})
		}
		if len(next) > 0 {
			p.Sources = next
		}
	}
}

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Sources splits a schema tree into its postgres root and sqlite
// subdirectory. Without an argument the embedded dispatcher schema is used.
func Sources(root ...fs.FS) ([]Source, error) {
	tree := dispatcher.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		tree = root[0]
	}

	base, basePath, err := schemaRoot(tree)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, "sqlite"), FS: sqliteFS},
	}
	for _, source := range sources {
		ups, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", source.Dialect, source.Path, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s schema %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// Register hands every selected dialect source to fn.
func Register(ctx context.Context, fn RegisterFunc, opts ...Option) (Plan, error) {
	plan := Plan{
		Label:    defaultLabel,
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	sources, err := Sources()
	if err != nil {
		return plan, err
	}
	plan.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&plan)
		}
	}
	if fn == nil {
		return plan, fmt.Errorf("migrations: register function is required")
	}

	for _, source := range plan.Sources {
		if !slices.Contains(plan.Dialects, source.Dialect) {
			continue
		}
		if err := fn(ctx, source.Dialect, plan.Label, source.FS); err != nil {
			return plan, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return plan, nil
}

// Apply registers the dialect's schema on the persistence client and runs
// pending migrations.
func Apply(ctx context.Context, client *persistence.Client, dialect string, opts ...Option) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	dialect = normalizeDialect(dialect)
	if dialect == "" {
		return fmt.Errorf("migrations: dialect is required")
	}

	registered := 0
	opts = append(opts, WithDialects(dialect))
	if _, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		registered++
		return nil
	}, opts...); err != nil {
		return err
	}
	if registered == 0 {
		return fmt.Errorf("migrations: no schema for dialect %q", dialect)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: migrate %s: %w", dialect, err)
	}
	return nil
}

func schemaRoot(tree fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(tree, "data/sql/migrations")
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, "data/sql/migrations", nil
		}
	}
	if ups, globErr := fs.Glob(tree, "*.sql"); globErr == nil && len(ups) > 0 {
		return tree, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: data/sql/migrations not found")
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := normalizeDialect(value)
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	return out
}

func normalizeDialect(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func joinPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
