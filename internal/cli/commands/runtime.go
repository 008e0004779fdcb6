// Package commands implements the qsql subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/qsql/internal/config"
	"github.com/leapstack-labs/qsql/pkg/compiler"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/schema"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
)

// Runtime is what every command needs: the loaded configuration and the
// logger. The root command stores it in the command context.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	catalog *schema.Catalog
}

type runtimeKey struct{}

// WithRuntime returns a context carrying rt.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// GetRuntime retrieves the runtime from the command context. Without one it
// returns defaults and a discard logger.
func GetRuntime(ctx context.Context) *Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok {
		return rt
	}
	return &Runtime{
		Config: &config.Config{Dialect: config.DefaultDialect, Output: config.DefaultOutput},
		Logger: slog.New(slog.DiscardHandler),
	}
}

// Catalog loads table metadata once per run: from schema.file when set,
// else by introspecting schema.source. With neither the catalog is empty.
func (rt *Runtime) Catalog(ctx context.Context) (*schema.Catalog, error) {
	if rt.catalog != nil {
		return rt.catalog, nil
	}
	d, err := rt.Dialect()
	if err != nil {
		return nil, err
	}

	sc := rt.Config.Schema
	var cat *schema.Catalog
	switch {
	case sc.File != "":
		rt.Logger.Debug("loading schema file", "path", sc.File)
		cat, err = schema.LoadFile(sc.File)
	case sc.Source != "":
		rt.Logger.Debug("introspecting schema", "source", sc.Source, "schemas", sc.Schemas)
		cat, err = schema.Introspect(ctx, sc.Source, sc.DSN, sc.Schemas, rt.Logger)
	default:
		cat = schema.NewCatalog(d.DefaultSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	rt.Logger.Debug("schema loaded", "tables", cat.Len())
	rt.catalog = cat
	return cat, nil
}

// Dialect returns the configured dialect.
func (rt *Runtime) Dialect() (*dialect.Dialect, error) {
	return dialect.Lookup(rt.Config.Dialect)
}

// CompilerOptions returns options resolving against the catalog.
func (rt *Runtime) CompilerOptions(ctx context.Context) (*compiler.Options, error) {
	cat, err := rt.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return &compiler.Options{Schema: cat, Logger: rt.Logger}, nil
}

// SQLOptions returns emission options for the configured dialect.
func (rt *Runtime) SQLOptions() (*sqlgen.Options, error) {
	d, err := rt.Dialect()
	if err != nil {
		return nil, err
	}
	return &sqlgen.Options{
		Dialect:     d,
		Params:      rt.Config.Params,
		Session:     rt.Config.Session,
		AllowUnsafe: rt.Config.AllowUnsafe,
		Logger:      rt.Logger,
	}, nil
}

// compileFile parses and resolves one file. Semantic errors come back with
// the tree; only a nil tree means the file could not be compiled at all.
func compileFile(path string, opts *compiler.Options) (*compiler.Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := compiler.ParseAndResolve(string(src), opts)
	if t == nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
