// Package postgres introspects PostgreSQL catalogs.
//
// Import this package with a blank identifier to register the source:
//
//	import _ "github.com/leapstack-labs/qsql/pkg/schema/sources/postgres"
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	pgdialect "github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

func init() {
	schema.Register("postgres", func(logger *slog.Logger) schema.Source { return New(logger) })
}

// Source implements schema.Source for PostgreSQL.
type Source struct {
	schema.BaseSource
}

// New creates a PostgreSQL source. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSource: schema.BaseSource{Dialect: pgdialect.Postgres, Logger: logger},
	}
}

// Open connects using a libpq keyword/value string or a postgres:// URL.
func (s *Source) Open(ctx context.Context, dsn string) error {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}

	s.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	s.DB = db
	return nil
}

// Load introspects information_schema.columns.
func (s *Source) Load(ctx context.Context, schemas []string) (*schema.Catalog, error) {
	return s.LoadInformationSchema(ctx, schemas)
}
