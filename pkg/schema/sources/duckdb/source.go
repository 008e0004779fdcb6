// Package duckdb introspects DuckDB catalogs.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	duckdialect "github.com/leapstack-labs/qsql/pkg/dialects/duckdb"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

func init() {
	schema.Register("duckdb", func(logger *slog.Logger) schema.Source { return New(logger) })
}

// Source implements schema.Source for DuckDB.
type Source struct {
	schema.BaseSource
}

// New creates a DuckDB source. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSource: schema.BaseSource{Dialect: duckdialect.DuckDB, Logger: logger},
	}
}

// Open opens a database file. Use ":memory:" or "" for an in-memory database.
func (s *Source) Open(ctx context.Context, path string) error {
	if path == "" {
		path = ":memory:"
	}
	s.Logger.Debug("opening duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	s.DB = db
	return nil
}

// Load introspects information_schema.columns.
func (s *Source) Load(ctx context.Context, schemas []string) (*schema.Catalog, error) {
	return s.LoadInformationSchema(ctx, schemas)
}
