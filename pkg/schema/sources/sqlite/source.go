// Package sqlite introspects SQLite databases through sqlite_master and
// pragma_table_info.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	litedialect "github.com/leapstack-labs/qsql/pkg/dialects/sqlite"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

func init() {
	schema.Register("sqlite", func(logger *slog.Logger) schema.Source { return New(logger) })
}

// Source implements schema.Source for SQLite.
type Source struct {
	schema.BaseSource
}

// New creates a SQLite source. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSource: schema.BaseSource{Dialect: litedialect.SQLite, Logger: logger},
	}
}

// Open opens a database file. Use ":memory:" or "" for an in-memory database.
func (s *Source) Open(ctx context.Context, path string) error {
	if path == "" {
		path = ":memory:"
	}
	s.Logger.Debug("opening sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}
	s.DB = db
	return nil
}

// Load reads the tables and views of the given attached databases.
func (s *Source) Load(ctx context.Context, schemas []string) (*schema.Catalog, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if len(schemas) == 0 {
		schemas = []string{s.Dialect.DefaultSchema}
	}

	parts := make([]string, len(schemas))
	args := make([]any, 0, 2*len(schemas))
	for i, name := range schemas {
		parts[i] = fmt.Sprintf(`SELECT ? AS table_schema, m.name, p.name, p.type,
			CASE WHEN p."notnull" = 1 THEN 'NO' ELSE 'YES' END,
			p.cid + 1
		FROM %s.sqlite_master m
		JOIN pragma_table_info(m.name, ?) p
		WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%%'`,
			s.Dialect.QuoteIdentifier(name))
		args = append(args, name, name)
	}
	query := strings.Join(parts, "\nUNION ALL\n") + "\nORDER BY 1, 2, 6"

	return s.QueryColumns(ctx, s.Dialect.DefaultSchema, query, args...)
}
