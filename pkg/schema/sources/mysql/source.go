// Package mysql introspects MySQL and MariaDB catalogs.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"

	mydialect "github.com/leapstack-labs/qsql/pkg/dialects/mysql"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

func init() {
	schema.Register("mysql", func(logger *slog.Logger) schema.Source { return New(logger) })
}

// Source implements schema.Source for MySQL. A MySQL schema is a database,
// so the default schema is the database named in the DSN.
type Source struct {
	schema.BaseSource
	database string
}

// New creates a MySQL source. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSource: schema.BaseSource{Dialect: mydialect.MySQL, Logger: logger},
	}
}

// Open connects using a go-sql-driver DSN such as user:pass@tcp(host:3306)/db.
func (s *Source) Open(ctx context.Context, dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	s.Logger.Debug("connecting to mysql", slog.String("addr", cfg.Addr), slog.String("database", cfg.DBName))

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping mysql: %w", err)
	}
	s.DB = db
	s.database = cfg.DBName
	return nil
}

// Load introspects information_schema.columns.
func (s *Source) Load(ctx context.Context, schemas []string) (*schema.Catalog, error) {
	if len(schemas) == 0 {
		if s.database == "" {
			return nil, fmt.Errorf("no schema given and the dsn names no database")
		}
		schemas = []string{s.database}
	}
	cat, err := s.LoadInformationSchema(ctx, schemas)
	if err != nil {
		return nil, err
	}
	if s.database == "" {
		return cat, nil
	}
	out := schema.NewCatalog(s.database)
	for _, t := range cat.Tables() {
		out.Add(t)
	}
	return out, nil
}
