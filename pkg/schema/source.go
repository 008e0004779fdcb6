package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/qsql/pkg/dialect"
)

// Source loads a catalog from a live database.
type Source interface {
	// Open connects to the database described by dsn.
	Open(ctx context.Context, dsn string) error

	// Load introspects the given schemas. An empty list means the source's
	// default schema.
	Load(ctx context.Context, schemas []string) (*Catalog, error)

	// Close releases the connection.
	Close() error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Source)
)

// Register adds a source factory to the registry.
// Called by source implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a source factory by name.
func Get(name string) (func(*slog.Logger) Source, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewSource creates a source instance by name (nil logger uses discard logger).
func NewSource(name string, logger *slog.Logger) (Source, error) {
	if name == "" {
		return nil, fmt.Errorf("schema source not specified")
	}
	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownSourceError{Name: name, Available: ListSources()}
	}
	return factory(logger), nil
}

// ListSources returns all registered source names (sorted).
func ListSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownSourceError is returned when an unknown source is requested.
type UnknownSourceError struct {
	Name      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown schema source %q\nAvailable sources: %v\nHint: Check schema.source in qsql.yaml", e.Name, e.Available)
}

// Introspect opens a registered source, loads the schemas and closes it.
func Introspect(ctx context.Context, name, dsn string, schemas []string, logger *slog.Logger) (*Catalog, error) {
	src, err := NewSource(name, logger)
	if err != nil {
		return nil, err
	}
	if err := src.Open(ctx, dsn); err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return src.Load(ctx, schemas)
}

// BaseSource provides common database/sql functionality for sources.
// Embed it in concrete source implementations.
type BaseSource struct {
	DB      *sql.DB
	Dialect *dialect.Dialect
	Logger  *slog.Logger
}

// Close closes the database connection.
func (b *BaseSource) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSource) IsConnected() bool {
	return b.DB != nil
}

// LoadInformationSchema reads information_schema.columns for the given
// schemas, using the dialect's placeholders.
func (b *BaseSource) LoadInformationSchema(ctx context.Context, schemas []string) (*Catalog, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if len(schemas) == 0 {
		schemas = []string{b.Dialect.DefaultSchema}
	}

	placeholders := make([]string, len(schemas))
	args := make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = b.Dialect.FormatPlaceholder(i + 1)
		args[i] = s
	}

	//nolint:gosec // Placeholders are safe - they come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT
			table_schema,
			table_name,
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema IN (%s)
		ORDER BY table_schema, table_name, ordinal_position
	`, strings.Join(placeholders, ", "))

	return b.QueryColumns(ctx, b.Dialect.DefaultSchema, query, args...)
}

// QueryColumns runs a column metadata query and groups the rows into tables.
// The query must return schema, table, column, data type, nullability
// ("YES"/"NO") and ordinal position, ordered by schema, table and position.
func (b *BaseSource) QueryColumns(ctx context.Context, defaultSchema, query string, args ...any) (*Catalog, error) {
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cat := NewCatalog(defaultSchema)
	var current *Table
	flush := func() {
		if current != nil {
			cat.Add(current)
		}
	}
	for rows.Next() {
		var schemaName, tableName, nullable string
		col := &Column{}
		if err := rows.Scan(&schemaName, &tableName, &col.Name, &col.DataType, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		if current == nil || current.Schema != schemaName || current.Name != tableName {
			flush()
			current = &Table{Schema: schemaName, Name: tableName}
		}
		current.Columns = append(current.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	flush()

	if b.Logger != nil {
		b.Logger.Debug("loaded catalog", slog.Int("tables", cat.Len()))
	}
	return cat, nil
}
