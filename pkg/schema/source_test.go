package schema

import (
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func TestLoadInformationSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d := dialect.New(&dialect.Config{Name: "pg", DefaultSchema: "public", Placeholder: dialect.PlaceholderDollar}).Build()
	base := &BaseSource{DB: db, Dialect: d}

	rows := sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_nullable", "ordinal_position"}).
		AddRow("study", "demo", "id", "integer", "NO", 1).
		AddRow("study", "demo", "born", "date", "YES", 2).
		AddRow("study", "visits", "id", "bigint", "NO", 1)
	mock.ExpectQuery(`FROM information_schema.columns\s+WHERE table_schema IN \(\$1, \$2\)`).
		WithArgs("study", "lists").
		WillReturnRows(rows)

	cat, err := base.LoadInformationSchema(context.Background(), []string{"study", "lists"})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	demo, ok := cat.Table(fieldkey.Parse("study.demo"))
	require.True(t, ok)
	require.Len(t, demo.Columns, 2)
	assert.Equal(t, types.Date, demo.Columns[1].Type)
	assert.True(t, demo.Columns[1].Nullable)
	assert.False(t, demo.Columns[0].Nullable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadInformationSchemaDefaultSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d := dialect.New(&dialect.Config{Name: "q", DefaultSchema: "main"}).Build()
	base := &BaseSource{DB: db, Dialect: d}

	mock.ExpectQuery(`WHERE table_schema IN \(\?\)`).
		WithArgs("main").
		WillReturnError(assert.AnError)

	_, err = base.LoadInformationSchema(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query column metadata")
}

func TestBaseSourceNotConnected(t *testing.T) {
	base := &BaseSource{}
	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close())
	_, err := base.LoadInformationSchema(context.Background(), nil)
	assert.EqualError(t, err, "database connection not established")
}

type fakeSource struct {
	BaseSource
	dsn string
}

func (f *fakeSource) Open(_ context.Context, dsn string) error {
	f.dsn = dsn
	return nil
}

func (f *fakeSource) Load(context.Context, []string) (*Catalog, error) {
	cat := NewCatalog("")
	cat.Add(&Table{Name: f.dsn})
	return cat, nil
}

func TestSourceRegistry(t *testing.T) {
	Register("fake", func(*slog.Logger) Source { return &fakeSource{} })
	assert.Contains(t, ListSources(), "fake")

	cat, err := Introspect(context.Background(), "fake", "things", nil, nil)
	require.NoError(t, err)
	_, ok := cat.Table(fieldkey.Parse("things"))
	assert.True(t, ok)

	_, err = NewSource("", nil)
	assert.Error(t, err)

	_, err = NewSource("missing", nil)
	var unknown *UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}
