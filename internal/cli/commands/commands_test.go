package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/internal/cli/testutil"
	"github.com/leapstack-labs/qsql/internal/config"
	logutil "github.com/leapstack-labs/qsql/internal/testutil"

	_ "github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/sqlserver"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/sqlite"
)

// run executes cmd against a runtime using the catalog of the test project.
func run(t *testing.T, cmd *cobra.Command, dir string, mutate func(*config.Config), args ...string) (string, error) {
	t.Helper()
	cfg := &config.Config{
		Dialect: config.DefaultDialect,
		Output:  config.DefaultOutput,
		Schema:  config.SchemaConfig{File: filepath.Join(dir, "catalog.yaml")},
	}
	if mutate != nil {
		mutate(cfg)
	}
	if args == nil {
		// cobra falls back to os.Args for nil args
		args = []string{}
	}
	ctx := WithRuntime(context.Background(), &Runtime{Config: cfg, Logger: logutil.NewTestLogger(t)})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestCompileCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	adults := testutil.QueryPath(dir, "adults.qsql")
	scores := testutil.QueryPath(dir, "scores.qsql")

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		args    []string
		wantOut []string
		wantErr string
	}{
		{
			name: "postgres with default parameter",
			args: []string{adults},
			wantOut: []string{
				"FROM study.demographics AS demographics",
				"demographics.age >= $1",
				"-- $1 = 18",
			},
		},
		{
			name:    "parameter from config",
			mutate:  func(c *config.Config) { c.Params = map[string]any{"MinAge": "30"} },
			args:    []string{adults},
			wantOut: []string{"-- $1 = 30"},
		},
		{
			name:    "sqlserver top",
			mutate:  func(c *config.Config) { c.Dialect = "sqlserver" },
			args:    []string{scores},
			wantOut: []string{"SELECT TOP 3 v.site", "ORDER BY"},
		},
		{
			name:    "several files are labelled",
			args:    []string{adults, scores},
			wantOut: []string{"-- " + adults, "-- " + scores, " LIMIT 3"},
		},
		{
			name:    "table output",
			mutate:  func(c *config.Config) { c.Output = config.OutputTable },
			args:    []string{adults},
			wantOut: []string{"Placeholder", "$1", "18"},
		},
		{
			name:    "semantic errors fail",
			args:    []string{testutil.QueryPath(dir, "broken.qsql")},
			wantErr: "nope",
		},
		{
			name:    "missing file",
			args:    []string{filepath.Join(dir, "missing.qsql")},
			wantErr: "missing.qsql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, NewCompileCommand(), dir, tt.mutate, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
			testutil.AssertNoANSI(t, out)
		})
	}
}

func TestCompileCommandJSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	adults := testutil.QueryPath(dir, "adults.qsql")

	out, err := run(t, NewCompileCommand(), dir, func(c *config.Config) { c.Output = config.OutputJSON }, adults)
	require.NoError(t, err)

	var results []compiled
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, adults, results[0].File)
	assert.Contains(t, results[0].SQL, "$1")
	require.Len(t, results[0].Args, 1)
	assert.InDelta(t, 18, results[0].Args[0], 0)
}

func TestCheckCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	broken := testutil.QueryPath(dir, "broken.qsql")

	t.Run("clean file", func(t *testing.T) {
		out, err := run(t, NewCheckCommand(), dir, nil, testutil.QueryPath(dir, "scores.qsql"))
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("every error is reported", func(t *testing.T) {
		out, err := run(t, NewCheckCommand(), dir, nil, broken)
		require.ErrorIs(t, err, ErrProblemsFound)
		assert.Contains(t, out, broken+":1:")
		assert.Contains(t, out, "UnknownField")
		assert.Contains(t, out, "UnknownMethod")
		assert.Contains(t, out, "AggregateInWhere")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := run(t, NewCheckCommand(), dir, func(c *config.Config) { c.Output = config.OutputJSON }, broken)
		require.ErrorIs(t, err, ErrProblemsFound)

		var errs []fileError
		require.NoError(t, json.Unmarshal([]byte(out), &errs))
		require.Len(t, errs, 3)
		for _, e := range errs {
			assert.Equal(t, broken, e.File)
			assert.Equal(t, 1, e.Line)
		}
	})

	t.Run("parse errors keep checking other files", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.qsql")
		require.NoError(t, os.WriteFile(bad, []byte("SELECT FROM WHERE"), 0o644))

		out, err := run(t, NewCheckCommand(), dir, nil, bad, broken)
		require.ErrorIs(t, err, ErrProblemsFound)
		assert.Contains(t, out, bad+":1:")
		assert.Contains(t, out, "ParseError")
		assert.Contains(t, out, "UnknownField")
	})
}

func TestFormatCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	path := filepath.Join(dir, "messy.qsql")
	require.NoError(t, os.WriteFile(path, []byte("select   age from demographics   where age>1"), 0o644))

	out, err := run(t, NewFormatCommand(), dir, nil, path)
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT age")

	_, err = run(t, NewFormatCommand(), dir, nil, "--check", path)
	require.Error(t, err)

	_, err = run(t, NewFormatCommand(), dir, nil, "--write", path)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))

	_, err = run(t, NewFormatCommand(), dir, nil, "--check", path)
	require.NoError(t, err)
}

func TestSchemaCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		args    []string
		wantOut []string
		wantErr bool
	}{
		{
			name:    "list tables",
			args:    []string{},
			wantOut: []string{"demographics", "visits", "sites", "participantid"},
		},
		{
			name:    "table columns",
			args:    []string{"visits"},
			wantOut: []string{"study.visits", "visitdate", "score"},
		},
		{
			name:    "yaml",
			args:    []string{"--yaml"},
			wantOut: []string{"tables:", "name: demographics"},
		},
		{
			name:    "json",
			mutate:  func(c *config.Config) { c.Output = config.OutputJSON },
			args:    []string{"lists.sites"},
			wantOut: []string{`"country"`},
		},
		{
			name:    "unknown table",
			args:    []string{"nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, NewSchemaCommand(), dir, tt.mutate, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestLineageCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	scores := testutil.QueryPath(dir, "scores.qsql")

	out, err := run(t, NewLineageCommand(), dir, nil, scores)
	require.NoError(t, err)
	assert.Contains(t, out, "Sources: study.visits")
	assert.Contains(t, out, "best <- study.visits.score [MAX]")

	out, err = run(t, NewLineageCommand(), dir, func(c *config.Config) { c.Output = config.OutputJSON }, "--column", "site", scores)
	require.NoError(t, err)
	assert.Contains(t, out, `"column": "site"`)
	assert.NotContains(t, out, `"best"`)

	_, err = run(t, NewLineageCommand(), dir, nil, "--column", "nope", scores)
	require.Error(t, err)

	_, err = run(t, NewLineageCommand(), dir, nil, testutil.QueryPath(dir, "broken.qsql"))
	require.Error(t, err)
}

func TestREPLBatch(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	input := `.dialect sqlserver
SELECT v.site FROM visits v
LIMIT 2;
.source
select age from demographics;
.tables
.bogus
.quit
`
	cmd := NewREPLCommand()
	cmd.SetIn(strings.NewReader(input))
	out, err := run(t, cmd, dir, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT TOP 2 v.site FROM study.visits AS v")
	assert.Contains(t, out, "source mode: true")
	assert.Contains(t, out, "SELECT age FROM demographics")
	assert.Contains(t, out, "lists")
	assert.Contains(t, out, "Unknown command: .bogus")
}

func TestREPLBatchWithoutSemicolon(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	cmd := NewREPLCommand()
	cmd.SetIn(strings.NewReader("SELECT nope FROM visits"))
	out, err := run(t, cmd, dir, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "UnknownField")
}

func TestRuntimeCatalog(t *testing.T) {
	t.Run("empty without schema", func(t *testing.T) {
		rt := &Runtime{
			Config: &config.Config{Dialect: "sqlserver"},
			Logger: logutil.NewTestLogger(t),
		}
		cat, err := rt.Catalog(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, cat.Len())

		again, err := rt.Catalog(context.Background())
		require.NoError(t, err)
		assert.Same(t, cat, again)
	})

	t.Run("missing schema file", func(t *testing.T) {
		rt := &Runtime{
			Config: &config.Config{Dialect: "postgres", Schema: config.SchemaConfig{File: filepath.Join(t.TempDir(), "none.yaml")}},
			Logger: logutil.NewTestLogger(t),
		}
		_, err := rt.Catalog(context.Background())
		require.ErrorContains(t, err, "failed to load schema")
	})

	t.Run("default runtime", func(t *testing.T) {
		rt := GetRuntime(context.Background())
		assert.Equal(t, config.DefaultDialect, rt.Config.Dialect)
		assert.NotNil(t, rt.Logger)
	})
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCompileCommand(), "compile <file>...", nil},
		{NewCheckCommand(), "check <file>...", []string{"watch"}},
		{NewFormatCommand(), "format <file>...", []string{"write", "check"}},
		{NewSchemaCommand(), "schema [table]", []string{"yaml"}},
		{NewREPLCommand(), "repl", nil},
		{NewLineageCommand(), "lineage <file>", []string{"column"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Long)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "flag %s", name)
			}
		})
	}
}
