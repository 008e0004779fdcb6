package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register dialects and schema sources via init()
	_ "github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/sqlserver"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/sqlite"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("dialect", DefaultDialect, "")
	fs.String("schema-file", "", "")
	fs.String("dsn", "", "")
	fs.StringSlice("schemas", nil, "")
	fs.StringToString("param", nil, "")
	fs.Bool("allow-unsafe", false, "")
	fs.String("output", DefaultOutput, "")
	return fs
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultDialect, cfg.Dialect)
	assert.Equal(t, OutputText, cfg.Output)
	assert.False(t, cfg.AllowUnsafe)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileFoundUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
dialect: SQLServer
schema:
  file: catalog.yaml
params:
  MinAge: 30
`)
	sub := filepath.Join(root, "queries", "study")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", cfg.Dialect)
	assert.Equal(t, filepath.Join(root, "catalog.yaml"), cfg.Schema.File)
	assert.Equal(t, 30, cfg.Params["MinAge"])
	assert.Equal(t, root, cfg.ProjectRoot)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeConfig(t, dir, `
dialect: postgres
output: table
schema:
  source: sqlite
  dsn: ${QSQL_TEST_DB}
`)
	t.Setenv("QSQL_TEST_DB", "study.db")
	t.Setenv("QSQL_OUTPUT", "json")
	t.Setenv("QSQL_SCHEMA_SCHEMAS", "main,aux")
	t.Setenv("QSQL_PARAMS_LABEL", "from-env")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--dialect", "sqlserver", "--allow-unsafe"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "sqlserver", cfg.Dialect, "flag beats file")
	assert.Equal(t, OutputJSON, cfg.Output, "env beats file")
	assert.True(t, cfg.AllowUnsafe)
	assert.Equal(t, "study.db", cfg.Schema.DSN)
	assert.Equal(t, []string{"main", "aux"}, cfg.Schema.Schemas)
	assert.Equal(t, "from-env", cfg.Params["label"])
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FlagParams(t *testing.T) {
	t.Chdir(t.TempDir())

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--param", "minage=21", "--schema-file", "cat.yaml"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "21", cfg.Params["minage"])
	assert.True(t, filepath.IsAbs(cfg.Schema.File))
	assert.Equal(t, "cat.yaml", filepath.Base(cfg.Schema.File))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		errSubstr string
	}{
		{"valid", Config{Dialect: "postgres", Output: OutputTable}, ""},
		{"unknown dialect", Config{Dialect: "oracle", Output: OutputText}, "unknown dialect"},
		{"missing dialect", Config{Output: OutputText}, "dialect"},
		{"unknown output", Config{Dialect: "postgres", Output: "xml"}, "unknown output format"},
		{"unknown source", Config{Dialect: "postgres", Output: OutputText, Schema: SchemaConfig{Source: "oracle"}}, "unknown schema source"},
		{"source without dsn", Config{Dialect: "postgres", Output: OutputText, Schema: SchemaConfig{Source: "sqlite"}}, "requires schema.dsn"},
		{"file wins over source", Config{Dialect: "postgres", Output: OutputText, Schema: SchemaConfig{File: "c.yaml", Source: "oracle"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"QSQL_DIALECT":       "dialect",
		"QSQL_ALLOW_UNSAFE":  "allow_unsafe",
		"QSQL_SCHEMA_DSN":    "schema.dsn",
		"QSQL_PARAMS_MINAGE": "params.minage",
		"QSQL_SESSION_USER":  "session.user",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
