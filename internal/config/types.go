// Package config loads the qsql configuration.
//
// Values are layered, lowest to highest: built-in defaults, qsql.yaml,
// QSQL_* environment variables and explicitly set command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

// Config holds all qsql configuration options.
type Config struct {
	Dialect     string         `koanf:"dialect"`
	Schema      SchemaConfig   `koanf:"schema"`
	AllowUnsafe bool           `koanf:"allow_unsafe"`
	Params      map[string]any `koanf:"params"`
	Session     map[string]any `koanf:"session"`
	Output      string         `koanf:"output"`
	Verbose     bool           `koanf:"verbose"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// SchemaConfig says where table metadata comes from. A YAML catalog file
// wins over a live source.
type SchemaConfig struct {
	File    string   `koanf:"file"`
	Source  string   `koanf:"source"`
	DSN     string   `koanf:"dsn"`
	Schemas []string `koanf:"schemas"`
}

// Default configuration values.
const (
	DefaultDialect = "postgres"
	DefaultOutput  = OutputText

	FileName    = "qsql.yaml"
	FileNameAlt = "qsql.yml"
	EnvPrefix   = "QSQL_"
)

// Output formats.
const (
	OutputText  = "text"
	OutputTable = "table"
	OutputJSON  = "json"
)

var outputs = []string{OutputText, OutputTable, OutputJSON}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if _, err := dialect.Lookup(c.Dialect); err != nil {
		return err
	}
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("unknown output format %q (expected one of %s)", c.Output, strings.Join(outputs, ", "))
	}
	if c.Schema.File == "" && c.Schema.Source != "" {
		if _, ok := schema.Get(c.Schema.Source); !ok {
			return &schema.UnknownSourceError{Name: c.Schema.Source, Available: schema.ListSources()}
		}
		if c.Schema.DSN == "" {
			return fmt.Errorf("schema source %s requires schema.dsn", c.Schema.Source)
		}
	}
	return nil
}
