// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func init() {
	dialect.Register(DuckDB)
}

// Config is the DuckDB dialect configuration.
var Config = &dialect.Config{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   dialect.PlaceholderQuestion,
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormCaseInsensitive,
	},
	Limit:            dialect.LimitClause,
	Concat:           dialect.ConcatOperator,
	StddevFunction:   "STDDEV_SAMP",
	RecursiveKeyword: true,
}

var duckDBReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc", "both",
	"case", "cast", "check", "collate", "column", "constraint", "create",
	"default", "desc", "distinct", "do", "else", "end", "except", "false",
	"fetch", "for", "foreign", "from", "group", "having", "in", "initially",
	"intersect", "into", "lateral", "leading", "limit", "not", "null",
	"offset", "on", "only", "or", "order", "pivot", "primary", "qualify",
	"references", "returning", "select", "some", "table", "then", "to",
	"trailing", "true", "union", "unique", "unpivot", "using", "when",
	"where", "window", "with",
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.New(Config).
	WithReservedWords(duckDBReservedWords...).
	Functions(map[string]string{
		"ceiling":  "CEIL",
		"lcase":    "LOWER",
		"ucase":    "UPPER",
		"truncate": "TRUNC",
		"rand":     "RANDOM",
		"ifnull":   "COALESCE",
		"locate":   "INSTR",
	}).
	Templates(map[string]string{
		"curdate":    "CURRENT_DATE",
		"now":        "CURRENT_TIMESTAMP",
		"curtime":    "CAST(CURRENT_TIME AS TIME)",
		"monthname":  "MONTHNAME(%s)",
		"startswith": "STARTS_WITH(%s, %s)",
	}).
	CastTypes(map[types.Type]string{
		types.LongVarchar: "VARCHAR",
		types.Binary:      "BLOB",
	}).
	Build()
