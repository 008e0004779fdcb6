// Package mysql provides the MySQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package mysql

import (
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func init() {
	dialect.Register(MySQL)
}

// Config is the MySQL dialect configuration.
var Config = &dialect.Config{
	Name:          "mysql",
	DefaultSchema: "",
	Placeholder:   dialect.PlaceholderQuestion,
	Identifiers: dialect.IdentifierConfig{
		Quote:         "`",
		QuoteEnd:      "`",
		Escape:        "``",
		Normalization: dialect.NormCaseInsensitive,
	},
	Limit: dialect.LimitClause,
	// || is logical OR unless PIPES_AS_CONCAT is set.
	Concat:           dialect.ConcatFunction,
	StddevFunction:   "STDDEV_SAMP",
	RecursiveKeyword: true,
}

var mySQLReservedWords = []string{
	"accessible", "add", "all", "alter", "analyze", "and", "as", "asc",
	"before", "between", "both", "by", "call", "cascade", "case", "change",
	"check", "collate", "column", "condition", "constraint", "create",
	"cross", "cube", "current_date", "database", "default", "delete", "desc",
	"distinct", "div", "drop", "else", "elseif", "exists", "explain",
	"false", "for", "foreign", "from", "fulltext", "grant", "group",
	"having", "if", "ignore", "in", "index", "inner", "insert", "interval",
	"into", "is", "join", "key", "keys", "kill", "left", "like", "limit",
	"lines", "load", "lock", "match", "mod", "natural", "not", "null", "on",
	"option", "or", "order", "outer", "partition", "primary", "range",
	"rank", "read", "references", "regexp", "rename", "replace", "require",
	"right", "rlike", "row", "rows", "schema", "select", "set", "show",
	"table", "then", "to", "true", "union", "unique", "update", "usage",
	"use", "using", "values", "when", "where", "while", "with", "write",
}

// MySQL is the MySQL dialect.
var MySQL = dialect.New(Config).
	WithReservedWords(mySQLReservedWords...).
	Functions(map[string]string{
		"truncate":  "TRUNCATE",
		"ifnull":    "IFNULL",
		"substring": "SUBSTRING",
	}).
	Templates(map[string]string{
		"startswith": "(LEFT(%1, CHAR_LENGTH(%2)) = %2)",
	}).
	CastTypes(map[types.Type]string{
		types.Integer:     "SIGNED",
		types.BigInt:      "SIGNED",
		types.SmallInt:    "SIGNED",
		types.TinyInt:     "SIGNED",
		types.Boolean:     "UNSIGNED",
		types.Varchar:     "CHAR",
		types.LongVarchar: "CHAR",
		types.Double:      "DOUBLE",
		types.Float:       "DOUBLE",
		types.Real:        "DOUBLE",
		types.Timestamp:   "DATETIME",
		types.Binary:      "BINARY",
	}).
	Build()
