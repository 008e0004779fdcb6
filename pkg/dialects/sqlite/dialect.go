// Package sqlite provides the SQLite SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func init() {
	dialect.Register(SQLite)
}

// Config is the SQLite dialect configuration.
var Config = &dialect.Config{
	Name:          "sqlite",
	DefaultSchema: "main",
	Placeholder:   dialect.PlaceholderQuestion,
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormCaseInsensitive,
	},
	Limit:      dialect.LimitClause,
	Concat:     dialect.ConcatOperator,
	SetMembers: dialect.SetMemberSubquery,
	// SQLite has booleans only as integers.
	NumericBooleans:  true,
	StddevFunction:   "STDDEV",
	RecursiveKeyword: true,
}

var sqliteReservedWords = []string{
	"abort", "action", "add", "after", "all", "alter", "and", "as", "asc",
	"between", "by", "case", "cast", "check", "collate", "column", "commit",
	"constraint", "create", "cross", "default", "delete", "desc", "distinct",
	"drop", "else", "end", "escape", "except", "exists", "from", "full",
	"glob", "group", "having", "in", "index", "inner", "insert", "intersect",
	"into", "is", "isnull", "join", "left", "like", "limit", "match",
	"natural", "not", "notnull", "null", "offset", "on", "or", "order",
	"outer", "primary", "references", "regexp", "right", "select", "set",
	"table", "then", "to", "union", "unique", "update", "using", "values",
	"when", "where", "with",
}

// SQLite is the SQLite dialect.
var SQLite = dialect.New(Config).
	WithReservedWords(sqliteReservedWords...).
	Functions(map[string]string{
		"lcase":     "LOWER",
		"ucase":     "UPPER",
		"ifnull":    "IFNULL",
		"substring": "SUBSTR",
		"length":    "LENGTH",
		"locate":    "INSTR",
		"rand":      "RANDOM",
		"greatest":  "MAX",
		"least":     "MIN",
	}).
	Templates(map[string]string{
		"curdate":    "DATE('now')",
		"curtime":    "TIME('now')",
		"now":        "DATETIME('now')",
		"year":       "CAST(STRFTIME('%Y', %s) AS INTEGER)",
		"month":      "CAST(STRFTIME('%m', %s) AS INTEGER)",
		"dayofmonth": "CAST(STRFTIME('%d', %s) AS INTEGER)",
		"dayofweek":  "(CAST(STRFTIME('%w', %s) AS INTEGER) + 1)",
		"dayofyear":  "CAST(STRFTIME('%j', %s) AS INTEGER)",
		"hour":       "CAST(STRFTIME('%H', %s) AS INTEGER)",
		"minute":     "CAST(STRFTIME('%M', %s) AS INTEGER)",
		"second":     "CAST(STRFTIME('%S', %s) AS INTEGER)",
		"week":       "CAST(STRFTIME('%W', %s) AS INTEGER)",
		"startswith": "(SUBSTR(%1, 1, LENGTH(%2)) = %2)",
		"quarter":    "((CAST(STRFTIME('%m', %s) AS INTEGER) + 2) / 3)",
	}).
	CastTypes(map[types.Type]string{
		types.Boolean:     "INTEGER",
		types.Double:      "REAL",
		types.Float:       "REAL",
		types.Varchar:     "TEXT",
		types.Char:        "TEXT",
		types.LongVarchar: "TEXT",
		types.Timestamp:   "TEXT",
		types.Date:        "TEXT",
		types.Binary:      "BLOB",
	}).
	Build()
