// Package sqlserver provides the Microsoft SQL Server dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlserver

import (
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func init() {
	dialect.Register(SQLServer)
}

// Config is the SQL Server dialect configuration.
var Config = &dialect.Config{
	Name:          "sqlserver",
	DefaultSchema: "dbo",
	Placeholder:   dialect.PlaceholderAtP,
	Identifiers: dialect.IdentifierConfig{
		Quote:         "[",
		QuoteEnd:      "]",
		Escape:        "]]",
		Normalization: dialect.NormCaseInsensitive,
	},
	Limit:           dialect.LimitTop,
	Concat:          dialect.ConcatPlus,
	NumericBooleans: true,
	StddevFunction:  "STDEV",
	// T-SQL infers recursion; WITH RECURSIVE is a syntax error.
	RecursiveKeyword: false,
}

var sqlServerReservedWords = []string{
	"add", "all", "alter", "and", "any", "as", "asc", "authorization",
	"backup", "begin", "between", "break", "browse", "bulk", "by", "cascade",
	"case", "check", "checkpoint", "close", "clustered", "coalesce",
	"collate", "column", "commit", "compute", "constraint", "contains",
	"continue", "convert", "create", "cross", "current", "cursor", "database",
	"default", "delete", "desc", "distinct", "double", "drop", "else", "end",
	"escape", "except", "exec", "exists", "file", "for", "foreign", "from",
	"full", "function", "grant", "group", "having", "identity", "if", "in",
	"index", "inner", "insert", "intersect", "into", "is", "join", "key",
	"left", "like", "merge", "not", "null", "nullif", "of", "on", "open",
	"or", "order", "outer", "percent", "pivot", "primary", "procedure",
	"public", "right", "rule", "schema", "select", "set", "table", "then",
	"to", "top", "tran", "union", "unique", "unpivot", "update", "use",
	"user", "values", "view", "when", "where", "while", "with",
}

// SQLServer is the SQL Server dialect.
var SQLServer = dialect.New(Config).
	WithReservedWords(sqlServerReservedWords...).
	Functions(map[string]string{
		"lcase":     "LOWER",
		"ucase":     "UPPER",
		"length":    "LEN",
		"locate":    "CHARINDEX",
		"ifnull":    "ISNULL",
		"log":       "LOG",
		"power":     "POWER",
		"ceiling":   "CEILING",
		"atan2":     "ATN2",
		"substring": "SUBSTRING",
		"variance":  "VAR",
	}).
	Templates(map[string]string{
		"curdate":    "CAST(GETDATE() AS DATE)",
		"curtime":    "CAST(GETDATE() AS TIME)",
		"now":        "GETDATE()",
		"mod":        "(%s % %s)",
		"truncate":   "ROUND(%s, %s, 1)",
		"year":       "DATEPART(year, %s)",
		"month":      "DATEPART(month, %s)",
		"dayofmonth": "DATEPART(day, %s)",
		"dayofweek":  "DATEPART(weekday, %s)",
		"dayofyear":  "DATEPART(dayofyear, %s)",
		"hour":       "DATEPART(hour, %s)",
		"minute":     "DATEPART(minute, %s)",
		"second":     "DATEPART(second, %s)",
		"week":       "DATEPART(week, %s)",
		"quarter":    "DATEPART(quarter, %s)",
		"startswith": "(LEFT(%1, LEN(%2)) = %2)",
		"monthname":  "DATENAME(month, %s)",

		// Aggregates. STRING_AGG takes no DISTINCT.
		"group_concat": "STRING_AGG(CAST(%s AS NVARCHAR(MAX)), ',')",
	}).
	CastTypes(map[types.Type]string{
		types.Boolean:     "BIT",
		types.Double:      "FLOAT",
		types.LongVarchar: "NVARCHAR(MAX)",
		types.Varchar:     "NVARCHAR(4000)",
		types.Timestamp:   "DATETIME2",
		types.Binary:      "VARBINARY(MAX)",
	}).
	Build()
