package postgres

import (
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func init() {
	dialect.Register(Postgres)
}

// postgresReservedWords contains common PostgreSQL reserved words.
// For a complete list, use pg_get_keywords() at runtime.
var postgresReservedWords = []string{
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "authorization", "between",
	"binary", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "cross", "current_date", "current_time",
	"current_timestamp", "current_user", "default", "desc", "distinct", "do",
	"else", "end", "except", "false", "fetch", "for", "foreign", "full",
	"grant", "having", "ilike", "in", "inner", "intersect", "into", "is",
	"join", "lateral", "leading", "left", "like", "limit", "natural", "not",
	"null", "offset", "on", "only", "or", "outer", "primary", "references",
	"returning", "right", "session_user", "some", "then", "to", "trailing",
	"true", "union", "unique", "using", "when", "window", "with",
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	WithReservedWords(postgresReservedWords...).
	Functions(map[string]string{
		"ceiling":   "CEIL",
		"lcase":     "LOWER",
		"ucase":     "UPPER",
		"truncate":  "TRUNC",
		"rand":      "RANDOM",
		"ifnull":    "COALESCE",
		"substring": "SUBSTR",
		"variance":  "VAR_SAMP",
	}).
	Templates(map[string]string{
		"curdate":    "CURRENT_DATE",
		"curtime":    "CURRENT_TIME",
		"now":        "CURRENT_TIMESTAMP",
		"dayofmonth": "EXTRACT(DAY FROM %s)",
		"dayofweek":  "(EXTRACT(DOW FROM %s) + 1)",
		"dayofyear":  "EXTRACT(DOY FROM %s)",
		"hour":       "EXTRACT(HOUR FROM %s)",
		"minute":     "EXTRACT(MINUTE FROM %s)",
		"second":     "EXTRACT(SECOND FROM %s)",
		"month":      "EXTRACT(MONTH FROM %s)",
		"monthname":  "TO_CHAR(%s, 'FMMonth')",
		"quarter":    "EXTRACT(QUARTER FROM %s)",
		"week":       "EXTRACT(WEEK FROM %s)",
		"year":       "EXTRACT(YEAR FROM %s)",
		"startswith": "STARTS_WITH(%s, %s)",

		// Aggregates
		"group_concat": "STRING_AGG(%s::text, ',')",
	}).
	CastTypes(map[types.Type]string{
		types.Double:      "DOUBLE PRECISION",
		types.Float:       "DOUBLE PRECISION",
		types.TinyInt:     "SMALLINT",
		types.LongVarchar: "TEXT",
		types.Binary:      "BYTEA",
	}).
	Build()
