// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import "github.com/leapstack-labs/qsql/pkg/dialect"

// Config is the PostgreSQL dialect configuration.
var Config = &dialect.Config{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   dialect.PlaceholderDollar,
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormLowercase, // Postgres normalizes unquoted to lowercase
	},
	Limit:            dialect.LimitClause,
	Concat:           dialect.ConcatOperator,
	StddevFunction:   "STDDEV_SAMP",
	RecursiveKeyword: true,
}
