// Package dialect provides SQL dialect descriptors consumed by the SQL
// generator.
//
// A Dialect supplies the spellings that differ between target databases:
// identifier quoting, boolean literals, placeholders, row limiting, string
// concatenation, cast type names and function names. Concrete dialects are
// registered from pkg/dialects/*/ packages.
package dialect

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/types"
)

// NormalizationStrategy says how a dialect treats unquoted identifiers.
type NormalizationStrategy int

const (
	// NormLowercase folds unquoted identifiers to lower case (Postgres).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase folds unquoted identifiers to upper case.
	NormUppercase
	// NormCaseInsensitive compares identifiers without case (DuckDB, SQL Server, MySQL).
	NormCaseInsensitive
	// NormCaseSensitive keeps identifiers exactly as written.
	NormCaseSensitive
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence for QuoteEnd: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAtP uses @p1, @p2, etc. (SQL Server).
	PlaceholderAtP
)

// LimitStyle defines how a row limit is spelled.
type LimitStyle int

const (
	// LimitClause appends LIMIT n.
	LimitClause LimitStyle = iota
	// LimitTop inserts TOP n after SELECT.
	LimitTop
)

// ConcatStyle defines how string concatenation is spelled.
type ConcatStyle int

const (
	// ConcatOperator joins operands with ||.
	ConcatOperator ConcatStyle = iota
	// ConcatFunction calls CONCAT(a, b, ...).
	ConcatFunction
	// ConcatPlus joins operands with + (SQL Server).
	ConcatPlus
)

// SetMemberStyle defines how the members of a set operation are wrapped.
type SetMemberStyle int

const (
	// SetMemberParens wraps each member in parentheses.
	SetMemberParens SetMemberStyle = iota
	// SetMemberSubquery selects from each member as a derived table, for
	// engines that reject parenthesized compound members (SQLite).
	SetMemberSubquery
)

// Config is the pure data part of a dialect.
type Config struct {
	Name          string
	Identifiers   IdentifierConfig
	DefaultSchema string // "public" for Postgres, "main" for DuckDB and SQLite
	Placeholder   PlaceholderStyle
	Limit         LimitStyle
	Concat        ConcatStyle
	SetMembers    SetMemberStyle

	// NumericBooleans spells TRUE and FALSE as 1 and 0.
	NumericBooleans bool
	// StddevFunction is the sample standard deviation aggregate.
	StddevFunction string
	// RecursiveKeyword is set when a self-referencing WITH binding must be
	// introduced by WITH RECURSIVE.
	RecursiveKeyword bool
}

// Dialect represents a SQL dialect.
type Dialect struct {
	Name          string
	Identifiers   IdentifierConfig
	DefaultSchema string
	Placeholder   PlaceholderStyle
	Limit         LimitStyle
	Concat        ConcatStyle
	SetMembers    SetMemberStyle

	numericBooleans  bool
	stddev           string
	recursiveKeyword bool

	reservedWords map[string]struct{}
	functions     map[string]string     // method name -> dialect function name
	templates     map[string]string     // method name -> call template
	castTypes     map[types.Type]string // type -> CAST target spelling
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormLowercase, NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only when it is reserved or is
// not a plain lower-case name.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) || !isPlain(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

func isPlain(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// QuoteString renders a SQL string literal.
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// BoolLiteral spells a boolean constant.
func (d *Dialect) BoolLiteral(v bool) string {
	switch {
	case d.numericBooleans && v:
		return "1"
	case d.numericBooleans:
		return "0"
	case v:
		return "TRUE"
	default:
		return "FALSE"
	}
}

// StddevFunction returns the dialect's sample standard deviation aggregate.
func (d *Dialect) StddevFunction() string {
	if d.stddev == "" {
		return "STDDEV"
	}
	return d.stddev
}

// RequiresRecursiveKeyword reports whether self-referencing WITH bindings
// must be introduced by WITH RECURSIVE.
func (d *Dialect) RequiresRecursiveKeyword() bool {
	return d.recursiveKeyword
}

// ConcatExpr joins already-rendered operands.
func (d *Dialect) ConcatExpr(parts []string) string {
	switch d.Concat {
	case ConcatFunction:
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	case ConcatPlus:
		return strings.Join(parts, " + ")
	default:
		return strings.Join(parts, " || ")
	}
}

// FunctionName returns the dialect spelling of a method. Unmapped names are
// upper-cased.
func (d *Dialect) FunctionName(name string) string {
	if f, ok := d.functions[strings.ToLower(name)]; ok {
		return f
	}
	return strings.ToUpper(name)
}

// RenderCall renders a method call over already-rendered arguments. In a
// template, %s takes the next argument and %1 through %9 take an argument by
// position; any other % is literal. Without a template the call is
// NAME(args).
func (d *Dialect) RenderCall(name string, args []string) string {
	tpl, ok := d.templates[strings.ToLower(name)]
	if !ok {
		return d.FunctionName(name) + "(" + strings.Join(args, ", ") + ")"
	}
	return Expand(tpl, args)
}

// Expand fills a call template.
func Expand(tpl string, args []string) string {
	var sb strings.Builder
	next := 0
	arg := func(i int) {
		if i >= 0 && i < len(args) {
			sb.WriteString(args[i])
		}
	}
	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		if c != '%' || i+1 == len(tpl) {
			sb.WriteByte(c)
			continue
		}
		switch n := tpl[i+1]; {
		case n == 's':
			arg(next)
			next++
			i++
		case n >= '1' && n <= '9':
			arg(int(n - '1'))
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// CastType returns the CAST target spelling for t.
func (d *Dialect) CastType(t types.Type) string {
	if s, ok := d.castTypes[t]; ok {
		return s
	}
	return t.String()
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// New creates a dialect builder from a Config.
func New(cfg *Config) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:             cfg.Name,
			Identifiers:      cfg.Identifiers,
			DefaultSchema:    cfg.DefaultSchema,
			Placeholder:      cfg.Placeholder,
			Limit:            cfg.Limit,
			Concat:           cfg.Concat,
			SetMembers:       cfg.SetMembers,
			numericBooleans:  cfg.NumericBooleans,
			stddev:           cfg.StddevFunction,
			recursiveKeyword: cfg.RecursiveKeyword,
			reservedWords:    make(map[string]struct{}),
			functions:        make(map[string]string),
			templates:        make(map[string]string),
			castTypes:        make(map[types.Type]string),
		},
	}
}

// NewDialect creates a builder with ANSI defaults.
func NewDialect(name string) *Builder {
	return New(&Config{
		Name: name,
		Identifiers: IdentifierConfig{
			Quote:         `"`,
			QuoteEnd:      `"`,
			Escape:        `""`,
			Normalization: NormLowercase,
		},
	})
}

// WithReservedWords adds words that must be quoted as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Functions maps method names to dialect function names.
func (b *Builder) Functions(names map[string]string) *Builder {
	for k, v := range names {
		b.dialect.functions[strings.ToLower(k)] = v
	}
	return b
}

// Templates maps method names to call templates. See Expand.
func (b *Builder) Templates(tpls map[string]string) *Builder {
	for k, v := range tpls {
		b.dialect.templates[strings.ToLower(k)] = v
	}
	return b
}

// CastTypes maps types to CAST target spellings.
func (b *Builder) CastTypes(names map[types.Type]string) *Builder {
	for k, v := range names {
		b.dialect.castTypes[k] = v
	}
	return b
}

// Build returns the configured dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
