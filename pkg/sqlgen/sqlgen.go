// Package sqlgen generates dialect SQL from a resolved query tree.
//
// Generation is a single walk over the typed tree that consults the
// resolution results for every name: fields become qualified column
// references, parameters and host-context values become bind placeholders,
// and methods render through the dialect. The output is one line of SQL plus
// the ordered parameter values for its placeholders.
package sqlgen

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/resolve"
)

// ErrNoDialect is returned when Options carry no dialect.
var ErrNoDialect = errors.New("sqlgen: dialect is required")

// Options control SQL generation.
type Options struct {
	Dialect *dialect.Dialect

	// Params holds runtime parameter values by case-insensitive name.
	// Strings are converted to the declared parameter type.
	Params map[string]any
	// Session holds host-context values (userid, username, foldername) by
	// case-insensitive name.
	Session map[string]any
	// PivotValues supplies the pivot values of a PIVOT without an IN list,
	// keyed by the name of its BY field.
	PivotValues map[string][]any

	// AllowUnsafe permits unsafe_sql fragments.
	AllowUnsafe bool
	// SetOps combines the members of a set operation. Nil uses DefaultSetOps.
	SetOps SetOperationResolver
	Logger *slog.Logger
}

// Result is generated SQL with the values of its placeholders, in order.
type Result struct {
	SQL  string
	Args []any
}

// Generate renders a resolved statement. info must come from resolving stmt;
// a reference the resolver did not bind fails with diag.ErrUnresolvedField.
func Generate(stmt *ast.Statement, info *resolve.Info, opts *Options) (*Result, error) {
	if opts == nil || opts.Dialect == nil {
		return nil, ErrNoDialect
	}
	g := newGenerator(info, opts)

	sql := g.statement(stmt)
	if g.err != nil {
		return nil, g.err
	}

	g.logger.Debug("generated sql",
		slog.String("dialect", g.d.Name),
		slog.Int("args", len(g.args)))
	return &Result{SQL: sql, Args: g.args}, nil
}

type generator struct {
	d      *dialect.Dialect
	info   *resolve.Info
	opts   *Options
	setOps SetOperationResolver
	logger *slog.Logger

	params  map[string]any // folded name -> runtime value
	session map[string]any
	pivots  map[string][]any
	values  map[*ast.Parameter]paramValue

	// args accumulates bind values; placeholders are numbered from 1.
	args []any
	// err is the first contract violation; rendering continues but the
	// result is discarded.
	err error
}

func newGenerator(info *resolve.Info, opts *Options) *generator {
	g := &generator{
		d:       opts.Dialect,
		info:    info,
		opts:    opts,
		setOps:  opts.SetOps,
		logger:  opts.Logger,
		params:  foldKeys(opts.Params),
		session: foldKeys(opts.Session),
		pivots:  make(map[string][]any, len(opts.PivotValues)),
		values:  make(map[*ast.Parameter]paramValue),
	}
	for k, v := range opts.PivotValues {
		g.pivots[fieldkey.Fold(k)] = v
	}
	if g.setOps == nil {
		g.setOps = DefaultSetOps
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	return g
}

func foldKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[fieldkey.Fold(k)] = v
	}
	return out
}

func (g *generator) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

// bind appends a value and returns its placeholder.
func (g *generator) bind(v any) string {
	g.args = append(g.args, v)
	return g.d.FormatPlaceholder(len(g.args))
}

// quote spells an identifier, quoting only when the dialect would otherwise
// change or reject it.
func (g *generator) quote(name string) string {
	switch g.d.Identifiers.Normalization {
	case dialect.NormLowercase, dialect.NormCaseInsensitive:
		return g.d.QuoteIdentifierIfNeeded(name)
	}
	return g.d.QuoteIdentifier(name)
}

func (g *generator) quoteKey(key *fieldkey.FieldKey) string {
	parts := key.Parts()
	for i, p := range parts {
		parts[i] = g.quote(p)
	}
	return strings.Join(parts, ".")
}

func (g *generator) statement(stmt *ast.Statement) string {
	if stmt == nil {
		g.fail(errors.New("sqlgen: nil statement"))
		return ""
	}
	g.declare(stmt.Parameters)

	// Placeholders must number in text order, so the bindings go first.
	if stmt.With == nil || len(stmt.With.CTEs) == 0 {
		return g.query(stmt.Body)
	}
	with := g.with(stmt.With)
	return with + " " + g.query(stmt.Body)
}

func (g *generator) with(w *ast.With) string {
	var sb strings.Builder
	sb.WriteString("WITH ")
	if g.recursive(w) {
		sb.WriteString("RECURSIVE ")
	}
	for i, cte := range w.CTEs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(g.quote(cte.Name))
		sb.WriteString(" AS (")
		sb.WriteString(g.query(cte.Query))
		sb.WriteString(")")
	}
	return sb.String()
}

// recursive reports whether the WITH keyword needs RECURSIVE in this dialect.
func (g *generator) recursive(w *ast.With) bool {
	if !g.d.RequiresRecursiveKeyword() {
		return false
	}
	if w.Recursive {
		return true
	}
	for _, cte := range w.CTEs {
		if g.info.Recursive[cte] {
			return true
		}
	}
	return false
}
