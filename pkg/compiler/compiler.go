// Package compiler is the entry point of the query compiler. It ties the
// parser, the resolver and the two emitters together:
//
//	t, err := compiler.ParseAndResolve(src, &compiler.Options{Schema: catalog})
//	text := compiler.EmitSource(t)
//	res, err := compiler.EmitSQL(t, &sqlgen.Options{Dialect: postgres.Postgres})
//
// A Tree belongs to one goroutine. Independent trees may be compiled
// concurrently.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/format"
	"github.com/leapstack-labs/qsql/pkg/method"
	"github.com/leapstack-labs/qsql/pkg/parser"
	"github.com/leapstack-labs/qsql/pkg/resolve"
	"github.com/leapstack-labs/qsql/pkg/schema"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
	"github.com/leapstack-labs/qsql/pkg/tree"
)

// Options configures parsing and resolution.
type Options struct {
	Schema  schema.Provider  // nil resolves no tables
	Methods *method.Registry // nil uses the builtin registry
	Logger  *slog.Logger     // nil discards
}

// Tree is a parsed and resolved statement.
type Tree struct {
	// ID identifies the compile call in log records.
	ID string

	Arena     *tree.Arena
	Root      tree.ID
	Statement *ast.Statement
	Info      *resolve.Info

	// Errors holds the semantic errors of resolution, sorted by position.
	Errors diag.ErrorList

	opts   Options
	logger *slog.Logger
}

// ParseAndResolve parses src and resolves it against opts.Schema.
//
// A parse failure or a malformed tree returns a nil Tree. Semantic errors do
// not: the Tree is returned together with its error list so that callers can
// report every problem and still format the statement.
func ParseAndResolve(src string, opts *Options) (*Tree, error) {
	a, root, err := parser.Parse(src)
	id := uuid.New().String()
	o := options(opts)
	logger := o.Logger.With("compile_id", id)

	if err != nil {
		logger.Debug("compile phase", "phase", "parse", "errors", 1)
		return nil, err
	}
	logger.Debug("compile phase", "phase", "parse", "errors", 0, "nodes", a.Len())

	return build(id, a, root, o, logger)
}

func options(opts *Options) Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func build(id string, a *tree.Arena, root tree.ID, o Options, logger *slog.Logger) (*Tree, error) {
	stmt, err := ast.Build(a, root)
	if err != nil {
		return nil, err
	}

	info, errs := resolve.Resolve(stmt, &resolve.Config{
		Schema:  o.Schema,
		Methods: o.Methods,
		Logger:  logger,
	})
	logger.Debug("compile phase", "phase", "resolve", "errors", len(errs))

	t := &Tree{
		ID:        id,
		Arena:     a,
		Root:      root,
		Statement: stmt,
		Info:      info,
		Errors:    errs,
		opts:      o,
		logger:    logger,
	}
	return t, errs.Err()
}

// EmitSource regenerates canonical source text. Feeding the result back to
// ParseAndResolve yields a structurally equivalent tree.
func EmitSource(t *Tree) string {
	return format.Format(t.Statement)
}

// EmitSQL generates SQL for the dialect in opts along with the ordered
// parameter values. A tree with unresolved names fails with
// diag.ErrUnresolvedField.
func EmitSQL(t *Tree, opts *sqlgen.Options) (*sqlgen.Result, error) {
	if t == nil || t.Statement == nil {
		return nil, fmt.Errorf("%w: no resolved tree", diag.ErrUnresolvedField)
	}
	o := sqlgen.Options{}
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = t.logger
	}

	res, err := sqlgen.Generate(t.Statement, t.Info, &o)
	dialectName := ""
	if o.Dialect != nil {
		dialectName = o.Dialect.Name
	}
	errCount := 0
	if err != nil {
		errCount = 1
	}
	t.logger.Debug("compile phase", "phase", "emit", "errors", errCount, "dialect", dialectName)
	return res, err
}

// SyntaxCheck runs the validate phase and returns every structural problem
// of the statement.
func SyntaxCheck(t *Tree) diag.ErrorList {
	errs := resolve.SyntaxCheck(t.Statement)
	t.logger.Debug("compile phase", "phase", "validate", "errors", len(errs))
	return errs
}

// Check returns the resolution errors of t together with the errors of the
// validate phase, sorted by position.
func Check(t *Tree) diag.ErrorList {
	if t == nil {
		return nil
	}
	var errs diag.ErrorList
	errs.Append(t.Errors)
	errs.Append(SyntaxCheck(t))
	errs.Sort()
	return errs
}
