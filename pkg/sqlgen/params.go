package sqlgen

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// paramValue is how one declared parameter is emitted.
type paramValue struct {
	value  any
	bound  bool     // value is bound at every use
	inline ast.Expr // non-literal default, rendered in place
}

// declare settles the value of every declared parameter: the runtime value,
// else the default, else NULL. A REQUIRED parameter without a runtime value
// fails even when the query never uses it.
func (g *generator) declare(params []*ast.Parameter) {
	for _, p := range params {
		key := fieldkey.Fold(p.Name)
		if _, seen := g.values[p]; seen {
			continue
		}

		if v, ok := g.params[key]; ok {
			cv, err := convert(v, p.Type)
			if err != nil {
				g.fail(fmt.Errorf("%w: parameter %s: %w", diag.ErrMalformedLiteral, p.Name, err))
				continue
			}
			g.values[p] = paramValue{value: cv, bound: true}
			continue
		}

		switch {
		case p.Required:
			g.fail(fmt.Errorf("%w: %s", diag.ErrMissingParameter, p.Name))
		case p.Default == nil:
			g.values[p] = paramValue{}
		default:
			if v, ok := literalValue(p.Default); ok {
				g.values[p] = paramValue{value: v, bound: true}
			} else {
				g.values[p] = paramValue{inline: p.Default}
			}
		}
	}

	for name := range g.params {
		if !declared(params, name) {
			g.logger.Debug("ignoring value for undeclared parameter", slog.String("name", name))
		}
	}
}

func declared(params []*ast.Parameter, folded string) bool {
	for _, p := range params {
		if fieldkey.Fold(p.Name) == folded {
			return true
		}
	}
	return false
}

// param renders one use of a parameter.
func (g *generator) param(p *ast.Parameter) string {
	pv := g.values[p]
	switch {
	case pv.bound:
		return g.bind(pv.value)
	case pv.inline != nil:
		return "(" + g.expr(noAliases, pv.inline) + ")"
	}
	return "NULL"
}

// sessionValue binds the host-context value of a session method.
func (g *generator) sessionValue(name string) string {
	v, ok := g.session[fieldkey.Fold(name)]
	if !ok {
		g.logger.Debug("no session value", slog.String("name", name))
		return "NULL"
	}
	return g.bind(v)
}

// literalValue returns the Go value of a literal expression.
func literalValue(x ast.Expr) (any, bool) {
	switch x := x.(type) {
	case *ast.BoolLit:
		return x.Value, true
	case *ast.NumberLit:
		if x.IsInt {
			return x.Int, true
		}
		return x.Float, true
	case *ast.StringLit:
		return x.Value, true
	case *ast.DateLit:
		return x.Value, true
	case *ast.TimestampLit:
		return x.Value, true
	case *ast.Operation:
		// A negative number is NEG applied to a literal.
		if x.Op == ast.OpNeg {
			if n, ok := x.Args[0].(*ast.NumberLit); ok {
				if n.IsInt {
					return -n.Int, true
				}
				return -n.Float, true
			}
		}
	}
	return nil, false
}

// convert coerces a runtime value to the declared type of its parameter.
// Values arriving as text, from a config file or the command line, are
// decoded weakly; other values pass through when they already fit.
func convert(v any, t types.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t.IsInteger():
		if f, ok := asFloat(v); ok && f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not a whole number for %s", v, t)
		}
		var n int64
		err := mapstructure.WeakDecode(v, &n)
		return n, err
	case t.IsNumeric():
		var f float64
		err := mapstructure.WeakDecode(v, &f)
		return f, err
	case t == types.Boolean:
		var b bool
		err := mapstructure.WeakDecode(v, &b)
		return b, err
	case t.IsText():
		var s string
		err := mapstructure.WeakDecode(v, &s)
		return s, err
	case t == types.Timestamp:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			return ast.ParseTimestamp(v)
		}
		return nil, fmt.Errorf("cannot use %T as %s", v, t)
	}
	return v, nil
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
