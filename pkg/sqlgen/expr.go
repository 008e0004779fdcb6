package sqlgen

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/resolve"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// names says how references to select-list columns are spelled in a clause.
type names struct {
	// sel is the block whose select-list aliases are replaced by the
	// expressions they name. Nil spells aliases as column names.
	sel *ast.Select
	// outer is set for the outer query of a pivot, which reads the output
	// columns of the grouped inner query.
	outer bool
}

var noAliases = names{}

const timestampLayout = "2006-01-02 15:04:05.999999999"

func (g *generator) exprs(n names, xs []ast.Expr, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = g.expr(n, x)
	}
	return strings.Join(parts, sep)
}

func (g *generator) expr(n names, x ast.Expr) string {
	switch x := x.(type) {
	case *ast.BoolLit:
		return g.d.BoolLiteral(x.Value)
	case *ast.NumberLit:
		return x.Text
	case *ast.StringLit:
		return g.d.QuoteString(x.Value)
	case *ast.DateLit:
		return "CAST(" + g.d.QuoteString(x.Value.Format(time.DateOnly)) + " AS " + g.d.CastType(types.Date) + ")"
	case *ast.TimestampLit:
		return "CAST(" + g.d.QuoteString(x.Value.Format(timestampLayout)) + " AS " + g.d.CastType(types.Timestamp) + ")"
	case *ast.NullLit:
		return "NULL"

	case *ast.Ident, *ast.Dot, *ast.FieldRef:
		return g.reference(n, x)

	case *ast.RowStar:
		if x.Table == nil {
			return "*"
		}
		// Every table term carries its reference name as alias.
		return g.quote(x.Table.Name()) + ".*"

	case *ast.Operation:
		return g.operation(n, x)
	case *ast.Aggregate:
		return g.aggregate(n, x)
	case *ast.Call:
		return g.call(n, x)

	case *ast.Case:
		var sb strings.Builder
		sb.WriteString("CASE")
		if x.Operand != nil {
			sb.WriteString(" " + g.expr(n, x.Operand))
		}
		for _, w := range x.Whens {
			sb.WriteString(" WHEN " + g.expr(n, w.Cond) + " THEN " + g.expr(n, w.Result))
		}
		if x.Else != nil {
			sb.WriteString(" ELSE " + g.expr(n, x.Else))
		}
		sb.WriteString(" END")
		return sb.String()

	case *ast.Cast:
		return "CAST(" + g.expr(n, x.X) + " AS " + g.castType(x.TypeName) + ")"

	case *ast.Subquery:
		return "(" + g.query(x.Query) + ")"
	case *ast.Exists:
		return "EXISTS (" + g.query(x.Query.Query) + ")"
	case *ast.ExprList:
		return "(" + g.exprs(n, x.Items, ", ") + ")"

	case *ast.IfDefined:
		if !g.info.Defined[x] {
			return "NULL"
		}
		return g.expr(n, x.X)

	case *ast.Unsafe:
		if !g.opts.AllowUnsafe {
			g.fail(fmt.Errorf("%w: line %d", diag.ErrUnsafeExpression, x.Pos().Line))
			return ""
		}
		return x.SQL
	}

	g.fail(fmt.Errorf("sqlgen: unexpected expression %T", x))
	return ""
}

// reference renders a field, a select-list alias or a parameter.
func (g *generator) reference(n names, x ast.Expr) string {
	if f, ok := g.info.Fields[x]; ok {
		if f.Relation == nil {
			return g.alias(n, f)
		}
		if n.outer {
			return g.quote(g.innerName(n.sel, f))
		}
		return g.quote(f.Relation.RefName()) + "." + g.quote(f.Column.Name)
	}
	if p, ok := g.info.Params[x]; ok {
		return g.param(p)
	}
	g.fail(fmt.Errorf("%w: %s at line %d", diag.ErrUnresolvedField, ast.KeyOf(x), x.Pos().Line))
	return ""
}

// alias renders a reference to a select-list column. Inside the block that
// defines it the aliased expression is substituted, since HAVING and
// expressions in ORDER BY cannot see aliases in every dialect.
func (g *generator) alias(n names, f *resolve.Field) string {
	if n.sel != nil && !n.outer {
		if item := itemNamed(n.sel, f.Column.Name); item != nil {
			return g.operand(item.X, true)
		}
	}
	return g.quote(f.Column.Name)
}

// operand renders x, parenthesized when it is an operation and wrap is set.
func (g *generator) operand(x ast.Expr, wrap bool) string {
	s := g.expr(noAliases, x)
	if _, op := x.(*ast.Operation); op && wrap {
		return "(" + s + ")"
	}
	return s
}

func itemNamed(s *ast.Select, name string) *ast.SelectItem {
	folded := fieldkey.Fold(name)
	for i, item := range s.Items {
		if fieldkey.Fold(resolve.OutputName(item, i)) == folded {
			return item
		}
	}
	return nil
}

// innerName names the inner output column holding a field, for the outer
// query of a pivot.
func (g *generator) innerName(s *ast.Select, f *resolve.Field) string {
	if s != nil {
		for i, item := range s.Items {
			if sameField(g.info.Fields[item.X], f) {
				return resolve.OutputName(item, i)
			}
		}
	}
	return f.Column.Name
}

func sameField(a, b *resolve.Field) bool {
	return a != nil && b != nil && a.Relation == b.Relation && a.Column == b.Column
}

func (g *generator) operation(n names, x *ast.Operation) string {
	op := x.Op
	arg := func(i int) string {
		s := g.expr(n, x.Args[i])
		if needsParens(op, i, x.Args[i]) {
			return "(" + s + ")"
		}
		return s
	}

	if op == ast.OpConcat {
		parts := make([]string, len(x.Args))
		for i := range x.Args {
			parts[i] = arg(i)
		}
		return g.d.ConcatExpr(parts)
	}

	switch op.Form {
	case ast.Prefix:
		s := arg(0)
		if op == ast.OpNot || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			// "- -a" must not become the comment "--a".
			return op.SQL + " " + s
		}
		return op.SQL + s
	case ast.Postfix:
		return arg(0) + " " + op.SQL
	case ast.Member:
		return arg(0) + " " + op.SQL + " " + g.expr(n, x.Args[1])
	case ast.Range:
		return arg(0) + " " + op.SQL + " " + arg(1) + " AND " + arg(2)
	case ast.Match:
		s := arg(0) + " " + op.SQL + " " + arg(1)
		if len(x.Args) == 3 {
			s += " ESCAPE " + arg(2)
		}
		return s
	}

	parts := make([]string, len(x.Args))
	for i := range x.Args {
		parts[i] = arg(i)
	}
	return strings.Join(parts, " "+op.SQL+" ")
}

// sqlLevel is the precedence of op in target SQL. Postfix, membership, range
// and pattern tests all bind as comparisons there.
func sqlLevel(op *ast.Operator) ast.Precedence {
	if op.Form != ast.Infix && op.Form != ast.Prefix {
		return ast.PrecComparison
	}
	return op.Prec
}

// opaque operators have no precedence shared by the target dialects.
func opaque(op *ast.Operator) bool {
	return op.Prec == ast.PrecBitwise || op == ast.OpConcat
}

func logical(op *ast.Operator) bool {
	return op == ast.OpAnd || op == ast.OpOr || op == ast.OpNot
}

// needsParens decides whether operand i of parent must be parenthesized in
// SQL. Logical connectives follow the source rules. Below them comparisons
// never chain, and bitwise or concatenation operands are wrapped unless they
// repeat the same associative operator.
func needsParens(parent *ast.Operator, i int, operand ast.Expr) bool {
	if logical(parent) {
		return parent.NeedsParens(i, operand)
	}
	inner, ok := operand.(*ast.Operation)
	if !ok {
		return false
	}
	child, level := sqlLevel(inner.Op), sqlLevel(parent)
	switch {
	case opaque(inner.Op) || opaque(parent):
		return inner.Op != parent || !parent.Associative
	case child == ast.PrecComparison || child.Looser(level):
		return true
	case child != level || parent.Form == ast.Prefix || i == 0:
		return false
	}
	return inner.Op != parent || !parent.Associative
}

func (g *generator) aggregate(n names, x *ast.Aggregate) string {
	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = g.expr(n, a)
	}
	if x.Distinct && len(args) > 0 {
		args[0] = "DISTINCT " + args[0]
	}

	switch x.Func {
	case "stddev":
		return g.d.StddevFunction() + "(" + strings.Join(args, ", ") + ")"
	case "variance":
		return g.d.FunctionName(x.Func) + "(" + strings.Join(args, ", ") + ")"
	case "group_concat":
		return g.d.RenderCall(x.Func, args)
	}
	return strings.ToUpper(x.Func) + "(" + strings.Join(args, ", ") + ")"
}

// call renders a method call. A call the resolver could not bind renders as
// a string literal naming the problem so that the rest of the statement
// still generates.
func (g *generator) call(n names, x *ast.Call) string {
	m, ok := g.info.Methods[x]
	if !ok {
		g.logger.Warn("unresolved method in generated sql",
			slog.String("method", x.Name),
			slog.Int("line", x.Pos().Line))
		return g.d.QuoteString("#ERROR: unknown method " + x.Name)
	}
	if m.Session != "" {
		return g.sessionValue(m.Session)
	}

	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = g.expr(n, a)
	}
	return m.Render(g.d, args)
}

// castType spells a CAST target. A precision suffix is kept when the dialect
// does not respell the type.
func (g *generator) castType(name string) string {
	t, ok := types.Lookup(name)
	if !ok {
		return name
	}
	spelled := g.d.CastType(t)
	if i := strings.IndexByte(name, '('); i >= 0 && spelled == t.String() {
		return spelled + name[i:]
	}
	return spelled
}
