package format

import (
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/token"
)

func (p *Printer) formatExpr(e ast.Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *ast.BoolLit:
		if expr.Value {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case *ast.NumberLit:
		p.write(expr.Text)
	case *ast.StringLit:
		p.write(quoteString(expr.Value))
	case *ast.DateLit:
		p.write("DATE ")
		p.write(quoteString(expr.Text))
	case *ast.TimestampLit:
		p.write("TIMESTAMP ")
		p.write(quoteString(expr.Text))
	case *ast.NullLit:
		p.kw(token.NULL)
	case *ast.Ident:
		p.write(fieldkey.Quote(expr.Name))
	case *ast.Dot:
		p.formatExpr(expr.Left)
		p.write(".")
		p.formatExpr(expr.Right)
	case *ast.FieldRef:
		p.write(expr.Key.String())
	case *ast.RowStar:
		if expr.Table != nil {
			p.write(expr.Table.String())
			p.write(".")
		}
		p.write("*")
	case *ast.Operation:
		p.formatOperation(expr)
	case *ast.Aggregate:
		p.formatCall(strings.ToUpper(expr.Func), expr.Distinct, expr.Args)
	case *ast.Call:
		p.formatCall(expr.Name, false, expr.Args)
	case *ast.Case:
		p.formatCaseExpr(expr)
	case *ast.Cast:
		p.kw(token.CAST)
		p.write("(")
		p.formatExpr(expr.X)
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(expr.TypeName)
		p.write(")")
	case *ast.Subquery:
		p.formatSubquery(expr)
	case *ast.Exists:
		p.kw(token.EXISTS)
		p.space()
		p.formatSubquery(expr.Query)
	case *ast.ExprList:
		p.write("(")
		p.formatList(len(expr.Items), func(i int) { p.formatExpr(expr.Items[i]) }, ", ", false)
		p.write(")")
	case *ast.IfDefined:
		p.write("IFDEFINED(")
		p.formatExpr(expr.X)
		p.write(")")
	case *ast.Unsafe:
		p.write("unsafe_sql(")
		p.write(quoteString(expr.SQL))
		p.write(")")
	}
}

// operand prints operand i of op, wrapped in parentheses when the
// precedence table requires it.
func (p *Printer) operand(op *ast.Operator, i int, x ast.Expr) {
	if op.NeedsParens(i, x) {
		p.write("(")
		p.formatExpr(x)
		p.write(")")
		return
	}
	p.formatExpr(x)
}

func (p *Printer) formatOperation(o *ast.Operation) {
	op := o.Op
	switch op.Form {
	case ast.Prefix:
		p.write(op.Source)
		if op == ast.OpNot || startsWithPrefix(o.Args[0]) {
			p.space()
		}
		p.operand(op, 0, o.Args[0])

	case ast.Postfix:
		p.operand(op, 0, o.Args[0])
		p.space()
		p.write(op.Source)

	case ast.Member:
		p.operand(op, 0, o.Args[0])
		p.space()
		p.write(op.Source)
		p.space()
		// The right side is always a list or a sub-query and carries its own
		// parentheses.
		p.formatExpr(o.Args[1])

	case ast.Range:
		p.operand(op, 0, o.Args[0])
		p.space()
		p.write(op.Source)
		p.space()
		p.operand(op, 1, o.Args[1])
		p.space()
		p.kw(token.AND)
		p.space()
		p.operand(op, 2, o.Args[2])

	case ast.Match:
		p.operand(op, 0, o.Args[0])
		p.space()
		p.write(op.Source)
		p.space()
		p.operand(op, 1, o.Args[1])
		if len(o.Args) > 2 {
			p.space()
			p.kw(token.ESCAPE)
			p.space()
			p.operand(op, 2, o.Args[2])
		}

	default:
		for i, arg := range o.Args {
			if i > 0 {
				p.space()
				p.write(op.Source)
				p.space()
			}
			p.operand(op, i, arg)
		}
	}
}

// startsWithPrefix reports whether x prints with a leading sign, which would
// merge with a preceding sign into a comment marker.
func startsWithPrefix(x ast.Expr) bool {
	o, ok := x.(*ast.Operation)
	return ok && o.Op.Form == ast.Prefix && o.Op != ast.OpNot
}

func (p *Printer) formatCall(name string, distinct bool, args []ast.Expr) {
	p.write(name)
	p.write("(")
	if distinct {
		p.kw(token.DISTINCT)
		p.space()
	}
	p.formatList(len(args), func(i int) { p.formatExpr(args[i]) }, ", ", false)
	p.write(")")
}

func (p *Printer) formatCaseExpr(c *ast.Case) {
	p.kw(token.CASE)

	if c.Operand != nil {
		p.space()
		p.formatExpr(c.Operand)
	}

	p.writeln()
	p.indent()

	for _, w := range c.Whens {
		p.kw(token.WHEN)
		p.space()
		p.formatExpr(w.Cond)
		p.space()
		p.kw(token.THEN)
		p.space()
		p.formatExpr(w.Result)
		p.writeln()
	}

	if c.Else != nil {
		p.kw(token.ELSE)
		p.space()
		p.formatExpr(c.Else)
		p.writeln()
	}

	p.dedent()
	p.kw(token.END)
}

func (p *Printer) formatSubquery(sq *ast.Subquery) {
	p.write("(")
	p.writeln()
	p.indent()
	p.formatQuery(sq.Query)
	p.dedent()
	p.write(")")
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
