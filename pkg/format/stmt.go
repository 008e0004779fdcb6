package format

import (
	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/token"
)

func (p *Printer) formatStatement(stmt *ast.Statement) {
	if stmt == nil {
		return
	}

	if len(stmt.Parameters) > 0 {
		p.formatParameters(stmt.Parameters)
	}

	if stmt.With == nil {
		p.formatQuery(stmt.Body)
		return
	}

	// A query that owns bindings is always parenthesized as a whole.
	p.formatWithClause(stmt.With)
	p.write("(")
	p.writeln()
	p.indent()
	p.formatQuery(stmt.Body)
	p.dedent()
	p.write(")")
	p.writeln()
}

func (p *Printer) formatParameters(params []*ast.Parameter) {
	p.kw(token.PARAMETERS)
	p.write(" (")
	p.writeln()

	p.indent()
	p.formatList(len(params), func(i int) {
		decl := params[i]
		p.write(fieldkey.Quote(decl.Name))
		p.space()
		p.write(decl.TypeName)
		if decl.Required {
			p.space()
			p.kw(token.REQUIRED)
		}
		if decl.Default != nil {
			p.space()
			p.kw(token.DEFAULT)
			p.space()
			p.formatExpr(decl.Default)
		}
	}, ",", true)
	p.writeln()
	p.dedent()

	p.write(")")
	p.writeln()
}

func (p *Printer) formatWithClause(with *ast.With) {
	p.kw(token.WITH)
	if with.Recursive {
		p.space()
		p.kw(token.RECURSIVE)
	}
	p.writeln()

	p.indent()
	p.formatList(len(with.CTEs), func(i int) {
		cte := with.CTEs[i]
		p.write(fieldkey.Quote(cte.Name))
		p.space()
		p.kw(token.AS)
		p.write(" (")
		p.writeln()

		p.indent()
		p.formatQuery(cte.Query)
		p.dedent()

		p.write(")")
	}, ",", true)
	p.writeln()
	p.dedent()
}

func (p *Printer) formatQuery(q ast.QueryExpr) {
	switch q := q.(type) {
	case *ast.Select:
		p.formatSelect(q)
	case *ast.Union:
		p.formatUnion(q)
	}
}

// formatUnion wraps every member in parentheses and joins them with the set
// operator recorded between each pair.
func (p *Printer) formatUnion(u *ast.Union) {
	for i, m := range u.Members {
		if i > 0 {
			p.write(u.Ops[i-1].String())
			p.writeln()
		}
		p.write("(")
		p.writeln()
		p.indent()
		p.formatQuery(m)
		p.dedent()
		p.write(")")
		p.writeln()
	}
	p.formatOrderBy(u.OrderBy)
	p.formatLimit(u.Limit)
}

func (p *Printer) formatSelect(s *ast.Select) {
	// SELECT [DISTINCT]
	p.kw(token.SELECT)
	if s.Distinct {
		p.space()
		p.kw(token.DISTINCT)
	}
	p.writeln()

	p.indent()
	p.formatList(len(s.Items), func(i int) { p.formatSelectItem(s.Items[i]) }, ",", true)
	p.writeln()
	p.dedent()

	if len(s.From) > 0 {
		p.kw(token.FROM)
		p.space()
		p.formatFrom(s.From)
		p.writeln()
	}

	p.clause(func() { p.formatConjuncts(s.Where) }, token.WHERE)
	p.clause(func() {
		p.formatList(len(s.GroupBy), func(i int) { p.formatExpr(s.GroupBy[i]) }, ",", true)
	}, token.GROUP, token.BY)
	p.clause(func() { p.formatConjuncts(s.Having) }, token.HAVING)

	if s.Pivot != nil {
		p.formatPivot(s.Pivot)
	}
	p.formatOrderBy(s.OrderBy)
	p.formatLimit(s.Limit)
}

func (p *Printer) formatSelectItem(item *ast.SelectItem) {
	p.formatExpr(item.X)
	if item.Alias != "" {
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(fieldkey.Quote(item.Alias))
	}
}

// formatConjuncts prints a WHERE or HAVING list. With more than one
// conjunct each is parenthesized on its own line after an explicit AND.
func (p *Printer) formatConjuncts(conjuncts []ast.Expr) {
	wrap := len(conjuncts) > 1
	for i, x := range conjuncts {
		if i > 0 {
			p.writeln()
			p.kw(token.AND)
			p.space()
		}
		if wrap {
			p.write("(")
		}
		p.formatExpr(x)
		if wrap {
			p.write(")")
		}
	}
}

// formatFrom prints join terms in declaration order. The first term never
// carries a join keyword.
func (p *Printer) formatFrom(terms []*ast.TableTerm) {
	for i, term := range terms {
		if i > 0 {
			switch term.Join {
			case ast.JoinComma:
				p.write(",")
				p.writeln()
				p.indent()
				p.formatTableTerm(term)
				p.dedent()
				continue
			default:
				p.writeln()
				p.write(term.Join.String())
				p.space()
			}
		}
		p.formatTableTerm(term)
		if term.On != nil {
			p.writeln()
			p.indent()
			p.kw(token.ON)
			p.space()
			p.formatExpr(term.On)
			p.dedent()
		}
	}
}

func (p *Printer) formatTableTerm(t *ast.TableTerm) {
	if t.Query != nil {
		p.write("(")
		p.writeln()
		p.indent()
		p.formatQuery(t.Query)
		p.dedent()
		p.write(")")
	} else {
		p.write(t.Name.String())
	}
	if t.Alias != "" {
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(fieldkey.Quote(t.Alias))
	}
}

// formatPivot prints PIVOT columns BY expressions IN (values). The BY group
// and the value list are each optional, and a missing group ends the clause.
func (p *Printer) formatPivot(pv *ast.Pivot) {
	p.kw(token.PIVOT)
	p.space()
	p.formatList(len(pv.Columns), func(i int) { p.formatExpr(pv.Columns[i]) }, ", ", false)

	if len(pv.By) > 0 {
		p.space()
		p.kw(token.BY)
		p.space()
		p.formatList(len(pv.By), func(i int) {
			// BY expressions end before a comparison, which would swallow IN.
			if x := pv.By[i]; ast.PrecedenceOf(x) >= ast.PrecComparison {
				p.write("(")
				p.formatExpr(x)
				p.write(")")
			} else {
				p.formatExpr(x)
			}
		}, ", ", false)

		if pv.Values != nil {
			p.space()
			p.kw(token.IN)
			p.write(" (")
			p.formatList(len(pv.Values), func(i int) {
				v := pv.Values[i]
				p.formatExpr(v.X)
				if v.Alias != "" {
					p.space()
					p.kw(token.AS)
					p.space()
					p.write(fieldkey.Quote(v.Alias))
				}
			}, ", ", false)
			p.write(")")
		}
	}
	p.writeln()
}

func (p *Printer) formatOrderBy(entries []*ast.OrderEntry) {
	p.clause(func() {
		p.formatList(len(entries), func(i int) {
			p.formatExpr(entries[i].X)
			if entries[i].Desc {
				p.space()
				p.kw(token.DESC)
			}
		}, ",", true)
	}, token.ORDER, token.BY)
}

func (p *Printer) formatLimit(l *ast.Limit) {
	if l == nil {
		return
	}
	p.kw(token.LIMIT)
	p.space()
	p.formatExpr(l.X)
	p.writeln()
}
