package resolve

import (
	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// SyntaxCheck runs the structural checks of the validate phase over a
// statement and returns every problem found. It needs no schema: run it
// after Resolve so that expanded select lists are checked.
func SyntaxCheck(stmt *ast.Statement) diag.ErrorList {
	c := &checker{}
	c.parameters(stmt.Parameters)
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			c.query(cte.Query)
		}
	}
	c.query(stmt.Body)
	c.errs.Sort()
	return c.errs
}

type checker struct {
	errs diag.ErrorList
}

func (c *checker) parameters(params []*ast.Parameter) {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		key := fieldkey.Fold(p.Name)
		if seen[key] {
			c.errs.Add(diag.DuplicateParameter, p.Pos(), "parameter %s is declared more than once", p.Name)
		}
		seen[key] = true
		if !p.TypeOK {
			c.errs.Add(diag.UnknownType, p.Pos(), "unknown parameter type %s", p.TypeName)
		}
		if p.Default != nil {
			c.expr(p.Default)
		}
	}
}

func (c *checker) query(q ast.QueryExpr) {
	switch q := q.(type) {
	case *ast.Select:
		c.selectBlock(q)
	case *ast.Union:
		for _, m := range q.Members {
			c.query(m)
		}
		for _, o := range q.OrderBy {
			c.expr(o.X)
		}
		if q.Limit != nil {
			c.expr(q.Limit.X)
		}
	}
}

func (c *checker) selectBlock(s *ast.Select) {
	for _, term := range s.From {
		if term.Query != nil {
			c.query(term.Query)
		}
		if term.On != nil {
			c.noAggregate(term.On, "a join condition")
		}
	}
	for _, x := range s.Where {
		c.noAggregate(x, "WHERE")
	}
	for _, x := range s.GroupBy {
		c.noAggregate(x, "GROUP BY")
	}

	for _, x := range s.Exprs() {
		if _, star := x.(*ast.RowStar); star && isSelectItem(s, x) {
			// A select-list star over a relation with unknown columns.
			continue
		}
		c.expr(x)
	}

	if s.Pivot != nil {
		c.pivot(s)
	}
}

func isSelectItem(s *ast.Select, x ast.Expr) bool {
	for _, item := range s.Items {
		if item.X == x {
			return true
		}
	}
	return false
}

func (c *checker) noAggregate(x ast.Expr, clause string) {
	if ast.ContainsAggregate(x) {
		c.errs.Add(diag.AggregateInWhere, x.Pos(), "aggregates are not allowed in %s", clause)
	}
}

// expr checks one expression tree and the queries nested in it.
func (c *checker) expr(x ast.Expr) {
	ast.Inspect(x, func(e ast.Expr) bool {
		switch e := e.(type) {
		case *ast.RowStar:
			c.errs.Add(diag.UnsupportedStar, e.Pos(), "* is not supported here; reference a field or a constant")
		case *ast.Aggregate:
			for _, arg := range e.Args {
				if ast.ContainsAggregate(arg) {
					c.errs.Add(diag.NestedAggregate, e.Pos(), "aggregate %s cannot contain another aggregate", e.Func)
					break
				}
			}
		case *ast.Cast:
			if _, ok := types.Lookup(e.TypeName); !ok {
				c.errs.Add(diag.UnknownType, e.Pos(), "unknown type %s", e.TypeName)
			}
		case *ast.Subquery:
			c.query(e.Query)
		case *ast.Exists:
			c.query(e.Query.Query)
		}
		return true
	})
}

// pivot checks that pivot columns name aggregate select items and that every
// BY expression is grouped.
func (c *checker) pivot(s *ast.Select) {
	p := s.Pivot
	switch {
	case len(p.By) == 0:
		c.errs.Add(diag.InvalidPivot, p.Pos(), "PIVOT requires a BY expression")
	case len(p.By) > 1:
		c.errs.Add(diag.InvalidPivot, p.By[1].Pos(), "PIVOT takes a single BY expression")
	}
	if len(s.GroupBy) == 0 {
		c.errs.Add(diag.InvalidPivot, p.Pos(), "PIVOT requires GROUP BY")
	}

	for _, x := range p.Columns {
		key := ast.KeyOf(x)
		item := selectItemNamed(s, key)
		switch {
		case item == nil:
			c.errs.Add(diag.InvalidPivot, x.Pos(), "pivot column must name a select item")
		case !ast.ContainsAggregate(item.X):
			c.errs.Add(diag.InvalidPivot, x.Pos(), "pivot column %s must be an aggregate", key)
		}
	}

	for _, x := range p.By {
		if !grouped(s, x) {
			c.errs.Add(diag.InvalidPivot, x.Pos(), "PIVOT BY expression must appear in GROUP BY")
		}
	}
}

func selectItemNamed(s *ast.Select, key *fieldkey.FieldKey) *ast.SelectItem {
	if !key.IsSimple() {
		return nil
	}
	for i, item := range s.Items {
		if fieldkey.Fold(OutputName(item, i)) == fieldkey.Fold(key.Name()) {
			return item
		}
	}
	return nil
}

// grouped reports whether x, or the select item it names, is a GROUP BY key.
func grouped(s *ast.Select, x ast.Expr) bool {
	keys := []*fieldkey.FieldKey{ast.KeyOf(x)}
	if item := selectItemNamed(s, keys[0]); item != nil {
		keys = append(keys, ast.KeyOf(item.X))
	}
	for _, g := range s.GroupBy {
		gk := ast.KeyOf(g)
		if gk == nil {
			continue
		}
		for _, k := range keys {
			if k != nil && sameField(k, gk) {
				return true
			}
		}
	}
	return false
}

// sameField compares keys, letting a bare name match a qualified one.
func sameField(a, b *fieldkey.FieldKey) bool {
	if a.IsSimple() || b.IsSimple() {
		return fieldkey.Fold(a.Name()) == fieldkey.Fold(b.Name())
	}
	return a.Equal(b)
}
