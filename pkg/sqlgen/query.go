package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/resolve"
)

func (g *generator) query(q ast.QueryExpr) string {
	switch q := q.(type) {
	case *ast.Select:
		if q.Pivot != nil {
			return g.pivot(q)
		}
		return g.selectBlock(q)
	case *ast.Union:
		return g.union(q)
	}
	g.fail(fmt.Errorf("sqlgen: unexpected query %T", q))
	return ""
}

func (g *generator) selectBlock(s *ast.Select) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(g.top(s.Limit))
	sb.WriteString(g.selectList(s))
	g.selectRest(&sb, s)
	sb.WriteString(g.orderBy(names{sel: s}, s.OrderBy))
	sb.WriteString(g.limit(s.Limit))
	return sb.String()
}

func (g *generator) selectList(s *ast.Select) string {
	items := make([]string, len(s.Items))
	for i, item := range s.Items {
		items[i] = g.selectItem(item, i)
	}
	return strings.Join(items, ", ")
}

// selectItem renders an item with an alias whenever the dialect would not
// produce its output name by itself.
func (g *generator) selectItem(item *ast.SelectItem, i int) string {
	s := g.expr(noAliases, item.X)
	name := resolve.OutputName(item, i)
	if f, ok := g.info.Fields[item.X]; ok && f.Relation != nil && f.Column.Name == name {
		return s
	}
	if _, star := item.X.(*ast.RowStar); star {
		return s
	}
	return s + " AS " + g.quote(name)
}

// selectRest renders FROM through HAVING.
func (g *generator) selectRest(sb *strings.Builder, s *ast.Select) {
	if len(s.From) > 0 {
		sb.WriteString(" FROM ")
		g.from(sb, s.From)
	}
	if len(s.Where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(g.conjuncts(noAliases, s.Where))
	}
	if len(s.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(g.exprs(noAliases, s.GroupBy, ", "))
	}
	if len(s.Having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(g.conjuncts(names{sel: s}, s.Having))
	}
}

func (g *generator) conjuncts(n names, xs []ast.Expr) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = g.expr(n, x)
		if len(xs) > 1 && needsParens(ast.OpAnd, i, x) {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, " AND ")
}

func (g *generator) from(sb *strings.Builder, terms []*ast.TableTerm) {
	for i, term := range terms {
		if i > 0 {
			if term.Join == ast.JoinComma {
				sb.WriteString(", ")
			} else {
				sb.WriteString(" " + term.Join.String() + " ")
			}
		}
		sb.WriteString(g.tableTerm(term))
		if term.On != nil {
			sb.WriteString(" ON ")
			sb.WriteString(g.expr(noAliases, term.On))
		}
	}
}

// tableTerm renders a FROM term. Tables are always aliased with the name the
// rest of the query uses for them.
func (g *generator) tableTerm(term *ast.TableTerm) string {
	rel, ok := g.info.Relations[term]
	if !ok {
		g.fail(fmt.Errorf("%w: table %s at line %d", diag.ErrUnresolvedField, term.Name, term.Pos().Line))
		return ""
	}
	ref := g.quote(rel.RefName())

	switch rel.Kind {
	case resolve.RelDerived:
		return "(" + g.query(term.Query) + ") AS " + ref
	case resolve.RelCTE:
		if name := g.quote(rel.Name); name != ref {
			return name + " AS " + ref
		}
		return ref
	}
	return g.quoteKey(rel.Source) + " AS " + ref
}

func (g *generator) orderBy(n names, entries []*ast.OrderEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, len(entries))
	for i, o := range entries {
		parts[i] = g.expr(n, o.X)
		if o.Desc {
			parts[i] += " DESC"
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// top and limit render a literal row limit in the dialect's position. Any
// other bound has an effective limit of zero and applies no limit, but its
// references must still have resolved.
func (g *generator) top(l *ast.Limit) string {
	if !g.literalBound(l) || g.d.Limit != dialect.LimitTop {
		return ""
	}
	return "TOP " + strconv.FormatInt(l.Effective(), 10) + " "
}

func (g *generator) limit(l *ast.Limit) string {
	if !g.literalBound(l) || g.d.Limit != dialect.LimitClause {
		return ""
	}
	return " LIMIT " + strconv.FormatInt(l.Effective(), 10)
}

func (g *generator) literalBound(l *ast.Limit) bool {
	if l == nil {
		return false
	}
	if l.Literal() {
		return true
	}
	ast.Inspect(l.X, func(e ast.Expr) bool {
		switch e.(type) {
		case *ast.Ident, *ast.Dot, *ast.FieldRef:
			_, field := g.info.Fields[e]
			_, param := g.info.Params[e]
			if !field && !param {
				g.fail(fmt.Errorf("%w: LIMIT %s at line %d", diag.ErrUnresolvedField, ast.KeyOf(e), e.Pos().Line))
			}
			return false
		}
		return true
	})
	return false
}

// union renders the members and hands them to the set-operation resolver.
// A row limit on a TOP dialect wraps the combined query.
func (g *generator) union(u *ast.Union) string {
	members := make([]string, len(u.Members))
	for i, m := range u.Members {
		members[i] = g.query(m)
	}
	combined := g.setOps.Combine(g.d, members, u.Ops)

	if top := g.top(u.Limit); top != "" {
		return "SELECT " + top + "* FROM (" + combined + ") AS " + g.quote("combined") + g.orderBy(noAliases, u.OrderBy)
	}
	return combined + g.orderBy(noAliases, u.OrderBy) + g.limit(u.Limit)
}

// pivot renders a PIVOT as a grouped inner query wrapped by an outer query
// that spreads each pivot column over the pivot values:
//
//	SELECT key, MAX(agg) AS agg, MAX(CASE WHEN by = v THEN col END) AS "v::col", ...
//	FROM (inner) AS pivot GROUP BY key
func (g *generator) pivot(s *ast.Select) string {
	p := s.Pivot
	if len(p.By) != 1 {
		g.fail(fmt.Errorf("%w: PIVOT takes a single BY expression", diag.ErrInvalidChild))
		return ""
	}

	pivoted := make(map[string]bool)
	var columns []string
	for _, x := range p.Columns {
		var item *ast.SelectItem
		if key := ast.KeyOf(x); key != nil {
			item = itemNamed(s, key.Name())
		}
		if item == nil {
			g.fail(fmt.Errorf("%w: pivot column must name a select item", diag.ErrInvalidChild))
			return ""
		}
		name := resolve.OutputName(item, indexOf(s, item))
		pivoted[fieldkey.Fold(name)] = true
		columns = append(columns, name)
	}

	// Items that are neither pivoted nor the BY value are grouping keys,
	// except aggregates, which are constant per key and carried with MAX.
	by, hidden := g.pivotBy(s)
	var keys, outputs []string
	for i, item := range s.Items {
		name := resolve.OutputName(item, i)
		folded := fieldkey.Fold(name)
		if pivoted[folded] || folded == fieldkey.Fold(by) {
			continue
		}
		col := g.quote(name)
		if g.info.IsAggregate(item.X) {
			outputs = append(outputs, "MAX("+col+") AS "+col)
			continue
		}
		keys = append(keys, col)
		outputs = append(outputs, col)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(g.top(s.Limit))
	outputs = append(outputs, g.pivotColumns(s, by, columns)...)
	sb.WriteString(strings.Join(outputs, ", "))

	sb.WriteString(" FROM (SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(g.selectList(s))
	if hidden != nil {
		sb.WriteString(", " + g.expr(noAliases, hidden) + " AS " + g.quote(by))
	}
	g.selectRest(&sb, s)
	sb.WriteString(") AS " + g.quote("pivot"))

	if len(keys) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}
	sb.WriteString(g.orderBy(names{sel: s, outer: true}, s.OrderBy))
	sb.WriteString(g.limit(s.Limit))
	return sb.String()
}

func indexOf(s *ast.Select, item *ast.SelectItem) int {
	for i, it := range s.Items {
		if it == item {
			return i
		}
	}
	return -1
}

// pivotBy names the inner column holding the BY value. A BY expression that
// is not a select item is returned as hidden and selected under that name.
func (g *generator) pivotBy(s *ast.Select) (name string, hidden ast.Expr) {
	x := s.Pivot.By[0]
	if f, ok := g.info.Fields[x]; ok {
		if f.Relation == nil {
			return f.Column.Name, nil
		}
		for i, item := range s.Items {
			if sameField(g.info.Fields[item.X], f) {
				return resolve.OutputName(item, i), nil
			}
		}
	}
	return "pivot_by", x
}

// pivotColumns renders one MAX(CASE ...) per (value, column) pair, values
// outermost. Values come from the IN list, or from Options.PivotValues keyed
// by the BY name and bound as parameters.
func (g *generator) pivotColumns(s *ast.Select, by string, columns []string) []string {
	p := s.Pivot
	lookup := by
	if key := ast.KeyOf(p.By[0]); key != nil {
		lookup = key.Name()
	}
	supplied, ok := g.pivots[fieldkey.Fold(lookup)]
	if p.Values == nil && !ok {
		g.fail(fmt.Errorf("%w: PIVOT BY %s has no IN list and no supplied values", diag.ErrPivotValues, lookup))
		return nil
	}

	n := len(supplied)
	if p.Values != nil {
		n = len(p.Values)
	}
	var out []string
	for i := range n {
		for _, col := range columns {
			// Each use renders its own value so placeholders stay in text order.
			var value, name string
			if p.Values != nil {
				value = g.expr(noAliases, p.Values[i].X)
				name = resolve.PivotColumnName(p.Values[i], i, col)
			} else {
				value = g.bind(supplied[i])
				name = fmt.Sprint(supplied[i]) + "::" + col
			}
			out = append(out, fmt.Sprintf("MAX(CASE WHEN %s = %s THEN %s END) AS %s",
				g.quote(by), value, g.quote(col), g.quote(name)))
		}
	}
	return out
}
