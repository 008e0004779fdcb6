// Package lineage traces the output columns of a resolved statement back to
// the catalog columns they are computed from.
package lineage

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/resolve"
)

// TransformType describes how source columns are transformed.
type TransformType string

const (
	// TransformDirect means the column is a direct copy (no transformation).
	TransformDirect TransformType = ""
	// TransformExpression means the column is derived from an expression.
	TransformExpression TransformType = "EXPR"
)

// SourceColumn represents a source column in the lineage.
type SourceColumn struct {
	Table  string `json:"table"` // catalog key: schema.table
	Column string `json:"column"`
}

// ColumnLineage describes the lineage of a single output column.
type ColumnLineage struct {
	Name      string         `json:"name"`
	Sources   []SourceColumn `json:"sources"`
	Transform TransformType  `json:"transform,omitempty"`
	Function  string         `json:"function,omitempty"` // outermost aggregate or method
}

// QueryLineage describes the complete lineage of a statement.
type QueryLineage struct {
	Sources []string         `json:"sources"` // catalog tables read anywhere, sorted
	Columns []*ColumnLineage `json:"columns"`
}

// Extract computes the lineage of stmt from the bindings in info. Names the
// resolver could not bind contribute no sources.
func Extract(stmt *ast.Statement, info *resolve.Info) *QueryLineage {
	e := &extractor{
		stmt:     stmt,
		info:     info,
		derived:  make(map[*resolve.Relation]ast.QueryExpr),
		cache:    make(map[ast.QueryExpr][]*ColumnLineage),
		visiting: make(map[ast.QueryExpr]bool),
	}

	tables := make(map[string]struct{})
	for term, rel := range info.Relations {
		switch {
		case term.Query != nil:
			e.derived[rel] = term.Query
		case rel.Kind == resolve.RelTable && rel.Source != nil && !rel.Open:
			tables[rel.Source.String()] = struct{}{}
		}
	}
	sources := make([]string, 0, len(tables))
	for t := range tables {
		sources = append(sources, t)
	}
	sort.Strings(sources)

	return &QueryLineage{Sources: sources, Columns: e.query(stmt.Body)}
}

type extractor struct {
	stmt    *ast.Statement
	info    *resolve.Info
	derived map[*resolve.Relation]ast.QueryExpr
	cache   map[ast.QueryExpr][]*ColumnLineage

	// visiting holds the queries being traced; a WITH binding that reads
	// itself stops here.
	visiting map[ast.QueryExpr]bool
}

func (e *extractor) query(q ast.QueryExpr) []*ColumnLineage {
	if cols, ok := e.cache[q]; ok {
		return cols
	}
	if e.visiting[q] {
		return nil
	}
	e.visiting[q] = true
	defer delete(e.visiting, q)

	var cols []*ColumnLineage
	switch q := q.(type) {
	case *ast.Select:
		cols = e.selectBlock(q)
	case *ast.Union:
		cols = e.union(q)
	}
	e.cache[q] = cols
	return cols
}

// union takes its column names from the first member and its sources from
// every member.
func (e *extractor) union(u *ast.Union) []*ColumnLineage {
	var cols []*ColumnLineage
	for i, m := range u.Members {
		mc := e.query(m)
		if i == 0 {
			for _, c := range mc {
				cp := *c
				cp.Sources = append([]SourceColumn(nil), c.Sources...)
				cols = append(cols, &cp)
			}
			continue
		}
		for j, c := range cols {
			if j < len(mc) {
				c.Sources = mergeSources(c.Sources, mc[j].Sources)
			}
			c.Transform = TransformExpression
		}
	}
	return cols
}

func (e *extractor) selectBlock(s *ast.Select) []*ColumnLineage {
	if s.Pivot != nil {
		return e.pivot(s)
	}
	cols := make([]*ColumnLineage, len(s.Items))
	for i, item := range s.Items {
		cl := e.expr(s, item.X)
		cl.Name = resolve.OutputName(item, i)
		cols[i] = cl
	}
	return cols
}

// pivot follows the pivoted output: columns named by a select item keep its
// lineage, generated columns derive from every pivot column.
func (e *extractor) pivot(s *ast.Select) []*ColumnLineage {
	var pivoted []SourceColumn
	for _, x := range s.Pivot.Columns {
		pivoted = mergeSources(pivoted, e.expr(s, x).Sources)
	}

	var cols []*ColumnLineage
	for _, out := range e.info.Outputs[s] {
		if item := itemNamed(s, out.Name); item != nil {
			cl := e.expr(s, item.X)
			cl.Name = out.Name
			cols = append(cols, cl)
			continue
		}
		cols = append(cols, &ColumnLineage{
			Name:      out.Name,
			Sources:   pivoted,
			Transform: TransformExpression,
		})
	}
	return cols
}

func (e *extractor) expr(s *ast.Select, x ast.Expr) *ColumnLineage {
	if f, ok := e.info.Fields[x]; ok {
		sources, transform := e.field(s, f)
		return &ColumnLineage{Sources: sources, Transform: transform}
	}

	cl := &ColumnLineage{Transform: TransformExpression}
	switch x := x.(type) {
	case *ast.Aggregate:
		cl.Function = strings.ToUpper(x.Func)
	case *ast.Call:
		cl.Function = strings.ToLower(x.Name)
	}
	ast.Inspect(x, func(n ast.Expr) bool {
		if sq, ok := n.(*ast.Subquery); ok {
			if cols := e.query(sq.Query); len(cols) > 0 {
				cl.Sources = mergeSources(cl.Sources, cols[0].Sources)
			}
			return false
		}
		f, ok := e.info.Fields[n]
		if !ok {
			return true
		}
		sources, _ := e.field(s, f)
		cl.Sources = mergeSources(cl.Sources, sources)
		return false
	})
	return cl
}

// field follows one bound name to the catalog: directly for a table column,
// through the defining query for a WITH binding or derived table.
func (e *extractor) field(s *ast.Select, f *resolve.Field) ([]SourceColumn, TransformType) {
	rel := f.Relation
	if rel == nil {
		if item := itemNamed(s, f.Column.Name); item != nil && e.info.Fields[item.X] != f {
			cl := e.expr(s, item.X)
			return cl.Sources, cl.Transform
		}
		return nil, TransformExpression
	}

	var q ast.QueryExpr
	switch rel.Kind {
	case resolve.RelTable:
		if rel.Source == nil || rel.Open {
			return nil, TransformDirect
		}
		return []SourceColumn{{Table: rel.Source.String(), Column: f.Column.Name}}, TransformDirect
	case resolve.RelCTE:
		if cte, ok := e.stmt.With.Lookup(rel.Name); ok {
			q = cte.Query
		}
	case resolve.RelDerived:
		q = e.derived[rel]
	}
	if q == nil {
		return nil, TransformDirect
	}
	for _, c := range e.query(q) {
		if fieldkey.Fold(c.Name) == fieldkey.Fold(f.Column.Name) {
			return c.Sources, c.Transform
		}
	}
	return nil, TransformDirect
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

// mergeSources merges two source lists, removing duplicates.
func mergeSources(a, b []SourceColumn) []SourceColumn {
	seen := make(map[SourceColumn]struct{}, len(a)+len(b))
	var result []SourceColumn
	for _, list := range [][]SourceColumn{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				result = append(result, s)
			}
		}
	}
	return result
}
