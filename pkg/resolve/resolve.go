package resolve

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/method"
	"github.com/leapstack-labs/qsql/pkg/schema"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// Config holds the collaborators of the resolver.
type Config struct {
	Schema  schema.Provider  // nil resolves no tables
	Methods *method.Registry // nil uses the builtin registry
	Logger  *slog.Logger     // nil discards
}

// Resolve binds every name in stmt and infers expression types. Star items
// of select lists are expanded in place when their relations have known
// columns. The returned error list is sorted by position.
func Resolve(stmt *ast.Statement, cfg *Config) (*Info, diag.ErrorList) {
	r := &resolver{
		info:    newInfo(),
		params:  make(map[string]*ast.Parameter),
		pending: make(map[*Relation]*ast.CTE),
	}
	if cfg != nil {
		r.cfg = *cfg
	}
	if r.cfg.Methods == nil {
		r.cfg.Methods = method.NewRegistry()
	}
	if r.cfg.Logger == nil {
		r.cfg.Logger = slog.New(slog.DiscardHandler)
	}

	r.statement(stmt)
	r.errs.Sort()

	r.cfg.Logger.Debug("resolved statement",
		slog.Int("fields", len(r.info.Fields)),
		slog.Int("relations", len(r.info.Relations)),
		slog.Int("errors", len(r.errs)))
	return r.info, r.errs
}

type resolver struct {
	cfg     Config
	info    *Info
	errs    diag.ErrorList
	params  map[string]*ast.Parameter // folded name -> first declaration
	pending map[*Relation]*ast.CTE    // bindings whose body is being resolved
}

// aliasMode says when select-list columns are visible to a name.
type aliasMode int

const (
	aliasNone  aliasMode = iota
	aliasAfter           // after relation columns (HAVING, PIVOT BY)
	aliasFirst           // before relation columns (ORDER BY, PIVOT columns)
)

type env struct {
	scope   *Scope
	aliases aliasMode
	quiet   bool // unresolved names are not errors (IFDEFINED)
}

func (r *resolver) errorf(code diag.Code, n ast.Node, format string, args ...any) {
	r.errs.Add(code, n.Pos(), format, args...)
}

// ---------- Statement ----------

func (r *resolver) statement(stmt *ast.Statement) {
	empty := NewScope()
	for _, p := range stmt.Parameters {
		key := fieldkey.Fold(p.Name)
		if _, dup := r.params[key]; !dup {
			r.params[key] = p
		}
		if p.Default != nil {
			r.expr(env{scope: empty}, p.Default)
		}
	}

	root := NewScope()
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			r.cte(root, cte)
		}
	}
	r.query(root, stmt.Body)
}

// cte resolves one WITH binding. The binding is visible to its own body as
// an open relation so that recursive references resolve.
func (r *resolver) cte(root *Scope, cte *ast.CTE) {
	rel := &Relation{Kind: RelCTE, Name: cte.Name, Open: true}
	root.RegisterCTE(rel)
	r.pending[rel] = cte
	cols := r.query(root, cte.Query)
	delete(r.pending, rel)

	rel.Open = false
	rel.Columns = cols
	r.info.CTEs[cte] = rel
}

// ---------- Queries ----------

func (r *resolver) query(outer *Scope, q ast.QueryExpr) []*Column {
	var cols []*Column
	switch q := q.(type) {
	case *ast.Select:
		cols = r.selectBlock(outer, q)
	case *ast.Union:
		cols = r.union(outer, q)
	}
	r.info.Outputs[q] = cols
	return cols
}

func (r *resolver) union(outer *Scope, u *ast.Union) []*Column {
	var cols []*Column
	for i, m := range u.Members {
		mc := r.query(outer, m)
		if i == 0 {
			cols = make([]*Column, len(mc))
			for j, c := range mc {
				cp := *c
				cols[j] = &cp
			}
			continue
		}
		for j := 0; j < len(cols) && j < len(mc); j++ {
			cols[j].Type = unionType(cols[j].Type, mc[j].Type)
		}
	}

	sc := outer.Child()
	sc.outputs = cols
	for _, o := range u.OrderBy {
		r.expr(env{scope: sc, aliases: aliasFirst}, o.X)
	}
	if u.Limit != nil {
		r.expr(env{scope: sc}, u.Limit.X)
	}
	return cols
}

func unionType(a, b types.Type) types.Type {
	switch {
	case a == types.Null:
		return b
	case a.IsNumeric() && b.IsNumeric():
		return types.Widen(a, b)
	}
	return a
}

func (r *resolver) selectBlock(outer *Scope, s *ast.Select) []*Column {
	sc := outer.Child()
	for _, term := range s.From {
		r.tableTerm(outer, sc, term)
	}
	row := env{scope: sc}
	for _, term := range s.From {
		if term.On != nil {
			r.expr(row, term.On)
		}
	}

	s.Items = r.expandStars(sc, s.Items)
	cols := make([]*Column, 0, len(s.Items))
	for i, item := range s.Items {
		tv := r.expr(row, item.X)
		cols = append(cols, &Column{
			Name:     OutputName(item, i),
			Type:     tv.Type,
			Attrs:    tv.Attrs,
			Nullable: true,
		})
	}
	sc.outputs = cols

	for _, x := range s.Where {
		r.expr(row, x)
	}
	for _, x := range s.GroupBy {
		r.expr(row, x)
	}
	for _, x := range s.Having {
		r.expr(env{scope: sc, aliases: aliasAfter}, x)
	}
	if s.Pivot != nil {
		cols = r.pivot(sc, s, cols)
	}
	for _, o := range s.OrderBy {
		r.expr(env{scope: sc, aliases: aliasFirst}, o.X)
	}
	if s.Limit != nil {
		r.expr(row, s.Limit.X)
	}
	return cols
}

// OutputName returns the column name a select item produces: the alias, the
// final name of a field reference, or exprN.
func OutputName(item *ast.SelectItem, i int) string {
	if item.Alias != "" {
		return item.Alias
	}
	if key := ast.KeyOf(item.X); key != nil {
		return key.Name()
	}
	if star, ok := item.X.(*ast.RowStar); ok && star.Table != nil {
		return star.Table.String() + ".*"
	}
	return fmt.Sprintf("expr%d", i+1)
}

// tableTerm registers one FROM term. Derived tables see the enclosing scope
// but not their sibling terms.
func (r *resolver) tableTerm(outer, sc *Scope, term *ast.TableTerm) {
	var rel *Relation
	switch {
	case term.Query != nil:
		cols := r.query(outer, term.Query)
		rel = &Relation{Kind: RelDerived, Name: term.Alias, Alias: term.Alias, Columns: append([]*Column(nil), cols...)}
	case term.Name != nil:
		rel = r.namedRelation(outer, term)
	default:
		return
	}

	if !sc.Register(rel) {
		r.errorf(diag.AmbiguousField, term, "table name %s is used more than once", fieldkey.Quote(rel.RefName()))
	}
	r.info.Relations[term] = rel
}

func (r *resolver) namedRelation(outer *Scope, term *ast.TableTerm) *Relation {
	if term.Name.IsSimple() {
		if cte, ok := outer.LookupCTE(term.Name.Name()); ok {
			if binding, self := r.pending[cte]; self {
				r.info.Recursive[binding] = true
			}
			return &Relation{
				Kind:    RelCTE,
				Name:    cte.Name,
				Alias:   term.Alias,
				Columns: append([]*Column(nil), cte.Columns...),
				Open:    cte.Open,
			}
		}
	}
	if r.cfg.Schema != nil {
		if t, ok := r.cfg.Schema.Table(term.Name); ok {
			return tableRelation(t, term.Alias)
		}
	}
	r.errorf(diag.UnknownTable, term, "unknown table %s", term.Name)
	return &Relation{Kind: RelTable, Name: term.Name.Name(), Alias: term.Alias, Source: term.Name, Open: true}
}

// expandStars replaces * and table.* select items with one field reference
// per column. Stars over relations with unknown columns are kept.
func (r *resolver) expandStars(sc *Scope, items []*ast.SelectItem) []*ast.SelectItem {
	var out []*ast.SelectItem
	for _, item := range items {
		star, ok := item.X.(*ast.RowStar)
		if !ok {
			out = append(out, item)
			continue
		}

		rels := sc.Relations()
		if star.Table != nil {
			rel, found := sc.LookupQualified(star.Table)
			if !found {
				r.errorf(diag.UnknownTable, star, "unknown table %s", star.Table)
				out = append(out, item)
				continue
			}
			rels = []*Relation{rel}
		}
		if len(rels) == 0 || anyOpen(rels) {
			out = append(out, item)
			continue
		}
		for _, rel := range rels {
			for _, c := range rel.Columns {
				key := fieldkey.FromParts(rel.RefName(), c.Name)
				out = append(out, ast.NewSelectItem(star.Pos(), ast.NewFieldRef(star.Pos(), key), ""))
			}
		}
	}
	return out
}

func anyOpen(rels []*Relation) bool {
	for _, rel := range rels {
		if rel.Open {
			return true
		}
	}
	return false
}

// pivot resolves the pivot clause and computes the output columns when the
// value list is known: the grouping items, then one column per (value,
// pivot column) pair. The BY items do not survive the pivot.
func (r *resolver) pivot(sc *Scope, s *ast.Select, cols []*Column) []*Column {
	p := s.Pivot
	pivoted := make(map[string]*Column)
	for _, x := range p.Columns {
		r.expr(env{scope: sc, aliases: aliasFirst}, x)
		if key := ast.KeyOf(x); key != nil && key.IsSimple() {
			if c, ok := sc.Output(key.Name()); ok {
				pivoted[fieldkey.Fold(c.Name)] = c
			}
		}
	}
	by := make(map[string]bool)
	for _, x := range p.By {
		r.expr(env{scope: sc, aliases: aliasAfter}, x)
		if key := ast.KeyOf(x); key != nil {
			by[fieldkey.Fold(key.Name())] = true
		}
	}
	for _, v := range p.Values {
		r.expr(env{scope: sc}, v.X)
	}
	if p.Values == nil {
		return cols
	}

	out := make([]*Column, 0, len(cols))
	for _, c := range cols {
		name := fieldkey.Fold(c.Name)
		if _, ok := pivoted[name]; !ok && !by[name] {
			out = append(out, c)
		}
	}
	for i, v := range p.Values {
		for _, x := range p.Columns {
			key := ast.KeyOf(x)
			if key == nil {
				continue
			}
			src, ok := pivoted[fieldkey.Fold(key.Name())]
			if !ok {
				continue
			}
			out = append(out, &Column{
				Name:     PivotColumnName(v, i, src.Name),
				Type:     src.Type,
				Attrs:    src.Attrs,
				Nullable: true,
			})
		}
	}
	return out
}

// PivotValueName names a pivot value: its alias, or the literal it holds.
func PivotValueName(v *ast.PivotValue, i int) string {
	if v.Alias != "" {
		return v.Alias
	}
	switch x := v.X.(type) {
	case *ast.StringLit:
		return x.Value
	case *ast.NumberLit:
		return x.Text
	case *ast.BoolLit:
		return strings.ToLower(fmt.Sprint(x.Value))
	}
	if key := ast.KeyOf(v.X); key != nil {
		return key.Name()
	}
	return fmt.Sprintf("value%d", i+1)
}

// PivotColumnName names the output column of one (value, column) pair.
func PivotColumnName(v *ast.PivotValue, i int, column string) string {
	return PivotValueName(v, i) + "::" + column
}

// ---------- Expressions ----------

func (r *resolver) exprs(e env, xs []ast.Expr) []TypeAndValue {
	out := make([]TypeAndValue, len(xs))
	for i, x := range xs {
		out[i] = r.expr(e, x)
	}
	return out
}

func (r *resolver) expr(e env, x ast.Expr) TypeAndValue {
	tv := r.infer(e, x)
	r.info.Types[x] = tv
	return tv
}

func (r *resolver) infer(e env, x ast.Expr) TypeAndValue {
	switch x := x.(type) {
	case *ast.BoolLit:
		return TypeAndValue{Type: types.Boolean, Constant: true}
	case *ast.NumberLit:
		return TypeAndValue{Type: numberType(x), Constant: true}
	case *ast.StringLit:
		return TypeAndValue{Type: types.Varchar, Constant: true}
	case *ast.DateLit:
		return TypeAndValue{Type: types.Date, Constant: true}
	case *ast.TimestampLit:
		return TypeAndValue{Type: types.Timestamp, Constant: true}
	case *ast.NullLit:
		return TypeAndValue{Type: types.Null, Constant: true}

	case *ast.Ident, *ast.Dot, *ast.FieldRef:
		return r.field(e, x)

	case *ast.RowStar:
		return TypeAndValue{Type: types.Unknown}

	case *ast.Operation:
		return operationType(x.Op, r.exprs(e, x.Args))

	case *ast.Aggregate:
		return aggregateType(x.Func, r.exprs(e, x.Args))

	case *ast.Call:
		return r.call(e, x)

	case *ast.Case:
		var results, all []TypeAndValue
		if x.Operand != nil {
			all = append(all, r.expr(e, x.Operand))
		}
		for _, w := range x.Whens {
			all = append(all, r.expr(e, w.Cond))
			res := r.expr(e, w.Result)
			results = append(results, res)
			all = append(all, res)
		}
		if x.Else != nil {
			res := r.expr(e, x.Else)
			results = append(results, res)
			all = append(all, res)
		}
		tv := combine(all)
		tv.Type = commonType(results)
		return tv

	case *ast.Cast:
		inner := r.expr(e, x.X)
		t, ok := types.Lookup(x.TypeName)
		if !ok {
			t = types.Unknown
		}
		return TypeAndValue{Type: t, Constant: inner.Constant, Aggregate: inner.Aggregate}

	case *ast.Subquery:
		cols := r.query(e.scope, x.Query)
		if len(cols) == 1 {
			return TypeAndValue{Type: cols[0].Type, Attrs: cols[0].Attrs}
		}
		return TypeAndValue{Type: types.Unknown}

	case *ast.Exists:
		r.expr(e, x.Query)
		return TypeAndValue{Type: types.Boolean}

	case *ast.ExprList:
		items := r.exprs(e, x.Items)
		tv := combine(items)
		tv.Type = commonType(items)
		return tv

	case *ast.IfDefined:
		quiet := e
		quiet.quiet = true
		inner := r.expr(quiet, x.X)
		_, field := r.info.Fields[x.X]
		_, param := r.info.Params[x.X]
		r.info.Defined[x] = field || param
		if !field && !param {
			return TypeAndValue{Type: types.Unknown}
		}
		return inner

	case *ast.Unsafe:
		return TypeAndValue{Type: types.Unknown}
	}
	return TypeAndValue{Type: types.Unknown}
}

func numberType(n *ast.NumberLit) types.Type {
	switch {
	case !n.IsInt:
		return types.Double
	case n.Int >= math.MinInt32 && n.Int <= math.MaxInt32:
		return types.Integer
	default:
		return types.BigInt
	}
}

// combine folds the constant and aggregate flags of operands.
func combine(args []TypeAndValue) TypeAndValue {
	tv := TypeAndValue{Constant: true}
	for _, a := range args {
		tv.Constant = tv.Constant && a.Constant
		tv.Aggregate = tv.Aggregate || a.Aggregate
	}
	return tv
}

// commonType picks the type of a value chosen among alternatives: the widest
// numeric type, else the first non-null type.
func commonType(args []TypeAndValue) types.Type {
	out := types.Null
	for _, a := range args {
		switch {
		case out == types.Null:
			out = a.Type
		case out.IsNumeric() && a.Type.IsNumeric():
			out = types.Widen(out, a.Type)
		}
	}
	if out == types.Null && len(args) == 0 {
		return types.Unknown
	}
	return out
}

func operationType(op *ast.Operator, args []TypeAndValue) TypeAndValue {
	tv := combine(args)
	switch {
	case op.Boolean:
		tv.Type = types.Boolean
	case op == ast.OpConcat:
		tv.Type = types.Varchar
	case op.Form == ast.Prefix:
		tv.Type = args[0].Type
		tv.Attrs = args[0].Attrs
	default:
		tv.Type = args[0].Type
		for _, a := range args[1:] {
			tv.Type = types.Widen(tv.Type, a.Type)
		}
	}
	return tv
}

// aggregateType types an aggregate. COUNT is always an integer; AVG and the
// dispersion functions are double; other aggregates keep the type and
// display attributes of their argument.
func aggregateType(fn string, args []TypeAndValue) TypeAndValue {
	tv := TypeAndValue{Aggregate: true}
	switch fn {
	case "count":
		tv.Type = types.Integer
	case "avg", "stddev", "variance":
		tv.Type = types.Double
	case "group_concat":
		tv.Type = types.Varchar
	default:
		if len(args) > 0 {
			tv.Type = args[0].Type
			tv.Attrs = args[0].Attrs
		}
	}
	return tv
}

func (r *resolver) call(e env, x *ast.Call) TypeAndValue {
	args := r.exprs(e, x.Args)
	tv := combine(args)

	argTypes := make([]types.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
	}
	m, ok := r.cfg.Methods.Lookup(x.Name, argTypes)
	if !ok {
		r.errorf(diag.UnknownMethod, x, "unknown method %s", x.Name)
		tv.Type = types.Unknown
		return tv
	}
	if err := m.CheckArity(len(args)); err != nil {
		r.errorf(diag.InvalidArguments, x, "%v", err)
	}
	r.info.Methods[x] = m
	tv.Type = m.ReturnType(argTypes)
	tv.Constant = tv.Constant && !m.Volatile
	return tv
}

// ---------- Fields ----------

func (r *resolver) field(e env, x ast.Expr) TypeAndValue {
	key := ast.KeyOf(x)
	if key == nil {
		if !e.quiet {
			r.errorf(diag.UnknownField, x, "cannot resolve field reference")
		}
		return TypeAndValue{Type: types.Unknown}
	}

	if key.IsSimple() {
		return r.simpleField(e, x, key)
	}

	rel, ok := e.scope.LookupQualified(key.Parent())
	if !ok {
		if !e.quiet {
			r.errorf(diag.UnknownField, x, "unknown field %s: no table %s in scope", key, key.Parent())
		}
		return TypeAndValue{Type: types.Unknown}
	}
	col, ok := rel.Column(key.Name())
	if !ok {
		if !e.quiet {
			r.errorf(diag.UnknownField, x, "unknown field %s", key)
		}
		return TypeAndValue{Type: types.Unknown}
	}
	return r.bind(x, &Field{Key: key, Relation: rel, Column: col})
}

func (r *resolver) simpleField(e env, x ast.Expr, key *fieldkey.FieldKey) TypeAndValue {
	name := key.Name()
	if e.aliases == aliasFirst {
		if c, ok := e.scope.Output(name); ok {
			return r.bind(x, &Field{Key: key, Column: c})
		}
	}

	matches, col := e.scope.ResolveColumn(name)
	if len(matches) > 1 && !e.quiet {
		r.errorf(diag.AmbiguousField, x, "field %s is ambiguous: found in %s and %s",
			fieldkey.Quote(name), fieldkey.Quote(matches[0].RefName()), fieldkey.Quote(matches[1].RefName()))
	}
	if len(matches) > 0 {
		return r.bind(x, &Field{Key: key, Relation: matches[0], Column: col})
	}

	if e.aliases == aliasAfter {
		if c, ok := e.scope.Output(name); ok {
			return r.bind(x, &Field{Key: key, Column: c})
		}
	}

	if p, ok := r.params[fieldkey.Fold(name)]; ok {
		r.info.Params[x] = p
		t := p.Type
		if !p.TypeOK {
			t = types.Unknown
		}
		return TypeAndValue{Type: t, Constant: true}
	}

	if rel, c := e.scope.ResolveOpen(name); rel != nil {
		return r.bind(x, &Field{Key: key, Relation: rel, Column: c})
	}

	if !e.quiet {
		r.errorf(diag.UnknownField, x, "unknown field %s", key)
	}
	return TypeAndValue{Type: types.Unknown}
}

func (r *resolver) bind(x ast.Expr, f *Field) TypeAndValue {
	r.info.Fields[x] = f
	return TypeAndValue{Type: f.Column.Type, Attrs: f.Column.Attrs}
}
