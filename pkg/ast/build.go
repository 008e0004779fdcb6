package ast

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/token"
	"github.com/leapstack-labs/qsql/pkg/tree"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// Build wraps a raw STATEMENT tree into typed nodes. Failures are contract
// violations (diag.ErrInvalidChild, diag.ErrMalformedLiteral) and abort the
// build.
func Build(a *tree.Arena, root tree.ID) (*Statement, error) {
	b := &builder{a: a}
	if a.Kind(root) != token.STATEMENT {
		return nil, fmt.Errorf("%w: expected STATEMENT, got %s", diag.ErrInvalidChild, a.Kind(root))
	}
	return b.statement(root)
}

// BuildExpr wraps a raw expression tree.
func BuildExpr(a *tree.Arena, id tree.ID) (Expr, error) {
	b := &builder{a: a}
	return b.expr(id)
}

type builder struct {
	a *tree.Arena
}

func (b *builder) origin(id tree.ID) base {
	return base{raw: id, pos: b.a.Pos(id)}
}

func (b *builder) unexpected(parent string, id tree.ID) error {
	pos := b.a.Pos(id)
	return fmt.Errorf("%w: %s cannot hold %s at line %d, column %d",
		diag.ErrInvalidChild, parent, b.a.Kind(id), pos.Line, pos.Column)
}

func invalidChild(parent string, x Expr) error {
	pos := x.Pos()
	return fmt.Errorf("%w: %s cannot hold %T at line %d, column %d",
		diag.ErrInvalidChild, parent, x, pos.Line, pos.Column)
}

// ---------- Statement ----------

func (b *builder) statement(id tree.ID) (*Statement, error) {
	stmt := &Statement{base: b.origin(id)}
	for _, c := range b.a.Children(id) {
		var err error
		switch b.a.Kind(c) {
		case token.PARAMETERS:
			stmt.Parameters, err = b.parameters(c)
		case token.WITH:
			stmt.With, err = b.with(c)
		case token.QUERY, token.SET_QUERY:
			stmt.Body, err = b.query(c)
		default:
			err = b.unexpected("STATEMENT", c)
		}
		if err != nil {
			return nil, err
		}
	}
	if stmt.Body == nil {
		return nil, fmt.Errorf("%w: statement has no query", diag.ErrInvalidChild)
	}
	return stmt, nil
}

func (b *builder) parameters(id tree.ID) ([]*Parameter, error) {
	var params []*Parameter
	for _, c := range b.a.Children(id) {
		p := &Parameter{base: b.origin(c), Name: b.a.Text(c)}
		for _, part := range b.a.Children(c) {
			switch b.a.Kind(part) {
			case token.TYPE_NAME:
				p.TypeName = b.a.Text(part)
				p.Type, p.TypeOK = types.LookupParameter(p.TypeName)
			case token.REQUIRED:
				p.Required = true
			case token.DEFAULT:
				def, err := b.expr(b.a.Child(part, 0))
				if err != nil {
					return nil, err
				}
				p.Default = def
			default:
				return nil, b.unexpected("PARAM_DECL", part)
			}
		}
		params = append(params, p)
	}
	return params, nil
}

func (b *builder) with(id tree.ID) (*With, error) {
	w := &With{base: b.origin(id), Recursive: b.a.Text(id) == "RECURSIVE"}
	for _, c := range b.a.Children(id) {
		q, err := b.query(b.a.Child(c, 0))
		if err != nil {
			return nil, err
		}
		w.CTEs = append(w.CTEs, &CTE{base: b.origin(c), Name: b.a.Text(c), Query: q})
	}
	return w, nil
}

// ---------- Queries ----------

func (b *builder) query(id tree.ID) (QueryExpr, error) {
	switch b.a.Kind(id) {
	case token.QUERY:
		return b.selectQuery(id)
	case token.SET_QUERY:
		return b.union(id)
	}
	return nil, b.unexpected("query", id)
}

func (b *builder) union(id tree.ID) (*Union, error) {
	u := &Union{base: b.origin(id)}
	for _, c := range b.a.Children(id) {
		switch kind := b.a.Kind(c); kind {
		case token.QUERY, token.SET_QUERY:
			q, err := b.query(c)
			if err != nil {
				return nil, err
			}
			u.Members = append(u.Members, q)
		case token.UNION:
			u.Ops = append(u.Ops, SetUnion)
		case token.UNION_ALL:
			u.Ops = append(u.Ops, SetUnionAll)
		case token.INTERSECT:
			u.Ops = append(u.Ops, SetIntersect)
		case token.EXCEPT:
			u.Ops = append(u.Ops, SetExcept)
		case token.ORDER:
			order, err := b.orderBy(c)
			if err != nil {
				return nil, err
			}
			u.OrderBy = order
		case token.LIMIT:
			limit, err := b.limit(c)
			if err != nil {
				return nil, err
			}
			u.Limit = limit
		default:
			return nil, b.unexpected("SET_QUERY", c)
		}
	}
	if len(u.Ops) != len(u.Members)-1 {
		return nil, fmt.Errorf("%w: %d set operators for %d members", diag.ErrInvalidChild, len(u.Ops), len(u.Members))
	}
	return u, nil
}

func (b *builder) selectQuery(id tree.ID) (*Select, error) {
	s := &Select{base: b.origin(id)}
	for _, c := range b.a.Children(id) {
		var err error
		switch b.a.Kind(c) {
		case token.SELECT:
			s.Distinct = b.a.Text(c) == "DISTINCT"
			s.Items, err = b.selectItems(c)
		case token.FROM:
			s.From, err = b.from(c)
		case token.WHERE:
			s.Where, err = b.conjuncts(b.a.Child(c, 0))
		case token.GROUP:
			s.GroupBy, err = b.exprs(b.a.Children(c))
		case token.HAVING:
			s.Having, err = b.conjuncts(b.a.Child(c, 0))
		case token.PIVOT:
			s.Pivot, err = b.pivot(c)
		case token.ORDER:
			s.OrderBy, err = b.orderBy(c)
		case token.LIMIT:
			s.Limit, err = b.limit(c)
		default:
			err = b.unexpected("QUERY", c)
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (b *builder) selectItems(id tree.ID) ([]*SelectItem, error) {
	items := make([]*SelectItem, 0, b.a.NumChildren(id))
	for _, c := range b.a.Children(id) {
		x, err := b.expr(b.a.Child(c, 0))
		if err != nil {
			return nil, err
		}
		item := &SelectItem{base: b.origin(c), X: x}
		if alias, ok := b.a.FirstChildOfKind(c, token.ALIAS); ok {
			item.Alias = b.a.Text(alias)
		}
		items = append(items, item)
	}
	return items, nil
}

var joinKinds = map[token.TokenType]JoinKind{
	token.COMMA: JoinComma,
	token.INNER: JoinInner,
	token.LEFT:  JoinLeft,
	token.RIGHT: JoinRight,
	token.FULL:  JoinFull,
	token.CROSS: JoinCross,
}

func (b *builder) from(id tree.ID) ([]*TableTerm, error) {
	var terms []*TableTerm
	for _, c := range b.a.Children(id) {
		term := &TableTerm{base: b.origin(c)}
		for _, part := range b.a.Children(c) {
			kind := b.a.Kind(part)
			if jk, ok := joinKinds[kind]; ok {
				term.Join = jk
				continue
			}
			switch kind {
			case token.IDENT, token.DOT:
				term.Name = b.nameKey(part)
				if term.Name == nil {
					return nil, b.unexpected("TABLE_TERM", part)
				}
			case token.SUBQUERY:
				q, err := b.query(b.a.Child(part, 0))
				if err != nil {
					return nil, err
				}
				term.Query = q
			case token.ALIAS:
				term.Alias = b.a.Text(part)
			case token.ON:
				on, err := b.expr(b.a.Child(part, 0))
				if err != nil {
					return nil, err
				}
				term.On = on
			default:
				return nil, b.unexpected("TABLE_TERM", part)
			}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// nameKey converts a raw IDENT/DOT chain into a key.
func (b *builder) nameKey(id tree.ID) *fieldkey.FieldKey {
	switch b.a.Kind(id) {
	case token.IDENT:
		return fieldkey.New(nil, b.a.Text(id))
	case token.DOT:
		left := b.nameKey(b.a.Child(id, 0))
		right := b.nameKey(b.a.Child(id, 1))
		return left.Append(right)
	}
	return nil
}

func (b *builder) pivot(id tree.ID) (*Pivot, error) {
	p := &Pivot{base: b.origin(id)}
	groups := b.a.Children(id)
	var err error
	if len(groups) > 0 {
		if p.Columns, err = b.exprs(b.a.Children(groups[0])); err != nil {
			return nil, err
		}
	}
	if len(groups) > 1 {
		if p.By, err = b.exprs(b.a.Children(groups[1])); err != nil {
			return nil, err
		}
	}
	if len(groups) > 2 {
		p.Values = []*PivotValue{}
		for _, v := range b.a.Children(groups[2]) {
			x, err := b.expr(b.a.Child(v, 0))
			if err != nil {
				return nil, err
			}
			pv := &PivotValue{base: b.origin(v), X: x}
			if alias, ok := b.a.FirstChildOfKind(v, token.ALIAS); ok {
				pv.Alias = b.a.Text(alias)
			}
			p.Values = append(p.Values, pv)
		}
	}
	return p, nil
}

// orderBy folds the flat ORDER stream into entries. Direction markers apply
// to the most recent expression; an expression after a marker starts a new
// entry.
func (b *builder) orderBy(id tree.ID) ([]*OrderEntry, error) {
	var entries []*OrderEntry
	for _, c := range b.a.Children(id) {
		switch b.a.Kind(c) {
		case token.ASC, token.DESC:
			if len(entries) == 0 {
				return nil, b.unexpected("ORDER", c)
			}
			entries[len(entries)-1].Desc = b.a.Kind(c) == token.DESC
		default:
			x, err := b.expr(c)
			if err != nil {
				return nil, err
			}
			entries = append(entries, &OrderEntry{X: x})
		}
	}
	return entries, nil
}

func (b *builder) limit(id tree.ID) (*Limit, error) {
	x, err := b.expr(b.a.Child(id, 0))
	if err != nil {
		return nil, err
	}
	return &Limit{base: b.origin(id), X: x}, nil
}

// conjuncts splits a boolean expression on its top-level ANDs.
func (b *builder) conjuncts(id tree.ID) ([]Expr, error) {
	x, err := b.expr(id)
	if err != nil {
		return nil, err
	}
	return Conjuncts(x), nil
}

// Conjuncts returns the operands of a top-level AND, or x alone.
func Conjuncts(x Expr) []Expr {
	if op, ok := x.(*Operation); ok && op.Op == OpAnd {
		return op.Args
	}
	return []Expr{x}
}

// ---------- Expressions ----------

func (b *builder) exprs(ids []tree.ID) ([]Expr, error) {
	out := make([]Expr, 0, len(ids))
	for _, id := range ids {
		x, err := b.expr(id)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (b *builder) expr(id tree.ID) (Expr, error) {
	if id == tree.Nil {
		return nil, fmt.Errorf("%w: missing expression", diag.ErrInvalidChild)
	}
	a := b.a
	kind := a.Kind(id)
	o := b.origin(id)

	switch kind {
	case token.NUMBER:
		return numberLit(o, a.Text(id))
	case token.STRING:
		return &StringLit{base: o, Value: a.Text(id)}, nil
	case token.TRUE, token.FALSE:
		return &BoolLit{base: o, Value: kind == token.TRUE}, nil
	case token.NULL:
		return &NullLit{base: o}, nil
	case token.DATE_LIT:
		v, err := ParseDate(a.Text(id))
		if err != nil {
			return nil, err
		}
		return &DateLit{base: o, Text: a.Text(id), Value: v}, nil
	case token.TIMESTAMP_LIT:
		v, err := ParseTimestamp(a.Text(id))
		if err != nil {
			return nil, err
		}
		return &TimestampLit{base: o, Text: a.Text(id), Value: v}, nil
	case token.IDENT:
		return &Ident{base: o, Name: a.Text(id)}, nil
	case token.STAR:
		if a.NumChildren(id) == 0 {
			return &RowStar{base: o}, nil
		}
	case token.DOT:
		return b.dot(id)
	case token.PAREN:
		// Grouping is recomputed from precedence on emission.
		return b.expr(a.Child(id, 0))
	case token.CALL:
		return b.call(id)
	case token.CASE:
		return b.caseExpr(id)
	case token.CAST:
		x, err := b.expr(a.Child(id, 0))
		if err != nil {
			return nil, err
		}
		return &Cast{base: o, X: x, TypeName: a.Text(a.Child(id, 1))}, nil
	case token.SUBQUERY:
		q, err := b.query(a.Child(id, 0))
		if err != nil {
			return nil, err
		}
		return &Subquery{base: o, Query: q}, nil
	case token.EXISTS:
		sub, err := b.expr(a.Child(id, 0))
		if err != nil {
			return nil, err
		}
		sq, ok := sub.(*Subquery)
		if !ok {
			return nil, invalidChild("EXISTS", sub)
		}
		return &Exists{base: o, Query: sq}, nil
	case token.EXPR_LIST:
		items, err := b.exprs(a.Children(id))
		if err != nil {
			return nil, err
		}
		return &ExprList{base: o, Items: items}, nil
	case token.IFDEFINED:
		x, err := b.expr(a.Child(id, 0))
		if err != nil {
			return nil, err
		}
		w, err := NewIfDefined(o.pos, x)
		if err != nil {
			return nil, err
		}
		w.raw = id
		return w, nil
	case token.UNSAFE:
		return &Unsafe{base: o, SQL: a.Text(id)}, nil
	case token.ESCAPE:
		return b.expr(a.Child(id, 0))
	}

	if op, ok := LookupOperator(kind); ok {
		args, err := b.exprs(a.Children(id))
		if err != nil {
			return nil, err
		}
		return NewOperation(o, op, args), nil
	}
	return nil, b.unexpected("expression", id)
}

// NewOperation builds an operator application, flattening nested uses of the
// same associative operator.
func NewOperation(o base, op *Operator, args []Expr) *Operation {
	if !op.Associative {
		return &Operation{base: o, Op: op, Args: args}
	}
	flat := make([]Expr, 0, len(args))
	for _, arg := range args {
		if inner, ok := arg.(*Operation); ok && inner.Op == op {
			flat = append(flat, inner.Args...)
			continue
		}
		flat = append(flat, arg)
	}
	return &Operation{base: o, Op: op, Args: flat}
}

// Apply builds an operator application for programmatically constructed
// trees, such as rewritten predicates.
func Apply(op *Operator, args ...Expr) *Operation {
	pos := token.Position{}
	if len(args) > 0 {
		pos = args[0].Pos()
	}
	return NewOperation(at(pos), op, args)
}

func (b *builder) dot(id tree.ID) (Expr, error) {
	left, err := b.expr(b.a.Child(id, 0))
	if err != nil {
		return nil, err
	}
	rightID := b.a.Child(id, 1)
	if b.a.Kind(rightID) == token.STAR {
		key := KeyOf(left)
		if key == nil {
			return nil, invalidChild("row star qualifier", left)
		}
		return &RowStar{base: b.origin(id), Table: key}, nil
	}
	right, err := b.expr(rightID)
	if err != nil {
		return nil, err
	}
	return &Dot{base: b.origin(id), Left: left, Right: right}, nil
}

func (b *builder) call(id tree.ID) (Expr, error) {
	name := b.a.Text(id)
	distinct := false
	var argIDs []tree.ID
	for _, c := range b.a.Children(id) {
		if b.a.Kind(c) == token.DISTINCT {
			distinct = true
			continue
		}
		argIDs = append(argIDs, c)
	}
	args, err := b.exprs(argIDs)
	if err != nil {
		return nil, err
	}
	if lower := strings.ToLower(name); IsAggregateName(lower) {
		return &Aggregate{base: b.origin(id), Func: lower, Distinct: distinct, Args: args}, nil
	}
	return &Call{base: b.origin(id), Name: name, Args: args}, nil
}

func (b *builder) caseExpr(id tree.ID) (Expr, error) {
	c := &Case{base: b.origin(id)}
	for _, part := range b.a.Children(id) {
		switch b.a.Kind(part) {
		case token.WHEN_CLAUSE:
			cond, err := b.expr(b.a.Child(part, 0))
			if err != nil {
				return nil, err
			}
			result, err := b.expr(b.a.Child(part, 1))
			if err != nil {
				return nil, err
			}
			c.Whens = append(c.Whens, &When{Cond: cond, Result: result})
		case token.ELSE:
			els, err := b.expr(b.a.Child(part, 0))
			if err != nil {
				return nil, err
			}
			c.Else = els
		default:
			operand, err := b.expr(part)
			if err != nil {
				return nil, err
			}
			c.Operand = operand
		}
	}
	return c, nil
}

// ---------- Literal parsing ----------

func numberLit(o base, text string) (*NumberLit, error) {
	n := &NumberLit{base: o, Text: text}
	if !strings.ContainsAny(text, ".eE") {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q: %v", diag.ErrMalformedLiteral, text, err)
		}
		n.IsInt, n.Int, n.Float = true, v, float64(v)
		return n, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %q: %v", diag.ErrMalformedLiteral, text, err)
	}
	n.Float = v
	return n, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseDate parses a date literal body.
func ParseDate(text string) (time.Time, error) {
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", diag.ErrMalformedLiteral, text)
	}
	return v, nil
}

// ParseTimestamp parses a timestamp literal body.
func ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, text); err == nil {
			return v, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", diag.ErrMalformedLiteral, text)
}

// KeyOf projects an identifier-like expression onto a field key. Dotted
// chains combine left to right, and only while each right-hand side is a
// simple name; any other shape has no key.
func KeyOf(x Expr) *fieldkey.FieldKey {
	switch x := x.(type) {
	case *Ident:
		return fieldkey.New(nil, x.Name)
	case *FieldRef:
		return x.Key
	case *Dot:
		return KeyOf(x.Left).Append(KeyOf(x.Right))
	}
	return nil
}
