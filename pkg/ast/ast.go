// Package ast defines the typed query tree.
//
// The node set is closed: every expression is one of the concrete types in
// this file and every query is a *Select or a *Union. Consumers switch over
// the concrete types; the unexported marker methods keep other packages from
// adding variants. Nodes remember the raw tree node they were built from.
package ast

import (
	"time"

	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/token"
	"github.com/leapstack-labs/qsql/pkg/tree"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// Node is implemented by every typed node.
type Node interface {
	Pos() token.Position
	Raw() tree.ID
}

// Expr is a value-producing node.
type Expr interface {
	Node
	exprNode()
}

// QueryExpr is a relation-producing node: *Select or *Union.
type QueryExpr interface {
	Node
	queryNode()
}

type base struct {
	raw tree.ID
	pos token.Position
}

func (b *base) Pos() token.Position { return b.pos }
func (b *base) Raw() tree.ID        { return b.raw }

func at(pos token.Position) base {
	return base{raw: tree.Nil, pos: pos}
}

// ---------- Literals ----------

type (
	// BoolLit is TRUE or FALSE.
	BoolLit struct {
		base
		Value bool
	}

	// NumberLit is a numeric literal. IsInt is set for literals without a
	// fraction or exponent.
	NumberLit struct {
		base
		Text  string
		IsInt bool
		Int   int64
		Float float64
	}

	// StringLit is a quoted string.
	StringLit struct {
		base
		Value string
	}

	// DateLit is DATE '...' or {d '...'}.
	DateLit struct {
		base
		Text  string
		Value time.Time
	}

	// TimestampLit is TIMESTAMP '...' or {ts '...'}.
	TimestampLit struct {
		base
		Text  string
		Value time.Time
	}

	// NullLit is NULL.
	NullLit struct {
		base
	}
)

// ---------- References ----------

type (
	// Ident is a bare identifier.
	Ident struct {
		base
		Name string
	}

	// Dot is one step of a dotted chain: Left.Right.
	Dot struct {
		base
		Left  Expr
		Right Expr
	}

	// FieldRef is an already-resolved field reference.
	FieldRef struct {
		base
		Key *fieldkey.FieldKey
	}

	// RowStar is the whole-row marker: * or table.*.
	RowStar struct {
		base
		Table *fieldkey.FieldKey // nil for a bare *
	}
)

// ---------- Compound expressions ----------

type (
	// Operation applies an operator from the catalog. Associative operators
	// hold all of their operands in one flat list.
	Operation struct {
		base
		Op   *Operator
		Args []Expr
	}

	// Aggregate is a group function such as COUNT or SUM.
	Aggregate struct {
		base
		Func     string // lower case
		Distinct bool
		Args     []Expr
	}

	// Call is a method call, bound to the method registry during resolution.
	Call struct {
		base
		Name string
		Args []Expr
	}

	// Case is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
	Case struct {
		base
		Operand Expr // nil for a searched CASE
		Whens   []*When
		Else    Expr
	}

	// Cast is CAST(x AS type).
	Cast struct {
		base
		X        Expr
		TypeName string
	}

	// Subquery is a nested query used as a value or a list. It is the boundary
	// between the enclosing query and its own scope: walks over the enclosing
	// query never descend into it.
	Subquery struct {
		base
		Query QueryExpr
	}

	// Exists is EXISTS (query).
	Exists struct {
		base
		Query *Subquery
	}

	// ExprList is a parenthesized list, the right operand of IN.
	ExprList struct {
		base
		Items []Expr
	}

	// IfDefined emits X when its field is defined, SQL NULL otherwise.
	IfDefined struct {
		base
		X Expr
	}

	// Unsafe is raw SQL passed through to the target dialect.
	Unsafe struct {
		base
		SQL string
	}
)

// When is one WHEN ... THEN ... arm.
type When struct {
	Cond   Expr
	Result Expr
}

func (*BoolLit) exprNode()      {}
func (*NumberLit) exprNode()    {}
func (*StringLit) exprNode()    {}
func (*DateLit) exprNode()      {}
func (*TimestampLit) exprNode() {}
func (*NullLit) exprNode()      {}
func (*Ident) exprNode()        {}
func (*Dot) exprNode()          {}
func (*FieldRef) exprNode()     {}
func (*RowStar) exprNode()      {}
func (*Operation) exprNode()    {}
func (*Aggregate) exprNode()    {}
func (*Call) exprNode()         {}
func (*Case) exprNode()         {}
func (*Cast) exprNode()         {}
func (*Subquery) exprNode()     {}
func (*Exists) exprNode()       {}
func (*ExprList) exprNode()     {}
func (*IfDefined) exprNode()    {}
func (*Unsafe) exprNode()       {}

// NewIfDefined wraps an identifier-like expression. Any other child shape
// fails with diag.ErrInvalidChild.
func NewIfDefined(pos token.Position, x Expr) (*IfDefined, error) {
	switch x.(type) {
	case *Ident, *Dot, *FieldRef:
		return &IfDefined{base: at(pos), X: x}, nil
	}
	return nil, invalidChild("IFDEFINED", x)
}

// NewFieldRef returns a resolved reference that has no raw tree node, such as
// one column of an expanded row star.
func NewFieldRef(pos token.Position, key *fieldkey.FieldKey) *FieldRef {
	return &FieldRef{base: at(pos), Key: key}
}

// aggregateFuncs are the names that build an *Aggregate rather than a *Call.
var aggregateFuncs = map[string]bool{
	"count":        true,
	"sum":          true,
	"min":          true,
	"max":          true,
	"avg":          true,
	"stddev":       true,
	"variance":     true,
	"group_concat": true,
}

// IsAggregateName reports whether a call-site name denotes an aggregate.
func IsAggregateName(lower string) bool {
	return aggregateFuncs[lower]
}

// ---------- Clauses ----------

// Statement is a complete query definition.
type Statement struct {
	base
	Parameters []*Parameter
	With       *With
	Body       QueryExpr
}

// Parameter is a PARAMETERS declaration.
type Parameter struct {
	base
	Name     string
	TypeName string
	Type     types.Type
	TypeOK   bool // TypeName was found in the parameter type catalog
	Required bool
	Default  Expr
}

// With holds the named sub-queries available to the owning query.
type With struct {
	base
	Recursive bool
	CTEs      []*CTE
}

// CTE is one named binding of a With.
type CTE struct {
	base
	Name  string
	Query QueryExpr
}

// Lookup returns the binding with the given name, ignoring case.
func (w *With) Lookup(name string) (*CTE, bool) {
	if w == nil {
		return nil, false
	}
	for _, c := range w.CTEs {
		if fieldkey.Fold(c.Name) == fieldkey.Fold(name) {
			return c, true
		}
	}
	return nil, false
}

// Select is a single SELECT block.
type Select struct {
	base
	Distinct bool
	Items    []*SelectItem
	From     []*TableTerm
	Where    []Expr // conjuncts
	GroupBy  []Expr
	Having   []Expr // conjuncts
	Pivot    *Pivot
	OrderBy  []*OrderEntry
	Limit    *Limit
}

// SelectItem is one projected expression.
type SelectItem struct {
	base
	X     Expr
	Alias string
}

// NewSelectItem returns a select item that has no raw tree node.
func NewSelectItem(pos token.Position, x Expr, alias string) *SelectItem {
	return &SelectItem{base: at(pos), X: x, Alias: alias}
}

// JoinKind says how a table term joins the terms before it.
type JoinKind int

// Join kinds. The first term of a FROM list is always JoinNone.
const (
	JoinNone JoinKind = iota
	JoinComma
	JoinInner
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinComma:
		return ","
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL OUTER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	}
	return ""
}

// TableTerm is a table or sub-query reference in a FROM list.
type TableTerm struct {
	base
	Join  JoinKind
	Name  *fieldkey.FieldKey // set for a table reference
	Query QueryExpr          // set for a derived table
	Alias string
	On    Expr
}

// RefName returns the name other clauses use to refer to the term.
func (t *TableTerm) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	if t.Name != nil {
		return t.Name.Name()
	}
	return ""
}

// OrderEntry is one sort key. Ascending is the default.
type OrderEntry struct {
	X    Expr
	Desc bool
}

// Limit bounds the number of rows.
type Limit struct {
	base
	X Expr
}

// Effective returns the bound when it is a literal non-negative integer and
// 0 otherwise. A 0 result therefore also means "no usable limit"; callers
// that must tell the two apart inspect X.
func (l *Limit) Effective() int64 {
	if l == nil {
		return 0
	}
	if n, ok := l.X.(*NumberLit); ok && n.IsInt && n.Int >= 0 {
		return n.Int
	}
	return 0
}

// Literal reports whether the bound is a literal non-negative integer.
func (l *Limit) Literal() bool {
	if l == nil {
		return false
	}
	n, ok := l.X.(*NumberLit)
	return ok && n.IsInt && n.Int >= 0
}

// SetOp is the operator between two members of a Union.
type SetOp int

// Set operators.
const (
	SetUnion SetOp = iota
	SetUnionAll
	SetIntersect
	SetExcept
)

func (op SetOp) String() string {
	switch op {
	case SetUnionAll:
		return "UNION ALL"
	case SetIntersect:
		return "INTERSECT"
	case SetExcept:
		return "EXCEPT"
	}
	return "UNION"
}

// Union combines member queries. Ops[i] joins Members[i] and Members[i+1].
type Union struct {
	base
	Members []QueryExpr
	Ops     []SetOp
	OrderBy []*OrderEntry
	Limit   *Limit
}

// Pivot turns distinct values of By into columns.
type Pivot struct {
	base
	Columns []Expr        // pivoted value expressions, usually select aliases
	By      []Expr        // nil when the BY group is missing
	Values  []*PivotValue // nil when no IN list was given
}

// PivotValue is one entry of a PIVOT ... IN (...) list.
type PivotValue struct {
	base
	X     Expr
	Alias string
}

func (*Select) queryNode() {}
func (*Union) queryNode()  {}
