// Package resolve binds the names of a typed query tree to schema metadata
// and infers the type of every expression.
//
// Resolution never fails outright: unknown fields, tables and methods are
// recorded as semantic errors and resolution continues, so a single pass
// reports every problem. SyntaxCheck runs the structural checks of the
// validate phase.
package resolve

import (
	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/method"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// TypeAndValue records the inferred properties of an expression.
type TypeAndValue struct {
	Type      types.Type
	Attrs     types.Attrs // display attributes inherited from a column
	Constant  bool
	Aggregate bool // the expression holds an aggregate outside any sub-query
}

// Field is the binding of an identifier-like expression.
type Field struct {
	Key      *fieldkey.FieldKey
	Relation *Relation // nil for a reference to a select-list column
	Column   *Column
}

// Info holds the results of resolving one statement. Maps are keyed by the
// typed nodes of the tree that was resolved.
type Info struct {
	Types     map[ast.Expr]TypeAndValue
	Fields    map[ast.Expr]*Field         // Ident, Dot and FieldRef bound to columns
	Params    map[ast.Expr]*ast.Parameter // Ident bound to a declared parameter
	Methods   map[*ast.Call]*method.Method
	Relations map[*ast.TableTerm]*Relation
	CTEs      map[*ast.CTE]*Relation
	Recursive map[*ast.CTE]bool // bindings that reference themselves
	Outputs   map[ast.QueryExpr][]*Column
	Defined   map[*ast.IfDefined]bool
}

func newInfo() *Info {
	return &Info{
		Types:     make(map[ast.Expr]TypeAndValue),
		Fields:    make(map[ast.Expr]*Field),
		Params:    make(map[ast.Expr]*ast.Parameter),
		Methods:   make(map[*ast.Call]*method.Method),
		Relations: make(map[*ast.TableTerm]*Relation),
		CTEs:      make(map[*ast.CTE]*Relation),
		Recursive: make(map[*ast.CTE]bool),
		Outputs:   make(map[ast.QueryExpr][]*Column),
		Defined:   make(map[*ast.IfDefined]bool),
	}
}

// TypeOf returns the inferred type of x, or types.Unknown.
func (info *Info) TypeOf(x ast.Expr) types.Type {
	return info.Types[x].Type
}

// IsConstant reports whether x was inferred to be constant.
func (info *Info) IsConstant(x ast.Expr) bool {
	return info.Types[x].Constant
}

// IsAggregate reports whether x holds an aggregate. Expressions the resolver
// never saw are inspected directly.
func (info *Info) IsAggregate(x ast.Expr) bool {
	if tv, ok := info.Types[x]; ok {
		return tv.Aggregate
	}
	return ast.ContainsAggregate(x)
}
