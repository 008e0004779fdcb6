package ast

// Inspect traverses an expression in depth-first order, calling fn for each
// node. If fn returns false the children of that node are skipped. The walk
// stops at *Subquery: the nested query belongs to its own scope.
func Inspect(x Expr, fn func(Expr) bool) {
	if x == nil || !fn(x) {
		return
	}
	for _, c := range Children(x) {
		Inspect(c, fn)
	}
}

// Children returns the direct sub-expressions of x. A *Subquery and an
// *Exists have none.
func Children(x Expr) []Expr {
	switch x := x.(type) {
	case *Dot:
		return []Expr{x.Left, x.Right}
	case *Operation:
		return x.Args
	case *Aggregate:
		return x.Args
	case *Call:
		return x.Args
	case *Case:
		var out []Expr
		if x.Operand != nil {
			out = append(out, x.Operand)
		}
		for _, w := range x.Whens {
			out = append(out, w.Cond, w.Result)
		}
		if x.Else != nil {
			out = append(out, x.Else)
		}
		return out
	case *Cast:
		return []Expr{x.X}
	case *ExprList:
		return x.Items
	case *IfDefined:
		return []Expr{x.X}
	}
	return nil
}

// ContainsAggregate reports whether x holds an aggregate outside of any
// nested sub-query.
func ContainsAggregate(x Expr) bool {
	found := false
	Inspect(x, func(e Expr) bool {
		if _, ok := e.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// Exprs returns every top-level expression held by a select block, in clause
// order. Table terms contribute their join conditions.
func (s *Select) Exprs() []Expr {
	var out []Expr
	for _, item := range s.Items {
		out = append(out, item.X)
	}
	for _, term := range s.From {
		if term.On != nil {
			out = append(out, term.On)
		}
	}
	out = append(out, s.Where...)
	out = append(out, s.GroupBy...)
	out = append(out, s.Having...)
	if s.Pivot != nil {
		out = append(out, s.Pivot.Columns...)
		out = append(out, s.Pivot.By...)
		for _, v := range s.Pivot.Values {
			out = append(out, v.X)
		}
	}
	for _, o := range s.OrderBy {
		out = append(out, o.X)
	}
	if s.Limit != nil {
		out = append(out, s.Limit.X)
	}
	return out
}
