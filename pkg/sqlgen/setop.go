package sqlgen

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/dialect"
)

// SetOperationResolver combines the rendered members of a set operation into
// one query. ops[i] joins members[i] and members[i+1]. The generator appends
// ORDER BY and the row limit to the result.
type SetOperationResolver interface {
	Combine(d *dialect.Dialect, members []string, ops []ast.SetOp) string
}

// SetOperationFunc adapts a function to SetOperationResolver.
type SetOperationFunc func(d *dialect.Dialect, members []string, ops []ast.SetOp) string

// Combine calls f.
func (f SetOperationFunc) Combine(d *dialect.Dialect, members []string, ops []ast.SetOp) string {
	return f(d, members, ops)
}

// DefaultSetOps wraps each member the way the dialect accepts compound
// members and joins them with their operators.
var DefaultSetOps SetOperationResolver = SetOperationFunc(combine)

func combine(d *dialect.Dialect, members []string, ops []ast.SetOp) string {
	var sb strings.Builder
	for i, m := range members {
		if i > 0 {
			sb.WriteString(" " + ops[i-1].String() + " ")
		}
		switch d.SetMembers {
		case dialect.SetMemberSubquery:
			sb.WriteString("SELECT * FROM (" + m + ") AS " + d.QuoteIdentifierIfNeeded("set"+strconv.Itoa(i+1)))
		default:
			sb.WriteString("(" + m + ")")
		}
	}
	return sb.String()
}
