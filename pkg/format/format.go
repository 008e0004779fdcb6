package format

import (
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
)

// Format regenerates canonical source for a statement. Parsing the result
// yields a structurally equivalent tree, and formatting is idempotent.
func Format(stmt *ast.Statement) string {
	p := newPrinter()
	p.formatStatement(stmt)
	return p.String()
}

// Query regenerates canonical source for a single query.
func Query(q ast.QueryExpr) string {
	p := newPrinter()
	p.formatQuery(q)
	return p.String()
}

// Expr regenerates source for one expression, without a trailing newline.
func Expr(x ast.Expr) string {
	p := newPrinter()
	p.formatExpr(x)
	return strings.TrimRight(p.output.String(), "\n")
}
