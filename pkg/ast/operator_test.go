package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/token"
)

func id(name string) ast.Expr { return &ast.Ident{Name: name} }

func TestNeedsParens(t *testing.T) {
	a, b, c := id("a"), id("b"), id("c")

	tests := []struct {
		name    string
		op      *ast.Operator
		i       int
		operand ast.Expr
		want    bool
	}{
		{"looser left operand", ast.OpMul, 0, ast.Apply(ast.OpAdd, a, b), true},
		{"tighter right operand", ast.OpAdd, 1, ast.Apply(ast.OpMul, b, c), false},
		{"equal precedence first operand", ast.OpSub, 0, ast.Apply(ast.OpSub, a, b), false},
		{"equal precedence right of subtraction", ast.OpSub, 1, ast.Apply(ast.OpSub, b, c), true},
		{"same associative operator", ast.OpAdd, 1, ast.Apply(ast.OpAdd, b, c), false},
		{"concatenation inside addition", ast.OpAdd, 1, ast.Apply(ast.OpConcat, b, c), true},
		{"different operator at equal precedence", ast.OpAdd, 1, ast.Apply(ast.OpSub, b, c), true},
		{"not over conjunction", ast.OpNot, 0, ast.Apply(ast.OpAnd, a, b), true},
		{"not over comparison", ast.OpNot, 0, ast.Apply(ast.OpEq, a, b), false},
		{"negation over product", ast.OpNeg, 0, ast.Apply(ast.OpMul, a, b), true},
		{"membership over sum", ast.OpIn, 0, ast.Apply(ast.OpAdd, a, b), false},
		{"membership over conjunction", ast.OpIn, 0, ast.Apply(ast.OpAnd, a, b), true},
		{"between bound comparison", ast.OpBetween, 1, ast.Apply(ast.OpEq, a, b), true},
		{"primary operand", ast.OpMul, 1, c, false},
		{"or inside and", ast.OpAnd, 1, ast.Apply(ast.OpOr, a, b), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.NeedsParens(tt.i, tt.operand))
		})
	}
}

func TestApplyFlattensAssociativeOperators(t *testing.T) {
	a, b, c := id("a"), id("b"), id("c")

	sum := ast.Apply(ast.OpAdd, ast.Apply(ast.OpAdd, a, b), c)
	assert.Equal(t, []ast.Expr{a, b, c}, sum.Args)

	diff := ast.Apply(ast.OpSub, ast.Apply(ast.OpSub, a, b), c)
	assert.Len(t, diff.Args, 2)
}

func TestLookupOperator(t *testing.T) {
	op, ok := ast.LookupOperator(token.NOT_BETWEEN)
	assert.True(t, ok)
	assert.Equal(t, ast.OpNotBetween, op)
	assert.Equal(t, ast.Range, op.Form)

	_, ok = ast.LookupOperator(token.SELECT)
	assert.False(t, ok)
}

func TestBindingPrecedence(t *testing.T) {
	prec, ok := ast.BindingPrecedence(token.IN)
	assert.True(t, ok)
	assert.Equal(t, ast.PrecComparison, prec)

	prec, ok = ast.BindingPrecedence(token.OR)
	assert.True(t, ok)
	assert.Equal(t, ast.PrecOr, prec)

	_, ok = ast.BindingPrecedence(token.COMMA)
	assert.False(t, ok)
}

func TestPrecedenceOrder(t *testing.T) {
	order := []ast.Precedence{
		ast.PrecPrimary, ast.PrecUnary, ast.PrecMultiplicative, ast.PrecAdditive,
		ast.PrecComparison, ast.PrecBitwise, ast.PrecNot, ast.PrecAnd, ast.PrecOr, ast.PrecAssignment,
	}
	for i := 1; i < len(order); i++ {
		assert.True(t, order[i].Looser(order[i-1]), "%d should be looser than %d", order[i], order[i-1])
	}
}
