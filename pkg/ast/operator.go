package ast

import "github.com/leapstack-labs/qsql/pkg/token"

// Precedence orders operators from tightest to loosest binding.
type Precedence int

// Precedence levels.
const (
	PrecPrimary Precedence = iota
	PrecUnary
	PrecMultiplicative
	PrecAdditive
	PrecComparison
	PrecBitwise
	PrecNot
	PrecAnd
	PrecOr // also membership (IN) and range (BETWEEN)
	PrecAssignment
)

// Looser reports whether p binds less tightly than q.
func (p Precedence) Looser(q Precedence) bool { return p > q }

// Form describes how an operator is laid out around its operands.
type Form int

// Operator forms.
const (
	Infix   Form = iota // a op b
	Prefix              // op a
	Postfix             // a op
	Member              // a op (list)
	Range               // a op lo AND hi
	Match               // a op pattern [ESCAPE e]
)

// Operator is an entry of the fixed operator catalog.
type Operator struct {
	Kind        token.TokenType // tree kind that produces this operator
	Source      string          // canonical query-source spelling
	SQL         string          // default SQL spelling
	Prec        Precedence
	Form        Form
	Associative bool // a op (b op c) == (a op b) op c, operands are flattened
	Boolean     bool // result type is boolean
}

// Operator catalog.
var (
	OpMul = &Operator{Kind: token.STAR, Source: "*", SQL: "*", Prec: PrecMultiplicative, Associative: true}
	OpDiv = &Operator{Kind: token.SLASH, Source: "/", SQL: "/", Prec: PrecMultiplicative}
	OpMod = &Operator{Kind: token.PERCENT, Source: "%", SQL: "%", Prec: PrecMultiplicative}

	OpAdd    = &Operator{Kind: token.PLUS, Source: "+", SQL: "+", Prec: PrecAdditive, Associative: true}
	OpSub    = &Operator{Kind: token.MINUS, Source: "-", SQL: "-", Prec: PrecAdditive}
	OpConcat = &Operator{Kind: token.DPIPE, Source: "||", SQL: "||", Prec: PrecAdditive, Associative: true}

	OpEq      = &Operator{Kind: token.EQ, Source: "=", SQL: "=", Prec: PrecComparison, Boolean: true}
	OpNe      = &Operator{Kind: token.NE, Source: "<>", SQL: "<>", Prec: PrecComparison, Boolean: true}
	OpLt      = &Operator{Kind: token.LT, Source: "<", SQL: "<", Prec: PrecComparison, Boolean: true}
	OpLe      = &Operator{Kind: token.LE, Source: "<=", SQL: "<=", Prec: PrecComparison, Boolean: true}
	OpGt      = &Operator{Kind: token.GT, Source: ">", SQL: ">", Prec: PrecComparison, Boolean: true}
	OpGe      = &Operator{Kind: token.GE, Source: ">=", SQL: ">=", Prec: PrecComparison, Boolean: true}
	OpLike    = &Operator{Kind: token.LIKE, Source: "LIKE", SQL: "LIKE", Prec: PrecComparison, Form: Match, Boolean: true}
	OpNotLike = &Operator{Kind: token.NOT_LIKE, Source: "NOT LIKE", SQL: "NOT LIKE", Prec: PrecComparison, Form: Match, Boolean: true}
	OpIsNull  = &Operator{Kind: token.IS_NULL, Source: "IS NULL", SQL: "IS NULL", Prec: PrecComparison, Form: Postfix, Boolean: true}
	OpNotNull = &Operator{Kind: token.IS_NOT_NULL, Source: "IS NOT NULL", SQL: "IS NOT NULL", Prec: PrecComparison, Form: Postfix, Boolean: true}

	OpBitAnd = &Operator{Kind: token.AMP, Source: "&", SQL: "&", Prec: PrecBitwise, Associative: true}
	OpBitOr  = &Operator{Kind: token.PIPE, Source: "|", SQL: "|", Prec: PrecBitwise, Associative: true}
	OpBitXor = &Operator{Kind: token.CARET, Source: "^", SQL: "^", Prec: PrecBitwise, Associative: true}

	OpNot = &Operator{Kind: token.NOT, Source: "NOT", SQL: "NOT", Prec: PrecNot, Form: Prefix, Boolean: true}
	OpAnd = &Operator{Kind: token.AND, Source: "AND", SQL: "AND", Prec: PrecAnd, Associative: true, Boolean: true}
	OpOr  = &Operator{Kind: token.OR, Source: "OR", SQL: "OR", Prec: PrecOr, Associative: true, Boolean: true}

	OpIn         = &Operator{Kind: token.IN, Source: "IN", SQL: "IN", Prec: PrecOr, Form: Member, Boolean: true}
	OpNotIn      = &Operator{Kind: token.NOT_IN, Source: "NOT IN", SQL: "NOT IN", Prec: PrecOr, Form: Member, Boolean: true}
	OpBetween    = &Operator{Kind: token.BETWEEN, Source: "BETWEEN", SQL: "BETWEEN", Prec: PrecOr, Form: Range, Boolean: true}
	OpNotBetween = &Operator{Kind: token.NOT_BETWEEN, Source: "NOT BETWEEN", SQL: "NOT BETWEEN", Prec: PrecOr, Form: Range, Boolean: true}

	OpNeg    = &Operator{Kind: token.NEG, Source: "-", SQL: "-", Prec: PrecUnary, Form: Prefix}
	OpPos    = &Operator{Kind: token.POS, Source: "+", SQL: "+", Prec: PrecUnary, Form: Prefix}
	OpBitNot = &Operator{Kind: token.TILDE, Source: "~", SQL: "~", Prec: PrecUnary, Form: Prefix}
)

var operatorsByKind = map[token.TokenType]*Operator{}

func init() {
	for _, op := range []*Operator{
		OpMul, OpDiv, OpMod, OpAdd, OpSub, OpConcat,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpNotLike, OpIsNull, OpNotNull,
		OpBitAnd, OpBitOr, OpBitXor, OpNot, OpAnd, OpOr,
		OpIn, OpNotIn, OpBetween, OpNotBetween, OpNeg, OpPos, OpBitNot,
	} {
		operatorsByKind[op.Kind] = op
	}
}

// LookupOperator returns the operator produced by a tree node kind.
func LookupOperator(kind token.TokenType) (*Operator, bool) {
	op, ok := operatorsByKind[kind]
	return op, ok
}

// operandFloor is the loosest precedence an operand may have without
// parentheses. Membership and range operands are parsed at comparison level,
// so they are bounded by comparison rather than by the operator's own level.
func (op *Operator) operandFloor() Precedence {
	if op.Form == Member || op.Form == Range || op.Form == Match {
		return PrecComparison
	}
	return op.Prec
}

// NeedsParens decides whether operand i of op must be parenthesized. An
// operand is wrapped when its own precedence is strictly looser than the
// operator's, or when it sits at equal precedence in a non-first position,
// unless it is the same associative operator. Prefix operators wrap only
// looser operands.
func (op *Operator) NeedsParens(i int, operand Expr) bool {
	child := PrecedenceOf(operand)
	floor := op.operandFloor()
	if child.Looser(floor) {
		return true
	}
	if child != floor || op.Form == Prefix || i == 0 {
		return false
	}
	if inner, ok := operand.(*Operation); ok && inner.Op == op && op.Associative {
		return false
	}
	return true
}

// PrecedenceOf returns the precedence of an expression's top-level operator.
// Everything that is not an operator application binds as a primary.
func PrecedenceOf(e Expr) Precedence {
	if op, ok := e.(*Operation); ok {
		return op.Op.Prec
	}
	return PrecPrimary
}

// BindingPrecedence returns the level at which a parser binds an infix token.
// IN, BETWEEN, LIKE and IS bind as comparisons.
func BindingPrecedence(kind token.TokenType) (Precedence, bool) {
	switch kind {
	case token.IN, token.BETWEEN, token.LIKE, token.IS, token.NOT:
		return PrecComparison, true
	case token.STAR, token.SLASH, token.PERCENT,
		token.PLUS, token.MINUS, token.DPIPE,
		token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE,
		token.AMP, token.PIPE, token.CARET,
		token.AND, token.OR:
		return operatorsByKind[kind].Prec, true
	}
	return 0, false
}
