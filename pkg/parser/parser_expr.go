package parser

import (
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/token"
	"github.com/leapstack-labs/qsql/pkg/tree"
)

// Expression parsing uses precedence climbing over the operator table in
// package ast. Binding power grows as precedence tightens:
//
//	OR                  1
//	AND                 2
//	NOT (prefix)        3
//	& | ^               4
//	comparison, IN, BETWEEN, LIKE, IS   5
//	+ - ||              6
//	* / %               7
//	unary - + ~         8

func power(prec ast.Precedence) int {
	return int(ast.PrecAssignment) - int(prec)
}

func (p *Parser) parseExpr() tree.ID {
	return p.parseExprPower(1)
}

func (p *Parser) parseExprPower(minPower int) tree.ID {
	left := p.parsePrefix()
	for {
		prec, ok := ast.BindingPrecedence(p.token.Type)
		if !ok || power(prec) < minPower {
			return left
		}
		left = p.parseInfix(left, prec)
	}
}

func (p *Parser) parsePrefix() tree.ID {
	tok := p.token
	var kind token.TokenType
	var operandPower int
	switch tok.Type {
	case token.NOT:
		kind, operandPower = token.NOT, power(ast.PrecNot)
	case token.MINUS:
		kind, operandPower = token.NEG, power(ast.PrecUnary)
	case token.PLUS:
		kind, operandPower = token.POS, power(ast.PrecUnary)
	case token.TILDE:
		kind, operandPower = token.TILDE, power(ast.PrecUnary)
	case token.EXISTS:
		p.nextToken()
		n := p.node(token.EXISTS, "", tok.Pos)
		p.add(n, p.parseParenQuery())
		return n
	default:
		return p.parsePrimary()
	}
	p.nextToken()
	n := p.node(kind, "", tok.Pos)
	p.add(n, p.parseExprPower(operandPower))
	return n
}

func (p *Parser) parseInfix(left tree.ID, prec ast.Precedence) tree.ID {
	tok := p.token
	p.nextToken()

	switch tok.Type {
	case token.IS:
		kind := token.IS_NULL
		if p.match(token.NOT) {
			kind = token.IS_NOT_NULL
		}
		p.expect(token.NULL)
		n := p.node(kind, "", tok.Pos)
		p.add(n, left)
		return n
	case token.NOT:
		switch {
		case p.match(token.IN):
			return p.parseIn(left, token.NOT_IN, tok.Pos)
		case p.match(token.BETWEEN):
			return p.parseBetween(left, token.NOT_BETWEEN, tok.Pos)
		case p.match(token.LIKE):
			return p.parseLike(left, token.NOT_LIKE, tok.Pos)
		}
		p.fail(ErrUnexpectedToken, describe(p.token), "IN, BETWEEN or LIKE")
	case token.IN:
		return p.parseIn(left, token.IN, tok.Pos)
	case token.BETWEEN:
		return p.parseBetween(left, token.BETWEEN, tok.Pos)
	case token.LIKE:
		return p.parseLike(left, token.LIKE, tok.Pos)
	}

	// Left-associative binary operator.
	right := p.parseExprPower(power(prec) + 1)
	n := p.node(tok.Type, tok.Literal, tok.Pos)
	p.add(n, left)
	p.add(n, right)
	return n
}

// parseIn parses the list or sub-query after IN.
func (p *Parser) parseIn(left tree.ID, kind token.TokenType, pos token.Position) tree.ID {
	n := p.node(kind, "", pos)
	p.add(n, left)

	open := p.expect(token.LPAREN)
	if p.check(token.SELECT) {
		sub := p.node(token.SUBQUERY, "", open.Pos)
		p.add(sub, p.parseQuery())
		p.add(n, sub)
	} else {
		list := p.node(token.EXPR_LIST, "", open.Pos)
		p.parseExprListInto(list)
		p.add(n, list)
	}
	p.expect(token.RPAREN)
	return n
}

func (p *Parser) parseBetween(left tree.ID, kind token.TokenType, pos token.Position) tree.ID {
	bound := power(ast.PrecComparison) + 1
	n := p.node(kind, "", pos)
	p.add(n, left)
	p.add(n, p.parseExprPower(bound))
	p.expect(token.AND)
	p.add(n, p.parseExprPower(bound))
	return n
}

func (p *Parser) parseLike(left tree.ID, kind token.TokenType, pos token.Position) tree.ID {
	bound := power(ast.PrecComparison) + 1
	n := p.node(kind, "", pos)
	p.add(n, left)
	p.add(n, p.parseExprPower(bound))
	if tok := p.token; p.match(token.ESCAPE) {
		esc := p.node(token.ESCAPE, "", tok.Pos)
		p.add(esc, p.parseExprPower(bound))
		p.add(n, esc)
	}
	return n
}

// parseParenQuery parses '(' query ')' into a SUBQUERY node.
func (p *Parser) parseParenQuery() tree.ID {
	open := p.expect(token.LPAREN)
	sub := p.node(token.SUBQUERY, "", open.Pos)
	p.add(sub, p.parseQuery())
	p.expect(token.RPAREN)
	return sub
}

func (p *Parser) parsePrimary() tree.ID {
	tok := p.token
	switch tok.Type {
	case token.NUMBER, token.STRING, token.TRUE, token.FALSE, token.NULL:
		p.nextToken()
		return p.node(tok.Type, tok.Literal, tok.Pos)
	case token.STAR:
		p.nextToken()
		return p.node(token.STAR, "*", tok.Pos)
	case token.LPAREN:
		if p.checkPeek(token.SELECT) {
			return p.parseParenQuery()
		}
		p.nextToken()
		paren := p.node(token.PAREN, "", tok.Pos)
		p.add(paren, p.parseExpr())
		p.expect(token.RPAREN)
		return paren
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.LBRACE:
		return p.parseEscapeLiteral()
	case token.LEFT, token.RIGHT:
		if p.checkPeek(token.LPAREN) {
			p.nextToken()
			return p.parseCall(tok)
		}
	case token.IDENT:
		return p.parseIdentifier()
	}
	p.fail(ErrExpectedExpression, describe(tok))
	return tree.Nil
}

func (p *Parser) parseIdentifier() tree.ID {
	tok := p.token
	p.nextToken()
	lower := strings.ToLower(tok.Literal)

	switch {
	case p.check(token.STRING) && (lower == "date" || lower == "timestamp"):
		lit := p.token
		p.nextToken()
		kind := token.DATE_LIT
		if lower == "timestamp" {
			kind = token.TIMESTAMP_LIT
		}
		return p.node(kind, lit.Literal, tok.Pos)
	case p.check(token.LPAREN) && lower == "ifdefined":
		return p.parseIfDefined(tok)
	case p.check(token.LPAREN) && lower == "unsafe_sql":
		p.expect(token.LPAREN)
		raw := p.expect(token.STRING)
		p.expect(token.RPAREN)
		return p.node(token.UNSAFE, raw.Literal, tok.Pos)
	case p.check(token.LPAREN):
		return p.parseCall(tok)
	}

	left := p.node(token.IDENT, tok.Literal, tok.Pos)
	for p.check(token.DOT) {
		dotTok := p.token
		p.nextToken()
		dot := p.node(token.DOT, "", dotTok.Pos)
		p.add(dot, left)
		if star := p.token; p.match(token.STAR) {
			p.add(dot, p.node(token.STAR, "*", star.Pos))
			return dot
		}
		right := p.expectName(true)
		p.add(dot, p.node(token.IDENT, right.Literal, right.Pos))
		left = dot
	}
	return left
}

// parseCall parses the argument list of a method call or aggregate. The name
// token has already been consumed.
func (p *Parser) parseCall(name token.Token) tree.ID {
	call := p.node(token.CALL, name.Literal, name.Pos)
	p.expect(token.LPAREN)
	if tok := p.token; p.match(token.DISTINCT) {
		p.add(call, p.node(token.DISTINCT, "", tok.Pos))
	}
	if !p.check(token.RPAREN) {
		p.parseExprListInto(call)
	}
	p.expect(token.RPAREN)
	return call
}

// parseIfDefined builds a conditional-inclusion wrapper. Its child must be
// identifier-like; anything else fails with diag.ErrInvalidChild.
func (p *Parser) parseIfDefined(name token.Token) tree.ID {
	n := p.node(token.IFDEFINED, "", name.Pos)
	p.arena.Constrain(n, tree.OneOf(token.IDENT, token.DOT))
	p.expect(token.LPAREN)
	p.add(n, p.parseExpr())
	p.expect(token.RPAREN)
	return n
}

func (p *Parser) parseCase() tree.ID {
	tok := p.expect(token.CASE)
	n := p.node(token.CASE, "", tok.Pos)
	if !p.check(token.WHEN) {
		p.add(n, p.parseExpr())
	}
	for p.check(token.WHEN) {
		whenTok := p.expect(token.WHEN)
		when := p.node(token.WHEN_CLAUSE, "", whenTok.Pos)
		p.add(when, p.parseExpr())
		p.expect(token.THEN)
		p.add(when, p.parseExpr())
		p.add(n, when)
	}
	if tok := p.token; p.match(token.ELSE) {
		els := p.node(token.ELSE, "", tok.Pos)
		p.add(els, p.parseExpr())
		p.add(n, els)
	}
	p.expect(token.END)
	return n
}

func (p *Parser) parseCast() tree.ID {
	tok := p.expect(token.CAST)
	n := p.node(token.CAST, "", tok.Pos)
	p.expect(token.LPAREN)
	p.add(n, p.parseExpr())
	p.expect(token.AS)
	p.add(n, p.parseTypeName())
	p.expect(token.RPAREN)
	return n
}

// parseEscapeLiteral parses {d '...'} and {ts '...'}.
func (p *Parser) parseEscapeLiteral() tree.ID {
	open := p.expect(token.LBRACE)
	tag := p.expectName(false)
	lit := p.expect(token.STRING)
	p.expect(token.RBRACE)

	switch strings.ToLower(tag.Literal) {
	case "d":
		return p.node(token.DATE_LIT, lit.Literal, open.Pos)
	case "ts":
		return p.node(token.TIMESTAMP_LIT, lit.Literal, open.Pos)
	}
	p.errors = append(p.errors, &ParseError{Pos: tag.Pos, Message: "unknown escape literal {" + tag.Literal + "}"})
	panic(bailout{})
}
