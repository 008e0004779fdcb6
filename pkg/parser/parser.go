// Package parser turns query source text into a raw parse tree.
//
// # Usage
//
//	arena, root, err := parser.Parse("SELECT a, b FROM t")
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
// The parser is a recursive descent parser with Pratt-style expression
// parsing:
//
//	statement   → [PARAMETERS '(' decl {',' decl} ')'] [WITH cte {',' cte}] query [';']
//	decl        → name type [REQUIRED] [DEFAULT expr]
//	cte         → name AS '(' query ')'
//	query       → term {(UNION [ALL] | INTERSECT | EXCEPT) term} [ORDER BY order] [LIMIT expr]
//	term        → select | '(' query ')'
//	select      → SELECT [DISTINCT] item {',' item} [','] [FROM from] [WHERE expr]
//	              [GROUP BY expr_list] [HAVING expr] [PIVOT expr_list BY expr_list [IN '(' values ')']]
//	from        → table_term {(',' | join) table_term [ON expr]}
//	table_term  → name {'.' name} [[AS] alias] | '(' query ')' [AS] alias
//
// The tree shapes produced for each construct are documented on the
// corresponding token kinds.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/token"
	"github.com/leapstack-labs/qsql/pkg/tree"
)

// Parser parses query text into an arena.
type Parser struct {
	lexer  *Lexer
	arena  *tree.Arena
	token  token.Token // current token
	peek   token.Token // lookahead token
	errors []error
}

// bailout unwinds the parser after the first error.
type bailout struct{}

// NewParser creates a parser that allocates into a.
func NewParser(input string, a *tree.Arena) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		arena: a,
	}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a statement into a fresh arena. The returned root is retained
// once by the caller.
func Parse(input string) (*tree.Arena, tree.ID, error) {
	a := tree.New()
	root, err := ParseInto(a, input)
	if err != nil {
		return nil, tree.Nil, err
	}
	return a, root, nil
}

// ParseInto parses a statement into an existing arena.
func ParseInto(a *tree.Arena, input string) (root tree.ID, err error) {
	p := NewParser(input, a)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			root, err = tree.Nil, p.firstError()
		}
	}()

	root = p.parseStatement()
	if lexErrs := p.lexer.Errors(); len(lexErrs) > 0 {
		return tree.Nil, lexErrs[0]
	}
	a.Retain(root)
	return root, nil
}

// ParseExpression parses a standalone expression, such as a parameter
// default supplied outside a statement.
func ParseExpression(a *tree.Arena, input string) (id tree.ID, err error) {
	p := NewParser(input, a)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			id, err = tree.Nil, p.firstError()
		}
	}()

	id = p.parseExpr()
	if !p.check(token.EOF) {
		p.fail(ErrTrailingInput, p.token.Type)
	}
	if lexErrs := p.lexer.Errors(); len(lexErrs) > 0 {
		return tree.Nil, lexErrs[0]
	}
	return id, nil
}

func (p *Parser) firstError() error {
	if lexErrs := p.lexer.Errors(); len(lexErrs) > 0 {
		return lexErrs[0]
	}
	return p.errors[0]
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t token.TokenType) token.Token {
	tok := p.token
	if !p.check(t) {
		p.fail(ErrUnexpectedToken, describe(p.token), t)
	}
	p.nextToken()
	return tok
}

// expectName consumes an identifier. Keywords are accepted when
// allowKeyword is set, as after a dot.
func (p *Parser) expectName(allowKeyword bool) token.Token {
	tok := p.token
	if tok.Type == token.IDENT || (allowKeyword && token.IsKeyword(tok.Type)) {
		p.nextToken()
		tok.Type = token.IDENT
		return tok
	}
	p.fail(ErrUnexpectedToken, describe(tok), "identifier")
	return tok
}

func (p *Parser) fail(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: fmt.Sprintf(format, args...),
	})
	panic(bailout{})
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return fmt.Sprintf("string '%s'", tok.Literal)
	}
	return tok.Type.String()
}

// ---------- Tree Helpers ----------

func (p *Parser) node(kind token.TokenType, text string, pos token.Position) tree.ID {
	return p.arena.NewNode(kind, text, pos)
}

// add attaches a child. Constraint violations are not parse errors: they are
// returned unchanged so callers can match them with errors.Is.
func (p *Parser) add(parent, child tree.ID) {
	if err := p.arena.AppendChild(parent, child); err != nil {
		p.errors = append(p.errors, fmt.Errorf("line %d, column %d: %w",
			p.arena.Pos(child).Line, p.arena.Pos(child).Column, err))
		panic(bailout{})
	}
}

func (p *Parser) hasChild(id tree.ID, kind token.TokenType) bool {
	_, ok := p.arena.FirstChildOfKind(id, kind)
	return ok
}

// ---------- Statement ----------

func (p *Parser) parseStatement() tree.ID {
	stmt := p.node(token.STATEMENT, "", p.token.Pos)

	params := p.node(token.PARAMETERS, "", p.token.Pos)
	p.arena.Constrain(params, tree.OneOf(token.PARAM_DECL))
	p.add(stmt, params)
	if p.match(token.PARAMETERS) {
		p.parseParameters(params)
	}

	if p.check(token.WITH) {
		p.add(stmt, p.parseWith())
	}

	p.add(stmt, p.parseQuery())
	p.match(token.SEMICOLON)
	if !p.check(token.EOF) {
		p.fail(ErrTrailingInput, describe(p.token))
	}
	return stmt
}

func (p *Parser) parseParameters(params tree.ID) {
	p.expect(token.LPAREN)
	if p.match(token.RPAREN) {
		return
	}
	for {
		p.add(params, p.parseParamDecl())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
}

func (p *Parser) parseParamDecl() tree.ID {
	name := p.expectName(false)
	decl := p.node(token.PARAM_DECL, name.Literal, name.Pos)
	p.add(decl, p.parseTypeName())

	if tok := p.token; p.match(token.REQUIRED) {
		p.add(decl, p.node(token.REQUIRED, tok.Literal, tok.Pos))
	}
	if tok := p.token; p.match(token.DEFAULT) {
		def := p.node(token.DEFAULT, tok.Literal, tok.Pos)
		p.add(def, p.parseExpr())
		p.add(decl, def)
	}
	return decl
}

// parseTypeName reads a type name with an optional precision suffix.
func (p *Parser) parseTypeName() tree.ID {
	name := p.expectName(false)
	text := name.Literal
	if p.match(token.LPAREN) {
		var args []string
		for {
			args = append(args, p.expect(token.NUMBER).Literal)
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		text += "(" + strings.Join(args, ",") + ")"
	}
	return p.node(token.TYPE_NAME, text, name.Pos)
}

func (p *Parser) parseWith() tree.ID {
	tok := p.expect(token.WITH)
	with := p.node(token.WITH, "", tok.Pos)
	if p.match(token.RECURSIVE) {
		p.arena.SetText(with, "RECURSIVE")
	}
	for {
		name := p.expectName(false)
		cte := p.node(token.CTE, name.Literal, name.Pos)
		p.expect(token.AS)
		p.expect(token.LPAREN)
		p.add(cte, p.parseQuery())
		p.expect(token.RPAREN)
		p.add(with, cte)
		if !p.match(token.COMMA) {
			break
		}
	}
	return with
}

// ---------- Query ----------

func isSetOp(t token.TokenType) bool {
	return t == token.UNION || t == token.INTERSECT || t == token.EXCEPT
}

func (p *Parser) parseQuery() tree.ID {
	first := p.parseQueryTerm()
	if !isSetOp(p.token.Type) {
		return p.parseQueryTail(first)
	}

	set := p.node(token.SET_QUERY, "", p.arena.Pos(first))
	p.add(set, first)
	for isSetOp(p.token.Type) {
		opTok := p.token
		p.nextToken()
		kind := opTok.Type
		if kind == token.UNION && p.match(token.ALL) {
			kind = token.UNION_ALL
		}
		p.add(set, p.node(kind, "", opTok.Pos))
		p.add(set, p.parseQueryTerm())
	}
	return p.parseQueryTail(set)
}

// parseQueryTail attaches a trailing ORDER BY and LIMIT. They bind to the
// whole query; a term that already carries its own is wrapped first.
func (p *Parser) parseQueryTail(q tree.ID) tree.ID {
	if !p.check(token.ORDER) && !p.check(token.LIMIT) {
		return q
	}
	target := q
	if p.hasChild(q, token.ORDER) || p.hasChild(q, token.LIMIT) {
		target = p.node(token.SET_QUERY, "", p.arena.Pos(q))
		p.add(target, q)
	}
	if p.check(token.ORDER) {
		p.add(target, p.parseOrderBy())
	}
	if p.check(token.LIMIT) {
		tok := p.expect(token.LIMIT)
		limit := p.node(token.LIMIT, "", tok.Pos)
		p.add(limit, p.parseExpr())
		p.add(target, limit)
	}
	return target
}

func (p *Parser) parseQueryTerm() tree.ID {
	if p.match(token.LPAREN) {
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return q
	}
	return p.parseSelect()
}

func (p *Parser) parseSelect() tree.ID {
	tok := p.expect(token.SELECT)
	q := p.node(token.QUERY, "", tok.Pos)

	list := p.node(token.SELECT, "", tok.Pos)
	if p.match(token.DISTINCT) {
		p.arena.SetText(list, "DISTINCT")
	}
	p.arena.Constrain(list, tree.OneOf(token.SELECT_ITEM))
	for {
		p.add(list, p.parseSelectItem())
		if !p.match(token.COMMA) {
			break
		}
		if p.endsSelectList() {
			break // trailing comma
		}
	}
	p.add(q, list)

	if p.check(token.FROM) {
		p.add(q, p.parseFrom())
	}
	if tok := p.token; p.match(token.WHERE) {
		where := p.node(token.WHERE, "", tok.Pos)
		p.add(where, p.parseExpr())
		p.add(q, where)
	}
	if tok := p.token; p.match(token.GROUP) {
		p.expect(token.BY)
		group := p.node(token.GROUP, "", tok.Pos)
		p.parseExprListInto(group)
		p.add(q, group)
	}
	if tok := p.token; p.match(token.HAVING) {
		having := p.node(token.HAVING, "", tok.Pos)
		p.add(having, p.parseExpr())
		p.add(q, having)
	}
	if p.check(token.PIVOT) {
		p.add(q, p.parsePivot())
	}
	return q
}

func (p *Parser) endsSelectList() bool {
	switch p.token.Type {
	case token.FROM, token.WHERE, token.GROUP, token.HAVING, token.PIVOT,
		token.ORDER, token.LIMIT, token.UNION, token.INTERSECT, token.EXCEPT,
		token.RPAREN, token.SEMICOLON, token.EOF:
		return true
	}
	return false
}

func (p *Parser) parseSelectItem() tree.ID {
	pos := p.token.Pos
	item := p.node(token.SELECT_ITEM, "", pos)
	p.add(item, p.parseExpr())
	p.parseAlias(item)
	return item
}

// parseAlias attaches an ALIAS child for "[AS] name".
func (p *Parser) parseAlias(parent tree.ID) {
	if p.match(token.AS) {
		name := p.expectName(false)
		p.add(parent, p.node(token.ALIAS, name.Literal, name.Pos))
		return
	}
	if p.check(token.IDENT) {
		name := p.token
		p.nextToken()
		p.add(parent, p.node(token.ALIAS, name.Literal, name.Pos))
	}
}

// ---------- FROM ----------

func (p *Parser) parseFrom() tree.ID {
	tok := p.expect(token.FROM)
	from := p.node(token.FROM, "", tok.Pos)
	p.arena.Constrain(from, tree.OneOf(token.TABLE_TERM))
	p.add(from, p.parseTableTerm(tree.Nil))

	for {
		join, ok := p.parseJoinKind()
		if !ok {
			break
		}
		term := p.parseTableTerm(join)
		if tok := p.token; p.match(token.ON) {
			on := p.node(token.ON, "", tok.Pos)
			p.add(on, p.parseExpr())
			p.add(term, on)
		}
		p.add(from, term)
	}
	return from
}

// parseJoinKind consumes a join introducer and returns a node labeled with
// the join kind: COMMA, INNER, LEFT, RIGHT, FULL or CROSS.
func (p *Parser) parseJoinKind() (tree.ID, bool) {
	tok := p.token
	kind := tok.Type
	switch tok.Type {
	case token.COMMA:
		p.nextToken()
		return p.node(token.COMMA, "", tok.Pos), true
	case token.JOIN:
		kind = token.INNER
	case token.INNER, token.CROSS:
		p.nextToken()
	case token.LEFT, token.RIGHT, token.FULL:
		p.nextToken()
		p.match(token.OUTER)
	default:
		return tree.Nil, false
	}
	p.expect(token.JOIN)
	return p.node(kind, "", tok.Pos), true
}

func (p *Parser) parseTableTerm(join tree.ID) tree.ID {
	term := p.node(token.TABLE_TERM, "", p.token.Pos)
	if join != tree.Nil {
		p.add(term, join)
	}

	if tok := p.token; p.match(token.LPAREN) {
		sub := p.node(token.SUBQUERY, "", tok.Pos)
		p.add(sub, p.parseQuery())
		p.expect(token.RPAREN)
		p.add(term, sub)
	} else {
		p.add(term, p.parseName())
	}
	p.parseAlias(term)
	return term
}

// parseName parses a dotted name: IDENT or DOT(left, IDENT).
func (p *Parser) parseName() tree.ID {
	name := p.expectName(false)
	left := p.node(token.IDENT, name.Literal, name.Pos)
	for p.check(token.DOT) {
		dotTok := p.token
		p.nextToken()
		right := p.expectName(true)
		dot := p.node(token.DOT, "", dotTok.Pos)
		p.add(dot, left)
		p.add(dot, p.node(token.IDENT, right.Literal, right.Pos))
		left = dot
	}
	return left
}

// ---------- PIVOT / ORDER BY ----------

func (p *Parser) parsePivot() tree.ID {
	tok := p.expect(token.PIVOT)
	pivot := p.node(token.PIVOT, "", tok.Pos)

	cols := p.node(token.EXPR_LIST, "", p.token.Pos)
	p.parseExprListInto(cols)
	p.add(pivot, cols)

	if !p.match(token.BY) {
		return pivot
	}
	// BY expressions stop before IN, which introduces the value list.
	by := p.node(token.EXPR_LIST, "", p.token.Pos)
	for {
		p.add(by, p.parseExprPower(power(ast.PrecComparison)+1))
		if !p.match(token.COMMA) {
			break
		}
	}
	p.add(pivot, by)

	if !p.match(token.IN) {
		return pivot
	}
	values := p.node(token.EXPR_LIST, "", p.token.Pos)
	p.expect(token.LPAREN)
	for {
		v := p.node(token.PIVOT_VALUE, "", p.token.Pos)
		p.add(v, p.parseExpr())
		p.parseAlias(v)
		p.add(values, v)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	p.add(pivot, values)
	return pivot
}

// parseOrderBy produces a flat list mixing sort expressions with ASC/DESC
// markers.
func (p *Parser) parseOrderBy() tree.ID {
	tok := p.expect(token.ORDER)
	p.expect(token.BY)
	order := p.node(token.ORDER, "", tok.Pos)
	for {
		p.add(order, p.parseExpr())
		for p.check(token.ASC) || p.check(token.DESC) {
			p.add(order, p.node(p.token.Type, "", p.token.Pos))
			p.nextToken()
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return order
}

func (p *Parser) parseExprListInto(list tree.ID) {
	for {
		p.add(list, p.parseExpr())
		if !p.match(token.COMMA) {
			break
		}
	}
}
