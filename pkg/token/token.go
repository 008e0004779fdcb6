// Package token defines the lexical kinds of the query language and the
// synthetic kinds used to label raw parse-tree nodes.
//
// Lexical kinds come first, followed by keywords (alphabetical) and then the
// synthetic kinds that never appear in a token stream.
package token

import "fmt"

// TokenType is the discriminant tag shared by tokens and raw tree nodes.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

//nolint:revive // ALL_CAPS names follow SQL token conventions
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier or "quoted identifier"
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello'

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	AMP       // &
	PIPE      // |
	CARET     // ^
	TILDE     // ~
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }

	// Keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CROSS
	DEFAULT
	DESC
	DISTINCT
	ELSE
	END
	ESCAPE
	EXCEPT
	EXISTS
	FALSE
	FROM
	FULL
	GROUP
	HAVING
	IN
	INNER
	INTERSECT
	IS
	JOIN
	LEFT
	LIKE
	LIMIT
	NOT
	NULL
	ON
	OR
	ORDER
	OUTER
	PARAMETERS
	PIVOT
	RECURSIVE
	REQUIRED
	RIGHT
	SELECT
	THEN
	TRUE
	UNION
	WHEN
	WHERE
	WITH

	// Synthetic tree kinds
	STATEMENT     // [PARAMETERS, WITH?, query]
	PARAM_DECL    // text=name; [TYPE_NAME, REQUIRED?, DEFAULT?]
	TYPE_NAME     // text=type name
	CTE           // text=name; [query]
	QUERY         // a single SELECT block
	SET_QUERY     // members interleaved with set-operator nodes
	UNION_ALL     // set operator
	SELECT_ITEM   // [expr, ALIAS?]
	ALIAS         // text=alias
	TABLE_TERM    // [join kind?, source, ALIAS?, ON?]
	EXPR_LIST     // ordered expressions
	PIVOT_VALUE   // [expr, ALIAS?]
	CALL          // text=name; [DISTINCT?, args...]
	NEG           // unary minus
	POS           // unary plus
	NOT_IN        // [x, EXPR_LIST | SUBQUERY]
	NOT_BETWEEN   // [x, lo, hi]
	NOT_LIKE      // [x, pattern, ESCAPE?]
	IS_NULL       // [x]
	IS_NOT_NULL   // [x]
	SUBQUERY      // [query]
	PAREN         // [expr]
	IFDEFINED     // [identifier-like expr]
	UNSAFE        // text=raw SQL
	DATE_LIT      // text=date literal
	TIMESTAMP_LIT // text=timestamp literal
	WHEN_CLAUSE   // [condition, result]
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	AMP:       "&",
	PIPE:      "|",
	CARET:     "^",
	TILDE:     "~",
	EQ:        "=",
	NE:        "<>",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	SEMICOLON: ";",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",

	ALL:        "ALL",
	AND:        "AND",
	AS:         "AS",
	ASC:        "ASC",
	BETWEEN:    "BETWEEN",
	BY:         "BY",
	CASE:       "CASE",
	CAST:       "CAST",
	CROSS:      "CROSS",
	DEFAULT:    "DEFAULT",
	DESC:       "DESC",
	DISTINCT:   "DISTINCT",
	ELSE:       "ELSE",
	END:        "END",
	ESCAPE:     "ESCAPE",
	EXCEPT:     "EXCEPT",
	EXISTS:     "EXISTS",
	FALSE:      "FALSE",
	FROM:       "FROM",
	FULL:       "FULL",
	GROUP:      "GROUP",
	HAVING:     "HAVING",
	IN:         "IN",
	INNER:      "INNER",
	INTERSECT:  "INTERSECT",
	IS:         "IS",
	JOIN:       "JOIN",
	LEFT:       "LEFT",
	LIKE:       "LIKE",
	LIMIT:      "LIMIT",
	NOT:        "NOT",
	NULL:       "NULL",
	ON:         "ON",
	OR:         "OR",
	ORDER:      "ORDER",
	OUTER:      "OUTER",
	PARAMETERS: "PARAMETERS",
	PIVOT:      "PIVOT",
	RECURSIVE:  "RECURSIVE",
	REQUIRED:   "REQUIRED",
	RIGHT:      "RIGHT",
	SELECT:     "SELECT",
	THEN:       "THEN",
	TRUE:       "TRUE",
	UNION:      "UNION",
	WHEN:       "WHEN",
	WHERE:      "WHERE",
	WITH:       "WITH",

	STATEMENT:     "STATEMENT",
	PARAM_DECL:    "PARAM_DECL",
	TYPE_NAME:     "TYPE_NAME",
	CTE:           "CTE",
	QUERY:         "QUERY",
	SET_QUERY:     "SET_QUERY",
	UNION_ALL:     "UNION ALL",
	SELECT_ITEM:   "SELECT_ITEM",
	ALIAS:         "ALIAS",
	TABLE_TERM:    "TABLE_TERM",
	EXPR_LIST:     "EXPR_LIST",
	PIVOT_VALUE:   "PIVOT_VALUE",
	CALL:          "CALL",
	NEG:           "NEG",
	POS:           "POS",
	NOT_IN:        "NOT IN",
	NOT_BETWEEN:   "NOT BETWEEN",
	NOT_LIKE:      "NOT LIKE",
	IS_NULL:       "IS NULL",
	IS_NOT_NULL:   "IS NOT NULL",
	SUBQUERY:      "SUBQUERY",
	PAREN:         "PAREN",
	IFDEFINED:     "IFDEFINED",
	UNSAFE:        "UNSAFE",
	DATE_LIT:      "DATE_LIT",
	TIMESTAMP_LIT: "TIMESTAMP_LIT",
	WHEN_CLAUSE:   "WHEN_CLAUSE",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":        ALL,
	"and":        AND,
	"as":         AS,
	"asc":        ASC,
	"between":    BETWEEN,
	"by":         BY,
	"case":       CASE,
	"cast":       CAST,
	"cross":      CROSS,
	"default":    DEFAULT,
	"desc":       DESC,
	"distinct":   DISTINCT,
	"else":       ELSE,
	"end":        END,
	"escape":     ESCAPE,
	"except":     EXCEPT,
	"exists":     EXISTS,
	"false":      FALSE,
	"from":       FROM,
	"full":       FULL,
	"group":      GROUP,
	"having":     HAVING,
	"in":         IN,
	"inner":      INNER,
	"intersect":  INTERSECT,
	"is":         IS,
	"join":       JOIN,
	"left":       LEFT,
	"like":       LIKE,
	"limit":      LIMIT,
	"not":        NOT,
	"null":       NULL,
	"on":         ON,
	"or":         OR,
	"order":      ORDER,
	"outer":      OUTER,
	"parameters": PARAMETERS,
	"pivot":      PIVOT,
	"recursive":  RECURSIVE,
	"required":   REQUIRED,
	"right":      RIGHT,
	"select":     SELECT,
	"then":       THEN,
	"true":       TRUE,
	"union":      UNION,
	"when":       WHEN,
	"where":      WHERE,
	"with":       WITH,
}

// LookupIdent returns the keyword token type for a lowercase identifier,
// or IDENT when it is not a keyword.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= WITH
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACE
}

// IsSynthetic returns true for kinds that only label tree nodes.
func IsSynthetic(t TokenType) bool {
	return t >= STATEMENT && t <= WHEN_CLAUSE
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}
