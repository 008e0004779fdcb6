// Package diag defines the error taxonomy shared by the compiler phases.
//
// Contract violations are sentinel errors that abort the current call.
// Semantic errors describe problems with the user's query; they are collected
// into an ErrorList so every problem can be reported in one pass.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/token"
)

// Contract violations.
var (
	ErrUnresolvedField  = errors.New("unresolved field reference")
	ErrInvalidChild     = errors.New("invalid child for node")
	ErrUnsafeExpression = errors.New("unsafe expression not allowed")
	ErrMalformedLiteral = errors.New("malformed literal")
	ErrSharedNode       = errors.New("cannot mutate shared node")
	ErrPivotValues      = errors.New("pivot values unknown")
	ErrMissingParameter = errors.New("missing required parameter")
)

// Code classifies a semantic error.
type Code string

// Semantic error codes.
const (
	UnknownField       Code = "UnknownField"
	UnknownMethod      Code = "UnknownMethod"
	UnsupportedStar    Code = "UnsupportedStar"
	UnknownTable       Code = "UnknownTable"
	AmbiguousField     Code = "AmbiguousField"
	NestedAggregate    Code = "NestedAggregate"
	AggregateInWhere   Code = "AggregateInWhere"
	InvalidArguments   Code = "InvalidArguments"
	DuplicateParameter Code = "DuplicateParameter"
	UnknownType        Code = "UnknownType"
	InvalidPivot       Code = "InvalidPivot"
)

// SemanticError is a recoverable problem attached to a source position.
type SemanticError struct {
	Code    Code
	Message string
	Pos     token.Position
}

func (e *SemanticError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return e.Message
}

// ErrorList accumulates semantic errors. The zero value is ready to use.
type ErrorList []*SemanticError

// Add appends a new error.
func (l *ErrorList) Add(code Code, pos token.Position, format string, args ...any) {
	*l = append(*l, &SemanticError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// Append appends every error of other.
func (l *ErrorList) Append(other ErrorList) {
	*l = append(*l, other...)
}

// Sort orders the list by source position.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i].Pos, l[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Has reports whether any error carries the given code.
func (l ErrorList) Has(code Code) bool {
	for _, e := range l {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors:\n%s", len(l), strings.Join(msgs, "\n"))
}

// Err returns nil for an empty list, otherwise the list itself.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
