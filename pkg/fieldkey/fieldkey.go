// Package fieldkey provides the structural identity of column and table
// references.
package fieldkey

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/qsql/pkg/token"
)

// FieldKey is an immutable dotted name: an optional parent key plus a final
// name. A nil *FieldKey means "no key".
type FieldKey struct {
	parent *FieldKey
	name   string
}

// New returns the key parent.name. parent may be nil.
func New(parent *FieldKey, name string) *FieldKey {
	return &FieldKey{parent: parent, name: name}
}

// FromParts builds a key from its components, outermost first.
// It returns nil when parts is empty.
func FromParts(parts ...string) *FieldKey {
	var k *FieldKey
	for _, p := range parts {
		k = New(k, p)
	}
	return k
}

// Parse splits a dotted string into a key. Quoted components are not
// recognised; use FromParts for names containing dots.
func Parse(s string) *FieldKey {
	if s == "" {
		return nil
	}
	return FromParts(strings.Split(s, ".")...)
}

// Parent returns the table-qualifying part of the key, or nil.
func (k *FieldKey) Parent() *FieldKey { return k.parent }

// Name returns the final component.
func (k *FieldKey) Name() string { return k.name }

// IsSimple reports whether the key is a single unqualified name.
func (k *FieldKey) IsSimple() bool {
	return k != nil && k.parent == nil
}

// Parts returns the components, outermost first.
func (k *FieldKey) Parts() []string {
	if k == nil {
		return nil
	}
	return append(k.parent.Parts(), k.name)
}

// Depth returns the number of components.
func (k *FieldKey) Depth() int {
	n := 0
	for ; k != nil; k = k.parent {
		n++
	}
	return n
}

// Append combines k with a right-hand key. Combination only happens when right
// is a simple name; otherwise the result is nil.
func (k *FieldKey) Append(right *FieldKey) *FieldKey {
	if k == nil || !right.IsSimple() {
		return nil
	}
	return New(k, right.name)
}

// Equal compares keys structurally, ignoring case.
func (k *FieldKey) Equal(o *FieldKey) bool {
	for k != nil && o != nil {
		if Fold(k.name) != Fold(o.name) {
			return false
		}
		k, o = k.parent, o.parent
	}
	return k == nil && o == nil
}

// Folded returns a case-folded dotted form suitable as a map key.
func (k *FieldKey) Folded() string {
	parts := k.Parts()
	for i, p := range parts {
		parts[i] = Fold(p)
	}
	return strings.Join(parts, ".")
}

// String renders the key as query source, quoting components that need it.
func (k *FieldKey) String() string {
	if k == nil {
		return ""
	}
	parts := k.Parts()
	for i, p := range parts {
		parts[i] = Quote(p)
	}
	return strings.Join(parts, ".")
}

// Fold case-folds a single name. A new Caser is used per call because a
// Caser must not be shared between goroutines.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Quote renders a name as an identifier, adding double quotes when the name
// is not a plain identifier or collides with a keyword.
func Quote(name string) string {
	if isPlain(name) && token.LookupIdent(strings.ToLower(name)) == token.IDENT {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlain(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
