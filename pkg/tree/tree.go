// Package tree implements the raw parse tree as an arena of labeled nodes.
//
// Nodes are addressed by ID and own their children by index. A node may be
// held by more than one parent after ShallowClone; the arena tracks how many
// holders each node has and refuses structural mutation of a node with more
// than one holder.
package tree

import (
	"fmt"

	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/token"
)

// ID addresses a node inside an Arena.
type ID int32

// Nil is the zero reference.
const Nil ID = -1

// Constraint restricts which kinds may be attached as children.
type Constraint func(kind token.TokenType) bool

// OneOf returns a constraint accepting exactly the given kinds.
func OneOf(kinds ...token.TokenType) Constraint {
	return func(kind token.TokenType) bool {
		for _, k := range kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
}

type node struct {
	kind     token.TokenType
	text     string
	pos      token.Position
	children []ID
	accept   Constraint
	refs     int32
}

// Arena stores the nodes of one or more trees.
// It is not safe for concurrent mutation.
type Arena struct {
	nodes []node
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{}
}

// Len returns the number of allocated slots.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// NewNode allocates a node with no children.
func (a *Arena) NewNode(kind token.TokenType, text string, pos token.Position) ID {
	a.nodes = append(a.nodes, node{kind: kind, text: text, pos: pos})
	return ID(len(a.nodes) - 1)
}

// FromToken allocates a node labeled with a lexical token.
func (a *Arena) FromToken(tok token.Token) ID {
	return a.NewNode(tok.Type, tok.Literal, tok.Pos)
}

func (a *Arena) get(id ID) *node {
	if id < 0 || int(id) >= len(a.nodes) {
		panic(fmt.Sprintf("tree: node %d out of range", id))
	}
	return &a.nodes[id]
}

// Kind returns the node's discriminant tag.
func (a *Arena) Kind(id ID) token.TokenType { return a.get(id).kind }

// Text returns the node's raw token text.
func (a *Arena) Text(id ID) string { return a.get(id).text }

// Pos returns the node's source position.
func (a *Arena) Pos(id ID) token.Position { return a.get(id).pos }

// SetText replaces the node's token text.
func (a *Arena) SetText(id ID, text string) { a.get(id).text = text }

// Children returns the node's children. The slice must not be modified.
func (a *Arena) Children(id ID) []ID { return a.get(id).children }

// NumChildren returns the number of children.
func (a *Arena) NumChildren(id ID) int { return len(a.get(id).children) }

// Child returns the i-th child or Nil when out of range.
func (a *Arena) Child(id ID, i int) ID {
	n := a.get(id)
	if i < 0 || i >= len(n.children) {
		return Nil
	}
	return n.children[i]
}

// Constrain installs a child constraint. Existing children are not rechecked.
func (a *Arena) Constrain(id ID, c Constraint) {
	a.get(id).accept = c
}

// RefCount returns the number of holders of a node.
func (a *Arena) RefCount(id ID) int {
	return int(a.get(id).refs)
}

// Retain records an additional holder outside the arena, such as a tree root.
func (a *Arena) Retain(id ID) {
	a.get(id).refs++
}

// Release drops a holder.
func (a *Arena) Release(id ID) {
	n := a.get(id)
	if n.refs > 0 {
		n.refs--
	}
}

// Shared reports whether more than one site holds the node.
func (a *Arena) Shared(id ID) bool {
	return a.get(id).refs > 1
}

func (a *Arena) checkMutable(id ID) error {
	if a.Shared(id) {
		return fmt.Errorf("%w: %s node %d has %d holders", diag.ErrSharedNode, a.Kind(id), id, a.RefCount(id))
	}
	return nil
}

func (a *Arena) checkChild(parent, child ID) error {
	p := a.get(parent)
	if p.accept != nil && !p.accept(a.Kind(child)) {
		return fmt.Errorf("%w: %s cannot hold %s", diag.ErrInvalidChild, p.kind, a.Kind(child))
	}
	return nil
}

// AppendChild attaches child as the last child of parent.
func (a *Arena) AppendChild(parent, child ID) error {
	if err := a.checkMutable(parent); err != nil {
		return err
	}
	if err := a.checkChild(parent, child); err != nil {
		return err
	}
	p := a.get(parent)
	p.children = append(p.children, child)
	a.Retain(child)
	return nil
}

// InsertChild attaches child at index i.
func (a *Arena) InsertChild(parent ID, i int, child ID) error {
	if err := a.checkMutable(parent); err != nil {
		return err
	}
	if err := a.checkChild(parent, child); err != nil {
		return err
	}
	p := a.get(parent)
	if i < 0 || i > len(p.children) {
		return fmt.Errorf("tree: insert index %d out of range [0,%d]", i, len(p.children))
	}
	p.children = append(p.children, Nil)
	copy(p.children[i+1:], p.children[i:])
	p.children[i] = child
	a.Retain(child)
	return nil
}

// ReplaceChild swaps the i-th child of parent for child.
func (a *Arena) ReplaceChild(parent ID, i int, child ID) error {
	if err := a.checkMutable(parent); err != nil {
		return err
	}
	if err := a.checkChild(parent, child); err != nil {
		return err
	}
	p := a.get(parent)
	if i < 0 || i >= len(p.children) {
		return fmt.Errorf("tree: replace index %d out of range [0,%d)", i, len(p.children))
	}
	old := p.children[i]
	p.children[i] = child
	a.Retain(child)
	a.Release(old)
	return nil
}

// RemoveChild detaches the i-th child of parent.
func (a *Arena) RemoveChild(parent ID, i int) error {
	if err := a.checkMutable(parent); err != nil {
		return err
	}
	p := a.get(parent)
	if i < 0 || i >= len(p.children) {
		return fmt.Errorf("tree: remove index %d out of range [0,%d)", i, len(p.children))
	}
	old := p.children[i]
	p.children = append(p.children[:i], p.children[i+1:]...)
	a.Release(old)
	return nil
}

// FirstChildOfKind returns the first direct child with the given kind.
func (a *Arena) FirstChildOfKind(id ID, kind token.TokenType) (ID, bool) {
	for _, c := range a.get(id).children {
		if a.Kind(c) == kind {
			return c, true
		}
	}
	return Nil, false
}

// Find returns the first descendant (depth-first, pre-order) with the given
// kind, excluding id itself.
func (a *Arena) Find(id ID, kind token.TokenType) (ID, bool) {
	found := Nil
	a.Walk(id, func(n ID) bool {
		if found != Nil {
			return false
		}
		if n != id && a.Kind(n) == kind {
			found = n
			return false
		}
		return true
	})
	return found, found != Nil
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (a *Arena) Walk(id ID, fn func(ID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range a.get(id).children {
		a.Walk(c, fn)
	}
}

// ShallowClone allocates a copy of id that holds the same child nodes.
// Every shared child gains a holder, so it becomes immutable until one of the
// parents lets go of it.
func (a *Arena) ShallowClone(id ID) ID {
	src := a.get(id)
	clone := node{
		kind:     src.kind,
		text:     src.text,
		pos:      src.pos,
		accept:   src.accept,
		children: append([]ID(nil), src.children...),
	}
	a.nodes = append(a.nodes, clone)
	for _, c := range clone.children {
		a.Retain(c)
	}
	return ID(len(a.nodes) - 1)
}

// Dump renders a subtree as an indented outline, one node per line.
func (a *Arena) Dump(id ID) string {
	var b []byte
	var walk func(n ID, depth int)
	walk = func(n ID, depth int) {
		for i := 0; i < depth; i++ {
			b = append(b, "  "...)
		}
		b = append(b, a.Kind(n).String()...)
		if t := a.Text(n); t != "" {
			b = append(b, ' ')
			b = append(b, fmt.Sprintf("%q", t)...)
		}
		b = append(b, '\n')
		for _, c := range a.Children(n) {
			walk(c, depth+1)
		}
	}
	walk(id, 0)
	return string(b)
}
