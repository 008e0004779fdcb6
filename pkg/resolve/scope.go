package resolve

import (
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/schema"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// RelationKind indicates where a relation in scope comes from.
type RelationKind int

const (
	// RelTable is a catalog table.
	RelTable RelationKind = iota
	// RelCTE is a WITH binding.
	RelCTE
	// RelDerived is a sub-query in FROM.
	RelDerived
)

// Column is a column of a relation or an output column of a query.
type Column struct {
	Name     string
	Type     types.Type
	Attrs    types.Attrs
	Nullable bool
}

// Relation is a table, WITH binding or derived table visible in a scope.
type Relation struct {
	Kind    RelationKind
	Name    string             // table or binding name
	Alias   string             // alias, if any
	Source  *fieldkey.FieldKey // catalog key for tables
	Columns []*Column

	// Open is set when the column list is unknown, for tables that failed to
	// resolve and for a WITH binding referenced from its own body. Any name
	// resolves against an open relation with an unknown type.
	Open bool
}

// RefName returns the name used to reference this relation (alias if present, else name).
func (r *Relation) RefName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// Column finds a column by name, ignoring case. Open relations synthesize
// the column on demand.
func (r *Relation) Column(name string) (*Column, bool) {
	folded := fieldkey.Fold(name)
	for _, c := range r.Columns {
		if fieldkey.Fold(c.Name) == folded {
			return c, true
		}
	}
	if r.Open {
		c := &Column{Name: name, Type: types.Unknown, Nullable: true}
		r.Columns = append(r.Columns, c)
		return c, true
	}
	return nil, false
}

func tableRelation(t *schema.Table, alias string) *Relation {
	rel := &Relation{
		Kind:   RelTable,
		Name:   t.Name,
		Alias:  alias,
		Source: t.Key(),
	}
	for _, c := range t.Columns {
		rel.Columns = append(rel.Columns, &Column{
			Name:     c.Name,
			Type:     c.Type,
			Attrs:    c.Attrs(),
			Nullable: c.Nullable,
		})
	}
	return rel
}

// Scope tracks the relations and WITH bindings visible to one query block.
type Scope struct {
	parent    *Scope
	relations []*Relation          // FROM terms, in order
	byName    map[string]*Relation // folded RefName -> relation
	ctes      map[string]*Relation // folded binding name -> relation
	outputs   []*Column            // select list, for alias references
}

// NewScope creates a new root scope.
func NewScope() *Scope {
	return &Scope{
		byName: make(map[string]*Relation),
		ctes:   make(map[string]*Relation),
	}
}

// Child creates a child scope for nested queries (sub-queries, derived tables).
func (s *Scope) Child() *Scope {
	c := NewScope()
	c.parent = s
	return c
}

// RegisterCTE registers a WITH binding.
func (s *Scope) RegisterCTE(rel *Relation) {
	s.ctes[fieldkey.Fold(rel.Name)] = rel
}

// Register adds a FROM term. It reports false when the reference name is
// already taken in this scope.
func (s *Scope) Register(rel *Relation) bool {
	key := fieldkey.Fold(rel.RefName())
	if _, dup := s.byName[key]; dup {
		return false
	}
	s.byName[key] = rel
	s.relations = append(s.relations, rel)
	return true
}

// Lookup finds a relation by reference name.
// Searches current scope first, then parent scopes.
func (s *Scope) Lookup(name string) (*Relation, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if rel, ok := sc.byName[fieldkey.Fold(name)]; ok {
			return rel, true
		}
	}
	return nil, false
}

// LookupQualified finds a relation by a multi-part qualifier such as
// schema.table, matching catalog keys of table relations.
func (s *Scope) LookupQualified(key *fieldkey.FieldKey) (*Relation, bool) {
	if key.IsSimple() {
		return s.Lookup(key.Name())
	}
	for sc := s; sc != nil; sc = sc.parent {
		for _, rel := range sc.relations {
			if rel.Alias == "" && rel.Source != nil && rel.Source.Equal(key) {
				return rel, true
			}
		}
	}
	return nil, false
}

// LookupCTE looks up a WITH binding by name.
func (s *Scope) LookupCTE(name string) (*Relation, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if rel, ok := sc.ctes[fieldkey.Fold(name)]; ok {
			return rel, true
		}
	}
	return nil, false
}

// ResolveColumn resolves an unqualified column name against relations with
// known columns. Relations of the innermost scope that knows the name win;
// more than one match in that scope is ambiguous.
func (s *Scope) ResolveColumn(name string) (matches []*Relation, col *Column) {
	for sc := s; sc != nil; sc = sc.parent {
		for _, rel := range sc.relations {
			if rel.Open {
				continue
			}
			if c, ok := rel.Column(name); ok {
				matches = append(matches, rel)
				if col == nil {
					col = c
				}
			}
		}
		if len(matches) > 0 {
			return matches, col
		}
	}
	return nil, nil
}

// ResolveOpen resolves a name against the only open relation of the
// innermost scope that has one. Unknown tables and self-referencing WITH
// bindings absorb names this way instead of cascading errors.
func (s *Scope) ResolveOpen(name string) (*Relation, *Column) {
	for sc := s; sc != nil; sc = sc.parent {
		switch open := sc.openRelations(); len(open) {
		case 0:
			continue
		case 1:
			c, _ := open[0].Column(name)
			return open[0], c
		default:
			return nil, nil
		}
	}
	return nil, nil
}

func (s *Scope) openRelations() []*Relation {
	var out []*Relation
	for _, rel := range s.relations {
		if rel.Open {
			out = append(out, rel)
		}
	}
	return out
}

// Output finds a select-list column of this scope by name.
func (s *Scope) Output(name string) (*Column, bool) {
	folded := fieldkey.Fold(name)
	for _, c := range s.outputs {
		if fieldkey.Fold(c.Name) == folded {
			return c, true
		}
	}
	return nil, false
}

// Relations returns the FROM terms of the current scope (not including parent).
func (s *Scope) Relations() []*Relation {
	return s.relations
}
