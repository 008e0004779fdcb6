// Package schema provides table and column metadata to the resolver.
//
// A Catalog is an in-memory set of tables. Catalogs are loaded from YAML
// files or introspected from a live database through a registered Source.
package schema

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// Column describes one column of a table.
type Column struct {
	Name     string     `yaml:"name"`
	DataType string     `yaml:"type"`
	Type     types.Type `yaml:"-"`
	Nullable bool       `yaml:"nullable"`
	Format   string     `yaml:"format,omitempty"`
	Label    string     `yaml:"label,omitempty"`
	Position int        `yaml:"-"`
}

// Attrs returns the display attributes carried by the column.
func (c *Column) Attrs() types.Attrs {
	return types.Attrs{Format: c.Format, Label: c.Label}
}

// Table describes a table or view.
type Table struct {
	Schema  string    `yaml:"schema"`
	Name    string    `yaml:"name"`
	Columns []*Column `yaml:"columns"`
}

// Key returns the qualified key of the table.
func (t *Table) Key() *fieldkey.FieldKey {
	if t.Schema == "" {
		return fieldkey.New(nil, t.Name)
	}
	return fieldkey.FromParts(t.Schema, t.Name)
}

// Column looks up a column by name, ignoring case.
func (t *Table) Column(name string) (*Column, bool) {
	folded := fieldkey.Fold(name)
	for _, c := range t.Columns {
		if fieldkey.Fold(c.Name) == folded {
			return c, true
		}
	}
	return nil, false
}

// Provider resolves table keys. A missing table yields ok=false, never an
// error.
type Provider interface {
	Table(key *fieldkey.FieldKey) (*Table, bool)
}

// Catalog is an in-memory Provider. It is safe for concurrent use.
type Catalog struct {
	mu            sync.RWMutex
	defaultSchema string
	tables        map[string]*Table // folded "schema.name"
	byName        map[string][]*Table
}

// NewCatalog returns an empty catalog. Unqualified table names resolve in
// defaultSchema first, then to the only table of that name in any schema.
func NewCatalog(defaultSchema string) *Catalog {
	return &Catalog{
		defaultSchema: defaultSchema,
		tables:        make(map[string]*Table),
		byName:        make(map[string][]*Table),
	}
}

// DefaultSchema returns the schema used for unqualified names.
func (c *Catalog) DefaultSchema() string { return c.defaultSchema }

// Add inserts or replaces a table. Column types are derived from the
// declared data types when not set.
func (c *Catalog) Add(t *Table) {
	for i, col := range t.Columns {
		if col.Type == types.Unknown {
			col.Type = types.FromSQL(col.DataType)
		}
		if col.Position == 0 {
			col.Position = i + 1
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := t.Key().Folded()
	if old, ok := c.tables[key]; ok {
		c.removeName(old)
	}
	c.tables[key] = t
	name := fieldkey.Fold(t.Name)
	c.byName[name] = append(c.byName[name], t)
}

func (c *Catalog) removeName(t *Table) {
	name := fieldkey.Fold(t.Name)
	list := c.byName[name]
	for i, x := range list {
		if x == t {
			c.byName[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Table resolves a one- or two-part table key.
func (c *Catalog) Table(key *fieldkey.FieldKey) (*Table, bool) {
	if key == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.tables[key.Folded()]; ok {
		return t, true
	}
	if !key.IsSimple() {
		return nil, false
	}
	if c.defaultSchema != "" {
		if t, ok := c.tables[fieldkey.FromParts(c.defaultSchema, key.Name()).Folded()]; ok {
			return t, true
		}
	}
	if list := c.byName[fieldkey.Fold(key.Name())]; len(list) == 1 {
		return list[0], true
	}
	return nil, false
}

// Tables returns all tables ordered by schema and name.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
