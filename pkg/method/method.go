// Package method is the registry of callable methods: name lookup, arity,
// return types and per-dialect rendering.
package method

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

// Variadic is the MaxArgs value of a method without an upper bound.
const Variadic = -1

// Method describes a callable method.
type Method struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic for no upper bound

	// Returns computes the result type from the argument types.
	Returns func(args []types.Type) types.Type
	// Volatile methods may return a different value on every call and are
	// never constant.
	Volatile bool
	// Session names a host-context value. Session methods are not rendered
	// as calls; the generator binds the value as a parameter.
	Session string

	render func(d *dialect.Dialect, args []string) string
}

// CheckArity reports an error when n arguments do not fit the method.
func (m *Method) CheckArity(n int) error {
	switch {
	case n < m.MinArgs && m.MinArgs == m.MaxArgs:
		return fmt.Errorf("%s expects %d arguments, got %d", m.Name, m.MinArgs, n)
	case n < m.MinArgs:
		return fmt.Errorf("%s expects at least %d arguments, got %d", m.Name, m.MinArgs, n)
	case m.MaxArgs != Variadic && n > m.MaxArgs && m.MinArgs == m.MaxArgs:
		return fmt.Errorf("%s expects %d arguments, got %d", m.Name, m.MaxArgs, n)
	case m.MaxArgs != Variadic && n > m.MaxArgs:
		return fmt.Errorf("%s expects at most %d arguments, got %d", m.Name, m.MaxArgs, n)
	}
	return nil
}

// ReturnType returns the declared result type for the given argument types.
func (m *Method) ReturnType(args []types.Type) types.Type {
	if m.Returns == nil {
		return types.Unknown
	}
	return m.Returns(args)
}

// Render renders the call into dialect SQL over already-rendered arguments.
func (m *Method) Render(d *dialect.Dialect, args []string) string {
	if m.render != nil {
		return m.render(d, args)
	}
	return d.RenderCall(m.Name, args)
}

// Registry maps method names to descriptors. Names are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*Method
}

// NewRegistry returns a registry holding the builtin methods.
func NewRegistry() *Registry {
	r := &Registry{methods: make(map[string]*Method, len(builtins))}
	for _, m := range builtins {
		r.methods[m.Name] = m
	}
	return r
}

// Register adds or replaces a method.
func (r *Registry) Register(m *Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[strings.ToLower(m.Name)] = m
}

// Lookup returns the method for a call-site name. The argument types are
// accepted for overload resolution; every builtin has a single signature.
func (r *Registry) Lookup(name string, _ []types.Type) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[strings.ToLower(name)]
	return m, ok
}

// Names returns all registered method names (sorted).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
