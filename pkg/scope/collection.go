package scope

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/clinicore/clinicore/pkg/rbac"
)

// ErrUnknownCollection is returned when a collection name has not been
// registered. Callers cannot read or write tables the registry does not know.
var ErrUnknownCollection = fmt.Errorf("unknown collection")

// identifierPattern is the only shape of table and column names the registry
// accepts. Descriptor names are interpolated into SQL, so anything else is
// rejected at registration time.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedColumns are managed by the scoper itself and may not appear in a
// descriptor's writable column list.
var reservedColumns = map[string]bool{
	"id":           true,
	"clinic_id":    true,
	"workspace_id": true,
	"created_by":   true,
	"created_at":   true,
	"updated_at":   true,
}

// Collection describes one governed record table: its writable columns and
// the permissions that gate reading and writing it.
type Collection struct {
	Table        string
	Columns      []string
	ViewAction   rbac.Action
	ManageAction rbac.Action
}

// HasColumn reports whether name is a writable column of the collection
func (c Collection) HasColumn(name string) bool {
	for _, col := range c.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Registry holds the set of governed collections. Registration happens at
// startup; lookups happen on every scoped query.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]Collection
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]Collection)}
}

// Register validates and adds a collection descriptor
func (r *Registry) Register(c Collection) error {
	if !identifierPattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name: %q", c.Table)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("collection %q has no writable columns", c.Table)
	}
	for _, col := range c.Columns {
		if !identifierPattern.MatchString(col) {
			return fmt.Errorf("collection %q has invalid column name: %q", c.Table, col)
		}
		if reservedColumns[col] {
			return fmt.Errorf("collection %q declares reserved column: %q", c.Table, col)
		}
	}
	if !c.ViewAction.Known() || !c.ManageAction.Known() {
		return fmt.Errorf("collection %q references unknown permission action", c.Table)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[c.Table]; exists {
		return fmt.Errorf("collection %q already registered", c.Table)
	}
	r.collections[c.Table] = c
	return nil
}

// Get returns the descriptor for a collection name
func (r *Registry) Get(name string) (Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Names returns all registered collection names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
