// Package catalog maps names to tables and view definitions. Lookup is
// case-insensitive; registration order and spelling are preserved for
// display.
package catalog

import (
	"fmt"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/storage"
)

// ErrKind distinguishes catalog failure modes.
type ErrKind int

const (
	NotFound ErrKind = iota
	AlreadyExists
)

// Error is a catalog lookup or registration failure.
type Error struct {
	Kind ErrKind
	Name string
}

func (e *Error) Error() string {
	switch e.Kind {
	case AlreadyExists:
		return fmt.Sprintf("relation %q already exists", e.Name)
	default:
		return fmt.Sprintf("relation %q does not exist", e.Name)
	}
}

// EntryKind distinguishes tables from views.
type EntryKind int

const (
	KindTable EntryKind = iota
	KindView
)

func (k EntryKind) String() string {
	if k == KindView {
		return "view"
	}
	return "table"
}

// Entry is one catalog entry: a table backed by a store, or a view
// holding its defining query. A view references tables by name only;
// resolution happens on every use.
type Entry struct {
	Name        string // as registered, for display
	Kind        EntryKind
	Store       *storage.Store
	ViewQuery   ast.Statement
	ViewColumns []string
}

// Catalog is the name -> entry mapping owned by one engine instance.
type Catalog struct {
	entries map[string]*Entry // keyed by lowercase name
	order   []string          // lowercase keys in registration order
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]*Entry)}
}

func key(name string) string { return strings.ToLower(name) }

// Register adds a table under the given name.
func (c *Catalog) Register(name string, store *storage.Store) error {
	k := key(name)
	if _, exists := c.entries[k]; exists {
		return &Error{Kind: AlreadyExists, Name: name}
	}
	c.entries[k] = &Entry{Name: name, Kind: KindTable, Store: store}
	c.order = append(c.order, k)
	return nil
}

// CreateView adds or replaces a view definition.
func (c *Catalog) CreateView(name string, query ast.Statement, columns []string, replace bool) error {
	k := key(name)
	if existing, exists := c.entries[k]; exists {
		if !replace || existing.Kind != KindView {
			return &Error{Kind: AlreadyExists, Name: name}
		}
		existing.Name = name
		existing.ViewQuery = query
		existing.ViewColumns = columns
		return nil
	}
	c.entries[k] = &Entry{Name: name, Kind: KindView, ViewQuery: query, ViewColumns: columns}
	c.order = append(c.order, k)
	return nil
}

// Get returns the entry for a name.
func (c *Catalog) Get(name string) (*Entry, error) {
	if e, ok := c.entries[key(name)]; ok {
		return e, nil
	}
	return nil, &Error{Kind: NotFound, Name: name}
}

// GetTable returns the store backing a table name; views are rejected.
func (c *Catalog) GetTable(name string) (*storage.Store, error) {
	e, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindTable {
		return nil, &Error{Kind: NotFound, Name: name}
	}
	return e.Store, nil
}

// Has reports whether a name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[key(name)]
	return ok
}

// Drop removes an entry and returns it (for undo).
func (c *Catalog) Drop(name string) (*Entry, error) {
	k := key(name)
	e, ok := c.entries[k]
	if !ok {
		return nil, &Error{Kind: NotFound, Name: name}
	}
	delete(c.entries, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return e, nil
}

// Rename changes an entry's name, keeping its registration position.
func (c *Catalog) Rename(oldName, newName string) error {
	ok, nk := key(oldName), key(newName)
	e, exists := c.entries[ok]
	if !exists {
		return &Error{Kind: NotFound, Name: oldName}
	}
	if _, taken := c.entries[nk]; taken && nk != ok {
		return &Error{Kind: AlreadyExists, Name: newName}
	}
	delete(c.entries, ok)
	e.Name = newName
	c.entries[nk] = e
	for i, o := range c.order {
		if o == ok {
			c.order[i] = nk
			break
		}
	}
	return nil
}

// List returns all entries in registration order.
func (c *Catalog) List() []*Entry {
	out := make([]*Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}
