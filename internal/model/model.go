// Package model is the in-memory store of items behind a Tweak endpoint.
// It is deliberately thread-neutral: every exported method
// mutates or reads plain Go maps with no internal locking. The enclosing
// context (package tweak) wraps every call with its own RW lock, matching
// the "model owns no lock of its own" design note.
package model

import (
	"errors"

	"github.com/cogentembedded/tweak-go/internal/index"
	"github.com/cogentembedded/tweak-go/variant"
)

// ErrItemAlreadyExists is returned by CreateItem when id is already present.
var ErrItemAlreadyExists = errors.New("model: item already exists")

// ErrItemNotFound is returned by RemoveItem when id is unknown.
var ErrItemNotFound = errors.New("model: item not found")

// Model owns the id→Item map together with the uri→id index, created and
// torn down together; the guarding reader-writer lock lives one level up,
// in the context.
type Model struct {
	items map[uint64]*Item
	index *index.Index
}

// New creates an empty model.
func New() *Model {
	return &Model{
		items: make(map[uint64]*Item),
		index: index.New(),
	}
}

// CreateItem registers a new item. It fails with ErrItemAlreadyExists if id
// is already taken, or with index.ErrKeyAlreadyExists if uri is already
// taken by a different id. Both are caller (id-allocator / AddItem sender)
// errors, not something CreateItem can resolve on its own.
func (m *Model) CreateItem(id uint64, uri, description, metaSource string, def, cur variant.Value, cookie any) error {
	if _, exists := m.items[id]; exists {
		return ErrItemAlreadyExists
	}
	if err := m.index.Insert(uri, id); err != nil {
		return err
	}
	m.items[id] = &Item{
		ID:          id,
		URI:         uri,
		Description: description,
		MetaSource:  metaSource,
		Default:     def,
		Current:     cur,
		Cookie:      cookie,
	}
	return nil
}

// FindByID returns the item for id, or nil, false if it doesn't exist.
func (m *Model) FindByID(id uint64) (*Item, bool) {
	it, ok := m.items[id]
	return it, ok
}

// FindByURI resolves uri to an id via the index, then to its Item. Both
// steps fail closed (index.Invalid / not-found) if uri is unknown.
func (m *Model) FindByURI(uri string) (*Item, bool) {
	id := m.index.Lookup(uri)
	if id == index.Invalid {
		return nil, false
	}
	return m.FindByID(id)
}

// LookupURI returns the id bound to uri, or index.Invalid.
func (m *Model) LookupURI(uri string) uint64 {
	return m.index.Lookup(uri)
}

// RemoveItem deletes the item for id and its uri entry.
func (m *Model) RemoveItem(id uint64) error {
	it, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	_ = m.index.Remove(it.URI)
	delete(m.items, id)
	return nil
}

// Walk calls visitor for every item. Iteration order is unspecified. If
// visitor returns false, Walk stops early.
func (m *Model) Walk(visitor func(*Item) bool) {
	for _, it := range m.items {
		if !visitor(it) {
			return
		}
	}
}

// Len returns the number of items currently held.
func (m *Model) Len() int { return len(m.items) }

// Destroy releases every item and resets the uri index. After Destroy the
// model is empty but remains usable.
func (m *Model) Destroy() {
	m.items = make(map[uint64]*Item)
	m.index.Destroy()
}
