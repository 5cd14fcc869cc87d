// Package index implements the URI→id bidirectional lookup. It is
// intentionally not thread-safe: the enclosing model's
// RW lock is the only synchronization, matching the "thread-neutral" item
// model design.
package index

import "errors"

// Invalid is the reserved, never-assigned id.
const Invalid uint64 = 0

var (
	// ErrKeyAlreadyExists is returned by Insert when uri is already mapped.
	ErrKeyAlreadyExists = errors.New("index: uri already exists")
	// ErrKeyNotFound is returned by Remove when uri is not mapped.
	ErrKeyNotFound = errors.New("index: uri not found")
)

// Index is a bidirectional uri↔id map: two plain Go maps guarded by a
// caller-held lock, kept in step as one invariant.
type Index struct {
	uriToID map[string]uint64
	idToURI map[uint64]string
}

// New creates an empty index.
func New() *Index {
	return &Index{
		uriToID: make(map[string]uint64),
		idToURI: make(map[uint64]string),
	}
}

// Insert adds a (uri, id) pair. It fails with ErrKeyAlreadyExists if uri is
// already present.
func (idx *Index) Insert(uri string, id uint64) error {
	if _, exists := idx.uriToID[uri]; exists {
		return ErrKeyAlreadyExists
	}
	idx.uriToID[uri] = id
	idx.idToURI[id] = uri
	return nil
}

// Lookup returns the id for uri, or Invalid if uri is not present. Pure
// and total.
func (idx *Index) Lookup(uri string) uint64 {
	if id, ok := idx.uriToID[uri]; ok {
		return id
	}
	return Invalid
}

// URI returns the uri for id, and whether it was found (the reverse
// direction of Lookup).
func (idx *Index) URI(id uint64) (string, bool) {
	uri, ok := idx.idToURI[id]
	return uri, ok
}

// Remove deletes uri (and its id) from the index.
func (idx *Index) Remove(uri string) error {
	id, ok := idx.uriToID[uri]
	if !ok {
		return ErrKeyNotFound
	}
	delete(idx.uriToID, uri)
	delete(idx.idToURI, id)
	return nil
}

// RemoveID deletes the entry owning id, a convenience for callers that only
// hold the id.
func (idx *Index) RemoveID(id uint64) error {
	uri, ok := idx.idToURI[id]
	if !ok {
		return ErrKeyNotFound
	}
	delete(idx.uriToID, uri)
	delete(idx.idToURI, id)
	return nil
}

// Walk calls visitor(uri, id) for every entry. Iteration order is
// unspecified (Go map order). If visitor returns false, Walk stops early.
func (idx *Index) Walk(visitor func(uri string, id uint64) bool) {
	for uri, id := range idx.uriToID {
		if !visitor(uri, id) {
			return
		}
	}
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.uriToID) }

// Destroy releases all entries. After Destroy the index is empty but still
// usable (there is no separate "freed" state in Go; the garbage collector
// owns the memory once the maps are cleared).
func (idx *Index) Destroy() {
	idx.uriToID = make(map[string]uint64)
	idx.idToURI = make(map[uint64]string)
}
