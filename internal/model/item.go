package model

import "github.com/cogentembedded/tweak-go/variant"

// Item is a single named, typed value exposed by a server. It is
// owned by a Model; callers reach it only through Model.FindByID while
// holding the enclosing context's RW lock (the model itself takes no
// locks; see the package doc).
type Item struct {
	ID          uint64
	URI         string
	Description string
	MetaSource  string
	Default     variant.Value
	Current     variant.Value
	Cookie      any

	metaParsed bool
	meta       variant.Metadata
}

// MetadataIfParsed returns the cached metadata and true if it has already
// been parsed, without parsing it. Used for the read-lock-only fast path of
// the "parse on demand" idiom.
func (it *Item) MetadataIfParsed() (variant.Metadata, bool) {
	return it.meta, it.metaParsed
}

// EnsureMetadataParsed parses MetaSource if it has not been parsed yet and
// caches the result. The caller must hold the model's lock for writing,
// since this mutates the item. Safe to call redundantly: a second caller that
// raced to the write lock will find metaParsed already true and skip
// reparsing (the "re-check after re-acquire" half of the documented idiom).
// For a vector item with a layout, a layout whose product does not match
// the vector's element count is an error (see variant.ValidateLayout).
func (it *Item) EnsureMetadataParsed() (variant.Metadata, error) {
	if it.metaParsed {
		return it.meta, nil
	}
	m, err := variant.Parse(it.MetaSource, it.Default.Kind())
	if err != nil {
		return variant.Metadata{}, err
	}
	if m.Layout != nil && it.Default.Kind().IsVector() {
		if err := variant.ValidateLayout(*m.Layout, it.Default); err != nil {
			return variant.Metadata{}, err
		}
	}
	it.meta = m
	it.metaParsed = true
	return it.meta, nil
}
