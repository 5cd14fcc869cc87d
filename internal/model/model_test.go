package model

import (
	"testing"

	"github.com/cogentembedded/tweak-go/internal/index"
	"github.com/cogentembedded/tweak-go/variant"
)

func TestCreateFindRemove(t *testing.T) {
	m := New()

	def := variant.Sint32(0)
	cur := variant.Sint32(5)
	if err := m.CreateItem(1, "/a/b", "desc", "", def, cur, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it, ok := m.FindByID(1)
	if !ok {
		t.Fatal("expected item to be found by id")
	}
	if it.URI != "/a/b" || it.Current.Int() != 5 {
		t.Fatalf("unexpected item contents: %+v", it)
	}

	byURI, ok := m.FindByURI("/a/b")
	if !ok || byURI.ID != 1 {
		t.Fatal("expected reverse lookup by uri to resolve to id 1")
	}

	if err := m.RemoveItem(1); err != nil {
		t.Fatalf("unexpected error removing: %v", err)
	}
	if _, ok := m.FindByID(1); ok {
		t.Fatal("expected item to be gone after remove")
	}
	if got := m.LookupURI("/a/b"); got != index.Invalid {
		t.Fatalf("expected uri index entry to be removed, got id %d", got)
	}
}

func TestCreateItemDuplicateIDRejected(t *testing.T) {
	m := New()
	v := variant.Bool(true)
	if err := m.CreateItem(1, "/a", "", "", v, v, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.CreateItem(1, "/b", "", "", v, v, nil); err != ErrItemAlreadyExists {
		t.Fatalf("expected ErrItemAlreadyExists, got %v", err)
	}
}

func TestCreateItemDuplicateURIRejected(t *testing.T) {
	m := New()
	v := variant.Bool(true)
	if err := m.CreateItem(1, "/a", "", "", v, v, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.CreateItem(2, "/a", "", "", v, v, nil); err != index.ErrKeyAlreadyExists {
		t.Fatalf("expected ErrKeyAlreadyExists, got %v", err)
	}
	// the failed insert must not have left a dangling item for id 2.
	if _, ok := m.FindByID(2); ok {
		t.Fatal("expected id 2 to not be registered after rejected duplicate uri")
	}
}

func TestRemoveUnknownItem(t *testing.T) {
	m := New()
	if err := m.RemoveItem(42); err != ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestWalkVisitsAllAndCookieRoundTrips(t *testing.T) {
	m := New()
	v := variant.Sint32(0)
	_ = m.CreateItem(1, "/a", "", "", v, v, "cookie-a")
	_ = m.CreateItem(2, "/b", "", "", v, v, "cookie-b")

	seen := map[uint64]any{}
	m.Walk(func(it *Item) bool {
		seen[it.ID] = it.Cookie
		return true
	})
	if len(seen) != 2 || seen[1] != "cookie-a" || seen[2] != "cookie-b" {
		t.Fatalf("unexpected walk results: %+v", seen)
	}
}

func TestDestroyClearsModel(t *testing.T) {
	m := New()
	v := variant.Sint32(0)
	_ = m.CreateItem(1, "/a", "", "", v, v, nil)
	m.Destroy()
	if m.Len() != 0 {
		t.Fatalf("expected empty model after destroy, got %d items", m.Len())
	}
	if got := m.LookupURI("/a"); got != index.Invalid {
		t.Fatalf("expected uri index cleared after destroy, got %d", got)
	}
}

func TestMetadataLazyParseAndCache(t *testing.T) {
	m := New()
	v := variant.Float32(1)
	_ = m.CreateItem(1, "/a", "", `{"control":"slider","min":0,"max":10}`, v, v, nil)
	it, _ := m.FindByID(1)

	if _, parsed := it.MetadataIfParsed(); parsed {
		t.Fatal("expected metadata not parsed before first EnsureMetadataParsed call")
	}

	meta, err := it.EnsureMetadataParsed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Control.Kind != variant.ControlSlider {
		t.Fatalf("expected slider control, got %s", meta.Control.Kind)
	}

	cached, parsed := it.MetadataIfParsed()
	if !parsed {
		t.Fatal("expected metadata to be cached after EnsureMetadataParsed")
	}
	if cached.Control.Kind != variant.ControlSlider {
		t.Fatalf("expected cached metadata to match parsed metadata, got %s", cached.Control.Kind)
	}

	// a second call must not reparse or change the result.
	again, err := it.EnsureMetadataParsed()
	if err != nil {
		t.Fatalf("unexpected error on second parse: %v", err)
	}
	if again.Control.Kind != variant.ControlSlider {
		t.Fatalf("unexpected metadata on repeat call: %+v", again)
	}
}
