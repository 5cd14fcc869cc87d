package wire

import (
	"testing"

	"github.com/cogentembedded/tweak-go/variant"
)

func TestVariantRoundTripScalars(t *testing.T) {
	cases := []variant.Value{
		variant.Null(),
		variant.Bool(true),
		variant.Sint32(-42),
		variant.Uint64(12345678901234),
		variant.Float32(3.5),
		variant.Float64(-2.25),
		variant.String("hello, tweak"),
	}
	for _, v := range cases {
		enc := EncodeVariant(nil, v)
		got, rest, err := DecodeVariant(enc)
		if err != nil {
			t.Fatalf("decode %s: %v", v.Kind(), err)
		}
		if len(rest) != 0 {
			t.Fatalf("expected no trailing bytes for %s, got %d", v.Kind(), len(rest))
		}
		if !v.Equal(got) {
			t.Fatalf("round trip mismatch for %s: got %s", v.Kind(), got)
		}
	}
}

func TestVariantRoundTripVectors(t *testing.T) {
	cases := []variant.Value{
		variant.VectorSint8([]int8{-1, 2, -3}),
		variant.VectorUint8([]uint8{1, 2, 3, 4}),
		variant.VectorSint16([]int16{-100, 200}),
		variant.VectorUint32([]uint32{1, 2, 3}),
		variant.VectorFloat32([]float32{1.5, -2.5}),
		variant.VectorFloat64([]float64{1.125, -2.25, 3.375}),
	}
	for _, v := range cases {
		enc := EncodeVariant(nil, v)
		got, rest, err := DecodeVariant(enc)
		if err != nil {
			t.Fatalf("decode %s: %v", v.Kind(), err)
		}
		if len(rest) != 0 {
			t.Fatalf("expected no trailing bytes for %s", v.Kind())
		}
		if !v.Equal(got) {
			t.Fatalf("round trip mismatch for %s: got %s, want %s", v.Kind(), got, v)
		}
	}
}

func TestMessageRoundTrips(t *testing.T) {
	msgs := []any{
		Subscribe{URIPatterns: "*"},
		ChangeItem{ID: 7, Value: variant.Sint32(99)},
		AnnounceFeatures{FeaturesJSON: `{"vectors":true}`},
		AddItem{
			ID:          3,
			URI:         "/gain",
			Description: "amp gain",
			Meta:        `{"control":"slider"}`,
			Default:     variant.Float32(0),
			Current:     variant.Float32(1.5),
		},
		RemoveItem{ID: 3},
	}
	for _, m := range msgs {
		frame, err := EncodeFrame(m)
		if err != nil {
			t.Fatalf("encode %T: %v", m, err)
		}
		got, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode %T: %v", m, err)
		}
		switch want := m.(type) {
		case ChangeItem:
			g := got.(ChangeItem)
			if g.ID != want.ID || !g.Value.Equal(want.Value) {
				t.Fatalf("ChangeItem mismatch: got %+v want %+v", g, want)
			}
		case AddItem:
			g := got.(AddItem)
			if g.ID != want.ID || g.URI != want.URI || g.Description != want.Description ||
				g.Meta != want.Meta || !g.Default.Equal(want.Default) || !g.Current.Equal(want.Current) {
				t.Fatalf("AddItem mismatch: got %+v want %+v", g, want)
			}
		default:
			if got != m {
				t.Fatalf("message mismatch: got %+v want %+v", got, m)
			}
		}
	}
}

func TestFeaturesNegotiation(t *testing.T) {
	f := ParseFeatures(`{"vectors":false}`)
	if f.Vectors {
		t.Fatal("expected vectors=false to parse as false")
	}
	if f.Supports(true) {
		t.Fatal("expected vector support to be denied")
	}
	if !f.Supports(false) {
		t.Fatal("expected scalar support to always be allowed")
	}

	degraded := ParseFeatures("not json")
	if degraded.Vectors {
		t.Fatal("expected unparseable features to degrade to minimal set")
	}
}
