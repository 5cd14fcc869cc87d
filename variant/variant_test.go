package variant

import "testing"

func TestRoundTripScalars(t *testing.T) {
	cases := []Value{
		Null(),
		Bool(true),
		Sint32(-7),
		Uint64(42),
		Float64(2.5),
		String("hello"),
	}
	for _, v := range cases {
		clone := v.Clone()
		if !v.Equal(clone) {
			t.Errorf("%s: clone not equal to original", v.Kind())
		}
	}
}

func TestVectorLenAndEqual(t *testing.T) {
	a := VectorUint8([]byte{1, 2, 3, 4, 5, 6})
	b := a.Clone()
	if a.Len() != 6 || b.Len() != 6 {
		t.Fatalf("expected length 6, got %d/%d", a.Len(), b.Len())
	}
	if !a.Equal(b) {
		t.Fatal("expected clone to be equal")
	}
	c := VectorUint8([]byte{1, 2, 3})
	if a.Equal(c) {
		t.Fatal("expected different length vectors to compare unequal")
	}
}

func TestCheckCompatibility(t *testing.T) {
	sample := Float32(1.0)
	if !CheckCompatibility(sample, Float32(9.0)) {
		t.Error("expected same-kind scalars to be compatible")
	}
	if CheckCompatibility(sample, String("oops")) {
		t.Error("expected type mismatch to be incompatible")
	}
	if CheckCompatibility(Null(), Uint32(1)) {
		t.Error("null sample must never be compatible")
	}

	v1 := VectorFloat64([]float64{1, 2, 3})
	v2 := VectorFloat64([]float64{4, 5, 6})
	v3 := VectorFloat64([]float64{1, 2})
	if !CheckCompatibility(v1, v2) {
		t.Error("expected same-length vectors to be compatible")
	}
	if CheckCompatibility(v1, v3) {
		t.Error("expected different-length vectors to be incompatible")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	buf := []uint8{1, 2, 3}
	v := VectorUint8(buf)
	clone := v.Clone()
	buf[0] = 99
	if clone.VectorUint8()[0] == 99 {
		t.Fatal("clone shared backing array with original")
	}
}
