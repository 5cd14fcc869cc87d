// Package variant implements the tagged value that flows between a Tweak
// server and its clients: scalars, a UTF-8 string, and flat vectors of each
// numeric scalar type. The tensor shape a vector represents is carried
// out-of-band in Metadata, never inside the Value itself.
package variant

import (
	"fmt"
	"math"
)

// Kind tags the type carried by a Value. internal/wire sends the numeric
// Kind value on the wire as-is, so kinds must not be renumbered without a
// protocol version bump.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindSint8
	KindSint16
	KindSint32
	KindSint64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindVectorSint8
	KindVectorSint16
	KindVectorSint32
	KindVectorSint64
	KindVectorUint8
	KindVectorUint16
	KindVectorUint32
	KindVectorUint64
	KindVectorFloat32
	KindVectorFloat64
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindSint8:
		return "sint8"
	case KindSint16:
		return "sint16"
	case KindSint32:
		return "sint32"
	case KindSint64:
		return "sint64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindVectorSint8:
		return "vector<sint8>"
	case KindVectorSint16:
		return "vector<sint16>"
	case KindVectorSint32:
		return "vector<sint32>"
	case KindVectorSint64:
		return "vector<sint64>"
	case KindVectorUint8:
		return "vector<uint8>"
	case KindVectorUint16:
		return "vector<uint16>"
	case KindVectorUint32:
		return "vector<uint32>"
	case KindVectorUint64:
		return "vector<uint64>"
	case KindVectorFloat32:
		return "vector<float32>"
	case KindVectorFloat64:
		return "vector<float64>"
	default:
		return "unknown"
	}
}

// IsVector reports whether k is one of the ten vector kinds.
func (k Kind) IsVector() bool {
	return k >= KindVectorSint8 && k <= KindVectorFloat64
}

// Value is a tagged union. Exactly one of the fields below is meaningful,
// selected by Kind; the rest are zero. The oneof-style flat struct keeps
// Value comparable with a plain field-by-field Equal instead of
// reflection.
type Value struct {
	kind Kind

	scalarBool  bool
	scalarInt   int64
	scalarUint  uint64
	scalarFloat float64
	str         string

	vecI8  []int8
	vecI16 []int16
	vecI32 []int32
	vecI64 []int64
	vecU8  []uint8
	vecU16 []uint16
	vecU32 []uint32
	vecU64 []uint64
	vecF32 []float32
	vecF64 []float64
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool constructs a boolean scalar.
func Bool(v bool) Value { return Value{kind: KindBool, scalarBool: v} }

// Sint8, Sint16, Sint32, Sint64 construct signed integer scalars.
func Sint8(v int8) Value   { return Value{kind: KindSint8, scalarInt: int64(v)} }
func Sint16(v int16) Value { return Value{kind: KindSint16, scalarInt: int64(v)} }
func Sint32(v int32) Value { return Value{kind: KindSint32, scalarInt: int64(v)} }
func Sint64(v int64) Value { return Value{kind: KindSint64, scalarInt: v} }

// Uint8, Uint16, Uint32, Uint64 construct unsigned integer scalars.
func Uint8(v uint8) Value   { return Value{kind: KindUint8, scalarUint: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, scalarUint: uint64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, scalarUint: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, scalarUint: v} }

// Float32, Float64 construct floating point scalars.
func Float32(v float32) Value { return Value{kind: KindFloat32, scalarFloat: float64(v)} }
func Float64(v float64) Value { return Value{kind: KindFloat64, scalarFloat: v} }

// String constructs a UTF-8 string scalar.
func String(v string) Value { return Value{kind: KindString, str: v} }

// VectorSint8 and friends construct flat numeric vectors. The slice is
// retained, not copied; callers that need isolation should Clone the Value.
func VectorSint8(v []int8) Value    { return Value{kind: KindVectorSint8, vecI8: v} }
func VectorSint16(v []int16) Value  { return Value{kind: KindVectorSint16, vecI16: v} }
func VectorSint32(v []int32) Value  { return Value{kind: KindVectorSint32, vecI32: v} }
func VectorSint64(v []int64) Value  { return Value{kind: KindVectorSint64, vecI64: v} }
func VectorUint8(v []uint8) Value   { return Value{kind: KindVectorUint8, vecU8: v} }
func VectorUint16(v []uint16) Value { return Value{kind: KindVectorUint16, vecU16: v} }
func VectorUint32(v []uint32) Value { return Value{kind: KindVectorUint32, vecU32: v} }
func VectorUint64(v []uint64) Value { return Value{kind: KindVectorUint64, vecU64: v} }
func VectorFloat32(v []float32) Value {
	return Value{kind: KindVectorFloat32, vecF32: v}
}
func VectorFloat64(v []float64) Value {
	return Value{kind: KindVectorFloat64, vecF64: v}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// Bool, Int, Uint, Float, Str return the value's scalar payload. Callers
// must check Kind first; these do not panic on mismatch, they just return
// the zero value, matching the "pure, total" style used by the index.
func (v Value) Bool() bool     { return v.scalarBool }
func (v Value) Int() int64     { return v.scalarInt }
func (v Value) Uint() uint64   { return v.scalarUint }
func (v Value) Float() float64 { return v.scalarFloat }
func (v Value) Str() string    { return v.str }

// VectorSint8 and friends return the backing slice for the matching kind.
func (v Value) VectorSint8() []int8      { return v.vecI8 }
func (v Value) VectorSint16() []int16    { return v.vecI16 }
func (v Value) VectorSint32() []int32    { return v.vecI32 }
func (v Value) VectorSint64() []int64    { return v.vecI64 }
func (v Value) VectorUint8() []uint8     { return v.vecU8 }
func (v Value) VectorUint16() []uint16   { return v.vecU16 }
func (v Value) VectorUint32() []uint32   { return v.vecU32 }
func (v Value) VectorUint64() []uint64   { return v.vecU64 }
func (v Value) VectorFloat32() []float32 { return v.vecF32 }
func (v Value) VectorFloat64() []float64 { return v.vecF64 }

// Len returns the element count for vector kinds, and -1 for anything else.
// Used by the model invariant "current_value element count == default_value
// element count" and by check_value_compatibility.
func (v Value) Len() int {
	switch v.kind {
	case KindVectorSint8:
		return len(v.vecI8)
	case KindVectorSint16:
		return len(v.vecI16)
	case KindVectorSint32:
		return len(v.vecI32)
	case KindVectorSint64:
		return len(v.vecI64)
	case KindVectorUint8:
		return len(v.vecU8)
	case KindVectorUint16:
		return len(v.vecU16)
	case KindVectorUint32:
		return len(v.vecU32)
	case KindVectorUint64:
		return len(v.vecU64)
	case KindVectorFloat32:
		return len(v.vecF32)
	case KindVectorFloat64:
		return len(v.vecF64)
	default:
		return -1
	}
}

// Clone deep-copies the value, giving the caller an independent owned
// value. Used for snapshots and for values copied out of the item model
// (callbacks, outbound messages).
func (v Value) Clone() Value {
	out := v
	switch v.kind {
	case KindString:
		// strings are immutable in Go; nothing to copy.
	case KindVectorSint8:
		out.vecI8 = append([]int8(nil), v.vecI8...)
	case KindVectorSint16:
		out.vecI16 = append([]int16(nil), v.vecI16...)
	case KindVectorSint32:
		out.vecI32 = append([]int32(nil), v.vecI32...)
	case KindVectorSint64:
		out.vecI64 = append([]int64(nil), v.vecI64...)
	case KindVectorUint8:
		out.vecU8 = append([]uint8(nil), v.vecU8...)
	case KindVectorUint16:
		out.vecU16 = append([]uint16(nil), v.vecU16...)
	case KindVectorUint32:
		out.vecU32 = append([]uint32(nil), v.vecU32...)
	case KindVectorUint64:
		out.vecU64 = append([]uint64(nil), v.vecU64...)
	case KindVectorFloat32:
		out.vecF32 = append([]float32(nil), v.vecF32...)
	case KindVectorFloat64:
		out.vecF64 = append([]float64(nil), v.vecF64...)
	}
	return out
}

// Equal reports deep equality, including NaN-aware float comparison (two
// NaNs compare equal here, since the use is change-detection, not IEEE
// arithmetic: "is the stored value still what it was" must be decidable).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.scalarBool == o.scalarBool
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return v.scalarInt == o.scalarInt
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return v.scalarUint == o.scalarUint
	case KindFloat32, KindFloat64:
		return floatEqual(v.scalarFloat, o.scalarFloat)
	case KindString:
		return v.str == o.str
	case KindVectorSint8:
		return sliceEqual(v.vecI8, o.vecI8)
	case KindVectorSint16:
		return sliceEqual(v.vecI16, o.vecI16)
	case KindVectorSint32:
		return sliceEqual(v.vecI32, o.vecI32)
	case KindVectorSint64:
		return sliceEqual(v.vecI64, o.vecI64)
	case KindVectorUint8:
		return sliceEqual(v.vecU8, o.vecU8)
	case KindVectorUint16:
		return sliceEqual(v.vecU16, o.vecU16)
	case KindVectorUint32:
		return sliceEqual(v.vecU32, o.vecU32)
	case KindVectorUint64:
		return sliceEqual(v.vecU64, o.vecU64)
	case KindVectorFloat32:
		return floatSliceEqual32(v.vecF32, o.vecF32)
	case KindVectorFloat64:
		return floatSliceEqual64(v.vecF64, o.vecF64)
	default:
		return false
	}
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func sliceEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatSliceEqual32(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatEqual(float64(a[i]), float64(b[i])) {
			return false
		}
	}
	return true
}

func floatSliceEqual64(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for debugging/logging only; it is not the
// GUI/CLI string-parse representation (see FormatTensor/ParseTensor for
// that, and tensor-shaped formatting governed by Metadata.Layout).
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.scalarBool)
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return fmt.Sprintf("%d", v.scalarInt)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return fmt.Sprintf("%d", v.scalarUint)
	case KindFloat32, KindFloat64:
		return fmt.Sprintf("%g", v.scalarFloat)
	case KindString:
		return v.str
	default:
		return fmt.Sprintf("%s[%d]", v.kind, v.Len())
	}
}

// CheckCompatibility is the compatibility check shared by both context
// roles: given the
// item's current sample value and an incoming candidate, report whether the
// candidate may replace it. Scalars and strings must share a Kind; vectors
// must additionally share element count (shape may differ; shape lives in
// Metadata, not here).
func CheckCompatibility(sample, incoming Value) bool {
	if sample.kind == KindNull {
		return false
	}
	if sample.kind != incoming.kind {
		return false
	}
	if sample.kind.IsVector() {
		return sample.Len() == incoming.Len()
	}
	return true
}
