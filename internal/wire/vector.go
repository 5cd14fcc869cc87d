package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentembedded/tweak-go/variant"
)

func floatBitsTo32(f float64) uint32   { return math.Float32bits(float32(f)) }
func float64Bits(f float64) uint64     { return math.Float64bits(f) }
func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }

// encodeVectorElements packs a vector Value's elements as fixed-width
// little-endian primitives, independent
// of the enclosing protowire bytes field framing.
func encodeVectorElements(v variant.Value) []byte {
	switch v.Kind() {
	case variant.KindVectorSint8:
		return packInt8(v.VectorSint8())
	case variant.KindVectorSint16:
		return packLE(v.VectorSint16(), 2, func(b []byte, x int16) { binary.LittleEndian.PutUint16(b, uint16(x)) })
	case variant.KindVectorSint32:
		return packLE(v.VectorSint32(), 4, func(b []byte, x int32) { binary.LittleEndian.PutUint32(b, uint32(x)) })
	case variant.KindVectorSint64:
		return packLE(v.VectorSint64(), 8, func(b []byte, x int64) { binary.LittleEndian.PutUint64(b, uint64(x)) })
	case variant.KindVectorUint8:
		return v.VectorUint8()
	case variant.KindVectorUint16:
		return packLE(v.VectorUint16(), 2, func(b []byte, x uint16) { binary.LittleEndian.PutUint16(b, x) })
	case variant.KindVectorUint32:
		return packLE(v.VectorUint32(), 4, func(b []byte, x uint32) { binary.LittleEndian.PutUint32(b, x) })
	case variant.KindVectorUint64:
		return packLE(v.VectorUint64(), 8, func(b []byte, x uint64) { binary.LittleEndian.PutUint64(b, x) })
	case variant.KindVectorFloat32:
		return packLE(v.VectorFloat32(), 4, func(b []byte, x float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(x)) })
	case variant.KindVectorFloat64:
		return packLE(v.VectorFloat64(), 8, func(b []byte, x float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(x)) })
	default:
		return nil
	}
}

func packInt8(in []int8) []byte {
	out := make([]byte, len(in))
	for i, x := range in {
		out[i] = byte(x)
	}
	return out
}

func packLE[T any](in []T, width int, put func([]byte, T)) []byte {
	out := make([]byte, len(in)*width)
	for i, x := range in {
		put(out[i*width:], x)
	}
	return out
}

func decodeVectorElements(kind variant.Kind, b []byte) (variant.Value, error) {
	switch kind {
	case variant.KindVectorSint8:
		out := make([]int8, len(b))
		for i, x := range b {
			out[i] = int8(x)
		}
		return variant.VectorSint8(out), nil
	case variant.KindVectorUint8:
		out := make([]uint8, len(b))
		copy(out, b)
		return variant.VectorUint8(out), nil
	case variant.KindVectorSint16:
		xs, err := unpackLE(b, 2, func(e []byte) int16 { return int16(binary.LittleEndian.Uint16(e)) })
		return variant.VectorSint16(xs), err
	case variant.KindVectorUint16:
		xs, err := unpackLE(b, 2, func(e []byte) uint16 { return binary.LittleEndian.Uint16(e) })
		return variant.VectorUint16(xs), err
	case variant.KindVectorSint32:
		xs, err := unpackLE(b, 4, func(e []byte) int32 { return int32(binary.LittleEndian.Uint32(e)) })
		return variant.VectorSint32(xs), err
	case variant.KindVectorUint32:
		xs, err := unpackLE(b, 4, func(e []byte) uint32 { return binary.LittleEndian.Uint32(e) })
		return variant.VectorUint32(xs), err
	case variant.KindVectorSint64:
		xs, err := unpackLE(b, 8, func(e []byte) int64 { return int64(binary.LittleEndian.Uint64(e)) })
		return variant.VectorSint64(xs), err
	case variant.KindVectorUint64:
		xs, err := unpackLE(b, 8, func(e []byte) uint64 { return binary.LittleEndian.Uint64(e) })
		return variant.VectorUint64(xs), err
	case variant.KindVectorFloat32:
		xs, err := unpackLE(b, 4, func(e []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(e)) })
		return variant.VectorFloat32(xs), err
	case variant.KindVectorFloat64:
		xs, err := unpackLE(b, 8, func(e []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(e)) })
		return variant.VectorFloat64(xs), err
	default:
		return variant.Value{}, fmt.Errorf("wire: %s is not a vector kind", kind)
	}
}

func unpackLE[T any](b []byte, width int, get func([]byte) T) ([]T, error) {
	if len(b)%width != 0 {
		return nil, fmt.Errorf("wire: vector payload length %d not a multiple of element width %d", len(b), width)
	}
	n := len(b) / width
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = get(b[i*width:])
	}
	return out, nil
}
