// Package wire implements the framed-record codec: Variant values and the
// six application messages, encoded as tagged-field records over
// google.golang.org/protobuf/encoding/protowire's low-level
// tag/varint/fixed primitives. There is no .proto schema and no generated
// code; protowire alone gives the known-tag, known-fields, callback-decode
// shape the protocol needs, with none of the build-time codegen step.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cogentembedded/tweak-go/variant"
)

// Field numbers within an encoded Variant record.
const (
	fieldVariantKind  protowire.Number = 1
	fieldVariantBool  protowire.Number = 2
	fieldVariantInt   protowire.Number = 3 // zigzag varint, signed scalars
	fieldVariantUint  protowire.Number = 4 // varint, unsigned scalars
	fieldVariantF32   protowire.Number = 5 // fixed32
	fieldVariantF64   protowire.Number = 6 // fixed64
	fieldVariantBytes protowire.Number = 7 // string, or packed vector elements
)

// EncodeVariant appends the wire representation of v to dst and returns the
// extended slice.
func EncodeVariant(dst []byte, v variant.Value) []byte {
	dst = protowire.AppendTag(dst, fieldVariantKind, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(v.Kind()))

	switch v.Kind() {
	case variant.KindNull:
		// no payload field.
	case variant.KindBool:
		dst = protowire.AppendTag(dst, fieldVariantBool, protowire.VarintType)
		b := uint64(0)
		if v.Bool() {
			b = 1
		}
		dst = protowire.AppendVarint(dst, b)
	case variant.KindSint8, variant.KindSint16, variant.KindSint32, variant.KindSint64:
		dst = protowire.AppendTag(dst, fieldVariantInt, protowire.VarintType)
		dst = protowire.AppendVarint(dst, protowire.EncodeZigZag(v.Int()))
	case variant.KindUint8, variant.KindUint16, variant.KindUint32, variant.KindUint64:
		dst = protowire.AppendTag(dst, fieldVariantUint, protowire.VarintType)
		dst = protowire.AppendVarint(dst, v.Uint())
	case variant.KindFloat32:
		dst = protowire.AppendTag(dst, fieldVariantF32, protowire.Fixed32Type)
		dst = protowire.AppendFixed32(dst, floatBitsTo32(v.Float()))
	case variant.KindFloat64:
		dst = protowire.AppendTag(dst, fieldVariantF64, protowire.Fixed64Type)
		dst = protowire.AppendFixed64(dst, float64Bits(v.Float()))
	case variant.KindString:
		dst = protowire.AppendTag(dst, fieldVariantBytes, protowire.BytesType)
		dst = protowire.AppendBytes(dst, []byte(v.Str()))
	default:
		if v.Kind().IsVector() {
			dst = protowire.AppendTag(dst, fieldVariantBytes, protowire.BytesType)
			dst = protowire.AppendBytes(dst, encodeVectorElements(v))
		}
	}
	return dst
}

// DecodeVariant consumes one Variant record from the front of src and
// returns the decoded value along with the unconsumed remainder.
func DecodeVariant(src []byte) (variant.Value, []byte, error) {
	num, typ, n := protowire.ConsumeTag(src)
	if n < 0 || num != fieldVariantKind || typ != protowire.VarintType {
		return variant.Value{}, nil, fmt.Errorf("wire: expected variant kind field, got tag error %d", n)
	}
	src = src[n:]
	kindVal, n := protowire.ConsumeVarint(src)
	if n < 0 {
		return variant.Value{}, nil, fmt.Errorf("wire: malformed variant kind varint")
	}
	src = src[n:]
	kind := variant.Kind(kindVal)

	if kind == variant.KindNull {
		return variant.Null(), src, nil
	}

	num, typ, n = protowire.ConsumeTag(src)
	if n < 0 {
		return variant.Value{}, nil, fmt.Errorf("wire: missing variant payload field")
	}
	src = src[n:]

	switch {
	case kind == variant.KindBool && num == fieldVariantBool && typ == protowire.VarintType:
		b, n := protowire.ConsumeVarint(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed bool varint")
		}
		return variant.Bool(b != 0), src[n:], nil

	case isSignedKind(kind) && num == fieldVariantInt && typ == protowire.VarintType:
		zz, n := protowire.ConsumeVarint(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed int varint")
		}
		return signedFromInt64(kind, protowire.DecodeZigZag(zz)), src[n:], nil

	case isUnsignedKind(kind) && num == fieldVariantUint && typ == protowire.VarintType:
		u, n := protowire.ConsumeVarint(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed uint varint")
		}
		return unsignedFromUint64(kind, u), src[n:], nil

	case kind == variant.KindFloat32 && num == fieldVariantF32 && typ == protowire.Fixed32Type:
		bits, n := protowire.ConsumeFixed32(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed float32 fixed32")
		}
		return variant.Float32(float32FromBits(bits)), src[n:], nil

	case kind == variant.KindFloat64 && num == fieldVariantF64 && typ == protowire.Fixed64Type:
		bits, n := protowire.ConsumeFixed64(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed float64 fixed64")
		}
		return variant.Float64(float64FromBits(bits)), src[n:], nil

	case kind == variant.KindString && num == fieldVariantBytes && typ == protowire.BytesType:
		b, n := protowire.ConsumeBytes(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed string bytes")
		}
		return variant.String(string(b)), src[n:], nil

	case kind.IsVector() && num == fieldVariantBytes && typ == protowire.BytesType:
		b, n := protowire.ConsumeBytes(src)
		if n < 0 {
			return variant.Value{}, nil, fmt.Errorf("wire: malformed vector bytes")
		}
		v, err := decodeVectorElements(kind, b)
		return v, src[n:], err

	default:
		return variant.Value{}, nil, fmt.Errorf("wire: kind %s does not match payload field %d/%d", kind, num, typ)
	}
}

func isSignedKind(k variant.Kind) bool {
	switch k {
	case variant.KindSint8, variant.KindSint16, variant.KindSint32, variant.KindSint64:
		return true
	}
	return false
}

func isUnsignedKind(k variant.Kind) bool {
	switch k {
	case variant.KindUint8, variant.KindUint16, variant.KindUint32, variant.KindUint64:
		return true
	}
	return false
}

func signedFromInt64(k variant.Kind, v int64) variant.Value {
	switch k {
	case variant.KindSint8:
		return variant.Sint8(int8(v))
	case variant.KindSint16:
		return variant.Sint16(int16(v))
	case variant.KindSint32:
		return variant.Sint32(int32(v))
	default:
		return variant.Sint64(v)
	}
}

func unsignedFromUint64(k variant.Kind, v uint64) variant.Value {
	switch k {
	case variant.KindUint8:
		return variant.Uint8(uint8(v))
	case variant.KindUint16:
		return variant.Uint16(uint16(v))
	case variant.KindUint32:
		return variant.Uint32(uint32(v))
	default:
		return variant.Uint64(v)
	}
}
