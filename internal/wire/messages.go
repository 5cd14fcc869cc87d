package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cogentembedded/tweak-go/variant"
)

// MsgType tags the first byte of every frame, selecting which of the five
// message shapes follows. The protocol has six messages, but ChangeItem and
// AnnounceFeatures share one wire shape and one tag in both directions.
type MsgType byte

const (
	MsgSubscribe MsgType = iota + 1
	MsgChangeItem
	MsgAnnounceFeatures
	MsgAddItem
	MsgRemoveItem
)

const (
	tagID          protowire.Number = 1
	tagURIPatterns protowire.Number = 1
	tagFeaturesJS  protowire.Number = 1
	tagValue       protowire.Number = 2
	tagURI         protowire.Number = 2
	tagDescription protowire.Number = 3
	tagMeta        protowire.Number = 4
	tagDefault     protowire.Number = 5
	tagCurrent     protowire.Number = 6
)

type Subscribe struct {
	URIPatterns string
}

type ChangeItem struct {
	ID    uint64
	Value variant.Value
}

type AnnounceFeatures struct {
	FeaturesJSON string
}

type AddItem struct {
	ID          uint64
	URI         string
	Description string
	Meta        string
	Default     variant.Value
	Current     variant.Value
}

type RemoveItem struct {
	ID uint64
}

func appendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, v)
}

func appendBytesField(dst []byte, num protowire.Number, v []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, v)
}

func appendVariantField(dst []byte, num protowire.Number, v variant.Value) []byte {
	return appendBytesField(dst, num, EncodeVariant(nil, v))
}

func consumeVarintField(src []byte, want protowire.Number) (uint64, []byte, error) {
	num, typ, n := protowire.ConsumeTag(src)
	if n < 0 || num != want || typ != protowire.VarintType {
		return 0, nil, fmt.Errorf("wire: expected varint field %d", want)
	}
	src = src[n:]
	v, n := protowire.ConsumeVarint(src)
	if n < 0 {
		return 0, nil, fmt.Errorf("wire: malformed varint field %d", want)
	}
	return v, src[n:], nil
}

func consumeBytesField(src []byte, want protowire.Number) ([]byte, []byte, error) {
	num, typ, n := protowire.ConsumeTag(src)
	if n < 0 || num != want || typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("wire: expected bytes field %d", want)
	}
	src = src[n:]
	v, n := protowire.ConsumeBytes(src)
	if n < 0 {
		return nil, nil, fmt.Errorf("wire: malformed bytes field %d", want)
	}
	return v, src[n:], nil
}

func consumeVariantField(src []byte, want protowire.Number) (variant.Value, []byte, error) {
	raw, rest, err := consumeBytesField(src, want)
	if err != nil {
		return variant.Value{}, nil, err
	}
	v, leftover, err := DecodeVariant(raw)
	if err != nil {
		return variant.Value{}, nil, err
	}
	if len(leftover) != 0 {
		return variant.Value{}, nil, fmt.Errorf("wire: trailing bytes after variant field %d", want)
	}
	return v, rest, nil
}

// EncodeFrame serializes msg, prefixed by its MsgType byte, ready to hand to
// a transport's transmit call.
func EncodeFrame(msg any) ([]byte, error) {
	var tag MsgType
	var body []byte

	switch m := msg.(type) {
	case Subscribe:
		tag = MsgSubscribe
		body = appendBytesField(nil, tagURIPatterns, []byte(m.URIPatterns))
	case ChangeItem:
		tag = MsgChangeItem
		body = appendVarintField(nil, tagID, m.ID)
		body = appendVariantField(body, tagValue, m.Value)
	case AnnounceFeatures:
		tag = MsgAnnounceFeatures
		body = appendBytesField(nil, tagFeaturesJS, []byte(m.FeaturesJSON))
	case AddItem:
		tag = MsgAddItem
		body = appendVarintField(nil, tagID, m.ID)
		body = appendBytesField(body, tagURI, []byte(m.URI))
		body = appendBytesField(body, tagDescription, []byte(m.Description))
		body = appendBytesField(body, tagMeta, []byte(m.Meta))
		body = appendVariantField(body, tagDefault, m.Default)
		body = appendVariantField(body, tagCurrent, m.Current)
	case RemoveItem:
		tag = MsgRemoveItem
		body = appendVarintField(nil, tagID, m.ID)
	default:
		return nil, fmt.Errorf("wire: unknown message type %T", msg)
	}

	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, byte(tag))
	frame = append(frame, body...)
	return frame, nil
}

// DecodeFrame parses a frame produced by EncodeFrame, returning one of
// Subscribe, ChangeItem, AnnounceFeatures, AddItem or RemoveItem.
func DecodeFrame(frame []byte) (any, error) {
	if len(frame) < 1 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	tag, body := MsgType(frame[0]), frame[1:]

	switch tag {
	case MsgSubscribe:
		patterns, _, err := consumeBytesField(body, tagURIPatterns)
		if err != nil {
			return nil, err
		}
		return Subscribe{URIPatterns: string(patterns)}, nil

	case MsgChangeItem:
		id, rest, err := consumeVarintField(body, tagID)
		if err != nil {
			return nil, err
		}
		v, _, err := consumeVariantField(rest, tagValue)
		if err != nil {
			return nil, err
		}
		return ChangeItem{ID: id, Value: v}, nil

	case MsgAnnounceFeatures:
		js, _, err := consumeBytesField(body, tagFeaturesJS)
		if err != nil {
			return nil, err
		}
		return AnnounceFeatures{FeaturesJSON: string(js)}, nil

	case MsgAddItem:
		id, rest, err := consumeVarintField(body, tagID)
		if err != nil {
			return nil, err
		}
		uri, rest, err := consumeBytesField(rest, tagURI)
		if err != nil {
			return nil, err
		}
		desc, rest, err := consumeBytesField(rest, tagDescription)
		if err != nil {
			return nil, err
		}
		meta, rest, err := consumeBytesField(rest, tagMeta)
		if err != nil {
			return nil, err
		}
		def, rest, err := consumeVariantField(rest, tagDefault)
		if err != nil {
			return nil, err
		}
		cur, _, err := consumeVariantField(rest, tagCurrent)
		if err != nil {
			return nil, err
		}
		return AddItem{ID: id, URI: string(uri), Description: string(desc), Meta: string(meta), Default: def, Current: cur}, nil

	case MsgRemoveItem:
		id, _, err := consumeVarintField(body, tagID)
		if err != nil {
			return nil, err
		}
		return RemoveItem{ID: id}, nil

	default:
		return nil, fmt.Errorf("wire: unknown frame tag %d", tag)
	}
}
