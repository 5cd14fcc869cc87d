package variant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MajorOrder is the tensor element ordering of a vector's logical shape.
type MajorOrder string

const (
	RowMajor    MajorOrder = "row-major"
	ColumnMajor MajorOrder = "column-major"
)

// Layout describes the tensor shape of a vector-typed item. The product of
// Dimensions must equal the backing vector's element count; this is
// enforced lazily, the first time the metadata is consulted.
type Layout struct {
	Order      MajorOrder
	Dimensions []int
}

// Product returns the product of all dimension extents.
func (l Layout) Product() int {
	if len(l.Dimensions) == 0 {
		return 0
	}
	p := 1
	for _, d := range l.Dimensions {
		p *= d
	}
	return p
}

// ControlKind selects the GUI widget a metadata-bearing item should use.
type ControlKind string

const (
	ControlCheckbox ControlKind = "checkbox"
	ControlSpinbox  ControlKind = "spinbox"
	ControlSlider   ControlKind = "slider"
	ControlCombobox ControlKind = "combobox"
	ControlButton   ControlKind = "button"
)

// Control carries the GUI/control-plane hints of an item's metadata.
type Control struct {
	Kind     ControlKind
	Min      *Value
	Max      *Value
	Step     *Value
	Decimals int
	Readonly bool
	Options  []string
	Caption  string
}

// Metadata is the parsed, cached form of an item's meta JSON. It is
// produced lazily from the source JSON string on first access and then
// cached on the owning Item.
type Metadata struct {
	Layout  *Layout
	Control Control
}

type rawMetadata struct {
	Control  string          `json:"control"`
	Min      json.RawMessage `json:"min"`
	Max      json.RawMessage `json:"max"`
	Step     json.RawMessage `json:"step"`
	Decimals *int            `json:"decimals"`
	Readonly bool            `json:"readonly"`
	Options  []string        `json:"options"`
	Caption  string           `json:"caption"`
	Layout   *rawLayout       `json:"layout"`
}

type rawLayout struct {
	Order      string `json:"order"`
	Dimensions []int  `json:"dimensions"`
}

// Parse decodes a metadata JSON source string into a Metadata value. An
// empty source is valid and parses to a zero Metadata (no control hints, no
// layout). kind is the owning item's Kind, used to interpret min/max/step
// literals by numeric family: signed and unsigned integers parse to Sint64
// and Uint64, floats to Float64, whatever the item's exact width.
func Parse(source string, kind Kind) (Metadata, error) {
	var meta Metadata
	if strings.TrimSpace(source) == "" {
		return meta, nil
	}

	var raw rawMetadata
	if err := json.Unmarshal([]byte(source), &raw); err != nil {
		return Metadata{}, fmt.Errorf("variant: parse metadata: %w", err)
	}

	if raw.Control != "" {
		meta.Control.Kind = ControlKind(raw.Control)
	}
	if len(raw.Options) > 0 {
		meta.Control.Options = raw.Options
		if meta.Control.Kind == "" {
			meta.Control.Kind = ControlCombobox
		}
	}
	meta.Control.Caption = raw.Caption
	meta.Control.Readonly = raw.Readonly
	if raw.Decimals != nil {
		meta.Control.Decimals = *raw.Decimals
	}

	elemKind := elementKind(kind)
	if len(raw.Min) > 0 {
		v, err := parseScalarJSON(raw.Min, elemKind)
		if err != nil {
			return Metadata{}, fmt.Errorf("variant: parse metadata.min: %w", err)
		}
		meta.Control.Min = &v
	}
	if len(raw.Max) > 0 {
		v, err := parseScalarJSON(raw.Max, elemKind)
		if err != nil {
			return Metadata{}, fmt.Errorf("variant: parse metadata.max: %w", err)
		}
		meta.Control.Max = &v
	}
	if len(raw.Step) > 0 {
		v, err := parseScalarJSON(raw.Step, elemKind)
		if err != nil {
			return Metadata{}, fmt.Errorf("variant: parse metadata.step: %w", err)
		}
		meta.Control.Step = &v
	}

	if raw.Layout != nil {
		order := MajorOrder(raw.Layout.Order)
		if order != RowMajor && order != ColumnMajor {
			order = RowMajor
		}
		meta.Layout = &Layout{Order: order, Dimensions: raw.Layout.Dimensions}
	}

	return meta, nil
}

// elementKind maps a vector Kind to the scalar Kind of its elements, and is
// the identity for already-scalar kinds. Used to interpret min/max/step.
func elementKind(k Kind) Kind {
	switch k {
	case KindVectorSint8:
		return KindSint8
	case KindVectorSint16:
		return KindSint16
	case KindVectorSint32:
		return KindSint32
	case KindVectorSint64:
		return KindSint64
	case KindVectorUint8:
		return KindUint8
	case KindVectorUint16:
		return KindUint16
	case KindVectorUint32:
		return KindUint32
	case KindVectorUint64:
		return KindUint64
	case KindVectorFloat32:
		return KindFloat32
	case KindVectorFloat64:
		return KindFloat64
	default:
		return k
	}
}

func parseScalarJSON(raw json.RawMessage, kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case KindSint8, KindSint16, KindSint32, KindSint64:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return Sint64(i), nil
	case KindUint8, KindUint16, KindUint32, KindUint64:
		var u uint64
		if err := json.Unmarshal(raw, &u); err != nil {
			return Value{}, err
		}
		return Uint64(u), nil
	case KindFloat32, KindFloat64:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		return Float64(f), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	}
}

// ValidateLayout enforces the hard layout invariant: the layout's
// product of extents must equal the vector's element count. Called when
// the metadata is consulted (lazily), not at parse time, since a Layout can
// be parsed before the owning item's current value is known.
func ValidateLayout(l Layout, v Value) error {
	if !v.Kind().IsVector() {
		return fmt.Errorf("variant: layout given for non-vector value %s", v.Kind())
	}
	if want, got := l.Product(), v.Len(); want != got {
		return fmt.Errorf("variant: layout product %d does not match vector length %d", want, got)
	}
	return nil
}

// FormatTensor renders a vector value as a nested bracketed string
// according to a Layout, e.g. a row-major 2x3 uint8 vector [1,2,3,4,5,6]
// becomes "[[1,2,3],[4,5,6]]". Values are rendered in
// flat storage order regardless of Order; Order only changes how the flat
// buffer is grouped into nested brackets.
func FormatTensor(v Value, l Layout) (string, error) {
	if err := ValidateLayout(l, v); err != nil {
		return "", err
	}
	elems := formatElements(v)
	dims := l.Dimensions
	if l.Order == ColumnMajor {
		dims = reverseDims(l.Dimensions)
	}
	s, _ := nestFormat(elems, dims)
	return s, nil
}

func formatElements(v Value) []string {
	switch v.Kind() {
	case KindVectorSint8:
		return mapFormat(v.VectorSint8(), func(x int8) string { return strconv.FormatInt(int64(x), 10) })
	case KindVectorSint16:
		return mapFormat(v.VectorSint16(), func(x int16) string { return strconv.FormatInt(int64(x), 10) })
	case KindVectorSint32:
		return mapFormat(v.VectorSint32(), func(x int32) string { return strconv.FormatInt(int64(x), 10) })
	case KindVectorSint64:
		return mapFormat(v.VectorSint64(), func(x int64) string { return strconv.FormatInt(x, 10) })
	case KindVectorUint8:
		return mapFormat(v.VectorUint8(), func(x uint8) string { return strconv.FormatUint(uint64(x), 10) })
	case KindVectorUint16:
		return mapFormat(v.VectorUint16(), func(x uint16) string { return strconv.FormatUint(uint64(x), 10) })
	case KindVectorUint32:
		return mapFormat(v.VectorUint32(), func(x uint32) string { return strconv.FormatUint(uint64(x), 10) })
	case KindVectorUint64:
		return mapFormat(v.VectorUint64(), func(x uint64) string { return strconv.FormatUint(x, 10) })
	case KindVectorFloat32:
		return mapFormat(v.VectorFloat32(), func(x float32) string { return strconv.FormatFloat(float64(x), 'g', -1, 32) })
	case KindVectorFloat64:
		return mapFormat(v.VectorFloat64(), func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) })
	default:
		return nil
	}
}

func mapFormat[T any](in []T, f func(T) string) []string {
	out := make([]string, len(in))
	for i, x := range in {
		out[i] = f(x)
	}
	return out
}

func reverseDims(d []int) []int {
	out := make([]int, len(d))
	for i, v := range d {
		out[len(d)-1-i] = v
	}
	return out
}

// nestFormat consumes elems left to right, grouping into nested brackets
// per dims (outermost dimension first), and returns the unconsumed tail.
func nestFormat(elems []string, dims []int) (string, []string) {
	if len(dims) == 0 {
		if len(elems) == 0 {
			return "", elems
		}
		return elems[0], elems[1:]
	}
	if len(dims) == 1 {
		n := dims[0]
		if n > len(elems) {
			n = len(elems)
		}
		return "[" + strings.Join(elems[:n], ",") + "]", elems[n:]
	}
	var parts []string
	rest := elems
	for i := 0; i < dims[0]; i++ {
		var s string
		s, rest = nestFormat(rest, dims[1:])
		parts = append(parts, s)
	}
	return "[" + strings.Join(parts, ",") + "]", rest
}

// ParseTensor is the inverse of FormatTensor: it reads a nested bracketed
// string and produces a new vector Value of the given kind holding the
// flattened elements in the order they appear (the raw buffer after a
// string-API write is the flattened nested order).
// Truncation of float precision to the Decimals control hint, if any, is
// the caller's responsibility (the control hint lives on Metadata.Control,
// not Layout).
func ParseTensor(s string, kind Kind) (Value, error) {
	if !kind.IsVector() {
		return Value{}, fmt.Errorf("variant: ParseTensor needs a vector kind, got %s", kind)
	}
	tokens, err := flattenBrackets(s)
	if err != nil {
		return Value{}, err
	}
	return buildVector(tokens, kind)
}

// flattenBrackets extracts the scalar tokens from a nested "[...]" string in
// left-to-right appearance order, ignoring nesting depth.
func flattenBrackets(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			tokens = append(tokens, t)
		}
		cur.Reset()
	}
	for _, r := range s {
		switch r {
		case '[', ']':
			flush()
		case ',':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens, nil
}

func buildVector(tokens []string, kind Kind) (Value, error) {
	elemKind := elementKind(kind)
	switch kind {
	case KindVectorSint8:
		return parseIntVector(tokens, elemKind, func(xs []int8) Value { return VectorSint8(xs) })
	case KindVectorSint16:
		return parseIntVector(tokens, elemKind, func(xs []int16) Value { return VectorSint16(xs) })
	case KindVectorSint32:
		return parseIntVector(tokens, elemKind, func(xs []int32) Value { return VectorSint32(xs) })
	case KindVectorSint64:
		return parseIntVector(tokens, elemKind, func(xs []int64) Value { return VectorSint64(xs) })
	case KindVectorUint8:
		return parseUintVector(tokens, func(xs []uint8) Value { return VectorUint8(xs) })
	case KindVectorUint16:
		return parseUintVector(tokens, func(xs []uint16) Value { return VectorUint16(xs) })
	case KindVectorUint32:
		return parseUintVector(tokens, func(xs []uint32) Value { return VectorUint32(xs) })
	case KindVectorUint64:
		return parseUintVector(tokens, func(xs []uint64) Value { return VectorUint64(xs) })
	case KindVectorFloat32:
		return parseFloatVector(tokens, func(xs []float32) Value { return VectorFloat32(xs) })
	case KindVectorFloat64:
		return parseFloatVector(tokens, func(xs []float64) Value { return VectorFloat64(xs) })
	default:
		return Value{}, fmt.Errorf("variant: unsupported vector kind %s", kind)
	}
}

func parseIntVector[T int8 | int16 | int32 | int64](tokens []string, elemKind Kind, build func([]T) Value) (Value, error) {
	out := make([]T, len(tokens))
	for i, t := range tokens {
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("variant: parse tensor element %q: %w", t, err)
		}
		out[i] = T(n)
	}
	return build(out), nil
}

func parseUintVector[T uint8 | uint16 | uint32 | uint64](tokens []string, build func([]T) Value) (Value, error) {
	out := make([]T, len(tokens))
	for i, t := range tokens {
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("variant: parse tensor element %q: %w", t, err)
		}
		out[i] = T(n)
	}
	return build(out), nil
}

func parseFloatVector[T float32 | float64](tokens []string, build func([]T) Value) (Value, error) {
	out := make([]T, len(tokens))
	for i, t := range tokens {
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Value{}, fmt.Errorf("variant: parse tensor element %q: %w", t, err)
		}
		out[i] = T(n)
	}
	return build(out), nil
}
