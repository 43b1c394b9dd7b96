// Package value implements corvus's L0 tagged-union Value type and the
// ordered Document built on top of it.
package value

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindInt128
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUint128
	KindFloat32
	KindFloat64
	KindBool
	KindChar
	KindString
	KindBytes
	KindArray
	KindDocument
	KindMap
	KindID
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindInt128:
		return "Int128"
	case KindUint8:
		return "Uint8"
	case KindUint16:
		return "Uint16"
	case KindUint32:
		return "Uint32"
	case KindUint64:
		return "Uint64"
	case KindUint128:
		return "Uint128"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindBool:
		return "Bool"
	case KindChar:
		return "Char"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindArray:
		return "Array"
	case KindDocument:
		return "Document"
	case KindMap:
		return "Map"
	case KindID:
		return "NitriteId"
	default:
		return "Unknown"
	}
}

// Value is corvus's tagged union over every wire/document primitive. The
// zero Value is Null.
type Value struct {
	kind  Kind
	i     int64    // Int8/16/32/64, Bool(0/1), Char(rune)
	u     uint64   // Uint8/16/32/64, ID
	big   *big.Int // Int128/Uint128
	f     float64  // Float32/Float64
	s     string   // String
	bytes []byte   // Bytes
	arr   []Value  // Array
	doc   *Document
	m     *OrderedValueMap
}

// Null is the singleton null Value.
var Null = Value{kind: KindNull}

func Int64(v int64) Value   { return Value{kind: KindInt64, i: v} }
func Int32(v int32) Value   { return Value{kind: KindInt32, i: int64(v)} }
func Int16(v int16) Value   { return Value{kind: KindInt16, i: int64(v)} }
func Int8(v int8) Value     { return Value{kind: KindInt8, i: int64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, u: v} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, u: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, u: uint64(v)} }
func Uint8(v uint8) Value   { return Value{kind: KindUint8, u: uint64(v)} }
func Int128(v *big.Int) Value  { return Value{kind: KindInt128, big: v} }
func Uint128(v *big.Int) Value { return Value{kind: KindUint128, big: v} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool, i: 0}
}
func Char(r rune) Value    { return Value{kind: KindChar, i: int64(r)} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: append([]byte(nil), b...)} }
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }
func FromDocument(d *Document) Value { return Value{kind: KindDocument, doc: d} }
func FromMap(m *OrderedValueMap) Value { return Value{kind: KindMap, m: m} }
func ID(id uint64) Value { return Value{kind: KindID, u: id} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) AsString() (string, bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}
func (v Value) AsBool() (bool, bool) {
	if v.kind == KindBool {
		return v.i != 0, true
	}
	return false, false
}
func (v Value) AsID() (uint64, bool) {
	if v.kind == KindID {
		return v.u, true
	}
	return 0, false
}
func (v Value) AsArray() ([]Value, bool) {
	if v.kind == KindArray {
		return v.arr, true
	}
	return nil, false
}
func (v Value) AsDocument() (*Document, bool) {
	if v.kind == KindDocument {
		return v.doc, true
	}
	return nil, false
}
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind == KindBytes {
		return v.bytes, true
	}
	return nil, false
}
func (v Value) AsMap() (*OrderedValueMap, bool) {
	if v.kind == KindMap {
		return v.m, true
	}
	return nil, false
}

// AsFloat64 widens any numeric kind to float64, used by callers that only
// need an approximate ordering key (e.g. spatial bounding-box math).
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindChar:
		return float64(v.i), true
	case KindUint8, KindUint16, KindUint32, KindUint64, KindID:
		return float64(v.u), true
	case KindInt128, KindUint128:
		f := new(big.Float).SetInt(v.big)
		out, _ := f.Float64()
		return out, true
	case KindFloat32, KindFloat64:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) isIntFamily() bool {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt128,
		KindUint8, KindUint16, KindUint32, KindUint64, KindUint128, KindID, KindChar:
		return true
	}
	return false
}

func (v Value) isNumericFamily() bool {
	return v.isIntFamily() || v.kind == KindFloat32 || v.kind == KindFloat64
}

func (v Value) toBig() *big.Int {
	switch v.kind {
	case KindInt128, KindUint128:
		return v.big
	case KindUint8, KindUint16, KindUint32, KindUint64, KindID:
		return new(big.Int).SetUint64(v.u)
	default:
		return big.NewInt(v.i)
	}
}

// Compare implements the cross-kind ordering contract: returns (cmp, true)
// when the two values belong to comparable families, (0, false) otherwise
// (callers inside an index must turn that into IndexingError). Null sorts
// below everything else including itself being equal to null.
func (v Value) Compare(other Value) (int, bool) {
	if v.kind == KindNull && other.kind == KindNull {
		return 0, true
	}
	if v.kind == KindNull {
		return -1, true
	}
	if other.kind == KindNull {
		return 1, true
	}

	switch {
	case v.kind == KindBool && other.kind == KindBool:
		a, _ := v.AsBool()
		b, _ := other.AsBool()
		switch {
		case a == b:
			return 0, true
		case !a && b:
			return -1, true
		default:
			return 1, true
		}
	case v.kind == KindString && other.kind == KindString:
		return strings.Compare(v.s, other.s), true
	case v.kind == KindBytes && other.kind == KindBytes:
		return compareBytes(v.bytes, other.bytes), true
	case v.kind == KindID && other.kind == KindID:
		return compareUint64(v.u, other.u), true
	case v.isNumericFamily() && other.isNumericFamily():
		return compareNumeric(v, other), true
	default:
		return 0, false
	}
}

// Equal reports whether two values compare equal; incomparable kinds are
// never equal.
func (v Value) Equal(other Value) bool {
	cmp, ok := v.Compare(other)
	return ok && cmp == 0
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareNumeric widens both sides for a cross-kind comparison. Two exact
// integers (including Int128/Uint128) compare via big.Int; anything
// involving a float widens through big.Float, which subsumes the spec's
// "widened to i128 when both sides fit" rule for the float-free case while
// still giving a total order when a float is involved.
func compareNumeric(a, b Value) int {
	if a.isIntFamily() && b.isIntFamily() {
		return a.toBig().Cmp(b.toBig())
	}
	af := new(big.Float)
	bf := new(big.Float)
	if a.isIntFamily() {
		af.SetInt(a.toBig())
	} else {
		af.SetFloat64(a.f)
	}
	if b.isIntFamily() {
		bf.SetInt(b.toBig())
	} else {
		bf.SetFloat64(b.f)
	}
	return af.Cmp(bf)
}

// String renders a canonical, stable textual form used by the planner to
// build plan-cache keys and by error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case KindString:
		return strconv.Quote(v.s)
	case KindChar:
		return strconv.QuoteRune(rune(v.i))
	case KindBytes:
		return fmt.Sprintf("bytes(%x)", v.bytes)
	case KindID:
		return fmt.Sprintf("id(%d)", v.u)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return strconv.FormatUint(v.u, 10)
	case KindInt128, KindUint128:
		return v.big.String()
	case KindFloat32, KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindDocument:
		return v.doc.String()
	case KindMap:
		return v.m.String()
	default:
		return "?"
	}
}

// SortValues sorts a slice of Values ascending using Compare, treating
// incomparable pairs as equal (stable, never panics).
func SortValues(vs []Value, desc bool) {
	sort.SliceStable(vs, func(i, j int) bool {
		cmp, ok := vs[i].Compare(vs[j])
		if !ok {
			return false
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
