package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// ToBytes serializes a Value into a self-describing byte encoding. Every
// Value kind round-trips through ToBytes/FromBytes. The wire tag matches
// Kind's numeric value.
func (v Value) ToBytes() []byte {
	buf := []byte{byte(v.kind)}
	switch v.kind {
	case KindNull:
		// tag only
	case KindBool:
		b, _ := v.AsBool()
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindChar:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v.u)
		buf = append(buf, tmp[:]...)
	case KindID:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v.u)
		buf = append(buf, tmp[:]...)
	case KindInt128, KindUint128:
		bs := v.big.Bytes()
		neg := v.big.Sign() < 0
		if neg {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendLenPrefixed(buf, bs)
	case KindFloat32, KindFloat64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.f))
		buf = append(buf, tmp[:]...)
	case KindString:
		buf = appendLenPrefixed(buf, []byte(v.s))
	case KindBytes:
		buf = appendLenPrefixed(buf, v.bytes)
	case KindArray:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.arr)))
		buf = append(buf, tmp[:]...)
		for _, e := range v.arr {
			buf = appendLenPrefixed(buf, e.ToBytes())
		}
	case KindDocument:
		fields := v.doc.Fields()
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(fields)))
		buf = append(buf, tmp[:]...)
		for _, f := range fields {
			fv, _ := v.doc.Get(f)
			buf = appendLenPrefixed(buf, []byte(f))
			buf = appendLenPrefixed(buf, fv.ToBytes())
		}
	case KindMap:
		entries := v.m.Entries()
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(entries)))
		buf = append(buf, tmp[:]...)
		for _, e := range entries {
			buf = appendLenPrefixed(buf, e.Key.ToBytes())
			buf = appendLenPrefixed(buf, e.Value.ToBytes())
		}
	}
	return buf
}

func appendLenPrefixed(buf, payload []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(payload)))
	buf = append(buf, tmp[:]...)
	return append(buf, payload...)
}

// FromBytes deserializes a Value previously produced by ToBytes.
func FromBytes(data []byte) (Value, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return Null, err
	}
	if len(rest) != 0 {
		return Null, fmt.Errorf("trailing bytes after value")
	}
	return v, nil
}

func decodeValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Null, nil, fmt.Errorf("empty value encoding")
	}
	kind := Kind(data[0])
	data = data[1:]

	switch kind {
	case KindNull:
		return Null, data, nil
	case KindBool:
		if len(data) < 1 {
			return Null, nil, fmt.Errorf("short bool encoding")
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindChar:
		u, rest, err := takeU64(data)
		if err != nil {
			return Null, nil, err
		}
		return Char(rune(int64(u))), rest, nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		u, rest, err := takeU64(data)
		if err != nil {
			return Null, nil, err
		}
		return Value{kind: kind, i: int64(u)}, rest, nil
	case KindUint8, KindUint16, KindUint32, KindUint64:
		u, rest, err := takeU64(data)
		if err != nil {
			return Null, nil, err
		}
		return Value{kind: kind, u: u}, rest, nil
	case KindID:
		u, rest, err := takeU64(data)
		if err != nil {
			return Null, nil, err
		}
		return ID(u), rest, nil
	case KindInt128, KindUint128:
		if len(data) < 1 {
			return Null, nil, fmt.Errorf("short int128 encoding")
		}
		neg := data[0] == 1
		data = data[1:]
		payload, rest, err := takeLenPrefixed(data)
		if err != nil {
			return Null, nil, err
		}
		bi := new(big.Int).SetBytes(payload)
		if neg {
			bi.Neg(bi)
		}
		return Value{kind: kind, big: bi}, rest, nil
	case KindFloat32, KindFloat64:
		u, rest, err := takeU64(data)
		if err != nil {
			return Null, nil, err
		}
		return Value{kind: kind, f: math.Float64frombits(u)}, rest, nil
	case KindString:
		payload, rest, err := takeLenPrefixed(data)
		if err != nil {
			return Null, nil, err
		}
		return String(string(payload)), rest, nil
	case KindBytes:
		payload, rest, err := takeLenPrefixed(data)
		if err != nil {
			return Null, nil, err
		}
		return Bytes(payload), rest, nil
	case KindArray:
		n, rest, err := takeU32(data)
		if err != nil {
			return Null, nil, err
		}
		out := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			elemBytes, r2, err := takeLenPrefixed(rest)
			if err != nil {
				return Null, nil, err
			}
			elem, err := FromBytes(elemBytes)
			if err != nil {
				return Null, nil, err
			}
			out = append(out, elem)
			rest = r2
		}
		return Array(out), rest, nil
	case KindDocument:
		n, rest, err := takeU32(data)
		if err != nil {
			return Null, nil, err
		}
		d := NewDocument()
		for i := uint32(0); i < n; i++ {
			nameBytes, r2, err := takeLenPrefixed(rest)
			if err != nil {
				return Null, nil, err
			}
			valBytes, r3, err := takeLenPrefixed(r2)
			if err != nil {
				return Null, nil, err
			}
			fv, err := FromBytes(valBytes)
			if err != nil {
				return Null, nil, err
			}
			d.Put(string(nameBytes), fv)
			rest = r3
		}
		return FromDocument(d), rest, nil
	case KindMap:
		n, rest, err := takeU32(data)
		if err != nil {
			return Null, nil, err
		}
		m := NewOrderedValueMap()
		for i := uint32(0); i < n; i++ {
			keyBytes, r2, err := takeLenPrefixed(rest)
			if err != nil {
				return Null, nil, err
			}
			valBytes, r3, err := takeLenPrefixed(r2)
			if err != nil {
				return Null, nil, err
			}
			kv, err := FromBytes(keyBytes)
			if err != nil {
				return Null, nil, err
			}
			vv, err := FromBytes(valBytes)
			if err != nil {
				return Null, nil, err
			}
			m.Put(kv, vv)
			rest = r3
		}
		return FromMap(m), rest, nil
	default:
		return Null, nil, fmt.Errorf("unknown value kind tag %d", kind)
	}
}

func takeU64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("short u64 encoding")
	}
	return binary.BigEndian.Uint64(data[:8]), data[8:], nil
}

func takeU32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("short u32 encoding")
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], nil
}

func takeLenPrefixed(data []byte) ([]byte, []byte, error) {
	n, rest, err := takeU32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, fmt.Errorf("short length-prefixed payload")
	}
	return rest[:n], rest[n:], nil
}
