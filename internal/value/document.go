package value

import (
	"strconv"
	"strings"
)

const IDField = "_id"

// idOrigin is the smallest value an auto-generated document id may take,
// chosen high enough (10^18) that it can never collide with a small
// integer-typed user key.
const idOrigin uint64 = 1_000_000_000_000_000_000

// ValidID reports whether id satisfies the NitriteId invariant.
func ValidID(id uint64) bool { return id >= idOrigin }

// entry is one (field name, Value) pair inside a Document, kept in
// insertion order.
type entry struct {
	key   string
	value Value
}

// Document is an ordered field→Value mapping that preserves insertion order
// on iteration and supports dotted-path access.
type Document struct {
	entries []entry
	index   map[string]int
}

// NewDocument creates an empty, ordered Document.
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Clone returns a deep-enough copy: top-level entries are copied, nested
// Documents are cloned recursively, everything else (Values are immutable
// value types except for slices/maps they wrap) is shared.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for _, e := range d.entries {
		out.Put(e.key, cloneValue(e.value))
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindDocument:
		return FromDocument(v.doc.Clone())
	case KindArray:
		cp := make([]Value, len(v.arr))
		for i, e := range v.arr {
			cp[i] = cloneValue(e)
		}
		return Array(cp)
	default:
		return v
	}
}

// Fields returns field names in insertion order.
func (d *Document) Fields() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.key
	}
	return out
}

// Len returns the number of top-level fields.
func (d *Document) Len() int { return len(d.entries) }

// Put sets a top-level field, preserving its original position if it
// already existed, else appending.
func (d *Document) Put(key string, v Value) {
	if idx, ok := d.index[key]; ok {
		d.entries[idx].value = v
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, entry{key: key, value: v})
}

// Get returns a top-level field, or (Null, false) if absent.
func (d *Document) Get(key string) (Value, bool) {
	if idx, ok := d.index[key]; ok {
		return d.entries[idx].value, true
	}
	return Null, false
}

// Delete removes a top-level field.
func (d *Document) Delete(key string) {
	idx, ok := d.index[key]
	if !ok {
		return
	}
	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	delete(d.index, key)
	for i := idx; i < len(d.entries); i++ {
		d.index[d.entries[i].key] = i
	}
}

// ID returns the reserved _id field as a NitriteId, if present and valid.
func (d *Document) ID() (uint64, bool) {
	v, ok := d.Get(IDField)
	if !ok {
		return 0, false
	}
	return v.AsID()
}

// SetID stamps the reserved _id field.
func (d *Document) SetID(id uint64) {
	d.Put(IDField, ID(id))
}

// splitPath turns a dotted path ("a.b.c") into its segments. An empty path
// yields no segments, which GetPath reports as absent and PutPath and
// RemovePath treat as a no-op.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath resolves a dotted path. Missing intermediate segments yield
// (Null, false) rather than an error.
func (d *Document) GetPath(path string) (Value, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return Null, false
	}
	cur, ok := d.Get(segs[0])
	if !ok {
		return Null, false
	}
	for _, seg := range segs[1:] {
		switch cur.kind {
		case KindDocument:
			cur, ok = cur.doc.Get(seg)
			if !ok {
				return Null, false
			}
		case KindMap:
			v, found := cur.m.GetByKey(String(seg))
			if !found {
				return Null, false
			}
			cur = v
		case KindArray:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.arr) {
				return Null, false
			}
			cur = cur.arr[i]
		default:
			return Null, false
		}
	}
	return cur, true
}

// PutPath sets a value at a dotted path, auto-creating missing intermediate
// Documents as it walks.
func (d *Document) PutPath(path string, v Value) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		d.Put(segs[0], v)
		return
	}

	child, ok := d.Get(segs[0])
	var childDoc *Document
	if ok {
		if dd, isDoc := child.AsDocument(); isDoc {
			childDoc = dd
		}
	}
	if childDoc == nil {
		childDoc = NewDocument()
	}
	childDoc.PutPath(strings.Join(segs[1:], "."), v)
	d.Put(segs[0], FromDocument(childDoc))
}

// RemovePath deletes the value at a dotted path. Missing segments are a
// silent no-op.
func (d *Document) RemovePath(path string) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		d.Delete(segs[0])
		return
	}
	child, ok := d.Get(segs[0])
	if !ok {
		return
	}
	childDoc, isDoc := child.AsDocument()
	if !isDoc {
		return
	}
	childDoc.RemovePath(strings.Join(segs[1:], "."))
	d.Put(segs[0], FromDocument(childDoc))
}

// ContainsKey reports whether a dotted path resolves to a present value.
func (d *Document) ContainsKey(path string) bool {
	_, ok := d.GetPath(path)
	return ok
}

func (d *Document) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(e.key))
		b.WriteByte(':')
		b.WriteString(e.value.String())
	}
	b.WriteByte('}')
	return b.String()
}
