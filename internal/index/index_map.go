// Package index implements corvus's L2 index types: unique and non-unique
// single-field indexes, compound (multi-field) indexes, a text inverted
// index, and a spatial bounding-box index, all built on the store.OrderedMap
// contract.
package index

import (
	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/value"
)

// IndexMap wraps a store.OrderedMap and adds the navigation helpers every
// index type shares, plus terminal-id extraction out of the nested id-array
// values every index stores.
type IndexMap struct {
	backing store.OrderedMap
	log     *clog.Logger
}

func NewIndexMap(backing store.OrderedMap, log *clog.Logger) *IndexMap {
	if log == nil {
		log = clog.Nop()
	}
	return &IndexMap{backing: backing, log: log}
}

func (m *IndexMap) Get(key value.Value) (value.Value, bool) { return m.backing.Get(key) }
func (m *IndexMap) Put(key, v value.Value)                  { m.backing.Put(key, v) }
func (m *IndexMap) Remove(key value.Value) (value.Value, bool) {
	return m.backing.Remove(key)
}
func (m *IndexMap) FirstKey() (value.Value, bool)  { return m.backing.FirstKey() }
func (m *IndexMap) LastKey() (value.Value, bool)   { return m.backing.LastKey() }
func (m *IndexMap) HigherKey(k value.Value) (value.Value, bool) { return m.backing.HigherKey(k) }
func (m *IndexMap) LowerKey(k value.Value) (value.Value, bool)  { return m.backing.LowerKey(k) }
func (m *IndexMap) CeilingKey(k value.Value) (value.Value, bool) {
	return m.backing.CeilingKey(k)
}
func (m *IndexMap) FloorKey(k value.Value) (value.Value, bool) { return m.backing.FloorKey(k) }
func (m *IndexMap) Size() int                                  { return m.backing.Size() }
func (m *IndexMap) Clear()                                     { m.backing.Clear() }

// EntriesForward/EntriesReverse hand back the underlying store's iterators
// directly: IndexMap adds no buffering of its own, matching the
// reference's thin wrapping over its persisted/in-memory map.
func (m *IndexMap) EntriesForward() store.Iterator { return m.backing.EntriesForward() }
func (m *IndexMap) EntriesReverse() store.Iterator { return m.backing.EntriesReverse() }

// TerminalNitriteIds recursively walks every value reachable from this map
// (array elements, nested Map values) and collects every NitriteId found,
// exactly as the reference IndexMap.terminal_nitrite_ids does for compound
// index sub-maps.
func (m *IndexMap) TerminalNitriteIds() []uint64 {
	var out []uint64
	it := m.backing.EntriesForward()
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		collectIds(e.Value, &out)
	}
	return out
}

func collectIds(v value.Value, out *[]uint64) {
	switch v.Kind() {
	case value.KindID:
		if id, ok := v.AsID(); ok {
			*out = append(*out, id)
		}
	case value.KindArray:
		arr, _ := v.AsArray()
		for _, e := range arr {
			collectIds(e, out)
		}
	case value.KindMap:
		m, _ := v.AsMap()
		for _, e := range m.Entries() {
			collectIds(e.Value, out)
		}
	}
}

// idsToValue packs a slice of NitriteIds into the array-of-id Value form
// every index stores at a key.
func idsToValue(ids []uint64) value.Value {
	vs := make([]value.Value, len(ids))
	for i, id := range ids {
		vs[i] = value.ID(id)
	}
	return value.Array(vs)
}

// valueToIds decodes an index's id-list Value back into NitriteIds,
// skipping (and logging) any element that isn't a KindID, since that
// signals a corrupted id-list rather than something worth failing the
// whole lookup over.
func valueToIds(v value.Value, log *clog.Logger, op string) []uint64 {
	arr, ok := v.AsArray()
	if !ok {
		return nil
	}
	if log == nil {
		log = clog.Nop()
	}
	out := make([]uint64, 0, len(arr))
	for _, e := range arr {
		if id, ok := e.AsID(); ok {
			out = append(out, id)
			continue
		}
		log.Warn("%s: skipping non-id entry of kind %s in id-list, index may be corrupted", op, e.Kind())
	}
	return out
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// appendSortedUniqueID inserts docID into ids, keeping the result sorted
// ascending and free of duplicates, per spec §3's invariant that a
// non-unique key's stored id-list is always sorted and duplicate-free
// (a multikey first field with a repeated array element would otherwise
// write docID twice).
func appendSortedUniqueID(ids []uint64, docID uint64) []uint64 {
	i := 0
	for i < len(ids) && ids[i] < docID {
		i++
	}
	if i < len(ids) && ids[i] == docID {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = docID
	return ids
}

// errCorrupt mirrors the reference's "Index is in corrupt state" sentinel,
// surfaced whenever a backing map lookup fails in a way that should never
// happen for a live index.
func errCorrupt(op string) error {
	return dberrors.New(dberrors.IndexCorrupted, op, "index is in corrupt state")
}
