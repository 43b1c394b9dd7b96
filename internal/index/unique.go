package index

import (
	"sync"

	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/value"
)

// UniqueIndex maps a single field's value directly to exactly one
// NitriteId, rejecting a second document under the same key. When the
// field's value is a KindArray, every element is indexed individually
// (multikey indexing) and each must be unique on its own.
type UniqueIndex struct {
	mu    sync.RWMutex
	field string
	m     *IndexMap
}

func NewUniqueIndex(field string, backing store.OrderedMap, log *clog.Logger) *UniqueIndex {
	return &UniqueIndex{field: field, m: NewIndexMap(backing, log)}
}

func (idx *UniqueIndex) Type() Type       { return TypeUnique }
func (idx *UniqueIndex) Fields() []string { return []string{idx.field} }

func (idx *UniqueIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.m.Size()
}

func (idx *UniqueIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m.Clear()
}

// Write guards the whole check-then-put under idx.mu so two concurrent
// writers (e.g. catalog.BuildIndex fanning writes out over an ants.Pool)
// can never both observe an empty slot for the same key and both insert.
func (idx *UniqueIndex) Write(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "UniqueIndex.Write", "expected exactly one field value")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			if err := idx.writeOneLocked(docID, elem); err != nil {
				return err
			}
		}
		return nil
	}
	return idx.writeOneLocked(docID, fieldValues[0])
}

func (idx *UniqueIndex) writeOneLocked(docID uint64, key value.Value) error {
	if _, exists := idx.m.Get(key); exists {
		return dberrors.New(dberrors.UniqueConstraintViolation, "UniqueIndex.Write",
			"a document already exists with this value for field "+idx.field)
	}
	idx.m.Put(key, value.ID(docID))
	return nil
}

func (idx *UniqueIndex) Remove(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "UniqueIndex.Remove", "expected exactly one field value")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			idx.m.Remove(elem)
		}
		return nil
	}
	idx.m.Remove(fieldValues[0])
	return nil
}

func (idx *UniqueIndex) Find(key value.Value) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.m.Get(key)
	if !ok {
		return nil, nil
	}
	id, ok := v.AsID()
	if !ok {
		return nil, errCorrupt("UniqueIndex.Find")
	}
	return []uint64{id}, nil
}

func (idx *UniqueIndex) FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	k, ok := idx.startKey(lower, hasLower)
	for ok {
		if hasUpper {
			if c, comparable := k.Compare(upper); comparable && c > 0 {
				break
			}
		}
		v, found := idx.m.Get(k)
		if found {
			if id, isID := v.AsID(); isID {
				out = append(out, id)
			}
		}
		k, ok = idx.m.HigherKey(k)
	}
	return out, nil
}

func (idx *UniqueIndex) startKey(lower value.Value, hasLower bool) (value.Value, bool) {
	if !hasLower {
		return idx.m.FirstKey()
	}
	return idx.m.CeilingKey(lower)
}

// NonUniqueIndex maps a field's value to the set of NitriteIds of every
// document holding that value. When the field's value is a KindArray,
// every element is indexed individually (multikey indexing).
type NonUniqueIndex struct {
	mu    sync.RWMutex
	field string
	m     *IndexMap
}

func NewNonUniqueIndex(field string, backing store.OrderedMap, log *clog.Logger) *NonUniqueIndex {
	return &NonUniqueIndex{field: field, m: NewIndexMap(backing, log)}
}

func (idx *NonUniqueIndex) Type() Type       { return TypeNonUnique }
func (idx *NonUniqueIndex) Fields() []string { return []string{idx.field} }

func (idx *NonUniqueIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.m.Size()
}

func (idx *NonUniqueIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m.Clear()
}

// Write guards the whole read-modify-write under idx.mu: without it, two
// concurrent writers sharing a key (catalog.BuildIndex fans Write calls
// out over an ants.Pool) could both read the same id-list, each append,
// and the second Put silently discards the first writer's id.
func (idx *NonUniqueIndex) Write(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "NonUniqueIndex.Write", "expected exactly one field value")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			idx.writeOneLocked(docID, elem)
		}
		return nil
	}
	idx.writeOneLocked(docID, fieldValues[0])
	return nil
}

func (idx *NonUniqueIndex) writeOneLocked(docID uint64, key value.Value) {
	existing, _ := idx.m.Get(key)
	ids := valueToIds(existing, idx.m.log, "NonUniqueIndex.Write")
	ids = appendSortedUniqueID(ids, docID)
	idx.m.Put(key, idsToValue(ids))
}

func (idx *NonUniqueIndex) Remove(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "NonUniqueIndex.Remove", "expected exactly one field value")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			idx.removeOneLocked(docID, elem)
		}
		return nil
	}
	idx.removeOneLocked(docID, fieldValues[0])
	return nil
}

func (idx *NonUniqueIndex) removeOneLocked(docID uint64, key value.Value) {
	existing, ok := idx.m.Get(key)
	if !ok {
		return
	}
	ids := removeID(valueToIds(existing, idx.m.log, "NonUniqueIndex.Remove"), docID)
	if len(ids) == 0 {
		idx.m.Remove(key)
		return
	}
	idx.m.Put(key, idsToValue(ids))
}

func (idx *NonUniqueIndex) Find(key value.Value) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.m.Get(key)
	if !ok {
		return nil, nil
	}
	return valueToIds(v, idx.m.log, "NonUniqueIndex.Find"), nil
}

func (idx *NonUniqueIndex) FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	var k value.Value
	var ok bool
	if hasLower {
		k, ok = idx.m.CeilingKey(lower)
	} else {
		k, ok = idx.m.FirstKey()
	}
	for ok {
		if hasUpper {
			if c, comparable := k.Compare(upper); comparable && c > 0 {
				break
			}
		}
		v, found := idx.m.Get(k)
		if found {
			out = append(out, valueToIds(v, idx.m.log, "NonUniqueIndex.FindRange")...)
		}
		k, ok = idx.m.HigherKey(k)
	}
	return out, nil
}
