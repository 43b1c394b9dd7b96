package index

import (
	"sync"

	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/value"
)

// CompoundIndex indexes two or more fields as a unit using a nested
// Map[field1]->Map[field2]->...->Array[NitriteIds] structure. Only the
// first field may hold an array value (multikey indexing); arrays in any
// subsequent field are rejected.
type CompoundIndex struct {
	mu     sync.RWMutex
	fields []string
	unique bool
	root   *value.OrderedValueMap
	log    *clog.Logger
}

func NewCompoundIndex(fields []string, unique bool, log *clog.Logger) *CompoundIndex {
	if log == nil {
		log = clog.Nop()
	}
	return &CompoundIndex{
		fields: append([]string(nil), fields...),
		unique: unique,
		root:   value.NewOrderedValueMap(),
		log:    log,
	}
}

func (idx *CompoundIndex) Type() Type { return TypeCompound }

// Unique reports whether this compound index enforces a unique constraint
// across its full field tuple.
func (idx *CompoundIndex) Unique() bool { return idx.unique }

func (idx *CompoundIndex) Fields() []string { return idx.fields }

func (idx *CompoundIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.root.Len()
}

func (idx *CompoundIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.root = value.NewOrderedValueMap()
}

// Write indexes docID under fieldValues, one per field in declaration
// order. Only fieldValues[0] may be a KindArray; every array element is
// indexed individually (spec's multikey-on-first-field rule).
func (idx *CompoundIndex) Write(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != len(idx.fields) {
		return dberrors.New(dberrors.IndexingError, "CompoundIndex.Write", "field value count mismatch")
	}
	for i := 1; i < len(fieldValues); i++ {
		if fieldValues[i].Kind() == value.KindArray {
			return dberrors.New(dberrors.IndexingError, "CompoundIndex.Write",
				"compound multikey index is supported on the first field of the index only")
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			if err := idx.writeOneLocked(docID, append([]value.Value{elem}, fieldValues[1:]...)); err != nil {
				return err
			}
		}
		return nil
	}
	return idx.writeOneLocked(docID, fieldValues)
}

func (idx *CompoundIndex) writeOneLocked(docID uint64, fieldValues []value.Value) error {
	m := idx.root
	for i := 0; i < len(fieldValues)-1; i++ {
		key := fieldValues[i]
		child, ok := m.GetByKey(key)
		var childMap *value.OrderedValueMap
		if ok {
			childMap, ok = child.AsMap()
		}
		if !ok || childMap == nil {
			childMap = value.NewOrderedValueMap()
			m.Put(key, value.FromMap(childMap))
		}
		m = childMap
	}

	lastKey := fieldValues[len(fieldValues)-1]
	existing, _ := m.GetByKey(lastKey)
	ids := valueToIds(existing, idx.log, "CompoundIndex.Write")
	if idx.unique && len(ids) > 0 {
		return dberrors.New(dberrors.UniqueConstraintViolation, "CompoundIndex.Write",
			"a document already exists with these values for the compound index")
	}
	ids = appendSortedUniqueID(ids, docID)
	m.Put(lastKey, idsToValue(ids))
	return nil
}

func (idx *CompoundIndex) Remove(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != len(idx.fields) {
		return dberrors.New(dberrors.IndexingError, "CompoundIndex.Remove", "field value count mismatch")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if fieldValues[0].Kind() == value.KindArray {
		elems, _ := fieldValues[0].AsArray()
		for _, elem := range elems {
			idx.removeOneLocked(docID, append([]value.Value{elem}, fieldValues[1:]...))
		}
		return nil
	}
	idx.removeOneLocked(docID, fieldValues)
	return nil
}

func (idx *CompoundIndex) removeOneLocked(docID uint64, fieldValues []value.Value) {
	m := idx.root
	for i := 0; i < len(fieldValues)-1; i++ {
		child, ok := m.GetByKey(fieldValues[i])
		if !ok {
			return
		}
		childMap, ok := child.AsMap()
		if !ok {
			return
		}
		m = childMap
	}
	lastKey := fieldValues[len(fieldValues)-1]
	existing, ok := m.GetByKey(lastKey)
	if !ok {
		return
	}
	ids := removeID(valueToIds(existing, idx.log, "CompoundIndex.Remove"), docID)
	// Empty intermediate maps are retained rather than pruned (spec Open
	// Question decision: see DESIGN.md).
	if len(ids) == 0 {
		m.Put(lastKey, value.Array(nil))
		return
	}
	m.Put(lastKey, idsToValue(ids))
}

// Find looks up the first field's value only; callers wanting a full
// compound match should use FindCompound.
func (idx *CompoundIndex) Find(key value.Value) ([]uint64, error) {
	return idx.FindSubtree([]value.Value{key})
}

// FindCompound walks the nested maps following keys in field order and
// returns the NitriteIds found at the terminal id-list for a complete key
// sequence (one key per indexed field). A shorter prefix ends at a nested
// map and yields nil; FindSubtree serves prefixes.
func (idx *CompoundIndex) FindCompound(keys []value.Value) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m := idx.root
	for i, k := range keys {
		child, ok := m.GetByKey(k)
		if !ok {
			return nil, nil
		}
		if i == len(keys)-1 {
			return valueToIds(child, idx.log, "CompoundIndex.FindCompound"), nil
		}
		childMap, ok := child.AsMap()
		if !ok {
			return nil, nil
		}
		m = childMap
	}
	return nil, nil
}

// FindSubtree walks down len(keys) levels, which may be a strict prefix
// of the index's fields, and returns every NitriteId found anywhere below
// that point. Unlike FindCompound it never requires keys to reach a
// terminal id-list, so it is safe to use for a partial equality prefix
// combined with a residual filter on the remaining fields.
func (idx *CompoundIndex) FindSubtree(keys []value.Value) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m := idx.root
	var node value.Value = value.FromMap(m)
	for _, k := range keys {
		mm, ok := node.AsMap()
		if !ok {
			return nil, nil
		}
		child, ok := mm.GetByKey(k)
		if !ok {
			return nil, nil
		}
		node = child
	}
	var out []uint64
	collectIdsFromMapValue(node, &out)
	return out, nil
}

func (idx *CompoundIndex) FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	for _, e := range idx.root.Entries() {
		if hasLower {
			if c, ok := e.Key.Compare(lower); ok && c < 0 {
				continue
			}
		}
		if hasUpper {
			if c, ok := e.Key.Compare(upper); ok && c > 0 {
				continue
			}
		}
		collectIdsFromMapValue(e.Value, &out)
	}
	return out, nil
}

func collectIdsFromMapValue(v value.Value, out *[]uint64) {
	switch v.Kind() {
	case value.KindArray:
		collectIds(v, out)
	case value.KindMap:
		m, _ := v.AsMap()
		for _, e := range m.Entries() {
			collectIdsFromMapValue(e.Value, out)
		}
	}
}
