package txn

import (
	"sort"
	"sync"

	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/value"
)

// TransactionalMap is the copy-on-write overlay a transaction reads and
// writes through instead of touching the underlying collection map
// directly: a small sorted "backing" slice of pending writes plus a
// tombstone set of pending removals, both discarded (not merged) when the
// overlay goes away, since the real commit/rollback of the underlying map
// is still driven by the journal's own Commit/Rollback Commands. Read
// resolves in order: tombstone -> none; backing -> its value; otherwise
// the underlying map. This lets every collection method a transaction
// calls see its own uncommitted writes without any other transaction
// ever observing them, matching the single-writer-per-collection
// guarantee LockRegistry already provides for the lifetime of a
// transaction.
type TransactionalMap struct {
	mu         sync.RWMutex
	underlying store.OrderedMap
	backing    []kv
	tombstones map[string]struct{}
}

type kv struct {
	key value.Value
	val value.Value
}

// NewTransactionalMap wraps underlying with an empty overlay.
func NewTransactionalMap(underlying store.OrderedMap) *TransactionalMap {
	return &TransactionalMap{
		underlying: underlying,
		tombstones: make(map[string]struct{}),
	}
}

func less(a, b value.Value) bool {
	if c, ok := a.Compare(b); ok {
		return c < 0
	}
	return a.String() < b.String()
}

func (m *TransactionalMap) Name() string { return m.underlying.Name() }

func (m *TransactionalMap) findBacking(k value.Value) (idx int, found bool) {
	idx = sort.Search(len(m.backing), func(i int) bool {
		return !less(m.backing[i].key, k)
	})
	if idx < len(m.backing) && m.backing[idx].key.Equal(k) {
		return idx, true
	}
	return idx, false
}

// Get resolves tombstone -> backing -> underlying, per the overlay's read
// semantics.
func (m *TransactionalMap) Get(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(k)
}

func (m *TransactionalMap) getLocked(k value.Value) (value.Value, bool) {
	if _, dead := m.tombstones[k.String()]; dead {
		return value.Null, false
	}
	if idx, found := m.findBacking(k); found {
		return m.backing[idx].val, true
	}
	return m.underlying.Get(k)
}

func (m *TransactionalMap) putLocked(k, v value.Value) {
	delete(m.tombstones, k.String())
	idx, found := m.findBacking(k)
	if found {
		m.backing[idx].val = v
		return
	}
	m.backing = append(m.backing, kv{})
	copy(m.backing[idx+1:], m.backing[idx:])
	m.backing[idx] = kv{key: k, val: v}
}

func (m *TransactionalMap) Put(k, v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(k, v)
}

// PutIfAbsent reports presence by the overlay's combined view (tombstone,
// backing, underlying), consistent with Get.
func (m *TransactionalMap) PutIfAbsent(k, v value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.getLocked(k); ok {
		return prior, true
	}
	m.putLocked(k, v)
	return value.Null, false
}

// Remove reports the overlay's combined prior value, then tombstones the
// key so subsequent reads within this transaction see it as absent
// regardless of what the underlying map holds.
func (m *TransactionalMap) Remove(k value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior, existed := m.getLocked(k)
	if idx, found := m.findBacking(k); found {
		m.backing = append(m.backing[:idx], m.backing[idx+1:]...)
	}
	m.tombstones[k.String()] = struct{}{}
	return prior, existed
}

// mergedKeysLocked returns every live key (backing entries not tombstoned,
// plus underlying entries not shadowed by a backing write or a
// tombstone), in ascending order. Overlays are transaction-scoped and
// short-lived, so recomputing this per navigation call trades a full
// O(n log n) merge for never needing a persistent merged index structure,
// the same tradeoff SpatialIndex makes for its own flat scan.
func (m *TransactionalMap) mergedKeysLocked() []value.Value {
	seen := make(map[string]struct{}, len(m.backing))
	keys := make([]value.Value, 0, len(m.backing))
	for _, e := range m.backing {
		if _, dead := m.tombstones[e.key.String()]; dead {
			continue
		}
		keys = append(keys, e.key)
		seen[e.key.String()] = struct{}{}
	}
	it := m.underlying.EntriesForward()
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		ks := e.Key.String()
		if _, dead := m.tombstones[ks]; dead {
			continue
		}
		if _, dup := seen[ks]; dup {
			continue
		}
		keys = append(keys, e.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}

func (m *TransactionalMap) FirstKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.mergedKeysLocked()
	if len(keys) == 0 {
		return value.Null, false
	}
	return keys[0], true
}

func (m *TransactionalMap) LastKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.mergedKeysLocked()
	if len(keys) == 0 {
		return value.Null, false
	}
	return keys[len(keys)-1], true
}

func (m *TransactionalMap) searchLocked(k value.Value) (keys []value.Value, idx int, found bool) {
	keys = m.mergedKeysLocked()
	idx = sort.Search(len(keys), func(i int) bool { return !less(keys[i], k) })
	found = idx < len(keys) && keys[idx].Equal(k)
	return keys, idx, found
}

func (m *TransactionalMap) HigherKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, idx, found := m.searchLocked(k)
	if found {
		idx++
	}
	if idx >= len(keys) {
		return value.Null, false
	}
	return keys[idx], true
}

func (m *TransactionalMap) LowerKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, idx, _ := m.searchLocked(k)
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return keys[idx], true
}

func (m *TransactionalMap) CeilingKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, idx, _ := m.searchLocked(k)
	if idx >= len(keys) {
		return value.Null, false
	}
	return keys[idx], true
}

func (m *TransactionalMap) FloorKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, idx, found := m.searchLocked(k)
	if found {
		return keys[idx], true
	}
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return keys[idx], true
}

type overlayIter struct {
	m    *TransactionalMap
	keys []value.Value
	pos  int
	step int
}

func (it *overlayIter) Next() (store.Entry, bool) {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return store.Entry{}, false
	}
	k := it.keys[it.pos]
	it.pos += it.step
	v, ok := it.m.Get(k)
	if !ok {
		return it.Next()
	}
	return store.Entry{Key: k, Value: v}, true
}

func (m *TransactionalMap) EntriesForward() store.Iterator {
	m.mu.RLock()
	keys := m.mergedKeysLocked()
	m.mu.RUnlock()
	return &overlayIter{m: m, keys: keys, pos: 0, step: 1}
}

func (m *TransactionalMap) EntriesReverse() store.Iterator {
	m.mu.RLock()
	keys := m.mergedKeysLocked()
	m.mu.RUnlock()
	return &overlayIter{m: m, keys: keys, pos: len(keys) - 1, step: -1}
}

// Clear tombstones every key currently visible through the overlay.
// Collection-level clears are auto-committed outside any transaction's
// journal, so this exists only to satisfy store.OrderedMap; no
// transactional write path calls it.
func (m *TransactionalMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.mergedKeysLocked() {
		m.tombstones[k.String()] = struct{}{}
	}
	m.backing = nil
}

func (m *TransactionalMap) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backing = nil
	m.tombstones = make(map[string]struct{})
}

func (m *TransactionalMap) IsClosed() bool { return m.underlying.IsClosed() }

func (m *TransactionalMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mergedKeysLocked())
}
