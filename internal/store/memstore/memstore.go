// Package memstore is the in-memory reference implementation of the
// store.OrderedMap and store.Store contracts: a sorted slice of entries
// guarded by a RWMutex, with no persistence.
package memstore

import (
	"sort"
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/value"
)

type kv struct {
	key value.Value
	val value.Value
}

// Map is a sorted-slice OrderedMap. Keys are ordered by value.Value.Compare;
// when two keys don't compare (an IndexingError case), it falls back
// to their canonical String() so the slice always has a total order and
// binary search never misbehaves.
type Map struct {
	mu     sync.RWMutex
	name   string
	data   []kv
	closed bool
}

func New(name string) *Map {
	return &Map{name: name}
}

func less(a, b value.Value) bool {
	if c, ok := a.Compare(b); ok {
		return c < 0
	}
	return a.String() < b.String()
}

func (m *Map) Name() string { return m.name }

// find returns the index of key if present, and the insertion index
// (sort.Search position) regardless.
func (m *Map) find(key value.Value) (idx int, found bool) {
	idx = sort.Search(len(m.data), func(i int) bool {
		return !less(m.data[i].key, key)
	})
	if idx < len(m.data) && m.data[idx].key.Equal(key) {
		return idx, true
	}
	return idx, false
}

func (m *Map) Get(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, found := m.find(k)
	if !found {
		return value.Null, false
	}
	return m.data[idx].val, true
}

func (m *Map) Put(k, v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, found := m.find(k)
	if found {
		m.data[idx].val = v
		return
	}
	m.data = append(m.data, kv{})
	copy(m.data[idx+1:], m.data[idx:])
	m.data[idx] = kv{key: k, val: v}
}

func (m *Map) PutIfAbsent(k, v value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, found := m.find(k)
	if found {
		return m.data[idx].val, true
	}
	m.data = append(m.data, kv{})
	copy(m.data[idx+1:], m.data[idx:])
	m.data[idx] = kv{key: k, val: v}
	return value.Null, false
}

func (m *Map) Remove(k value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, found := m.find(k)
	if !found {
		return value.Null, false
	}
	v := m.data[idx].val
	m.data = append(m.data[:idx], m.data[idx+1:]...)
	return v, true
}

func (m *Map) FirstKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.data) == 0 {
		return value.Null, false
	}
	return m.data[0].key, true
}

func (m *Map) LastKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.data) == 0 {
		return value.Null, false
	}
	return m.data[len(m.data)-1].key, true
}

func (m *Map) HigherKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, found := m.find(k)
	if found {
		idx++
	}
	if idx >= len(m.data) {
		return value.Null, false
	}
	return m.data[idx].key, true
}

func (m *Map) LowerKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, _ := m.find(k)
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return m.data[idx].key, true
}

func (m *Map) CeilingKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, _ := m.find(k)
	if idx >= len(m.data) {
		return value.Null, false
	}
	return m.data[idx].key, true
}

func (m *Map) FloorKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, found := m.find(k)
	if found {
		return m.data[idx].key, true
	}
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return m.data[idx].key, true
}

type forwardIter struct {
	snap []kv
	pos  int
}

func (it *forwardIter) Next() (store.Entry, bool) {
	if it.pos >= len(it.snap) {
		return store.Entry{}, false
	}
	e := it.snap[it.pos]
	it.pos++
	return store.Entry{Key: e.key, Value: e.val}, true
}

type reverseIter struct {
	snap []kv
	pos  int
}

func (it *reverseIter) Next() (store.Entry, bool) {
	if it.pos < 0 {
		return store.Entry{}, false
	}
	e := it.snap[it.pos]
	it.pos--
	return store.Entry{Key: e.key, Value: e.val}, true
}

// snapshot copies the current data so iterators are immune to concurrent
// writers.
func (m *Map) snapshot() []kv {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]kv, len(m.data))
	copy(cp, m.data)
	return cp
}

func (m *Map) EntriesForward() store.Iterator {
	return &forwardIter{snap: m.snapshot()}
}

func (m *Map) EntriesReverse() store.Iterator {
	snap := m.snapshot()
	return &reverseIter{snap: snap, pos: len(snap) - 1}
}

func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
}

func (m *Map) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
}

func (m *Map) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Store is the in-memory store.Store: maps live only for the process
// lifetime, catalogue and version are kept in plain fields.
type Store struct {
	mu      sync.Mutex
	maps    map[string]*Map
	version int
	hasVer  bool
	closed  bool
}

func NewStore() *Store {
	return &Store{maps: make(map[string]*Map)}
}

func (s *Store) OpenMap(name string) (store.OrderedMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, dberrors.New(dberrors.StoreAlreadyClosed, "OpenMap", "store is closed")
	}
	if m, ok := s.maps[name]; ok {
		return m, nil
	}
	m := New(name)
	s.maps[name] = m
	return m, nil
}

func (s *Store) HasMap(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.maps[name]
	return ok
}

func (s *Store) CloseMap(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[name]; ok {
		m.Dispose()
	}
	return nil
}

func (s *Store) RemoveMap(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[name]; ok {
		m.Dispose()
		delete(s.maps, name)
	}
	return nil
}

func (s *Store) StoreCatalog(names []string) error { return nil }

func (s *Store) LoadCatalog() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.maps))
	for name := range s.maps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) StoreVersion(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
	s.hasVer = true
	return nil
}

func (s *Store) LoadVersion() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.hasVer, nil
}

func (s *Store) Commit() error  { return nil }
func (s *Store) Compact() error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.maps {
		m.Dispose()
	}
	s.closed = true
	return nil
}
