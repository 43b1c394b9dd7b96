package sqlitestore

import (
	"database/sql"
	"sort"
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/value"
)

// Map implements store.OrderedMap over a single sqlite table. Keys are kept
// sorted in memory (by the same Value.Compare rule memstore uses) so
// navigation queries don't need a round trip to sqlite; values are fetched
// from the table on demand and written through on every mutation.
type Map struct {
	mu     sync.RWMutex
	db     *sql.DB
	table  string
	name   string
	keys   []value.Value
	closed bool
}

func less(a, b value.Value) bool {
	if c, ok := a.Compare(b); ok {
		return c < 0
	}
	return a.String() < b.String()
}

// loadIndex rebuilds the in-memory key index from the table, used at open
// time so a reopened store immediately supports navigation.
func (m *Map) loadIndex() error {
	rows, err := m.db.Query("SELECT k FROM " + quoteIdent(m.table) + " ORDER BY k")
	if err != nil {
		return dberrors.Wrap(dberrors.BackendError, "loadIndex", "scan map table", err)
	}
	defer rows.Close()
	var keys []value.Value
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return dberrors.Wrap(dberrors.BackendError, "loadIndex", "scan key blob", err)
		}
		k, err := value.FromBytes(raw)
		if err != nil {
			return dberrors.Wrap(dberrors.EncodingError, "loadIndex", "decode key", err)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	m.keys = keys
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func (m *Map) Name() string { return m.name }

func (m *Map) find(key value.Value) (idx int, found bool) {
	idx = sort.Search(len(m.keys), func(i int) bool {
		return !less(m.keys[i], key)
	})
	if idx < len(m.keys) && m.keys[idx].Equal(key) {
		return idx, true
	}
	return idx, false
}

func (m *Map) Get(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var raw []byte
	err := m.db.QueryRow("SELECT v FROM "+quoteIdent(m.table)+" WHERE k = ?", k.ToBytes()).Scan(&raw)
	if err != nil {
		return value.Null, false
	}
	v, err := value.FromBytes(raw)
	if err != nil {
		return value.Null, false
	}
	return v, true
}

func (m *Map) Put(k, v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(k, v)
}

func (m *Map) putLocked(k, v value.Value) {
	_, err := m.db.Exec("INSERT INTO "+quoteIdent(m.table)+"(k, v) VALUES (?, ?) "+
		"ON CONFLICT(k) DO UPDATE SET v = excluded.v", k.ToBytes(), v.ToBytes())
	if err != nil {
		return
	}
	idx, found := m.find(k)
	if !found {
		m.keys = append(m.keys, value.Null)
		copy(m.keys[idx+1:], m.keys[idx:])
		m.keys[idx] = k
	}
}

func (m *Map) PutIfAbsent(k, v value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, found := m.find(k); found {
		var raw []byte
		if err := m.db.QueryRow("SELECT v FROM "+quoteIdent(m.table)+" WHERE k = ?", k.ToBytes()).Scan(&raw); err == nil {
			if prior, err := value.FromBytes(raw); err == nil {
				return prior, true
			}
		}
		_ = idx
		return value.Null, true
	}
	m.putLocked(k, v)
	return value.Null, false
}

func (m *Map) Remove(k value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, found := m.find(k)
	if !found {
		return value.Null, false
	}
	var raw []byte
	_ = m.db.QueryRow("SELECT v FROM "+quoteIdent(m.table)+" WHERE k = ?", k.ToBytes()).Scan(&raw)
	if _, err := m.db.Exec("DELETE FROM "+quoteIdent(m.table)+" WHERE k = ?", k.ToBytes()); err != nil {
		return value.Null, false
	}
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	v, err := value.FromBytes(raw)
	if err != nil {
		return value.Null, true
	}
	return v, true
}

func (m *Map) FirstKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return value.Null, false
	}
	return m.keys[0], true
}

func (m *Map) LastKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return value.Null, false
	}
	return m.keys[len(m.keys)-1], true
}

func (m *Map) HigherKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, found := m.find(k)
	if found {
		idx++
	}
	if idx >= len(m.keys) {
		return value.Null, false
	}
	return m.keys[idx], true
}

func (m *Map) LowerKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, _ := m.find(k)
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return m.keys[idx], true
}

func (m *Map) CeilingKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, _ := m.find(k)
	if idx >= len(m.keys) {
		return value.Null, false
	}
	return m.keys[idx], true
}

func (m *Map) FloorKey(k value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, found := m.find(k)
	if found {
		return m.keys[idx], true
	}
	idx--
	if idx < 0 {
		return value.Null, false
	}
	return m.keys[idx], true
}

type iter struct {
	m      *Map
	keys   []value.Value
	pos    int
	dir    int
}

func (it *iter) Next() (store.Entry, bool) {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return store.Entry{}, false
	}
	k := it.keys[it.pos]
	it.pos += it.dir
	v, ok := it.m.Get(k)
	if !ok {
		return it.Next()
	}
	return store.Entry{Key: k, Value: v}, true
}

func (m *Map) snapshotKeys() []value.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]value.Value, len(m.keys))
	copy(cp, m.keys)
	return cp
}

func (m *Map) EntriesForward() store.Iterator {
	return &iter{m: m, keys: m.snapshotKeys(), pos: 0, dir: 1}
}

func (m *Map) EntriesReverse() store.Iterator {
	keys := m.snapshotKeys()
	return &iter{m: m, keys: keys, pos: len(keys) - 1, dir: -1}
}

func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.db.Exec("DELETE FROM " + quoteIdent(m.table)); err != nil {
		return
	}
	m.keys = nil
}

func (m *Map) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *Map) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
