package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corvus.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreOpenMapPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corvus.db")
	s, err := Open(path)
	require.NoError(t, err)

	m, err := s.OpenMap("widgets")
	require.NoError(t, err)
	m.Put(value.Int64(1), value.String("a"))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	assert.True(t, reopened.HasMap("widgets"))
	m2, err := reopened.OpenMap("widgets")
	require.NoError(t, err)
	v, ok := m2.Get(value.Int64(1))
	require.True(t, ok)
	s2, _ := v.AsString()
	assert.Equal(t, "a", s2)
}

func TestMapPutGetAndNavigation(t *testing.T) {
	s := openTestStore(t)
	m, err := s.OpenMap("ordered")
	require.NoError(t, err)

	for _, k := range []int64{5, 1, 3, 4, 2} {
		m.Put(value.Int64(k), value.Int64(k*10))
	}

	first, ok := m.FirstKey()
	require.True(t, ok)
	assert.Equal(t, int64(1), asInt(t, first))

	last, ok := m.LastKey()
	require.True(t, ok)
	assert.Equal(t, int64(5), asInt(t, last))

	higher, ok := m.HigherKey(value.Int64(3))
	require.True(t, ok)
	assert.Equal(t, int64(4), asInt(t, higher))

	lower, ok := m.LowerKey(value.Int64(3))
	require.True(t, ok)
	assert.Equal(t, int64(2), asInt(t, lower))
}

func TestMapPutIfAbsentDoesNotOverwrite(t *testing.T) {
	s := openTestStore(t)
	m, err := s.OpenMap("s")
	require.NoError(t, err)

	prior, existed := m.PutIfAbsent(value.Int64(1), value.String("first"))
	assert.False(t, existed)
	assert.True(t, prior.IsNull())

	_, existed = m.PutIfAbsent(value.Int64(1), value.String("second"))
	assert.True(t, existed)

	v, _ := m.Get(value.Int64(1))
	got, _ := v.AsString()
	assert.Equal(t, "first", got)
}

func TestMapRemoveAndSize(t *testing.T) {
	s := openTestStore(t)
	m, err := s.OpenMap("s")
	require.NoError(t, err)

	m.Put(value.Int64(1), value.String("a"))
	m.Put(value.Int64(2), value.String("b"))
	assert.Equal(t, 2, m.Size())

	v, ok := m.Remove(value.Int64(1))
	require.True(t, ok)
	got, _ := v.AsString()
	assert.Equal(t, "a", got)
	assert.Equal(t, 1, m.Size())

	_, ok = m.Get(value.Int64(1))
	assert.False(t, ok)
}

func TestMapEntriesForwardAndReverse(t *testing.T) {
	s := openTestStore(t)
	m, err := s.OpenMap("s")
	require.NoError(t, err)
	m.Put(value.Int64(1), value.String("a"))
	m.Put(value.Int64(2), value.String("b"))
	m.Put(value.Int64(3), value.String("c"))

	fwd := m.EntriesForward()
	var got []int64
	for {
		e, ok := fwd.Next()
		if !ok {
			break
		}
		got = append(got, asInt(t, e.Key))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	rev := m.EntriesReverse()
	var revGot []int64
	for {
		e, ok := rev.Next()
		if !ok {
			break
		}
		revGot = append(revGot, asInt(t, e.Key))
	}
	assert.Equal(t, []int64{3, 2, 1}, revGot)
}

func TestStoreRemoveMapDropsTable(t *testing.T) {
	s := openTestStore(t)
	_, err := s.OpenMap("col")
	require.NoError(t, err)
	require.NoError(t, s.RemoveMap("col"))
	assert.False(t, s.HasMap("col"))
}

func TestStoreVersionRoundTrips(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.LoadVersion()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.StoreVersion(3))
	v, ok, err := s.LoadVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func asInt(t *testing.T, v value.Value) int64 {
	t.Helper()
	f, ok := v.AsFloat64()
	require.True(t, ok)
	return int64(f)
}
