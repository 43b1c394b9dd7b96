package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/store/memstore"
	"github.com/corvusdb/corvus/internal/value"
)

type fakeRuntime struct {
	store       store.Store
	collections map[string]*collection.Collection
	dropped     []string
	renamed     [][2]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		store:       memstore.NewStore(),
		collections: make(map[string]*collection.Collection),
	}
}

func (r *fakeRuntime) Collection(name string) (*collection.Collection, error) {
	if c, ok := r.collections[name]; ok {
		return c, nil
	}
	m, err := r.store.OpenMap(name)
	if err != nil {
		return nil, err
	}
	c, err := collection.New(name, m, collection.Options{})
	if err != nil {
		return nil, err
	}
	r.collections[name] = c
	return c, nil
}

func (r *fakeRuntime) DropCollection(name string) error {
	r.dropped = append(r.dropped, name)
	delete(r.collections, name)
	return nil
}

func (r *fakeRuntime) RenameCollection(oldName, newName string) error {
	r.renamed = append(r.renamed, [2]string{oldName, newName})
	return nil
}

func TestFindPathSameVersionIsEmpty(t *testing.T) {
	m := NewManager(memstore.NewStore(), newFakeRuntime(), 1)
	assert.Nil(t, m.FindPath(1, 1))
}

func TestFindPathSingleStepUpgrade(t *testing.T) {
	m := NewManager(memstore.NewStore(), newFakeRuntime(), 2)
	m.Register(NewMigration(1, 2))

	path := m.FindPath(1, 2)
	require.Len(t, path, 1)
	assert.Equal(t, uint32(1), path[0].From)
	assert.Equal(t, uint32(2), path[0].To)
}

func TestFindPathMultiStepUpgradeChoosesFarthestReach(t *testing.T) {
	m := NewManager(memstore.NewStore(), newFakeRuntime(), 3)
	m.Register(NewMigration(1, 2))
	m.Register(NewMigration(1, 3))
	m.Register(NewMigration(2, 3))

	path := m.FindPath(1, 3)
	require.Len(t, path, 1)
	assert.Equal(t, uint32(3), path[0].To)
}

func TestFindPathDowngrade(t *testing.T) {
	m := NewManager(memstore.NewStore(), newFakeRuntime(), 1)
	m.Register(NewMigration(3, 2))
	m.Register(NewMigration(2, 1))

	path := m.FindPath(3, 1)
	require.Len(t, path, 2)
	assert.Equal(t, uint32(2), path[0].To)
	assert.Equal(t, uint32(1), path[1].To)
}

func TestFindPathNoRouteReturnsNil(t *testing.T) {
	m := NewManager(memstore.NewStore(), newFakeRuntime(), 5)
	m.Register(NewMigration(1, 2))

	assert.Nil(t, m.FindPath(1, 5))
}

func TestMigrateExecutesAddFieldAndPersistsVersion(t *testing.T) {
	st := memstore.NewStore()
	rt := newFakeRuntime()
	rt.store = st

	coll, err := rt.Collection("people")
	require.NoError(t, err)
	_, err = coll.Insert(value.NewDocument())
	require.NoError(t, err)

	m := NewManager(st, rt, 1)
	m.Register(NewMigration(0, 1, MigrationStep{
		Kind:           AddField,
		CollectionName: "people",
		FieldName:      "schemaTag",
		DefaultValue:   value.String("v1"),
	}))

	require.NoError(t, m.Migrate())

	cur, err := coll.Find(planner.NotEquals("schemaTag", value.Null), planner.FindOptions{})
	require.NoError(t, err)
	docs, err := cur.All()
	require.NoError(t, err)
	require.Len(t, docs, 1)

	v, _ := docs[0].Get("schemaTag")
	s, _ := v.AsString()
	assert.Equal(t, "v1", s)

	version, ok, err := st.LoadVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, version)
}

func TestMigrateNoPathReturnsMigrationError(t *testing.T) {
	st := memstore.NewStore()
	rt := newFakeRuntime()
	rt.store = st
	m := NewManager(st, rt, 9)

	err := m.Migrate()
	require.Error(t, err)
	assert.Equal(t, dberrors.MigrationError, dberrors.KindOf(err))
}
