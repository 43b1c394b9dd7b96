package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store/memstore"
	"github.com/corvusdb/corvus/internal/value"
)

type address struct {
	City string `corvus:"city"`
	Zip  string `corvus:"zip"`
}

type employee struct {
	EmpID   int64   `corvus:"empId,id"`
	Name    string  `corvus:"name"`
	Salary  float64 `corvus:"salary"`
	Address address `corvus:"address"`
	Tags    []byte  `corvus:"-"`
}

func newTestRepository(t *testing.T) *Repository[employee] {
	t.Helper()
	coll, err := collection.New("employees", memstore.New("employees"), collection.Options{})
	require.NoError(t, err)
	repo, err := New[employee](coll)
	require.NoError(t, err)
	return repo
}

func TestInsertAndFindRoundTripsStruct(t *testing.T) {
	repo := newTestRepository(t)

	emp := employee{
		EmpID:  1,
		Name:   "ada",
		Salary: 120000.50,
		Address: address{
			City: "london",
			Zip:  "e1",
		},
	}
	_, err := repo.Insert(emp)
	require.NoError(t, err)

	results, err := repo.Find(planner.Equals("name", value.String("ada")), planner.FindOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int64(1), results[0].EmpID)
	assert.Equal(t, "ada", results[0].Name)
	assert.InDelta(t, 120000.50, results[0].Salary, 0.001)
	assert.Equal(t, "london", results[0].Address.City)
	assert.Equal(t, "e1", results[0].Address.Zip)
}

func TestIDTaggedFieldGetsUniqueIndex(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Insert(employee{EmpID: 1, Name: "ada"})
	require.NoError(t, err)

	_, err = repo.Insert(employee{EmpID: 1, Name: "grace"})
	require.Error(t, err)
}

func TestUpdateWithOptionsMergesFields(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Insert(employee{EmpID: 2, Name: "ada", Salary: 100})
	require.NoError(t, err)

	n, err := repo.Update(planner.Equals("empId", value.Int64(2)), employee{EmpID: 2, Name: "ada", Salary: 200})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := repo.Find(planner.Equals("empId", value.Int64(2)), planner.FindOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 200, results[0].Salary, 0.001)
}

func TestFindOneReturnsFalseWhenNoMatch(t *testing.T) {
	repo := newTestRepository(t)
	_, ok, err := repo.FindOne(planner.Equals("name", value.String("nobody")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveDeletesMatchingEntities(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Insert(employee{EmpID: 3, Name: "grace"})
	require.NoError(t, err)

	n, err := repo.Remove(planner.Equals("name", value.String("grace")), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := repo.Find(planner.Equals("name", value.String("grace")), planner.FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
