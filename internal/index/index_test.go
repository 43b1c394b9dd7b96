package index

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/store/memstore"
	"github.com/corvusdb/corvus/internal/value"
)

func TestUniqueIndexRejectsDuplicateValue(t *testing.T) {
	idx := NewUniqueIndex("email", memstore.New("email_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{value.String("a@example.com")}))

	err := idx.Write(1002, []value.Value{value.String("a@example.com")})
	require.Error(t, err)

	ids, err := idx.Find(value.String("a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, ids)
}

func TestUniqueIndexRemove(t *testing.T) {
	idx := NewUniqueIndex("email", memstore.New("email_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{value.String("a@example.com")}))
	require.NoError(t, idx.Remove(1001, []value.Value{value.String("a@example.com")}))

	ids, err := idx.Find(value.String("a@example.com"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNonUniqueIndexAccumulatesIds(t *testing.T) {
	idx := NewNonUniqueIndex("status", memstore.New("status_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{value.String("active")}))
	require.NoError(t, idx.Write(1002, []value.Value{value.String("active")}))

	ids, err := idx.Find(value.String("active"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1001, 1002}, ids)
}

func TestUniqueIndexMultikeyExplodesArrayValue(t *testing.T) {
	idx := NewUniqueIndex("tags", memstore.New("tags_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("b")}),
	}))

	idsA, err := idx.Find(value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, idsA)
	idsB, err := idx.Find(value.String("b"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, idsB)

	err = idx.Write(1002, []value.Value{value.Array([]value.Value{value.String("b")})})
	require.Error(t, err)

	require.NoError(t, idx.Remove(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("b")}),
	}))
	idsA, _ = idx.Find(value.String("a"))
	assert.Empty(t, idsA)
	idsB, _ = idx.Find(value.String("b"))
	assert.Empty(t, idsB)
}

func TestNonUniqueIndexMultikeyExplodesArrayValue(t *testing.T) {
	idx := NewNonUniqueIndex("tags", memstore.New("tags_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("b")}),
	}))
	require.NoError(t, idx.Write(1002, []value.Value{
		value.Array([]value.Value{value.String("b"), value.String("c")}),
	}))

	idsA, err := idx.Find(value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, idsA)
	idsB, err := idx.Find(value.String("b"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1001, 1002}, idsB)

	require.NoError(t, idx.Remove(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("b")}),
	}))
	idsA, _ = idx.Find(value.String("a"))
	assert.Empty(t, idsA)
	idsB, _ = idx.Find(value.String("b"))
	assert.Equal(t, []uint64{1002}, idsB)
}

func TestNonUniqueIndexConcurrentWritesLoseNoIds(t *testing.T) {
	idx := NewNonUniqueIndex("status", memstore.New("status_idx"), nil)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			require.NoError(t, idx.Write(id, []value.Value{value.String("active")}))
		}(uint64(1000 + i))
	}
	wg.Wait()

	ids, err := idx.Find(value.String("active"))
	require.NoError(t, err)
	assert.Len(t, ids, n)
	sorted := append([]uint64(nil), ids...)
	assert.True(t, sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i] < sorted[j] }))
}

func TestUniqueIndexConcurrentWritesOnlyOneSucceeds(t *testing.T) {
	idx := NewUniqueIndex("email", memstore.New("email_idx"), nil)
	const n = 50
	var wg sync.WaitGroup
	successes := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			successes[i] = idx.Write(uint64(1000+i), []value.Value{value.String("a@example.com")})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range successes {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)

	ids, err := idx.Find(value.String("a@example.com"))
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestNonUniqueIndexMultikeyDuplicateArrayElementWritesIDOnce(t *testing.T) {
	idx := NewNonUniqueIndex("tags", memstore.New("tags_idx"), nil)
	require.NoError(t, idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("a")}),
	}))

	ids, err := idx.Find(value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, ids)
}

func TestNonUniqueIndexRange(t *testing.T) {
	idx := NewNonUniqueIndex("age", memstore.New("age_idx"), nil)
	for i, age := range []int64{20, 25, 30, 35, 40} {
		require.NoError(t, idx.Write(uint64(1000+i), []value.Value{value.Int64(age)}))
	}

	ids, err := idx.FindRange(value.Int64(25), true, value.Int64(35), true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1001, 1002, 1003}, ids)
}

func TestCompoundIndexUnique(t *testing.T) {
	idx := NewCompoundIndex([]string{"first", "last"}, true, nil)
	require.NoError(t, idx.Write(1001, []value.Value{value.String("John"), value.String("Doe")}))

	err := idx.Write(1002, []value.Value{value.String("John"), value.String("Doe")})
	require.Error(t, err)

	ids, err := idx.FindCompound([]value.Value{value.String("John"), value.String("Doe")})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1001}, ids)
}

func TestCompoundIndexMultikeyFirstFieldOnly(t *testing.T) {
	idx := NewCompoundIndex([]string{"tags", "status"}, false, nil)
	err := idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("a"), value.String("b")}),
		value.String("active"),
	})
	require.NoError(t, err)

	idsA, _ := idx.FindCompound([]value.Value{value.String("a"), value.String("active")})
	idsB, _ := idx.FindCompound([]value.Value{value.String("b"), value.String("active")})
	assert.Equal(t, []uint64{1001}, idsA)
	assert.Equal(t, []uint64{1001}, idsB)

	err = idx.Write(1002, []value.Value{value.String("x"), value.Array([]value.Value{value.String("y")})})
	assert.Error(t, err)
}

func TestTextIndexTokenizesAndIntersects(t *testing.T) {
	idx := NewTextIndex("body", NewTokenizer([]string{"the", "a", "an"}))
	require.NoError(t, idx.Write(1001, []value.Value{value.String("the quick brown fox")}))
	require.NoError(t, idx.Write(1002, []value.Value{value.String("a quick red fox")}))

	ids := idx.FindPhrase("quick fox")
	assert.ElementsMatch(t, []uint64{1001, 1002}, ids)

	ids = idx.FindPhrase("quick brown")
	assert.Equal(t, []uint64{1001}, ids)
}

func TestTextIndexCaseInsensitiveVariant(t *testing.T) {
	idx := NewTextIndex("body", NewTokenizer(nil))
	require.NoError(t, idx.Write(1001, []value.Value{value.String("Hello World")}))

	ids := idx.FindCaseInsensitive("HELLO")
	assert.Equal(t, []uint64{1001}, ids)
}

func TestTextIndexArrayOfStringsOnFirstField(t *testing.T) {
	idx := NewTextIndex("tags", NewTokenizer(nil))
	require.NoError(t, idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("quick fox"), value.String("brown fox")}),
	}))

	ids := idx.FindPhrase("brown")
	assert.Equal(t, []uint64{1001}, ids)
	ids = idx.FindPhrase("quick brown")
	assert.Equal(t, []uint64{1001}, ids)
}

func TestTextIndexArrayWithNonStringElementFails(t *testing.T) {
	idx := NewTextIndex("tags", NewTokenizer(nil))
	err := idx.Write(1001, []value.Value{
		value.Array([]value.Value{value.String("ok"), value.Int64(5)}),
	})
	require.Error(t, err)
}

func TestSpatialIndexIntersects(t *testing.T) {
	idx := NewSpatialIndex("location")
	require.NoError(t, idx.Write(1001, []value.Value{boundingBoxToValue(BoundingBox{0, 0, 10, 10})}))
	require.NoError(t, idx.Write(1002, []value.Value{boundingBoxToValue(BoundingBox{20, 20, 30, 30})}))

	ids := idx.Intersects(BoundingBox{5, 5, 15, 15})
	assert.Equal(t, []uint64{1001}, ids)
}
