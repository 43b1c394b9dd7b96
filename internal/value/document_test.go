package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPutGetPreservesInsertionOrder(t *testing.T) {
	d := NewDocument()
	d.Put("b", Int64(2))
	d.Put("a", Int64(1))
	d.Put("b", Int64(20)) // overwrite keeps original position

	assert.Equal(t, []string{"b", "a"}, d.Fields())
	v, ok := d.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(20), mustInt(t, v))
}

func mustInt(t *testing.T, v Value) int64 {
	t.Helper()
	require.True(t, v.isIntFamily())
	i, _ := v.AsFloat64()
	return int64(i)
}

func TestDocumentGetMissingYieldsNullNotError(t *testing.T) {
	d := NewDocument()
	v, ok := d.Get("missing")
	assert.False(t, ok)
	assert.True(t, v.IsNull())
}

func TestDocumentDeleteReindexesRemaining(t *testing.T) {
	d := NewDocument()
	d.Put("a", Int64(1))
	d.Put("b", Int64(2))
	d.Put("c", Int64(3))
	d.Delete("b")

	assert.Equal(t, []string{"a", "c"}, d.Fields())
	_, ok := d.Get("b")
	assert.False(t, ok)
	v, ok := d.Get("c")
	require.True(t, ok)
	assert.Equal(t, int64(3), mustInt(t, v))
}

func TestDottedPathGetAutoCreatesOnPutAndYieldsNullOnMissingRead(t *testing.T) {
	d := NewDocument()

	_, ok := d.GetPath("a.b.c")
	assert.False(t, ok)

	d.PutPath("a.b.c", String("leaf"))
	v, ok := d.GetPath("a.b.c")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "leaf", s)

	assert.True(t, d.ContainsKey("a.b.c"))
	assert.False(t, d.ContainsKey("a.b.x"))
}

func TestDottedPathThroughArrayIndex(t *testing.T) {
	d := NewDocument()
	d.Put("items", Array([]Value{String("x"), String("y")}))

	v, ok := d.GetPath("items.1")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "y", s)

	_, ok = d.GetPath("items.5")
	assert.False(t, ok)
}

func TestRemovePathOnNestedDocument(t *testing.T) {
	d := NewDocument()
	d.PutPath("a.b", Int64(1))
	d.RemovePath("a.b")
	assert.False(t, d.ContainsKey("a.b"))

	// removing a path that never existed is a silent no-op
	d.RemovePath("x.y.z")
}

func TestDocumentIDRoundTrip(t *testing.T) {
	d := NewDocument()
	_, ok := d.ID()
	assert.False(t, ok)

	d.SetID(1_000_000_000_000_000_005)
	id, ok := d.ID()
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000_000_000_000_005), id)
}

func TestValidIDEnforcesOriginFloor(t *testing.T) {
	assert.False(t, ValidID(999_999_999_999_999_999))
	assert.True(t, ValidID(1_000_000_000_000_000_000))
}

func TestDocumentCloneIsDeepForNestedDocumentsAndArrays(t *testing.T) {
	inner := NewDocument()
	inner.Put("x", Int64(1))

	d := NewDocument()
	d.Put("inner", FromDocument(inner))
	d.Put("arr", Array([]Value{Int64(1), Int64(2)}))

	clone := d.Clone()
	innerClone, ok := mustDoc(t, clone, "inner")
	require.True(t, ok)
	innerClone.Put("x", Int64(999))

	// mutating the clone's nested document must not affect the original
	origInner, _ := d.Get("inner")
	origDoc, _ := origInner.AsDocument()
	v, _ := origDoc.Get("x")
	assert.Equal(t, int64(1), mustInt(t, v))
}

func mustDoc(t *testing.T, d *Document, key string) (*Document, bool) {
	t.Helper()
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	dd, isDoc := v.AsDocument()
	return dd, isDoc
}
