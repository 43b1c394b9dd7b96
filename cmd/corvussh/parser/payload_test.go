package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/value"
)

func TestDecodeDocumentParsesFlatObject(t *testing.T) {
	doc, err := DecodeDocument(`{"name":"Alice","age":30,"active":true}`)
	require.NoError(t, err)

	name, _ := doc.Get("name")
	age, _ := doc.Get("age")
	active, _ := doc.Get("active")

	s, _ := name.AsString()
	assert.Equal(t, "Alice", s)
	f, _ := age.AsFloat64()
	assert.Equal(t, float64(30), f)
	b, _ := active.AsBool()
	assert.True(t, b)
}

func TestDecodeDocumentRejectsNonObject(t *testing.T) {
	_, err := DecodeDocument(`[1,2,3]`)
	assert.Error(t, err)
}

func TestDecodeDocumentRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeDocument(`{invalid}`)
	assert.Error(t, err)
}

func TestDecodeDocumentHandlesNestedObjectsAndArrays(t *testing.T) {
	doc, err := DecodeDocument(`{"tags":["a","b"],"address":{"city":"Reno"}}`)
	require.NoError(t, err)

	tags, _ := doc.Get("tags")
	arr, ok := tags.AsArray()
	require.True(t, ok)
	require.Len(t, arr, 2)
	s0, _ := arr[0].AsString()
	assert.Equal(t, "a", s0)

	addr, _ := doc.Get("address")
	nested, ok := addr.AsDocument()
	require.True(t, ok)
	city, _ := nested.Get("city")
	cs, _ := city.AsString()
	assert.Equal(t, "Reno", cs)
}

func TestDecodeJSONValueParsesScalarsAndArrays(t *testing.T) {
	v, err := DecodeJSONValue(`42`)
	require.NoError(t, err)
	f, _ := v.AsFloat64()
	assert.Equal(t, float64(42), f)

	v, err = DecodeJSONValue(`"hello"`)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "hello", s)

	v, err = DecodeJSONValue(`null`)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = DecodeJSONValue(`[1, "two"]`)
	require.NoError(t, err)
	arr, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, arr, 2)
	first, _ := arr[0].AsFloat64()
	assert.Equal(t, float64(1), first)
	second, _ := arr[1].AsString()
	assert.Equal(t, "two", second)
}

func TestFormatDocumentRespectsPrettyFlag(t *testing.T) {
	doc := value.NewDocument()
	doc.Put("x", value.Int64(1))

	compact, err := FormatDocument(doc, false)
	require.NoError(t, err)
	assert.NotContains(t, compact, "\n")

	pretty, err := FormatDocument(doc, true)
	require.NoError(t, err)
	assert.Contains(t, pretty, "\n")
}

func TestFormatDocumentRoundTripsIDField(t *testing.T) {
	doc := value.NewDocument()
	doc.Put(value.IDField, value.ID(1_000_000_000_000_000_001))

	out, err := FormatDocument(doc, false)
	require.NoError(t, err)
	assert.Contains(t, out, "1000000000000000001")
}
