package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareCrossKindNumeric(t *testing.T) {
	cmp, ok := Int32(5).Compare(Float64(5.5))
	require.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = Uint64(10).Compare(Int8(3))
	require.True(t, ok)
	assert.Positive(t, cmp)

	big1 := Int128(big.NewInt(1_000_000_000_000))
	cmp, ok = big1.Compare(Int64(999_999_999_999))
	require.True(t, ok)
	assert.Positive(t, cmp)
}

func TestCompareIncomparableFamiliesFail(t *testing.T) {
	_, ok := String("a").Compare(Int64(1))
	assert.False(t, ok)

	_, ok = Bool(true).Compare(Char('a'))
	assert.False(t, ok)
}

func TestCompareNullSortsBelowEverything(t *testing.T) {
	cmp, ok := Null.Compare(Int64(-1000))
	require.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = Null.Compare(Null)
	require.True(t, ok)
	assert.Zero(t, cmp)
}

func TestCompareBoolFalseLessThanTrue(t *testing.T) {
	cmp, ok := Bool(false).Compare(Bool(true))
	require.True(t, ok)
	assert.Negative(t, cmp)
}

func TestEqualUsesCompare(t *testing.T) {
	assert.True(t, Int64(7).Equal(Uint8(7)))
	assert.False(t, String("7").Equal(Int64(7)))
}

func TestSortValuesAscendingAndDescending(t *testing.T) {
	asc := []Value{Int64(3), Int64(1), Int64(2)}
	SortValues(asc, false)
	assert.Equal(t, []int64{1, 2, 3}, toInts(asc))

	desc := []Value{Int64(3), Int64(1), Int64(2)}
	SortValues(desc, true)
	assert.Equal(t, []int64{3, 2, 1}, toInts(desc))
}

func toInts(vs []Value) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		f, _ := v.AsFloat64()
		out[i] = int64(f)
	}
	return out
}

func TestSortValuesNeverPanicsOnIncomparableMix(t *testing.T) {
	vs := []Value{Int64(3), String("x"), Int64(1), Bool(true)}
	assert.NotPanics(t, func() { SortValues(vs, false) })
	assert.Len(t, vs, 4)
}

func TestToBytesFromBytesRoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.Put("name", String("ada"))
	doc.Put("age", Int32(36))

	m := NewOrderedValueMap()
	m.Put(String("k"), Int64(42))

	cases := []Value{
		Null,
		Int8(-12), Int16(-1200), Int32(-120000), Int64(-12000000000),
		Uint8(12), Uint16(1200), Uint32(120000), Uint64(12000000000),
		Int128(big.NewInt(-123456789012345)),
		Uint128(big.NewInt(123456789012345)),
		Float32(3.5), Float64(-2.25),
		Bool(true), Bool(false),
		Char('z'),
		String("hello world"),
		Bytes([]byte{1, 2, 3, 4}),
		Array([]Value{Int64(1), String("two"), Bool(true)}),
		FromDocument(doc),
		FromMap(m),
		ID(1_000_000_000_000_000_001),
	}

	for _, v := range cases {
		encoded := v.ToBytes()
		decoded, err := FromBytes(encoded)
		require.NoError(t, err)
		assert.Equal(t, v.Kind(), decoded.Kind())
		assert.Equal(t, v.String(), decoded.String())
	}
}

func TestFromBytesRejectsTrailingGarbage(t *testing.T) {
	encoded := Int64(1).ToBytes()
	_, err := FromBytes(append(encoded, 0xff))
	assert.Error(t, err)
}

func TestFromBytesRejectsTruncatedInput(t *testing.T) {
	encoded := String("hello").ToBytes()
	_, err := FromBytes(encoded[:len(encoded)-2])
	assert.Error(t, err)
}

func TestAsFloat64WidensEveryNumericKind(t *testing.T) {
	for _, v := range []Value{Int8(1), Uint16(2), Int128(big.NewInt(3)), Float32(4)} {
		f, ok := v.AsFloat64()
		assert.True(t, ok)
		assert.NotZero(t, f)
	}
	_, ok := String("x").AsFloat64()
	assert.False(t, ok)
}
