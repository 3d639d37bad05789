package payload

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSetReplacesInPlace(t *testing.T) {
	var m Map
	m.Set("a", 1)
	m.Set("b", "two")
	m.Set("a", 3.5)

	require.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.GetFloat("a")
	require.True(t, ok)
	assert.Equal(t, 3.5, v)

	m.Delete("a")
	assert.Equal(t, []string{"b"}, m.Keys())
	assert.False(t, m.Has("a"))
}

func TestSetNormalisesIntAndArrayPointer(t *testing.T) {
	arr, err := FromSlice([]int{2}, []float32{1, 2})
	require.NoError(t, err)

	var m Map
	m.Set("n", 7)
	m.Set("arr", &arr)

	n, _ := m.Get("n")
	assert.Equal(t, int64(7), n)
	got, ok := m.GetArray("arr")
	require.True(t, ok)
	assert.True(t, got.Equal(arr))
}

func TestValidateReportsFieldPath(t *testing.T) {
	inner := Map{{Name: "bad", Value: int32(4)}}
	m := Map{{Name: "ok", Value: "x"}, {Name: "nested", Value: inner}}

	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "nested.bad", encErr.Field)
	assert.Equal(t, "int32", encErr.Type)
}

func TestValidateListElements(t *testing.T) {
	m := Map{{Name: "list", Value: []any{int64(1), float32(2)}}}
	var encErr *EncodingError
	require.ErrorAs(t, m.Validate(), &encErr)
	assert.Equal(t, "list[1]", encErr.Field)
}

func TestEqualComparesFloatBits(t *testing.T) {
	a := Map{{Name: "x", Value: math.NaN()}}
	b := Map{{Name: "x", Value: math.NaN()}}
	assert.True(t, a.Equal(b))

	c := Map{{Name: "x", Value: int64(1)}}
	d := Map{{Name: "x", Value: 1.0}}
	assert.False(t, c.Equal(d))
}

func TestEqualIsOrderSensitive(t *testing.T) {
	a := Map{{Name: "x", Value: int64(1)}, {Name: "y", Value: int64(2)}}
	b := Map{{Name: "y", Value: int64(2)}, {Name: "x", Value: int64(1)}}
	assert.False(t, a.Equal(b))
}

func TestCloneIsDeep(t *testing.T) {
	arr, err := FromSlice([]int{3}, []uint8{1, 2, 3})
	require.NoError(t, err)
	m := Map{{Name: "img", Value: arr}, {Name: "raw", Value: []byte{9}}}

	c := m.Clone()
	arr.Data[0] = 42
	m[1].Value.([]byte)[0] = 0

	got, _ := c.GetArray("img")
	assert.Equal(t, byte(1), got.Data[0])
	raw, _ := c.Get("raw")
	assert.Equal(t, []byte{9}, raw)
}

func TestFromSliceRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3, 4, 5, 6}
	arr, err := FromSlice([]int{2, 3}, in)
	require.NoError(t, err)
	assert.Equal(t, Float32, arr.DType)
	assert.Len(t, arr.Data, 24)

	out, err := Values[float32](arr)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Values[float64](arr)
	assert.Error(t, err)
}

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := FromSlice([]int{2, 2}, []int64{1, 2, 3})
	assert.Error(t, err)

	_, err = FromSlice([]int{-1}, []int64{})
	assert.Error(t, err)
}

func TestScalarAndEmptyArrays(t *testing.T) {
	scalar, err := FromSlice(nil, []float64{2.5})
	require.NoError(t, err)
	assert.Equal(t, 1, scalar.Len())

	empty, err := FromSlice([]int{0, 4}, []int16{})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Data)
}

func TestBoolArray(t *testing.T) {
	arr, err := FromSlice([]int{3}, []bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 1}, arr.Data)

	out, err := Values[bool](arr)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, out)
}

func TestNewArrayChecksLength(t *testing.T) {
	_, err := NewArray(Int32, []int{2}, make([]byte, 7))
	assert.Error(t, err)

	_, err = NewArray(DType(99), []int{1}, []byte{0})
	assert.Error(t, err)

	a, err := NewArray(Int32, []int{2}, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, "int32[2]", a.String())
}

func TestParseDType(t *testing.T) {
	for _, d := range []DType{Bool, Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, Float32, Float64} {
		got, err := ParseDType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDType("complex64")
	assert.Error(t, err)
}
