package main

import (
	"testing"

	"infer-rpc/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldScalars(t *testing.T) {
	cases := []struct {
		spec string
		name string
		want any
	}{
		{"step:int=12", "step", int64(12)},
		{"mask:int=0x10", "mask", int64(16)},
		{"scale:float=0.5", "scale", 0.5},
		{"task:string=pick the cube", "task", "pick the cube"},
		{"eq:string=a=b", "eq", "a=b"},
		{"empty:string=", "empty", ""},
		{"done:bool=true", "done", true},
		{"raw:bytes=dead", "raw", []byte{0xde, 0xad}},
	}
	for _, tc := range cases {
		name, v, err := parseField(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.name, name)
		assert.Equal(t, tc.want, v, tc.spec)
	}
}

func TestParseFieldArrays(t *testing.T) {
	_, v, err := parseField("observation.state:float32[1,3]=0.1, 0.2,0.3")
	require.NoError(t, err)
	arr := v.(payload.Array)
	assert.Equal(t, payload.Float32, arr.DType)
	assert.Equal(t, []int{1, 3}, arr.Shape)
	vals, err := payload.Values[float32](arr)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vals)

	_, v, err = parseField("ids:int64=1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, v.(payload.Array).Shape)

	_, v, err = parseField("one:uint8[]=255")
	require.NoError(t, err)
	assert.Equal(t, []int{}, v.(payload.Array).Shape)

	_, v, err = parseField("none:float64[0,3]=")
	require.NoError(t, err)
	assert.Equal(t, 0, v.(payload.Array).Len())

	_, v, err = parseField("flags:bool=true,false")
	require.NoError(t, err)
	flags, err := payload.Values[bool](v.(payload.Array))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, flags)
}

func TestParseFieldErrors(t *testing.T) {
	for _, spec := range []string{
		"novalue",
		"notype=1",
		":int=1",
		"x:int=1.5",
		"x:bool=maybe",
		"x:bytes=zz",
		"x:complex64=1",
		"x:int8=300",
		"x:float32[2=1,2",
		"x:float32[a]=1",
		"x:float32[-1]=",
		"x:float32[2,2]=1,2,3",
	} {
		_, _, err := parseField(spec)
		assert.Error(t, err, spec)
	}
}

func TestParseFieldsKeepsOrderAndRejectsDuplicates(t *testing.T) {
	m, err := parseFields([]string{"b:int=1", "a:int=2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, m.Keys())

	m, err = parseFields(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, 0, m.Len())

	_, err = parseFields([]string{"a:int=1", "a:float=2"})
	assert.Error(t, err)
}
