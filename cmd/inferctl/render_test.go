package main

import (
	"strings"
	"testing"

	"infer-rpc/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRows(t *testing.T) {
	action, err := payload.FromSlice([]int{1, 10}, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	m := payload.Map{
		{Name: "action", Value: action},
		{Name: "meta", Value: payload.Map{{Name: "step", Value: int64(3)}}},
		{Name: "raw", Value: []byte{1, 2}},
		{Name: "none", Value: payload.Map{}},
	}

	rows := payloadRows("", m)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"action", "array", "float32", "(1, 10)", "[0 1 2 3 4 5 6 7 ...]"}, rows[0])
	assert.Equal(t, []string{"meta.step", "int", "", "", "3"}, rows[1])
	assert.Equal(t, []string{"raw", "bytes", "", "2", "0102"}, rows[2])
	assert.Equal(t, "map", rows[3][1])
}

func TestRenderPayload(t *testing.T) {
	out := renderPayload(payload.Map{{Name: "status", Value: "ok"}})
	assert.True(t, strings.Contains(out, "status"))
	assert.True(t, strings.Contains(out, "Field"))
	assert.Equal(t, "(empty reply)", renderPayload(nil))
}
