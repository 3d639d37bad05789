package policy

import (
	"context"
	"errors"
	"testing"

	"infer-rpc/message"
	"infer-rpc/payload"
	"infer-rpc/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistrar records registrations in a real registry.
type fakeRegistrar struct {
	reg *registry.Registry
	err error
}

func (f *fakeRegistrar) RegisterEndpoint(name string, h registry.Handler, requiresInput bool) error {
	if f.err != nil {
		return f.err
	}
	return f.reg.Register(name, h, requiresInput)
}

func TestRegisterConstant(t *testing.T) {
	action, err := ZeroAction("action", 7)
	require.NoError(t, err)
	p := NewConstant(action)
	r := &fakeRegistrar{reg: registry.New()}
	require.NoError(t, Register(r, p))
	assert.Equal(t, []string{message.DefaultEndpoint, ResetEndpoint}, r.reg.Names())

	ep, err := r.reg.Resolve(message.DefaultEndpoint)
	require.NoError(t, err)
	assert.True(t, ep.RequiresInput)

	out, err := ep.Handler(context.Background(), payload.Map{})
	require.NoError(t, err)
	assert.True(t, out.Equal(action))
	assert.Equal(t, int64(1), p.Seen())

	reset, err := r.reg.Resolve(ResetEndpoint)
	require.NoError(t, err)
	assert.False(t, reset.RequiresInput)
	_, err = reset.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, p.Seen())
}

func TestRegisterWithoutReset(t *testing.T) {
	r := &fakeRegistrar{reg: registry.New()}
	require.NoError(t, Register(r, Func(Echo)))
	assert.Equal(t, []string{message.DefaultEndpoint}, r.reg.Names())
}

func TestRegisterPropagatesError(t *testing.T) {
	r := &fakeRegistrar{reg: registry.New(), err: errors.New("started")}
	assert.Error(t, Register(r, Func(Echo)))
}

func TestConstantReturnsCopies(t *testing.T) {
	action, err := ZeroAction("a", 2)
	require.NoError(t, err)
	p := NewConstant(action)

	first, _ := p.SelectAction(context.Background(), nil)
	arr, _ := first.GetArray("a")
	arr.Data[0] = 0xff

	second, _ := p.SelectAction(context.Background(), nil)
	assert.True(t, second.Equal(action))
}

func TestZeroAction(t *testing.T) {
	m, err := ZeroAction("action", 3)
	require.NoError(t, err)
	arr, ok := m.GetArray("action")
	require.True(t, ok)
	assert.Equal(t, payload.Float32, arr.DType)
	assert.Equal(t, []int{1, 3}, arr.Shape)

	_, err = ZeroAction("action", 0)
	assert.Error(t, err)
	_, err = ZeroAction("", 3)
	assert.Error(t, err)
}
