package registry

import (
	"context"
	"errors"
	"testing"

	"infer-rpc/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(value string) Handler {
	return func(context.Context, payload.Map) (payload.Map, error) {
		return payload.Map{{Name: "from", Value: value}}, nil
	}
}

func TestRegisterResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("echo", constant("echo"), true))

	ep, err := r.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", ep.Name)
	assert.True(t, ep.RequiresInput)

	out, err := ep.Handler(context.Background(), nil)
	require.NoError(t, err)
	v, _ := out.GetString("from")
	assert.Equal(t, "echo", v)
}

func TestRegisterOverrides(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("ping", constant("builtin"), false))
	require.NoError(t, r.Register("ping", constant("custom"), true))

	ep, err := r.Resolve("ping")
	require.NoError(t, err)
	assert.True(t, ep.RequiresInput)
	out, _ := ep.Handler(context.Background(), nil)
	v, _ := out.GetString("from")
	assert.Equal(t, "custom", v)
	assert.Equal(t, 1, r.Len())
}

func TestResolveUnknown(t *testing.T) {
	_, err := New().Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEndpoint))

	var unknown *UnknownEndpointError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New()
	assert.Error(t, r.Register("", constant("x"), false))
	assert.Error(t, r.Register("x", nil, false))
	assert.Zero(t, r.Len())
}

func TestNamesSorted(t *testing.T) {
	r := New()
	for _, name := range []string{"kill", "get_action", "ping"} {
		require.NoError(t, r.Register(name, constant(name), false))
	}
	assert.Equal(t, []string{"get_action", "kill", "ping"}, r.Names())
}

func TestNoInput(t *testing.T) {
	called := false
	h := NoInput(func(context.Context) (payload.Map, error) {
		called = true
		return payload.Map{}, nil
	})
	_, err := h(context.Background(), payload.Map{{Name: "ignored", Value: true}})
	require.NoError(t, err)
	assert.True(t, called)
}
