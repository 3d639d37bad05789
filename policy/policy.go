// Package policy connects a model to the server's endpoint registry.
//
// The model itself lives outside this module; it only has to choose an action
// for an observation.
package policy

import (
	"context"
	"fmt"

	"infer-rpc/message"
	"infer-rpc/payload"
	"infer-rpc/registry"
)

// Policy picks an action for one observation.
type Policy interface {
	SelectAction(ctx context.Context, observation payload.Map) (payload.Map, error)
}

// Resetter is implemented by stateful policies that can clear their history
// between episodes.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Registrar is the part of the server a policy registers against.
type Registrar interface {
	RegisterEndpoint(name string, handler registry.Handler, requiresInput bool) error
}

// ResetEndpoint is registered for policies that implement Resetter.
const ResetEndpoint = "reset"

// Register binds p to get_action, and to reset when p supports it.
func Register(r Registrar, p Policy) error {
	if err := r.RegisterEndpoint(message.DefaultEndpoint, p.SelectAction, true); err != nil {
		return fmt.Errorf("register %s: %w", message.DefaultEndpoint, err)
	}
	if rs, ok := p.(Resetter); ok {
		reset := registry.NoInput(func(ctx context.Context) (payload.Map, error) {
			if err := rs.Reset(ctx); err != nil {
				return nil, err
			}
			return payload.Map{{Name: "status", Value: "ok"}}, nil
		})
		if err := r.RegisterEndpoint(ResetEndpoint, reset, false); err != nil {
			return fmt.Errorf("register %s: %w", ResetEndpoint, err)
		}
	}
	return nil
}

// Func adapts a plain function to Policy.
type Func func(ctx context.Context, observation payload.Map) (payload.Map, error)

func (f Func) SelectAction(ctx context.Context, observation payload.Map) (payload.Map, error) {
	return f(ctx, observation)
}

// Echo returns its input unchanged. Useful as a wiring check.
func Echo(_ context.Context, data payload.Map) (payload.Map, error) {
	return data, nil
}
