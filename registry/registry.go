// Package registry maps endpoint names to handlers.
//
// Registration happens while the server is being set up; the serve loop only
// resolves. The registry itself does no locking.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"infer-rpc/payload"
)

// Handler serves one endpoint. Handlers registered without input receive a
// nil map.
type Handler func(ctx context.Context, data payload.Map) (payload.Map, error)

// Endpoint is the record kept per name.
type Endpoint struct {
	Name          string
	Handler       Handler
	RequiresInput bool
}

var ErrUnknownEndpoint = errors.New("unknown endpoint")

// UnknownEndpointError is returned by Resolve for names never registered.
type UnknownEndpointError struct {
	Name string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("unknown endpoint %q", e.Name)
}

func (e *UnknownEndpointError) Is(target error) bool {
	return target == ErrUnknownEndpoint
}

type Registry struct {
	endpoints map[string]Endpoint
}

func New() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Register adds or replaces the endpoint under name.
func (r *Registry) Register(name string, handler Handler, requiresInput bool) error {
	if name == "" {
		return errors.New("registry: empty endpoint name")
	}
	if handler == nil {
		return fmt.Errorf("registry: nil handler for %q", name)
	}
	r.endpoints[name] = Endpoint{Name: name, Handler: handler, RequiresInput: requiresInput}
	return nil
}

func (r *Registry) Resolve(name string) (Endpoint, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, &UnknownEndpointError{Name: name}
	}
	return ep, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.endpoints)
}

// NoInput adapts a handler that takes no data.
func NoInput(fn func(ctx context.Context) (payload.Map, error)) Handler {
	return func(ctx context.Context, _ payload.Map) (payload.Map, error) {
		return fn(ctx)
	}
}
