// Package middleware wraps request dispatch with cross-cutting behaviour.
//
// Middlewares run on the serve loop goroutine, inline with the handler. They
// must not hand the request to another goroutine.
package middleware

import (
	"context"

	"infer-rpc/message"
	"infer-rpc/payload"
)

type HandlerFunc func(ctx context.Context, req *message.Request) (payload.Map, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
