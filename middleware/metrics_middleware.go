package middleware

import (
	"context"
	"errors"
	"time"

	"infer-rpc/message"
	"infer-rpc/observability"
	"infer-rpc/payload"
	"infer-rpc/registry"
)

// MetricsMiddleware records a counter and a duration per endpoint and outcome.
func MetricsMiddleware(node string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (payload.Map, error) {
			start := time.Now()
			result, err := next(ctx, req)
			observability.RecordRequest(node, req.Endpoint, Outcome(err), time.Since(start))
			return result, err
		}
	}
}

// Outcome maps a dispatch error onto a metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, registry.ErrUnknownEndpoint):
		return observability.OutcomeUnknownEndpoint
	case errors.Is(err, ErrRateLimited):
		return observability.OutcomeRateLimited
	}
	return observability.OutcomeHandlerError
}
