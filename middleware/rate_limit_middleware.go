package middleware

import (
	"context"
	"errors"

	"infer-rpc/message"
	"infer-rpc/payload"

	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware rejects requests beyond r per second (token bucket with
// the given burst). Requests are never queued: a rejected request is answered
// at once so the client's request/reply cycle completes.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (payload.Map, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
