package middleware

import (
	"context"
	"time"

	"infer-rpc/logging"
	"infer-rpc/message"
	"infer-rpc/payload"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every request at debug level and failures at warn.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (payload.Map, error) {
			start := time.Now()
			result, err := next(ctx, req)
			fields := []zap.Field{
				zap.String(logging.FieldEndpoint, req.Endpoint),
				zap.Duration(logging.FieldDuration, time.Since(start)),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, zap.Error(err))...)
				return result, err
			}
			logger.Debug("request served", fields...)
			return result, nil
		}
	}
}
