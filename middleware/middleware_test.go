package middleware

import (
	"context"
	"errors"
	"testing"

	"infer-rpc/message"
	"infer-rpc/observability"
	"infer-rpc/payload"
	"infer-rpc/registry"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// echoHandler returns the request data unchanged.
func echoHandler(ctx context.Context, req *message.Request) (payload.Map, error) {
	return req.Data, nil
}

func failingHandler(ctx context.Context, req *message.Request) (payload.Map, error) {
	return nil, errors.New("model exploded")
}

func echoRequest() *message.Request {
	return message.NewRequest("echo", payload.Map{{Name: "x", Value: 3.5}})
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := LoggingMiddleware(zap.New(core))(echoHandler)

	resp, err := handler(context.Background(), echoRequest())
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if v, _ := resp.GetFloat("x"); v != 3.5 {
		t.Fatalf("expect x=3.5, got %v", resp)
	}
	entries := logs.FilterMessage("request served").All()
	if len(entries) != 1 {
		t.Fatalf("expect one debug entry, got %d", logs.Len())
	}
	if entries[0].ContextMap()["endpoint"] != "echo" {
		t.Errorf("endpoint field missing: %v", entries[0].ContextMap())
	}
}

func TestLoggingFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	handler := LoggingMiddleware(zap.New(core))(failingHandler)

	if _, err := handler(context.Background(), echoRequest()); err == nil {
		t.Fatal("expect handler error to pass through")
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		t.Fatalf("expect one warn entry, got %v", logs.All())
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first two pass, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := echoRequest()

	for i := 0; i < 2; i++ {
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, err)
		}
	}

	_, err := handler(context.Background(), req)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request 3 should be rate limited, got: %v", err)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Request) (payload.Map, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain(mark("outer"), mark("inner"), LoggingMiddleware(zap.NewNop()))(echoHandler)
	if _, err := handler(context.Background(), echoRequest()); err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[error]string{
		nil: observability.OutcomeOK,
		&registry.UnknownEndpointError{Name: "x"}: observability.OutcomeUnknownEndpoint,
		ErrRateLimited:     observability.OutcomeRateLimited,
		errors.New("boom"): observability.OutcomeHandlerError,
	}
	for err, want := range cases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestMetricsPassesThrough(t *testing.T) {
	handler := MetricsMiddleware("test")(failingHandler)
	if _, err := handler(context.Background(), echoRequest()); err == nil {
		t.Fatal("expect error to pass through")
	}
}
