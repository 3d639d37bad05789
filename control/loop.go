// Package control drives a robot from a remote policy: observe, ask the
// server for an action, apply it, at a fixed rate.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"infer-rpc/logging"
	"infer-rpc/message"
	"infer-rpc/payload"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Robot is the hardware driver seen by the loop.
type Robot interface {
	Connect(ctx context.Context) error
	Disconnect() error
	GetObservation(ctx context.Context) (payload.Map, error)
	SendAction(ctx context.Context, action payload.Map) error
}

// ActionSource chooses actions. *client.Client satisfies it.
type ActionSource interface {
	GetAction(ctx context.Context, observation payload.Map) (payload.Map, error)
}

var ErrTooManyFailures = errors.New("control: too many consecutive action failures")

// Stats summarises one run.
type Stats struct {
	Steps    int // observations taken
	Actions  int // actions applied
	Failures int // action requests that failed
	Elapsed  time.Duration
}

type Loop struct {
	Robot  Robot
	Source ActionSource
	// FPS caps the step rate; 0 runs unpaced.
	FPS float64
	// MaxSteps stops the loop after that many steps; 0 runs until ctx ends.
	MaxSteps int
	// MaxConsecutiveFailures aborts the run; 0 means 3.
	MaxConsecutiveFailures int
	Logger                 *zap.Logger
}

// Run connects the robot and steps until MaxSteps, ctx cancellation or a
// fatal error. The robot is always disconnected before Run returns.
func (l *Loop) Run(ctx context.Context) (stats Stats, err error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := l.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if l.FPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(l.FPS), 1)
	}

	start := time.Now()
	defer func() { stats.Elapsed = time.Since(start) }()

	if err := l.Robot.Connect(ctx); err != nil {
		return stats, fmt.Errorf("control: connect robot: %w", err)
	}
	defer func() {
		if derr := l.Robot.Disconnect(); derr != nil {
			logger.Warn("robot disconnect failed", zap.Error(derr))
		}
	}()

	consecutive := 0
	for l.MaxSteps == 0 || stats.Steps < l.MaxSteps {
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the next tick lies past the deadline.
			<-ctx.Done()
			return stats, ctx.Err()
		}

		obs, err := l.Robot.GetObservation(ctx)
		if err != nil {
			return stats, fmt.Errorf("control: observation at step %d: %w", stats.Steps, err)
		}
		stats.Steps++

		action, err := l.Source.GetAction(ctx, obs)
		if err != nil {
			stats.Failures++
			consecutive++
			logger.Warn("action request failed",
				zap.String(logging.FieldEndpoint, message.DefaultEndpoint),
				zap.Int("step", stats.Steps),
				zap.Int("consecutive", consecutive),
				zap.Error(err))
			if consecutive >= maxFailures {
				return stats, fmt.Errorf("%w: last error: %v", ErrTooManyFailures, err)
			}
			continue
		}
		consecutive = 0

		if err := l.Robot.SendAction(ctx, action); err != nil {
			return stats, fmt.Errorf("control: send action at step %d: %w", stats.Steps, err)
		}
		stats.Actions++
	}

	logger.Info("control loop finished", zap.Int("steps", stats.Steps), zap.Int("failures", stats.Failures))
	return stats, nil
}
