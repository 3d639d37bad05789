package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"infer-rpc/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	fail  func(call int) bool
	calls int
}

func (s *scriptedSource) GetAction(_ context.Context, obs payload.Map) (payload.Map, error) {
	s.calls++
	if s.fail != nil && s.fail(s.calls) {
		return nil, errors.New("server unavailable")
	}
	state, _ := obs.GetArray("observation.state")
	return payload.Map{{Name: "action", Value: state}}, nil
}

func TestLoopRunsMaxSteps(t *testing.T) {
	robot := &SimRobot{StateDim: 7, ImageHeight: 4, ImageWidth: 4, Task: "pick"}
	src := &scriptedSource{}
	loop := &Loop{Robot: robot, Source: src, MaxSteps: 5}

	stats, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Steps)
	assert.Equal(t, 5, stats.Actions)
	assert.Zero(t, stats.Failures)
	assert.False(t, robot.connected, "robot must be disconnected after Run")

	action, ok := robot.LastAction.GetArray("action")
	require.True(t, ok)
	assert.Equal(t, []int{1, 7}, action.Shape)
}

func TestLoopPacing(t *testing.T) {
	loop := &Loop{Robot: &SimRobot{StateDim: 2}, Source: &scriptedSource{}, FPS: 50, MaxSteps: 6}

	stats, err := loop.Run(context.Background())
	require.NoError(t, err)
	// Burst of one, then 5 steps at 20ms each.
	assert.GreaterOrEqual(t, stats.Elapsed, 80*time.Millisecond)
}

func TestLoopToleratesIsolatedFailures(t *testing.T) {
	src := &scriptedSource{fail: func(call int) bool { return call%2 == 0 }}
	loop := &Loop{Robot: &SimRobot{StateDim: 2}, Source: src, MaxSteps: 6, MaxConsecutiveFailures: 2}

	stats, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Steps)
	assert.Equal(t, 3, stats.Failures)
	assert.Equal(t, 3, stats.Actions)
}

func TestLoopAbortsOnConsecutiveFailures(t *testing.T) {
	robot := &SimRobot{StateDim: 2}
	src := &scriptedSource{fail: func(call int) bool { return call > 1 }}
	loop := &Loop{Robot: robot, Source: src, MaxConsecutiveFailures: 3}

	stats, err := loop.Run(context.Background())
	require.ErrorIs(t, err, ErrTooManyFailures)
	assert.Equal(t, 4, stats.Steps)
	assert.Equal(t, 1, stats.Actions)
	assert.False(t, robot.connected)
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	loop := &Loop{Robot: &SimRobot{StateDim: 2}, Source: &scriptedSource{}, FPS: 100}

	stats, err := loop.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, stats.Steps, 0)
}

func TestLoopConnectFailure(t *testing.T) {
	loop := &Loop{Robot: &SimRobot{}, Source: &scriptedSource{}}
	_, err := loop.Run(context.Background())
	assert.Error(t, err)
}
