package control

import (
	"context"
	"errors"
	"fmt"
	"math"

	"infer-rpc/payload"
)

// SimRobot stands in for hardware: it emits a joint state and a camera frame
// and keeps the last action it was sent.
type SimRobot struct {
	StateDim    int
	ImageHeight int
	ImageWidth  int
	Task        string

	connected  bool
	step       int
	LastAction payload.Map
}

func (r *SimRobot) Connect(context.Context) error {
	if r.StateDim <= 0 {
		return fmt.Errorf("sim robot: state dim must be positive, got %d", r.StateDim)
	}
	r.connected = true
	return nil
}

func (r *SimRobot) Disconnect() error {
	r.connected = false
	return nil
}

func (r *SimRobot) GetObservation(context.Context) (payload.Map, error) {
	if !r.connected {
		return nil, errors.New("sim robot: not connected")
	}
	r.step++

	joints := make([]float32, r.StateDim)
	for i := range joints {
		joints[i] = float32(math.Sin(float64(r.step+i) / 10))
	}
	state, err := payload.FromSlice([]int{1, r.StateDim}, joints)
	if err != nil {
		return nil, err
	}

	var obs payload.Map
	obs.Set("observation.state", state)
	if r.ImageHeight > 0 && r.ImageWidth > 0 {
		pixels := make([]uint8, 3*r.ImageHeight*r.ImageWidth)
		for i := range pixels {
			pixels[i] = uint8(i + r.step)
		}
		img, err := payload.FromSlice([]int{1, 3, r.ImageHeight, r.ImageWidth}, pixels)
		if err != nil {
			return nil, err
		}
		obs.Set("observation.images.image", img)
	}
	if r.Task != "" {
		obs.Set("task", r.Task)
	}
	return obs, nil
}

func (r *SimRobot) SendAction(_ context.Context, action payload.Map) error {
	if !r.connected {
		return errors.New("sim robot: not connected")
	}
	r.LastAction = action
	return nil
}
