package policy

import (
	"context"
	"fmt"

	"infer-rpc/payload"
)

// Constant answers every observation with the same action. It counts the
// observations it has seen since the last Reset.
type Constant struct {
	action payload.Map
	seen   int64
}

func NewConstant(action payload.Map) *Constant {
	return &Constant{action: action.Clone()}
}

func (c *Constant) SelectAction(_ context.Context, _ payload.Map) (payload.Map, error) {
	c.seen++
	return c.action.Clone(), nil
}

func (c *Constant) Reset(context.Context) error {
	c.seen = 0
	return nil
}

// Seen reports how many observations arrived since the last Reset.
func (c *Constant) Seen() int64 { return c.seen }

// ZeroAction builds {key: float32 zeros of shape [1, dim]}.
func ZeroAction(key string, dim int) (payload.Map, error) {
	if key == "" {
		return nil, fmt.Errorf("policy: empty action key")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("policy: action dim must be positive, got %d", dim)
	}
	arr, err := payload.FromSlice([]int{1, dim}, make([]float32, dim))
	if err != nil {
		return nil, err
	}
	return payload.Map{{Name: key, Value: arr}}, nil
}
