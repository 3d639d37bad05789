package client

import (
	"time"

	"infer-rpc/codec"

	"go.uber.org/zap"
)

const DefaultTimeout = 15 * time.Second

type options struct {
	timeout    time.Duration
	codec      codec.CodecType
	logger     *zap.Logger
	maxBodyLen uint32
}

type Option func(*options)

// WithTimeout bounds every call, dial included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithCodec(ct codec.CodecType) Option {
	return func(o *options) { o.codec = ct }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxBodyLen bounds reply frames.
func WithMaxBodyLen(n uint32) Option {
	return func(o *options) { o.maxBodyLen = n }
}
