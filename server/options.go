package server

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPingMessage  = "Server is running"
	DefaultWriteTimeout = 10 * time.Second
)

type options struct {
	logger       *zap.Logger
	maxBodyLen   uint32
	writeTimeout time.Duration
	pingMessage  string
	node         string
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxBodyLen bounds inbound request frames.
func WithMaxBodyLen(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyLen = n
		}
	}
}

// WithWriteTimeout bounds how long the serve loop waits on a slow client.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithPingMessage sets the "message" field of the built-in ping reply.
func WithPingMessage(msg string) Option {
	return func(o *options) {
		if msg != "" {
			o.pingMessage = msg
		}
	}
}

// WithNode names this server in metrics labels.
func WithNode(node string) Option {
	return func(o *options) {
		if node != "" {
			o.node = node
		}
	}
}
