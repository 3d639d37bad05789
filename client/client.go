// Package client implements the inference client.
//
// A Client owns one connection and issues one call at a time. A transport
// failure never leaves it stuck halfway through a request/reply cycle: the
// failure path reconnects explicitly, so the next call starts clean. Calls are
// never retried automatically; a timed-out call may still have run on the
// server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"infer-rpc/codec"
	"infer-rpc/logging"
	"infer-rpc/message"
	"infer-rpc/payload"
	"infer-rpc/protocol"
	"infer-rpc/transport"

	"go.uber.org/zap"
)

var (
	ErrClosed = errors.New("client closed")
	ErrServer = errors.New("server error")
)

// ServerError is returned when the server answered with the error sentinel.
// Details stay in the server log.
type ServerError struct {
	Endpoint string
	Code     message.Code
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error calling %q: %s", e.Endpoint, e.Code)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// TransportError is returned when the exchange itself failed: dial, write,
// read, timeout, or a reply that is neither a payload nor the sentinel.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call gave up waiting.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &ne) && ne.Timeout())
}

type Client struct {
	host string
	port int
	opts options

	mu        sync.Mutex // one call in flight
	transport *transport.ClientTransport
	closed    bool
}

// New prepares a client for host:port. The connection is opened by the first call.
func New(host string, port int, opts ...Option) *Client {
	o := options{
		timeout:    DefaultTimeout,
		codec:      codec.CodecTypeBinary,
		logger:     zap.NewNop(),
		maxBodyLen: protocol.DefaultMaxBodyLen,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{host: host, port: port, opts: o}
	c.transport = c.newTransport()
	return c
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Client) newTransport() *transport.ClientTransport {
	return transport.NewClientTransport(c.Addr(), c.opts.codec, c.opts.timeout, c.opts.maxBodyLen)
}

// Call sends a request to endpoint and waits for its reply. The data field is
// sent only when data is non-nil.
func (c *Client) Call(ctx context.Context, endpoint string, data payload.Map) (payload.Map, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	cdc := codec.GetCodec(c.opts.codec)
	body, err := cdc.Encode(message.NewRequest(endpoint, data).ToMap())
	if err != nil {
		return nil, err
	}

	header, reply, err := c.transport.RoundTrip(ctx, body)
	if err != nil {
		op := "roundtrip"
		var opErr *transport.OpError
		if errors.As(err, &opErr) {
			op, err = opErr.Op, opErr.Err
		}
		return nil, c.failLocked(op, endpoint, err)
	}

	if header.MsgType == protocol.MsgTypeError || message.IsErrorReply(reply) {
		code, ok := message.ParseErrorReply(reply)
		if !ok {
			code = message.CodeUnknown
		}
		return nil, &ServerError{Endpoint: endpoint, Code: code}
	}

	result, err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(reply)
	if err != nil {
		// A garbled reply is a protocol violation, not a third kind of answer.
		return nil, c.failLocked("decode", endpoint, err)
	}
	return result, nil
}

func (c *Client) failLocked(op, endpoint string, err error) error {
	c.opts.logger.Warn("call failed, reconnecting",
		zap.String(logging.FieldEndpoint, endpoint),
		zap.String(logging.FieldAddr, c.Addr()),
		zap.String("op", op),
		zap.Error(err))
	c.reconnectLocked()
	return &TransportError{Op: op, Addr: c.Addr(), Err: err}
}

// Ping reports whether the server answered the ping endpoint.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Call(ctx, "ping", nil)
	return err == nil
}

// Status returns the ping reply.
func (c *Client) Status(ctx context.Context) (payload.Map, error) {
	return c.Call(ctx, "ping", nil)
}

// KillServer asks the server to stop after replying.
func (c *Client) KillServer(ctx context.Context) error {
	_, err := c.Call(ctx, "kill", nil)
	return err
}

// GetAction sends an observation and returns the action chosen by the policy.
func (c *Client) GetAction(ctx context.Context, observation payload.Map) (payload.Map, error) {
	if observation == nil {
		observation = payload.Map{}
	}
	return c.Call(ctx, message.DefaultEndpoint, observation)
}

// Reconnect discards the current connection and prepares a fresh one with
// the same host, port and timeout.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.reconnectLocked()
	return nil
}

func (c *Client) reconnectLocked() {
	_ = c.transport.Close()
	c.transport = c.newTransport()
}

// Close releases the connection. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.transport.Close()
}
