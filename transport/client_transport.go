// Package transport implements the client side of one request/reply connection.
//
// A ClientTransport owns at most one TCP connection and carries exactly one
// request at a time: write a request frame, then block for the single reply
// frame that answers it.
//
//	caller ──RoundTrip(seq=n)──→ conn ──→ Server
//	caller ←──reply(seq=n)────── conn ←── Server
//
// Any failure leaves the connection in an unknown state, so it is closed and
// the owner is expected to replace the transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"infer-rpc/codec"
	"infer-rpc/protocol"
)

var (
	ErrClosed      = errors.New("transport closed")
	ErrSeqMismatch = errors.New("reply sequence does not match request")
)

// OpError records which step of a round trip failed.
type OpError struct {
	Op   string // dial, write, read
	Addr string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *OpError) Timeout() bool {
	var ne net.Error
	return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &ne) && ne.Timeout())
}

// ClientTransport is not safe for concurrent use; callers serialise.
type ClientTransport struct {
	addr    string
	codec   codec.CodecType
	timeout time.Duration
	maxBody uint32

	conn   net.Conn
	seq    uint32
	closed bool
}

// NewClientTransport prepares a transport for addr. Nothing is dialed until
// the first RoundTrip.
func NewClientTransport(addr string, codecType codec.CodecType, timeout time.Duration, maxBody uint32) *ClientTransport {
	if maxBody == 0 {
		maxBody = protocol.DefaultMaxBodyLen
	}
	return &ClientTransport{addr: addr, codec: codecType, timeout: timeout, maxBody: maxBody}
}

func (t *ClientTransport) Addr() string { return t.addr }

func (t *ClientTransport) Connected() bool { return t.conn != nil }

// RoundTrip sends body as one request frame and returns the reply frame. The
// wait is bounded by the transport timeout and by ctx, whichever ends first.
func (t *ClientTransport) RoundTrip(ctx context.Context, body []byte) (*protocol.Header, []byte, error) {
	if t.closed {
		return nil, nil, &OpError{Op: "write", Addr: t.addr, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, &OpError{Op: "write", Addr: t.addr, Err: err}
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if t.conn == nil {
		dialer := net.Dialer{Deadline: deadline}
		conn, err := dialer.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			return nil, nil, &OpError{Op: "dial", Addr: t.addr, Err: err}
		}
		t.conn = conn
	}
	conn := t.conn

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, nil, t.fail("write", err)
	}
	// Cancelling ctx unblocks the pending read or write.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	t.seq++
	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       t.seq,
	}
	if err := protocol.Encode(conn, &header, body); err != nil {
		return nil, nil, t.fail("write", t.cause(ctx, err))
	}

	reply, replyBody, err := protocol.DecodeWithLimit(conn, t.maxBody)
	if err != nil {
		return nil, nil, t.fail("read", t.cause(ctx, err))
	}
	if reply.Seq != header.Seq {
		return nil, nil, t.fail("read", fmt.Errorf("%w: sent %d, got %d", ErrSeqMismatch, header.Seq, reply.Seq))
	}
	if reply.MsgType == protocol.MsgTypeRequest {
		return nil, nil, t.fail("read", fmt.Errorf("%w: %s frame", protocol.ErrUnsupportedMsgType, reply.MsgType))
	}
	return reply, replyBody, nil
}

// Close releases the connection. Safe to call more than once.
func (t *ClientTransport) Close() error {
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *ClientTransport) fail(op string, err error) error {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	return &OpError{Op: op, Addr: t.addr, Err: err}
}

// cause prefers the context error when ctx ended the I/O.
func (t *ClientTransport) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
