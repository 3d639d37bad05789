package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"infer-rpc/codec"
	"infer-rpc/protocol"
)

// fakeServer answers each request frame via reply; a nil reply means "stay silent".
func fakeServer(t *testing.T, reply func(h *protocol.Header, body []byte) (*protocol.Header, []byte)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					h, body, err := protocol.Decode(conn)
					if err != nil {
						return
					}
					rh, rb := reply(h, body)
					if rh == nil {
						continue
					}
					if err := protocol.Encode(conn, rh, rb); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func echo(h *protocol.Header, body []byte) (*protocol.Header, []byte) {
	return &protocol.Header{CodecType: h.CodecType, MsgType: protocol.MsgTypeResponse, Seq: h.Seq}, body
}

func TestClientTransportSerial(t *testing.T) {
	addr := fakeServer(t, echo)
	ct := NewClientTransport(addr, codec.CodecTypeBinary, time.Second, 0)
	defer ct.Close()

	if ct.Connected() {
		t.Fatal("transport should dial lazily")
	}

	for i, msg := range []string{"one", "two", "three"} {
		h, body, err := ct.RoundTrip(context.Background(), []byte(msg))
		if err != nil {
			t.Fatalf("round trip %d: %v", i, err)
		}
		if h.Seq != uint32(i+1) {
			t.Errorf("expect seq %d, got %d", i+1, h.Seq)
		}
		if !bytes.Equal(body, []byte(msg)) {
			t.Errorf("expect %q, got %q", msg, body)
		}
	}
	if !ct.Connected() {
		t.Fatal("transport should keep its connection between calls")
	}
}

func TestClientTransportTimeout(t *testing.T) {
	addr := fakeServer(t, func(*protocol.Header, []byte) (*protocol.Header, []byte) { return nil, nil })
	ct := NewClientTransport(addr, codec.CodecTypeBinary, 50*time.Millisecond, 0)
	defer ct.Close()

	start := time.Now()
	_, _, err := ct.RoundTrip(context.Background(), []byte("hello"))
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expect *OpError, got %v", err)
	}
	if opErr.Op != "read" || !opErr.Timeout() {
		t.Fatalf("expect read timeout, got %v", opErr)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
	if ct.Connected() {
		t.Fatal("a failed round trip must drop the connection")
	}
}

func TestClientTransportContextCancel(t *testing.T) {
	addr := fakeServer(t, func(*protocol.Header, []byte) (*protocol.Header, []byte) { return nil, nil })
	ct := NewClientTransport(addr, codec.CodecTypeBinary, 10*time.Second, 0)
	defer ct.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, _, err := ct.RoundTrip(ctx, []byte("hello"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, got %v", err)
	}
}

func TestClientTransportSeqMismatch(t *testing.T) {
	addr := fakeServer(t, func(h *protocol.Header, body []byte) (*protocol.Header, []byte) {
		return &protocol.Header{MsgType: protocol.MsgTypeResponse, Seq: h.Seq + 100}, body
	})
	ct := NewClientTransport(addr, codec.CodecTypeBinary, time.Second, 0)
	defer ct.Close()

	_, _, err := ct.RoundTrip(context.Background(), []byte("x"))
	if !errors.Is(err, ErrSeqMismatch) {
		t.Fatalf("expect ErrSeqMismatch, got %v", err)
	}
}

func TestClientTransportDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ct := NewClientTransport(addr, codec.CodecTypeBinary, time.Second, 0)
	_, _, err = ct.RoundTrip(context.Background(), []byte("x"))
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "dial" {
		t.Fatalf("expect dial error, got %v", err)
	}
}

func TestClientTransportPeerClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		protocol.Decode(conn)
		conn.Close()
	}()

	ct := NewClientTransport(ln.Addr().String(), codec.CodecTypeBinary, time.Second, 0)
	_, _, err = ct.RoundTrip(context.Background(), []byte("x"))
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "read" || !errors.Is(err, io.EOF) {
		t.Fatalf("expect read EOF on peer close, got %v", err)
	}
}

func TestClientTransportClose(t *testing.T) {
	addr := fakeServer(t, echo)
	ct := NewClientTransport(addr, codec.CodecTypeBinary, time.Second, 0)
	if _, _, err := ct.RoundTrip(context.Background(), []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := ct.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ct.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if _, _, err := ct.RoundTrip(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expect ErrClosed, got %v", err)
	}
}
