// Package server implements the inference server: an endpoint registry, a
// middleware chain and a strictly serial serve loop.
//
// Request processing pipeline:
//
//	Accept conn → readLoop (one goroutine per conn, one frame at a time)
//	  → serve loop (single goroutine, the caller of Serve)
//	    → Codec.Decode → Middleware Chain → dispatch (registry lookup, handler) → Codec.Encode → write reply
//
// Readers never touch handlers. A reader hands its frame to the serve loop and
// waits for the reply to be written before reading the next frame, so every
// connection sees strict request/reply alternation and handlers run on one
// goroutine only.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"infer-rpc/codec"
	"infer-rpc/logging"
	"infer-rpc/message"
	"infer-rpc/middleware"
	"infer-rpc/observability"
	"infer-rpc/payload"
	"infer-rpc/protocol"
	"infer-rpc/registry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the server lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	ErrServerStarted = errors.New("server: endpoints are fixed once serving starts")
	ErrNotBound      = errors.New("server: Serve requires a bound server")
	ErrAlreadyBound  = errors.New("server: already bound")
)

// HandlerError wraps a failure raised by an endpoint handler.
type HandlerError struct {
	Endpoint string
	Err      error
	Stack    []byte // set when the handler panicked
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("endpoint %q: %v", e.Endpoint, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// inbound is one request frame waiting for the serve loop.
type inbound struct {
	connID string
	conn   net.Conn
	header *protocol.Header
	body   []byte
	done   chan struct{} // closed once the reply is written or abandoned
}

// Server is the inference server that registers endpoints and handles incoming requests.
type Server struct {
	opts options

	mu          sync.Mutex // guards state, listener, conns
	state       State
	listener    net.Listener
	conns       map[string]net.Conn
	registry    *registry.Registry
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	// running is read and written only by the serve loop goroutine.
	running bool

	requests  chan *inbound
	stopping  chan struct{}
	acceptErr chan error
	wg        sync.WaitGroup // accept and reader goroutines
}

// NewServer creates a server in the Created state with the built-in ping and
// kill endpoints already registered.
func NewServer(opts ...Option) *Server {
	o := options{
		logger:       zap.NewNop(),
		maxBodyLen:   protocol.DefaultMaxBodyLen,
		writeTimeout: DefaultWriteTimeout,
		pingMessage:  DefaultPingMessage,
		node:         "inferd",
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		opts:      o,
		conns:     make(map[string]net.Conn),
		registry:  registry.New(),
		requests:  make(chan *inbound),
		stopping:  make(chan struct{}),
		acceptErr: make(chan error, 1),
	}
	_ = s.registry.Register("ping", registry.NoInput(s.handlePing), false)
	_ = s.registry.Register("kill", registry.NoInput(s.handleKill), false)
	return s
}

// RegisterEndpoint adds or replaces an endpoint. Built-ins may be overridden.
func (s *Server) RegisterEndpoint(name string, handler registry.Handler, requiresInput bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= StateRunning {
		return ErrServerStarted
	}
	return s.registry.Register(name, handler, requiresInput)
}

// Endpoints lists the registered endpoint names.
func (s *Server) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Names()
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (s *Server) Use(mw middleware.Middleware) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= StateRunning {
		return ErrServerStarted
	}
	s.middlewares = append(s.middlewares, mw)
	return nil
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind listens on address (host:port). A host of "*" means all interfaces.
func (s *Server) Bind(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return ErrAlreadyBound
	}
	listener, err := net.Listen("tcp", normalizeAddr(address))
	if err != nil {
		return fmt.Errorf("server: bind %s: %w", address, err)
	}
	s.listener = listener
	s.state = StateBound
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the serve loop on the calling goroutine until the kill endpoint
// is called. It returns nil after a kill, or the error that broke the
// listener.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.state != StateBound {
		s.mu.Unlock()
		return ErrNotBound
	}
	s.state = StateRunning
	// Build the middleware chain once at startup (not per-request)
	s.handler = middleware.Chain(s.middlewares...)(s.dispatch)
	listener := s.listener
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.opts.logger.Info("server is ready and listening",
		zap.String(logging.FieldAddr, listener.Addr().String()),
		zap.Strings("endpoints", s.registry.Names()))

	s.wg.Add(1)
	go s.acceptLoop(listener)

	var serveErr error
	s.running = true
	for s.running {
		select {
		case in := <-s.requests:
			s.handle(ctx, in)
			close(in.done)
		case err := <-s.acceptErr:
			serveErr = err
			s.running = false
		}
	}

	s.shutdown()
	if serveErr == nil {
		s.opts.logger.Info("server stopped")
	}
	return serveErr
}

func (s *Server) shutdown() {
	close(s.stopping)

	s.mu.Lock()
	s.listener.Close()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopping:
				// Closed by shutdown
			default:
				s.acceptErr <- fmt.Errorf("server: accept: %w", err)
			}
			return
		}

		connID := uuid.NewString()
		s.mu.Lock()
		select {
		case <-s.stopping:
			s.mu.Unlock()
			conn.Close()
			return
		default:
		}
		s.conns[connID] = conn
		s.wg.Add(1)
		s.mu.Unlock()

		go s.readLoop(connID, conn)
	}
}

// readLoop reads one frame, hands it to the serve loop and waits until the
// reply has been written before reading again.
func (s *Server) readLoop(connID string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		conn.Close()
	}()

	logger := s.opts.logger.With(zap.String(logging.FieldConnID, connID), zap.String(logging.FieldRemote, conn.RemoteAddr().String()))
	logger.Debug("connection opened")

	for {
		header, body, err := protocol.DecodeWithLimit(conn, s.opts.maxBodyLen)
		if err != nil {
			select {
			case <-s.stopping:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug("connection closed")
			} else {
				// The byte stream can no longer be trusted to hold frame boundaries.
				observability.RecordMalformed(s.opts.node)
				logger.Warn("dropping connection", zap.Error(err))
			}
			return
		}

		in := &inbound{connID: connID, conn: conn, header: header, body: body, done: make(chan struct{})}
		select {
		case s.requests <- in:
		case <-s.stopping:
			return
		}
		<-in.done
	}
}

// handle runs on the serve loop and always writes exactly one reply.
func (s *Server) handle(ctx context.Context, in *inbound) {
	logger := s.opts.logger.With(zap.String(logging.FieldConnID, in.connID), zap.Uint32(logging.FieldSeq, in.header.Seq))

	body, msgType := s.process(ctx, logger, in)

	reply := protocol.Header{CodecType: in.header.CodecType, MsgType: msgType, Seq: in.header.Seq}
	err := in.conn.SetWriteDeadline(time.Now().Add(s.opts.writeTimeout))
	if err == nil {
		err = protocol.Encode(in.conn, &reply, body)
	}
	if err != nil {
		// The client never got its reply; closing is the only way to tell it.
		logger.Warn("failed to write reply", zap.Error(err))
		in.conn.Close()
	}
}

func (s *Server) process(ctx context.Context, logger *zap.Logger, in *inbound) ([]byte, protocol.MsgType) {
	if in.header.MsgType != protocol.MsgTypeRequest {
		logger.Error("unexpected frame", zap.Stringer("msg_type", in.header.MsgType))
		observability.RecordMalformed(s.opts.node)
		return message.ErrorReply(message.CodeMalformedRequest), protocol.MsgTypeError
	}

	cdc := codec.GetCodec(codec.CodecType(in.header.CodecType))
	decoded, err := cdc.Decode(in.body)
	if err != nil {
		logger.Error("failed to decode request", zap.Error(err))
		observability.RecordMalformed(s.opts.node)
		return message.ErrorReply(message.CodeMalformedRequest), protocol.MsgTypeError
	}
	req, err := message.ParseRequest(decoded)
	if err != nil {
		logger.Error("failed to parse request", zap.Error(err))
		observability.RecordMalformed(s.opts.node)
		return message.ErrorReply(message.CodeMalformedRequest), protocol.MsgTypeError
	}

	result, err := s.handler(ctx, req)
	if err != nil {
		code := codeFor(err)
		fields := []zap.Field{
			zap.String(logging.FieldEndpoint, req.Endpoint),
			zap.Stringer(logging.FieldCode, code),
			zap.Error(err),
		}
		var herr *HandlerError
		if errors.As(err, &herr) && herr.Stack != nil {
			fields = append(fields, zap.ByteString(logging.FieldStack, herr.Stack))
		}
		logger.Error("request failed", fields...)
		return message.ErrorReply(code), protocol.MsgTypeError
	}

	if result == nil {
		result = payload.Map{}
	}
	out, err := cdc.Encode(result)
	if err != nil {
		logger.Error("failed to encode result", zap.String(logging.FieldEndpoint, req.Endpoint), zap.Error(err))
		return message.ErrorReply(message.CodeEncodeFailed), protocol.MsgTypeError
	}
	return out, protocol.MsgTypeResponse
}

// dispatch is the innermost handler of the middleware chain.
func (s *Server) dispatch(ctx context.Context, req *message.Request) (result payload.Map, err error) {
	ep, err := s.registry.Resolve(req.Endpoint)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &HandlerError{Endpoint: ep.Name, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	var data payload.Map
	if ep.RequiresInput {
		data = req.Data
		if data == nil {
			data = payload.Map{}
		}
	}
	result, err = ep.Handler(ctx, data)
	if err != nil {
		return nil, &HandlerError{Endpoint: ep.Name, Err: err}
	}
	return result, nil
}

func (s *Server) handlePing(context.Context) (payload.Map, error) {
	return payload.Map{
		{Name: "status", Value: "ok"},
		{Name: "message", Value: s.opts.pingMessage},
	}, nil
}

// handleKill runs on the serve loop; the loop stops after this iteration's reply.
func (s *Server) handleKill(context.Context) (payload.Map, error) {
	s.running = false
	return payload.Map{}, nil
}

func codeFor(err error) message.Code {
	switch {
	case errors.Is(err, registry.ErrUnknownEndpoint):
		return message.CodeUnknownEndpoint
	case errors.Is(err, middleware.ErrRateLimited):
		return message.CodeOverloaded
	}
	return message.CodeHandlerFailed
}

// normalizeAddr turns "*:5555" into ":5555".
func normalizeAddr(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host != "*" {
		return address
	}
	return net.JoinHostPort("", port)
}
