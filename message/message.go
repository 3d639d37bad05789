// Package message defines what travels inside a protocol frame.
//
// A request is a payload.Map shaped {"endpoint": <string>, "data": <map>}; a
// reply is either the handler's result map or the error sentinel. The sentinel
// is a fixed byte sequence that no codec can produce, so a reply is always
// exactly one of the two forms.
package message

import (
	"bytes"
	"fmt"

	"infer-rpc/payload"
)

const (
	FieldEndpoint = "endpoint"
	FieldData     = "data"

	// DefaultEndpoint is used when a request carries no endpoint field. Older
	// clients only ever asked for an action.
	DefaultEndpoint = "get_action"
)

// Request carries the data for a single inference call.
//
//   - Endpoint names a registered handler, e.g. "get_action" or "ping".
//   - Data is sent only when HasData is set; handlers that take no input never see it.
type Request struct {
	Endpoint string
	Data     payload.Map
	HasData  bool
}

// NewRequest builds a request. A nil data map means "no data field".
func NewRequest(endpoint string, data payload.Map) *Request {
	return &Request{Endpoint: endpoint, Data: data, HasData: data != nil}
}

// ToMap returns the wire form of r.
func (r *Request) ToMap() payload.Map {
	m := payload.Map{{Name: FieldEndpoint, Value: r.Endpoint}}
	if r.HasData {
		data := r.Data
		if data == nil {
			data = payload.Map{}
		}
		m = append(m, payload.Field{Name: FieldData, Value: data})
	}
	return m
}

// ParseRequest reads a decoded request map. A missing endpoint falls back to
// DefaultEndpoint and missing data is an empty map; a field of the wrong kind
// is a *payload.FormatError.
func ParseRequest(m payload.Map) (*Request, error) {
	req := &Request{Endpoint: DefaultEndpoint, Data: payload.Map{}}
	if v, ok := m.Get(FieldEndpoint); ok {
		name, ok := v.(string)
		if !ok {
			return nil, &payload.FormatError{Reason: fmt.Sprintf("endpoint is %T, want string", v)}
		}
		req.Endpoint = name
	}
	if v, ok := m.Get(FieldData); ok {
		data, ok := v.(payload.Map)
		if !ok {
			return nil, &payload.FormatError{Reason: fmt.Sprintf("data is %T, want map", v)}
		}
		req.Data = data
		req.HasData = true
	}
	return req, nil
}

// ErrorSentinel starts every error reply. Binary payloads start with 'i' and
// JSON payloads with '{', so the two can never be confused.
var ErrorSentinel = []byte("ERROR")

// Code says which stage of request handling failed. Detail stays in the
// server log.
type Code byte

const (
	CodeUnknown Code = iota
	CodeMalformedRequest
	CodeUnknownEndpoint
	CodeHandlerFailed
	CodeEncodeFailed
	CodeOverloaded
)

func (c Code) String() string {
	switch c {
	case CodeMalformedRequest:
		return "malformed request"
	case CodeUnknownEndpoint:
		return "unknown endpoint"
	case CodeHandlerFailed:
		return "handler failed"
	case CodeEncodeFailed:
		return "encode failed"
	case CodeOverloaded:
		return "overloaded"
	}
	return "unknown error"
}

// ErrorReply returns the sentinel followed by the code byte.
func ErrorReply(code Code) []byte {
	out := make([]byte, 0, len(ErrorSentinel)+1)
	out = append(out, ErrorSentinel...)
	return append(out, byte(code))
}

// IsErrorReply reports whether body starts with the sentinel.
func IsErrorReply(body []byte) bool {
	return bytes.HasPrefix(body, ErrorSentinel)
}

// ParseErrorReply extracts the code from an error reply. A bare sentinel, as
// sent by servers that carry no code, yields CodeUnknown.
func ParseErrorReply(body []byte) (Code, bool) {
	if !IsErrorReply(body) {
		return 0, false
	}
	rest := body[len(ErrorSentinel):]
	if len(rest) != 1 {
		return CodeUnknown, true
	}
	return Code(rest[0]), true
}
