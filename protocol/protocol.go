// Package protocol implements the binary frame protocol for infer-rpc.
//
// It solves TCP's sticky packet problem by using a fixed-size 14-byte header
// followed by a variable-length body. The receiver reads the header first to
// determine the body length, then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │ bodyLen │    body ...    │
//	│ irp  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic number bytes: "irp" (inference rpc protocol).
// Used to reject non-protocol connections (e.g., HTTP clients hitting the wrong port).
const (
	MagicNumber byte = 0x69 // 'i'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (seq) + 4 (bodyLen)

	// DefaultMaxBodyLen bounds a single frame. Large enough for several
	// uncompressed camera frames.
	DefaultMaxBodyLen uint32 = 64 << 20
)

// MsgType distinguishes request, response, and error frames.
type MsgType byte

const (
	MsgTypeRequest  MsgType = 0 // Client → Server request payload
	MsgTypeResponse MsgType = 1 // Server → Client result payload
	MsgTypeError    MsgType = 2 // Server → Client error sentinel
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeRequest:
		return "request"
	case MsgTypeResponse:
		return "response"
	case MsgTypeError:
		return "error"
	}
	return fmt.Sprintf("msgtype(%d)", byte(t))
}

// Codec type constants, mirrored from codec package to avoid circular import.
const (
	CodecTypeJSON   byte = 0
	CodecTypeBinary byte = 1
)

var (
	ErrInvalidMagic       = errors.New("protocol: invalid magic number")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrUnsupportedCodec   = errors.New("protocol: unsupported codec type")
	ErrUnsupportedMsgType = errors.New("protocol: unsupported message type")
	ErrBodyTooLarge       = errors.New("protocol: body exceeds limit")
)

// Header represents the fixed 14-byte frame header.
type Header struct {
	CodecType byte    // Serialization format: 0=JSON, 1=Binary
	MsgType   MsgType // Request, Response, or Error
	Seq       uint32  // Echoed by the server; lets the client detect a stale reply
	BodyLen   uint32  // Body length in bytes
}

// Encode writes a complete frame (header + body) to w. BodyLen is taken from
// body, whatever h says.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint64(len(body)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}
	h.BodyLen = uint32(len(body))

	// One buffer, one Write: a frame never reaches the socket half-written by us.
	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], h.BodyLen)
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

// Decode reads a complete frame using DefaultMaxBodyLen.
func Decode(r io.Reader) (*Header, []byte, error) {
	return DecodeWithLimit(r, DefaultMaxBodyLen)
}

// DecodeWithLimit reads a complete frame (header + body) from r.
// It validates the magic number, version, codec type, and message type, and
// refuses bodies larger than maxBody before allocating them.
// io.EOF means the peer closed between frames; io.ErrUnexpectedEOF means it
// closed mid-frame.
func DecodeWithLimit(r io.Reader, maxBody uint32) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("%w: %x", ErrInvalidMagic, headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, headerBuf[3])
	}
	if headerBuf[4] != CodecTypeJSON && headerBuf[4] != CodecTypeBinary {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedCodec, headerBuf[4])
	}
	msgType := MsgType(headerBuf[5])
	if msgType != MsgTypeRequest && msgType != MsgTypeResponse && msgType != MsgTypeError {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedMsgType, headerBuf[5])
	}

	seq := binary.BigEndian.Uint32(headerBuf[6:10])
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])
	if bodyLen > maxBody {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, bodyLen, maxBody)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   msgType,
		Seq:       seq,
		BodyLen:   bodyLen,
	}, body, nil
}
