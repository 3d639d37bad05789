package codec

import (
	"fmt"
	"strings"

	"infer-rpc/payload"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

// Codec turns a payload.Map into one self-describing blob and back.
type Codec interface {
	Encode(m payload.Map) ([]byte, error)
	Decode(data []byte) (payload.Map, error)
	Type() CodecType // 0=JSON, 1=Binary
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseType maps a config or flag value onto a CodecType.
func ParseType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "binary", "bin":
		return CodecTypeBinary, nil
	case "json":
		return CodecTypeJSON, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}
