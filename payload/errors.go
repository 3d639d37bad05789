package payload

import (
	"errors"
	"fmt"
)

var (
	ErrFormat   = errors.New("payload: malformed data")
	ErrEncoding = errors.New("payload: unsupported value")
)

// FormatError reports bytes that cannot be decoded into a Map: truncated input,
// an unknown type tag, or an array whose shape disagrees with its data length.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("payload: malformed data at offset %d: %s", e.Offset, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// EncodingError reports a value that has no wire representation. Field is the
// dotted path of the offending entry.
type EncodingError struct {
	Field string
	Type  string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("payload: field %q has unsupported type %s", e.Field, e.Type)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}
