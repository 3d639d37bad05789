package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DType is the element type tag of an Array. Names follow numpy.
type DType uint8

const (
	Bool DType = iota + 1
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	Bool:    "bool",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	_, ok := dtypeNames[d]
	return ok
}

// ItemSize is the width of one element in bytes, 0 for unknown types.
func (d DType) ItemSize() int {
	switch d {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// ParseDType maps a numpy style name back to its DType.
func ParseDType(name string) (DType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range dtypeNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("payload: unknown dtype %q", name)
}

// Array is a dense multi-dimensional numeric array. Data holds the elements in
// row-major order, little-endian, exactly NumElements(Shape)*DType.ItemSize()
// bytes. A zero-length Shape is a scalar holding one element.
type Array struct {
	DType DType
	Shape []int
	Data  []byte
}

// Element is the set of Go types that map onto a DType.
type Element interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

func dtypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// NumElements returns the element count for shape, or an error when a
// dimension is negative or the product overflows.
func NumElements(shape []int) (int, error) {
	n := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("payload: negative dimension %d at axis %d", dim, i)
		}
		if dim != 0 && n > math.MaxInt32/dim {
			return 0, fmt.Errorf("payload: shape %v too large", shape)
		}
		n *= dim
	}
	return n, nil
}

// NewArray wraps raw element bytes. The data length must match the shape.
func NewArray(dtype DType, shape []int, data []byte) (Array, error) {
	a := Array{DType: dtype, Shape: append([]int{}, shape...), Data: data}
	if err := a.Validate(); err != nil {
		return Array{}, err
	}
	return a, nil
}

// FromSlice builds an Array of the given shape from values.
func FromSlice[T Element](shape []int, values []T) (Array, error) {
	n, err := NumElements(shape)
	if err != nil {
		return Array{}, err
	}
	if n != len(values) {
		return Array{}, fmt.Errorf("payload: shape %v holds %d elements, got %d values", shape, n, len(values))
	}
	buf := bytes.NewBuffer(make([]byte, 0, n*dtypeOf[T]().ItemSize()))
	if err := binary.Write(buf, binary.LittleEndian, values); err != nil {
		return Array{}, err
	}
	return Array{DType: dtypeOf[T](), Shape: append([]int{}, shape...), Data: buf.Bytes()}, nil
}

// Values decodes the elements of a. T must match the array's DType exactly.
func Values[T Element](a Array) ([]T, error) {
	if want := dtypeOf[T](); a.DType != want {
		return nil, fmt.Errorf("payload: array is %s, not %s", a.DType, want)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	out := make([]T, a.Len())
	if err := binary.Read(bytes.NewReader(a.Data), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Len is the number of elements described by the shape.
func (a Array) Len() int {
	n, err := NumElements(a.Shape)
	if err != nil {
		return 0
	}
	return n
}

// Equal compares dtype, shape and element bytes.
func (a Array) Equal(b Array) bool {
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return bytes.Equal(a.Data, b.Data)
}

// Clone returns a deep copy.
func (a Array) Clone() Array {
	return Array{
		DType: a.DType,
		Shape: append([]int{}, a.Shape...),
		Data:  append([]byte{}, a.Data...),
	}
}

func (a Array) String() string {
	return fmt.Sprintf("%s%v", a.DType, a.Shape)
}

// Validate checks the dtype and that Data matches the shape.
func (a Array) Validate() error {
	if !a.DType.Valid() {
		return fmt.Errorf("payload: unknown dtype %d", uint8(a.DType))
	}
	n, err := NumElements(a.Shape)
	if err != nil {
		return err
	}
	if want := n * a.DType.ItemSize(); want != len(a.Data) {
		return fmt.Errorf("payload: %s%v needs %d data bytes, has %d", a.DType, a.Shape, want, len(a.Data))
	}
	return nil
}
