package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"infer-rpc/payload"
)

// Binary payload layout:
//
//	magic "ip" | version | u32 field count | fields...
//
// Each field is u16 name length, name, u8 tag, u32 value length, value. Numeric
// headers are big-endian; array element bytes are stored as-is (little-endian).
const (
	binaryMagic0  byte = 0x69 // 'i'
	binaryMagic1  byte = 0x70 // 'p'
	binaryVersion byte = 0x01
	maxDepth           = 32
)

const (
	tagInt    byte = 1
	tagFloat  byte = 2
	tagString byte = 3
	tagBool   byte = 4
	tagBytes  byte = 5
	tagArray  byte = 6
	tagMap    byte = 7
	tagList   byte = 8
)

type BinaryCodec struct{}

func (c *BinaryCodec) Encode(m payload.Map) ([]byte, error) {
	buf := []byte{binaryMagic0, binaryMagic1, binaryVersion}
	return appendFields(buf, "", m, 0)
}

func (c *BinaryCodec) Decode(data []byte) (payload.Map, error) {
	if len(data) < 3 {
		return nil, &payload.FormatError{Offset: 0, Reason: "short header"}
	}
	if data[0] != binaryMagic0 || data[1] != binaryMagic1 {
		return nil, &payload.FormatError{Offset: 0, Reason: fmt.Sprintf("invalid magic %x", data[0:2])}
	}
	if data[2] != binaryVersion {
		return nil, &payload.FormatError{Offset: 2, Reason: fmt.Sprintf("unsupported version %d", data[2])}
	}
	d := &decoder{data: data, off: 3}
	m, err := d.fields(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("%d trailing bytes", len(d.data)-d.off)
	}
	return m, nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func appendFields(buf []byte, prefix string, m payload.Map, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, &payload.EncodingError{Field: prefix, Type: "nesting too deep"}
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m)))
	for _, f := range m {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if len(f.Name) > math.MaxUint16 {
			return nil, &payload.EncodingError{Field: path, Type: "name too long"}
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Name)))
		buf = append(buf, f.Name...)

		var err error
		buf, err = appendValue(buf, path, f.Value, depth)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// appendValue writes tag, u32 length and the value body.
func appendValue(buf []byte, path string, v any, depth int) ([]byte, error) {
	tag, ok := tagOf(v)
	if !ok {
		return nil, &payload.EncodingError{Field: path, Type: fmt.Sprintf("%T", v)}
	}
	buf = append(buf, tag)
	lenAt := len(buf)
	buf = append(buf, 0, 0, 0, 0)

	switch val := v.(type) {
	case int64:
		buf = binary.BigEndian.AppendUint64(buf, uint64(val))
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(val))
	case string:
		buf = append(buf, val...)
	case bool:
		if val {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case []byte:
		buf = append(buf, val...)
	case payload.Array:
		if err := val.Validate(); err != nil {
			return nil, &payload.EncodingError{Field: path, Type: err.Error()}
		}
		if len(val.Shape) > math.MaxUint8 {
			return nil, &payload.EncodingError{Field: path, Type: "too many dimensions"}
		}
		buf = append(buf, byte(val.DType), byte(len(val.Shape)))
		for _, dim := range val.Shape {
			buf = binary.BigEndian.AppendUint32(buf, uint32(dim))
		}
		buf = append(buf, val.Data...)
	case payload.Map:
		var err error
		if buf, err = appendFields(buf, path, val, depth+1); err != nil {
			return nil, err
		}
	case []any:
		if depth+1 > maxDepth {
			return nil, &payload.EncodingError{Field: path, Type: "nesting too deep"}
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		for i, item := range val {
			var err error
			if buf, err = appendValue(buf, fmt.Sprintf("%s[%d]", path, i), item, depth+1); err != nil {
				return nil, err
			}
		}
	}

	bodyLen := len(buf) - lenAt - 4
	if uint64(bodyLen) > math.MaxUint32 {
		return nil, &payload.EncodingError{Field: path, Type: "value too large"}
	}
	binary.BigEndian.PutUint32(buf[lenAt:lenAt+4], uint32(bodyLen))
	return buf, nil
}

func tagOf(v any) (byte, bool) {
	switch v.(type) {
	case int64:
		return tagInt, true
	case float64:
		return tagFloat, true
	case string:
		return tagString, true
	case bool:
		return tagBool, true
	case []byte:
		return tagBytes, true
	case payload.Array:
		return tagArray, true
	case payload.Map:
		return tagMap, true
	case []any:
		return tagList, true
	}
	return 0, false
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) fail(format string, args ...any) error {
	return &payload.FormatError{Offset: d.off, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) take(n int, what string) ([]byte, error) {
	if n < 0 || len(d.data)-d.off < n {
		return nil, d.fail("truncated %s: need %d bytes, have %d", what, n, len(d.data)-d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u32(what string) (uint32, error) {
	b, err := d.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) fields(depth int) (payload.Map, error) {
	if depth > maxDepth {
		return nil, d.fail("nesting deeper than %d", maxDepth)
	}
	count, err := d.u32("field count")
	if err != nil {
		return nil, err
	}
	// Every field needs at least 7 header bytes; reject absurd counts before allocating.
	if uint64(count)*7 > uint64(len(d.data)-d.off) {
		return nil, d.fail("field count %d exceeds remaining %d bytes", count, len(d.data)-d.off)
	}
	m := make(payload.Map, 0, count)
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		nb, err := d.take(2, "name length")
		if err != nil {
			return nil, err
		}
		name, err := d.take(int(binary.BigEndian.Uint16(nb)), "name")
		if err != nil {
			return nil, err
		}
		key := string(name)
		if _, dup := seen[key]; dup {
			return nil, d.fail("duplicate field %q", key)
		}
		seen[key] = struct{}{}

		v, err := d.value(depth)
		if err != nil {
			return nil, err
		}
		m = append(m, payload.Field{Name: key, Value: v})
	}
	return m, nil
}

func (d *decoder) value(depth int) (any, error) {
	tb, err := d.take(1, "tag")
	if err != nil {
		return nil, err
	}
	tag := tb[0]
	n, err := d.u32("value length")
	if err != nil {
		return nil, err
	}
	start := d.off
	body, err := d.take(int(n), "value")
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagInt, tagFloat:
		if len(body) != 8 {
			return nil, &payload.FormatError{Offset: start, Reason: fmt.Sprintf("numeric value of %d bytes", len(body))}
		}
		bits := binary.BigEndian.Uint64(body)
		if tag == tagInt {
			return int64(bits), nil
		}
		return math.Float64frombits(bits), nil
	case tagString:
		return string(body), nil
	case tagBool:
		if len(body) != 1 || body[0] > 1 {
			return nil, &payload.FormatError{Offset: start, Reason: "invalid bool"}
		}
		return body[0] == 1, nil
	case tagBytes:
		return append([]byte{}, body...), nil
	case tagArray:
		return decodeArray(body, start)
	case tagMap, tagList:
		sub := &decoder{data: body}
		var v any
		if tag == tagMap {
			v, err = sub.fields(depth + 1)
		} else {
			v, err = sub.list(depth + 1)
		}
		if err != nil {
			if fe, ok := err.(*payload.FormatError); ok {
				fe.Offset += start
			}
			return nil, err
		}
		if sub.off != len(body) {
			return nil, &payload.FormatError{Offset: start + sub.off, Reason: "trailing bytes in nested value"}
		}
		return v, nil
	}
	return nil, &payload.FormatError{Offset: start - 5, Reason: fmt.Sprintf("unknown type tag %d", tag)}
}

func (d *decoder) list(depth int) ([]any, error) {
	if depth > maxDepth {
		return nil, d.fail("nesting deeper than %d", maxDepth)
	}
	count, err := d.u32("list length")
	if err != nil {
		return nil, err
	}
	if uint64(count)*5 > uint64(len(d.data)-d.off) {
		return nil, d.fail("list length %d exceeds remaining %d bytes", count, len(d.data)-d.off)
	}
	out := make([]any, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := d.value(depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeArray(body []byte, start int) (payload.Array, error) {
	if len(body) < 2 {
		return payload.Array{}, &payload.FormatError{Offset: start, Reason: "truncated array header"}
	}
	dtype := payload.DType(body[0])
	if !dtype.Valid() {
		return payload.Array{}, &payload.FormatError{Offset: start, Reason: fmt.Sprintf("unknown dtype %d", body[0])}
	}
	ndim := int(body[1])
	if len(body) < 2+4*ndim {
		return payload.Array{}, &payload.FormatError{Offset: start, Reason: "truncated array shape"}
	}
	shape := make([]int, ndim)
	for i := range shape {
		shape[i] = int(binary.BigEndian.Uint32(body[2+4*i:]))
	}
	data := append([]byte{}, body[2+4*ndim:]...)
	arr, err := payload.NewArray(dtype, shape, data)
	if err != nil {
		return payload.Array{}, &payload.FormatError{Offset: start, Reason: err.Error()}
	}
	return arr, nil
}
