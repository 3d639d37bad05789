package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"infer-rpc/payload"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Every value is tagged with its type so the decoder rebuilds the exact same
// Map, arrays included (element bytes travel as base64).
// Pros: human-readable, easy to debug with any TCP tool.
// Cons: larger payload, slower than BinaryCodec for camera-sized arrays.
type JSONCodec struct{}

type jsonDocument struct {
	Fields []jsonField `json:"fields"`
}

type jsonField struct {
	Name string `json:"name"`
	jsonValue
}

type jsonValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	DType string          `json:"dtype,omitempty"`
	Shape []int           `json:"shape,omitempty"`
}

const (
	jsonInt    = "int"
	jsonFloat  = "float"
	jsonString = "string"
	jsonBool   = "bool"
	jsonBytes  = "bytes"
	jsonArray  = "array"
	jsonMap    = "map"
	jsonList   = "list"
)

func (c *JSONCodec) Encode(m payload.Map) ([]byte, error) {
	fields, err := toJSONFields("", m, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonDocument{Fields: fields})
}

func (c *JSONCodec) Decode(data []byte) (payload.Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc jsonDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, jsonFormatError(err)
	}
	if dec.More() {
		return nil, &payload.FormatError{Offset: int(dec.InputOffset()), Reason: "trailing data"}
	}
	if doc.Fields == nil {
		return nil, &payload.FormatError{Reason: "missing fields"}
	}
	return fromJSONFields(doc.Fields, 0)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func toJSONFields(prefix string, m payload.Map, depth int) ([]jsonField, error) {
	if depth > maxDepth {
		return nil, &payload.EncodingError{Field: prefix, Type: "nesting too deep"}
	}
	out := make([]jsonField, 0, len(m))
	for _, f := range m {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		v, err := toJSONValue(path, f.Value, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, jsonField{Name: f.Name, jsonValue: v})
	}
	return out, nil
}

func toJSONValue(path string, v any, depth int) (jsonValue, error) {
	var (
		jv  jsonValue
		raw any
	)
	switch val := v.(type) {
	case int64:
		jv.Type, raw = jsonInt, val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return jsonValue{}, &payload.EncodingError{Field: path, Type: "non-finite float"}
		}
		jv.Type, raw = jsonFloat, val
	case string:
		jv.Type, raw = jsonString, val
	case bool:
		jv.Type, raw = jsonBool, val
	case []byte:
		jv.Type, raw = jsonBytes, val
	case payload.Array:
		if err := val.Validate(); err != nil {
			return jsonValue{}, &payload.EncodingError{Field: path, Type: err.Error()}
		}
		jv.Type, raw = jsonArray, val.Data
		jv.DType = val.DType.String()
		jv.Shape = val.Shape
	case payload.Map:
		fields, err := toJSONFields(path, val, depth+1)
		if err != nil {
			return jsonValue{}, err
		}
		jv.Type, raw = jsonMap, fields
	case []any:
		if depth+1 > maxDepth {
			return jsonValue{}, &payload.EncodingError{Field: path, Type: "nesting too deep"}
		}
		items := make([]jsonValue, 0, len(val))
		for i, item := range val {
			iv, err := toJSONValue(fmt.Sprintf("%s[%d]", path, i), item, depth+1)
			if err != nil {
				return jsonValue{}, err
			}
			items = append(items, iv)
		}
		jv.Type, raw = jsonList, items
	default:
		return jsonValue{}, &payload.EncodingError{Field: path, Type: fmt.Sprintf("%T", v)}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return jsonValue{}, &payload.EncodingError{Field: path, Type: err.Error()}
	}
	jv.Value = b
	return jv, nil
}

func fromJSONFields(fields []jsonField, depth int) (payload.Map, error) {
	if depth > maxDepth {
		return nil, &payload.FormatError{Reason: fmt.Sprintf("nesting deeper than %d", maxDepth)}
	}
	m := make(payload.Map, 0, len(fields))
	for _, f := range fields {
		if m.Has(f.Name) {
			return nil, &payload.FormatError{Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		v, err := fromJSONValue(f.jsonValue, depth)
		if err != nil {
			return nil, err
		}
		m = append(m, payload.Field{Name: f.Name, Value: v})
	}
	return m, nil
}

func fromJSONValue(jv jsonValue, depth int) (any, error) {
	if len(jv.Value) == 0 {
		return nil, &payload.FormatError{Reason: fmt.Sprintf("%s value missing", jv.Type)}
	}
	switch jv.Type {
	case jsonInt:
		return scalar[int64](jv)
	case jsonFloat:
		return scalar[float64](jv)
	case jsonString:
		return scalar[string](jv)
	case jsonBool:
		return scalar[bool](jv)
	case jsonBytes:
		return scalar[[]byte](jv)
	case jsonArray:
		var data []byte
		if err := unmarshalValue(jv, &data); err != nil {
			return nil, err
		}
		dtype, err := payload.ParseDType(jv.DType)
		if err != nil {
			return nil, &payload.FormatError{Reason: err.Error()}
		}
		arr, err := payload.NewArray(dtype, jv.Shape, data)
		if err != nil {
			return nil, &payload.FormatError{Reason: err.Error()}
		}
		return arr, nil
	case jsonMap:
		var fields []jsonField
		if err := unmarshalValue(jv, &fields); err != nil {
			return nil, err
		}
		return fromJSONFields(fields, depth+1)
	case jsonList:
		if depth+1 > maxDepth {
			return nil, &payload.FormatError{Reason: fmt.Sprintf("nesting deeper than %d", maxDepth)}
		}
		var items []jsonValue
		if err := unmarshalValue(jv, &items); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := fromJSONValue(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, &payload.FormatError{Reason: fmt.Sprintf("unknown type tag %q", jv.Type)}
}

func scalar[T any](jv jsonValue) (any, error) {
	var v T
	if err := unmarshalValue(jv, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalValue(jv jsonValue, out any) error {
	if err := json.Unmarshal(jv.Value, out); err != nil {
		return &payload.FormatError{Reason: fmt.Sprintf("%s value: %v", jv.Type, err)}
	}
	return nil
}

func jsonFormatError(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &payload.FormatError{Offset: int(syntaxErr.Offset), Reason: syntaxErr.Error()}
	}
	return &payload.FormatError{Reason: err.Error()}
}
