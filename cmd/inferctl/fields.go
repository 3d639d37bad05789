package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"infer-rpc/payload"
)

// parseFields builds request data from name:type=value specs. Names must be
// unique; the order given is kept.
func parseFields(specs []string) (payload.Map, error) {
	m := payload.Map{}
	for _, spec := range specs {
		name, value, err := parseField(spec)
		if err != nil {
			return nil, err
		}
		if m.Has(name) {
			return nil, fmt.Errorf("field %q set twice", name)
		}
		m.Set(name, value)
	}
	return m, nil
}

func parseField(spec string) (string, any, error) {
	lhs, raw, ok := strings.Cut(spec, "=")
	if !ok {
		return "", nil, fmt.Errorf("field %q: want name:type=value", spec)
	}
	name, typ, ok := strings.Cut(lhs, ":")
	if !ok || name == "" || typ == "" {
		return "", nil, fmt.Errorf("field %q: want name:type=value", spec)
	}

	var (
		v   any
		err error
	)
	switch typ {
	case "int":
		v, err = strconv.ParseInt(raw, 0, 64)
	case "float":
		v, err = strconv.ParseFloat(raw, 64)
	case "string":
		v = raw
	case "bool":
		v, err = strconv.ParseBool(raw)
	case "bytes":
		v, err = hex.DecodeString(raw)
	default:
		v, err = parseArray(typ, raw)
	}
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", name, err)
	}
	return name, v, nil
}

// parseArray handles dtype or dtype[d0,d1,...] with comma separated values.
// Without a shape the array is one-dimensional; "dtype[]" is a scalar.
func parseArray(typ, raw string) (payload.Array, error) {
	dtypeName, shapeSpec, hasShape := strings.Cut(typ, "[")
	dtype, err := payload.ParseDType(dtypeName)
	if err != nil {
		return payload.Array{}, err
	}

	var parts []string
	if strings.TrimSpace(raw) != "" {
		parts = strings.Split(raw, ",")
	}

	shape := []int{len(parts)}
	if hasShape {
		if shape, err = parseShape(shapeSpec); err != nil {
			return payload.Array{}, err
		}
	}

	switch dtype {
	case payload.Bool:
		return buildArray(shape, parts, strconv.ParseBool)
	case payload.Int8:
		return buildArray(shape, parts, signed[int8](8))
	case payload.Uint8:
		return buildArray(shape, parts, unsigned[uint8](8))
	case payload.Int16:
		return buildArray(shape, parts, signed[int16](16))
	case payload.Uint16:
		return buildArray(shape, parts, unsigned[uint16](16))
	case payload.Int32:
		return buildArray(shape, parts, signed[int32](32))
	case payload.Uint32:
		return buildArray(shape, parts, unsigned[uint32](32))
	case payload.Int64:
		return buildArray(shape, parts, signed[int64](64))
	case payload.Uint64:
		return buildArray(shape, parts, unsigned[uint64](64))
	case payload.Float32:
		return buildArray(shape, parts, floating[float32](32))
	default:
		return buildArray(shape, parts, floating[float64](64))
	}
}

func parseShape(spec string) ([]int, error) {
	inner, ok := strings.CutSuffix(spec, "]")
	if !ok {
		return nil, fmt.Errorf("shape %q: missing ]", "["+spec)
	}
	shape := []int{}
	if strings.TrimSpace(inner) == "" {
		return shape, nil
	}
	for _, d := range strings.Split(inner, ",") {
		dim, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil || dim < 0 {
			return nil, fmt.Errorf("shape %q: bad dimension %q", "["+spec, d)
		}
		shape = append(shape, dim)
	}
	return shape, nil
}

func buildArray[T payload.Element](shape []int, parts []string, parse func(string) (T, error)) (payload.Array, error) {
	values := make([]T, len(parts))
	for i, p := range parts {
		v, err := parse(strings.TrimSpace(p))
		if err != nil {
			return payload.Array{}, fmt.Errorf("element %d: %w", i, err)
		}
		values[i] = v
	}
	return payload.FromSlice(shape, values)
}

func signed[T int8 | int16 | int32 | int64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseInt(s, 0, bits)
		return T(v), err
	}
}

func unsigned[T uint8 | uint16 | uint32 | uint64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseUint(s, 0, bits)
		return T(v), err
	}
}

func floating[T float32 | float64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseFloat(s, bits)
		return T(v), err
	}
}
