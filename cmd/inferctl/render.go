package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"infer-rpc/payload"
)

// previewLimit caps how many array elements or bytes a cell shows.
const previewLimit = 8

func renderPayload(m payload.Map) string {
	if len(m) == 0 {
		return "(empty reply)"
	}
	return renderTable(
		[]string{"Field", "Kind", "DType", "Shape", "Value"},
		payloadRows("", m),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// payloadRows flattens nested maps into dotted names.
func payloadRows(prefix string, m payload.Map) [][]string {
	var rows [][]string
	for _, f := range m {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}
		if sub, ok := f.Value.(payload.Map); ok && len(sub) > 0 {
			rows = append(rows, payloadRows(name, sub)...)
			continue
		}
		rows = append(rows, valueRow(name, f.Value))
	}
	return rows
}

func valueRow(name string, v any) []string {
	switch val := v.(type) {
	case int64:
		return []string{name, "int", "", "", strconv.FormatInt(val, 10)}
	case float64:
		return []string{name, "float", "", "", strconv.FormatFloat(val, 'g', -1, 64)}
	case string:
		return []string{name, "string", "", "", val}
	case bool:
		return []string{name, "bool", "", "", strconv.FormatBool(val)}
	case []byte:
		shown := val
		if len(shown) > previewLimit {
			shown = shown[:previewLimit]
		}
		preview := hex.EncodeToString(shown)
		if len(val) > previewLimit {
			preview += "..."
		}
		return []string{name, "bytes", "", strconv.Itoa(len(val)), preview}
	case payload.Array:
		return []string{name, "array", val.DType.String(), formatShape(val.Shape), arrayPreview(val)}
	case payload.Map:
		return []string{name, "map", "", "0", "{}"}
	case []any:
		return []string{name, "list", "", strconv.Itoa(len(val)), fmt.Sprintf("%d items", len(val))}
	}
	return []string{name, fmt.Sprintf("%T", v), "", "", fmt.Sprint(v)}
}

func formatShape(shape []int) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(dims, ", ") + ")"
}

func arrayPreview(a payload.Array) string {
	switch a.DType {
	case payload.Bool:
		return previewValues[bool](a)
	case payload.Int8:
		return previewValues[int8](a)
	case payload.Uint8:
		return previewValues[uint8](a)
	case payload.Int16:
		return previewValues[int16](a)
	case payload.Uint16:
		return previewValues[uint16](a)
	case payload.Int32:
		return previewValues[int32](a)
	case payload.Uint32:
		return previewValues[uint32](a)
	case payload.Int64:
		return previewValues[int64](a)
	case payload.Uint64:
		return previewValues[uint64](a)
	case payload.Float32:
		return previewValues[float32](a)
	case payload.Float64:
		return previewValues[float64](a)
	}
	return a.String()
}

func previewValues[T payload.Element](a payload.Array) string {
	values, err := payload.Values[T](a)
	if err != nil {
		return err.Error()
	}
	shown := values
	if len(shown) > previewLimit {
		shown = shown[:previewLimit]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = fmt.Sprint(v)
	}
	out := "[" + strings.Join(parts, " ")
	if len(values) > previewLimit {
		out += " ..."
	}
	return out + "]"
}
