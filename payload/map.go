// Package payload defines the values carried by requests and replies: an
// ordered mapping of named values whose leaves are scalars, strings, byte
// vectors and typed numeric arrays.
package payload

import (
	"bytes"
	"fmt"
	"math"
)

// Field is one named entry of a Map.
type Field struct {
	Name  string
	Value any
}

// Map is an ordered set of named values. The zero value is an empty map.
//
// Supported values are int64, float64, string, bool, []byte, Array, Map and
// []any whose elements are themselves supported.
type Map []Field

// Set stores v under name, replacing an existing entry in place. Go int and
// *Array are normalised to int64 and Array; everything else is stored as is
// and checked when the map is encoded.
func (m *Map) Set(name string, v any) {
	v = normalize(v)
	for i := range *m {
		if (*m)[i].Name == name {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Field{Name: name, Value: v})
}

// Get returns the value stored under name.
func (m Map) Get(name string) (any, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (m Map) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Delete removes name, keeping the order of the remaining entries.
func (m *Map) Delete(name string) {
	for i := range *m {
		if (*m)[i].Name == name {
			*m = append((*m)[:i], (*m)[i+1:]...)
			return
		}
	}
}

func (m Map) Len() int {
	return len(m)
}

func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Name
	}
	return keys
}

// GetFloat returns a float64 entry.
func (m Map) GetFloat(name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// GetString returns a string entry.
func (m Map) GetString(name string) (string, bool) {
	v, ok := m.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetArray returns an Array entry.
func (m Map) GetArray(name string) (Array, bool) {
	v, ok := m.Get(name)
	if !ok {
		return Array{}, false
	}
	a, ok := v.(Array)
	return a, ok
}

// GetMap returns a nested Map entry.
func (m Map) GetMap(name string) (Map, bool) {
	v, ok := m.Get(name)
	if !ok {
		return nil, false
	}
	sub, ok := v.(Map)
	return sub, ok
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for i, f := range m {
		out[i] = Field{Name: f.Name, Value: cloneValue(f.Value)}
	}
	return out
}

// Equal reports deep, order-sensitive equality. Floats compare by bit pattern
// so NaN payloads survive a round trip.
func (m Map) Equal(other Map) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i].Name != other[i].Name || !valueEqual(m[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

// Validate walks m and returns an *EncodingError for the first unsupported
// value.
func (m Map) Validate() error {
	return validateMap("", m)
}

func validateMap(prefix string, m Map) error {
	for _, f := range m {
		if err := validateValue(join(prefix, f.Name), f.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, v any) error {
	switch val := v.(type) {
	case int64, float64, string, bool, []byte:
		return nil
	case Array:
		if err := val.Validate(); err != nil {
			return &EncodingError{Field: path, Type: err.Error()}
		}
		return nil
	case Map:
		return validateMap(path, val)
	case []any:
		for i, item := range val {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
		return nil
	default:
		return &EncodingError{Field: path, Type: fmt.Sprintf("%T", v)}
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case *Array:
		if val == nil {
			return nil
		}
		return *val
	}
	return v
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return append([]byte{}, val...)
	case Array:
		return val.Clone()
	case Map:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && math.Float64bits(av) == math.Float64bits(bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case Array:
		bv, ok := b.(Array)
		return ok && av.Equal(bv)
	case Map:
		bv, ok := b.(Map)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}
