// Package properties normalizes structured event properties into a
// uniform, recursively typed form.
package properties

import (
	"encoding/json"
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// Kind tells which variant a Value holds.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Map is a normalized property mapping.
type Map map[string]Value

// Value is a scalar, a nested Map or a sequence of Values.
type Value struct {
	kind     Kind
	scalar   any
	mapping  Map
	sequence []Value
}

// Scalar wraps v without inspecting it.
func Scalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// Mapping wraps an already normalized mapping.
func Mapping(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMapping, mapping: m}
}

// Sequence wraps already normalized elements.
func Sequence(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindSequence, sequence: vs}
}

func (v Value) Kind() Kind { return v.kind }

// Scalar returns the raw scalar. ok is false for mappings and sequences.
func (v Value) Scalar() (any, bool) {
	return v.scalar, v.kind == KindScalar
}

// Mapping returns the nested mapping. ok is false for other kinds.
func (v Value) Mapping() (Map, bool) {
	return v.mapping, v.kind == KindMapping
}

// Sequence returns the elements. ok is false for other kinds.
func (v Value) Sequence() ([]Value, bool) {
	return v.sequence, v.kind == KindSequence
}

// Interface converts v back into plain Go values (map[string]any, []any and
// the original scalars).
func (v Value) Interface() any {
	switch v.kind {
	case KindMapping:
		return v.mapping.Interface()
	case KindSequence:
		out := make([]any, len(v.sequence))
		for i, e := range v.sequence {
			out[i] = e.Interface()
		}
		return out
	}
	return v.scalar
}

// Interface converts m back into a map[string]any.
func (m Map) Interface() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// String renders the value as label text. Scalars use their natural text
// form and nil renders empty. Mappings and sequences render as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindMapping, KindSequence:
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(b)
	}
	switch s := v.scalar.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v.scalar)
}

// Normalize converts a raw property mapping into a Map. A nil mapping
// yields an empty Map.
func Normalize(props map[string]any) Map {
	out := make(Map, len(props))
	for k, v := range props {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue converts a single raw value. Maps keyed by strings become
// mappings, slices and arrays (except byte slices) become sequences, and
// everything else passes through as a scalar.
func NormalizeValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return Scalar(nil)
	case map[string]any:
		return Mapping(Normalize(t))
	case []any:
		seq := make([]Value, len(t))
		for i, e := range t {
			seq[i] = NormalizeValue(e)
		}
		return Sequence(seq...)
	case string, bool, json.Number, float64, int, int64, []byte:
		return Scalar(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Scalar(v)
		}
		m := make(Map, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = NormalizeValue(iter.Value().Interface())
		}
		return Mapping(m)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Scalar(v)
		}
		seq := make([]Value, rv.Len())
		for i := range seq {
			seq[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return Sequence(seq...)
	}
	return Scalar(v)
}
