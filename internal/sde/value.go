// Package sde provides the data model and loader for versioned game-data
// snapshots: entities keyed by integer ID, localized names, and a tree of
// typed attribute values.
package sde

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMapping
)

// String returns the kind name for logging and delta output.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the attribute types a dataset record can
// carry: string, number, bool, null, ordered list, or named mapping.
// All recursive comparison and serialization dispatch on the kind tag,
// never on runtime type inspection.
//
// The zero Value is null.
type Value struct {
	kind    Kind
	str     string
	num     float64
	boolean bool
	list    []Value
	mapping map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a number.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// List wraps an ordered list of values.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Mapping wraps a named mapping of values.
func Mapping(m map[string]Value) Value { return Value{kind: KindMapping, mapping: m} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// Boolean returns the bool payload. Valid only for KindBool.
func (v Value) Boolean() bool { return v.boolean }

// Items returns the list payload. Valid only for KindList.
func (v Value) Items() []Value { return v.list }

// Len returns the number of list items or mapping entries, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMapping:
		return len(v.mapping)
	default:
		return 0
	}
}

// Get returns the mapping entry for key. Valid only for KindMapping.
func (v Value) Get(key string) (Value, bool) {
	val, ok := v.mapping[key]
	return val, ok
}

// Keys returns the mapping keys in sorted order for deterministic walks.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.mapping))
	for k := range v.mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality. Values of different kinds are never equal;
// a type change counts as a modification even when the rendering matches.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.boolean == o.boolean
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.mapping) != len(o.mapping) {
			return false
		}
		for k, a := range v.mapping {
			b, ok := o.mapping[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a decoded JSON value (any/json.Number tree) into a Value.
// Unknown Go types fail rather than being coerced silently.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			m[k] = v
		}
		return Mapping(m), nil
	default:
		return Null(), fmt.Errorf("unsupported attribute type %T", x)
	}
}

// EncodeJSON renders the value as canonical JSON: mapping keys sorted,
// no insignificant whitespace. Identical values always encode to identical
// bytes, which the index store relies on.
func (v Value) EncodeJSON() string {
	var sb strings.Builder
	v.encodeTo(&sb)
	return sb.String()
}

func (v Value) encodeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		b, _ := json.Marshal(v.str)
		sb.Write(b)
	case KindNumber:
		sb.WriteString(formatNumber(v.num))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.boolean))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.encodeTo(sb)
		}
		sb.WriteByte(']')
	case KindMapping:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			v.mapping[k].encodeTo(sb)
		}
		sb.WriteByte('}')
	}
}

// formatNumber renders integral values without a fractional part.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DecodeJSON parses canonical or arbitrary JSON into a Value.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), err
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.EncodeJSON()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
