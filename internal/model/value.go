package model

import (
	"encoding/json"
	"strconv"
)

// ValueKind tags the variant held by a Value
type ValueKind int

const (
	ValueNumber ValueKind = iota + 1
	ValueString
	ValueList
	ValueMap
)

// Value is a semi-structured field value extracted from a source response:
// exactly one of number, string, list or map.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	list []Value
	m    map[string]Value
}

// NumberValue wraps a float
func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }

// StringValue wraps a string
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

// ListValue wraps an ordered sequence
func ListValue(vs ...Value) Value {
	out := make([]Value, len(vs))
	copy(out, vs)
	return Value{kind: ValueList, list: out}
}

// StringsValue wraps a list of strings
func StringsValue(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = StringValue(s)
	}
	return Value{kind: ValueList, list: vs}
}

// MapValue wraps a nested mapping
func MapValue(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return Value{kind: ValueMap, m: out}
}

// Kind returns the variant tag; zero for the zero Value
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the float when v holds a number
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// Str returns the string when v holds a string
func (v Value) Str() (string, bool) {
	return v.str, v.kind == ValueString
}

// List returns the elements when v holds a list
func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == ValueList
}

// Map returns the entries when v holds a map
func (v Value) Map() (map[string]Value, bool) {
	return v.m, v.kind == ValueMap
}

// Strings flattens a string or (nested) lists of strings; other kinds yield nil
func (v Value) Strings() []string {
	switch v.kind {
	case ValueString:
		return []string{v.str}
	case ValueList:
		out := make([]string, 0, len(v.list))
		for _, e := range v.list {
			out = append(out, e.Strings()...)
		}
		return out
	}
	return nil
}

// String renders the value for display
func (v Value) String() string {
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case ValueString:
		return v.str
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// MarshalJSON renders the held variant as plain JSON
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueString:
		return json.Marshal(v.str)
	case ValueList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case ValueMap:
		return json.Marshal(v.m)
	}
	return []byte("null"), nil
}

// FromJSON converts a decoded JSON value (as produced by encoding/json into
// interface{}) into a Value. Nulls and booleans have no Value form.
func FromJSON(raw interface{}) (Value, bool) {
	switch t := raw.(type) {
	case float64:
		return NumberValue(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false
		}
		return NumberValue(f), true
	case int:
		return NumberValue(float64(t)), true
	case string:
		return StringValue(t), true
	case []interface{}:
		vs := make([]Value, 0, len(t))
		for _, e := range t {
			if ev, ok := FromJSON(e); ok {
				vs = append(vs, ev)
			}
		}
		return Value{kind: ValueList, list: vs}, true
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			if ev, ok := FromJSON(e); ok {
				m[k] = ev
			}
		}
		return Value{kind: ValueMap, m: m}, true
	}
	return Value{}, false
}
