package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind identifies the dynamic type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a coerced script variable value.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  bool // str holds a non-integral JSON number literal
	i    int64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// ArrayValue returns an array Value.
func ArrayValue(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// ObjectValue returns an object Value.
func ObjectValue(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload. Non-integral numbers found inside
// JSON literals are reported as strings holding their literal text.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

func (v Value) AsObject() (map[string]Value, bool) {
	return v.obj, v.kind == KindObject
}

// Interface converts v to plain Go values: nil, string, int64, bool,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		if v.num {
			return json.Number(v.str)
		}
		return v.str
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Decode projects v onto dst using JSON field mapping.
func (v Value) Decode(dst any) error {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Errorf("marshal %s value: %w", v.kind, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s value: %w", v.kind, err)
	}
	return nil
}

// parseJSON decodes a complete JSON document into a Value.
func parseJSON(raw string) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("trailing data after json value")
	}
	return fromJSON(decoded), nil
}

func fromJSON(x any) Value {
	switch t := x.(type) {
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i)
		}
		return Value{kind: KindString, str: t.String(), num: true}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromJSON(item)
		}
		return ArrayValue(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = fromJSON(item)
		}
		return ObjectValue(m)
	default:
		return NullValue()
	}
}
