// Package jsonval holds a typed representation of arbitrary JSON documents.
//
// Embedded JSON attributes (collection and file notes) are kept as a Value
// rather than as raw strings, so queries can walk the structure without
// re-parsing it.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a JSON value. The zero Value is null.
// Object members keep the order in which they were parsed or added.
type Value struct {
	kind  Kind
	b     bool
	n     json.Number
	s     string
	items []Value
	keys  []string
	props map[string]Value
}

// NullValue returns a null Value.
func NullValue() Value { return Value{} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue returns a numeric Value from its decimal text.
func NumberValue(n json.Number) Value { return Value{kind: Number, n: n} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// ArrayValue returns an array Value holding items.
func ArrayValue(items ...Value) Value {
	return Value{kind: Array, items: items}
}

// NewObject returns an empty object Value.
func NewObject() Value {
	return Value{kind: Object, props: map[string]Value{}}
}

// Set adds or replaces member key of an object Value.
func (v *Value) Set(key string, member Value) {
	if v.kind != Object {
		*v = NewObject()
	}
	if _, exists := v.props[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.props[key] = member
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean held by v.
func (v Value) Bool() bool { return v.b }

// Number returns the number held by v.
func (v Value) Number() json.Number { return v.n }

// Str returns the string held by v.
func (v Value) Str() string { return v.s }

// Items returns the elements of an array Value.
func (v Value) Items() []Value { return v.items }

// Keys returns the member names of an object Value in insertion order.
func (v Value) Keys() []string { return v.keys }

// Get returns the direct member key of an object Value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	member, ok := v.props[key]
	return member, ok
}

// Find searches v for a member named key at any depth and returns the first
// match. Members of an object are checked before descending into them, and
// children are visited in order, so the result is deterministic.
func (v Value) Find(key string) (Value, bool) {
	switch v.kind {
	case Object:
		if member, ok := v.props[key]; ok {
			return member, true
		}
		for _, k := range v.keys {
			if found, ok := v.props[k].Find(key); ok {
				return found, true
			}
		}
	case Array:
		for _, item := range v.items {
			if found, ok := item.Find(key); ok {
				return found, true
			}
		}
	}
	return Value{}, false
}

// Text renders v for substring matching: strings are returned verbatim,
// scalars in their JSON spelling, and containers as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return v.n.String()
	case String:
		return v.s
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

// Contains reports whether the text of v contains substr.
func (v Value) Contains(substr string, caseSensitive bool) bool {
	text := v.Text()
	if !caseSensitive {
		return strings.Contains(strings.ToLower(text), strings.ToLower(substr))
	}
	return strings.Contains(text, substr)
}

// Parse decodes JSON text into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decode(dec)
	if err != nil {
		return Value{}, fmt.Errorf("parsing json: %w", err)
	}
	if _, err := dec.Token(); err == nil {
		return Value{}, fmt.Errorf("parsing json: trailing data")
	}
	return v, nil
}

func decode(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Value{kind: Array}
			for dec.More() {
				item, err := decode(dec)
				if err != nil {
					return Value{}, err
				}
				arr.items = append(arr.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, want string", keyTok)
				}
				member, err := decode(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, member)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// FromAny converts a decoded Go value (as produced by encoding/json or a
// document store driver) into a Value. Strings holding JSON objects or
// arrays are parsed, so notes persisted as text are searchable too.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case string:
		trimmed := strings.TrimSpace(t)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if v, err := Parse([]byte(trimmed)); err == nil {
				return v, nil
			}
		}
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case float64:
		return NumberValue(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), nil
	case float32:
		return NumberValue(json.Number(strconv.FormatFloat(float64(t), 'f', -1, 32))), nil
	case int:
		return NumberValue(json.Number(strconv.FormatInt(int64(t), 10))), nil
	case int32:
		return NumberValue(json.Number(strconv.FormatInt(int64(t), 10))), nil
	case int64:
		return NumberValue(json.Number(strconv.FormatInt(t, 10))), nil
	case []any:
		arr := Value{kind: Array}
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			arr.items = append(arr.items, v)
		}
		return arr, nil
	case map[string]any:
		obj := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	default:
		return Value{}, fmt.Errorf("unsupported json value type %T", x)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if v.n == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.n.String())
		}
	case String:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.props[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Interface converts v back to plain Go values (nil, bool, json.Number,
// string, []any, map[string]any).
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.props[k].Interface()
		}
		return out
	default:
		return nil
	}
}
