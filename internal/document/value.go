// Package document models JSON-shaped documents of unknown shape as a
// tagged union that keeps object keys in their source order.
package document

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Map
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
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Field is one entry of a Map value.
type Field struct {
	Key   string
	Value Value
}

// Value is a JSON-shaped value. The zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	num    string // number literal as written in the source
	str    string
	items  []Value
	fields []Field
}

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

func StringValue(s string) Value { return Value{kind: String, str: s} }

// NumberValue builds a number from a float, formatted without exponent or
// trailing zeros.
func NumberValue(f float64) Value {
	return Value{kind: Number, num: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NumberLiteral keeps a number exactly as written, e.g. "10" or "12.50".
func NumberLiteral(raw string) Value {
	return Value{kind: Number, num: raw}
}

func ListValue(items ...Value) Value {
	return Value{kind: List, items: items}
}

// MapValue builds an ordered map. A repeated key replaces the earlier value
// in place.
func MapValue(fields ...Field) Value {
	out := make([]Field, 0, len(fields))
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		if i, ok := index[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	return Value{kind: Map, fields: out}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean and whether v is a Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Str returns the string and whether v is a String.
func (v Value) Str() (string, bool) { return v.str, v.kind == String }

// Float returns the number as float64 and whether the conversion succeeded.
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.num, 64)
	return f, err == nil
}

// Items returns the elements of a List (nil otherwise).
func (v Value) Items() []Value {
	if v.kind != List {
		return nil
	}
	return v.items
}

// Fields returns the entries of a Map in order (nil otherwise).
func (v Value) Fields() []Field {
	if v.kind != Map {
		return nil
	}
	return v.fields
}

// Keys returns the keys of a Map in order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Fields()))
	for _, f := range v.Fields() {
		keys = append(keys, f.Key)
	}
	return keys
}

// Get looks up a key in a Map.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.Fields() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Present reports whether key exists in a Map with a non-null value.
func (v Value) Present(key string) bool {
	got, ok := v.Get(key)
	return ok && !got.IsNull()
}

// With returns a copy of the Map with key set. A non-map receiver is
// treated as an empty map.
func (v Value) With(key string, value Value) Value {
	fields := make([]Field, 0, len(v.Fields())+1)
	replaced := false
	for _, f := range v.Fields() {
		if f.Key == key {
			f.Value = value
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, Field{Key: key, Value: value})
	}
	return Value{kind: Map, fields: fields}
}

// Len is the number of list items or map entries.
func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.items)
	case Map:
		return len(v.fields)
	}
	return 0
}

// String returns the display form used in reports: strings verbatim,
// numbers as written, booleans as true/false, null as "", and lists and
// maps as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return ""
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return v.num
	case String:
		return v.str
	default:
		var buf bytes.Buffer
		v.encode(&buf)
		return buf.String()
	}
}

// Interface converts v to plain Go values (map[string]any, []any, float64,
// string, bool, nil). Map order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		f, _ := v.Float()
		return f
	case String:
		return v.str
	case List:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case Map:
		out := make(map[string]any, len(v.fields))
		for _, f := range v.fields {
			out[f.Key] = f.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v with map keys in order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes any JSON value, keeping key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		buf.WriteString(v.num)
	case String:
		writeString(buf, v.str)
	case List:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.encode(buf)
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, f.Key)
			buf.WriteByte(':')
			f.Value.encode(buf)
		}
		buf.WriteByte('}')
	}
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
