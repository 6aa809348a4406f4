package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/valyala/fastjson"
)

// Value is a typed JSON value carried in event properties.
// The set of implementations is closed: Null, Text, Number, Bool, Object and Array.
type Value interface {
	json.Marshaler
	isValue()
}

// Null is the JSON null literal
type Null struct{}

// Text is a JSON string
type Text string

// Number is a JSON number kept as its literal text ("42", "1.5e3"), so rendering never
// loses precision or changes notation
type Number string

// Bool is a JSON boolean
type Bool bool

// Member is one key/value pair of an Object
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object with members in source order
type Object []Member

// Array is a JSON array
type Array []Value

func (Null) isValue()   {}
func (Text) isValue()   {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Object) isValue() {}
func (Array) isValue()  {}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (t Text) MarshalJSON() ([]byte, error) { return json.Marshal(string(t)) }

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	return []byte(n), nil
}

func (b Bool) MarshalJSON() ([]byte, error) { return []byte(strconv.FormatBool(bool(b))), nil }

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalValue(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}

// Render returns the default string rendering of a value: strings unquoted, numbers verbatim,
// booleans as true/false, null as "null", objects and arrays as compact JSON.
func Render(v Value) string {
	switch v := v.(type) {
	case nil, Null:
		return "null"
	case Text:
		return string(v)
	case Number:
		return string(v)
	case Bool:
		return strconv.FormatBool(bool(v))
	case Object, Array:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	default:
		panic(fmt.Sprintf("domain: unexpected value type %T", v))
	}
}

// FromFastJSON converts a fastjson value into a Value. The result does not reference
// parser memory and stays valid after the parser is reused.
func FromFastJSON(v *fastjson.Value) Value {
	if v == nil {
		return Null{}
	}

	switch v.Type() {
	case fastjson.TypeString:
		sb, _ := v.StringBytes()
		return Text(string(sb))
	case fastjson.TypeNumber:
		return Number(v.String())
	case fastjson.TypeTrue:
		return Bool(true)
	case fastjson.TypeFalse:
		return Bool(false)
	case fastjson.TypeObject:
		o, _ := v.Object()
		members := make(Object, 0, o.Len())
		o.Visit(func(key []byte, val *fastjson.Value) {
			members = append(members, Member{Key: string(key), Value: FromFastJSON(val)})
		})
		return members
	case fastjson.TypeArray:
		items, _ := v.Array()
		arr := make(Array, 0, len(items))
		for _, item := range items {
			arr = append(arr, FromFastJSON(item))
		}
		return arr
	default:
		return Null{}
	}
}

// ParseValue parses JSON text into a Value
func ParseValue(data []byte) (Value, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return FromFastJSON(v), nil
}

// Properties maps property names to typed values. Keys are case-sensitive.
type Properties map[string]Value

// ParseProperties rebuilds properties from their stored JSON object text.
// Empty input, "null" and "{}" yield nil properties.
func ParseProperties(data string) (Properties, error) {
	if data == "" {
		return nil, nil
	}

	v, err := ParseValue([]byte(data))
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case Null:
		return nil, nil
	case Object:
		if len(v) == 0 {
			return nil, nil
		}
		props := make(Properties, len(v))
		for _, m := range v {
			props[m.Key] = m.Value
		}
		return props, nil
	default:
		return nil, fmt.Errorf("properties must be a JSON object, got %T", v)
	}
}

// Encode returns the JSON object text stored in the properties column ("{}" when empty)
func (p Properties) Encode() (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]Value(p))
	if err != nil {
		return "", fmt.Errorf("failed to encode properties: %w", err)
	}
	return string(b), nil
}
