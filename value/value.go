// Package value provides the parsed JSON tree: a tagged union over null, bool, number,
// string, array and insertion-ordered object nodes.
package value

import (
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

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
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is immutable once built; the zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	num   number
	str   string
	items []Value
	obj   *Members
}

type number struct {
	text    string
	i       int64
	f       float64
	integer bool
}

func NullValue() Value           { return Value{} }
func BoolValue(b bool) Value     { return Value{kind: Bool, b: b} }
func StringValue(s string) Value { return Value{kind: String, str: s} }

func IntValue(i int64) Value {
	return Value{kind: Number, num: number{text: strconv.FormatInt(i, 10), i: i, f: float64(i), integer: true}}
}

func FloatValue(f float64) Value {
	return Value{kind: Number, num: number{text: strconv.FormatFloat(f, 'g', -1, 64), f: f, i: int64(f)}}
}

// NumberValue wraps an already validated numeric literal.
func NumberValue(text string) (Value, error) {
	num, err := parseNumberText(text)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: Number, num: num}, nil
}

func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, items: items}
}

func ObjectValue(members *Members) Value {
	if members == nil {
		members = NewMembers(0)
	}
	return Value{kind: Object, obj: members}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == Null }
func (v Value) IsScalar() bool { return v.kind != Array && v.kind != Object }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Text returns the string payload.
func (v Value) Text() (string, bool) { return v.str, v.kind == String }

// Int returns the number as int64 when the literal was integral and in range.
func (v Value) Int() (int64, bool) {
	return v.num.i, v.kind == Number && v.num.integer
}

// Float returns the number as float64.
func (v Value) Float() (float64, bool) { return v.num.f, v.kind == Number }

// NumberText returns the literal as it appeared in the source.
func (v Value) NumberText() (string, bool) { return v.num.text, v.kind == Number }

// IsInteger reports a numeric literal without fraction or exponent.
func (v Value) IsInteger() bool { return v.kind == Number && v.num.integer }

func (v Value) Items() []Value { return v.items }

func (v Value) Members() *Members { return v.obj }

// Len returns the number of array items or object members.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return v.obj.Len()
	}
	return 0
}

// Interface converts the tree to untyped Go values: nil, bool, int64, float64, string,
// []interface{} and map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		if v.num.integer {
			return v.num.i
		}
		return v.num.f
	case String:
		return v.str
	case Array:
		result := make([]interface{}, len(v.items))
		for i, item := range v.items {
			result[i] = item.Interface()
		}
		return result
	case Object:
		result := make(map[string]interface{}, v.obj.Len())
		for _, m := range v.obj.list {
			result[m.Key] = m.Value.Interface()
		}
		return result
	}
	return nil
}

// Append writes the compact JSON form of v to dst.
func (v Value) Append(dst []byte) []byte {
	switch v.kind {
	case Bool:
		return strconv.AppendBool(dst, v.b)
	case Number:
		return append(dst, v.num.text...)
	case String:
		return AppendQuoted(dst, v.str, false)
	case Array:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.Append(dst)
		}
		return append(dst, ']')
	case Object:
		dst = append(dst, '{')
		for i, m := range v.obj.list {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendQuoted(dst, m.Key, false)
			dst = append(dst, ':')
			dst = m.Value.Append(dst)
		}
		return append(dst, '}')
	}
	return append(dst, "null"...)
}

func (v Value) String() string { return string(v.Append(nil)) }

// Member is one key/value pair of an object node.
type Member struct {
	Key   string
	Value Value
}

// Members is an object node; iteration follows the source order.
type Members struct {
	list  []Member
	index map[string]int
}

func NewMembers(capacity int) *Members {
	return &Members{list: make([]Member, 0, capacity), index: make(map[string]int, capacity)}
}

// Set adds key or replaces its value in place.
func (m *Members) Set(key string, v Value) {
	if i, ok := m.index[key]; ok {
		m.list[i].Value = v
		return
	}
	m.index[key] = len(m.list)
	m.list = append(m.list, Member{Key: key, Value: v})
}

func (m *Members) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	if i, ok := m.index[key]; ok {
		return m.list[i].Value, true
	}
	return Value{}, false
}

func (m *Members) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Members) Len() int {
	if m == nil {
		return 0
	}
	return len(m.list)
}

func (m *Members) List() []Member {
	if m == nil {
		return nil
	}
	return m.list
}

func (m *Members) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, item := range m.List() {
		keys = append(keys, item.Key)
	}
	return keys
}
