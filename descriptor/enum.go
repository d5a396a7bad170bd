package descriptor

import (
	"reflect"
	"sync"
)

// Enum maps the constants of an integer type to symbolic names.
type Enum struct {
	Type   reflect.Type
	names  map[int64]string
	values map[string]int64
}

var enums sync.Map // map[reflect.Type]*Enum

// RegisterEnum binds symbolic names to the values of an integer kind type.
func RegisterEnum(rType reflect.Type, values map[string]int64) *Enum {
	e := &Enum{Type: rType, names: make(map[int64]string, len(values)), values: make(map[string]int64, len(values))}
	for name, v := range values {
		e.values[name] = v
		if _, ok := e.names[v]; !ok {
			e.names[v] = name
		}
	}
	enums.Store(rType, e)
	Register(rType)
	return e
}

func EnumOf(rType reflect.Type) (*Enum, bool) {
	v, ok := enums.Load(rType)
	if !ok {
		return nil, false
	}
	return v.(*Enum), true
}

// Name returns the symbol for an integer kind value.
func (e *Enum) Name(v reflect.Value) (string, bool) {
	name, ok := e.names[bits(v)]
	return name, ok
}

// Value returns the constant for an exact, case-sensitive symbol.
func (e *Enum) Value(name string) (reflect.Value, bool) {
	raw, ok := e.values[name]
	if !ok {
		return reflect.Value{}, false
	}
	v := reflect.New(e.Type).Elem()
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(uint64(raw))
	default:
		v.SetInt(raw)
	}
	return v, true
}

func bits(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	}
	return v.Int()
}
