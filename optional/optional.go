// Package optional provides a present/absent wrapper that encodes as the wrapped value or {}.
package optional

import (
	"reflect"

	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/value"
)

// Optional is either Some(value) or None.
type Optional[T any] struct {
	value   T
	present bool
}

func Some[T any](v T) Optional[T] { return Optional[T]{value: v, present: true} }

func None[T any]() Optional[T] { return Optional[T]{} }

// FromPtr returns None for nil, Some(*p) otherwise.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

func (o Optional[T]) Get() (T, bool) { return o.value, o.present }

func (o Optional[T]) IsPresent() bool { return o.present }

func (o Optional[T]) OrElse(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

// Ptr returns nil for None, a pointer to a copy of the value otherwise.
func (o Optional[T]) Ptr() *T {
	if !o.present {
		return nil
	}
	v := o.value
	return &v
}

func (o Optional[T]) unwrap() (interface{}, bool) { return o.value, o.present }

func (o Optional[T]) elemType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (o *Optional[T]) set(v interface{}) {
	o.present = true
	if v == nil {
		var zero T
		o.value = zero
		return
	}
	o.value = v.(T)
}

type (
	unwrapper interface {
		unwrap() (interface{}, bool)
		elemType() reflect.Type
	}
	setter interface{ set(v interface{}) }
)

// Register binds the Optional codec hooks for every instantiation of Optional.
func Register(registry *custom.Registry) {
	instance := reflect.TypeOf(Optional[int]{})
	registry.RegisterGenericSerializer(instance, serialize)
	registry.RegisterGenericDeserializer(instance, custom.Deserializer{
		Object: func(members *value.Members, target reflect.Type, decode custom.DecodeFunc) (interface{}, error) {
			return deserialize(value.ObjectValue(members), target, decode)
		},
		Array: func(items []value.Value, target reflect.Type, decode custom.DecodeFunc) (interface{}, error) {
			return deserialize(value.ArrayValue(items...), target, decode)
		},
		Scalar: deserialize,
	})
}

func serialize(v interface{}, encode custom.EncodeFunc) ([]byte, error) {
	item, ok := v.(unwrapper).unwrap()
	if !ok {
		return []byte("{}"), nil
	}
	return encode(item)
}

// deserialize maps null and {} to None, anything else to Some.
func deserialize(node value.Value, target reflect.Type, decode custom.DecodeFunc) (interface{}, error) {
	ptr := reflect.New(target)
	if node.IsNull() || (node.Kind() == value.Object && node.Len() == 0) {
		return ptr.Elem().Interface(), nil
	}
	item, err := decode(node, ptr.Interface().(unwrapper).elemType())
	if err != nil {
		return nil, err
	}
	ptr.Interface().(setter).set(item)
	return ptr.Elem().Interface(), nil
}
