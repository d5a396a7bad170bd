// Package custom holds user supplied serializers and deserializers keyed by type.
package custom

import (
	"reflect"
	"strings"
	"sync"

	"github.com/viant/fastjson/value"
)

type (
	// EncodeFunc encodes a nested value with the calling session.
	EncodeFunc func(v interface{}) ([]byte, error)

	// DecodeFunc converts a nested node into target with the calling session.
	DecodeFunc func(node value.Value, target reflect.Type) (interface{}, error)

	// SerializeFunc returns the raw JSON fragment for v.
	SerializeFunc func(v interface{}, encode EncodeFunc) ([]byte, error)

	ObjectFunc func(members *value.Members, target reflect.Type, decode DecodeFunc) (interface{}, error)
	ArrayFunc  func(items []value.Value, target reflect.Type, decode DecodeFunc) (interface{}, error)
	ScalarFunc func(node value.Value, target reflect.Type, decode DecodeFunc) (interface{}, error)

	// Deserializer registers up to one handler per node shape.
	Deserializer struct {
		Object ObjectFunc
		Array  ArrayFunc
		Scalar ScalarFunc
	}
)

// Handles reports whether the deserializer accepts node's shape.
func (d *Deserializer) Handles(node value.Value) bool {
	if d == nil {
		return false
	}
	switch node.Kind() {
	case value.Object:
		return d.Object != nil
	case value.Array:
		return d.Array != nil
	}
	return d.Scalar != nil
}

// Decode dispatches node to the handler registered for its shape.
func (d *Deserializer) Decode(node value.Value, target reflect.Type, decode DecodeFunc) (interface{}, error) {
	switch node.Kind() {
	case value.Object:
		return d.Object(node.Members(), target, decode)
	case value.Array:
		return d.Array(node.Items(), target, decode)
	}
	return d.Scalar(node, target, decode)
}

// Registry is safe for concurrent use; lookups take a read lock only.
type Registry struct {
	mu            sync.RWMutex
	serializers   map[reflect.Type]SerializeFunc
	deserializers map[reflect.Type]*Deserializer
	genericSer    map[string]SerializeFunc
	genericDeser  map[string]*Deserializer
}

func New() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.serializers = map[reflect.Type]SerializeFunc{}
	r.deserializers = map[reflect.Type]*Deserializer{}
	r.genericSer = map[string]SerializeFunc{}
	r.genericDeser = map[string]*Deserializer{}
}

// RegisterSerializer binds fn to exactly rType.
func (r *Registry) RegisterSerializer(rType reflect.Type, fn SerializeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[rType] = fn
}

// RegisterDeserializer binds d to exactly rType.
func (r *Registry) RegisterDeserializer(rType reflect.Type, d Deserializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deserializers[rType] = &d
}

// RegisterGenericSerializer binds fn to every instantiation of the generic type that
// instance was instantiated from.
func (r *Registry) RegisterGenericSerializer(instance reflect.Type, fn SerializeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genericSer[GenericKey(instance)] = fn
}

// RegisterGenericDeserializer binds d to every instantiation of instance's generic type.
func (r *Registry) RegisterGenericDeserializer(instance reflect.Type, d Deserializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genericDeser[GenericKey(instance)] = &d
}

// Serializer returns the exact match, then the generic definition match.
func (r *Registry) Serializer(rType reflect.Type) (SerializeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.serializers) == 0 && len(r.genericSer) == 0 {
		return nil, false
	}
	if fn, ok := r.serializers[rType]; ok {
		return fn, true
	}
	if key := GenericKey(rType); key != "" {
		fn, ok := r.genericSer[key]
		return fn, ok
	}
	return nil, false
}

// Deserializer returns the exact match, then the generic definition match.
func (r *Registry) Deserializer(rType reflect.Type) (*Deserializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.deserializers) == 0 && len(r.genericDeser) == 0 {
		return nil, false
	}
	if d, ok := r.deserializers[rType]; ok {
		return d, true
	}
	if key := GenericKey(rType); key != "" {
		d, ok := r.genericDeser[key]
		return d, ok
	}
	return nil, false
}

// Empty reports whether nothing is registered.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.serializers)+len(r.deserializers)+len(r.genericSer)+len(r.genericDeser) == 0
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// GenericKey identifies the generic definition of an instantiated named type, e.g.
// "example.com/opt.Optional" for Optional[int]; it is empty for non-generic types.
func GenericKey(rType reflect.Type) string {
	name := rType.Name()
	index := strings.IndexByte(name, '[')
	if index <= 0 {
		return ""
	}
	return rType.PkgPath() + "." + name[:index]
}
