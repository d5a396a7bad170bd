// Package fastjson converts Go object graphs to JSON and back, optionally carrying type
// information ($type, $types, $map) so that interface members decode to their original
// concrete types.
package fastjson

import (
	"fmt"
	"reflect"

	"github.com/viant/fastjson/config"
	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/value"
)

var std = NewCodec()

// Default returns the process wide codec used by the package level functions.
func Default() *Codec { return std }

func ToJSON(v interface{}, opts ...Option) (string, error) { return std.ToJSON(v, opts...) }

func Marshal(v interface{}, opts ...Option) ([]byte, error) { return std.Marshal(v, opts...) }

func ToObject(text string, target reflect.Type, opts ...Option) (interface{}, error) {
	return std.ToObject(text, target, opts...)
}

func Unmarshal(data []byte, target reflect.Type, opts ...Option) (interface{}, error) {
	return std.Unmarshal(data, target, opts...)
}

// ToObjectAs decodes text into a T with the default codec.
func ToObjectAs[T any](text string, opts ...Option) (T, error) {
	return DecodeAs[T](std, text, opts...)
}

// DecodeAs decodes text into a T with codec c.
func DecodeAs[T any](c *Codec, text string, opts ...Option) (T, error) {
	var ret T
	result, err := c.ToObject(text, reflect.TypeOf((*T)(nil)).Elem(), opts...)
	if err != nil || result == nil {
		return ret, err
	}
	return result.(T), nil
}

func Fill(dest interface{}, text string, opts ...Option) (interface{}, error) {
	return std.Fill(dest, text, opts...)
}

func Parse(text string) (value.Value, error) { return std.Parse(text) }

func DeepCopy(v interface{}, opts ...Option) (interface{}, error) { return std.DeepCopy(v, opts...) }

// DeepCopyOf is the typed form of DeepCopy.
func DeepCopyOf[T any](v T, opts ...Option) (T, error) {
	var ret T
	data, err := std.Marshal(v, opts...)
	if err != nil {
		return ret, err
	}
	return DecodeAs[T](std, string(data), opts...)
}

func SetDefaults(cfg config.Config) error { return std.SetDefaults(cfg) }

func RegisterSerializer(rType reflect.Type, fn custom.SerializeFunc) {
	std.RegisterSerializer(rType, fn)
}

func RegisterDeserializer(rType reflect.Type, d custom.Deserializer) {
	std.RegisterDeserializer(rType, d)
}

func RegisterGenericSerializer(instance reflect.Type, fn custom.SerializeFunc) {
	std.RegisterGenericSerializer(instance, fn)
}

func RegisterGenericDeserializer(instance reflect.Type, d custom.Deserializer) {
	std.RegisterGenericDeserializer(instance, d)
}

func ClearCustomizations() { std.ClearCustomizations() }

func Customizations() *custom.Registry { return std.Customizations() }

// RegisterType makes the type of prototype resolvable by its $type name before it is
// first encoded in this process, and returns that name.
func RegisterType(prototype interface{}) string {
	rType := reflect.TypeOf(prototype)
	descriptor.Describe(rType)
	return descriptor.Register(rType)
}

// RegisterTypeName binds an additional $type name to the type of prototype.
func RegisterTypeName(name string, prototype interface{}) {
	descriptor.RegisterName(name, reflect.TypeOf(prototype))
}

// Enum is an integer constant type with symbolic names.
type Enum interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32
	fmt.Stringer
}

// RegisterEnum encodes values of T by their String() names and decodes them by exact name.
func RegisterEnum[T Enum](values ...T) {
	names := make(map[string]int64, len(values))
	for _, v := range values {
		names[v.String()] = int64(v)
	}
	descriptor.RegisterEnum(reflect.TypeOf((*T)(nil)).Elem(), names)
}
