package fastjson

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/fastjson/config"
	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/marshal"
	"github.com/viant/fastjson/unmarshal"
	"github.com/viant/fastjson/value"
)

// Codec pairs a customization registry with default settings. It is safe for concurrent
// use: every call copies the defaults and runs on its own session.
type Codec struct {
	mu       sync.RWMutex
	defaults config.Config
	registry *custom.Registry
	encoder  *marshal.Engine
	decoder  *unmarshal.Engine
	logger   Logger
}

// CodecOption configures a Codec at construction.
type CodecOption func(c *Codec)

// WithLogger routes codec diagnostics to logger.
func WithLogger(logger Logger) CodecOption {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaults sets the configuration every call starts from.
func WithDefaults(cfg config.Config) CodecOption {
	return func(c *Codec) { c.defaults = cfg }
}

// WithRegistry shares a customization registry between codecs.
func WithRegistry(registry *custom.Registry) CodecOption {
	return func(c *Codec) {
		if registry != nil {
			c.registry = registry
		}
	}
}

func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{defaults: config.Default(), registry: custom.New(), logger: NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	c.encoder = marshal.New(c.registry)
	c.decoder = unmarshal.New(c.registry)
	return c
}

// Defaults returns a copy of the codec defaults.
func (c *Codec) Defaults() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// SetDefaults replaces the defaults; calls already running keep their copy.
func (c *Codec) SetDefaults(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.defaults = cfg.Fix()
	c.mu.Unlock()
	c.logger.Info("fastjson: defaults replaced", Fields{"extensions": cfg.UseExtensions, "globalTypes": cfg.UsingGlobalTypes})
	return nil
}

func (c *Codec) config(opts []Option) (config.Config, error) {
	return resolveOptions(c.Defaults(), opts)
}

// Customizations exposes the registry consulted before the default paths.
func (c *Codec) Customizations() *custom.Registry { return c.registry }

// Marshal encodes v as JSON.
func (c *Codec) Marshal(v interface{}, opts ...Option) ([]byte, error) {
	cfg, err := c.config(opts)
	if err != nil {
		return nil, err
	}
	data, err := c.encoder.Marshal(v, cfg)
	if err != nil {
		c.logger.Debug("fastjson: marshal failed", Fields{"type": fmt.Sprintf("%T", v), "error": err.Error()})
		return nil, err
	}
	return data, nil
}

// ToJSON encodes v as JSON text.
func (c *Codec) ToJSON(v interface{}, opts ...Option) (string, error) {
	data, err := c.Marshal(v, opts...)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Unmarshal decodes data into a new value of target; a nil target is read from the
// root $type member.
func (c *Codec) Unmarshal(data []byte, target reflect.Type, opts ...Option) (interface{}, error) {
	cfg, err := c.config(opts)
	if err != nil {
		return nil, err
	}
	result, err := c.decoder.Unmarshal(data, target, cfg)
	if err != nil {
		c.logger.Debug("fastjson: unmarshal failed", Fields{"type": typeName(target), "error": err.Error()})
		return nil, err
	}
	return result, nil
}

// ToObject decodes text into a new value of target.
func (c *Codec) ToObject(text string, target reflect.Type, opts ...Option) (interface{}, error) {
	return c.Unmarshal([]byte(text), target, opts...)
}

// Fill decodes text into the value dest points to and returns dest. On failure the
// members decoded so far remain set.
func (c *Codec) Fill(dest interface{}, text string, opts ...Option) (interface{}, error) {
	cfg, err := c.config(opts)
	if err != nil {
		return nil, err
	}
	if err = c.decoder.Fill([]byte(text), dest, cfg); err != nil {
		c.logger.Debug("fastjson: fill failed", Fields{"type": fmt.Sprintf("%T", dest), "error": err.Error()})
		return dest, err
	}
	return dest, nil
}

// Parse returns the raw JSON tree.
func (c *Codec) Parse(text string) (value.Value, error) {
	return value.ParseString(text)
}

// DeepCopy round-trips v through JSON.
func (c *Codec) DeepCopy(v interface{}, opts ...Option) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := c.Marshal(v, opts...)
	if err != nil {
		return nil, err
	}
	return c.Unmarshal(data, reflect.TypeOf(v), opts...)
}

func (c *Codec) RegisterSerializer(rType reflect.Type, fn custom.SerializeFunc) {
	c.registry.RegisterSerializer(rType, fn)
	c.logger.Debug("fastjson: serializer registered", Fields{"type": rType.String()})
}

func (c *Codec) RegisterDeserializer(rType reflect.Type, d custom.Deserializer) {
	c.registry.RegisterDeserializer(rType, d)
	c.logger.Debug("fastjson: deserializer registered", Fields{"type": rType.String()})
}

// RegisterGenericSerializer covers every instantiation of instance's generic type.
func (c *Codec) RegisterGenericSerializer(instance reflect.Type, fn custom.SerializeFunc) {
	c.registry.RegisterGenericSerializer(instance, fn)
	c.logger.Debug("fastjson: generic serializer registered", Fields{"type": custom.GenericKey(instance)})
}

// RegisterGenericDeserializer covers every instantiation of instance's generic type.
func (c *Codec) RegisterGenericDeserializer(instance reflect.Type, d custom.Deserializer) {
	c.registry.RegisterGenericDeserializer(instance, d)
	c.logger.Debug("fastjson: generic deserializer registered", Fields{"type": custom.GenericKey(instance)})
}

// ClearCustomizations restores the default encode and decode paths.
func (c *Codec) ClearCustomizations() {
	c.registry.Clear()
	c.logger.Info("fastjson: customizations cleared", nil)
}

func typeName(rType reflect.Type) string {
	if rType == nil {
		return "<nil>"
	}
	return descriptor.NameOf(rType)
}
