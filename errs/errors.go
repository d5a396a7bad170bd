// Package errs defines the typed failures returned by the codec.
package errs

import (
	"fmt"
	"reflect"
)

// ParseError reports malformed JSON text.
type ParseError struct {
	Offset int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error at %d: %s", e.Offset, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TypeResolutionError reports a type name, alias or target that could not be resolved.
type TypeResolutionError struct {
	Name   string
	Reason string
}

func (e *TypeResolutionError) Error() string {
	if e.Name == "" {
		return "cannot determine type: " + e.Reason
	}
	return fmt.Sprintf("cannot resolve type %q: %s", e.Name, e.Reason)
}

// MemberConversionError wraps a failure converting one member value.
type MemberConversionError struct {
	Member    string
	Declared  reflect.Type
	Container reflect.Type
	Err       error
}

func (e *MemberConversionError) Error() string {
	return fmt.Sprintf("error deserializing member %s(%v) of %v: %v", e.Member, e.Declared, e.Container, e.Err)
}

func (e *MemberConversionError) Unwrap() error { return e.Err }

// DepthExceededError reports that the serializer nesting limit was hit.
type DepthExceededError struct {
	Limit int
	Type  reflect.Type
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("serializer encountered maximum depth of %d at %v", e.Limit, e.Type)
}

// ConfigurationError reports an invalid or unavailable configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
