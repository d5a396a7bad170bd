// Package config holds the per-call codec configuration value.
package config

import (
	"strconv"

	"github.com/viant/fastjson/errs"
	"github.com/viant/tagly/format/text"
)

// DefaultMaxDepth bounds serializer recursion when no limit is configured.
const DefaultMaxDepth = 10

// Config is copied into every call; engines never keep a reference to a caller's instance.
type Config struct {
	SerializeNullValues       bool
	UseExtensions             bool
	UsingGlobalTypes          bool
	ShowReadOnly              bool
	IgnoreCase                bool
	EnableAnonymousTypes      bool
	UseFastGuid               bool
	UseUTCDateTime            bool
	UseOptimizedDatasetSchema bool
	UseEscapedUnicode         bool
	DateTimeMilliseconds      bool
	KVStyleStringDictionary   bool
	MaxDepth                  int
	CaseFormat                text.CaseFormat
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		SerializeNullValues:       true,
		UseExtensions:             true,
		UsingGlobalTypes:          true,
		UseFastGuid:               true,
		UseUTCDateTime:            true,
		UseOptimizedDatasetSchema: true,
		UseEscapedUnicode:         true,
		MaxDepth:                  DefaultMaxDepth,
	}
}

// Fix returns a copy with the dependent switches forced into a consistent state.
func (c Config) Fix() Config {
	if !c.UseExtensions {
		c.UsingGlobalTypes = false
	}
	if c.EnableAnonymousTypes {
		c.UseExtensions = false
		c.UsingGlobalTypes = false
		c.ShowReadOnly = true
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	return c
}

// Validate reports settings that cannot be fixed silently.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return &errs.ConfigurationError{Field: "MaxDepth", Reason: "negative limit " + strconv.Itoa(c.MaxDepth)}
	}
	if c.CaseFormat != text.CaseFormatUndefined && !c.CaseFormat.IsDefined() {
		return &errs.ConfigurationError{Field: "CaseFormat", Reason: "unknown case format " + string(c.CaseFormat)}
	}
	return nil
}
