package fastjson

import (
	"github.com/viant/fastjson/config"
	"github.com/viant/tagly/format"
	"github.com/viant/tagly/format/text"
)

// Option adjusts the configuration of a single call.
type Option interface {
	apply(cfg *config.Config)
}

type optionFn func(*config.Config)

func (o optionFn) apply(cfg *config.Config) { o(cfg) }

// WithConfig replaces the whole call configuration.
func WithConfig(c config.Config) Option {
	return optionFn(func(cfg *config.Config) { *cfg = c })
}

func WithNullValues(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.SerializeNullValues = enabled })
}

// WithExtensions toggles the $type/$types/$map protocol.
func WithExtensions(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UseExtensions = enabled })
}

func WithGlobalTypes(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UsingGlobalTypes = enabled })
}

func WithShowReadOnly(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.ShowReadOnly = enabled })
}

func WithIgnoreCase(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.IgnoreCase = enabled })
}

// WithAnonymousTypes emits plain JSON with read-only members included.
func WithAnonymousTypes(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.EnableAnonymousTypes = enabled })
}

func WithFastGuid(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UseFastGuid = enabled })
}

func WithUTCDateTime(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UseUTCDateTime = enabled })
}

func WithOptimizedDatasetSchema(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UseOptimizedDatasetSchema = enabled })
}

func WithEscapedUnicode(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.UseEscapedUnicode = enabled })
}

func WithDateTimeMilliseconds(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.DateTimeMilliseconds = enabled })
}

func WithKVStyleStringDictionary(enabled bool) Option {
	return optionFn(func(cfg *config.Config) { cfg.KVStyleStringDictionary = enabled })
}

func WithMaxDepth(depth int) Option {
	return optionFn(func(cfg *config.Config) { cfg.MaxDepth = depth })
}

func WithCaseFormat(caseFormat text.CaseFormat) Option {
	return optionFn(func(cfg *config.Config) { cfg.CaseFormat = caseFormat })
}

// WithFormatTag takes the case format from a tagly format tag.
func WithFormatTag(tag *format.Tag) Option {
	return optionFn(func(cfg *config.Config) {
		if tag == nil {
			return
		}
		if cf := text.CaseFormat(tag.CaseFormat); cf != "" && cf != "-" {
			cfg.CaseFormat = cf
		}
	})
}

func resolveOptions(defaults config.Config, opts []Option) (config.Config, error) {
	result := defaults
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&result)
	}
	if err := result.Validate(); err != nil {
		return result, err
	}
	return result.Fix(), nil
}
