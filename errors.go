package fastjson

import "github.com/viant/fastjson/errs"

type (
	ParseError            = errs.ParseError
	TypeResolutionError   = errs.TypeResolutionError
	MemberConversionError = errs.MemberConversionError
	DepthExceededError    = errs.DepthExceededError
	ConfigurationError    = errs.ConfigurationError
)
