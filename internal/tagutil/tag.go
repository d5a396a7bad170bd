// Package tagutil resolves member naming and visibility from struct tags.
package tagutil

import (
	"reflect"
	"strings"
	"sync"

	"github.com/viant/tagly/format"
	ftime "github.com/viant/tagly/format/time"
)

// TagName is the codec specific struct tag.
const TagName = "fastjson"

// Field captures the effective tag attributes of one struct field.
type Field struct {
	Name       string
	Explicit   bool
	OmitEmpty  bool
	Ignore     bool
	ReadOnly   bool
	Inline     bool
	TimeLayout string
}

type formatTag struct {
	name       string
	caseFormat string
	omitEmpty  bool
	ignore     bool
	inline     bool
	timeLayout string
}

var formatTagCache sync.Map // map[string]formatTag

// Resolve applies tag precedence: fastjson name, then json name, then the format tag
// name/case; any of the three may ignore the field.
func Resolve(sf reflect.StructField) Field {
	ret := Field{Name: sf.Name, Inline: sf.Anonymous}
	fTag := loadFormatTag(string(sf.Tag))
	ret.OmitEmpty = fTag.omitEmpty
	ret.Ignore = fTag.ignore
	ret.Inline = ret.Inline || fTag.inline
	ret.TimeLayout = fTag.timeLayout
	switch {
	case fTag.caseFormat == "" && fTag.name != "":
		ret.Name, ret.Explicit = fTag.name, true
	case fTag.caseFormat != "":
		tag := &format.Tag{Name: fTag.name, CaseFormat: fTag.caseFormat}
		if tag.Name == "" {
			tag.Name = sf.Name
		}
		if name := tag.CaseFormatName(""); name != "" {
			ret.Name = name
			ret.Explicit = true
		}
	}
	if name, flags, ok := split(sf.Tag.Get("json")); ok {
		if name == "-" && len(flags) == 0 {
			ret.Ignore = true
		} else if name != "" {
			ret.Name, ret.Explicit = name, true
		}
		ret.OmitEmpty = ret.OmitEmpty || hasFlag(flags, "omitempty")
	}
	if name, flags, ok := split(sf.Tag.Get(TagName)); ok {
		if name == "-" {
			ret.Ignore = true
		} else if name != "" {
			ret.Name, ret.Explicit = name, true
		}
		ret.OmitEmpty = ret.OmitEmpty || hasFlag(flags, "omitempty")
		ret.ReadOnly = hasFlag(flags, "readonly")
		ret.Ignore = ret.Ignore || hasFlag(flags, "ignore")
		ret.Inline = ret.Inline || hasFlag(flags, "inline")
	}
	return ret
}

func split(raw string) (string, []string, bool) {
	if raw == "" {
		return "", nil, false
	}
	parts := strings.Split(raw, ",")
	return strings.TrimSpace(parts[0]), parts[1:], true
}

func hasFlag(flags []string, flag string) bool {
	for _, candidate := range flags {
		if strings.EqualFold(strings.TrimSpace(candidate), flag) {
			return true
		}
	}
	return false
}

func loadFormatTag(rawTag string) formatTag {
	if v, ok := formatTagCache.Load(rawTag); ok {
		return v.(formatTag)
	}
	ret := formatTag{}
	if tag, err := format.Parse(reflect.StructTag(rawTag)); err == nil && tag != nil {
		ret = formatTag{
			name:       tag.Name,
			caseFormat: tag.CaseFormat,
			omitEmpty:  tag.Omitempty,
			ignore:     tag.Ignore,
			inline:     tag.Inline,
			timeLayout: tag.TimeLayout,
		}
		if ret.timeLayout == "" && tag.DateFormat != "" {
			ret.timeLayout = ftime.DateFormatToTimeLayout(tag.DateFormat)
		}
	}
	formatTagCache.Store(rawTag, ret)
	return ret
}
