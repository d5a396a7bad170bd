package descriptor

import (
	"reflect"
	"strings"

	"github.com/viant/fastjson/internal/lru"
	"github.com/viant/fastjson/internal/tagutil"
	"github.com/viant/tagly/format/text"
)

type namingKey struct {
	rType      reflect.Type
	caseFormat text.CaseFormat
}

// naming is the member name view of a descriptor under one case format.
type naming struct {
	names  []string
	byName map[string]*Member
	byFold map[uint64][]*Member
}

var namings = lru.New[namingKey, *naming](1024)

func (d *Descriptor) naming(caseFormat text.CaseFormat) *naming {
	return namings.GetOrCompute(namingKey{rType: d.Type, caseFormat: caseFormat}, func() *naming {
		ret := &naming{
			names:  make([]string, len(d.Members)),
			byName: make(map[string]*Member, len(d.Members)),
			byFold: map[uint64][]*Member{},
		}
		for i, m := range d.Members {
			name := m.Name
			if !m.Explicit {
				name = tagutil.FormatName(m.Name, caseFormat)
			}
			ret.names[i] = name
			if _, ok := ret.byName[name]; ok {
				continue
			}
			ret.byName[name] = m
			h := foldedHash(name)
			ret.byFold[h] = append(ret.byFold[h], m)
		}
		return ret
	})
}

// Names returns member names in declaration order; names without an explicit tag are
// converted to caseFormat.
func (d *Descriptor) Names(caseFormat text.CaseFormat) []string {
	return d.naming(caseFormat).names
}

// LookupFormatted finds a member by its name under caseFormat.
func (d *Descriptor) LookupFormatted(name string, caseFormat text.CaseFormat, ignoreCase bool) (*Member, bool) {
	if caseFormat == text.CaseFormatUndefined {
		return d.Lookup(name, ignoreCase)
	}
	n := d.naming(caseFormat)
	if m, ok := n.byName[name]; ok {
		return m, true
	}
	if !ignoreCase {
		return nil, false
	}
	for _, m := range n.byFold[foldedHash(name)] {
		if strings.EqualFold(n.names[m.Index], name) {
			return m, true
		}
	}
	return nil, false
}
