// Package descriptor caches per-type member accessors and shape metadata.
package descriptor

import (
	"reflect"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/viant/fastjson/internal/tagutil"
	"github.com/viant/fastjson/value"
	"github.com/viant/xunsafe"
)

// Shape flags classify how a type maps onto JSON.
type Shape uint32

const (
	ShapeStruct Shape = 1 << iota
	ShapeList
	ShapeArray
	ShapeDictionary
	ShapeNullable
	ShapeInterface
	ShapeScalar
	ShapeValueType
	ShapeTime
	ShapeGUID
	ShapeBytes
	ShapeValue
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	guidType  = reflect.TypeOf(uuid.UUID{})
	valueType = reflect.TypeOf(value.Value{})
)

// Descriptor is built once per type and is read-only afterwards.
type Descriptor struct {
	Type    reflect.Type
	Name    string
	Shape   Shape
	Elem    reflect.Type
	Key     reflect.Type
	Members []*Member
	// New allocates a zeroed instance and returns a pointer to it.
	New func() reflect.Value

	byName map[string]*Member
	byFold map[uint64][]*Member
}

func (d *Descriptor) Is(shape Shape) bool { return d.Shape&shape == shape }

// Enum returns the registered symbolic names of the type, if any.
func (d *Descriptor) Enum() (*Enum, bool) { return EnumOf(d.Type) }

// Lookup finds a member by its JSON name.
func (d *Descriptor) Lookup(name string, ignoreCase bool) (*Member, bool) {
	if m, ok := d.byName[name]; ok {
		return m, true
	}
	if !ignoreCase {
		return nil, false
	}
	for _, m := range d.byFold[foldedHash(name)] {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return nil, false
}

// Member describes one serializable struct field, including promoted fields of embedded structs.
type Member struct {
	Name       string
	FieldName  string
	Type       reflect.Type
	Index      int
	Explicit   bool
	OmitEmpty  bool
	ReadOnly   bool
	TimeLayout string

	chain []*xunsafe.Field
}

// Addr returns the field address within the struct at structPtr. Nil embedded pointers on
// the path are allocated when alloc is set, otherwise nil is returned.
func (m *Member) Addr(structPtr unsafe.Pointer, alloc bool) unsafe.Pointer {
	current := structPtr
	last := len(m.chain) - 1
	for i, f := range m.chain {
		ptr := f.Pointer(current)
		if i == last {
			return ptr
		}
		if f.Type.Kind() != reflect.Ptr {
			current = ptr
			continue
		}
		next := (*unsafe.Pointer)(ptr)
		if *next == nil {
			if !alloc {
				return nil
			}
			*next = unsafe.Pointer(reflect.New(f.Type.Elem()).Pointer())
		}
		current = *next
	}
	return current
}

// Value returns a settable view of the field; ok is false when an embedded pointer on the path is nil.
func (m *Member) Value(structPtr unsafe.Pointer, alloc bool) (reflect.Value, bool) {
	addr := m.Addr(structPtr, alloc)
	if addr == nil {
		return reflect.Value{}, false
	}
	return reflect.NewAt(m.Type, addr).Elem(), true
}

// Set assigns v, which must be assignable to the member type.
func (m *Member) Set(structPtr unsafe.Pointer, v interface{}) {
	field, _ := m.Value(structPtr, true)
	if v == nil {
		field.Set(reflect.Zero(m.Type))
		return
	}
	field.Set(reflect.ValueOf(v))
}

var registry sync.Map // map[reflect.Type]*Descriptor

// Describe returns the cached descriptor for rType, building it on first use. Concurrent
// first calls may both build; the first stored instance is returned to everyone.
func Describe(rType reflect.Type) *Descriptor {
	if v, ok := registry.Load(rType); ok {
		return v.(*Descriptor)
	}
	d := build(rType)
	actual, _ := registry.LoadOrStore(rType, d)
	result := actual.(*Descriptor)
	if result == d && rType.Name() != "" {
		Register(rType)
	}
	return result
}

func build(rType reflect.Type) *Descriptor {
	d := &Descriptor{
		Type:   rType,
		Name:   NameOf(rType),
		byName: map[string]*Member{},
		byFold: map[uint64][]*Member{},
		New:    func() reflect.Value { return reflect.New(rType) },
	}
	d.Shape = classify(rType)
	switch rType.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Array:
		d.Elem = rType.Elem()
	case reflect.Map:
		d.Key = rType.Key()
		d.Elem = rType.Elem()
	case reflect.Struct:
		if d.Shape&ShapeStruct != 0 {
			d.collect(rType, nil)
		}
	}
	return d
}

func classify(rType reflect.Type) Shape {
	switch rType {
	case timeType:
		return ShapeTime | ShapeScalar | ShapeValueType
	case guidType:
		return ShapeGUID | ShapeScalar | ShapeValueType
	case valueType:
		return ShapeValue | ShapeValueType
	}
	switch rType.Kind() {
	case reflect.Ptr:
		return ShapeNullable
	case reflect.Interface:
		return ShapeInterface | ShapeNullable
	case reflect.Struct:
		return ShapeStruct | ShapeValueType
	case reflect.Slice:
		if rType.Elem().Kind() == reflect.Uint8 {
			return ShapeBytes | ShapeScalar | ShapeNullable
		}
		return ShapeList | ShapeNullable
	case reflect.Array:
		return ShapeArray | ShapeValueType
	case reflect.Map:
		return ShapeDictionary | ShapeNullable
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return ShapeScalar | ShapeValueType
	}
	return 0
}

const maxInlineDepth = 16

// collect adds the exported fields of t, then the promoted fields of embedded structs
// so that shallower names shadow deeper ones.
func (d *Descriptor) collect(t reflect.Type, parent []*xunsafe.Field) {
	type embedded struct {
		rType reflect.Type
		chain []*xunsafe.Field
	}
	var deferred []embedded
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		resolved := tagutil.Resolve(sf)
		if resolved.Ignore {
			continue
		}
		chain := append(append([]*xunsafe.Field{}, parent...), xunsafe.NewField(sf))
		if resolved.Inline && !resolved.Explicit {
			inlineType := sf.Type
			if inlineType.Kind() == reflect.Ptr {
				inlineType = inlineType.Elem()
			}
			if inlineType == t || len(parent) > maxInlineDepth {
				continue
			}
			if inlineType.Kind() == reflect.Struct && classify(inlineType) == ShapeStruct|ShapeValueType {
				deferred = append(deferred, embedded{rType: inlineType, chain: chain})
				continue
			}
		}
		if sf.PkgPath != "" {
			continue
		}
		d.add(&Member{
			Name:       resolved.Name,
			FieldName:  sf.Name,
			Type:       sf.Type,
			Index:      len(d.Members),
			Explicit:   resolved.Explicit,
			OmitEmpty:  resolved.OmitEmpty,
			ReadOnly:   resolved.ReadOnly,
			TimeLayout: resolved.TimeLayout,
			chain:      chain,
		})
	}
	for _, e := range deferred {
		d.collect(e.rType, e.chain)
	}
}

func (d *Descriptor) add(m *Member) {
	if _, ok := d.byName[m.Name]; ok {
		return
	}
	m.Index = len(d.Members)
	d.Members = append(d.Members, m)
	d.byName[m.Name] = m
	h := foldedHash(m.Name)
	d.byFold[h] = append(d.byFold[h], m)
}

func foldedHash(s string) uint64 {
	const (
		offset64 = 1469598103934665603
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
