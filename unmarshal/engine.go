// Package unmarshal maps parsed JSON trees onto typed Go values.
package unmarshal

import (
	"fmt"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/viant/fastjson/config"
	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/errs"
	"github.com/viant/fastjson/table"
	"github.com/viant/fastjson/value"
)

const (
	TypeKey  = "$type"
	TypesKey = "$types"
	MapKey   = "$map"
)

var (
	anyType        = reflect.TypeOf((*interface{})(nil)).Elem()
	valueType      = reflect.TypeOf(value.Value{})
	dataSetType    = reflect.TypeOf(table.DataSet{})
	dataSetPtrType = reflect.TypeOf(&table.DataSet{})
	tableType      = reflect.TypeOf(table.Table{})
	untypedMap     = reflect.TypeOf(map[string]interface{}{})
)

// Engine holds no per-call state; alias tables live on the session of each call.
type Engine struct {
	registry *custom.Registry
}

func New(registry *custom.Registry) *Engine {
	if registry == nil {
		registry = custom.New()
	}
	return &Engine{registry: registry}
}

// session is the call-scoped decode state.
type session struct {
	engine       *Engine
	cfg          config.Config
	aliases      map[string]string
	usingGlobals bool
}

func (e *Engine) newSession(cfg config.Config) *session {
	return &session{engine: e, cfg: cfg.Fix()}
}

// Unmarshal parses data and converts it into target. A nil target is taken from the
// root $type member.
func (e *Engine) Unmarshal(data []byte, target reflect.Type, cfg config.Config) (interface{}, error) {
	node, err := value.Parse(data)
	if err != nil {
		return nil, err
	}
	return e.Decode(node, target, cfg)
}

// Decode converts an already parsed tree into target.
func (e *Engine) Decode(node value.Value, target reflect.Type, cfg config.Config) (interface{}, error) {
	sess := e.newSession(cfg)
	if target == nil {
		var err error
		if target, err = sess.rootType(node); err != nil {
			return nil, err
		}
	}
	dest := newValue(target)
	if err := sess.assign(node, dest, ""); err != nil {
		return nil, err
	}
	return dest.Interface(), nil
}

// Fill decodes data into the value dest points to; members absent from data keep their
// current value, and members written before a failure stay written.
func (e *Engine) Fill(data []byte, dest interface{}, cfg config.Config) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("fill destination must be a non nil pointer, got %T", dest)
	}
	node, err := value.Parse(data)
	if err != nil {
		return err
	}
	return e.newSession(cfg).assign(node, rv.Elem(), "")
}

func (s *session) rootType(node value.Value) (reflect.Type, error) {
	if node.Kind() != value.Object {
		return anyType, nil
	}
	members := node.Members()
	s.mergeTypes(members)
	rType, ok, err := s.resolveType(members)
	switch {
	case err != nil:
		return nil, err
	case ok:
		return rType, nil
	case table.IsDataSet(members):
		return dataSetPtrType, nil
	}
	return nil, &errs.TypeResolutionError{Reason: "no " + TypeKey + " member and no target type"}
}

// mergeTypes adds a $types header to the call alias table.
func (s *session) mergeTypes(members *value.Members) {
	header, ok := members.Get(TypesKey)
	if !ok || header.Kind() != value.Object {
		return
	}
	if s.aliases == nil {
		s.aliases = map[string]string{}
	}
	for _, m := range header.Members().List() {
		s.aliases[scalarText(m.Value)] = m.Key
	}
	s.usingGlobals = true
}

// resolveType returns the type named by $type; ok is false when the member is absent.
func (s *session) resolveType(members *value.Members) (reflect.Type, bool, error) {
	tag, ok := members.Get(TypeKey)
	if !ok {
		return nil, false, nil
	}
	name := scalarText(tag)
	if s.usingGlobals {
		full, ok := s.aliases[name]
		if !ok {
			return nil, false, &errs.TypeResolutionError{Name: name, Reason: "alias not declared in " + TypesKey}
		}
		name = full
	}
	rType, ok := descriptor.Resolve(name)
	if !ok {
		return nil, false, &errs.TypeResolutionError{Name: name, Reason: "type not registered"}
	}
	return rType, true, nil
}

func scalarText(node value.Value) string {
	if text, ok := node.Text(); ok {
		return text
	}
	if text, ok := node.NumberText(); ok {
		return text
	}
	return node.String()
}

func (s *session) decodeFunc() custom.DecodeFunc {
	return func(node value.Value, target reflect.Type) (interface{}, error) {
		if target == nil {
			target = anyType
		}
		dest := newValue(target)
		if err := s.assign(node, dest, ""); err != nil {
			return nil, err
		}
		return dest.Interface(), nil
	}
}

// newValue returns a settable zero value of rType built by the cached constructor.
func newValue(rType reflect.Type) reflect.Value {
	return descriptor.Describe(rType).New().Elem()
}

// assign writes node into the settable dest.
func (s *session) assign(node value.Value, dest reflect.Value, layout string) error {
	target := dest.Type()
	if d, ok := s.engine.registry.Deserializer(target); ok && d.Handles(node) {
		out, err := d.Decode(node, target, s.decodeFunc())
		if err != nil {
			return err
		}
		return setResult(dest, out)
	}
	if node.IsNull() {
		dest.Set(reflect.Zero(target))
		return nil
	}
	switch target {
	case valueType:
		dest.Set(reflect.ValueOf(node))
		return nil
	case dataSetType:
		return s.assignDataSet(node, dest)
	case tableType:
		return s.assignTable(node, dest)
	}
	switch target.Kind() {
	case reflect.Ptr:
		if dest.IsNil() {
			dest.Set(descriptor.Describe(target.Elem()).New())
		}
		return s.assign(node, dest.Elem(), layout)
	case reflect.Interface:
		return s.assignInterface(node, dest)
	}
	switch node.Kind() {
	case value.Object:
		return s.assignObject(node.Members(), dest)
	case value.Array:
		return s.assignArray(node.Items(), dest, layout)
	}
	return s.assignScalar(node, dest, layout)
}

func (s *session) assignInterface(node value.Value, dest reflect.Value) error {
	target := dest.Type()
	switch node.Kind() {
	case value.Object:
		members := node.Members()
		s.mergeTypes(members)
		rType, ok, err := s.resolveType(members)
		if err != nil {
			return err
		}
		if !ok {
			if target.NumMethod() > 0 {
				return &errs.TypeResolutionError{Reason: "no " + TypeKey + " member for " + target.String()}
			}
			rType = untypedMap
			if table.IsDataSet(members) {
				rType = dataSetPtrType
			}
		}
		concrete, err := implementation(rType, target)
		if err != nil {
			return err
		}
		v := newValue(concrete)
		if err = s.assign(node, v, ""); err != nil {
			return err
		}
		dest.Set(v)
		return nil
	case value.Array:
		if target.NumMethod() > 0 {
			return &errs.TypeResolutionError{Reason: "array cannot be assigned to " + target.String()}
		}
		items := node.Items()
		out := make([]interface{}, len(items))
		for i, item := range items {
			elem := reflect.ValueOf(&out[i]).Elem()
			if err := s.assign(item, elem, ""); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dest.Set(reflect.ValueOf(out))
		return nil
	}
	scalar := reflect.ValueOf(node.Interface())
	if !scalar.Type().AssignableTo(target) {
		return &errs.TypeResolutionError{Reason: fmt.Sprintf("%v cannot be assigned to %v", node.Kind(), target)}
	}
	dest.Set(scalar)
	return nil
}

// implementation picks rType, or its pointer, whichever satisfies the interface.
func implementation(rType, iface reflect.Type) (reflect.Type, error) {
	if rType.AssignableTo(iface) {
		return rType, nil
	}
	if ptr := reflect.PointerTo(rType); ptr.AssignableTo(iface) {
		return ptr, nil
	}
	return nil, &errs.TypeResolutionError{Name: descriptor.NameOf(rType), Reason: "does not implement " + iface.String()}
}

func (s *session) assignObject(members *value.Members, dest reflect.Value) error {
	target := dest.Type()
	s.mergeTypes(members)
	if _, _, err := s.resolveType(members); err != nil {
		return err
	}
	switch target.Kind() {
	case reflect.Struct:
		return s.assignStruct(members, dest)
	case reflect.Map:
		return s.assignMap(members, dest)
	}
	return fmt.Errorf("cannot convert object to %v", target)
}

func (s *session) assignStruct(members *value.Members, dest reflect.Value) error {
	target := dest.Type()
	d := descriptor.Describe(target)
	structPtr := unsafe.Pointer(dest.UnsafeAddr())
	var mapped *value.Members
	if node, ok := members.Get(MapKey); ok && node.Kind() == value.Object {
		mapped = node.Members()
	}
	for _, m := range members.List() {
		switch m.Key {
		case TypeKey, TypesKey, MapKey:
			continue
		}
		member, ok := d.LookupFormatted(m.Key, s.cfg.CaseFormat, s.cfg.IgnoreCase)
		if !ok || member.ReadOnly {
			continue
		}
		var err error
		if runtime, isMapped := mapped.Get(m.Key); isMapped {
			err = s.remap(m.Value, runtime, member, structPtr)
		} else {
			field, _ := member.Value(structPtr, true)
			err = s.assign(m.Value, field, member.TimeLayout)
		}
		if err != nil {
			return &errs.MemberConversionError{Member: member.Name, Declared: member.Type, Container: target, Err: err}
		}
	}
	return nil
}

// remap decodes a member straight into the runtime type recorded in the $map side
// table; a recorded type that does not fit the member falls back to the declared type.
func (s *session) remap(node, runtime value.Value, member *descriptor.Member, structPtr unsafe.Pointer) error {
	name := scalarText(runtime)
	rType, ok := descriptor.Resolve(name)
	if !ok {
		return &errs.TypeResolutionError{Name: name, Reason: "type not registered"}
	}
	if node.IsNull() || !rType.AssignableTo(member.Type) {
		field, _ := member.Value(structPtr, true)
		return s.assign(node, field, member.TimeLayout)
	}
	v := newValue(rType)
	if err := s.assign(node, v, member.TimeLayout); err != nil {
		return err
	}
	member.Set(structPtr, v.Interface())
	return nil
}

func (s *session) assignMap(members *value.Members, dest reflect.Value) error {
	target := dest.Type()
	if dest.IsNil() {
		dest.Set(reflect.MakeMapWithSize(target, members.Len()))
	}
	for _, m := range members.List() {
		switch m.Key {
		case TypeKey, TypesKey, MapKey:
			continue
		}
		key, err := mapKey(m.Key, target.Key())
		if err != nil {
			return err
		}
		item := newValue(target.Elem())
		if err = s.assign(m.Value, item, ""); err != nil {
			return fmt.Errorf("key %s: %w", m.Key, err)
		}
		dest.SetMapIndex(key, item)
	}
	return nil
}

func mapKey(key string, keyType reflect.Type) (reflect.Value, error) {
	ret := reflect.New(keyType).Elem()
	switch keyType.Kind() {
	case reflect.String:
		ret.SetString(key)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(key, 10, keyType.Bits())
		if err != nil {
			return ret, err
		}
		ret.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(key, 10, keyType.Bits())
		if err != nil {
			return ret, err
		}
		ret.SetUint(u)
	default:
		return ret, fmt.Errorf("unsupported object key type %v", keyType)
	}
	return ret, nil
}

func (s *session) assignArray(items []value.Value, dest reflect.Value, layout string) error {
	target := dest.Type()
	switch target.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(target, len(items), len(items))
		for i, item := range items {
			if err := s.assign(item, out.Index(i), layout); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dest.Set(out)
		return nil
	case reflect.Array:
		if len(items) > target.Len() {
			return fmt.Errorf("%d items exceed %v", len(items), target)
		}
		for i := 0; i < target.Len(); i++ {
			elem := dest.Index(i)
			if i >= len(items) {
				elem.Set(reflect.Zero(target.Elem()))
				continue
			}
			if err := s.assign(items[i], elem, layout); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case reflect.Map:
		return s.assignPairs(items, dest)
	}
	return fmt.Errorf("cannot convert array to %v", target)
}

// assignPairs decodes [{"k":key,"v":value},...] dictionaries.
func (s *session) assignPairs(items []value.Value, dest reflect.Value) error {
	target := dest.Type()
	if dest.IsNil() {
		dest.Set(reflect.MakeMapWithSize(target, len(items)))
	}
	for i, item := range items {
		pair := item.Members()
		if item.Kind() != value.Object || !pair.Has("k") {
			return fmt.Errorf("[%d]: expected {\"k\":...,\"v\":...} pair", i)
		}
		keyNode, _ := pair.Get("k")
		valueNode, _ := pair.Get("v")
		key := newValue(target.Key())
		if err := s.assign(keyNode, key, ""); err != nil {
			return fmt.Errorf("[%d].k: %w", i, err)
		}
		elem := newValue(target.Elem())
		if err := s.assign(valueNode, elem, ""); err != nil {
			return fmt.Errorf("[%d].v: %w", i, err)
		}
		dest.SetMapIndex(key, elem)
	}
	return nil
}

func (s *session) convertCell(node value.Value, rType reflect.Type) (interface{}, error) {
	return s.decodeFunc()(node, rType)
}

func (s *session) assignDataSet(node value.Value, dest reflect.Value) error {
	if node.Kind() != value.Object {
		return fmt.Errorf("cannot convert %v to %v", node.Kind(), dest.Type())
	}
	ds, err := table.Decode(node.Members(), s.convertCell)
	if err != nil {
		return err
	}
	dest.Set(reflect.ValueOf(ds).Elem())
	return nil
}

func (s *session) assignTable(node value.Value, dest reflect.Value) error {
	if node.Kind() != value.Object {
		return fmt.Errorf("cannot convert %v to %v", node.Kind(), dest.Type())
	}
	t, err := table.DecodeTable(node.Members(), s.convertCell)
	if err != nil {
		return err
	}
	dest.Set(reflect.ValueOf(t).Elem())
	return nil
}

// setResult stores a custom deserializer result into dest.
func setResult(dest reflect.Value, out interface{}) error {
	target := dest.Type()
	if out == nil {
		dest.Set(reflect.Zero(target))
		return nil
	}
	rv := reflect.ValueOf(out)
	switch {
	case rv.Type().AssignableTo(target):
		dest.Set(rv)
	case target.Kind() == reflect.Ptr && rv.Type().AssignableTo(target.Elem()):
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(rv)
		dest.Set(ptr)
	case rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Type().AssignableTo(target):
		dest.Set(rv.Elem())
	case rv.Kind() == target.Kind() && rv.Type().ConvertibleTo(target):
		dest.Set(rv.Convert(target))
	default:
		return fmt.Errorf("custom deserializer returned %v, expected %v", rv.Type(), target)
	}
	return nil
}
