// Package marshal walks typed object graphs and emits JSON text with optional type tags.
package marshal

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
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

	dateTimeLayout = "2006-01-02 15:04:05"
	millisLayout   = "2006-01-02 15:04:05.000"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	guidType    = reflect.TypeOf(uuid.UUID{})
	valueType   = reflect.TypeOf(value.Value{})
	dataSetType = reflect.TypeOf(table.DataSet{})
	tableType   = reflect.TypeOf(table.Table{})

	sessionPool = sync.Pool{New: func() interface{} { return &session{buf: make([]byte, 0, 256)} }}
)

// Engine is stateless apart from the shared customization registry; every call runs on
// its own session.
type Engine struct {
	registry *custom.Registry
}

func New(registry *custom.Registry) *Engine {
	if registry == nil {
		registry = custom.New()
	}
	return &Engine{registry: registry}
}

// typeTable assigns ids to type names in first-encounter order.
type typeTable struct {
	names []string
	ids   map[string]string
}

func newTypeTable() *typeTable {
	return &typeTable{ids: map[string]string{}}
}

func (t *typeTable) id(name string) string {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := strconv.Itoa(len(t.names) + 1)
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

type session struct {
	buf   []byte
	cfg   config.Config
	depth int
	types *typeTable
}

func acquireSession(cfg config.Config) *session {
	s := sessionPool.Get().(*session)
	s.reset(cfg)
	return s
}

func (s *session) reset(cfg config.Config) {
	s.buf = s.buf[:0]
	s.cfg = cfg
	s.depth = 0
	s.types = nil
}

func releaseSession(s *session) {
	if cap(s.buf) > 1<<20 {
		return
	}
	s.types = nil
	sessionPool.Put(s)
}

func (s *session) enter(rType reflect.Type) error {
	s.depth++
	if s.depth > s.cfg.MaxDepth {
		return &errs.DepthExceededError{Limit: s.cfg.MaxDepth, Type: rType}
	}
	return nil
}

func (s *session) leave() { s.depth-- }

// Marshal encodes v under cfg, which is fixed up before use.
func (e *Engine) Marshal(v interface{}, cfg config.Config) ([]byte, error) {
	cfg = cfg.Fix()
	if v == nil {
		return []byte("null"), nil
	}
	rv := reflect.ValueOf(v)
	if cfg.UsingGlobalTypes && !e.isTypedRoot(rv) {
		cfg.UsingGlobalTypes = false
	}
	sess := acquireSession(cfg)
	defer releaseSession(sess)
	if cfg.UsingGlobalTypes {
		sess.types = newTypeTable()
	}
	if err := e.appendValue(sess, rv, ""); err != nil {
		return nil, err
	}
	if sess.types == nil || len(sess.types.names) == 0 {
		return append([]byte(nil), sess.buf...), nil
	}
	if out, ok := spliceTypes(sess.buf, sess.types, cfg.UseEscapedUnicode); ok {
		return out, nil
	}
	// the root did not render as an object, so ids cannot be declared; encode again with names
	cfg.UsingGlobalTypes = false
	sess.reset(cfg)
	if err := e.appendValue(sess, rv, ""); err != nil {
		return nil, err
	}
	return append([]byte(nil), sess.buf...), nil
}

// isTypedRoot reports whether the root renders as an object that can carry the $types header.
func (e *Engine) isTypedRoot(rv reflect.Value) bool {
	for {
		if _, ok := e.registry.Serializer(rv.Type()); ok {
			return false
		}
		if rv.Kind() != reflect.Ptr && rv.Kind() != reflect.Interface {
			break
		}
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() == dataSetType || rv.Type() == tableType {
		return false
	}
	return descriptor.Describe(rv.Type()).Is(descriptor.ShapeStruct)
}

// spliceTypes declares the type ids right after the opening brace of an object body.
func spliceTypes(body []byte, types *typeTable, escapeUnicode bool) ([]byte, bool) {
	if len(body) < 2 || body[0] != '{' {
		return nil, false
	}
	out := make([]byte, 0, len(body)+16*len(types.names)+16)
	out = append(out, '{')
	out = value.AppendQuoted(out, TypesKey, false)
	out = append(out, ':', '{')
	for i, name := range types.names {
		if i > 0 {
			out = append(out, ',')
		}
		out = value.AppendQuoted(out, name, escapeUnicode)
		out = append(out, ':')
		out = value.AppendQuoted(out, types.ids[name], false)
	}
	out = append(out, '}')
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), true
}

func (e *Engine) appendValue(sess *session, rv reflect.Value, layout string) error {
	for {
		if !rv.IsValid() {
			sess.buf = append(sess.buf, "null"...)
			return nil
		}
		if fn, ok := e.registry.Serializer(rv.Type()); ok {
			return e.appendCustom(sess, fn, rv)
		}
		if rv.Kind() != reflect.Ptr && rv.Kind() != reflect.Interface {
			break
		}
		if rv.IsNil() {
			sess.buf = append(sess.buf, "null"...)
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		sess.appendTime(rv.Interface().(time.Time), layout)
		return nil
	case guidType:
		sess.appendGUID(rv.Interface().(uuid.UUID))
		return nil
	case valueType:
		sess.buf = rv.Interface().(value.Value).Append(sess.buf)
		return nil
	case dataSetType:
		return e.appendDataSet(sess, addressable(rv).Addr().Interface().(*table.DataSet))
	case tableType:
		return e.appendDataSet(sess, table.NewDataSet(rv.Field(0).String(), addressable(rv).Addr().Interface().(*table.Table)))
	}
	if enum, ok := descriptor.EnumOf(rv.Type()); ok {
		if name, ok := enum.Name(rv); ok {
			sess.buf = value.AppendQuoted(sess.buf, name, sess.cfg.UseEscapedUnicode)
			return nil
		}
	}

	switch rv.Kind() {
	case reflect.Struct:
		return e.appendStruct(sess, rv)
	case reflect.Slice:
		if rv.IsNil() {
			sess.buf = append(sess.buf, "null"...)
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			sess.appendBytes(rv.Bytes())
			return nil
		}
		return e.appendList(sess, rv)
	case reflect.Array:
		return e.appendList(sess, rv)
	case reflect.Map:
		if rv.IsNil() {
			sess.buf = append(sess.buf, "null"...)
			return nil
		}
		return e.appendMap(sess, rv)
	case reflect.String:
		sess.buf = value.AppendQuoted(sess.buf, rv.String(), sess.cfg.UseEscapedUnicode)
		return nil
	case reflect.Bool:
		sess.buf = strconv.AppendBool(sess.buf, rv.Bool())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sess.buf = strconv.AppendInt(sess.buf, rv.Int(), 10)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sess.buf = strconv.AppendUint(sess.buf, rv.Uint(), 10)
		return nil
	case reflect.Float32:
		return sess.appendFloat(rv.Float(), 32)
	case reflect.Float64:
		return sess.appendFloat(rv.Float(), 64)
	}
	return fmt.Errorf("unsupported marshal kind: %s", rv.Kind())
}

func (e *Engine) appendCustom(sess *session, fn custom.SerializeFunc, rv reflect.Value) error {
	data, err := fn(rv.Interface(), e.encodeFunc(sess))
	if err != nil {
		return fmt.Errorf("custom serializer for %v: %w", rv.Type(), err)
	}
	if len(data) == 0 {
		data = []byte("null")
	}
	sess.buf = append(sess.buf, data...)
	return nil
}

// encodeFunc encodes nested values on a child session sharing depth and the type table.
func (e *Engine) encodeFunc(sess *session) custom.EncodeFunc {
	return func(v interface{}) ([]byte, error) {
		child := &session{cfg: sess.cfg, depth: sess.depth, types: sess.types}
		if err := e.appendValue(child, reflect.ValueOf(v), ""); err != nil {
			return nil, err
		}
		return child.buf, nil
	}
}

func (e *Engine) appendStruct(sess *session, rv reflect.Value) error {
	rType := rv.Type()
	if err := sess.enter(rType); err != nil {
		return err
	}
	defer sess.leave()
	d := descriptor.Describe(rType)
	structPtr := structPointer(rv)
	names := d.Names(sess.cfg.CaseFormat)

	sess.buf = append(sess.buf, '{')
	counter := 0
	if sess.cfg.UseExtensions && rType.Name() != "" {
		name := descriptor.Register(rType)
		if sess.types != nil {
			name = sess.types.id(name)
		}
		sess.appendKey(TypeKey, &counter)
		sess.buf = value.AppendQuoted(sess.buf, name, sess.cfg.UseEscapedUnicode)
	}

	var mapped []value.Member
	for _, m := range d.Members {
		if m.ReadOnly && !sess.cfg.ShowReadOnly {
			continue
		}
		field, ok := m.Value(structPtr, false)
		if !ok {
			if m.OmitEmpty || !sess.cfg.SerializeNullValues {
				continue
			}
			sess.appendKey(names[m.Index], &counter)
			sess.buf = append(sess.buf, "null"...)
			continue
		}
		if m.OmitEmpty && field.IsZero() {
			continue
		}
		if !sess.cfg.SerializeNullValues && isNil(field) {
			continue
		}
		sess.appendKey(names[m.Index], &counter)
		if sess.cfg.UseExtensions && m.Type.Kind() == reflect.Interface && !field.IsNil() {
			if runtime := field.Elem().Type(); needsMapEntry(runtime) {
				mapped = append(mapped, value.Member{Key: names[m.Index], Value: value.StringValue(descriptor.Register(runtime))})
			}
		}
		if err := e.appendValue(sess, field, m.TimeLayout); err != nil {
			return err
		}
	}
	if len(mapped) > 0 {
		sess.appendKey(MapKey, &counter)
		sess.buf = append(sess.buf, '{')
		for i, entry := range mapped {
			if i > 0 {
				sess.buf = append(sess.buf, ',')
			}
			sess.buf = value.AppendQuoted(sess.buf, entry.Key, sess.cfg.UseEscapedUnicode)
			sess.buf = append(sess.buf, ':')
			sess.buf = entry.Value.Append(sess.buf)
		}
		sess.buf = append(sess.buf, '}')
	}
	sess.buf = append(sess.buf, '}')
	return nil
}

// needsMapEntry reports whether a runtime type behind an interface member cannot be
// recovered from its own encoding.
func needsMapEntry(rType reflect.Type) bool {
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return !descriptor.Describe(rType).Is(descriptor.ShapeStruct)
}

func (s *session) appendKey(name string, counter *int) {
	if *counter > 0 {
		s.buf = append(s.buf, ',')
	}
	*counter++
	s.buf = value.AppendQuoted(s.buf, name, s.cfg.UseEscapedUnicode)
	s.buf = append(s.buf, ':')
}

func (e *Engine) appendList(sess *session, rv reflect.Value) error {
	if err := sess.enter(rv.Type()); err != nil {
		return err
	}
	defer sess.leave()
	sess.buf = append(sess.buf, '[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			sess.buf = append(sess.buf, ',')
		}
		if err := e.appendValue(sess, rv.Index(i), ""); err != nil {
			return err
		}
	}
	sess.buf = append(sess.buf, ']')
	return nil
}

func (e *Engine) appendMap(sess *session, rv reflect.Value) error {
	if err := sess.enter(rv.Type()); err != nil {
		return err
	}
	defer sess.leave()
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	if rv.Type().Key().Kind() == reflect.String && !sess.cfg.KVStyleStringDictionary {
		counter := 0
		sess.buf = append(sess.buf, '{')
		for _, key := range keys {
			item := rv.MapIndex(key)
			if !sess.cfg.SerializeNullValues && isNil(item) {
				continue
			}
			sess.appendKey(key.String(), &counter)
			if err := e.appendValue(sess, item, ""); err != nil {
				return err
			}
		}
		sess.buf = append(sess.buf, '}')
		return nil
	}
	sess.buf = append(sess.buf, '[')
	for i, key := range keys {
		if i > 0 {
			sess.buf = append(sess.buf, ',')
		}
		sess.buf = append(sess.buf, `{"k":`...)
		if err := e.appendValue(sess, key, ""); err != nil {
			return err
		}
		sess.buf = append(sess.buf, `,"v":`...)
		if err := e.appendValue(sess, rv.MapIndex(key), ""); err != nil {
			return err
		}
		sess.buf = append(sess.buf, '}')
	}
	sess.buf = append(sess.buf, ']')
	return nil
}

func (e *Engine) appendDataSet(sess *session, ds *table.DataSet) error {
	if err := sess.enter(dataSetType); err != nil {
		return err
	}
	defer sess.leave()
	var err error
	sess.buf, err = ds.AppendJSON(sess.buf, sess.cfg.UseExtensions, sess.cfg.UseOptimizedDatasetSchema, func(dst []byte, cell interface{}) ([]byte, error) {
		child := &session{buf: dst, cfg: sess.cfg, depth: sess.depth, types: sess.types}
		if err := e.appendValue(child, reflect.ValueOf(cell), ""); err != nil {
			return nil, err
		}
		return child.buf, nil
	})
	return err
}

func (s *session) appendTime(t time.Time, layout string) {
	s.buf = append(s.buf, '"')
	if layout != "" {
		s.buf = t.AppendFormat(s.buf, layout)
		s.buf = append(s.buf, '"')
		return
	}
	utc := s.cfg.UseUTCDateTime || t.Location() == time.UTC
	if s.cfg.UseUTCDateTime {
		t = t.UTC()
	}
	layout = dateTimeLayout
	if s.cfg.DateTimeMilliseconds {
		layout = millisLayout
	}
	s.buf = t.AppendFormat(s.buf, layout)
	if utc {
		s.buf = append(s.buf, 'Z')
	}
	s.buf = append(s.buf, '"')
}

func (s *session) appendGUID(id uuid.UUID) {
	if s.cfg.UseFastGuid {
		s.appendBytes(id[:])
		return
	}
	s.buf = append(s.buf, '"')
	s.buf = append(s.buf, id.String()...)
	s.buf = append(s.buf, '"')
}

func (s *session) appendBytes(data []byte) {
	s.buf = append(s.buf, '"')
	s.buf = base64.StdEncoding.AppendEncode(s.buf, data)
	s.buf = append(s.buf, '"')
}

func (s *session) appendFloat(f float64, bitSize int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("unsupported float value: %v", f)
	}
	s.buf = strconv.AppendFloat(s.buf, f, 'g', -1, bitSize)
	return nil
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func lessKey(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}

func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp
}

func structPointer(rv reflect.Value) unsafe.Pointer {
	return unsafe.Pointer(addressable(rv).UnsafeAddr())
}
