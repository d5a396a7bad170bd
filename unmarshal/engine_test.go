package unmarshal

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fastjson/config"
	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/errs"
	"github.com/viant/fastjson/table"
	"github.com/viant/fastjson/value"
	"github.com/viant/tagly/format/text"
)

type shape interface{ Area() float64 }

type circle struct{ R float64 }

func (c circle) Area() float64 { return 3 * c.R * c.R }

type square struct{ S float64 }

func (s *square) Area() float64 { return s.S * s.S }

type drawing struct {
	Shapes []shape
	Main   shape
	Meta   interface{}
}

type person struct {
	FirstName string
	Age       int8
	Tags      []string
	Scores    map[string]int
	Audit     string `fastjson:",readonly"`
	Raw       value.Value
	Born      time.Time `format:"dateFormat=yyyy-MM-dd"`
}

type status int

const (
	active status = iota + 1
	closed
)

type slow struct{ Name string }

type box[T any] struct{ Item T }

func init() {
	for _, v := range []interface{}{circle{}, square{}, drawing{}, person{}} {
		descriptor.Register(reflect.TypeOf(v))
	}
	descriptor.RegisterEnum(reflect.TypeOf(active), map[string]int64{"Active": 1, "Closed": 2})
}

func TestEngine_Scalars(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	var testCases = []struct {
		description string
		input       string
		target      reflect.Type
		cfg         func(cfg *config.Config)
		expect      interface{}
		expectErr   bool
	}{
		{description: "decimal", input: `16.06`, target: reflect.TypeOf(0.0), expect: 16.06},
		{description: "int narrowing", input: `100`, target: reflect.TypeOf(int8(0)), expect: int8(100)},
		{description: "int overflow", input: `300`, target: reflect.TypeOf(int8(0)), expectErr: true},
		{description: "fraction into int", input: `1.5`, target: reflect.TypeOf(0), expectErr: true},
		{description: "integral float into int", input: `2e3`, target: reflect.TypeOf(0), expect: 2000},
		{description: "numeric string", input: `"42"`, target: reflect.TypeOf(int64(0)), expect: int64(42)},
		{description: "large unsigned", input: `18446744073709551615`, target: reflect.TypeOf(uint64(0)), expect: uint64(18446744073709551615)},
		{description: "negative unsigned", input: `-1`, target: reflect.TypeOf(uint(0)), expectErr: true},
		{description: "number as string", input: `12.50`, target: reflect.TypeOf(""), expect: "12.50"},
		{description: "bool", input: `true`, target: reflect.TypeOf(false), expect: true},
		{description: "bytes", input: `"aGk="`, target: reflect.TypeOf([]byte{}), expect: []byte("hi")},
		{description: "compact guid", input: `"a6e4EJ2tEdGAtADAT9QwyA=="`, target: reflect.TypeOf(uuid.UUID{}), expect: id},
		{description: "text guid", input: `"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`, target: reflect.TypeOf(uuid.UUID{}), expect: id},
		{description: "enum by name", input: `"Closed"`, target: reflect.TypeOf(active), expect: closed},
		{description: "enum by number", input: `1`, target: reflect.TypeOf(active), expect: active},
		{description: "enum name is case sensitive", input: `"closed"`, target: reflect.TypeOf(active), expectErr: true},
		{description: "null pointer", input: `null`, target: reflect.TypeOf(&circle{}), expect: (*circle)(nil)},
		{description: "untyped number", input: `7`, target: reflect.TypeOf((*interface{})(nil)).Elem(), expect: int64(7)},
		{description: "string into struct", input: `"x"`, target: reflect.TypeOf(circle{}), expectErr: true},
		{description: "raw value", input: `[1,{"a":null}]`, target: reflect.TypeOf(value.Value{}), expect: mustParse(`[1,{"a":null}]`)},
	}
	e := New(nil)
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cfg := config.Default()
			if testCase.cfg != nil {
				testCase.cfg(&cfg)
			}
			actual, err := e.Unmarshal([]byte(testCase.input), testCase.target, cfg)
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func mustParse(text string) value.Value {
	v, err := value.ParseString(text)
	if err != nil {
		panic(err)
	}
	return v
}

func TestEngine_Time(t *testing.T) {
	e := New(nil)
	timeType := reflect.TypeOf(time.Time{})

	actual, err := e.Unmarshal([]byte(`"2020-01-02 03:04:05Z"`), timeType, config.Default())
	require.NoError(t, err)
	assert.True(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC).Equal(actual.(time.Time)))
	assert.Equal(t, time.UTC, actual.(time.Time).Location())

	cfg := config.Default()
	cfg.UseUTCDateTime = false
	actual, err = e.Unmarshal([]byte(`"2020-01-02 03:04:05.250"`), timeType, cfg)
	require.NoError(t, err)
	local := actual.(time.Time)
	assert.Equal(t, time.Local, local.Location())
	assert.Equal(t, 3, local.Hour())
	assert.Equal(t, 250000000, local.Nanosecond())

	actual, err = e.Unmarshal([]byte(`"2020-01-02T03:04:05+01:00"`), timeType, cfg)
	require.NoError(t, err)
	assert.True(t, time.Date(2020, 1, 2, 2, 4, 5, 0, time.UTC).Equal(actual.(time.Time)))
}

func TestEngine_Struct(t *testing.T) {
	e := New(nil)
	var testCases = []struct {
		description string
		input       string
		cfg         func(cfg *config.Config)
		expect      person
		expectErr   bool
	}{
		{
			description: "members",
			input:       `{"FirstName":"Ann","Age":31,"Tags":["a","b"],"Scores":{"x":1},"Unknown":true,"Audit":"ignored","Born":"1990-05-06"}`,
			expect: person{FirstName: "Ann", Age: 31, Tags: []string{"a", "b"}, Scores: map[string]int{"x": 1},
				Born: time.Date(1990, 5, 6, 0, 0, 0, 0, time.UTC)},
		},
		{description: "case sensitive by default", input: `{"firstname":"Ann"}`, expect: person{}},
		{
			description: "ignore case",
			input:       `{"firstname":"Ann"}`,
			cfg:         func(cfg *config.Config) { cfg.IgnoreCase = true },
			expect:      person{FirstName: "Ann"},
		},
		{
			description: "case format",
			input:       `{"firstName":"Ann","age":2}`,
			cfg:         func(cfg *config.Config) { cfg.CaseFormat = text.CaseFormatLowerCamel },
			expect:      person{FirstName: "Ann", Age: 2},
		},
		{description: "narrowing failure", input: `{"Age":1000}`, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cfg := config.Default()
			if testCase.cfg != nil {
				testCase.cfg(&cfg)
			}
			actual, err := e.Unmarshal([]byte(testCase.input), reflect.TypeOf(person{}), cfg)
			if testCase.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, testCase.expect, actual)
		})
	}
}

func TestEngine_MemberConversionError(t *testing.T) {
	e := New(nil)
	_, err := e.Unmarshal([]byte(`{"Age":"old"}`), reflect.TypeOf(person{}), config.Default())
	var memberErr *errs.MemberConversionError
	require.True(t, errors.As(err, &memberErr))
	assert.Equal(t, "Age", memberErr.Member)
	assert.Equal(t, reflect.TypeOf(int8(0)), memberErr.Declared)
	assert.Equal(t, reflect.TypeOf(person{}), memberErr.Container)
	assert.Contains(t, err.Error(), "error deserializing member Age(int8) of unmarshal.person")
}

func TestEngine_Polymorphism(t *testing.T) {
	e := New(nil)
	input := `{"$types":{"github.com/viant/fastjson/unmarshal.drawing":"1","github.com/viant/fastjson/unmarshal.circle":"2","github.com/viant/fastjson/unmarshal.square":"3"},` +
		`"$type":"1","Shapes":[{"$type":"2","R":1},{"$type":"3","S":2}],"Main":{"$type":"2","R":3},"Meta":{"a":[1,"b"]}}`

	actual, err := e.Unmarshal([]byte(input), nil, config.Default())
	require.NoError(t, err)
	d, ok := actual.(drawing)
	require.True(t, ok)
	require.Len(t, d.Shapes, 2)
	assert.Equal(t, circle{R: 1}, d.Shapes[0])
	assert.Equal(t, &square{S: 2}, d.Shapes[1])
	assert.Equal(t, circle{R: 3}, d.Main)
	assert.Equal(t, map[string]interface{}{"a": []interface{}{int64(1), "b"}}, d.Meta)

	ptr, err := e.Unmarshal([]byte(input), reflect.TypeOf(&drawing{}), config.Default())
	require.NoError(t, err)
	assert.Equal(t, &d, ptr)

	byName := `{"$type":"github.com/viant/fastjson/unmarshal.circle","R":2}`
	actual, err = e.Unmarshal([]byte(byName), reflect.TypeOf((*shape)(nil)).Elem(), config.Default())
	require.NoError(t, err)
	assert.Equal(t, circle{R: 2}, actual)
}

func TestEngine_TypeResolution(t *testing.T) {
	e := New(nil)
	var testCases = []struct {
		description string
		input       string
		target      reflect.Type
	}{
		{description: "alias missing from $types", input: `{"$types":{"github.com/viant/fastjson/unmarshal.drawing":"1"},"$type":"1","Main":{"$type":"9","R":1}}`},
		{description: "unknown type name", input: `{"$type":"example.com/none.Thing"}`},
		{description: "no type and no target", input: `{"R":1}`},
		{description: "interface without type", input: `{"R":1}`, target: reflect.TypeOf((*shape)(nil)).Elem()},
		{description: "type does not implement", input: `{"$type":"github.com/viant/fastjson/unmarshal.person"}`, target: reflect.TypeOf((*shape)(nil)).Elem()},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := e.Unmarshal([]byte(testCase.input), testCase.target, config.Default())
			var resolutionErr *errs.TypeResolutionError
			assert.True(t, errors.As(err, &resolutionErr), "%v", err)
		})
	}

	actual, err := e.Unmarshal([]byte(`null`), nil, config.Default())
	require.NoError(t, err)
	assert.Nil(t, actual)

	_, err = e.Unmarshal([]byte(`{"a":`), nil, config.Default())
	var parseErr *errs.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

type ratio float64

func (r ratio) Area() float64 { return float64(r) }

func TestEngine_MapSideTable(t *testing.T) {
	descriptor.Register(reflect.TypeOf(ratio(0)))
	e := New(nil)
	var testCases = []struct {
		description string
		input       string
		expect      drawing
		expectErr   bool
	}{
		{description: "empty interface", input: `{"Meta":5,"$map":{"Meta":"int32"}}`, expect: drawing{Meta: int32(5)}},
		{description: "interface with methods", input: `{"Main":0.5,"$map":{"Main":"github.com/viant/fastjson/unmarshal.ratio"}}`, expect: drawing{Main: ratio(0.5)}},
		{description: "side table first", input: `{"$map":{"Main":"github.com/viant/fastjson/unmarshal.ratio","Meta":"uint8"},"Main":2,"Meta":7}`, expect: drawing{Main: ratio(2), Meta: uint8(7)}},
		{description: "null member", input: `{"Meta":null,"$map":{"Meta":"int32"}}`, expect: drawing{}},
		{description: "unregistered name", input: `{"Meta":1,"$map":{"Meta":"example.Missing"}}`, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := e.Unmarshal([]byte(testCase.input), reflect.TypeOf(drawing{}), config.Default())
			if testCase.expectErr {
				var memberErr *errs.MemberConversionError
				assert.True(t, errors.As(err, &memberErr), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestEngine_Dictionaries(t *testing.T) {
	e := New(nil)
	var testCases = []struct {
		description string
		input       string
		target      reflect.Type
		expect      interface{}
	}{
		{description: "pairs", input: `[{"k":2,"v":"b"},{"k":1,"v":"a"}]`, target: reflect.TypeOf(map[int]string{}), expect: map[int]string{1: "a", 2: "b"}},
		{description: "string keyed object", input: `{"a":1}`, target: reflect.TypeOf(map[string]int{}), expect: map[string]int{"a": 1}},
		{description: "int keyed object", input: `{"7":"x"}`, target: reflect.TypeOf(map[int]string{}), expect: map[int]string{7: "x"}},
		{description: "array", input: `[1,2]`, target: reflect.TypeOf([3]int{}), expect: [3]int{1, 2, 0}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := e.Unmarshal([]byte(testCase.input), testCase.target, config.Default())
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestEngine_DataSet(t *testing.T) {
	e := New(nil)
	input := `{"$schema":{"Info":["people","name","string","people","age","int"],"Name":"db"},"people":[["ann",31],["bob",null]]}`
	actual, err := e.Unmarshal([]byte(input), nil, config.Default())
	require.NoError(t, err)
	ds, ok := actual.(*table.DataSet)
	require.True(t, ok)
	people, ok := ds.Table("people")
	require.True(t, ok)
	require.Len(t, people.Rows, 2)
	age, _ := people.Cell(0, "age")
	assert.Equal(t, 31, age)
	age, _ = people.Cell(1, "age")
	assert.Nil(t, age)
}

func TestEngine_Fill(t *testing.T) {
	e := New(nil)
	p := &person{FirstName: "Ann", Age: 3, Tags: []string{"x"}}
	require.NoError(t, e.Fill([]byte(`{"Age":4}`), p, config.Default()))
	assert.Equal(t, "Ann", p.FirstName)
	assert.Equal(t, int8(4), p.Age)
	assert.Equal(t, []string{"x"}, p.Tags)

	err := e.Fill([]byte(`{"FirstName":"Bob","Age":"bad"}`), p, config.Default())
	require.Error(t, err)
	assert.Equal(t, "Bob", p.FirstName, "members written before the failure stay written")

	assert.Error(t, e.Fill([]byte(`{}`), person{}, config.Default()))
}

func TestEngine_Custom(t *testing.T) {
	registry := custom.New()
	e := New(registry)
	registry.RegisterDeserializer(reflect.TypeOf(circle{}), custom.Deserializer{
		Scalar: func(node value.Value, _ reflect.Type, _ custom.DecodeFunc) (interface{}, error) {
			r, _ := node.Float()
			return circle{R: r}, nil
		},
	})
	registry.RegisterGenericDeserializer(reflect.TypeOf(box[int]{}), custom.Deserializer{
		Array: func(items []value.Value, target reflect.Type, decode custom.DecodeFunc) (interface{}, error) {
			ret := reflect.New(target).Elem()
			item, err := decode(items[0], target.Field(0).Type)
			if err != nil {
				return nil, err
			}
			ret.Field(0).Set(reflect.ValueOf(item))
			return ret.Interface(), nil
		},
	})

	actual, err := e.Unmarshal([]byte(`2.5`), reflect.TypeOf(circle{}), config.Default())
	require.NoError(t, err)
	assert.Equal(t, circle{R: 2.5}, actual)

	actual, err = e.Unmarshal([]byte(`{"R":1}`), reflect.TypeOf(circle{}), config.Default())
	require.NoError(t, err)
	assert.Equal(t, circle{R: 1}, actual, "object shape falls back to the default path")

	actual, err = e.Unmarshal([]byte(`["x"]`), reflect.TypeOf(box[string]{}), config.Default())
	require.NoError(t, err)
	assert.Equal(t, box[string]{Item: "x"}, actual)

	registry.Clear()
	_, err = e.Unmarshal([]byte(`2.5`), reflect.TypeOf(circle{}), config.Default())
	assert.Error(t, err)
}

func TestEngine_ConcurrentDocumentsAreIsolated(t *testing.T) {
	registry := custom.New()
	e := New(registry)
	descriptor.Register(reflect.TypeOf(slow{}))
	registry.RegisterDeserializer(reflect.TypeOf(slow{}), custom.Deserializer{
		Object: func(members *value.Members, _ reflect.Type, decode custom.DecodeFunc) (interface{}, error) {
			time.Sleep(5 * time.Millisecond)
			name, _ := members.Get("Name")
			text, _ := name.Text()
			return slow{Name: text}, nil
		},
	})
	global := `{"$types":{"github.com/viant/fastjson/unmarshal.drawing":"1","github.com/viant/fastjson/unmarshal.slow":"2","github.com/viant/fastjson/unmarshal.circle":"3"},` +
		`"$type":"1","Meta":{"$type":"2","Name":"s"},"Main":{"$type":"3","R":1}}`
	plain := `{"$type":"github.com/viant/fastjson/unmarshal.drawing","Main":{"$type":"github.com/viant/fastjson/unmarshal.circle","R":2}}`

	var wg sync.WaitGroup
	failures := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			actual, err := e.Unmarshal([]byte(global), nil, config.Default())
			if err == nil && actual.(drawing).Main != (circle{R: 1}) {
				err = errors.New("global document resolved the wrong type")
			}
			if err != nil {
				failures <- err
			}
		}()
		go func() {
			defer wg.Done()
			actual, err := e.Unmarshal([]byte(plain), nil, config.Default())
			if err == nil && actual.(drawing).Main != (circle{R: 2}) {
				err = errors.New("plain document resolved the wrong type")
			}
			if err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
}
