package marshal

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fastjson/config"
	"github.com/viant/fastjson/custom"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/errs"
	"github.com/viant/fastjson/table"
	"github.com/viant/tagly/format/text"
)

type hello struct {
	Hello string
}

type inner struct {
	ID int
}

type outer struct {
	First  inner
	Second *inner
	Items  []inner
}

type node struct {
	Next *node
}

type account struct {
	FirstName string
	Nickname  *string
	Balance   float64
	Audit     string `fastjson:",readonly"`
	Note      string `json:",omitempty"`
}

type holder struct {
	Any interface{}
}

type level int

const (
	low level = iota
	high
)

type wrapper[T any] struct {
	Item T
}

func plain() config.Config {
	cfg := config.Default()
	cfg.UseExtensions = false
	return cfg
}

func chain(n int) *node {
	var head *node
	for i := 0; i < n; i++ {
		head = &node{Next: head}
	}
	return head
}

func TestEngine_Marshal(t *testing.T) {
	descriptor.RegisterEnum(reflect.TypeOf(low), map[string]int64{"Low": 0, "High": 1})
	ts := time.Date(2020, 1, 2, 3, 4, 5, 6000000, time.UTC)
	local := time.Date(2020, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	var testCases = []struct {
		description string
		value       interface{}
		cfg         func(cfg *config.Config)
		expect      string
	}{
		{description: "nil", value: nil, expect: `null`},
		{description: "plain struct", value: hello{Hello: "World"}, expect: `{"Hello":"World"}`},
		{description: "anonymous empty struct", value: struct{}{}, cfg: func(cfg *config.Config) { cfg.UseExtensions = true }, expect: `{}`},
		{
			description: "type tag by name",
			value:       &hello{Hello: "World"},
			cfg: func(cfg *config.Config) {
				cfg.UseExtensions = true
				cfg.UsingGlobalTypes = false
			},
			expect: `{"$type":"github.com/viant/fastjson/marshal.hello","Hello":"World"}`,
		},
		{
			description: "global type table in first-encounter order",
			value:       outer{First: inner{ID: 1}, Items: []inner{{ID: 2}}},
			cfg:         func(cfg *config.Config) { *cfg = config.Default() },
			expect:      `{"$types":{"github.com/viant/fastjson/marshal.outer":"1","github.com/viant/fastjson/marshal.inner":"2"},"$type":"1","First":{"$type":"2","ID":1},"Second":null,"Items":[{"$type":"2","ID":2}]}`,
		},
		{
			description: "global types disabled for list roots",
			value:       []inner{{ID: 1}},
			cfg:         func(cfg *config.Config) { *cfg = config.Default() },
			expect:      `[{"$type":"github.com/viant/fastjson/marshal.inner","ID":1}]`,
		},
		{description: "nulls emitted", value: account{FirstName: "a", Balance: 16.06}, expect: `{"FirstName":"a","Nickname":null,"Balance":16.06}`},
		{
			description: "nulls skipped",
			value:       account{FirstName: "a"},
			cfg:         func(cfg *config.Config) { cfg.SerializeNullValues = false },
			expect:      `{"FirstName":"a","Balance":0}`,
		},
		{
			description: "read only shown",
			value:       account{Audit: "x", Note: "n"},
			cfg:         func(cfg *config.Config) { cfg.ShowReadOnly = true },
			expect:      `{"FirstName":"","Nickname":null,"Balance":0,"Audit":"x","Note":"n"}`,
		},
		{
			description: "case format",
			value:       account{FirstName: "a"},
			cfg:         func(cfg *config.Config) { cfg.CaseFormat = text.CaseFormatLowerCamel },
			expect:      `{"firstName":"a","nickname":null,"balance":0}`,
		},
		{description: "utc time", value: ts, expect: `"2020-01-02 03:04:05Z"`},
		{
			description: "local time kept",
			value:       local,
			cfg:         func(cfg *config.Config) { cfg.UseUTCDateTime = false },
			expect:      `"2020-01-02 03:04:05"`,
		},
		{description: "local time normalized", value: local, expect: `"2020-01-02 02:04:05Z"`},
		{
			description: "milliseconds",
			value:       ts,
			cfg:         func(cfg *config.Config) { cfg.DateTimeMilliseconds = true },
			expect:      `"2020-01-02 03:04:05.006Z"`,
		},
		{description: "compact guid", value: id, expect: `"a6e4EJ2tEdGAtADAT9QwyA=="`},
		{
			description: "text guid",
			value:       id,
			cfg:         func(cfg *config.Config) { cfg.UseFastGuid = false },
			expect:      `"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`,
		},
		{description: "bytes", value: []byte("hi"), expect: `"aGk="`},
		{description: "string map sorted", value: map[string]int{"b": 2, "a": 1}, expect: `{"a":1,"b":2}`},
		{description: "int keyed map", value: map[int]string{2: "b", 1: "a"}, expect: `[{"k":1,"v":"a"},{"k":2,"v":"b"}]`},
		{
			description: "kv string dictionary",
			value:       map[string]int{"a": 1},
			cfg:         func(cfg *config.Config) { cfg.KVStyleStringDictionary = true },
			expect:      `[{"k":"a","v":1}]`,
		},
		{description: "enum by name", value: []level{high, low, level(7)}, expect: `["High","Low",7]`},
		{description: "escaped unicode", value: "café", expect: `"caf\u00e9"`},
		{
			description: "raw unicode",
			value:       "café",
			cfg:         func(cfg *config.Config) { cfg.UseEscapedUnicode = false },
			expect:      "\"café\"",
		},
		{
			description: "map side table for interface members",
			value:       holder{Any: int32(5)},
			cfg: func(cfg *config.Config) {
				cfg.UseExtensions = true
				cfg.UsingGlobalTypes = false
			},
			expect: `{"$type":"github.com/viant/fastjson/marshal.holder","Any":5,"$map":{"Any":"int32"}}`,
		},
		{description: "float32", value: float32(1.1), expect: `1.1`},
	}

	e := New(nil)
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cfg := plain()
			if testCase.cfg != nil {
				testCase.cfg(&cfg)
			}
			data, err := e.Marshal(testCase.value, cfg)
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(data))
			assert.True(t, json.Valid(data), string(data))
		})
	}
}

func TestEngine_MarshalDepth(t *testing.T) {
	e := New(nil)
	_, err := e.Marshal(chain(10), plain())
	require.NoError(t, err)

	_, err = e.Marshal(chain(11), plain())
	var depthErr *errs.DepthExceededError
	require.True(t, errors.As(err, &depthErr))
	assert.Equal(t, config.DefaultMaxDepth, depthErr.Limit)

	cfg := plain()
	cfg.MaxDepth = 20
	_, err = e.Marshal(chain(11), cfg)
	assert.NoError(t, err)
}

func TestEngine_MarshalCustom(t *testing.T) {
	registry := custom.New()
	registry.RegisterSerializer(reflect.TypeOf(inner{}), func(v interface{}, _ custom.EncodeFunc) ([]byte, error) {
		return []byte(`"inner"`), nil
	})
	registry.RegisterGenericSerializer(reflect.TypeOf(wrapper[int]{}), func(v interface{}, encode custom.EncodeFunc) ([]byte, error) {
		return encode(reflect.ValueOf(v).Field(0).Interface())
	})
	e := New(registry)

	var testCases = []struct {
		description string
		value       interface{}
		expect      string
	}{
		{description: "exact", value: outer{First: inner{ID: 1}}, expect: `{"First":"inner","Second":null,"Items":null}`},
		{description: "generic", value: []interface{}{wrapper[string]{Item: "x"}, wrapper[bool]{Item: true}}, expect: `["x",true]`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			data, err := e.Marshal(testCase.value, plain())
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(data))
		})
	}

	registry.Clear()
	data, err := e.Marshal(inner{ID: 1}, plain())
	require.NoError(t, err)
	assert.Equal(t, `{"ID":1}`, string(data))
}

func TestEngine_MarshalCustomPointerRoot(t *testing.T) {
	registry := custom.New()
	registry.RegisterSerializer(reflect.TypeOf(&outer{}), func(v interface{}, encode custom.EncodeFunc) ([]byte, error) {
		return encode(v.(*outer).Items)
	})
	e := New(registry)

	data, err := e.Marshal(&outer{Items: []inner{{ID: 1}}}, config.Default())
	require.NoError(t, err)
	assert.True(t, json.Valid(data), string(data))
	assert.Equal(t, `[{"$type":"github.com/viant/fastjson/marshal.inner","ID":1}]`, string(data))

	data, err = e.Marshal(outer{Items: []inner{{ID: 2}}}, config.Default())
	require.NoError(t, err)
	assert.True(t, json.Valid(data), string(data))
	assert.Contains(t, string(data), `"$types":{`)
}

func TestSpliceTypes(t *testing.T) {
	types := newTypeTable()
	types.id("a.T")
	var testCases = []struct {
		description string
		body        string
		expect      string
		ok          bool
	}{
		{description: "object", body: `{"$type":"1","X":1}`, expect: `{"$types":{"a.T":"1"},"$type":"1","X":1}`, ok: true},
		{description: "empty object", body: `{}`, expect: `{"$types":{"a.T":"1"}}`, ok: true},
		{description: "array", body: `[{"$type":"1"}]`},
		{description: "scalar", body: `"x"`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			out, ok := spliceTypes([]byte(testCase.body), types, false)
			assert.Equal(t, testCase.ok, ok)
			if ok {
				assert.Equal(t, testCase.expect, string(out))
			}
		})
	}
}

func TestEngine_MarshalErrors(t *testing.T) {
	e := New(nil)
	_, err := e.Marshal(math.NaN(), plain())
	assert.Error(t, err)
	_, err = e.Marshal(make(chan int), plain())
	assert.Error(t, err)
}

func TestEngine_MarshalDataSet(t *testing.T) {
	people := table.NewTable("people", table.Column{Name: "name", Type: reflect.TypeOf("")}, table.Column{Name: "age", Type: reflect.TypeOf(0)})
	require.NoError(t, people.AddRow("ann", 31))
	ds := table.NewDataSet("db", people)
	e := New(nil)

	data, err := e.Marshal(ds, plain())
	require.NoError(t, err)
	assert.Equal(t, `{"people":[["ann",31]]}`, string(data))

	data, err = e.Marshal(ds, config.Default())
	require.NoError(t, err)
	assert.Equal(t, `{"$schema":{"Info":["people","name","string","people","age","int"],"Name":"db"},"people":[["ann",31]]}`, string(data))

	cfg := config.Default()
	cfg.UseOptimizedDatasetSchema = false
	data, err = e.Marshal(ds, cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"$schema":{"Name":"db","Tables":[{"Name":"people","Columns":[{"Name":"name","Type":"string"},{"Name":"age","Type":"int"}]}]},"people":[["ann",31]]}`, string(data))
}
