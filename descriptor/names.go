package descriptor

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/fastjson/internal/lru"
)

var (
	qualifiedNames = lru.New[reflect.Type, string](4096)
	typesByName    sync.Map // map[string]reflect.Type
)

func init() {
	for _, builtin := range []interface{}{
		false, "", 0, int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0), float32(0), float64(0),
		time.Time{}, uuid.UUID{}, []byte{}, map[string]interface{}{}, []interface{}{},
	} {
		Register(reflect.TypeOf(builtin))
	}
}

// NameOf returns the process-wide type name used in $type tags: import path plus type
// name for named types, the Go type expression otherwise.
func NameOf(rType reflect.Type) string {
	return qualifiedNames.GetOrCompute(rType, func() string {
		if rType.Name() != "" && rType.PkgPath() != "" {
			return rType.PkgPath() + "." + rType.Name()
		}
		return rType.String()
	})
}

// Register makes rType resolvable by its qualified name.
func Register(rType reflect.Type) string {
	name := NameOf(rType)
	typesByName.LoadOrStore(name, rType)
	return name
}

// RegisterName adds an alias, overriding any previous binding for name.
func RegisterName(name string, rType reflect.Type) {
	typesByName.Store(name, rType)
}

// Resolve returns the type bound to name.
func Resolve(name string) (reflect.Type, bool) {
	v, ok := typesByName.Load(name)
	if !ok {
		return nil, false
	}
	return v.(reflect.Type), true
}
