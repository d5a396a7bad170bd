package unmarshal

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/value"
)

const dateTimeLayout = "2006-01-02 15:04:05"

var (
	timeType = reflect.TypeOf(time.Time{})
	guidType = reflect.TypeOf(uuid.UUID{})
)

func (s *session) assignScalar(node value.Value, dest reflect.Value, layout string) error {
	target := dest.Type()
	if enum, ok := descriptor.EnumOf(target); ok {
		if name, ok := node.Text(); ok {
			v, ok := enum.Value(name)
			if !ok {
				return fmt.Errorf("unknown %v symbol %q", target, name)
			}
			dest.Set(v)
			return nil
		}
	}
	switch target {
	case timeType:
		t, err := s.parseTime(node, layout)
		if err != nil {
			return err
		}
		dest.Set(reflect.ValueOf(t))
		return nil
	case guidType:
		id, err := parseGUID(node)
		if err != nil {
			return err
		}
		dest.Set(reflect.ValueOf(id))
		return nil
	}

	switch target.Kind() {
	case reflect.String:
		text, err := stringOf(node)
		if err != nil {
			return err
		}
		dest.SetString(text)
		return nil
	case reflect.Bool:
		b, ok := node.Bool()
		if !ok {
			text, isText := node.Text()
			parsed, err := strconv.ParseBool(text)
			if !isText || err != nil {
				return mismatch(node, target)
			}
			b = parsed
		}
		dest.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := intOf(node)
		if err != nil {
			return err
		}
		if dest.OverflowInt(i) {
			return fmt.Errorf("value %d overflows %v", i, target)
		}
		dest.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := uintOf(node)
		if err != nil {
			return err
		}
		if dest.OverflowUint(u) {
			return fmt.Errorf("value %d overflows %v", u, target)
		}
		dest.SetUint(u)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := floatOf(node)
		if err != nil {
			return err
		}
		if dest.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %v", f, target)
		}
		dest.SetFloat(f)
		return nil
	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			text, ok := node.Text()
			if !ok {
				return mismatch(node, target)
			}
			data, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				return err
			}
			dest.SetBytes(data)
			return nil
		}
	}
	return mismatch(node, target)
}

func mismatch(node value.Value, target reflect.Type) error {
	return fmt.Errorf("cannot convert %v %s to %v", node.Kind(), node.String(), target)
}

func stringOf(node value.Value) (string, error) {
	switch node.Kind() {
	case value.String:
		text, _ := node.Text()
		return text, nil
	case value.Number:
		text, _ := node.NumberText()
		return text, nil
	case value.Bool:
		b, _ := node.Bool()
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("cannot convert %v to string", node.Kind())
}

func intOf(node value.Value) (int64, error) {
	if i, ok := node.Int(); ok {
		return i, nil
	}
	if text, ok := node.Text(); ok {
		return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	}
	f, ok := node.Float()
	if !ok {
		return 0, fmt.Errorf("cannot convert %v to integer", node.Kind())
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("number %s is not a 64-bit integer", node.String())
	}
	return int64(f), nil
}

func uintOf(node value.Value) (uint64, error) {
	text, ok := node.NumberText()
	if !ok {
		if text, ok = node.Text(); !ok {
			return 0, fmt.Errorf("cannot convert %v to unsigned integer", node.Kind())
		}
		text = strings.TrimSpace(text)
	}
	return strconv.ParseUint(text, 10, 64)
}

func floatOf(node value.Value) (float64, error) {
	if f, ok := node.Float(); ok {
		return f, nil
	}
	if text, ok := node.Text(); ok {
		return strconv.ParseFloat(strings.TrimSpace(text), 64)
	}
	return 0, fmt.Errorf("cannot convert %v to float", node.Kind())
}

// parseTime accepts "yyyy-MM-dd HH:mm:ss[.fff][Z]" and RFC 3339. A trailing Z or the
// UTC switch yields UTC, otherwise local time.
func (s *session) parseTime(node value.Value, layout string) (time.Time, error) {
	text, ok := node.Text()
	if !ok {
		return time.Time{}, fmt.Errorf("cannot convert %v to time", node.Kind())
	}
	if layout != "" {
		return time.Parse(layout, text)
	}
	loc := time.Local
	if s.cfg.UseUTCDateTime {
		loc = time.UTC
	}
	if trimmed, ok := strings.CutSuffix(text, "Z"); ok && !strings.Contains(trimmed, "T") {
		return time.ParseInLocation(dateTimeLayout, trimmed, time.UTC)
	}
	if t, err := time.ParseInLocation(dateTimeLayout, text, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, text)
}

// parseGUID accepts the canonical text form and the base64 form of the 16 raw bytes.
func parseGUID(node value.Value) (uuid.UUID, error) {
	text, ok := node.Text()
	if !ok {
		return uuid.Nil, fmt.Errorf("cannot convert %v to guid", node.Kind())
	}
	if len(text) > 30 {
		return uuid.Parse(text)
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(data)
}
