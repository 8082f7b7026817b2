// Package valuecodec turns plain Go values (primitives, dates, slices and
// string-keyed maps) into a JSON-compatible tree and back.
//
// Dates travel as {"__date": "<RFC 3339>"}. Callers intercept other
// sub-trees (components, for instance) with a Hook.
package valuecodec

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// DateKey is the reserved key used to carry a date.
const DateKey = "__date"

// ErrUnsupportedValue is returned for values the codec cannot represent.
var ErrUnsupportedValue = errors.New("valuecodec: unsupported value")

// Hook intercepts a value before the default handling. When handled is false
// the codec continues with its own rules.
type Hook func(value any) (out any, handled bool, err error)

// Serialize converts value into a wire-safe tree. hook may be nil.
func Serialize(value any, hook Hook) (any, error) {
	if hook != nil {
		out, handled, err := hook(value)
		if err != nil {
			return nil, err
		}
		if handled {
			return out, nil
		}
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case time.Time:
		return map[string]any{DateKey: v.UTC().Format(time.RFC3339Nano)}, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return map[string]any{DateKey: v.UTC().Format(time.RFC3339Nano)}, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			s, err := Serialize(item, hook)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			s, err := Serialize(item, hook)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = s
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := Serialize(rv.Index(i).Interface(), hook)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map with %s keys", ErrUnsupportedValue, rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			s, err := Serialize(iter.Value().Interface(), hook)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = s
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}

// Deserialize converts a wire tree back into plain Go values: maps become
// map[string]any, sequences []any and date envelopes time.Time. hook may be
// nil.
func Deserialize(value any, hook Hook) (any, error) {
	if hook != nil {
		out, handled, err := hook(value)
		if err != nil {
			return nil, err
		}
		if handled {
			return out, nil
		}
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if raw, ok := v[DateKey]; ok && len(v) == 1 {
			return parseDate(raw)
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			d, err := Deserialize(item, hook)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = d
		}
		return out, nil
	case map[any]any:
		// Produced by some decoders (msgpack with non-string keys).
		converted := make(map[string]any, len(v))
		for key, item := range v {
			s, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("%w: map key %T", ErrUnsupportedValue, key)
			}
			converted[s] = item
		}
		return Deserialize(converted, hook)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			d, err := Deserialize(item, hook)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = d
		}
		return out, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}

func parseDate(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s holds %T", ErrUnsupportedValue, DateKey, raw)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return t, nil
}

// IsNumber reports whether v holds a Go numeric type.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
