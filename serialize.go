package paramount

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrStreamingResult marks a function result that cannot be recorded:
// channels, functions and other generator-like values indicate a streaming
// response, which is handed back to the caller unrecorded.
var ErrStreamingResult = errors.New("streaming result is not recordable")

// Serialize normalizes a single result value into a JSON-safe value
// (nil, bool, float64, string, []any or map[string]any).
//
// The dispatch is a closed set of known shapes, tried in order: scalars
// pass through, raw JSON bytes are decoded, json.Marshaler values are
// exported and decoded, and any remaining value goes through a JSON
// round-trip with a string-coercion fallback. Serialization never fails;
// the only sentinel is ErrStreamingResult.
func Serialize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.RawMessage:
		return decodeJSON([]byte(x))
	case []byte:
		if out, err := decodeJSON(x); err == nil {
			return out, nil
		}
		return string(x), nil
	case json.Marshaler:
		b, err := x.MarshalJSON()
		if err != nil {
			return fmt.Sprint(v), nil
		}
		if out, derr := decodeJSON(b); derr == nil {
			return out, nil
		}
		return string(b), nil
	case error:
		return x.Error(), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Chan, reflect.Func:
		return nil, ErrStreamingResult
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), nil
	}
	out, err := decodeJSON(b)
	if err != nil {
		return fmt.Sprint(v), nil
	}
	return out, nil
}

// SerializeResult turns a full function result into an ordered output
// tuple. A []any result is treated as a tuple and serialized element-wise,
// preserving order; any other value becomes a single-element tuple.
func SerializeResult(v any) ([]any, error) {
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	out := make([]any, len(items))
	for i, item := range items {
		s, err := Serialize(item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decodeJSON(b []byte) (any, error) {
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
