// Package payload turns request bodies into field maps and reads typed values
// back out of them.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

var (
	// ErrMalformedBody is returned by Extract when the body is not a JSON object.
	ErrMalformedBody = errors.New("malformed body")

	// ErrUnknownField is returned by CheckFields for keys outside the allowed set.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidValue is returned by the typed accessors on a type mismatch.
	ErrInvalidValue = errors.New("invalid value")
)

// Extract reads the request body as a JSON object. Numbers are kept as
// json.Number so integers survive intact.
func Extract(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return Parse(data)
}

// Parse decodes raw bytes as a JSON object.
func Parse(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedBody)
	}

	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedBody)
	}
	return fields, nil
}

// Truthy reports whether v counts as set for partial updates. null, false,
// zero, "" and empty arrays/objects are falsy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// AnyTruthy reports whether at least one of the named keys holds a truthy value.
func AnyTruthy(fields map[string]any, names []string) bool {
	for _, name := range names {
		if Truthy(fields[name]) {
			return true
		}
	}
	return false
}

// CheckFields rejects keys that are not in allowed.
func CheckFields(fields map[string]any, allowed []string) error {
	var unknown []string
	for key := range fields {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(unknown, ", "))
}

// String returns the string stored under key. ok is false when the key is
// absent or null.
func String(fields map[string]any, key string) (s string, ok bool, err error) {
	v, present := fields[key]
	if !present || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
	}
	return s, true, nil
}

// Int returns the integer stored under key. Fractional numbers are rejected.
func Int(fields map[string]any, key string) (n int64, ok bool, err error) {
	v, present := fields[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true, nil
		}
		f, err := x.Float64()
		if err != nil || !isInt64(f) {
			return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, key)
		}
		return int64(f), true, nil
	case float64:
		if !isInt64(x) {
			return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, key)
		}
		return int64(x), true, nil
	case int:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	}
	return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, key)
}

// isInt64 reports whether f is integral and fits in an int64. The upper
// bound is exclusive because float64(math.MaxInt64) rounds up to 2^63.
func isInt64(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

// Timestamps must stay within years 0001 through 9999 so they round-trip
// through the RFC 3339 text stored in the database.
var (
	minTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Time accepts an RFC 3339 string or a Unix timestamp in seconds.
func Time(fields map[string]any, key string) (t time.Time, ok bool, err error) {
	v, present := fields[key]
	if !present || v == nil {
		return time.Time{}, false, nil
	}
	switch x := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ErrInvalidValue, key)
		}
		t = t.UTC()
		if t.Before(minTime) || t.After(maxTime) {
			return time.Time{}, false, fmt.Errorf("%w: %s must be between years 0001 and 9999", ErrInvalidValue, key)
		}
		return t, true, nil
	case json.Number, float64, int, int64:
		secs, _, err := Int(fields, key)
		if err != nil {
			return time.Time{}, false, err
		}
		if secs < minTime.Unix() || secs > maxTime.Unix() {
			return time.Time{}, false, fmt.Errorf("%w: %s must be between years 0001 and 9999", ErrInvalidValue, key)
		}
		return time.Unix(secs, 0).UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %s must be a timestamp", ErrInvalidValue, key)
}

// Objects returns the array of objects stored under key.
func Objects(fields map[string]any, key string) ([]map[string]any, error) {
	v, present := fields[key]
	if !present || v == nil {
		return nil, nil
	}
	arr, isArray := v.([]any)
	if !isArray {
		return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidValue, key)
	}
	out := make([]map[string]any, 0, len(arr))
	for i, elem := range arr {
		obj, isObject := elem.(map[string]any)
		if !isObject {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", ErrInvalidValue, key, i)
		}
		out = append(out, obj)
	}
	return out, nil
}
