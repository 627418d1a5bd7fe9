package validation

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// ErrWrongType is returned by the value decoders when a raw JSON value has
// the wrong shape for the field.
var ErrWrongType = errors.New("wrong value type")

// Lookup returns obj[key], treating an explicit null as absent.
func Lookup(obj map[string]any, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Int64 decodes an integer from a JSON number, a Go integer, or a numeric
// string. Fractional numbers and values outside the int64 range are rejected.
func Int64(v any) mo.Result[int64] {
	switch n := v.(type) {
	case int:
		return mo.Ok(int64(n))
	case int64:
		return mo.Ok(n)
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return mo.Err[int64](ErrWrongType)
		}
		return mo.Ok(int64(n))
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return mo.Err[int64](ErrWrongType)
		}
		return mo.Ok(i)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return mo.Err[int64](ErrWrongType)
		}
		return mo.Ok(i)
	default:
		return mo.Err[int64](ErrWrongType)
	}
}

// Int is Int64 narrowed to int; values the platform int cannot hold are
// rejected rather than truncated.
func Int(v any) mo.Result[int] {
	n, err := Int64(v).Get()
	if err != nil {
		return mo.Err[int](err)
	}
	if n < math.MinInt || n > math.MaxInt {
		return mo.Err[int](ErrWrongType)
	}
	return mo.Ok(int(n))
}

// String decodes a JSON string.
func String(v any) mo.Result[string] {
	s, ok := v.(string)
	if !ok {
		return mo.Err[string](ErrWrongType)
	}
	return mo.Ok(s)
}

// Bool decodes a JSON boolean. The form-style strings "true", "false", "1"
// and "0" and the numbers 0 and 1 are accepted as well.
func Bool(v any) mo.Result[bool] {
	switch b := v.(type) {
	case bool:
		return mo.Ok(b)
	case string:
		switch strings.ToLower(b) {
		case "true", "1":
			return mo.Ok(true)
		case "false", "0", "":
			return mo.Ok(false)
		}
	default:
		if n, err := Int(v).Get(); err == nil && (n == 0 || n == 1) {
			return mo.Ok(n == 1)
		}
	}
	return mo.Err[bool](ErrWrongType)
}

// Time decodes an RFC3339 timestamp.
func Time(v any) mo.Result[time.Time] {
	switch t := v.(type) {
	case time.Time:
		return mo.Ok(t)
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
		if err != nil {
			return mo.Err[time.Time](ErrWrongType)
		}
		return mo.Ok(parsed)
	default:
		return mo.Err[time.Time](ErrWrongType)
	}
}

// Strings decodes a JSON array of strings.
func Strings(v any) mo.Result[[]string] {
	items, ok := v.([]any)
	if !ok {
		return mo.Err[[]string](ErrWrongType)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return mo.Err[[]string](ErrWrongType)
		}
		out = append(out, s)
	}
	return mo.Ok(out)
}
