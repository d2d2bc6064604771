/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"chainguard.dev/catalyst/agents/agenttrace"
)

// Input is the recorded shape of a call's arguments.
type Input struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// maxDepth bounds how far Sanitize descends into nested slices and maps.
const maxDepth = 32

// Sanitize keeps scalars, slices, arrays and maps that encode as JSON as they
// are. Containers holding anything else are rebuilt as []any and
// map[string]any, and every value JSON cannot encode (NaN and infinite floats,
// structs, pointers, funcs, channels, values nested beyond maxDepth) is
// rendered with fmt.Sprint.
func Sanitize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if jsonSafe(rv, 0) {
		return v
	}
	return rebuild(rv, 0)
}

// SanitizeMap sanitizes every value of m.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Sanitize(v)
	}
	return out
}

func jsonSafe(rv reflect.Value, depth int) bool {
	if depth > maxDepth {
		return false
	}
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String:
		return true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case reflect.Interface:
		return rv.IsNil() || jsonSafe(rv.Elem(), depth)
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		fallthrough
	case reflect.Array:
		for i := range rv.Len() {
			if !jsonSafe(rv.Index(i), depth+1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if !plainKey(rv.Type().Key().Kind()) {
			return false
		}
		for it := rv.MapRange(); it.Next(); {
			if !jsonSafe(it.Value(), depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func rebuild(rv reflect.Value, depth int) any {
	if depth > maxDepth {
		return "<" + rv.Type().String() + ">"
	}
	if jsonSafe(rv, depth) {
		return rv.Interface()
	}
	switch rv.Kind() {
	case reflect.Interface:
		return rebuild(rv.Elem(), depth)
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rebuild(rv.Index(i), depth+1)
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			out[mapKey(it.Key())] = rebuild(it.Value(), depth+1)
		}
		return out
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func plainKey(k reflect.Kind) bool {
	switch k {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func mapKey(k reflect.Value) string {
	switch {
	case k.Kind() == reflect.String:
		return k.String()
	case k.CanInt():
		return strconv.FormatInt(k.Int(), 10)
	case k.CanUint():
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprint(k.Interface())
}

// SanitizeInput sanitizes positional and named arguments.
func SanitizeInput(args []any, kwargs map[string]any) Input {
	in := Input{
		Args:   make([]any, 0, len(args)),
		Kwargs: make(map[string]any, len(kwargs)),
	}
	for _, a := range args {
		in.Args = append(in.Args, Sanitize(a))
	}
	for k, v := range kwargs {
		in.Kwargs[k] = Sanitize(v)
	}
	return in
}

// NewErrorInfo builds the error payload for a failed invocation. It tolerates
// errors whose methods panic, such as typed nil pointers.
func NewErrorInfo(err error) *agenttrace.ErrorInfo {
	if err == nil {
		return nil
	}
	return &agenttrace.ErrorInfo{
		Code:    agenttrace.ErrorCode,
		Type:    errorType(err),
		Message: fmt.Sprint(err),
		Details: errorDetails(err),
	}
}

func errorDetails(err error) (details map[string]any) {
	details = map[string]any{}
	defer func() {
		if recover() != nil {
			details = map[string]any{}
		}
	}()

	var d interface{ ErrorDetails() map[string]any }
	if errors.As(err, &d) {
		for k, v := range d.ErrorDetails() {
			details[k] = Sanitize(v)
		}
	}
	return details
}

func panicInfo(v any) *agenttrace.ErrorInfo {
	return &agenttrace.ErrorInfo{
		Code:    agenttrace.ErrorCode,
		Type:    "panic",
		Message: fmt.Sprint(v),
		Details: map[string]any{"value_type": fmt.Sprintf("%T", v)},
	}
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
