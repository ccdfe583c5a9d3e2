package expr

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Truthy applies the standard falsy rules: nil, false, 0, NaN and "" are false.
// Empty collections are truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := number(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

// number converts numeric Go values to float64. Strings and booleans are not numbers.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsNumber reports whether v holds a numeric Go value.
func IsNumber(v any) bool {
	_, ok := number(v)
	return ok
}

// ToNumber coerces v to a number the way loose comparisons do:
// numeric strings parse, booleans become 0/1. Anything else fails.
func ToNumber(v any) (float64, bool) {
	if n, ok := number(v); ok {
		return n, true
	}
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Stringify renders a value for text concatenation.
// nil renders as the empty string; collections render as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if n, ok := number(v); ok {
		return formatNumber(n)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// LooseEqual compares with loose equality: numbers and numeric strings compare
// by value, booleans compare as 0/1, collections compare structurally.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	an, aNum := number(a)
	bn, bNum := number(b)
	if aNum && bNum {
		return an == bn
	}
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if aNum || bNum || aBool || bBool {
		x, okA := ToNumber(a)
		y, okB := ToNumber(b)
		return okA && okB && x == y
	}
	return reflect.DeepEqual(a, b)
}

// StrictEqual compares without type coercion.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aNum := number(a)
	bn, bNum := number(b)
	if aNum || bNum {
		return aNum && bNum && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders a and b for relational operators.
// It returns ok=false when the values are not comparable.
func Compare(a, b any) (int, bool) {
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	if a == nil || b == nil {
		return 0, false
	}
	x, okA := ToNumber(a)
	y, okB := ToNumber(b)
	if !okA || !okB || math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Member reads property key of obj. It never panics; missing members report false.
func Member(obj any, key any) (any, bool) {
	switch t := obj.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := t[keyString(key)]
		return v, ok
	case map[string]map[string]any:
		v, ok := t[keyString(key)]
		if !ok {
			return nil, false
		}
		return v, true
	case []any:
		if keyString(key) == "length" {
			return float64(len(t)), true
		}
		i, ok := index(key, len(t))
		if !ok {
			return nil, false
		}
		return t[i], true
	case string:
		if keyString(key) == "length" {
			return float64(utf8.RuneCountInString(t)), true
		}
		runes := []rune(t)
		i, ok := index(key, len(runes))
		if !ok {
			return nil, false
		}
		return string(runes[i]), true
	}

	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(keyString(key)).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		if keyString(key) == "length" {
			return float64(rv.Len()), true
		}
		i, ok := index(key, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return Stringify(key)
}

func index(key any, length int) (int, bool) {
	n, ok := ToNumber(key)
	if !ok || n != math.Trunc(n) {
		return 0, false
	}
	i := int(n)
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

// Length returns the size of strings (in runes), slices and maps; 0 otherwise.
func Length(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(t)
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

// AsSlice returns v as a []any when it is a collection.
func AsSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Contains implements includes/contains: substring for strings, loose
// membership for collections, false for anything else.
func Contains(haystack, needle any) bool {
	if s, ok := haystack.(string); ok {
		if needle == nil {
			return false
		}
		return strings.Contains(s, Stringify(needle))
	}
	items, ok := AsSlice(haystack)
	if !ok {
		return false
	}
	for _, item := range items {
		if LooseEqual(item, needle) {
			return true
		}
	}
	return false
}
