package schema

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Type validates a single param value.
type Type interface {
	// Name is the type string accepted by ParseType.
	Name() string
	Validate(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

var (
	stringType = scalar{"string", func(v any) bool { _, ok := v.(string); return ok }}
	boolType   = scalar{"bool", func(v any) bool { _, ok := v.(bool); return ok }}
	floatType  = scalar{"float", isNumber}
	intType    = scalar{"int", func(v any) bool {
		// bound values are float64; accept whole numbers
		if f, ok := v.(float64); ok {
			return !math.IsInf(f, 0) && f == math.Trunc(f)
		}
		return isNumber(v) && !isFloat32(v)
	}}
	mapType = scalar{"map", func(v any) bool { _, ok := v.(map[string]any); return ok }}
	anyType = scalar{"any", func(v any) bool { return v != nil }}
)

func isFloat32(v any) bool { _, ok := v.(float32); return ok }

// String accepts strings.
func String() Type { return stringType }

// Int accepts whole numbers.
func Int() Type { return intType }

// Float accepts any number.
func Float() Type { return floatType }

// Bool accepts booleans.
func Bool() Type { return boolType }

// Map accepts objects.
func Map() Type { return mapType }

// Any accepts every non-null value.
func Any() Type { return anyType }

type sliceType struct{ elem Type }

// Slice accepts arrays whose elements all satisfy elem.
func Slice(elem Type) Type { return sliceType{elem} }

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type optionalType struct{ inner Type }

// Optional lets the param be absent or null; present values must satisfy inner.
func Optional(inner Type) Type { return optionalType{inner} }

func (t optionalType) Name() string { return t.inner.Name() + "?" }

func (t optionalType) Validate(value any) error {
	if value == nil {
		return nil
	}
	return t.inner.Validate(value)
}

type customType struct {
	name     string
	validate func(any) error
}

// Custom wraps a validation function under a name (not parseable).
func Custom(name string, validate func(any) error) Type { return customType{name, validate} }

func (t customType) Name() string             { return t.name }
func (t customType) Validate(value any) error { return t.validate(value) }

// ParseType converts a type string: string, int, float, bool, map, any,
// [T] for arrays and a trailing ? for optional params.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutSuffix(s, "?"); ok {
		t, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Optional(t), nil
	}
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	for _, t := range []Type{stringType, intType, floatType, boolType, mapType, anyType} {
		if t.Name() == s {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unsupported type: %q", s)
}

// ParseTypeMap converts a map of param names to type strings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	out := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}
