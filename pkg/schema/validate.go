package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Schema maps param names to their types. Params not in the schema are allowed.
type Schema map[string]Type

// FieldError is a single param that failed validation.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("param %q: %s", e.Key, e.Reason)
}

// Errors aggregates the failures of one Validate call in key order.
type Errors []*FieldError

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d invalid params:", len(e))
	for _, fe := range e {
		b.WriteString("\n  - ")
		b.WriteString(fe.Error())
	}
	return b.String()
}

// Unwrap exposes every FieldError to errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i, fe := range e {
		out[i] = fe
	}
	return out
}

// Validate checks params against s. A nil or empty schema accepts anything.
func (s Schema) Validate(params map[string]any) error {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs Errors
	for _, key := range keys {
		t := s[key]
		value, ok := params[key]
		if !ok {
			if _, optional := t.(optionalType); optional {
				continue
			}
			errs = append(errs, &FieldError{Key: key, Reason: "required"})
			continue
		}
		if err := t.Validate(value); err != nil {
			errs = append(errs, &FieldError{Key: key, Reason: err.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FieldErrors returns the param failures carried by err, if any.
func FieldErrors(err error) []*FieldError {
	var errs Errors
	if errors.As(err, &errs) {
		return errs
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return []*FieldError{fe}
	}
	return nil
}

// MarshalJSON writes the schema as a map of type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]string, len(s))
	for key, t := range s {
		if t == nil {
			return nil, fmt.Errorf("param %s: type is nil", key)
		}
		raw[key] = t.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON reads a map of type strings.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if raw == nil {
		*s = nil
		return nil
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
