package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingValue is returned by Values accessors for absent names.
	ErrMissingValue = errors.New("value not present")
	// ErrTypeMismatch is returned by Values accessors when the stored type differs.
	ErrTypeMismatch = errors.New("value type mismatch")
)

// DefinitionError reports a malformed schema. It is raised when the schema is
// defined and is never retried.
type DefinitionError struct {
	Schema string
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("define schema %q: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("define schema %q: field %q: %s", e.Schema, e.Field, e.Reason)
}

// BindingError reports caller inputs that do not match the declared input fields.
type BindingError struct {
	Schema string
	Field  string
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bind %s inputs: field %q: %s", e.Schema, e.Field, e.Reason)
}

// ParseError reports a backend response whose output fields could not be
// extracted or typed. Callers may re-attempt the invocation.
type ParseError struct {
	Schema string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %s outputs: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("parse %s outputs: field %q: %s", e.Schema, e.Field, e.Reason)
}
