// Package errs defines the error taxonomy shared by every data-access
// adapter.  Callers match on the sentinel values with errors.Is and on the
// concrete types with errors.As:
//
//   - ValidationErrors:    a value failed a declared constraint before any
//                          backend round trip.  Never retried.
//   - ConstraintViolation: the backend rejected a write (uniqueness, foreign
//                          key, not null).  Never retried automatically.
//   - BackendUnavailable:  connectivity or timeout failure.  Carries the
//                          backend and operation so the caller can apply
//                          its own retry policy.
//
// A cache miss is not an error and has no type here.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names used in error values and log fields.
const (
	BackendRelational = "relational"
	BackendDocument   = "document"
	BackendCache      = "cache"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrConstraint  = errors.New("constraint violation")
	ErrUnavailable = errors.New("backend unavailable")
	ErrNotFound    = errors.New("not found")
)

// ValidationError describes one field that failed one rule.  Rule is the
// constraint tag (required, min, max, type, ...) and Param its argument,
// e.g. Rule "max" with Param "10".
type ValidationError struct {
	Entity  string `json:"entity,omitempty"`
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	rule := e.Rule
	if e.Param != "" {
		rule += "=" + e.Param
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Field, rule, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, rule)
}

// ValidationErrors is the error returned by validation.  It always holds at
// least one entry.
type ValidationErrors struct {
	Fields []ValidationError
}

func (v *ValidationErrors) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Field returns the first entry for the named field.
func (v *ValidationErrors) Field(name string) (ValidationError, bool) {
	for _, f := range v.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return ValidationError{}, false
}

// Invalid builds a single-field ValidationErrors.
func Invalid(entity, field, rule, param, msg string) *ValidationErrors {
	return &ValidationErrors{Fields: []ValidationError{{
		Entity: entity, Field: field, Rule: rule, Param: param, Message: msg,
	}}}
}

// ConstraintViolation is an integrity failure detected by the backend.
type ConstraintViolation struct {
	Backend    string
	Op         string
	Constraint string // unique, foreign_key, not_null, check
	Err        error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s %s: %s constraint violated: %v", e.Backend, e.Op, e.Constraint, e.Err)
}

func (e *ConstraintViolation) Unwrap() error        { return e.Err }
func (e *ConstraintViolation) Is(target error) bool { return target == ErrConstraint }

// BackendUnavailable is a connectivity or timeout failure.
type BackendUnavailable struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendUnavailable) Error() string {
	return fmt.Sprintf("%s %s: backend unavailable: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendUnavailable) Unwrap() error        { return e.Err }
func (e *BackendUnavailable) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as a BackendUnavailable.
func Unavailable(backend, op string, err error) error {
	return &BackendUnavailable{Backend: backend, Op: op, Err: err}
}
