package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/moviestore/internal/errs"
)

// Mode selects how Validate treats absent fields.
type Mode uint8

const (
	// Full checks a complete record (insert/create): required fields must be
	// present and defaults are filled in.
	Full Mode = iota
	// Patch checks a partial record (update): only present fields are
	// checked, and a required field may not be cleared.
	Patch
)

// validator instances cache struct metadata and are safe for concurrent use.
var validate = validator.New()

// Validate checks values against the entity's columns and constraint table
// and returns the normalized record.  It never touches a backend.  On
// failure the error is an *errs.ValidationErrors listing every offending
// field in column order.
func Validate(e *Entity, values Values, mode Mode) (Values, error) {
	var bad []errs.ValidationError
	out := make(Values, len(values))

	for _, k := range values.Keys() {
		if _, ok := e.Column(k); !ok {
			bad = append(bad, errs.ValidationError{
				Entity: e.Name, Field: k, Rule: "unknown", Message: "no such field",
			})
		}
	}

	for _, col := range e.Columns {
		raw, present := values[col.Field]
		tag := e.Rules[col.Field]
		required := hasRule(tag, "required")

		if !present {
			if mode == Full {
				switch {
				case col.Default != nil:
					out[col.Field] = col.Default
				case required && !col.PrimaryKey:
					bad = append(bad, e.fieldError(col.Field, "required", ""))
				}
			}
			continue
		}

		v, ok := Normalize(col.Kind, raw)
		if !ok {
			bad = append(bad, errs.ValidationError{
				Entity: e.Name, Field: col.Field, Rule: "type", Param: col.Kind.String(),
				Message: fmt.Sprintf("expected %s, got %T", col.Kind, raw),
			})
			continue
		}
		if v == nil {
			switch {
			case col.PrimaryKey:
				// identity left to the backend
				continue
			case required || (!col.Nullable && col.Default == nil):
				bad = append(bad, e.fieldError(col.Field, "required", ""))
				continue
			}
			out[col.Field] = nil
			continue
		}

		if tag != "" {
			if ve, failed := check(e, col.Field, v, tag); failed {
				bad = append(bad, ve)
				continue
			}
		}
		out[col.Field] = v
	}

	if len(bad) > 0 {
		return nil, &errs.ValidationErrors{Fields: bad}
	}
	return out, nil
}

// check runs one field's rule set through the validator.
func check(e *Entity, field string, v any, tag string) (errs.ValidationError, bool) {
	err := validate.Var(v, tag)
	if err == nil {
		return errs.ValidationError{}, false
	}
	var fes validator.ValidationErrors
	if errors.As(err, &fes) && len(fes) > 0 {
		return e.fieldError(field, fes[0].Tag(), fes[0].Param()), true
	}
	return errs.ValidationError{Entity: e.Name, Field: field, Rule: "invalid", Message: err.Error()}, true
}

func (e *Entity) fieldError(field, rule, param string) errs.ValidationError {
	msg := e.Messages[field+"."+rule]
	if msg == "" {
		msg = defaultMessage(rule, param)
	}
	return errs.ValidationError{Entity: e.Name, Field: field, Rule: rule, Param: param, Message: msg}
}

func defaultMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + param
	case "max", "lte":
		return "must not exceed " + param
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + param
	}
	if param != "" {
		return rule + ":" + param
	}
	return rule
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if strings.TrimSpace(r) == rule {
			return true
		}
	}
	return false
}
