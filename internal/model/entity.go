package model

import (
	"reflect"
	"sort"
)

// Kind is the storage type of a column.  Values are normalized to one Go
// type per kind: int64, float64, string and bool.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindReal
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Column maps a logical field name onto its storage column.
//
// Fields:
//  Field      – logical name used by callers (e.g. releaseDate).
//  Name       – column or document key name (e.g. release_date).
//  Kind       – storage type.
//  PrimaryKey – identity column; assigned by the backend when absent.
//  Nullable   – whether the backend accepts NULL.
//  Default    – value filled in on insert when the field is absent.
type Column struct {
	Field      string
	Name       string
	Kind       Kind
	PrimaryKey bool
	Nullable   bool
	Default    any
}

// Index is a declared secondary index over logical fields, in key order.
type Index struct {
	Name   string
	Fields []string
}

// Entity is the declarative description of one record type: its columns,
// indexes and the constraint table shared by every adapter that writes it.
//
// Rules maps a field to a validator tag string (e.g. "required,min=1,max=10").
// Messages optionally maps "field.rule" to a human message.
type Entity struct {
	Name     string
	Columns  []Column
	Indexes  []Index
	Rules    map[string]string
	Messages map[string]string
}

// Column looks up a column by logical field name.
func (e *Entity) Column(field string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the identity column.
func (e *Entity) PrimaryKey() Column {
	for _, c := range e.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return Column{}
}

// Fields lists every logical field in declaration order.
func (e *Entity) Fields() []string {
	out := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		out = append(out, c.Field)
	}
	return out
}

// Values is a record keyed by logical field name.  A nil value is NULL.
type Values map[string]any

// Keys returns the field names in sorted order.
func (v Values) Keys() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize converts v to the canonical Go type for kind.  Pointers are
// dereferenced (a nil pointer becomes nil).  Integers widen to real; no
// other conversion is made, so text never becomes a number and numbers never
// become bool.  ok is false on a kind mismatch.
func Normalize(kind Kind, v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}
	switch kind {
	case KindInteger:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > 1<<63-1 {
				return nil, false
			}
			return int64(u), true
		}
	case KindReal:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		}
	case KindText:
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	case KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), true
		}
	}
	return nil, false
}

// KindOf reports the kind of a literal value, or 0 when it has none.
func KindOf(v any) Kind {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindReal
	case reflect.String:
		return KindText
	case reflect.Bool:
		return KindBool
	}
	return 0
}
