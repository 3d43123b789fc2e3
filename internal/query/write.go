package query

import (
	"strings"

	"github.com/iliyamo/moviestore/internal/model"
)

// InsertSQL renders an INSERT of the given normalized record.  Columns
// follow the entity's declaration order.
func InsertSQL(d Dialect, e *model.Entity, values model.Values) (string, []any) {
	var cols []string
	var args []any
	for _, c := range e.Columns {
		v, ok := values[c.Field]
		if !ok {
			continue
		}
		cols = append(cols, d.Quote(c.Name))
		args = append(args, v)
	}
	if len(cols) == 0 {
		if d == MySQL {
			return "INSERT INTO " + d.Quote(e.Name) + " () VALUES ()", nil
		}
		return "INSERT INTO " + d.Quote(e.Name) + " DEFAULT VALUES", nil
	}
	q := "INSERT INTO " + d.Quote(e.Name) + " (" + strings.Join(cols, ", ") +
		") VALUES (" + placeholders(len(cols)) + ")"
	return q, args
}

// KeyBatch bounds how many primary keys one statement binds.  It keeps a
// bulk update under SQLite's bound-variable limit and keeps the re-read
// predicate, a chain of ORs, well under its expression depth limit.
const KeyBatch = 250

// UpdateByKeysSQL renders an UPDATE applying patch to the rows whose primary
// key is one of keys.
func UpdateByKeysSQL(d Dialect, e *model.Entity, patch model.Values, keys []any) (string, []any) {
	var sets []string
	var args []any
	for _, c := range e.Columns {
		v, ok := patch[c.Field]
		if !ok || c.PrimaryKey {
			continue
		}
		sets = append(sets, d.Quote(c.Name)+" = ?")
		args = append(args, v)
	}
	pk := e.PrimaryKey()
	q := "UPDATE " + d.Quote(e.Name) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + d.Quote(pk.Name) + " IN (" + placeholders(len(keys)) + ")"
	return q, append(args, keys...)
}

// KeysIn is the predicate matching rows whose primary key is one of keys.
func KeysIn(e *model.Entity, keys []any) Predicate {
	pk := e.PrimaryKey().Field
	or := make(Or, 0, len(keys))
	for _, k := range keys {
		or = append(or, FieldEq(pk, k))
	}
	return or
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
