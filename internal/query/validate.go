package query

import (
	"fmt"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
)

// Validate checks that every field named by s exists on its entity and that
// every literal matches its column's kind.
func (s Select) Validate() error {
	if s.Entity == nil {
		return errs.Invalid("", "entity", "required", "", "select has no entity")
	}
	if err := checkFields(s.Entity, s.Fields); err != nil {
		return err
	}
	if _, err := normalize(s.Entity, s.Where); err != nil {
		return err
	}
	if err := checkOrder(s.Entity, s.OrderBy); err != nil {
		return err
	}
	if s.Limit < 0 || s.Offset < 0 {
		return errs.Invalid(s.Entity.Name, "limit", "gte", "0", "limit and offset must not be negative")
	}
	return nil
}

// Validate checks both sides of the join.  The key columns must have the
// same kind: an integer key never equals a text key.
func (j Join) Validate() error {
	if j.Left == nil || j.Right == nil {
		return errs.Invalid("", "entity", "required", "", "join needs two entities")
	}
	lk, ok := j.Left.Column(j.LeftKey)
	if !ok {
		return errs.Invalid(j.Left.Name, j.LeftKey, "unknown", "", "no such join key")
	}
	rk, ok := j.Right.Column(j.RightKey)
	if !ok {
		return errs.Invalid(j.Right.Name, j.RightKey, "unknown", "", "no such join key")
	}
	if lk.Kind != rk.Kind {
		return errs.Invalid(j.Left.Name, j.LeftKey, "type", rk.Kind.String(),
			fmt.Sprintf("join key %s is %s but %s.%s is %s", j.LeftKey, lk.Kind, j.Right.Name, j.RightKey, rk.Kind))
	}
	if err := checkFields(j.Left, j.LeftFields); err != nil {
		return err
	}
	if err := checkFields(j.Right, j.RightFields); err != nil {
		return err
	}
	if _, err := normalize(j.Left, j.Where); err != nil {
		return err
	}
	return checkOrder(j.Left, j.OrderBy)
}

func checkFields(e *model.Entity, fields []string) error {
	for _, f := range fields {
		if _, ok := e.Column(f); !ok {
			return errs.Invalid(e.Name, f, "unknown", "", "no such field")
		}
	}
	return nil
}

func checkOrder(e *model.Entity, order []Order) error {
	for _, o := range order {
		if _, ok := e.Column(o.Field); !ok {
			return errs.Invalid(e.Name, o.Field, "unknown", "", "no such sort field")
		}
	}
	return nil
}

// normalize returns p with every literal converted to its column's Go type.
func normalize(e *model.Entity, p Predicate) (Predicate, error) {
	switch n := p.(type) {
	case nil:
		return nil, nil
	case Cond:
		c, err := normalizeCond(e, n)
		if err != nil {
			return nil, err
		}
		return c, nil
	case And:
		out := make(And, 0, len(n))
		for _, c := range n {
			nc, err := normalize(e, c)
			if err != nil {
				return nil, err
			}
			out = append(out, nc)
		}
		return out, nil
	case Or:
		out := make(Or, 0, len(n))
		for _, c := range n {
			nc, err := normalize(e, c)
			if err != nil {
				return nil, err
			}
			out = append(out, nc)
		}
		return out, nil
	}
	return nil, errs.Invalid(e.Name, "", "predicate", "", fmt.Sprintf("unsupported predicate %T", p))
}

func normalizeCond(e *model.Entity, c Cond) (Cond, error) {
	col, ok := e.Column(c.Field)
	if !ok {
		return c, errs.Invalid(e.Name, c.Field, "unknown", "", "no such field")
	}
	switch c.Op {
	case IsNull, NotNull:
		if c.Value != nil {
			return c, errs.Invalid(e.Name, c.Field, "type", "", string(c.Op)+" takes no value")
		}
		return c, nil
	case Eq, Ne, Lt, Lte, Gt, Gte:
	default:
		return c, errs.Invalid(e.Name, c.Field, "op", string(c.Op), "unsupported operator")
	}
	if c.Value == nil {
		return c, errs.Invalid(e.Name, c.Field, "required", "", "comparison with nil; use IsNull")
	}
	v, ok := model.Normalize(col.Kind, c.Value)
	if !ok || v == nil {
		return c, errs.Invalid(e.Name, c.Field, "type", col.Kind.String(),
			fmt.Sprintf("cannot compare %s column with %T", col.Kind, c.Value))
	}
	c.Value = v
	return c, nil
}

// Match evaluates p against an in-memory record using the same rules the
// planner renders into SQL: values of different kinds never compare equal,
// and a NULL field satisfies only IsNull.  Document backends without a
// native query language use it.
func Match(e *model.Entity, p Predicate, rec model.Values) (bool, error) {
	np, err := normalize(e, p)
	if err != nil {
		return false, err
	}
	return match(e, np, rec), nil
}

func match(e *model.Entity, p Predicate, rec model.Values) bool {
	switch n := p.(type) {
	case nil:
		return true
	case Cond:
		return matchCond(e, n, rec)
	case And:
		for _, c := range n {
			if !match(e, c, rec) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range n {
			if match(e, c, rec) {
				return true
			}
		}
		return false
	}
	return false
}

func matchCond(e *model.Entity, c Cond, rec model.Values) bool {
	col, _ := e.Column(c.Field)
	v, ok := model.Normalize(col.Kind, rec[c.Field])
	if !ok {
		return false
	}
	switch c.Op {
	case IsNull:
		return v == nil
	case NotNull:
		return v != nil
	}
	if v == nil {
		return false
	}
	cmp, ok := compare(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	}
	return false
}

// compare orders two normalized values of the same kind.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return cmp3(!x && y, x && !y), true
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
