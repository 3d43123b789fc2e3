// Package query holds the typed query specification for the relational
// store: predicate trees, projections, sort keys and joins.  A specification
// is validated once against the entity descriptors in package model and then
// planned into dialect SQL together with the access path the planner chose.
// Nothing here touches a database, so query shape can be inspected and tested
// on its own.
package query

import "github.com/iliyamo/moviestore/internal/model"

// Op is a comparison operator.
type Op string

const (
	Eq      Op = "="
	Ne      Op = "<>"
	Lt      Op = "<"
	Lte     Op = "<="
	Gt      Op = ">"
	Gte     Op = ">="
	IsNull  Op = "IS NULL"
	NotNull Op = "IS NOT NULL"
)

// Predicate is a node of a filter tree: Cond, And or Or.
type Predicate interface{ predicate() }

// Cond compares one field with a literal.  Value must be nil for IsNull and
// NotNull.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// And matches when every child matches.  An empty And matches everything.
type And []Predicate

// Or matches when any child matches.  An empty Or matches nothing.
type Or []Predicate

func (Cond) predicate() {}
func (And) predicate()  {}
func (Or) predicate()   {}

// Where builds a Cond.
func Where(field string, op Op, v any) Cond { return Cond{Field: field, Op: op, Value: v} }

// FieldEq is shorthand for Where(field, Eq, v).
func FieldEq(field string, v any) Cond { return Cond{Field: field, Op: Eq, Value: v} }

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Select reads rows of one entity.  Empty Fields selects every column;
// nil Where selects every row.
type Select struct {
	Entity  *model.Entity
	Fields  []string
	Where   Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

// JoinKind selects the join variant.
type JoinKind uint8

const (
	LeftOuter JoinKind = iota
	Inner
)

func (k JoinKind) String() string {
	if k == Inner {
		return "INNER JOIN"
	}
	return "LEFT JOIN"
}

// Join pairs rows of Left with rows of Right where Left.LeftKey equals
// Right.RightKey.  For LeftOuter every left row appears at least once and
// unmatched right fields are NULL.  Where and OrderBy refer to left fields.
type Join struct {
	Left        *model.Entity
	Right       *model.Entity
	LeftKey     string
	RightKey    string
	Kind        JoinKind
	LeftFields  []string
	RightFields []string
	Where       Predicate
	OrderBy     []Order
}

// Conds flattens p into its conditions when p is a pure conjunction.  ok is
// false when an Or appears anywhere in the tree.
func Conds(p Predicate) (out []Cond, ok bool) {
	switch n := p.(type) {
	case nil:
		return nil, true
	case Cond:
		return []Cond{n}, true
	case And:
		for _, c := range n {
			sub, ok := Conds(c)
			if !ok {
				return nil, false
			}
			out = append(out, sub...)
		}
		return out, true
	}
	return nil, false
}
