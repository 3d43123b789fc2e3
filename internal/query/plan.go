package query

import (
	"fmt"
	"strings"

	"github.com/iliyamo/moviestore/internal/model"
)

// Dialect selects SQL spelling differences between backends.
type Dialect uint8

const (
	SQLite Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	if d == MySQL {
		return "mysql"
	}
	return "sqlite"
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// indexHint pins a declared index on the FROM clause.
func (d Dialect) indexHint(index string) string {
	if d == MySQL {
		return " FORCE INDEX (" + d.Quote(index) + ")"
	}
	return " INDEXED BY " + d.Quote(index)
}

// limit renders LIMIT/OFFSET.  Both backends require a LIMIT before OFFSET.
func (d Dialect) limit(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0 && d == MySQL:
		return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

// AccessKind is how the backend reaches the rows of the driving table.
type AccessKind uint8

const (
	FullScan AccessKind = iota
	IndexRange
)

func (k AccessKind) String() string {
	if k == IndexRange {
		return "index-range"
	}
	return "full-scan"
}

// AccessPath is the planner's choice for the driving table.
type AccessPath struct {
	Kind  AccessKind
	Index string
}

// Plan is an executable statement together with the metadata needed to scan
// its result.  Columns lists the selected columns in result order; for a
// join, RightColumns follows Columns in each result row.
type Plan struct {
	SQL          string
	Args         []any
	Access       AccessPath
	Columns      []model.Column
	RightColumns []model.Column
}

// Plan validates s and renders it for d.
func (s Select) Plan(d Dialect) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	where, _ := normalize(s.Entity, s.Where)
	cols := projection(s.Entity, s.Fields)
	access := ChooseAccess(s.Entity, where, s.OrderBy)

	var b strings.Builder
	b.WriteString("SELECT ")
	writeColumns(&b, d, "", cols)
	b.WriteString(" FROM ")
	b.WriteString(d.Quote(s.Entity.Name))
	if access.Kind == IndexRange {
		b.WriteString(d.indexHint(access.Index))
	}

	var args []any
	if where != nil {
		b.WriteString(" WHERE ")
		args = render(&b, d, s.Entity, "", where, args)
	}

	writeOrder(&b, d, s.Entity, "", stableOrder(s.Entity, s.OrderBy, s.Limit > 0 || s.Offset > 0))
	b.WriteString(d.limit(s.Limit, s.Offset))

	return Plan{SQL: b.String(), Args: args, Access: access, Columns: cols}, nil
}

// stableOrder appends the primary key to a requested sort, or sorts by it
// alone when only paging asks for an order, so rows that tie on the sort
// keys come back in one order whatever the access path.  The key takes the
// direction of the first sort key, which an index scan serves as well.
func stableOrder(e *model.Entity, order []Order, paged bool) []Order {
	pk := e.PrimaryKey().Field
	if len(order) == 0 {
		if paged {
			return []Order{Asc(pk)}
		}
		return nil
	}
	for _, o := range order {
		if o.Field == pk {
			return order
		}
	}
	tie := Order{Field: pk, Desc: order[0].Desc}
	return append(append(make([]Order, 0, len(order)+1), order...), tie)
}

// Plan validates j and renders it for d.  Result rows are ordered by the
// requested keys, then by the left and right primary keys.
func (j Join) Plan(d Dialect) (Plan, error) {
	if err := j.Validate(); err != nil {
		return Plan{}, err
	}
	where, _ := normalize(j.Left, j.Where)
	left := projection(j.Left, j.LeftFields)
	right := projection(j.Right, j.RightFields)
	lk, _ := j.Left.Column(j.LeftKey)
	rk, _ := j.Right.Column(j.RightKey)

	var b strings.Builder
	b.WriteString("SELECT ")
	writeColumns(&b, d, "l", left)
	b.WriteString(", ")
	writeColumns(&b, d, "r", right)
	fmt.Fprintf(&b, " FROM %s AS l %s %s AS r ON l.%s = r.%s",
		d.Quote(j.Left.Name), j.Kind, d.Quote(j.Right.Name), d.Quote(lk.Name), d.Quote(rk.Name))

	var args []any
	if where != nil {
		b.WriteString(" WHERE ")
		args = render(&b, d, j.Left, "l", where, args)
	}
	order := append(append([]Order{}, j.OrderBy...), Asc(j.Left.PrimaryKey().Field))
	writeOrder(&b, d, j.Left, "l", order)
	b.WriteString(", r." + d.Quote(j.Right.PrimaryKey().Name))

	return Plan{SQL: b.String(), Args: args, Access: AccessPath{Kind: FullScan}, Columns: left, RightColumns: right}, nil
}

// ChooseAccess picks an index range scan when the filter and sort are
// expressible purely over one declared index: every condition and sort key
// names an index field, the filter is a conjunction of index-friendly
// operators, the sort keys are a prefix of the index in one direction, and
// the leading index field is constrained or sorted.  Otherwise it returns a
// full scan.  Either choice yields the same rows.
func ChooseAccess(e *model.Entity, where Predicate, order []Order) AccessPath {
	conds, ok := Conds(where)
	if !ok || (len(conds) == 0 && len(order) == 0) {
		return AccessPath{Kind: FullScan}
	}
	for _, idx := range e.Indexes {
		if indexServes(idx, conds, order) {
			return AccessPath{Kind: IndexRange, Index: idx.Name}
		}
	}
	return AccessPath{Kind: FullScan}
}

func indexServes(idx model.Index, conds []Cond, order []Order) bool {
	pos := make(map[string]int, len(idx.Fields))
	for i, f := range idx.Fields {
		pos[f] = i
	}
	leading := false
	for _, c := range conds {
		if _, ok := pos[c.Field]; !ok {
			return false
		}
		switch c.Op {
		case Eq, Lt, Lte, Gt, Gte, IsNull, NotNull:
		default:
			return false
		}
		if c.Field == idx.Fields[0] {
			leading = true
		}
	}
	if len(order) > len(idx.Fields) {
		return false
	}
	for i, o := range order {
		if o.Field != idx.Fields[i] || o.Desc != order[0].Desc {
			return false
		}
	}
	if len(order) > 0 {
		leading = true
	}
	return leading
}

func projection(e *model.Entity, fields []string) []model.Column {
	if len(fields) == 0 {
		return append([]model.Column(nil), e.Columns...)
	}
	out := make([]model.Column, 0, len(fields))
	for _, f := range fields {
		c, _ := e.Column(f)
		out = append(out, c)
	}
	return out
}

func writeColumns(b *strings.Builder, d Dialect, alias string, cols []model.Column) {
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(qualify(d, alias, c.Name))
	}
}

func writeOrder(b *strings.Builder, d Dialect, e *model.Entity, alias string, order []Order) {
	for i, o := range order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		c, _ := e.Column(o.Field)
		b.WriteString(qualify(d, alias, c.Name))
		if o.Desc {
			b.WriteString(" DESC")
		}
	}
}

func qualify(d Dialect, alias, col string) string {
	if alias == "" {
		return d.Quote(col)
	}
	return alias + "." + d.Quote(col)
}

// render writes a normalized predicate and appends its arguments.
func render(b *strings.Builder, d Dialect, e *model.Entity, alias string, p Predicate, args []any) []any {
	switch n := p.(type) {
	case Cond:
		c, _ := e.Column(n.Field)
		b.WriteString(qualify(d, alias, c.Name))
		b.WriteString(" ")
		b.WriteString(string(n.Op))
		if n.Op != IsNull && n.Op != NotNull {
			b.WriteString(" ?")
			args = append(args, n.Value)
		}
	case And:
		args = renderGroup(b, d, e, alias, n, " AND ", "1=1", args)
	case Or:
		args = renderGroup(b, d, e, alias, n, " OR ", "1=0", args)
	}
	return args
}

func renderGroup(b *strings.Builder, d Dialect, e *model.Entity, alias string, kids []Predicate, sep, empty string, args []any) []any {
	if len(kids) == 0 {
		b.WriteString(empty)
		return args
	}
	b.WriteString("(")
	for i, k := range kids {
		if i > 0 {
			b.WriteString(sep)
		}
		args = render(b, d, e, alias, k, args)
	}
	b.WriteString(")")
	return args
}
