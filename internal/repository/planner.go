package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
	"github.com/iliyamo/moviestore/internal/sqlerr"
)

// Planner executes validated query specifications against one *sql.DB.
// Every write runs in its own transaction, so a failed statement leaves no
// partial effect.  Planner never retries.
type Planner struct {
	db      *sql.DB
	dialect query.Dialect
	log     zerolog.Logger
}

// NewPlanner wraps db.  Statements are logged at debug level.
func NewPlanner(db *sql.DB, d query.Dialect, log zerolog.Logger) *Planner {
	return &Planner{db: db, dialect: d, log: log.With().Str("backend", errs.BackendRelational).Logger()}
}

// Dialect reports the SQL dialect the planner renders.
func (p *Planner) Dialect() query.Dialect { return p.dialect }

// queryer is the read half shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Insert validates values, inserts them and returns the stored row,
// including the identity the backend assigned.
func (p *Planner) Insert(ctx context.Context, e *model.Entity, values model.Values) (model.Values, error) {
	vals, err := model.Validate(e, values, model.Full)
	if err != nil {
		return nil, err
	}
	pk := e.PrimaryKey()

	var out model.Values
	err = p.inTx(ctx, "insert", func(tx *sql.Tx) error {
		q, args := query.InsertSQL(p.dialect, e, vals)
		p.logStatement("insert", q, args, query.AccessPath{})
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		id, ok := vals[pk.Field]
		if !ok || id == nil {
			n, err := res.LastInsertId()
			if err != nil {
				return err
			}
			id = n
		}
		rows, err := p.collect(ctx, tx, query.Select{Entity: e, Where: query.FieldEq(pk.Field, id)})
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("insert %s: re-read returned %d rows", e.Name, len(rows))
		}
		out = rows[0]
		return nil
	})
	return out, err
}

// Update applies patch to every row matching where and returns the updated
// rows ordered by primary key.  No match is an empty result, not an error.
// The key scan, the update and the re-read share one transaction; keys are
// bound query.KeyBatch at a time.
func (p *Planner) Update(ctx context.Context, e *model.Entity, where query.Predicate, patch model.Values) ([]model.Values, error) {
	pk := e.PrimaryKey()
	if _, ok := patch[pk.Field]; ok {
		return nil, errs.Invalid(e.Name, pk.Field, "readonly", "", "primary key cannot be updated")
	}
	vals, err := model.Validate(e, patch, model.Patch)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, errs.Invalid(e.Name, "", "required", "", "empty patch")
	}
	keyScan := query.Select{Entity: e, Fields: []string{pk.Field}, Where: where, OrderBy: []query.Order{query.Asc(pk.Field)}}
	if err := keyScan.Validate(); err != nil {
		return nil, err
	}

	var out []model.Values
	err = p.inTx(ctx, "update", func(tx *sql.Tx) error {
		found, err := p.collect(ctx, tx, keyScan)
		if err != nil || len(found) == 0 {
			return err
		}
		keys := make([]any, 0, len(found))
		for _, r := range found {
			keys = append(keys, r[pk.Field])
		}
		for batch := range slices.Chunk(keys, query.KeyBatch) {
			q, args := query.UpdateByKeysSQL(p.dialect, e, vals, batch)
			p.logStatement("update", q, args, query.AccessPath{})
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return err
			}
		}
		out = make([]model.Values, 0, len(keys))
		for batch := range slices.Chunk(keys, query.KeyBatch) {
			rows, err := p.collect(ctx, tx, query.Select{
				Entity:  e,
				Where:   query.KeysIn(e, batch),
				OrderBy: []query.Order{query.Asc(pk.Field)},
			})
			if err != nil {
				return err
			}
			out = append(out, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// inTx runs fn in a transaction and translates any error.
func (p *Planner) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return sqlerr.Translate(op, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.log.Warn().Err(rbErr).Str("op", op).Msg("rollback failed")
			}
		}
	}()
	if err = fn(tx); err != nil {
		return sqlerr.Translate(op, err)
	}
	if err = tx.Commit(); err != nil {
		return sqlerr.Translate(op, err)
	}
	return nil
}

// Rows is a planned select.  Every call to All re-executes the statement,
// so ranging twice observes the current table contents both times.  The
// cursor holds a connection while the range runs; with SQLite's single
// connection, issue other statements only after the range ends.
type Rows struct {
	p    *Planner
	q    queryer
	plan query.Plan
}

// Select validates and plans s.  Validation errors are returned here,
// before any round trip.
func (p *Planner) Select(s query.Select) (*Rows, error) {
	plan, err := s.Plan(p.dialect)
	if err != nil {
		return nil, err
	}
	return &Rows{p: p, q: p.db, plan: plan}, nil
}

// Plan exposes the statement and the access path the planner chose.
func (r *Rows) Plan() query.Plan { return r.plan }

// All yields the result rows.  Stopping the range early closes the
// cursor.  A failure is yielded once as the last element.
func (r *Rows) All(ctx context.Context) iter.Seq2[model.Values, error] {
	return func(yield func(model.Values, error) bool) {
		r.p.logStatement("select", r.plan.SQL, r.plan.Args, r.plan.Access)
		rows, err := r.q.QueryContext(ctx, r.plan.SQL, r.plan.Args...)
		if err != nil {
			yield(nil, sqlerr.Translate("select", err))
			return
		}
		defer rows.Close()

		dest, scanned := scanTargets(r.plan.Columns)
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				yield(nil, sqlerr.Translate("select", err))
				return
			}
			if !yield(scanned(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, sqlerr.Translate("select", err))
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Planner) collect(ctx context.Context, q queryer, s query.Select) ([]model.Values, error) {
	plan, err := s.Plan(p.dialect)
	if err != nil {
		return nil, err
	}
	return Collect((&Rows{p: p, q: q, plan: plan}).All(ctx))
}

// JoinedRow is one result row of a join.  Right holds every projected
// right field; for an unmatched left-outer row all of them are nil and
// Matched is false.
type JoinedRow struct {
	Left    model.Values
	Right   model.Values
	Matched bool
}

// JoinedRows is a planned join with the same re-execution semantics as Rows.
type JoinedRows struct {
	p        *Planner
	plan     query.Plan
	rightKey string
}

// Join validates and plans j.
func (p *Planner) Join(j query.Join) (*JoinedRows, error) {
	plan, err := j.Plan(p.dialect)
	if err != nil {
		return nil, err
	}
	return &JoinedRows{p: p, plan: plan, rightKey: j.RightKey}, nil
}

func (r *JoinedRows) Plan() query.Plan { return r.plan }

// All yields the joined rows.
func (r *JoinedRows) All(ctx context.Context) iter.Seq2[JoinedRow, error] {
	return func(yield func(JoinedRow, error) bool) {
		r.p.logStatement("join", r.plan.SQL, r.plan.Args, r.plan.Access)
		rows, err := r.p.db.QueryContext(ctx, r.plan.SQL, r.plan.Args...)
		if err != nil {
			yield(JoinedRow{}, sqlerr.Translate("join", err))
			return
		}
		defer rows.Close()

		ldest, left := scanTargets(r.plan.Columns)
		rdest, right := scanTargets(r.plan.RightColumns)
		dest := append(ldest, rdest...)
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				yield(JoinedRow{}, sqlerr.Translate("join", err))
				return
			}
			row := JoinedRow{Left: left(), Right: right()}
			row.Matched = matched(row.Right, r.rightKey)
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(JoinedRow{}, sqlerr.Translate("join", err))
		}
	}
}

// matched reports whether a right side came from a real row.  The join key
// is never NULL on a match; without it in the projection any non-NULL field
// decides.
func matched(right model.Values, key string) bool {
	if v, ok := right[key]; ok {
		return v != nil
	}
	for _, v := range right {
		if v != nil {
			return true
		}
	}
	return false
}

// scanTargets allocates one nullable scan target per column and returns a
// function building the normalized record from the last scan.
func scanTargets(cols []model.Column) ([]any, func() model.Values) {
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c.Kind {
		case model.KindInteger:
			dest[i] = new(sql.NullInt64)
		case model.KindReal:
			dest[i] = new(sql.NullFloat64)
		case model.KindBool:
			dest[i] = new(sql.NullBool)
		default:
			dest[i] = new(sql.NullString)
		}
	}
	build := func() model.Values {
		v := make(model.Values, len(cols))
		for i, c := range cols {
			switch d := dest[i].(type) {
			case *sql.NullInt64:
				v[c.Field] = nullable(d.Valid, d.Int64)
			case *sql.NullFloat64:
				v[c.Field] = nullable(d.Valid, d.Float64)
			case *sql.NullBool:
				v[c.Field] = nullable(d.Valid, d.Bool)
			case *sql.NullString:
				v[c.Field] = nullable(d.Valid, d.String)
			}
		}
		return v
	}
	return dest, build
}

func nullable[T any](valid bool, v T) any {
	if !valid {
		return nil
	}
	return v
}

func (p *Planner) logStatement(op, stmt string, args []any, access query.AccessPath) {
	ev := p.log.Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.Str("op", op).Str("sql", stmt).Interface("args", args)
	if op == "select" || op == "join" {
		ev = ev.Stringer("access", access.Kind)
		if access.Index != "" {
			ev = ev.Str("index", access.Index)
		}
	}
	ev.Msg("statement")
}
