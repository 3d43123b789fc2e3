// Package document is the document-store adapter for movie documents.
//
// Every write is validated against the model.MovieDocs constraint table
// before the backend is contacted, so a bad rating is rejected the same way
// whether the backend is MongoDB or the in-process memory store.  Documents
// are independent: there are no joins or references between them.
package document

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
)

// Backend stores records of one entity keyed by logical field name.
// Conditions passed to Find are validated and normalized.
type Backend interface {
	Insert(ctx context.Context, e *model.Entity, rec model.Values) error
	Find(ctx context.Context, e *model.Entity, conds []query.Cond) iter.Seq2[model.Values, error]
	Close(ctx context.Context) error
}

// Store is the movie document collection.
type Store struct {
	b   Backend
	log zerolog.Logger
}

func NewStore(b Backend, log zerolog.Logger) *Store {
	return &Store{b: b, log: log.With().Str("backend", errs.BackendDocument).Logger()}
}

// Create validates d, assigns an id when it has none and stores it.
func (s *Store) Create(ctx context.Context, d model.MovieDoc) (model.MovieDoc, error) {
	rec, err := model.Validate(model.MovieDocs, d.Values(), model.Full)
	if err != nil {
		return model.MovieDoc{}, err
	}
	if model.Text(rec, "id") == "" {
		rec["id"] = uuid.NewString()
	}
	if err := s.b.Insert(ctx, model.MovieDocs, rec); err != nil {
		s.log.Debug().Err(err).Str("op", "create").Msg("document write failed")
		return model.MovieDoc{}, err
	}
	return model.MovieDocFromValues(rec), nil
}

// Find returns a cursor over the documents matching every clause.  The
// clauses are checked here; a field or kind mismatch is a validation error.
func (s *Store) Find(clauses ...query.Cond) (*Cursor, error) {
	conds, err := normalizeConds(model.MovieDocs, clauses)
	if err != nil {
		return nil, err
	}
	return &Cursor{s: s, conds: conds}, nil
}

// ByDirector lists a director's movies.
func (s *Store) ByDirector(ctx context.Context, director string) ([]model.MovieDoc, error) {
	c, err := s.Find(query.FieldEq("director", director))
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx)
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error { return s.b.Close(ctx) }

// Cursor is a finite, restartable result: every range re-reads the
// backend.
type Cursor struct {
	s     *Store
	conds []query.Cond
}

func (c *Cursor) All(ctx context.Context) iter.Seq2[model.MovieDoc, error] {
	return func(yield func(model.MovieDoc, error) bool) {
		for rec, err := range c.s.b.Find(ctx, model.MovieDocs, c.conds) {
			if err != nil {
				yield(model.MovieDoc{}, err)
				return
			}
			if !yield(model.MovieDocFromValues(rec), nil) {
				return
			}
		}
	}
}

// Collect drains the cursor.
func (c *Cursor) Collect(ctx context.Context) ([]model.MovieDoc, error) {
	var out []model.MovieDoc
	for d, err := range c.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func normalizeConds(e *model.Entity, clauses []query.Cond) ([]query.Cond, error) {
	where := make(query.And, 0, len(clauses))
	for _, c := range clauses {
		where = append(where, c)
	}
	if err := (query.Select{Entity: e, Where: where}).Validate(); err != nil {
		return nil, err
	}
	out := make([]query.Cond, len(clauses))
	for i, c := range clauses {
		col, _ := e.Column(c.Field)
		c.Value, _ = model.Normalize(col.Kind, c.Value)
		out[i] = c
	}
	return out, nil
}
