package repository

import (
	"context"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
)

// MovieRepo provides access to the `movies` table.
type MovieRepo struct{ p *Planner }

func NewMovieRepo(p *Planner) *MovieRepo { return &MovieRepo{p: p} }

// Create validates m and inserts it.  The returned movie carries the id
// assigned by the backend.
func (r *MovieRepo) Create(ctx context.Context, m model.Movie) (model.Movie, error) {
	row, err := r.p.Insert(ctx, model.Movies, m.Values())
	if err != nil {
		return model.Movie{}, err
	}
	return model.MovieFromValues(row), nil
}

// GetByID returns errs.ErrNotFound when no movie has id.
func (r *MovieRepo) GetByID(ctx context.Context, id int64) (model.Movie, error) {
	rows, err := r.p.Select(query.Select{Entity: model.Movies, Where: query.FieldEq("movieId", id), Limit: 1})
	if err != nil {
		return model.Movie{}, err
	}
	for v, err := range rows.All(ctx) {
		if err != nil {
			return model.Movie{}, err
		}
		return model.MovieFromValues(v), nil
	}
	return model.Movie{}, errs.ErrNotFound
}

// Update applies patch, keyed by logical field names, to one movie.
func (r *MovieRepo) Update(ctx context.Context, id int64, patch model.Values) (model.Movie, error) {
	rows, err := r.p.Update(ctx, model.Movies, query.FieldEq("movieId", id), patch)
	if err != nil {
		return model.Movie{}, err
	}
	if len(rows) == 0 {
		return model.Movie{}, errs.ErrNotFound
	}
	return model.MovieFromValues(rows[0]), nil
}

// List returns one page of movies ordered by id.
func (r *MovieRepo) List(ctx context.Context, limit, offset int) ([]model.Movie, error) {
	return r.collect(ctx, query.Select{Entity: model.Movies, Limit: limit, Offset: offset})
}

// ReleaseWindow selects movies released in [From, To) rated at least
// MinRating.  Zero bounds are open.
type ReleaseWindow struct {
	From, To  int64
	MinRating float64
	Limit     int
}

// Select builds the query for w.  It filters and sorts on the
// (releaseDate, rating) index only, so the planner can use it.
func (w ReleaseWindow) Select() query.Select {
	var where query.And
	if w.From != 0 {
		where = append(where, query.Where("releaseDate", query.Gte, w.From))
	}
	if w.To != 0 {
		where = append(where, query.Where("releaseDate", query.Lt, w.To))
	}
	if w.MinRating != 0 {
		where = append(where, query.Where("rating", query.Gte, w.MinRating))
	} else {
		where = append(where, query.Where("rating", query.NotNull, nil))
	}
	return query.Select{
		Entity:  model.Movies,
		Where:   where,
		OrderBy: []query.Order{query.Desc("releaseDate"), query.Desc("rating")},
		Limit:   w.Limit,
	}
}

// TopRatedBetween lists the movies in w, newest first, best rated first
// within a day.
func (r *MovieRepo) TopRatedBetween(ctx context.Context, w ReleaseWindow) ([]model.Movie, error) {
	return r.collect(ctx, w.Select())
}

func (r *MovieRepo) collect(ctx context.Context, s query.Select) ([]model.Movie, error) {
	rows, err := r.p.Select(s)
	if err != nil {
		return nil, err
	}
	var out []model.Movie
	for v, err := range rows.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, model.MovieFromValues(v))
	}
	return out, nil
}
