// Package access is the single entry point applications use to read and
// write users, comments and movies.
//
// The relational store is the system of record for users, comments and
// movie records by id; the document store owns the director catalogue.
// Reads of single records and director listings go through the cache
// first (cache-aside).  Writes go to the system of record and then delete
// the affected cache keys, so a caller reads its own writes.  The cache is
// never authoritative: a failed cache read falls back to the store, and a
// failed cache delete never undoes a committed write.  Instead it is
// logged and handed to the invalidation queue for retry.
package access

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/document"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/queue"
	"github.com/iliyamo/moviestore/internal/repository"
)

// Cache is the key-value adapter the facade needs.  *cache.Cache
// implements it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetFields(ctx context.Context, key string) (map[string]string, error)
	Fence(ctx context.Context, key string) (string, error)
	SetFenced(ctx context.Context, key, value, fence string) (bool, error)
	SetFieldsFenced(ctx context.Context, key string, fields map[string]string, fence string) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
	FlushAll(ctx context.Context, grant string) error
}

// Publisher hands failed invalidations to a background consumer.
type Publisher interface {
	PublishInvalidation(ctx context.Context, ev queue.InvalidationEvent) error
}

// Deps are the adapters the facade is built from.  Cache and Publisher
// may be nil: without a cache every read hits the store, and without a
// publisher a failed invalidation is only logged.
type Deps struct {
	Planner    *repository.Planner
	Documents  *document.Store
	Cache      Cache
	Publisher  Publisher
	BcryptCost int
	Log        zerolog.Logger
}

// Service is the access facade.
type Service struct {
	movies   *repository.MovieRepo
	users    *repository.UserRepo
	comments *repository.CommentRepo
	docs     *document.Store
	cache    Cache
	pub      Publisher
	log      zerolog.Logger
}

func New(d Deps) *Service {
	return &Service{
		movies:   repository.NewMovieRepo(d.Planner),
		users:    repository.NewUserRepo(d.Planner, d.BcryptCost),
		comments: repository.NewCommentRepo(d.Planner),
		docs:     d.Documents,
		cache:    d.Cache,
		pub:      d.Publisher,
		log:      d.Log.With().Str("component", "access").Logger(),
	}
}

// Cache keys.
func movieKey(id int64) string { return "movies:" + strconv.FormatInt(id, 10) }
func userKey(id int64) string { return "users:" + strconv.FormatInt(id, 10) }
func directorKey(name string) string { return "movies:director:" + name }

// FlushCache empties the whole cache.  grant must satisfy the cache's
// flush guard.
func (s *Service) FlushCache(ctx context.Context, grant string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.FlushAll(ctx, grant)
}

// cachedJSON reads key and decodes it into dst.  Misses, cache failures
// and undecodable entries all report false.
func (s *Service) cachedJSON(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed; using store")
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

// fence takes the fence of key before the store is read.  It reports false
// when there is no cache to fill or it cannot be reached.
func (s *Service) fence(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	f, err := s.cache.Fence(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache fence read failed; skipping fill")
		return "", false
	}
	return f, true
}

// fillJSON stores v at key unless key was invalidated since fence was
// taken.  Failure only costs a future miss.
func (s *Service) fillJSON(ctx context.Context, key, fence string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	ok, err := s.cache.SetFenced(ctx, key, string(b), fence)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("key", key).Msg("cache fill failed")
	case !ok:
		s.log.Debug().Str("key", key).Msg("cache fill dropped; entry was invalidated meanwhile")
	}
}

// invalidate deletes keys after a committed write and advances their
// fences, so a read that started before the write cannot fill them with
// the old value.  It never fails the write; an undeleted key is queued for
// the consumer to retry.
func (s *Service) invalidate(ctx context.Context, reason string, keys ...string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Invalidate(ctx, keys...)
	if err == nil {
		return
	}
	s.log.Warn().Err(err).Strs("keys", keys).Str("reason", reason).Msg("cache invalidation failed")
	if s.pub == nil {
		return
	}
	ev := queue.InvalidationEvent{Keys: keys, Reason: reason, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	if perr := s.pub.PublishInvalidation(context.WithoutCancel(ctx), ev); perr != nil {
		s.log.Error().Err(perr).Strs("keys", keys).Msg("could not queue invalidation; entries stay stale until overwritten")
	}
}

// GetMovie returns one movie by id.
func (s *Service) GetMovie(ctx context.Context, id int64) (model.Movie, error) {
	key := movieKey(id)
	var m model.Movie
	if s.cachedJSON(ctx, key, &m) {
		return m, nil
	}
	fence, fill := s.fence(ctx, key)
	m, err := s.movies.GetByID(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	if fill {
		s.fillJSON(ctx, key, fence, m)
	}
	return m, nil
}

// CreateMovie validates and stores a movie.
func (s *Service) CreateMovie(ctx context.Context, m model.Movie) (model.Movie, error) {
	return s.movies.Create(ctx, m)
}

// UpdateMovie applies a partial update and invalidates the cached copy.
func (s *Service) UpdateMovie(ctx context.Context, id int64, patch model.Values) (model.Movie, error) {
	m, err := s.movies.Update(ctx, id, patch)
	if err != nil {
		return model.Movie{}, err
	}
	s.invalidate(ctx, "movie updated", movieKey(id))
	return m, nil
}

// ListMovies pages through all movies by id.
func (s *Service) ListMovies(ctx context.Context, limit, offset int) ([]model.Movie, error) {
	return s.movies.List(ctx, limit, offset)
}

// TopRatedBetween lists movies in a release window above a rating.  The
// planner serves it from the (releaseDate, rating) index.
func (s *Service) TopRatedBetween(ctx context.Context, w repository.ReleaseWindow) ([]model.Movie, error) {
	return s.movies.TopRatedBetween(ctx, w)
}

// ListDirectorMovies returns the document-store movies of one director.
func (s *Service) ListDirectorMovies(ctx context.Context, director string) ([]model.MovieDoc, error) {
	key := directorKey(director)
	var docs []model.MovieDoc
	if s.cachedJSON(ctx, key, &docs) {
		return docs, nil
	}
	fence, fill := s.fence(ctx, key)
	docs, err := s.docs.ByDirector(ctx, director)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.MovieDoc{}
	}
	if fill {
		s.fillJSON(ctx, key, fence, docs)
	}
	return docs, nil
}

// AddMovieDocument validates and stores a movie document and invalidates
// its director's listing.
func (s *Service) AddMovieDocument(ctx context.Context, d model.MovieDoc) (model.MovieDoc, error) {
	out, err := s.docs.Create(ctx, d)
	if err != nil {
		return model.MovieDoc{}, err
	}
	s.invalidate(ctx, "movie document added", directorKey(out.Director))
	return out, nil
}
