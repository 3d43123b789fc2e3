package access

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/database"
	"github.com/iliyamo/moviestore/internal/document"
	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/queue"
	"github.com/iliyamo/moviestore/internal/repository"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.InvalidationEvent
}

func (f *fakePublisher) PublishInvalidation(_ context.Context, ev queue.InvalidationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fixture struct {
	svc *Service
	mr  *miniredis.Miniredis
	pub *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWith(t, func(c *cache.Cache) Cache { return c })
}

// newFixtureWith lets a test wrap the cache the service talks to.
func newFixtureWith(t *testing.T, wrap func(*cache.Cache) Cache) fixture {
	t.Helper()
	ctx := context.Background()

	db, d, err := database.Open(ctx, database.Options{DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	c, err := cache.Open(ctx, cache.Options{
		Addr:       mr.Addr(),
		AllowFlush: true,
		Guard:      cache.GuardFunc(func(g string) error { return nil }),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	pub := &fakePublisher{}
	svc := New(Deps{
		Planner:    repository.NewPlanner(db, d, zerolog.Nop()),
		Documents:  document.NewStore(document.NewMemoryBackend(), zerolog.Nop()),
		Cache:      wrap(c),
		Publisher:  pub,
		BcryptCost: bcrypt.MinCost,
		Log:        zerolog.Nop(),
	})
	return fixture{svc: svc, mr: mr, pub: pub}
}

func ptr[T any](v T) *T { return &v }

func TestWriteThenReadSeesTheWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Heat", Rating: ptr(7.0)})
	require.NoError(t, err)

	got, err := f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.True(t, f.mr.Exists("movies:1"), "read fills the cache")

	updated, err := f.svc.UpdateMovie(ctx, m.MovieID, model.Values{"rating": 8.3})
	require.NoError(t, err)
	assert.InDelta(t, 8.3, *updated.Rating, 1e-9)
	assert.False(t, f.mr.Exists("movies:1"), "write invalidates")

	got, err = f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.InDelta(t, 8.3, *got.Rating, 1e-9)

	// served from cache now
	got, err = f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Empty(t, f.pub.events)
}

func TestGetMovieMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetMovie(context.Background(), 9)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, f.mr.Exists("movies:9"))
}

func TestRatingOutOfRangeIsRejectedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Cats", Rating: ptr(40.5)})
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.AddMovieDocument(ctx, model.MovieDoc{Title: "Cats", Director: "Hooper", Rating: 40.5})
	assert.ErrorIs(t, err, errs.ErrValidation)

	m, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Heat"})
	require.NoError(t, err)
	_, err = f.svc.UpdateMovie(ctx, m.MovieID, model.Values{"rating": 40.5})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUserCacheNeverHoldsPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.RegisterUser(ctx, "jw", "s3cret")
	require.NoError(t, err)

	got, err := f.svc.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	assert.Empty(t, got.Password)
	assert.Equal(t, "jw", got.Username)

	keys, err := f.mr.HKeys("users:1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"userId", "username", "isAdmin"}, keys)

	admin, err := f.svc.SetAdmin(ctx, u.UserID, true)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Empty(t, admin.Password)
	assert.False(t, f.mr.Exists("users:1"))

	got, err = f.svc.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "true", f.mr.HGet("users:1", "isAdmin"))

	authed, err := f.svc.Authenticate(ctx, "jw", "s3cret")
	require.NoError(t, err)
	assert.Empty(t, authed.Password)
	_, err = f.svc.Authenticate(ctx, "jw", "wrong")
	assert.ErrorIs(t, err, repository.ErrInvalidCredentials)
}

func TestCacheOutageFallsBackAndQueuesInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Heat"})
	require.NoError(t, err)
	_, err = f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)

	f.mr.Close()

	updated, err := f.svc.UpdateMovie(ctx, m.MovieID, model.Values{"title": "Heat (1995)"})
	require.NoError(t, err, "a cache failure never fails the write")
	assert.Equal(t, "Heat (1995)", updated.Title)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, []string{"movies:1"}, f.pub.events[0].Keys)
	assert.Equal(t, "movie updated", f.pub.events[0].Reason)

	got, err := f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err, "reads fall back to the store")
	assert.Equal(t, "Heat (1995)", got.Title)
}

// writeBeforeFill runs write once, after the reader has read the store but
// before its fill reaches the cache.
type writeBeforeFill struct {
	*cache.Cache
	write func()
}

func (w *writeBeforeFill) SetFenced(ctx context.Context, key, value, fence string) (bool, error) {
	if write := w.write; write != nil {
		w.write = nil
		write()
	}
	return w.Cache.SetFenced(ctx, key, value, fence)
}

func TestFillRacingAWriteDoesNotCacheTheOldValue(t *testing.T) {
	var racer *writeBeforeFill
	f := newFixtureWith(t, func(c *cache.Cache) Cache {
		racer = &writeBeforeFill{Cache: c}
		return racer
	})
	ctx := context.Background()

	m, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Heat", Rating: ptr(7.0)})
	require.NoError(t, err)
	racer.write = func() {
		_, err := f.svc.UpdateMovie(ctx, m.MovieID, model.Values{"rating": 8.3})
		require.NoError(t, err)
	}

	got, err := f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, *got.Rating, 1e-9, "the read began before the write")
	assert.False(t, f.mr.Exists("movies:1"), "the pre-write value is not cached")

	got, err = f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.InDelta(t, 8.3, *got.Rating, 1e-9)
	assert.True(t, f.mr.Exists("movies:1"))
	assert.Empty(t, f.pub.events)
}

func TestDirectorListingIsInvalidatedOnAdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.ListDirectorMovies(ctx, "Mann")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.True(t, f.mr.Exists("movies:director:Mann"))

	heat, err := f.svc.AddMovieDocument(ctx, model.MovieDoc{Title: "Heat", Director: "Mann", Rating: 8.3})
	require.NoError(t, err)
	assert.False(t, f.mr.Exists("movies:director:Mann"))

	got, err := f.svc.ListDirectorMovies(ctx, "Mann")
	require.NoError(t, err)
	assert.Equal(t, []model.MovieDoc{heat}, got)

	cached, err := f.svc.ListDirectorMovies(ctx, "Mann")
	require.NoError(t, err)
	assert.Equal(t, got, cached)
}

func TestHelloCommentThroughFacade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterUser(ctx, "jw", "")
	require.NoError(t, err)
	_, err = f.svc.RecordComment(ctx, model.Comment{Payload: "hello", UserID: 1})
	require.NoError(t, err)

	rows, err := f.svc.CommentsWithAuthors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Author)
	assert.Equal(t, "jw", rows[0].Author.Username)
	assert.Equal(t, "hello", rows[0].Comment.Payload)

	payloads, err := f.svc.CommentsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, payloads)

	_, err = f.svc.RecordComment(ctx, model.Comment{Payload: "hello", UserID: 2})
	assert.ErrorIs(t, err, errs.ErrConstraint)
}

func TestTopRatedBetween(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, r := range []float64{6, 9, 7.5, 8} {
		_, err := f.svc.CreateMovie(ctx, model.Movie{Title: "m", ReleaseDate: ptr(int64(100 + i)), Rating: ptr(r)})
		require.NoError(t, err)
	}

	got, err := f.svc.TopRatedBetween(ctx, repository.ReleaseWindow{From: 100, To: 104, MinRating: 7.5})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(103), *got[0].ReleaseDate)
	assert.Equal(t, int64(102), *got[1].ReleaseDate)
	assert.Equal(t, int64(101), *got[2].ReleaseDate)

	all, err := f.svc.ListMovies(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].MovieID)
}

func TestFlushCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.svc.CreateMovie(ctx, model.Movie{Title: "Heat"})
	require.NoError(t, err)
	_, err = f.svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)

	require.NoError(t, f.svc.FlushCache(ctx, "grant"))
	assert.Empty(t, f.mr.Keys())
}

func TestServiceWithoutCache(t *testing.T) {
	ctx := context.Background()
	db, d, err := database.Open(ctx, database.Options{DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := New(Deps{
		Planner:   repository.NewPlanner(db, d, zerolog.Nop()),
		Documents: document.NewStore(document.NewMemoryBackend(), zerolog.Nop()),
		Log:       zerolog.Nop(),
	})
	m, err := svc.CreateMovie(ctx, model.Movie{Title: "Heat"})
	require.NoError(t, err)
	_, err = svc.UpdateMovie(ctx, m.MovieID, model.Values{"title": "Thief"})
	require.NoError(t, err)
	got, err := svc.GetMovie(ctx, m.MovieID)
	require.NoError(t, err)
	assert.Equal(t, "Thief", got.Title)
	assert.NoError(t, svc.FlushCache(ctx, ""))
}
