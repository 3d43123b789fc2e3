package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/moviestore/internal/errs"
)

const grant = "let-me-flush"

func newTestCache(t *testing.T, opts Options) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts.Addr = mr.Addr()
	c, err := Open(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func flushable() Options {
	return Options{
		AllowFlush: true,
		Guard: GuardFunc(func(g string) error {
			if g != grant {
				return errors.New("bad grant")
			}
			return nil
		}),
	}
}

func TestFlushThenGetThenSet(t *testing.T) {
	c, _ := newTestCache(t, flushable())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "hello", "stale"))
	require.NoError(t, c.FlushAll(ctx, grant))

	_, found, err := c.Get(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "hello", "redis"))
	v, found, err := c.Get(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "redis", v)
}

func TestFlushAllIsGuarded(t *testing.T) {
	c, mr := newTestCache(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v"))
	assert.ErrorIs(t, c.FlushAll(ctx, grant), ErrFlushDisabled)
	assert.True(t, mr.Exists("k"))

	g, mr := newTestCache(t, flushable())
	require.NoError(t, g.Set(ctx, "k", "v"))
	assert.ErrorIs(t, g.FlushAll(ctx, "wrong"), ErrFlushDenied)
	assert.True(t, mr.Exists("k"))

	n, _ := newTestCache(t, Options{AllowFlush: true})
	assert.ErrorIs(t, n.FlushAll(ctx, grant), ErrFlushDenied)
}

func TestGetFieldsOnAbsentKeyIsEmpty(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	got, err := c.GetFields(context.Background(), "users:404")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSetFieldsMergesAndDeleteRemoves(t *testing.T) {
	c, mr := newTestCache(t, Options{})
	ctx := context.Background()

	require.NoError(t, c.SetFields(ctx, "users:1", map[string]string{"userId": "1", "username": "jw"}))
	require.NoError(t, c.SetFields(ctx, "users:1", map[string]string{"isAdmin": "true"}))
	require.NoError(t, c.SetFields(ctx, "users:1", nil))

	got, err := c.GetFields(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"userId": "1", "username": "jw", "isAdmin": "true"}, got)
	assert.Equal(t, "jw", mr.HGet("users:1", "username"))

	require.NoError(t, c.Delete(ctx, "users:1", "never-set"))
	require.NoError(t, c.Delete(ctx))
	assert.False(t, mr.Exists("users:1"))
}

func TestSetHasNoExpiry(t *testing.T) {
	c, mr := newTestCache(t, Options{})
	require.NoError(t, c.Set(context.Background(), "movies:1", "{}"))
	assert.Zero(t, mr.TTL("movies:1"))
}

func TestUnavailableServer(t *testing.T) {
	c, mr := newTestCache(t, Options{})
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	var bu *errs.BackendUnavailable
	require.ErrorAs(t, err, &bu)
	assert.Equal(t, errs.BackendCache, bu.Backend)
	assert.Equal(t, "get", bu.Op)
}

func TestOpenFailsWhenServerIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := Open(context.Background(), Options{Addr: addr}, zerolog.Nop())
	assert.ErrorIs(t, err, errs.ErrUnavailable)
}

func TestWrongTypeIsNotConnectivity(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.SetFields(ctx, "h", map[string]string{"a": "b"}))
	_, _, err := c.Get(ctx, "h")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrUnavailable)
}

func TestWithSessionReleasesOnEveryExit(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	ctx := context.Background()

	var held *Session
	err := c.WithSession(ctx, func(ctx context.Context, s *Session) error {
		held = s
		if err := s.Set(ctx, "hello", "session"); err != nil {
			return err
		}
		v, found, err := s.Get(ctx, "hello")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "session", v)
		return nil
	})
	require.NoError(t, err)
	_, _, err = held.Get(ctx, "hello")
	assert.Error(t, err, "released session must not be usable")

	boom := errors.New("boom")
	err = c.WithSession(ctx, func(_ context.Context, s *Session) error {
		held = s
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, _, err = held.Get(ctx, "hello")
	assert.Error(t, err)

	assert.Panics(t, func() {
		_ = c.WithSession(ctx, func(_ context.Context, s *Session) error {
			held = s
			panic("boom")
		})
	})
	_, _, err = held.Get(ctx, "hello")
	assert.Error(t, err)

	cctx, cancel := context.WithCancel(ctx)
	err = c.WithSession(cctx, func(ctx context.Context, s *Session) error {
		held = s
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = held.Get(ctx, "hello")
	assert.Error(t, err)

	stats := c.rdb.PoolStats()
	assert.Equal(t, stats.TotalConns, stats.IdleConns, "every connection is back in the pool")

	v, found, err := c.Get(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "session", v)
}

func TestSessionDisconnectIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.SetFields(context.Background(), "m", map[string]string{"a": "1"}))
	got, err := s.GetFields(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "1", got["a"])
	require.NoError(t, s.Delete(context.Background(), "m"))
	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
}
