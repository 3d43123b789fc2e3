// Package cache is the key-value adapter over Redis.
//
// Entries are either a scalar string or a string field map and never
// expire on their own; the access layer invalidates them when the record
// they copy changes, and fills them through a fence so that a fill which
// raced the write is dropped (see fence.go).  A missing key is reported as found == false, never as an
// error.  Connectivity problems surface as *errs.BackendUnavailable so the
// caller can fall back to the system of record.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/errs"
)

var (
	// ErrFlushDisabled is returned by FlushAll when the cache was not opened
	// with AllowFlush.
	ErrFlushDisabled = errors.New("cache: flush disabled")
	// ErrFlushDenied is returned when the flush grant is missing or rejected.
	ErrFlushDenied = errors.New("cache: flush not authorized")
)

// FlushGuard authorizes a FlushAll call.  grant is an opaque credential,
// typically an operator token.
type FlushGuard interface {
	AuthorizeFlush(grant string) error
}

// GuardFunc adapts a function to FlushGuard.
type GuardFunc func(grant string) error

func (f GuardFunc) AuthorizeFlush(grant string) error { return f(grant) }

// Options configures Open.
//
// Fields:
//	Addr       - host:port of the Redis server.
//	Password   - optional AUTH password.
//	DB         - database number.
//	TLS        - dial with TLS.
//	AllowFlush - permit FlushAll at all; off by default.
//	Guard      - authorizes each FlushAll; required when AllowFlush is set.
type Options struct {
	Addr       string
	Password   string
	DB         int
	TLS        bool
	AllowFlush bool
	Guard      FlushGuard
}

// Cache owns one Redis client.
type Cache struct {
	rdb  *redis.Client
	opts Options
	log  zerolog.Logger
}

// commands is the subset of go-redis shared by the pooled client and a
// dedicated connection.
type commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// Open connects and pings the server with a short timeout.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (*Cache, error) {
	ro := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	c := &Cache{
		rdb:  redis.NewClient(ro),
		opts: opts,
		log:  log.With().Str("backend", errs.BackendCache).Str("addr", opts.Addr).Logger(),
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(pctx).Err(); err != nil {
		_ = c.rdb.Close()
		return nil, c.fail("connect", err)
	}
	return c, nil
}

// Close releases the client and its pool.
func (c *Cache) Close() error { return c.rdb.Close() }

// Ping checks that the server answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.fail("ping", c.rdb.Ping(ctx).Err())
}

// Get returns the scalar stored at key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	return get(ctx, c.rdb, key, c.fail)
}

// Set stores a scalar without expiry.  The last write wins.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.fail("set", c.rdb.Set(ctx, key, value, 0).Err())
}

// SetFields merges fields into the map at key.  An empty map is a no-op.
func (c *Cache) SetFields(ctx context.Context, key string, fields map[string]string) error {
	return setFields(ctx, c.rdb, key, fields, c.fail)
}

// GetFields returns the map at key, or an empty map when key is absent.
func (c *Cache) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return getFields(ctx, c.rdb, key, c.fail)
}

// Delete removes keys.  Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.fail("delete", c.rdb.Del(ctx, keys...).Err())
}

// FlushAll removes every key in every database of the server.  It needs
// both the AllowFlush option and a grant accepted by the Guard.
func (c *Cache) FlushAll(ctx context.Context, grant string) error {
	if !c.opts.AllowFlush {
		return ErrFlushDisabled
	}
	if c.opts.Guard == nil {
		return ErrFlushDenied
	}
	if err := c.opts.Guard.AuthorizeFlush(grant); err != nil {
		return errors.Join(ErrFlushDenied, err)
	}
	if err := c.rdb.FlushAll(ctx).Err(); err != nil {
		return c.fail("flushall", err)
	}
	c.log.Warn().Msg("cache flushed")
	return nil
}

// fail logs and classifies a command error.  Server replies such as
// WRONGTYPE are returned unchanged; everything else is connectivity.
func (c *Cache) fail(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	c.log.Error().Err(err).Str("op", op).Msg("redis command failed")
	var reply redis.Error
	if errors.As(err, &reply) && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return errs.Unavailable(errs.BackendCache, op, err)
}

func get(ctx context.Context, cmd commands, key string, fail func(string, error) error) (string, bool, error) {
	v, err := cmd.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fail("get", err)
	}
	return v, true, nil
}

func setFields(ctx context.Context, cmd commands, key string, fields map[string]string, fail func(string, error) error) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return fail("hset", cmd.HSet(ctx, key, args...).Err())
}

func getFields(ctx context.Context, cmd commands, key string, fail func(string, error) error) (map[string]string, error) {
	m, err := cmd.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fail("hgetall", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}
