package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Session is a dedicated server connection taken out of the pool.  It must
// be released with Disconnect; WithSession does that on every exit path.
type Session struct {
	c    *Cache
	conn *redis.Conn
	once sync.Once
	err  error
}

// Connect checks out a dedicated connection and verifies it.
func (c *Cache) Connect(ctx context.Context) (*Session, error) {
	conn := c.rdb.Conn()
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, c.fail("connect", err)
	}
	return &Session{c: c, conn: conn}, nil
}

// Disconnect returns the connection.  Further calls are no-ops.
func (s *Session) Disconnect() error {
	s.once.Do(func() { s.err = s.conn.Close() })
	return s.err
}

// WithSession runs fn on a dedicated connection and releases it when fn
// returns, fails, panics or the context is cancelled.
func (c *Cache) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if derr := s.Disconnect(); derr != nil {
			c.log.Warn().Err(derr).Msg("redis session release failed")
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s)
}

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return get(ctx, s.conn, key, s.c.fail)
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.c.fail("set", s.conn.Set(ctx, key, value, 0).Err())
}

func (s *Session) SetFields(ctx context.Context, key string, fields map[string]string) error {
	return setFields(ctx, s.conn, key, fields, s.c.fail)
}

func (s *Session) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return getFields(ctx, s.conn, key, s.c.fail)
}

func (s *Session) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.c.fail("delete", s.conn.Del(ctx, keys...).Err())
}
