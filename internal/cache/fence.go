package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// A fence is a counter kept beside each invalidated key.  A reader takes
// the fence before it reads the system of record and fills only if the
// fence has not moved since, so a fill racing a write cannot park the
// pre-write value in the cache.  Fences expire after fenceTTL, far longer
// than any read may take.
const fenceTTL = time.Hour

func fenceKey(key string) string { return "fence:" + key }

var fillScript = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '') ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2])
return 1`)

var fillFieldsScript = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '') ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1`)

// Fence returns the current fence of key, "" when it was never
// invalidated or the fence has expired.
func (c *Cache) Fence(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, fenceKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, c.fail("fence", err)
}

// SetFenced stores value at key unless key was invalidated after fence
// was taken.  It reports whether the value was stored.
func (c *Cache) SetFenced(ctx context.Context, key, value, fence string) (bool, error) {
	n, err := fillScript.Run(ctx, c.rdb, []string{key, fenceKey(key)}, fence, value).Int()
	if err != nil {
		return false, c.fail("set", err)
	}
	return n == 1, nil
}

// SetFieldsFenced is SetFields guarded the same way.  An empty map is a
// no-op that reports false.
func (c *Cache) SetFieldsFenced(ctx context.Context, key string, fields map[string]string, fence string) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	args := make([]any, 0, 1+2*len(fields))
	args = append(args, fence)
	for k, v := range fields {
		args = append(args, k, v)
	}
	n, err := fillFieldsScript.Run(ctx, c.rdb, []string{key, fenceKey(key)}, args...).Int()
	if err != nil {
		return false, c.fail("hset", err)
	}
	return n == 1, nil
}

// Invalidate deletes keys and advances their fences in one transaction.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	return invalidate(ctx, c.rdb, keys, c.fail)
}

// Invalidate is Cache.Invalidate on the session's connection.
func (s *Session) Invalidate(ctx context.Context, keys ...string) error {
	return invalidate(ctx, s.conn, keys, s.c.fail)
}

func invalidate(ctx context.Context, cmd commands, keys []string, fail func(string, error) error) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := cmd.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		for _, k := range keys {
			p.Incr(ctx, fenceKey(k))
			p.Expire(ctx, fenceKey(k), fenceTTL)
		}
		return nil
	})
	return fail("invalidate", err)
}
