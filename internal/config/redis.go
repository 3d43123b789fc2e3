package config

import (
	"github.com/iliyamo/moviestore/internal/cache"
)

// RedisConfig describes the cache server.
//
//	REDIS_HOST and REDIS_PORT - hostname and port; take precedence over REDIS_ADDR
//	REDIS_ADDR                - host:port shorthand
//	REDIS_PASSWORD            - optional password
//	REDIS_DB                  - database number (default 0)
//	REDIS_TLS                 - dial with TLS
type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	TLS      bool   `koanf:"tls"`
}

// Address resolves the server address.
func (r RedisConfig) Address() string {
	if r.Host != "" && r.Port != "" {
		return r.Host + ":" + r.Port
	}
	if r.Addr == "" {
		return "localhost:6379"
	}
	return r.Addr
}

// CacheOptions builds the cache adapter options.  guard authorizes flushes
// and is only consulted when CACHE_ALLOW_FLUSH is set.
func (c Config) CacheOptions(guard cache.FlushGuard) cache.Options {
	return cache.Options{
		Addr:       c.Redis.Address(),
		Password:   c.Redis.Password,
		DB:         c.Redis.DB,
		TLS:        c.Redis.TLS,
		AllowFlush: c.Cache.AllowFlush,
		Guard:      guard,
	}
}
