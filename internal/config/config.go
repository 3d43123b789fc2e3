// Package config loads application configuration from environment
// variables (and a `.env` file when present).
//
// Variables are grouped by their first segment: DB_DSN becomes the koanf
// key db.dsn and lands in Config.DB.DSN.  Unset variables fall back to the
// defaults below; JWT_SECRET has no default and must be set.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds all runtime configuration values.
type Config struct {
	App      AppConfig      `koanf:"app" validate:"required"`
	DB       DBConfig       `koanf:"db" validate:"required"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Redis    RedisConfig    `koanf:"redis"`
	Cache    CacheConfig    `koanf:"cache"`
	JWT      JWTConfig      `koanf:"jwt" validate:"required"`
	Bcrypt   BcryptConfig   `koanf:"bcrypt"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Log      LogConfig      `koanf:"log"`
}

type AppConfig struct {
	Env  string `koanf:"env" validate:"required"`  // dev, test, prod
	Port string `koanf:"port" validate:"required"` // HTTP port to listen on
}

// DBConfig selects the relational backend.  DSN is a file path or
// ":memory:" for sqlite and a go-sql-driver DSN for mysql.
type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite mysql"`
	DSN    string `koanf:"dsn" validate:"required"`
}

// MongoConfig points at the document store.  An empty URI selects the
// in-process backend.
type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database" validate:"required_with=URI"`
}

// CacheConfig holds switches that belong to the cache adapter rather than
// to the Redis connection.
type CacheConfig struct {
	Enabled    bool `koanf:"enabled"`
	AllowFlush bool `koanf:"allow_flush"`
}

type JWTConfig struct {
	Secret         string `koanf:"secret" validate:"required"`
	AccessTTLMin   int    `koanf:"access_ttl_min" validate:"gt=0"`   // user and admin tokens
	OperatorTTLMin int    `koanf:"operator_ttl_min" validate:"gt=0"` // operator grants
}

type BcryptConfig struct {
	Cost int `koanf:"cost" validate:"min=4,max=31"`
}

// RabbitMQConfig enables the invalidation queue when URL is set.
type RabbitMQConfig struct {
	URL string `koanf:"url"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`
}

var defaults = map[string]any{
	"app.env":              "dev",
	"app.port":             "8080",
	"db.driver":            "sqlite",
	"db.dsn":               "moviestore.db",
	"mongo.database":       "moviestore",
	"redis.addr":           "localhost:6379",
	"redis.db":             0,
	"cache.enabled":        true,
	"cache.allow_flush":    false,
	"jwt.access_ttl_min":   60,
	"jwt.operator_ttl_min": 15,
	"bcrypt.cost":          10,
	"log.level":            "info",
}

// sections are the variable prefixes read from the environment.
var sections = map[string]bool{
	"APP": true, "DB": true, "MONGO": true, "REDIS": true, "CACHE": true,
	"JWT": true, "BCRYPT": true, "RABBITMQ": true, "LOG": true,
}

// envKey maps REDIS_ALLOW_FLUSH style names to redis.allow_flush.  Names
// outside the known sections are skipped.
func envKey(s string) string {
	section, rest, ok := strings.Cut(s, "_")
	if !ok || rest == "" || !sections[section] {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(rest)
}

// Load reads defaults, then the environment, and validates the result.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool { return c.App.Env == "dev" || c.App.Env == "development" }
