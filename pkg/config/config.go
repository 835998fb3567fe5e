// Package config loads the tanod binary's settings from TANOD_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Storage backends.
const (
	StorageCSV      = "csv"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Cache kinds.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Hashers.
const (
	HasherArgon2 = "argon2"
	HasherBCrypt = "bcrypt"
)

type Config struct {
	Storage     string `env:"TANOD_STORAGE"      envDefault:"csv"  validate:"oneof=csv sqlite postgres memory"`
	DataDir     string `env:"TANOD_DATA_DIR"     envDefault:"./data"`
	DatabaseURL string `env:"TANOD_DATABASE_URL" validate:"required_if=Storage postgres"`

	SessionTTL    time.Duration `env:"TANOD_SESSION_TTL"    envDefault:"24h" validate:"gt=0"`
	SweepInterval time.Duration `env:"TANOD_SWEEP_INTERVAL" envDefault:"1h"  validate:"gte=0"`
	Hasher        string        `env:"TANOD_HASHER"         envDefault:"argon2" validate:"oneof=argon2 bcrypt"`

	Cache     string        `env:"TANOD_CACHE"      envDefault:"memory" validate:"oneof=memory redis none"`
	CacheTTL  time.Duration `env:"TANOD_CACHE_TTL"  envDefault:"5m"     validate:"gt=0"`
	CacheSize int           `env:"TANOD_CACHE_SIZE" envDefault:"500"    validate:"gt=0"`
	RedisAddr string        `env:"TANOD_REDIS_ADDR" envDefault:"localhost:6379" validate:"required_if=Cache redis"`
	RedisDB   int           `env:"TANOD_REDIS_DB"   envDefault:"0"`

	HTTPAddr string `env:"TANOD_HTTP_ADDR" envDefault:":8080"`
	BasePath string `env:"TANOD_BASE_PATH" envDefault:"/api/auth"`

	LogLevel  string `env:"TANOD_LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"TANOD_LOG_PRETTY" envDefault:"false"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
