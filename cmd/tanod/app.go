package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lborres/tanod"
	"github.com/lborres/tanod/adapters/csv"
	"github.com/lborres/tanod/adapters/memory"
	"github.com/lborres/tanod/adapters/pgx"
	"github.com/lborres/tanod/adapters/sqlite"
	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/cache"
	"github.com/lborres/tanod/pkg/config"
	"github.com/lborres/tanod/pkg/crypto"
	"github.com/lborres/tanod/pkg/logger"
	"github.com/lborres/tanod/pkg/metrics"
)

// sqliteFile is the database file name under TANOD_DATA_DIR.
const sqliteFile = "tanod.db"

type app struct {
	cfg      config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	tanod    *tanod.Tanod

	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: stderr})

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		stdin:    stdin,
		in:       bufio.NewReader(stdin),
		stdout:   stdout,
		stderr:   stderr,
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	c, err := a.openCache(ctx)
	if err != nil {
		_ = store.Close()
		a.close()
		return nil, err
	}

	sessionConfig := core.SessionConfig{MaxAge: cfg.SessionTTL}
	a.tanod, err = tanod.New(tanod.Config{
		Store:          store,
		PasswordHasher: newHasher(cfg.Hasher),
		Cache:          c,
		DisableCache:   cfg.Cache == config.CacheNone,
		SessionConfig:  &sessionConfig,
		Logger:         &a.log,
		Metrics:        metrics.New(a.registry),
		SweepInterval:  cfg.SweepInterval,
	})
	if err != nil {
		_ = store.Close()
		a.close()
		return nil, err
	}
	// the store closes before the connections it was built on
	a.closers = append([]func() error{a.tanod.Close}, a.closers...)

	return a, nil
}

func (a *app) openStore(ctx context.Context) (core.RecordStore, error) {
	switch a.cfg.Storage {
	case config.StorageCSV:
		return csv.Open(a.cfg.DataDir)

	case config.StorageSQLite:
		if err := os.MkdirAll(a.cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return sqlite.Open(ctx, filepath.Join(a.cfg.DataDir, sqliteFile))

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, core.NewStorageError("open", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		return pgx.New(ctx, pool)

	case config.StorageMemory:
		a.log.Warn().Msg("memory storage: accounts and sessions are lost on exit")
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown storage %q", a.cfg.Storage)
}

func (a *app) openCache(ctx context.Context) (core.Cache, error) {
	cacheConfig := core.CacheConfig{TTL: a.cfg.CacheTTL, MaxSize: a.cfg.CacheSize}

	switch a.cfg.Cache {
	case config.CacheMemory:
		return cache.NewInMemoryCache(cacheConfig), nil

	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr: a.cfg.RedisAddr,
			DB:   a.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", a.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisCache(client, cacheConfig), nil
	}

	return nil, nil
}

func newHasher(name string) crypto.PasswordHandler {
	if name == config.HasherBCrypt {
		return crypto.NewBCrypt()
	}
	return crypto.NewArgon2()
}

func (a *app) close() {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Warn().Err(err).Msg("shutdown")
	}
}
