package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	fiberadapter "github.com/lborres/tanod/adapters/fiber"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("serve")
	addr := fs.String("addr", a.cfg.HTTPAddr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}

	srv, err := newServer(a)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.tanod.StartSweeper(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen(*addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	a.log.Info().Str("addr", *addr).Str("storage", a.cfg.Storage).Str("cache", a.cfg.Cache).Msg("listening")

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	if err := srv.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		a.log.Debug().Err(err).Msg("listener closed")
	}
	return nil
}

// newServer builds the Fiber app: auth routes under the base path plus
// /metrics and /healthz.
func newServer(a *app) (*fiber.App, error) {
	srv := fiber.New(fiber.Config{AppName: "tanod"})
	srv.Use(recoverer.New())
	srv.Use(requestLogger(a.log))

	adapter := fiberadapter.New(srv, a.tanod, fiberadapter.Options{
		BasePath:     a.cfg.BasePath,
		CookieMaxAge: a.cfg.SessionTTL,
		Logger:       &a.log,
	})
	if err := adapter.RegisterRoutes(); err != nil {
		return nil, err
	}

	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	srv.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	return srv, nil
}

// requestLogger logs one line per request. Headers and bodies are never
// logged since they carry tokens and passwords.
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")

		return err
	}
}
