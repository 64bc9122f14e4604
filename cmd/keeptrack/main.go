package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"keeptrack/internal/auth"
	"keeptrack/internal/backend"
	"keeptrack/internal/cache"
	"keeptrack/internal/cli"
	"keeptrack/internal/core"
	apphttp "keeptrack/internal/http"
	"keeptrack/internal/log"
	"keeptrack/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	cacheCleanupEvery = 10 * time.Minute
)

func main() {
	cfg, logger := cli.Bootstrap("keeptrack")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	}()

	sessions := be.NewSessions(cfg, logger)

	provider, err := auth.NewProvider(auth.Options{
		Secret: cfg.AuthSecret,
		TTL:    cfg.AuthTokenTTL,
		KV:     be.KV,
		Logger: logger,
	})
	if err != nil {
		logger.Error("Failed to initialize auth provider", log.FieldError, err)
		os.Exit(1)
	}
	provider.Subscribe(func(ctx context.Context, ev auth.Event) {
		switch ev.Kind {
		case auth.SignedIn:
			if err := sessions.SignedIn(ctx, ev.Owner); err != nil {
				logger.Warn("Loading ledger after sign-in failed", log.FieldOwner, ev.Owner, log.FieldError, err)
			}
		case auth.SignedOut:
			sessions.SignedOut(ctx, ev.Owner)
		}
	})

	checks := make(map[string]apphttp.ReadyCheck)
	for name, check := range be.ReadyChecks() {
		checks[name] = check
	}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:     sessions,
		Auth:         provider,
		AllowOffline: cfg.AllowOffline,
		Checks:       checks,
		Logger:       logger,
	})

	caches := cache.NewManager(logger)
	caches.Register(provider.RevokedTokens())
	for _, c := range srv.Caches() {
		caches.Register(c)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port, "allow_offline", cfg.AllowOffline)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(shutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return caches.Run(gctx, cacheCleanupEvery)
	})
	if cfg.RecurringEnabled {
		processor := services.NewRecurringProcessor(sessions, be.KV, logger)
		g.Go(func() error {
			return processor.Run(gctx, cfg.RecurringInterval, func(ctx context.Context) ([]string, error) {
				owners, err := provider.Owners(ctx)
				if err != nil {
					return nil, err
				}
				return append(owners, core.Offline), nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
