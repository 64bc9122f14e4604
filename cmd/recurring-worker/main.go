package main

import (
	"context"
	"os"

	"keeptrack/internal/auth"
	"keeptrack/internal/backend"
	"keeptrack/internal/cli"
	"keeptrack/internal/core"
	"keeptrack/internal/log"
	"keeptrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap("recurring-worker")

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

	sessions := be.NewSessions(cfg, logger)
	processor := services.NewRecurringProcessor(sessions, be.KV, logger)

	// every registered account plus the offline ledger
	owners := func(ctx context.Context) ([]string, error) {
		list, err := provider.Owners(ctx)
		if err != nil {
			return nil, err
		}
		return append(list, core.Offline), nil
	}

	if err := processor.Run(ctx, cfg.RecurringInterval, owners); err != nil {
		logger.Error("Recurring processor stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
