package main

import (
	"os"
	"time"

	"keeptrack/internal/backend"
	"keeptrack/internal/cli"
	"keeptrack/internal/config"
	"keeptrack/internal/log"
	"keeptrack/internal/worker"
)

const progressEvery = 5 * time.Minute

func main() {
	cfg, logger := cli.Bootstrap("keeptrack-worker")

	if cfg.RemoteBackend == config.RemoteNone {
		logger.Error("keeptrack-worker needs a remote backend", "remote", cfg.RemoteBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	factory := backend.NewFactory(logger)
	rs, err := factory.OpenRemote(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize remote store", log.FieldError, err, "remote", cfg.RemoteBackend)
		os.Exit(1)
	}

	client, err := factory.OpenAMQP(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewMirrorWorker(rs, cfg.RemoteTimeout, logger)
	logger.Info("Consuming mirror messages", "queue", cfg.AMQPQueue, "remote", cfg.RemoteBackend)
	if err := w.Run(ctx, client, progressEvery); err != nil && ctx.Err() == nil {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	mirrored, failed := w.Stats()
	logger.Info("Keeptrack-worker shutdown complete",
		log.FieldOperation, log.OpShutdown,
		"mirrored", mirrored,
		"failed", failed)
}
