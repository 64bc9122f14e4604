// Package backend builds the storage, remote and mirror collaborators named
// by the configuration.
package backend

import (
	"context"
	"fmt"

	"keeptrack/internal/amqp"
	"keeptrack/internal/config"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/remote"
	"keeptrack/internal/remote/azure"
	gsheet "keeptrack/internal/remote/google"
	remotemem "keeptrack/internal/remote/memory"
	"keeptrack/internal/services"
	"keeptrack/internal/storage"
)

const amqpConnectAttempts = 5

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	return &Factory{logger: log.Or(logger).WithComponent(log.ComponentBackend)}
}

// Build opens every collaborator cfg asks for. On error, whatever was
// already opened is closed.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{}

	kv, err := f.OpenLocal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.KV = kv
	b.addCleanup(kv.Close)

	rs, err := f.OpenRemote(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Remote = rs

	if cfg.MirrorEnabled() {
		mirror, cleanup, err := f.OpenMirror(ctx, cfg, rs)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Mirror = mirror
		if cleanup != nil {
			b.addCleanup(cleanup)
		}
	}

	f.logger.InfoContext(ctx, "Backend ready",
		"local", cfg.LocalBackend,
		"remote", cfg.RemoteBackend,
		"mirror", mirrorName(cfg))
	return b, nil
}

func mirrorName(cfg *config.Config) string {
	if !cfg.MirrorEnabled() {
		return config.MirrorNone
	}
	return cfg.MirrorMode
}

// OpenLocal opens the local key-value store.
func (f *Factory) OpenLocal(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	switch cfg.LocalBackend {
	case config.LocalMemory:
		return storage.NewMemory(), nil
	case config.LocalFile:
		kv, err := storage.NewFile(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return kv, nil
	case config.LocalSQLite:
		kv, err := storage.NewSQLite(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		f.logger.InfoContext(ctx, "Opened SQLite storage", "db_path", cfg.SQLiteDBPath)
		return kv, nil
	case config.LocalRedis:
		kv, err := storage.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		f.logger.InfoContext(ctx, "Connected to Redis", "addr", cfg.RedisAddr)
		return kv, nil
	}
	return nil, fmt.Errorf("unsupported local backend: %s", cfg.LocalBackend)
}

// OpenRemote opens the remote document store, or returns nil for none.
func (f *Factory) OpenRemote(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	switch cfg.RemoteBackend {
	case config.RemoteNone, "":
		return nil, nil
	case config.RemoteMemory:
		return remotemem.New(), nil
	case config.RemoteAzure:
		rs, err := azure.New(ctx, azure.Options{
			ServiceURL: cfg.AzureTableServiceURL,
			Table:      cfg.AzureTableName,
			Account:    cfg.AzureStorageAccount,
			Key:        cfg.AzureStorageKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open azure tables: %w", err)
		}
		f.logger.InfoContext(ctx, "Connected to Azure Tables", "table", cfg.AzureTableName)
		return rs, nil
	case config.RemoteSheets:
		rs, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("open google sheets: %w", err)
		}
		f.logger.InfoContext(ctx, "Connected to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return rs, nil
	}
	return nil, fmt.Errorf("unsupported remote backend: %s", cfg.RemoteBackend)
}

// OpenMirror builds the mirror for cfg.MirrorMode. The returned cleanup may
// be nil.
func (f *Factory) OpenMirror(ctx context.Context, cfg *config.Config, rs remote.Writer) (ledger.Mirror, CleanupFunc, error) {
	switch cfg.MirrorMode {
	case config.MirrorDirect:
		if rs == nil {
			return nil, nil, remote.ErrNotConfigured
		}
		return services.NewDirectMirror(rs, cfg.RemoteTimeout), nil, nil
	case config.MirrorQueue:
		client, err := f.OpenAMQP(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return services.NewQueueMirror(client), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported mirror mode: %s", cfg.MirrorMode)
}

// OpenAMQP connects to the broker, retrying while it is unreachable.
func (f *Factory) OpenAMQP(ctx context.Context, cfg *config.Config) (*amqp.Client, error) {
	client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpConnectAttempts, f.logger)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, nil
}

// NewSessions wires per-owner stores on top of b.
func (b *Backend) NewSessions(cfg *config.Config, logger *log.Logger) *ledger.Sessions {
	return ledger.NewSessions(func(owner string) *ledger.Store {
		return ledger.NewStore(ledger.Options{
			Owner:           owner,
			KV:              storage.Namespace(b.KV, owner),
			Remote:          b.RemoteReader(),
			Mirror:          b.Mirror,
			DefaultCurrency: cfg.DefaultCurrency,
			Logger:          logger,
		})
	}, cfg.PurgeOnSignOut, logger)
}
