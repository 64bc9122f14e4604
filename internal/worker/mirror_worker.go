// Package worker consumes queued mirror messages and writes them into the
// remote document store.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"keeptrack/internal/amqp"
	"keeptrack/internal/log"
	"keeptrack/internal/remote"
)

// MirrorWorker inserts each queued transaction into the remote store. Inserts
// are idempotent, so a redelivered message never creates a duplicate.
type MirrorWorker struct {
	remote  remote.Writer
	timeout time.Duration
	logger  *log.Logger

	mirrored atomic.Int64
	failed   atomic.Int64
}

func NewMirrorWorker(writer remote.Writer, timeout time.Duration, logger *log.Logger) *MirrorWorker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MirrorWorker{
		remote:  writer,
		timeout: timeout,
		logger:  log.Or(logger).WithComponent(log.ComponentWorker),
	}
}

// HandleMirrorMessage is an amqp.Handler.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	tx := msg.Transaction
	w.logger.DebugContext(ctx, "Processing mirror message",
		log.FieldTxID, tx.ID,
		log.FieldOwner, tx.OwnerID,
		"queued_at", msg.Timestamp)

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.remote.Insert(ctx, tx); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("insert remote: %w", err)
	}
	w.mirrored.Add(1)
	return nil
}

// Stats reports how many messages were mirrored and how many attempts failed.
func (w *MirrorWorker) Stats() (mirrored, failed int64) {
	return w.mirrored.Load(), w.failed.Load()
}

// Run consumes from client until ctx is done, logging progress every
// interval.
func (w *MirrorWorker) Run(ctx context.Context, client *amqp.Client, interval time.Duration) error {
	if interval > 0 {
		go w.reportEvery(ctx, interval)
	}
	return client.ConsumeTransactions(ctx, w.HandleMirrorMessage)
}

func (w *MirrorWorker) reportEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mirrored, failed := w.Stats()
			w.logger.InfoContext(ctx, "Mirror worker progress", "mirrored", mirrored, "failed", failed)
		}
	}
}
