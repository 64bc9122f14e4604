package services

import (
	"context"
	"fmt"
	"time"

	"keeptrack/internal/core"
	"keeptrack/internal/ledger"
	"keeptrack/internal/remote"
)

// DefaultMirrorTimeout bounds a direct remote insert.
const DefaultMirrorTimeout = 10 * time.Second

var (
	_ ledger.Mirror = (*DirectMirror)(nil)
	_ ledger.Mirror = (*QueueMirror)(nil)
)

// DirectMirror writes new records straight into the remote store.
type DirectMirror struct {
	writer  remote.Writer
	timeout time.Duration
}

func NewDirectMirror(writer remote.Writer, timeout time.Duration) *DirectMirror {
	if timeout <= 0 {
		timeout = DefaultMirrorTimeout
	}
	return &DirectMirror{writer: writer, timeout: timeout}
}

func (m *DirectMirror) Mirror(ctx context.Context, tx core.Transaction) error {
	if m.writer == nil {
		return remote.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.writer.Insert(ctx, tx); err != nil {
		return fmt.Errorf("insert remote: %w", err)
	}
	return nil
}

// Publisher hands a transaction to a message broker.
type Publisher interface {
	PublishTransaction(ctx context.Context, tx core.Transaction) error
}

// QueueMirror publishes new records for a worker to write remotely.
type QueueMirror struct {
	publisher Publisher
}

func NewQueueMirror(publisher Publisher) *QueueMirror {
	return &QueueMirror{publisher: publisher}
}

func (m *QueueMirror) Mirror(ctx context.Context, tx core.Transaction) error {
	if m.publisher == nil {
		return remote.ErrNotConfigured
	}
	if err := m.publisher.PublishTransaction(ctx, tx); err != nil {
		return fmt.Errorf("queue mirror: %w", err)
	}
	return nil
}
