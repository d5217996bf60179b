package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Producer delivers a batch of events downstream.
type Producer interface {
	Publish(ctx context.Context, events []Event) error
}

// BatchStore hands out unpublished events in claim-publish-mark batches.
type BatchStore interface {
	ProcessBatch(ctx context.Context, limit int, fn func([]Event) error) (int, error)
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker relays outbox events to a Producer. Delivery is at-least-once: a crash
// between publish and mark re-publishes the batch.
type Worker struct {
	store     BatchStore
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(store BatchStore, producer Producer, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:     store,
		producer:  producer,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Relay failures are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "outbox relay failed", "error", err.Error())
			}
		}
	}
}

// Drain publishes batches until a short batch signals the backlog is empty.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.store.ProcessBatch(ctx, w.batchSize, func(events []Event) error {
			return w.producer.Publish(ctx, events)
		})
		total += n
		if err != nil {
			return total, err
		}
		if n < w.batchSize {
			if total > 0 {
				w.logger.DebugContext(ctx, "outbox relayed", "events", total)
			}
			return total, nil
		}
	}
}
