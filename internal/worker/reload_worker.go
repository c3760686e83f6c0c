// Package worker keeps the served ledger snapshot in step with its source.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cfocopilot/internal/amqp"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/log"

	"golang.org/x/sync/errgroup"
)

// Reloader swaps in a snapshot built from src. copilot.Service implements it.
type Reloader interface {
	Reload(ctx context.Context, src ledger.Source, backend string) (*ledger.Snapshot, error)
}

// Consumer delivers reload requests. amqp.Client implements it.
type Consumer interface {
	ConsumeReload(ctx context.Context, handler amqp.ReloadHandler) error
}

// ReloadWorker rebuilds the ledger on AMQP reload messages and, when an
// interval is set, on a timer as a fallback for lost messages.
type ReloadWorker struct {
	reloader Reloader
	source   ledger.Source
	backend  string
	interval time.Duration
	logger   *log.Logger

	mu sync.Mutex
}

func NewReloadWorker(reloader Reloader, source ledger.Source, backend string, interval time.Duration, logger *log.Logger) *ReloadWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReloadWorker{
		reloader: reloader,
		source:   source,
		backend:  backend,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReload processes a single reload message from AMQP.
func (w *ReloadWorker) HandleReload(ctx context.Context, msg *amqp.ReloadMessage) error {
	w.logger.InfoContext(ctx, "Processing reload message",
		"id", msg.ID,
		"reason", msg.Reason,
		"requested_by", msg.RequestedBy)

	if _, err := w.ReloadNow(ctx); err != nil {
		return fmt.Errorf("reload %s: %w", msg.ID, err)
	}
	return nil
}

// ReloadNow reloads immediately. Concurrent calls run one at a time.
func (w *ReloadWorker) ReloadNow(ctx context.Context) (*ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	snap, err := w.reloader.Reload(ctx, w.source, w.backend)
	if err != nil {
		return nil, err
	}
	w.logger.InfoContext(ctx, "Reload completed",
		log.FieldSnapshotVersion, snap.Version,
		log.FieldBackend, w.backend,
		"duration", time.Since(start))
	return snap, nil
}

// Run blocks until ctx is cancelled. consumer may be nil when AMQP is not
// configured; with no consumer and no interval Run just waits.
func (w *ReloadWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeReload(gctx, w.HandleReload)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := w.ReloadNow(gctx); err != nil {
						w.logger.WarnContext(gctx, "Scheduled reload failed, keeping previous snapshot", "error", err)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	w.logger.InfoContext(ctx, "Reload worker started",
		"amqp", consumer != nil,
		"interval", w.interval)
	return g.Wait()
}
