package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

// DefaultCleanupInterval is how often expired memory entries are swept
const DefaultCleanupInterval = 5 * time.Minute

// CleanupWorker periodically removes expired entries from the memory store.
// Expired entries are already invisible to reads; the sweep reclaims their
// capacity.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type CleanupWorker struct {
	store    interfaces.MemoryStore
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCleanupWorker creates a worker that sweeps expired memory entries
func NewCleanupWorker(store interfaces.MemoryStore, interval time.Duration) *CleanupWorker {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupWorker{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop
// - Initial sweep and periodic sweeps both run in a background goroutine
// - Does not block server startup
func (w *CleanupWorker) Start(ctx context.Context) error {
	logging.Default().Info("memory cleanup worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *CleanupWorker) Stop() {
	logging.Default().Info("memory cleanup worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("memory cleanup worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.sweep(ctx); err != nil {
		logging.Default().Error("initial memory cleanup failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("memory cleanup failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("memory cleanup worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("memory cleanup worker context cancelled")
			return
		}
	}
}

// sweep performs a single cleanup cycle
func (w *CleanupWorker) sweep(ctx context.Context) error {
	startTime := time.Now()

	removed, err := w.store.CleanupExpired(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to clean up expired memory entries")
	}

	if removed > 0 {
		logging.Default().Info("memory cleanup completed",
			"removed", removed,
			"duration", time.Since(startTime).String())
	}

	return nil
}
