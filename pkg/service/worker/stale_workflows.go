package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

// DefaultWorkflowMaxAge is how long an active workflow may sit before
// being considered abandoned
const DefaultWorkflowMaxAge = 10 * time.Minute

// WorkflowExpirer retires active workflows older than maxAge
type WorkflowExpirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) int
}

// StaleWorkflowWorker periodically fails workflows that never reached a
// terminal state, keeping the coordinator's active set from leaking.
type StaleWorkflowWorker struct {
	expirer  WorkflowExpirer
	maxAge   time.Duration
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewStaleWorkflowWorker creates a worker that expires abandoned workflows.
// The sweep interval is half the max age.
func NewStaleWorkflowWorker(expirer WorkflowExpirer, maxAge time.Duration) *StaleWorkflowWorker {
	if maxAge <= 0 {
		maxAge = DefaultWorkflowMaxAge
	}
	return &StaleWorkflowWorker{
		expirer:  expirer,
		maxAge:   maxAge,
		interval: maxAge / 2,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background expiry loop
func (w *StaleWorkflowWorker) Start(ctx context.Context) error {
	logging.Default().Info("stale workflow worker starting",
		"maxAge", w.maxAge.String(), "interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *StaleWorkflowWorker) Stop() {
	logging.Default().Info("stale workflow worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("stale workflow worker stopped")
}

func (w *StaleWorkflowWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := w.expirer.ExpireStale(ctx, w.maxAge); n > 0 {
				logging.Default().Warn("expired abandoned workflows", "count", n)
			}

		case <-w.stopCh:
			logging.Default().Info("stale workflow worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("stale workflow worker context cancelled")
			return
		}
	}
}
