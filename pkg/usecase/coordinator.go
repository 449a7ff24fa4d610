package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/utils/async"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

const (
	// DefaultActiveLimit is a soft cap on concurrently tracked workflows.
	// When exceeded, the oldest active workflow is forced to failed and
	// moved to history.
	DefaultActiveLimit = 100

	// DefaultHistoryLimit bounds the in-memory ring of finished workflows
	DefaultHistoryLimit = 1000

	// DefaultSummaryTTL is how long persisted workflow summaries live in
	// the memory store
	DefaultSummaryTTL = 7 * 24 * time.Hour
)

// Coordinator owns the workflow lifecycle: it creates records, appends
// messages, drives state transitions, and retires finished workflows into a
// bounded history buffer. All mutation of a WorkflowRecord goes through it.
type Coordinator struct {
	mu      sync.RWMutex
	active  map[types.WorkflowID]*model.WorkflowRecord
	history []*model.WorkflowRecord

	store        interfaces.MemoryStore
	activeLimit  int
	historyLimit int
	summaryTTL   time.Duration
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithActiveLimit overrides the active workflow soft cap
func WithActiveLimit(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.activeLimit = n
		}
	}
}

// WithHistoryLimit overrides the retained history size
func WithHistoryLimit(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithSummaryTTL overrides the TTL of persisted workflow summaries
func WithSummaryTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.summaryTTL = ttl
		}
	}
}

// NewCoordinator creates a workflow coordinator. The store is used only to
// persist summaries of finished workflows; it may be nil in tests.
func NewCoordinator(store interfaces.MemoryStore, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		active:       make(map[types.WorkflowID]*model.WorkflowRecord),
		store:        store,
		activeLimit:  DefaultActiveLimit,
		historyLimit: DefaultHistoryLimit,
		summaryTTL:   DefaultSummaryTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartWorkflow registers a new workflow in the created state. A caller
// supplied id must be unused by both active and retired workflows; an empty
// id generates one.
func (c *Coordinator) StartWorkflow(ctx context.Context, id types.WorkflowID) (*model.WorkflowRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		if _, ok := c.active[id]; ok {
			return nil, goerr.Wrap(types.ErrValidation, "workflow ID already active",
				goerr.V("workflowID", id))
		}
		for _, w := range c.history {
			if w.ID == id {
				return nil, goerr.Wrap(types.ErrValidation, "workflow ID already used",
					goerr.V("workflowID", id))
			}
		}
	}

	if len(c.active) >= c.activeLimit {
		c.evictOldestLocked(ctx)
	}

	w := model.NewWorkflowRecord(id)
	c.active[w.ID] = w
	return w, nil
}

// RecordMessage appends a message to an active workflow's log
func (c *Coordinator) RecordMessage(id types.WorkflowID, msg model.AgentMessage) error {
	if err := msg.Validate(); err != nil {
		return goerr.Wrap(err, "rejecting invalid agent message", goerr.V("workflowID", id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.active[id]
	if !ok {
		return goerr.Wrap(types.ErrWorkflowNotFound, "cannot record message",
			goerr.V("workflowID", id))
	}
	w.Append(msg)
	return nil
}

// Transition moves an active workflow to the given state. Terminal states
// retire the workflow into the history buffer and persist its summary.
func (c *Coordinator) Transition(ctx context.Context, id types.WorkflowID, next types.WorkflowState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.active[id]
	if !ok {
		return goerr.Wrap(types.ErrWorkflowNotFound, "cannot transition",
			goerr.V("workflowID", id))
	}
	if err := w.TransitionTo(next); err != nil {
		return err
	}
	if next.IsTerminal() {
		c.retireLocked(ctx, w)
	}
	return nil
}

// GetWorkflow returns a snapshot of an active or historical workflow
func (c *Coordinator) GetWorkflow(id types.WorkflowID) (*model.WorkflowRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if w, ok := c.active[id]; ok {
		return copyWorkflow(w), nil
	}
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].ID == id {
			return copyWorkflow(c.history[i]), nil
		}
	}
	return nil, goerr.Wrap(types.ErrWorkflowNotFound, "workflow not found",
		goerr.V("workflowID", id))
}

// GetWorkflowMessages returns the message log of a workflow in append order
func (c *Coordinator) GetWorkflowMessages(id types.WorkflowID) ([]model.AgentMessage, error) {
	w, err := c.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	return w.Messages, nil
}

// GetActiveWorkflows returns snapshots of all in-flight workflows, oldest
// first
func (c *Coordinator) GetActiveWorkflows() []*model.WorkflowRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*model.WorkflowRecord, 0, len(c.active))
	for _, w := range c.active {
		out = append(out, copyWorkflow(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GetWorkflowHistory returns summaries of finished workflows, most recent
// first, capped at limit (0 means all retained)
func (c *Coordinator) GetWorkflowHistory(limit int) []*model.WorkflowSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.WorkflowSummary, 0, n)
	for i := len(c.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.history[i].Summary())
	}
	return out
}

// ExpireStale forces active workflows older than maxAge to failed and
// retires them. Returns the number expired.
func (c *Coordinator) ExpireStale(ctx context.Context, maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	expired := 0
	for _, w := range c.active {
		if w.CreatedAt.Before(cutoff) {
			c.failLocked(ctx, w, "workflow abandoned")
			expired++
		}
	}
	return expired
}

// Stats returns aggregate workflow counts for metrics reporting
func (c *Coordinator) Stats() WorkflowStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := WorkflowStats{Active: len(c.active)}
	var totalLatency time.Duration
	for _, w := range c.history {
		switch w.State {
		case types.WorkflowCompleted:
			stats.Completed++
		case types.WorkflowFailed:
			stats.Failed++
		}
		totalLatency += w.TotalLatency()
	}
	if n := stats.Completed + stats.Failed; n > 0 {
		stats.AvgLatencyMS = int(totalLatency.Milliseconds()) / n
	}
	return stats
}

// WorkflowStats aggregates workflow counts over the retained history
type WorkflowStats struct {
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	AvgLatencyMS int `json:"avgLatencyMs"`
}

// CoordinatorConfig is the effective limit configuration, reported by the
// metrics endpoint
type CoordinatorConfig struct {
	ActiveLimit  int    `json:"activeLimit"`
	HistoryLimit int    `json:"historyLimit"`
	SummaryTTL   string `json:"summaryTtl"`
}

// Config returns the coordinator's effective limits
func (c *Coordinator) Config() CoordinatorConfig {
	return CoordinatorConfig{
		ActiveLimit:  c.activeLimit,
		HistoryLimit: c.historyLimit,
		SummaryTTL:   c.summaryTTL.String(),
	}
}

// evictOldestLocked forces the oldest active workflow to failed.
// Caller must hold the write lock.
func (c *Coordinator) evictOldestLocked(ctx context.Context) {
	var oldest *model.WorkflowRecord
	for _, w := range c.active {
		if oldest == nil || w.CreatedAt.Before(oldest.CreatedAt) {
			oldest = w
		}
	}
	if oldest == nil {
		return
	}
	logging.From(ctx).Warn("active workflow limit reached, evicting oldest",
		"workflowID", oldest.ID.String(), "state", oldest.State.String())
	c.failLocked(ctx, oldest, "evicted by active workflow limit")
}

// failLocked marks a workflow failed and retires it.
// Caller must hold the write lock.
func (c *Coordinator) failLocked(ctx context.Context, w *model.WorkflowRecord, reason string) {
	w.Append(model.NewAgentMessage(
		types.AgentCoordinator, types.AgentCoordinator, types.MessageError,
		model.ErrorBody{Stage: "coordinator", Message: reason},
	))
	if err := w.TransitionTo(types.WorkflowFailed); err != nil {
		// already terminal; retire as-is
		logging.From(ctx).Warn("failed to mark workflow failed",
			"workflowID", w.ID.String(), "error", err.Error())
	}
	c.retireLocked(ctx, w)
}

// retireLocked moves a terminal workflow from the active set into history
// and persists its summary in the background.
// Caller must hold the write lock.
func (c *Coordinator) retireLocked(ctx context.Context, w *model.WorkflowRecord) {
	delete(c.active, w.ID)
	c.history = append(c.history, w)
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}

	if c.store == nil {
		return
	}
	summary := w.Summary()
	async.Dispatch(ctx, func(ctx context.Context) error {
		entry, err := model.NewWorkflowSummaryEntry(summary, c.summaryTTL)
		if err != nil {
			return goerr.Wrap(err, "failed to build workflow summary entry")
		}
		if err := c.store.Put(ctx, entry); err != nil {
			return goerr.Wrap(err, "failed to persist workflow summary",
				goerr.V("workflowID", summary.WorkflowID))
		}
		return nil
	})
}

func copyWorkflow(w *model.WorkflowRecord) *model.WorkflowRecord {
	cp := *w
	cp.Messages = make([]model.AgentMessage, len(w.Messages))
	copy(cp.Messages, w.Messages)
	return &cp
}
