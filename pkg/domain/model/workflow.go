package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// WorkflowRecord tracks one end-to-end orchestrated request: its state,
// its append-only message log, and timing. Mutated only by the coordinator;
// moved from the active set to the bounded history buffer on completion.
type WorkflowRecord struct {
	ID          types.WorkflowID
	State       types.WorkflowState
	Messages    []AgentMessage
	Confidence  float64
	Strategy    string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// NewWorkflowRecord creates a record in the created state. An empty id
// generates one.
func NewWorkflowRecord(id types.WorkflowID) *WorkflowRecord {
	if id == "" {
		id = types.NewWorkflowID()
	}
	return &WorkflowRecord{
		ID:        id,
		State:     types.WorkflowCreated,
		CreatedAt: time.Now().UTC(),
	}
}

// TransitionTo moves the workflow forward through the state machine.
// Backward moves and transitions out of terminal states are rejected.
func (w *WorkflowRecord) TransitionTo(next types.WorkflowState) error {
	if !w.State.CanTransitionTo(next) {
		return goerr.Wrap(types.ErrInvalidTransition, "workflow state transition rejected",
			goerr.V("workflowID", w.ID),
			goerr.V("from", w.State),
			goerr.V("to", next),
		)
	}
	w.State = next
	if next.IsTerminal() {
		w.CompletedAt = time.Now().UTC()
	}
	return nil
}

// Append adds a message to the workflow's log. Messages are never reordered
// or mutated after append.
func (w *WorkflowRecord) Append(msg AgentMessage) {
	w.Messages = append(w.Messages, msg)
}

// TotalLatency returns the elapsed time of the workflow. For an active
// workflow this is the time since creation.
func (w *WorkflowRecord) TotalLatency() time.Duration {
	if w.CompletedAt.IsZero() {
		return time.Since(w.CreatedAt)
	}
	return w.CompletedAt.Sub(w.CreatedAt)
}

// Summary condenses the record for persistence and reporting
func (w *WorkflowRecord) Summary() *WorkflowSummary {
	return &WorkflowSummary{
		WorkflowID:   w.ID,
		State:        w.State,
		Strategy:     w.Strategy,
		Confidence:   w.Confidence,
		MessageCount: len(w.Messages),
		LatencyMS:    int(w.TotalLatency().Milliseconds()),
		CreatedAt:    w.CreatedAt,
		CompletedAt:  w.CompletedAt,
	}
}

// WorkflowSummary is the condensed, persistable view of a finished workflow
type WorkflowSummary struct {
	WorkflowID   types.WorkflowID    `json:"workflowId"`
	State        types.WorkflowState `json:"state"`
	Strategy     string              `json:"strategy,omitempty"`
	Confidence   float64             `json:"confidence"`
	MessageCount int                 `json:"messageCount"`
	LatencyMS    int                 `json:"latencyMs"`
	CreatedAt    time.Time           `json:"createdAt"`
	CompletedAt  time.Time           `json:"completedAt,omitempty"`
}

// WorkflowResult is the composite result returned to the caller of a full
// orchestrated run
type WorkflowResult struct {
	Answer     string           `json:"answer"`
	Sources    []string         `json:"sources,omitempty"`
	Strategy   string           `json:"strategy"`
	Confidence float64          `json:"confidence"`
	Workflow   *WorkflowSummary `json:"workflowSummary"`
}
