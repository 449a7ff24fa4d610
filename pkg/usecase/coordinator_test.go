package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/usecase"
)

func testMessage() model.AgentMessage {
	return model.NewAgentMessage(
		types.AgentCoordinator, types.AgentContentAnalyzer, types.MessageRequest,
		model.AnalysisRequestBody{ContentLength: 10},
	)
}

func TestCoordinator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	w, err := c.StartWorkflow(ctx, "wf-1")
	gt.NoError(t, err).Required()
	gt.Value(t, w.ID).Equal(types.WorkflowID("wf-1"))
	gt.Value(t, w.State).Equal(types.WorkflowCreated)

	gt.NoError(t, c.RecordMessage("wf-1", testMessage()))

	gt.NoError(t, c.Transition(ctx, "wf-1", types.WorkflowAnalyzing))
	gt.NoError(t, c.Transition(ctx, "wf-1", types.WorkflowSelecting))
	gt.NoError(t, c.Transition(ctx, "wf-1", types.WorkflowDispatched))
	gt.NoError(t, c.Transition(ctx, "wf-1", types.WorkflowCompleted))

	// retired into history, still findable
	got, err := c.GetWorkflow("wf-1")
	gt.NoError(t, err).Required()
	gt.Value(t, got.State).Equal(types.WorkflowCompleted)
	gt.Array(t, got.Messages).Length(1)
	gt.Bool(t, got.CompletedAt.IsZero()).False()

	// no longer active
	gt.Array(t, c.GetActiveWorkflows()).Length(0)
	gt.Error(t, c.RecordMessage("wf-1", testMessage())).Is(types.ErrWorkflowNotFound)

	history := c.GetWorkflowHistory(0)
	gt.Array(t, history).Length(1)
	gt.Value(t, history[0].WorkflowID).Equal(types.WorkflowID("wf-1"))
}

func TestCoordinator_DuplicateID(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	_, err := c.StartWorkflow(ctx, "wf-dup")
	gt.NoError(t, err).Required()

	_, err = c.StartWorkflow(ctx, "wf-dup")
	gt.Error(t, err).Is(types.ErrValidation)

	// an ID stays taken after the workflow retires into history
	gt.NoError(t, c.Transition(ctx, "wf-dup", types.WorkflowAnalyzing))
	gt.NoError(t, c.Transition(ctx, "wf-dup", types.WorkflowFailed))
	gt.Array(t, c.GetActiveWorkflows()).Length(0)

	_, err = c.StartWorkflow(ctx, "wf-dup")
	gt.Error(t, err).Is(types.ErrValidation)
}

func TestCoordinator_GeneratesID(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	w1, err := c.StartWorkflow(ctx, "")
	gt.NoError(t, err).Required()
	w2, err := c.StartWorkflow(ctx, "")
	gt.NoError(t, err).Required()

	gt.String(t, w1.ID.String()).NotEqual("")
	gt.Bool(t, w1.ID == w2.ID).False()
}

func TestCoordinator_UnknownWorkflow(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	_, err := c.GetWorkflow("missing")
	gt.Error(t, err).Is(types.ErrWorkflowNotFound)

	err = c.Transition(ctx, "missing", types.WorkflowAnalyzing)
	gt.Error(t, err).Is(types.ErrWorkflowNotFound)
}

func TestCoordinator_ActiveLimitEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil, usecase.WithActiveLimit(2))

	w1, err := c.StartWorkflow(ctx, "wf-a")
	gt.NoError(t, err).Required()
	w1.CreatedAt = w1.CreatedAt.Add(-time.Minute)

	_, err = c.StartWorkflow(ctx, "wf-b")
	gt.NoError(t, err).Required()

	_, err = c.StartWorkflow(ctx, "wf-c")
	gt.NoError(t, err).Required()

	active := c.GetActiveWorkflows()
	gt.Array(t, active).Length(2)
	for _, w := range active {
		gt.Bool(t, w.ID == "wf-a").False()
	}

	evicted, err := c.GetWorkflow("wf-a")
	gt.NoError(t, err).Required()
	gt.Value(t, evicted.State).Equal(types.WorkflowFailed)
}

func TestCoordinator_ExpireStale(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	stale, err := c.StartWorkflow(ctx, "wf-stale")
	gt.NoError(t, err).Required()
	stale.CreatedAt = time.Now().Add(-time.Hour)

	_, err = c.StartWorkflow(ctx, "wf-fresh")
	gt.NoError(t, err).Required()

	gt.Number(t, c.ExpireStale(ctx, 10*time.Minute)).Equal(1)

	active := c.GetActiveWorkflows()
	gt.Array(t, active).Length(1)
	gt.Value(t, active[0].ID).Equal(types.WorkflowID("wf-fresh"))

	expired, err := c.GetWorkflow("wf-stale")
	gt.NoError(t, err).Required()
	gt.Value(t, expired.State).Equal(types.WorkflowFailed)
}

func TestCoordinator_HistoryRing(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil, usecase.WithHistoryLimit(3))

	ids := []types.WorkflowID{"wf-1", "wf-2", "wf-3", "wf-4"}
	for _, id := range ids {
		_, err := c.StartWorkflow(ctx, id)
		gt.NoError(t, err).Required()
		gt.NoError(t, c.Transition(ctx, id, types.WorkflowFailed))
	}

	history := c.GetWorkflowHistory(0)
	gt.Array(t, history).Length(3)
	// newest first, oldest dropped
	gt.Value(t, history[0].WorkflowID).Equal(types.WorkflowID("wf-4"))
	gt.Value(t, history[2].WorkflowID).Equal(types.WorkflowID("wf-2"))

	_, err := c.GetWorkflow("wf-1")
	gt.Error(t, err).Is(types.ErrWorkflowNotFound)
}

func TestCoordinator_Stats(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	_, err := c.StartWorkflow(ctx, "wf-active")
	gt.NoError(t, err).Required()

	_, err = c.StartWorkflow(ctx, "wf-done")
	gt.NoError(t, err).Required()
	gt.NoError(t, c.Transition(ctx, "wf-done", types.WorkflowAnalyzing))
	gt.NoError(t, c.Transition(ctx, "wf-done", types.WorkflowSelecting))
	gt.NoError(t, c.Transition(ctx, "wf-done", types.WorkflowDispatched))
	gt.NoError(t, c.Transition(ctx, "wf-done", types.WorkflowCompleted))

	_, err = c.StartWorkflow(ctx, "wf-broken")
	gt.NoError(t, err).Required()
	gt.NoError(t, c.Transition(ctx, "wf-broken", types.WorkflowFailed))

	stats := c.Stats()
	gt.Number(t, stats.Active).Equal(1)
	gt.Number(t, stats.Completed).Equal(1)
	gt.Number(t, stats.Failed).Equal(1)
}

func TestCoordinator_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoordinator(nil)

	_, err := c.StartWorkflow(ctx, "wf-copy")
	gt.NoError(t, err).Required()
	gt.NoError(t, c.RecordMessage("wf-copy", testMessage()))

	snap, err := c.GetWorkflow("wf-copy")
	gt.NoError(t, err).Required()
	snap.Strategy = "mutated"
	snap.Messages[0].Type = types.MessageError

	again, err := c.GetWorkflow("wf-copy")
	gt.NoError(t, err).Required()
	gt.Value(t, again.Strategy).Equal("")
	gt.Value(t, again.Messages[0].Type).Equal(types.MessageRequest)
}
