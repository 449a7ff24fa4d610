package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

func TestWorkflowRecord_ForwardTransitions(t *testing.T) {
	w := model.NewWorkflowRecord("")
	gt.Value(t, w.State).Equal(types.WorkflowCreated)
	gt.String(t, w.ID.String()).NotEqual("")

	gt.NoError(t, w.TransitionTo(types.WorkflowAnalyzing))
	gt.NoError(t, w.TransitionTo(types.WorkflowSelecting))
	gt.NoError(t, w.TransitionTo(types.WorkflowDispatched))
	gt.NoError(t, w.TransitionTo(types.WorkflowCompleted))
	gt.Bool(t, w.CompletedAt.IsZero()).False()
}

func TestWorkflowRecord_RejectsBackwardAndSkips(t *testing.T) {
	testCases := []struct {
		name string
		from types.WorkflowState
		to   types.WorkflowState
	}{
		{"skip analysis", types.WorkflowCreated, types.WorkflowSelecting},
		{"skip selection", types.WorkflowAnalyzing, types.WorkflowDispatched},
		{"backward", types.WorkflowSelecting, types.WorkflowAnalyzing},
		{"created straight to completed", types.WorkflowCreated, types.WorkflowCompleted},
		{"out of completed", types.WorkflowCompleted, types.WorkflowAnalyzing},
		{"out of failed", types.WorkflowFailed, types.WorkflowCreated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := model.NewWorkflowRecord("")
			w.State = tc.from
			gt.Error(t, w.TransitionTo(tc.to)).Is(types.ErrInvalidTransition)
			gt.Value(t, w.State).Equal(tc.from)
		})
	}
}

func TestWorkflowRecord_FailFromAnyNonTerminal(t *testing.T) {
	for _, from := range []types.WorkflowState{
		types.WorkflowCreated,
		types.WorkflowAnalyzing,
		types.WorkflowSelecting,
		types.WorkflowDispatched,
	} {
		w := model.NewWorkflowRecord("")
		w.State = from
		gt.NoError(t, w.TransitionTo(types.WorkflowFailed))
		gt.Bool(t, w.CompletedAt.IsZero()).False()
	}
}

func TestWorkflowRecord_Summary(t *testing.T) {
	w := model.NewWorkflowRecord("wf-1")
	w.Strategy = "quick"
	w.Confidence = 0.7
	w.Append(model.NewAgentMessage(
		types.AgentCoordinator, types.AgentContentAnalyzer, types.MessageRequest,
		model.AnalysisRequestBody{ContentLength: 10},
	))

	s := w.Summary()
	gt.Value(t, s.WorkflowID).Equal(types.WorkflowID("wf-1"))
	gt.Value(t, s.Strategy).Equal("quick")
	gt.Number(t, s.MessageCount).Equal(1)
}

func TestAgentMessage_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg := model.NewAgentMessage(
			types.AgentCoordinator, types.AgentDispatcher, types.MessageRequest,
			model.ExecutionRequestBody{Strategy: "quick", Question: "why"},
		)
		gt.NoError(t, msg.Validate())
		gt.String(t, string(msg.ID)).NotEqual("")
	})

	t.Run("missing body", func(t *testing.T) {
		msg := model.NewAgentMessage(
			types.AgentCoordinator, types.AgentDispatcher, types.MessageRequest, nil,
		)
		gt.Error(t, msg.Validate())
	})

	t.Run("invalid agent", func(t *testing.T) {
		msg := model.NewAgentMessage(
			types.AgentID("nobody"), types.AgentDispatcher, types.MessageRequest,
			model.ExecutionRequestBody{Strategy: "quick"},
		)
		gt.Error(t, msg.Validate())
	})
}
