package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

// OrchestrationRequest is the input of a full orchestrated run
type OrchestrationRequest struct {
	WorkflowID  types.WorkflowID
	Content     string
	Question    string
	URL         string
	Metadata    map[string]string
	Device      *model.DeviceConstraints
	Preferences map[string]string
}

func (r *OrchestrationRequest) validate() error {
	if r.Content == "" {
		return goerr.Wrap(types.ErrValidation, "content is required")
	}
	if r.Question == "" {
		return goerr.Wrap(types.ErrValidation, "question is required")
	}
	if r.Device != nil {
		if err := r.Device.Validate(); err != nil {
			return goerr.Wrap(types.ErrValidation, "invalid device constraints",
				goerr.V("cause", err.Error()))
		}
	}
	return nil
}

// AnalyzeContent profiles content without starting a workflow
func (uc *UseCases) AnalyzeContent(ctx context.Context, content, url string, metadata map[string]string) (*model.ContentProfile, error) {
	if content == "" {
		return nil, goerr.Wrap(types.ErrValidation, "content is required")
	}
	return uc.analyzer.Analyze(ctx, content, url, metadata)
}

// SelectStrategy ranks strategies for a profile without starting a workflow
func (uc *UseCases) SelectStrategy(ctx context.Context, profile *model.ContentProfile, device *model.DeviceConstraints, preferences map[string]string) (*model.StrategySelectionResult, error) {
	if profile == nil {
		return nil, goerr.Wrap(types.ErrValidation, "content profile is required")
	}
	if device == nil {
		device = model.DefaultDeviceConstraints()
	}
	return uc.selector.Select(ctx, profile, device, preferences)
}

// RunWorkflow drives one request through the full pipeline: analyze, select,
// dispatch. Analysis failures degrade to a default profile; execution
// failures produce a degraded result and a failed workflow; only validation
// and an empty catalog abort the run.
func (uc *UseCases) RunWorkflow(ctx context.Context, req *OrchestrationRequest) (*model.WorkflowResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	device := req.Device
	if device == nil {
		device = model.DefaultDeviceConstraints()
	}

	w, err := uc.Coordinator.StartWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}
	id := w.ID
	logger := logging.From(ctx).With("workflowID", id.String())

	// analysis stage
	if err := uc.Coordinator.Transition(ctx, id, types.WorkflowAnalyzing); err != nil {
		return nil, err
	}
	uc.record(id, model.NewAgentMessage(
		types.AgentCoordinator, types.AgentContentAnalyzer, types.MessageRequest,
		model.AnalysisRequestBody{ContentLength: len(req.Content), URL: req.URL},
	))

	profile, err := uc.analyzer.Analyze(ctx, req.Content, req.URL, req.Metadata)
	if err != nil {
		// degrade to the default profile and keep going
		logger.Warn("content analysis failed, using default profile", "error", err.Error())
		uc.record(id, model.NewAgentMessage(
			types.AgentContentAnalyzer, types.AgentCoordinator, types.MessageError,
			model.ErrorBody{Stage: "analysis", Message: err.Error()},
		))
		profile = model.DefaultContentProfile()
	}
	uc.record(id, model.NewAgentMessage(
		types.AgentContentAnalyzer, types.AgentCoordinator, types.MessageResponse,
		model.AnalysisResponseBody{Profile: *profile},
	))

	// selection stage
	if err := uc.Coordinator.Transition(ctx, id, types.WorkflowSelecting); err != nil {
		return nil, err
	}
	uc.record(id, model.NewAgentMessage(
		types.AgentCoordinator, types.AgentStrategySelector, types.MessageRequest,
		model.SelectionRequestBody{Profile: *profile, Device: *device},
	))

	selection, err := uc.selector.Select(ctx, profile, device, req.Preferences)
	if err != nil {
		uc.record(id, model.NewAgentMessage(
			types.AgentStrategySelector, types.AgentCoordinator, types.MessageError,
			model.ErrorBody{Stage: "selection", Message: err.Error()},
		))
		uc.fail(ctx, id)
		if errors.Is(err, types.ErrNoStrategiesAvailable) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "strategy selection failed", goerr.V("workflowID", id))
	}
	uc.record(id, model.NewAgentMessage(
		types.AgentStrategySelector, types.AgentCoordinator, types.MessageResponse,
		model.SelectionResponseBody{Result: *selection},
	))
	uc.setStrategy(id, selection.Selected.Name, selection.Confidence)

	// execution stage
	if err := uc.Coordinator.Transition(ctx, id, types.WorkflowDispatched); err != nil {
		return nil, err
	}
	uc.record(id, model.NewAgentMessage(
		types.AgentCoordinator, types.AgentDispatcher, types.MessageRequest,
		model.ExecutionRequestBody{Strategy: selection.Selected.Name, Question: req.Question},
	))

	result, err := uc.dispatcher.Execute(ctx, &selection.Selected, req.Content, req.Question, profile, device, selection.Predicted)
	if err != nil {
		logger.Error("strategy execution failed, returning degraded result",
			"strategy", selection.Selected.Name, "error", err.Error())
		uc.record(id, model.NewAgentMessage(
			types.AgentDispatcher, types.AgentCoordinator, types.MessageError,
			model.ErrorBody{Stage: "execution", Message: err.Error()},
		))
		uc.fail(ctx, id)
		return uc.degradedResult(id), nil
	}

	uc.record(id, model.NewAgentMessage(
		types.AgentDispatcher, types.AgentCoordinator, types.MessageResponse,
		model.ExecutionOutcomeBody{Result: *result},
	))
	uc.setStrategy(id, result.Strategy, result.Confidence)
	if err := uc.Coordinator.Transition(ctx, id, types.WorkflowCompleted); err != nil {
		return nil, err
	}

	record, err := uc.Coordinator.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	return &model.WorkflowResult{
		Answer:     result.Answer,
		Sources:    result.Sources,
		Strategy:   result.Strategy,
		Confidence: result.Confidence,
		Workflow:   record.Summary(),
	}, nil
}

// GetWorkflowStatus returns a snapshot of a workflow by ID
func (uc *UseCases) GetWorkflowStatus(ctx context.Context, id types.WorkflowID) (*model.WorkflowRecord, error) {
	if id == "" {
		return nil, goerr.Wrap(types.ErrValidation, "workflow ID is required")
	}
	return uc.Coordinator.GetWorkflow(id)
}

// Metrics aggregates workflow and memory store health
type Metrics struct {
	Workflows WorkflowStats      `json:"workflows"`
	Config    CoordinatorConfig  `json:"config"`
	Memory    *model.MemoryStats `json:"memory"`
}

// GetMetrics reports workflow counts and memory store statistics. A store
// failure leaves Memory nil rather than failing the report.
func (uc *UseCases) GetMetrics(ctx context.Context) *Metrics {
	m := &Metrics{
		Workflows: uc.Coordinator.Stats(),
		Config:    uc.Coordinator.Config(),
	}

	stats, err := uc.store.Stats(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to collect memory store stats", "error", err.Error())
		return m
	}
	m.Memory = stats
	return m
}

// record appends a message, logging rather than failing on coordinator
// errors: a retired workflow must not break the caller's result path.
func (uc *UseCases) record(id types.WorkflowID, msg model.AgentMessage) {
	if err := uc.Coordinator.RecordMessage(id, msg); err != nil {
		logging.Default().Warn("failed to record workflow message",
			"workflowID", id.String(), "error", err.Error())
	}
}

func (uc *UseCases) fail(ctx context.Context, id types.WorkflowID) {
	if err := uc.Coordinator.Transition(ctx, id, types.WorkflowFailed); err != nil {
		logging.From(ctx).Warn("failed to mark workflow failed",
			"workflowID", id.String(), "error", err.Error())
	}
}

func (uc *UseCases) setStrategy(id types.WorkflowID, strategy string, confidence float64) {
	uc.Coordinator.mu.Lock()
	defer uc.Coordinator.mu.Unlock()
	if w, ok := uc.Coordinator.active[id]; ok {
		w.Strategy = strategy
		w.Confidence = confidence
	}
}

// degradedResult is returned when execution fails after a successful
// selection. The result is labeled with strategy "error" so callers never
// mistake it for a real answer; the workflow summary keeps the strategy
// that was attempted.
func (uc *UseCases) degradedResult(id types.WorkflowID) *model.WorkflowResult {
	res := &model.WorkflowResult{
		Answer:     "The selected strategy failed to produce an answer. Please retry.",
		Strategy:   "error",
		Confidence: 0,
	}
	if record, err := uc.Coordinator.GetWorkflow(id); err == nil {
		res.Workflow = record.Summary()
	}
	return res
}
