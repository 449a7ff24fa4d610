package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/service/device"
	"github.com/secmon-lab/strategos/pkg/service/selector"
	"github.com/secmon-lab/strategos/pkg/usecase"
	"github.com/secmon-lab/strategos/pkg/utils/errutil"
	"github.com/secmon-lab/strategos/pkg/utils/safe"
)

// maxRequestBody caps JSON request bodies at 2 MiB, above the analyzer's
// own content limit so oversized content fails with an analysis error, not
// a truncated read.
const maxRequestBody = 2 << 20

type analyzeRequest struct {
	Content  string            `json:"content"`
	URL      string            `json:"url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := s.uc.AnalyzeContent(r.Context(), req.Content, req.URL, req.Metadata)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, profile)
}

type selectRequest struct {
	Profile     *model.ContentProfile    `json:"profile"`
	Device      *model.DeviceConstraints `json:"device,omitempty"`
	Preferences map[string]string        `json:"preferences,omitempty"`
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Device == nil {
		req.Device = deviceFromRequest(r)
	}

	result, err := s.uc.SelectStrategy(r.Context(), req.Profile, req.Device, req.Preferences)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, result)
}

type orchestrateRequest struct {
	WorkflowID  string                   `json:"workflowId,omitempty"`
	Content     string                   `json:"content"`
	Question    string                   `json:"question"`
	URL         string                   `json:"url,omitempty"`
	Metadata    map[string]string        `json:"metadata,omitempty"`
	Device      *model.DeviceConstraints `json:"device,omitempty"`
	Preferences map[string]string        `json:"preferences,omitempty"`
}

func (s *Server) orchestrateHandler(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Device == nil {
		req.Device = deviceFromRequest(r)
	}

	result, err := s.uc.RunWorkflow(r.Context(), &usecase.OrchestrationRequest{
		WorkflowID:  types.WorkflowID(req.WorkflowID),
		Content:     req.Content,
		Question:    req.Question,
		URL:         req.URL,
		Metadata:    req.Metadata,
		Device:      req.Device,
		Preferences: req.Preferences,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, result)
}

func (s *Server) workflowStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := types.WorkflowID(chi.URLParam(r, "workflowID"))
	record, err := s.uc.GetWorkflowStatus(r.Context(), id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, record.Summary())
}

func (s *Server) workflowMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := types.WorkflowID(chi.URLParam(r, "workflowID"))
	record, err := s.uc.GetWorkflowStatus(r.Context(), id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, map[string]any{
		"workflowId": record.ID,
		"messages":   record.Messages,
	})
}

func (s *Server) activeWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	active := s.uc.Coordinator.GetActiveWorkflows()
	summaries := make([]*model.WorkflowSummary, len(active))
	for i, wf := range active {
		summaries[i] = wf.Summary()
	}
	writeJSON(r, w, http.StatusOK, map[string]any{"workflows": summaries})
}

func (s *Server) workflowHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(r, w, goerr.Wrap(types.ErrValidation, "invalid limit parameter",
				goerr.V("limit", v)))
			return
		}
		limit = n
	}
	writeJSON(r, w, http.StatusOK, map[string]any{
		"workflows": s.uc.Coordinator.GetWorkflowHistory(limit),
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, s.uc.GetMetrics(r.Context()))
}

// deviceFromRequest infers device constraints from the User-Agent and
// client hint headers when the request body carries none
func deviceFromRequest(r *http.Request) *model.DeviceConstraints {
	hints := device.Hints{
		SaveData: r.Header.Get("Save-Data") == "on",
	}
	if v := r.Header.Get("X-Connectivity"); v != "" {
		hints.Connectivity = types.Connectivity(v)
	}
	if v := r.Header.Get("X-Memory-MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			hints.MemoryMB = n
		}
	}
	return device.Classify(r.UserAgent(), hints)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(r, w, goerr.Wrap(types.ErrValidation, "invalid JSON request body",
			goerr.V("cause", err.Error())))
		return false
	}
	return true
}

func writeJSON(r *http.Request, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

// writeError maps domain errors to HTTP status codes
func writeError(r *http.Request, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrWorkflowNotFound), errors.Is(err, types.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrNoStrategiesAvailable):
		status = http.StatusServiceUnavailable
	case selector.IsStoreError(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, types.ErrAnalysis):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrExecution):
		status = http.StatusBadGateway
	}
	errutil.HandleHTTP(r.Context(), w, err, status)
}
