package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// MessageKind tags the body type of an agent message
type MessageKind string

const (
	KindAnalysisRequest   MessageKind = "analysis_request"
	KindAnalysisResponse  MessageKind = "analysis_response"
	KindSelectionRequest  MessageKind = "selection_request"
	KindSelectionResponse MessageKind = "selection_response"
	KindExecutionRequest  MessageKind = "execution_request"
	KindExecutionOutcome  MessageKind = "execution_outcome"
	KindError             MessageKind = "error"
)

// MessageBody is the strongly-typed payload of an agent message.
// One implementation exists per message kind; the open Metadata map on the
// message itself is for diagnostics only.
type MessageBody interface {
	Kind() MessageKind
}

// AnalysisRequestBody asks the content analyzer to profile content
type AnalysisRequestBody struct {
	ContentLength int    `json:"contentLength"`
	URL           string `json:"url,omitempty"`
}

func (AnalysisRequestBody) Kind() MessageKind { return KindAnalysisRequest }

// AnalysisResponseBody carries the produced content profile
type AnalysisResponseBody struct {
	Profile ContentProfile `json:"profile"`
}

func (AnalysisResponseBody) Kind() MessageKind { return KindAnalysisResponse }

// SelectionRequestBody asks the selector to rank strategies
type SelectionRequestBody struct {
	Profile ContentProfile    `json:"profile"`
	Device  DeviceConstraints `json:"device"`
}

func (SelectionRequestBody) Kind() MessageKind { return KindSelectionRequest }

// SelectionResponseBody carries the selection result
type SelectionResponseBody struct {
	Result StrategySelectionResult `json:"result"`
}

func (SelectionResponseBody) Kind() MessageKind { return KindSelectionResponse }

// ExecutionRequestBody asks the dispatcher to run the chosen strategy
type ExecutionRequestBody struct {
	Strategy string `json:"strategy"`
	Question string `json:"question"`
}

func (ExecutionRequestBody) Kind() MessageKind { return KindExecutionRequest }

// ExecutionOutcomeBody carries the observed execution result
type ExecutionOutcomeBody struct {
	Result ExecutionResult `json:"result"`
}

func (ExecutionOutcomeBody) Kind() MessageKind { return KindExecutionOutcome }

// ErrorBody records a step failure inside the owning workflow
type ErrorBody struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (ErrorBody) Kind() MessageKind { return KindError }

// AgentMessage is one entry in a workflow's append-only message log.
// Owned exclusively by the coordinator for its workflow; never mutated
// after append.
type AgentMessage struct {
	ID        types.MessageID
	Timestamp time.Time
	From      types.AgentID
	To        types.AgentID
	Type      types.MessageType
	Body      MessageBody
	Metadata  map[string]any
}

// NewAgentMessage builds a message with a fresh ID and timestamp
func NewAgentMessage(from, to types.AgentID, msgType types.MessageType, body MessageBody) AgentMessage {
	return AgentMessage{
		ID:        types.NewMessageID(),
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Type:      msgType,
		Body:      body,
	}
}

// Validate checks if the agent message is valid
func (m *AgentMessage) Validate() error {
	if m.ID == "" {
		return goerr.New("message ID is required")
	}
	if !m.From.IsValid() {
		return goerr.New("invalid sender agent", goerr.V("from", m.From))
	}
	if !m.To.IsValid() {
		return goerr.New("invalid receiver agent", goerr.V("to", m.To))
	}
	if !m.Type.IsValid() {
		return goerr.New("invalid message type", goerr.V("type", m.Type))
	}
	if m.Body == nil {
		return goerr.New("message body is required", goerr.V("id", m.ID))
	}
	return nil
}

// MarshalJSON emits the message with its body tagged by kind
func (m AgentMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        types.MessageID   `json:"id"`
		Timestamp time.Time         `json:"timestamp"`
		From      types.AgentID     `json:"from"`
		To        types.AgentID     `json:"to"`
		Type      types.MessageType `json:"type"`
		Kind      MessageKind       `json:"kind"`
		Data      MessageBody       `json:"data"`
		Metadata  map[string]any    `json:"metadata,omitempty"`
	}{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		From:      m.From,
		To:        m.To,
		Type:      m.Type,
		Kind:      m.Body.Kind(),
		Data:      m.Body,
		Metadata:  m.Metadata,
	})
}
