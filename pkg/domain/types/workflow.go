package types

import (
	"fmt"

	"github.com/google/uuid"
)

// WorkflowID identifies one orchestrated request. Caller-suppliable for
// client-side correlation.
type WorkflowID string

// NewWorkflowID generates a new time-ordered WorkflowID
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the workflow ID
func (id WorkflowID) String() string {
	return string(id)
}

// MessageID identifies a single agent message within a workflow
type MessageID string

// NewMessageID generates a new time-ordered MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the message ID
func (id MessageID) String() string {
	return string(id)
}

// WorkflowState represents the lifecycle state of a workflow.
// Valid paths: created → analyzing → selecting → dispatched → completed,
// with failed reachable from any non-terminal state.
type WorkflowState string

const (
	WorkflowCreated    WorkflowState = "created"
	WorkflowAnalyzing  WorkflowState = "analyzing"
	WorkflowSelecting  WorkflowState = "selecting"
	WorkflowDispatched WorkflowState = "dispatched"
	WorkflowCompleted  WorkflowState = "completed"
	WorkflowFailed     WorkflowState = "failed"
)

// IsValid checks if the workflow state is valid
func (s WorkflowState) IsValid() bool {
	switch s {
	case WorkflowCreated, WorkflowAnalyzing, WorkflowSelecting,
		WorkflowDispatched, WorkflowCompleted, WorkflowFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the workflow state
func (s WorkflowState) String() string {
	return string(s)
}

// IsTerminal reports whether the state ends the workflow lifecycle
func (s WorkflowState) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
// States only move forward; failed is reachable from any non-terminal state.
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == WorkflowFailed {
		return true
	}
	switch s {
	case WorkflowCreated:
		return next == WorkflowAnalyzing
	case WorkflowAnalyzing:
		return next == WorkflowSelecting
	case WorkflowSelecting:
		return next == WorkflowDispatched
	case WorkflowDispatched:
		return next == WorkflowCompleted
	default:
		return false
	}
}

// AgentID identifies a participant in a workflow conversation
type AgentID string

const (
	AgentContentAnalyzer  AgentID = "content-analyzer"
	AgentStrategySelector AgentID = "strategy-selector"
	AgentCoordinator      AgentID = "coordinator"
	AgentDispatcher       AgentID = "dispatcher"
)

// IsValid checks if the agent ID is valid
func (a AgentID) IsValid() bool {
	switch a {
	case AgentContentAnalyzer, AgentStrategySelector, AgentCoordinator, AgentDispatcher:
		return true
	default:
		return false
	}
}

// String returns the string representation of the agent ID
func (a AgentID) String() string {
	return string(a)
}

// MessageType classifies an agent message
type MessageType string

const (
	MessageRequest  MessageType = "request"
	MessageResponse MessageType = "response"
	MessageError    MessageType = "error"
)

// IsValid checks if the message type is valid
func (t MessageType) IsValid() bool {
	switch t {
	case MessageRequest, MessageResponse, MessageError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the message type
func (t MessageType) String() string {
	return string(t)
}

// ParseWorkflowState parses a string into a WorkflowState
func ParseWorkflowState(s string) (WorkflowState, error) {
	st := WorkflowState(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid workflow state: %s", s)
	}
	return st, nil
}
