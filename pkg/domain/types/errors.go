package types

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared across the orchestration core
var (
	// ErrValidation is returned for missing or empty request input,
	// rejected before any workflow starts
	ErrValidation = goerr.New("invalid input")

	// ErrAnalysis is returned when the analyzer cannot produce a profile
	ErrAnalysis = goerr.New("content analysis failed")

	// ErrNoStrategiesAvailable is returned when the catalog is empty.
	// Fatal for the request.
	ErrNoStrategiesAvailable = goerr.New("no strategies available")

	// ErrStrategyNotFound is returned for a catalog lookup miss
	ErrStrategyNotFound = goerr.New("strategy not found")

	// ErrExecution is returned when strategy execution fails
	ErrExecution = goerr.New("strategy execution failed")

	// ErrStore is returned when the memory store is unavailable.
	// Selection degrades to static scoring, never fails the request.
	ErrStore = goerr.New("memory store unavailable")

	// ErrWorkflowNotFound is returned for an unknown workflow ID
	ErrWorkflowNotFound = goerr.New("workflow not found")

	// ErrInvalidTransition is returned when a workflow state change
	// would move backwards or leave a terminal state
	ErrInvalidTransition = goerr.New("invalid workflow state transition")
)
