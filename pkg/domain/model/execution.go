package model

// ExecutionResult is the outcome of running one strategy against a question.
// A degraded result carries Strategy "error" and an explanatory answer so the
// caller never receives a silently wrong response.
type ExecutionResult struct {
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources,omitempty"`
	Strategy      string   `json:"strategy"`
	Confidence    float64  `json:"confidence"`
	ActualLatency int      `json:"actualLatencyMs"`
	Degraded      bool     `json:"degraded,omitempty"`
}
