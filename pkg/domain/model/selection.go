package model

// PredictedPerformance is the selector's estimate of how the chosen
// strategy will perform under the given conditions
type PredictedPerformance struct {
	LatencyMS int     `json:"latencyMs"`
	Accuracy  float64 `json:"accuracy"`
}

// ScoredStrategy pairs a candidate descriptor with its final score
type ScoredStrategy struct {
	Strategy StrategyDescriptor `json:"strategy"`
	Score    float64            `json:"score"`
}

// StrategySelectionResult is the outcome of one strategy selection.
// Created once per workflow; the result itself is not persisted, only the
// observed outcome of executing it.
type StrategySelectionResult struct {
	Selected     StrategyDescriptor   `json:"selectedStrategy"`
	Alternatives []ScoredStrategy     `json:"alternatives"`
	Confidence   float64              `json:"confidence"`
	Reasoning    []string             `json:"reasoning"`
	Predicted    PredictedPerformance `json:"predictedPerformance"`
}
