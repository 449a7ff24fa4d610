package model

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// StrategyDescriptor describes one named retrieval/answering approach.
// Descriptors are owned by the catalog and read-only after process start.
type StrategyDescriptor struct {
	Name             string                   `json:"name"`
	Profile          types.PerformanceProfile `json:"performanceProfile"`
	ContentTypes     []types.ContentType      `json:"contentTypes"`
	ComplexityLevels []types.Complexity       `json:"complexityLevels"`
	DeviceOptimized  bool                     `json:"deviceOptimized"`
	EstimatedLatency int                      `json:"estimatedLatencyMs"`
	Cost             float64                  `json:"cost"`
	Description      string                   `json:"description,omitempty"`
}

// Validate checks if the strategy descriptor is valid
func (s *StrategyDescriptor) Validate() error {
	if s.Name == "" {
		return goerr.New("strategy name is required")
	}
	if !s.Profile.IsValid() {
		return goerr.New("invalid performance profile",
			goerr.V("name", s.Name), goerr.V("profile", s.Profile))
	}
	if len(s.ContentTypes) == 0 {
		return goerr.New("strategy requires at least one content type", goerr.V("name", s.Name))
	}
	for _, t := range s.ContentTypes {
		if !t.IsValid() {
			return goerr.New("invalid content type",
				goerr.V("name", s.Name), goerr.V("type", t))
		}
	}
	if len(s.ComplexityLevels) == 0 {
		return goerr.New("strategy requires at least one complexity level", goerr.V("name", s.Name))
	}
	for _, c := range s.ComplexityLevels {
		if !c.IsValid() {
			return goerr.New("invalid complexity level",
				goerr.V("name", s.Name), goerr.V("complexity", c))
		}
	}
	if s.EstimatedLatency <= 0 {
		return goerr.New("estimated latency must be positive",
			goerr.V("name", s.Name), goerr.V("latency", s.EstimatedLatency))
	}
	if s.Cost < 0 || s.Cost > 1 {
		return goerr.New("cost must be in [0, 1]",
			goerr.V("name", s.Name), goerr.V("cost", s.Cost))
	}
	return nil
}

// SupportsContentType reports whether the descriptor covers the given content
// type. A descriptor listing "mixed" acts as a wildcard.
func (s *StrategyDescriptor) SupportsContentType(t types.ContentType) bool {
	return slices.Contains(s.ContentTypes, t) ||
		slices.Contains(s.ContentTypes, types.ContentTypeMixed)
}

// SupportsComplexity reports whether the descriptor covers the given
// complexity level
func (s *StrategyDescriptor) SupportsComplexity(c types.Complexity) bool {
	return slices.Contains(s.ComplexityLevels, c)
}
