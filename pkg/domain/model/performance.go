package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// PerformanceMetrics pairs predicted and observed latency/accuracy for one
// strategy execution
type PerformanceMetrics struct {
	PredictedLatencyMS int     `json:"predictedLatencyMs"`
	ActualLatencyMS    int     `json:"actualLatencyMs"`
	PredictedAccuracy  float64 `json:"predictedAccuracy"`
	ActualAccuracy     float64 `json:"actualAccuracy"`
}

// PerformanceRecord is one observed outcome of running a strategy under
// given conditions. Append-only; written after every execution, including
// failures (ActualAccuracy = 0), so the selector learns to avoid strategies
// that fail under the same conditions.
type PerformanceRecord struct {
	Strategy    string             `json:"strategyName"`
	ContentType types.ContentType  `json:"contentType"`
	Complexity  types.Complexity   `json:"complexity"`
	DeviceType  types.DeviceType   `json:"deviceType"`
	Fingerprint string             `json:"fingerprint"`
	Metrics     PerformanceMetrics `json:"performance"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Validate checks if the performance record is valid
func (r *PerformanceRecord) Validate() error {
	if r.Strategy == "" {
		return goerr.New("strategy name is required")
	}
	if !r.ContentType.IsValid() {
		return goerr.New("invalid content type", goerr.V("type", r.ContentType))
	}
	if !r.Complexity.IsValid() {
		return goerr.New("invalid complexity", goerr.V("complexity", r.Complexity))
	}
	if !r.DeviceType.IsValid() {
		return goerr.New("invalid device type", goerr.V("device", r.DeviceType))
	}
	if r.Timestamp.IsZero() {
		return goerr.New("timestamp is required", goerr.V("strategy", r.Strategy))
	}
	return nil
}

// PatternKey returns the content-pattern key this record aggregates into
func (r *PerformanceRecord) PatternKey() string {
	return PatternKey(r.ContentType, r.Complexity, r.Fingerprint)
}

// ContentPattern is an aggregated, decaying summary of repeated performance
// records for one (contentType, complexity, fingerprint) tuple. Upserted by
// the memory store whenever a performance record is written; read by the
// selector as a fast prior.
type ContentPattern struct {
	ContentType     types.ContentType `json:"contentType"`
	Complexity      types.Complexity  `json:"complexity"`
	Fingerprint     string            `json:"fingerprint"`
	Occurrences     int               `json:"occurrences"`
	Confidence      float64           `json:"confidence"`
	OptimalStrategy string            `json:"optimalStrategy"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Key returns the storage key for this pattern
func (p *ContentPattern) Key() string {
	return PatternKey(p.ContentType, p.Complexity, p.Fingerprint)
}

// PatternKey builds the storage key for a content-pattern tuple
func PatternKey(t types.ContentType, c types.Complexity, fingerprint string) string {
	return fmt.Sprintf("pattern:%s:%s:%s", t, c, fingerprint)
}

// ConditionKey tags records by their (contentType, complexity) condition so
// the selector can aggregate history across fingerprints
func ConditionKey(t types.ContentType, c types.Complexity) string {
	return fmt.Sprintf("cond:%s:%s", t, c)
}

// ConditionKey returns the condition tag of this record
func (r *PerformanceRecord) ConditionKey() string {
	return ConditionKey(r.ContentType, r.Complexity)
}

// PatternSmoothing dampens pattern confidence for low evidence counts:
// confidence = occurrences / (occurrences + PatternSmoothing)
const PatternSmoothing = 5.0

// UpdatePattern folds one new performance record into an existing pattern
// (nil for the first occurrence). The modal strategy is recomputed from the
// records still retained for the tuple; the occurrence counter rolls forward
// independently of record expiry.
func UpdatePattern(existing *ContentPattern, rec *PerformanceRecord, retained []*PerformanceRecord) *ContentPattern {
	occurrences := 1
	if existing != nil {
		occurrences = existing.Occurrences + 1
	}

	pattern := &ContentPattern{
		ContentType:     rec.ContentType,
		Complexity:      rec.Complexity,
		Fingerprint:     rec.Fingerprint,
		Occurrences:     occurrences,
		Confidence:      float64(occurrences) / (float64(occurrences) + PatternSmoothing),
		OptimalStrategy: modalStrategy(retained, rec.Strategy),
		UpdatedAt:       rec.Timestamp,
	}
	return pattern
}

// modalStrategy returns the most frequent strategy among the retained
// records. Ties break toward the lexicographically smaller name so the
// result is deterministic; fallback covers the empty window.
func modalStrategy(records []*PerformanceRecord, fallback string) string {
	if len(records) == 0 {
		return fallback
	}
	counts := make(map[string]int, len(records))
	for _, r := range records {
		counts[r.Strategy]++
	}
	best, bestCount := "", -1
	for name, count := range counts {
		if count > bestCount || (count == bestCount && name < best) {
			best, bestCount = name, count
		}
	}
	return best
}
