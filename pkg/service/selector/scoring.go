package selector

import (
	"time"

	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// Weights are the tunable parameters of the scoring algorithm. The history
// smoothing controls how much observed evidence must accumulate before the
// historical term outweighs the static term.
type Weights struct {
	// EvidenceSmoothing is the effective record count at which the
	// historical term reaches half weight
	EvidenceSmoothing float64

	// LatencyPenaltyPerSecond is subtracted from observed accuracy per
	// second of observed latency
	LatencyPenaltyPerSecond float64

	// DeviceBonus is added for device-optimized strategies on handheld
	// devices
	DeviceBonus float64

	// PatternBonus scales the content-pattern prior
	PatternBonus float64

	// HistoryMaxAge bounds how far back performance records count
	HistoryMaxAge time.Duration
}

// DefaultWeights returns the tuned default parameters
func DefaultWeights() Weights {
	return Weights{
		EvidenceSmoothing:       8.0,
		LatencyPenaltyPerSecond: 0.05,
		DeviceBonus:             0.08,
		PatternBonus:            0.1,
		HistoryMaxAge:           24 * time.Hour,
	}
}

// History is the aggregated historical term of one candidate strategy
type History struct {
	// Score is the evidence-based quality estimate in [0, 1]
	Score float64

	// Weight in [0, 1) says how much Score should count against the
	// static term. Zero evidence means zero weight.
	Weight float64

	// Count is the number of records considered
	Count int

	AvgAccuracy  float64
	AvgLatencyMS float64
}

// ScoreStaticFit scores a descriptor's cost/latency fit against the device.
// Constrained devices (low power, cellular) weight latency more heavily, so
// cheap fast strategies win there.
func ScoreStaticFit(d *model.StrategyDescriptor, device *model.DeviceConstraints, maxLatency float64) float64 {
	latencyNorm := float64(d.EstimatedLatency) / maxLatency

	latencyWeight, costWeight := 0.5, 0.5
	if device.IsConstrained() {
		latencyWeight, costWeight = 0.7, 0.3
	}

	fit := 1.0 - (latencyWeight*latencyNorm + costWeight*d.Cost)
	if fit < 0 {
		return 0
	}
	return fit
}

// ScoreHistory folds observed performance records into a single historical
// term. Each record is weighted by freshness; more and fresher evidence
// increases the weight of the term relative to static scoring.
func ScoreHistory(records []*model.PerformanceRecord, now time.Time, w Weights) History {
	if len(records) == 0 {
		return History{}
	}

	var effective, accSum, latSum float64
	for _, rec := range records {
		freshness := recordFreshness(rec.Timestamp, now, w.HistoryMaxAge)
		effective += freshness
		accSum += rec.Metrics.ActualAccuracy * freshness
		latSum += float64(rec.Metrics.ActualLatencyMS) * freshness
	}
	if effective == 0 {
		return History{}
	}

	avgAccuracy := accSum / effective
	avgLatencyMS := latSum / effective

	score := avgAccuracy - w.LatencyPenaltyPerSecond*(avgLatencyMS/1000.0)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return History{
		Score:        score,
		Weight:       effective / (effective + w.EvidenceSmoothing),
		Count:        len(records),
		AvgAccuracy:  avgAccuracy,
		AvgLatencyMS: avgLatencyMS,
	}
}

// recordFreshness discounts a record linearly with age, floored so old but
// still-retained evidence keeps some influence
func recordFreshness(ts, now time.Time, maxAge time.Duration) float64 {
	if maxAge <= 0 {
		return 1
	}
	age := now.Sub(ts)
	if age < 0 {
		return 1
	}
	f := 1.0 - float64(age)/float64(maxAge)
	if f < 0.1 {
		return 0.1
	}
	return f
}

// DeviceBonus returns the additive bonus for device-optimized strategies on
// handheld devices, zero otherwise
func DeviceBonus(d *model.StrategyDescriptor, device *model.DeviceConstraints, bonus float64) float64 {
	if d.DeviceOptimized && device.IsHandheld() {
		return bonus
	}
	return 0
}

// tierAccuracyPrior is the static accuracy estimate per performance tier,
// used when no history exists
func tierAccuracyPrior(p types.PerformanceProfile) float64 {
	switch p {
	case types.ProfileFast:
		return 0.7
	case types.ProfileComprehensive:
		return 0.9
	default:
		return 0.8
	}
}
