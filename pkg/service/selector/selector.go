package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Selector ranks catalog strategies for one request by combining static
// cost/latency fit, historical evidence from the memory store, and device
// optimization. The scoring is deterministic for identical inputs and every
// factor that materially changed the ranking is reported in the reasoning.
type Selector struct {
	catalog interfaces.StrategyCatalog
	store   interfaces.MemoryStore
	weights Weights
}

// Option configures a Selector
type Option func(*Selector)

// WithWeights overrides the scoring weights
func WithWeights(w Weights) Option {
	return func(s *Selector) {
		s.weights = w
	}
}

// New creates a strategy selector
func New(cat interfaces.StrategyCatalog, store interfaces.MemoryStore, opts ...Option) *Selector {
	s := &Selector{
		catalog: cat,
		store:   store,
		weights: DefaultWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select picks a strategy for the given profile and device constraints.
// Store failures degrade to static-only scoring; an empty catalog is fatal.
func (s *Selector) Select(ctx context.Context, profile *model.ContentProfile, device *model.DeviceConstraints, preferences map[string]string) (*model.StrategySelectionResult, error) {
	all := s.catalog.List()
	if len(all) == 0 {
		return nil, goerr.Wrap(types.ErrNoStrategiesAvailable, "catalog is empty")
	}

	var reasoning []string

	candidates := filterCandidates(all, profile)
	if len(candidates) == 0 {
		candidates = all
		reasoning = append(reasoning, "no exact match; using full catalog")
	}

	if pref, ok := preferences["profile"]; ok {
		if tier, err := types.ParsePerformanceProfile(pref); err == nil {
			if narrowed := filterByTier(candidates, tier); len(narrowed) > 0 {
				candidates = narrowed
				reasoning = append(reasoning, fmt.Sprintf("caller preference restricts to %s tier", tier))
			}
		}
	}

	histories, storeFailed := s.fetchHistories(ctx, candidates, profile)
	if storeFailed {
		reasoning = append(reasoning, "memory store unavailable; static scoring only")
	}

	pattern := s.lookupPattern(ctx, profile)

	maxLatency := maxEstimatedLatency(all)
	scored := make([]model.ScoredStrategy, len(candidates))
	historyDominant := ""
	bonusApplied := ""
	for i, cand := range candidates {
		static := ScoreStaticFit(&cand, device, maxLatency)
		hist := histories[i]

		score := (1-hist.Weight)*static + hist.Weight*hist.Score
		if hist.Weight > 0.5 && historyDominant == "" {
			historyDominant = fmt.Sprintf("historical evidence dominates for %s (%d records)", cand.Name, hist.Count)
		}

		if bonus := DeviceBonus(&cand, device, s.weights.DeviceBonus); bonus > 0 {
			score += bonus
			if bonusApplied == "" {
				bonusApplied = fmt.Sprintf("device optimization bonus applied to %s", cand.Name)
			}
		}

		if pattern != nil && pattern.OptimalStrategy == cand.Name {
			score += s.weights.PatternBonus * pattern.Confidence
			reasoning = append(reasoning, fmt.Sprintf("content pattern prior favors %s (confidence %.2f)", cand.Name, pattern.Confidence))
		}

		scored[i] = model.ScoredStrategy{Strategy: cand, Score: score}
	}
	if historyDominant != "" {
		reasoning = append(reasoning, historyDominant)
	}
	if bonusApplied != "" {
		reasoning = append(reasoning, bonusApplied)
	}

	rankCandidates(scored)

	selected := scored[0]
	runnerScore := -1.0
	if len(scored) > 1 {
		runnerScore = scored[1].Score
	}
	confidence := clampConfidence(marginConfidence(selected.Score, runnerScore))

	alternatives := scored[1:]
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}

	predicted := s.predictPerformance(&selected.Strategy, histories[indexOf(candidates, selected.Strategy.Name)])

	return &model.StrategySelectionResult{
		Selected:     selected.Strategy,
		Alternatives: alternatives,
		Confidence:   confidence,
		Reasoning:    reasoning,
		Predicted:    predicted,
	}, nil
}

// fetchHistories loads the historical term for every candidate in parallel.
// A store failure degrades all candidates to static scoring.
func (s *Selector) fetchHistories(ctx context.Context, candidates []model.StrategyDescriptor, profile *model.ContentProfile) ([]History, bool) {
	histories := make([]History, len(candidates))
	condTag := model.ConditionKey(profile.Type, profile.Complexity)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, cand := range candidates {
		eg.Go(func() error {
			entries, err := s.store.Query(egCtx, &model.MemoryQuery{
				Type:   types.EntryPerformanceRecord,
				Tags:   []string{cand.Name, condTag},
				MaxAge: s.weights.HistoryMaxAge,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to query performance history",
					goerr.V("strategy", cand.Name))
			}

			records := make([]*model.PerformanceRecord, 0, len(entries))
			for _, e := range entries {
				rec, err := e.PerformanceRecord()
				if err != nil {
					continue
				}
				records = append(records, rec)
			}
			histories[i] = ScoreHistory(records, time.Now(), s.weights)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		logging.From(ctx).Warn("history lookup failed, falling back to static scoring",
			"error", err.Error())
		return make([]History, len(candidates)), true
	}
	return histories, false
}

// lookupPattern reads the fast prior for the profile's pattern tuple.
// Store failures are already reported by fetchHistories; here they just
// drop the prior.
func (s *Selector) lookupPattern(ctx context.Context, profile *model.ContentProfile) *model.ContentPattern {
	entry, err := s.store.Get(ctx, model.PatternKey(profile.Type, profile.Complexity, profile.Fingerprint()))
	if err != nil || entry == nil {
		return nil
	}
	pattern, err := entry.ContentPattern()
	if err != nil {
		return nil
	}
	return pattern
}

func (s *Selector) predictPerformance(d *model.StrategyDescriptor, hist History) model.PredictedPerformance {
	latency := float64(d.EstimatedLatency)
	accuracy := tierAccuracyPrior(d.Profile)
	if hist.Count > 0 {
		latency = (1-hist.Weight)*latency + hist.Weight*hist.AvgLatencyMS
		accuracy = (1-hist.Weight)*accuracy + hist.Weight*hist.AvgAccuracy
	}
	return model.PredictedPerformance{
		LatencyMS: int(latency),
		Accuracy:  accuracy,
	}
}

func filterCandidates(all []model.StrategyDescriptor, profile *model.ContentProfile) []model.StrategyDescriptor {
	var out []model.StrategyDescriptor
	for _, d := range all {
		if d.SupportsContentType(profile.Type) && d.SupportsComplexity(profile.Complexity) {
			out = append(out, d)
		}
	}
	return out
}

func filterByTier(candidates []model.StrategyDescriptor, tier types.PerformanceProfile) []model.StrategyDescriptor {
	var out []model.StrategyDescriptor
	for _, d := range candidates {
		if d.Profile == tier {
			out = append(out, d)
		}
	}
	return out
}

// rankCandidates orders by score descending, then static latency ascending,
// then name, for full determinism
func rankCandidates(scored []model.ScoredStrategy) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Strategy.EstimatedLatency != b.Strategy.EstimatedLatency {
			return a.Strategy.EstimatedLatency < b.Strategy.EstimatedLatency
		}
		return a.Strategy.Name < b.Strategy.Name
	})
}

func maxEstimatedLatency(all []model.StrategyDescriptor) float64 {
	max := 1.0
	for _, d := range all {
		if float64(d.EstimatedLatency) > max {
			max = float64(d.EstimatedLatency)
		}
	}
	return max
}

func indexOf(candidates []model.StrategyDescriptor, name string) int {
	for i, c := range candidates {
		if c.Name == name {
			return i
		}
	}
	return 0
}

// marginConfidence maps the rank-1/rank-2 score gap into a confidence,
// using the same margin formula as content classification
func marginConfidence(winner, runnerUp float64) float64 {
	if winner <= 0 {
		return 0.5
	}
	if runnerUp < 0 {
		// Single candidate: certain as far as ranking goes, capped below
		return 1.0
	}
	margin := (winner - runnerUp) / winner
	if margin < 0 {
		margin = 0
	}
	return 0.5 + margin/2
}

// clampConfidence keeps selection confidence inside [0.1, 0.95] so the
// system never claims absolute certainty
func clampConfidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}

// IsStoreError reports whether an error chain includes the store sentinel
func IsStoreError(err error) bool {
	return errors.Is(err, types.ErrStore)
}
