package dispatcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

const (
	// DefaultTimeout bounds one LLM execution. Timeouts surface as
	// execution errors and are not retried here.
	DefaultTimeout = 60 * time.Second

	// DefaultPerformanceTTL keeps raw performance records short-lived;
	// the aggregated patterns outlive them.
	DefaultPerformanceTTL = 24 * time.Hour
)

// Dispatcher runs a selected strategy against the question and content via
// the LLM capability, and records the observed outcome in the memory store.
// The record is written after every execution, success or failure, so the
// selector learns to avoid strategies that fail under the same conditions.
type Dispatcher struct {
	llmClient      gollem.LLMClient
	store          interfaces.MemoryStore
	timeout        time.Duration
	performanceTTL time.Duration
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithTimeout overrides the per-execution LLM timeout
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.timeout = d
	}
}

// WithPerformanceTTL overrides the TTL of written performance records
func WithPerformanceTTL(ttl time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.performanceTTL = ttl
	}
}

// New creates an execution dispatcher
func New(llmClient gollem.LLMClient, store interfaces.MemoryStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		llmClient:      llmClient,
		store:          store,
		timeout:        DefaultTimeout,
		performanceTTL: DefaultPerformanceTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs the strategy and returns the answer. The performance record
// capturing predicted vs. actual latency and accuracy is written even when
// execution fails (actual accuracy zero).
func (d *Dispatcher) Execute(ctx context.Context, strategy *model.StrategyDescriptor, content, question string, profile *model.ContentProfile, device *model.DeviceConstraints, predicted model.PredictedPerformance) (*model.ExecutionResult, error) {
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	answer, sources, execErr := d.runStrategy(execCtx, strategy, content, question)
	elapsed := int(time.Since(start).Milliseconds())

	if execErr != nil {
		d.recordOutcome(ctx, strategy, profile, device, predicted, elapsed, 0)
		return nil, goerr.Wrap(types.ErrExecution, "strategy execution failed",
			goerr.V("strategy", strategy.Name),
			goerr.V("cause", execErr.Error()),
		)
	}

	confidence := estimateConfidence(answer, sources)
	d.recordOutcome(ctx, strategy, profile, device, predicted, elapsed, confidence)

	return &model.ExecutionResult{
		Answer:        answer,
		Sources:       sources,
		Strategy:      strategy.Name,
		Confidence:    confidence,
		ActualLatency: elapsed,
	}, nil
}

// runStrategy issues the LLM call shaped by the strategy's performance tier
func (d *Dispatcher) runStrategy(ctx context.Context, strategy *model.StrategyDescriptor, content, question string) (string, []string, error) {
	if d.llmClient == nil {
		return "", nil, goerr.New("LLM client is not configured")
	}
	session, err := d.llmClient.NewSession(ctx)
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to open LLM session")
	}

	prompt := buildPrompt(strategy, content, question)
	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", nil, goerr.Wrap(err, "LLM generation failed")
	}
	if len(resp.Texts) == 0 {
		return "", nil, goerr.New("LLM returned no text")
	}

	answer := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if answer == "" {
		return "", nil, goerr.New("LLM returned empty answer")
	}
	return answer, extractSources(answer), nil
}

// excerpt budgets per performance tier, in bytes of content
const (
	fastExcerptSize          = 2000
	balancedExcerptSize      = 10000
	comprehensiveExcerptSize = 30000
)

func buildPrompt(strategy *model.StrategyDescriptor, content, question string) string {
	switch strategy.Profile {
	case types.ProfileFast:
		return fmt.Sprintf(
			"Answer the question concisely using the excerpt below. If the excerpt does not contain the answer, say so.\n\nExcerpt:\n%s\n\nQuestion: %s",
			truncate(content, fastExcerptSize), question)
	case types.ProfileComprehensive:
		return fmt.Sprintf(
			"You are a careful research assistant. Read the document, reason step by step, and give a thorough answer. Cite the passages you relied on as lines starting with \"Source:\".\n\nDocument:\n%s\n\nQuestion: %s",
			truncate(content, comprehensiveExcerptSize), question)
	default:
		return fmt.Sprintf(
			"Answer the question using the document below. Mention which sections you used as lines starting with \"Source:\".\n\nDocument:\n%s\n\nQuestion: %s",
			truncate(content, balancedExcerptSize), question)
	}
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var sourceLineRe = regexp.MustCompile(`(?m)^Source:\s*(.+)$`)

// extractSources pulls cited passages out of the answer text
func extractSources(answer string) []string {
	matches := sourceLineRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, strings.TrimSpace(m[1]))
	}
	return sources
}

// estimateConfidence is a cheap observed-quality proxy: substantial answers
// with citations score higher. It feeds actual accuracy in performance
// records until real feedback exists.
func estimateConfidence(answer string, sources []string) float64 {
	confidence := 0.5
	words := len(strings.Fields(answer))
	if words >= 30 {
		confidence += 0.15
	}
	if words >= 100 {
		confidence += 0.1
	}
	if len(sources) > 0 {
		confidence += 0.15
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

// recordOutcome writes the performance record for this execution. Store
// failures degrade learning quality, never availability.
func (d *Dispatcher) recordOutcome(ctx context.Context, strategy *model.StrategyDescriptor, profile *model.ContentProfile, device *model.DeviceConstraints, predicted model.PredictedPerformance, actualLatencyMS int, actualAccuracy float64) {
	rec := &model.PerformanceRecord{
		Strategy:    strategy.Name,
		ContentType: profile.Type,
		Complexity:  profile.Complexity,
		DeviceType:  device.Type,
		Fingerprint: profile.Fingerprint(),
		Metrics: model.PerformanceMetrics{
			PredictedLatencyMS: predicted.LatencyMS,
			ActualLatencyMS:    actualLatencyMS,
			PredictedAccuracy:  predicted.Accuracy,
			ActualAccuracy:     actualAccuracy,
		},
		Timestamp: time.Now().UTC(),
	}

	entry, err := model.NewPerformanceEntry(rec, d.performanceTTL)
	if err != nil {
		logging.From(ctx).Error("failed to build performance entry",
			"strategy", strategy.Name, "error", err.Error())
		return
	}
	if err := d.store.Put(ctx, entry); err != nil {
		logging.From(ctx).Error("failed to record strategy outcome",
			"strategy", strategy.Name, "error", err.Error())
	}
}
