package analyzer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

const (
	// DefaultMaxContentSize bounds the raw content accepted for analysis
	DefaultMaxContentSize = 1 << 20 // 1 MiB

	// ambiguityThreshold is the confidence below which the optional LLM
	// delegate is consulted
	ambiguityThreshold = 0.55

	// excerptSize bounds the content bytes sent to the LLM for classification
	excerptSize = 2000
)

// Analyzer turns raw content into a structured content profile. Pure
// computation except for the optional LLM delegate, whose failure degrades
// to the heuristic result rather than failing the call.
type Analyzer struct {
	maxContentSize int
	llmClient      gollem.LLMClient
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithMaxContentSize overrides the accepted content size ceiling
func WithMaxContentSize(n int) Option {
	return func(a *Analyzer) {
		a.maxContentSize = n
	}
}

// WithLLMClient enables LLM-assisted classification for ambiguous content
func WithLLMClient(client gollem.LLMClient) Option {
	return func(a *Analyzer) {
		a.llmClient = client
	}
}

// New creates a content analyzer
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxContentSize: DefaultMaxContentSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies content structure and complexity. Empty or oversized
// content fails; everything else yields a profile with confidence in [0, 1].
func (a *Analyzer) Analyze(ctx context.Context, content, url string, metadata map[string]string) (*model.ContentProfile, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, goerr.Wrap(types.ErrAnalysis, "content is empty")
	}
	if len(content) > a.maxContentSize {
		return nil, goerr.Wrap(types.ErrAnalysis, "content exceeds maximum size",
			goerr.V("size", len(content)),
			goerr.V("max", a.maxContentSize),
		)
	}

	signals := ComputeSignals(trimmed)
	contentType, confidence := ClassifyType(signals, trimmed, url)
	complexity := ClassifyComplexity(signals)

	profile := &model.ContentProfile{
		Type:       contentType,
		Complexity: complexity,
		Signals:    signals,
		Confidence: confidence,
	}

	if a.llmClient != nil && confidence < ambiguityThreshold {
		if refined, ok := a.refineWithLLM(ctx, trimmed, profile); ok {
			profile = refined
		}
	}

	return profile, nil
}

// refineWithLLM asks the LLM capability to classify ambiguous content.
// Any failure keeps the heuristic result.
func (a *Analyzer) refineWithLLM(ctx context.Context, content string, heuristic *model.ContentProfile) (*model.ContentProfile, bool) {
	logger := logging.From(ctx)

	session, err := a.llmClient.NewSession(ctx)
	if err != nil {
		logger.Warn("failed to open LLM session for classification, keeping heuristic result",
			"error", err.Error())
		return nil, false
	}

	// excerpt stops at a rune boundary so the prompt stays valid UTF-8
	excerpt := content
	if len(excerpt) > excerptSize {
		cut := excerptSize
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	prompt := "Classify the following content as exactly one of: article, technical, structured_data, conversational, mixed.\n" +
		"Reply with only the single label.\n\n" + excerpt

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		logger.Warn("LLM classification failed, keeping heuristic result", "error", err.Error())
		return nil, false
	}
	if len(resp.Texts) == 0 {
		return nil, false
	}

	label := strings.ToLower(strings.TrimSpace(resp.Texts[0]))
	parsed, err := types.ParseContentType(label)
	if err != nil || parsed == types.ContentTypeUnknown {
		logger.Debug("LLM returned unusable label, keeping heuristic result", "label", label)
		return nil, false
	}

	refined := *heuristic
	refined.Type = parsed
	if refined.Confidence < 0.75 {
		refined.Confidence = 0.75
	}
	return &refined, true
}
