package model

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// ContentSignals holds the structural signals derived from raw content.
// All values are computed by lightweight heuristics, no external calls.
type ContentSignals struct {
	Length                 int     `json:"length"`
	WordCount              int     `json:"wordCount"`
	HeadingCount           int     `json:"headingCount"`
	ListItemCount          int     `json:"listItemCount"`
	TableCount             int     `json:"tableCount"`
	CodeBlockCount         int     `json:"codeBlockCount"`
	NumericDensity         float64 `json:"numericDensity"`
	SentenceLengthVariance float64 `json:"sentenceLengthVariance"`
	VocabularyDiversity    float64 `json:"vocabularyDiversity"`
	ReadingTimeMinutes     float64 `json:"readingTimeMinutes"`
}

// ContentProfile is the structural classification of one piece of content.
// Immutable once produced by the analyzer; never persisted directly, only
// summarized into content patterns.
type ContentProfile struct {
	Type       types.ContentType `json:"type"`
	Complexity types.Complexity  `json:"complexity"`
	Signals    ContentSignals    `json:"signals"`
	Confidence float64           `json:"confidence"`
}

// DefaultContentProfile is the degraded profile substituted when analysis
// fails, so downstream steps can still proceed.
func DefaultContentProfile() *ContentProfile {
	return &ContentProfile{
		Type:       types.ContentTypeUnknown,
		Complexity: types.ComplexityMedium,
		Confidence: 0.3,
	}
}

// Validate checks if the content profile is valid
func (p *ContentProfile) Validate() error {
	if !p.Type.IsValid() {
		return goerr.New("invalid content type", goerr.V("type", p.Type))
	}
	if !p.Complexity.IsValid() {
		return goerr.New("invalid complexity", goerr.V("complexity", p.Complexity))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return goerr.New("confidence out of range", goerr.V("confidence", p.Confidence))
	}
	return nil
}

// Fingerprint returns a coarse bucket of the profile's key signals, used to
// key content patterns. Buckets keep the pattern space small so repeated
// content shapes actually recur.
func (p *ContentProfile) Fingerprint() string {
	return fmt.Sprintf("h%d-l%d-t%d",
		bucket(p.Signals.HeadingCount),
		bucket(p.Signals.ListItemCount),
		bucket(p.Signals.TableCount),
	)
}

func bucket(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= 3:
		return 1
	case n <= 10:
		return 2
	default:
		return 3
	}
}
