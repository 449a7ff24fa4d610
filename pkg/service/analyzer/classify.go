package analyzer

import (
	"regexp"
	"strings"

	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// Type classification works by scoring one heuristic bucket per content
// type and picking the highest. Each scoring function is exported-in-package
// and independently testable so the determinism of the classification can be
// checked in isolation.

var (
	questionRe     = regexp.MustCompile(`\?`)
	secondPersonRe = regexp.MustCompile(`(?i)\b(you|your|we|i|me|my|let's|thanks|please)\b`)
	techTermRe     = regexp.MustCompile(`(?i)\b(api|function|server|config|database|error|install|implementation|protocol|deploy|query|runtime|compile)\b`)
)

// typePriority breaks score ties with a fixed order
var typePriority = []types.ContentType{
	types.ContentTypeStructuredData,
	types.ContentTypeTechnical,
	types.ContentTypeConversational,
	types.ContentTypeArticle,
	types.ContentTypeMixed,
}

// ClassifyType picks the highest-scoring heuristic bucket. The confidence is
// the normalized margin between winner and runner-up; a zero margin yields
// maximal uncertainty (0.5) and the mixed type.
func ClassifyType(sig model.ContentSignals, content, url string) (types.ContentType, float64) {
	scores := map[types.ContentType]float64{
		types.ContentTypeStructuredData: scoreStructuredData(sig, url),
		types.ContentTypeTechnical:      scoreTechnical(sig, content, url),
		types.ContentTypeConversational: scoreConversational(sig, content),
		types.ContentTypeArticle:        scoreArticle(sig),
	}

	var winner types.ContentType
	winScore, runnerScore := -1.0, -1.0
	for _, t := range typePriority {
		score, ok := scores[t]
		if !ok {
			continue
		}
		if score > winScore {
			runnerScore = winScore
			winner, winScore = t, score
		} else if score > runnerScore {
			runnerScore = score
		}
	}

	margin := NormalizedMargin(winScore, runnerScore)
	if margin == 0 {
		return types.ContentTypeMixed, 0.5
	}
	return winner, 0.5 + margin/2
}

// NormalizedMargin maps a winner/runner-up score gap into [0, 1].
// Zero when the scores tie or the winner scored nothing at all.
func NormalizedMargin(winner, runnerUp float64) float64 {
	if winner <= 0 {
		return 0
	}
	if runnerUp < 0 {
		runnerUp = 0
	}
	margin := (winner - runnerUp) / winner
	if margin < 0 {
		return 0
	}
	if margin > 1 {
		return 1
	}
	return margin
}

func scoreStructuredData(sig model.ContentSignals, url string) float64 {
	score := float64(sig.TableCount)*3.0 +
		float64(sig.ListItemCount)*0.3 +
		sig.NumericDensity*8.0
	if strings.HasSuffix(url, ".csv") || strings.HasSuffix(url, ".json") || strings.HasSuffix(url, ".xml") {
		score += 2.0
	}
	return score
}

func scoreTechnical(sig model.ContentSignals, content, url string) float64 {
	termHits := len(techTermRe.FindAllString(content, -1))
	termDensity := 0.0
	if sig.WordCount > 0 {
		termDensity = float64(termHits) / float64(sig.WordCount)
	}
	score := float64(sig.CodeBlockCount)*3.0 +
		float64(sig.HeadingCount)*0.7 +
		termDensity*40.0
	if strings.Contains(url, "github.com") || strings.HasSuffix(url, ".md") {
		score += 1.5
	}
	return score
}

func scoreConversational(sig model.ContentSignals, content string) float64 {
	questions := len(questionRe.FindAllString(content, -1))
	pronouns := len(secondPersonRe.FindAllString(content, -1))
	pronounDensity := 0.0
	if sig.WordCount > 0 {
		pronounDensity = float64(pronouns) / float64(sig.WordCount)
	}

	score := float64(questions)*1.2 + pronounDensity*25.0
	// Short, unstructured snippets lean conversational
	if sig.WordCount < 120 && sig.HeadingCount == 0 && sig.TableCount == 0 {
		score += 1.0
	}
	return score
}

func scoreArticle(sig model.ContentSignals) float64 {
	score := 0.0
	// Long prose with few structural markers reads as an article
	if sig.WordCount >= 200 {
		score += 1.5
	}
	if sig.WordCount >= 800 {
		score += 1.0
	}
	score += float64(sig.HeadingCount) * 0.2
	if sig.SentenceLengthVariance > 3 && sig.SentenceLengthVariance < 15 {
		score += 0.8
	}
	return score
}

// Complexity thresholds on the weighted structural score
const (
	simpleThreshold  = 0.35
	complexThreshold = 0.65
)

// ClassifyComplexity combines length, vocabulary diversity, and structural
// density against fixed thresholds
func ClassifyComplexity(sig model.ContentSignals) types.Complexity {
	lengthScore := float64(sig.WordCount) / 2000.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	// Raw type-token ratio overestimates diversity on short texts
	diversity := sig.VocabularyDiversity * minF(1, float64(sig.WordCount)/300.0)

	structural := (float64(sig.HeadingCount) + float64(sig.TableCount)*2 + float64(sig.CodeBlockCount)*2) / 12.0
	if structural > 1 {
		structural = 1
	}

	score := 0.5*lengthScore + 0.25*diversity + 0.25*structural
	switch {
	case score < simpleThreshold:
		return types.ComplexitySimple
	case score < complexThreshold:
		return types.ComplexityMedium
	default:
		return types.ComplexityComplex
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
