package analyzer

import (
	"math"
	"regexp"
	"strings"

	"github.com/secmon-lab/strategos/pkg/domain/model"
)

// wordsPerMinute is the reading speed used for the reading time estimate
const wordsPerMinute = 220.0

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+\S|<h[1-6][\s>]`)
	listItemRe  = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+\S|<li[\s>]`)
	tableRowRe  = regexp.MustCompile(`(?m)^\s*\|.+\|\s*$`)
	htmlTableRe = regexp.MustCompile(`<table[\s>]`)
	codeFenceRe = regexp.MustCompile("(?m)^```")
	numberRe    = regexp.MustCompile(`\b\d[\d,.]*\b`)
	sentenceRe  = regexp.MustCompile(`[.!?]+\s`)
)

// ComputeSignals derives the structural signals of content using lightweight
// heuristics only. No external calls.
func ComputeSignals(content string) model.ContentSignals {
	words := strings.Fields(content)
	wordCount := len(words)

	unique := make(map[string]struct{}, wordCount)
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,!?;:\"'()"))] = struct{}{}
	}
	diversity := 0.0
	if wordCount > 0 {
		diversity = float64(len(unique)) / float64(wordCount)
	}

	numericTokens := len(numberRe.FindAllString(content, -1))
	numericDensity := 0.0
	if wordCount > 0 {
		numericDensity = float64(numericTokens) / float64(wordCount)
	}

	// Markdown table rows come in blocks; count blocks, not rows
	tableCount := countTableBlocks(content) + len(htmlTableRe.FindAllString(content, -1))

	// A fence pair delimits one code block
	codeBlockCount := len(codeFenceRe.FindAllString(content, -1)) / 2

	return model.ContentSignals{
		Length:                 len(content),
		WordCount:              wordCount,
		HeadingCount:           len(headingRe.FindAllString(content, -1)),
		ListItemCount:          len(listItemRe.FindAllString(content, -1)),
		TableCount:             tableCount,
		CodeBlockCount:         codeBlockCount,
		NumericDensity:         numericDensity,
		SentenceLengthVariance: sentenceLengthVariance(content),
		VocabularyDiversity:    diversity,
		ReadingTimeMinutes:     float64(wordCount) / wordsPerMinute,
	}
}

// countTableBlocks counts contiguous runs of markdown table rows
func countTableBlocks(content string) int {
	blocks := 0
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		if tableRowRe.MatchString(line) {
			if !inBlock {
				blocks++
				inBlock = true
			}
		} else {
			inBlock = false
		}
	}
	return blocks
}

// sentenceLengthVariance measures how uneven sentence lengths are, in words
func sentenceLengthVariance(content string) float64 {
	sentences := sentenceRe.Split(content, -1)
	lengths := make([]float64, 0, len(sentences))
	for _, s := range sentences {
		n := len(strings.Fields(s))
		if n > 0 {
			lengths = append(lengths, float64(n))
		}
	}
	if len(lengths) < 2 {
		return 0
	}

	mean := 0.0
	for _, l := range lengths {
		mean += l
	}
	mean /= float64(len(lengths))

	variance := 0.0
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	return math.Sqrt(variance)
}
