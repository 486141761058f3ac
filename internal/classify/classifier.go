// Package classify assigns a news category to a title and optional summary
// using an ordered keyword table.
package classify

import (
	"strings"
	"unicode/utf8"

	"HotspotLite/internal/domain"
)

const (
	maxTextRunes     = 400
	scoreNormalizer  = 6.0
	minConfidence    = 0.2
	maxConfidence    = 1.0
	suppressedCap    = 0.4
	longKeywordRunes = 3

	// LowConfidence is the exclusive bound under which the fallback is consulted.
	LowConfidence = 0.6
)

// Rules is the deterministic keyword-weighted classifier.
type Rules struct {
	table Table
}

// NewRules builds a classifier over the given table.
func NewRules(table Table) *Rules {
	return &Rules{table: table}
}

// Classify runs the rule pass. It is pure: equal inputs always give equal output.
func (r *Rules) Classify(title, summary, sourceID string) domain.Classification {
	text := truncateRunes(title+" "+summary, maxTextRunes)

	bestName := Uncategorized
	bestScore := 0
	for _, cat := range r.table.Categories {
		score := 0
		for _, kw := range cat.Keywords {
			if kw == "" || !strings.Contains(text, kw) {
				continue
			}
			if utf8.RuneCountInString(kw) >= longKeywordRunes {
				score += 2
			} else {
				score++
			}
		}
		if score > bestScore {
			bestName, bestScore = cat.Name, score
		}
	}

	if r.authoritative(sourceID) {
		bestScore++
	}

	confidence := ClampConfidence(float64(bestScore) / scoreNormalizer)
	if bestName == r.table.Suppressed {
		return domain.Classification{NewsType: Uncategorized, Confidence: min(confidence, suppressedCap)}
	}
	return domain.Classification{NewsType: bestName, Confidence: confidence}
}

// Table exposes the label set for validating fallback output.
func (r *Rules) Table() Table {
	return r.table
}

func (r *Rules) authoritative(sourceID string) bool {
	for _, marker := range r.table.Authoritative {
		if marker != "" && strings.Contains(sourceID, marker) {
			return true
		}
	}
	return false
}

// ClampConfidence bounds a confidence into [0.2, 1].
func ClampConfidence(v float64) float64 {
	if v != v || v < minConfidence {
		return minConfidence
	}
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}

// Coerce validates an externally produced label and confidence against the table.
// The suppressed category folds into Uncategorized with the same cap the rule pass uses.
func (t Table) Coerce(label string, confidence float64) domain.Classification {
	label = strings.TrimSpace(label)
	if t.Suppressed != "" && label == t.Suppressed {
		return domain.Classification{NewsType: Uncategorized, Confidence: min(ClampConfidence(confidence), suppressedCap)}
	}
	if !t.Allowed(label) {
		label = Uncategorized
	}
	return domain.Classification{NewsType: label, Confidence: ClampConfidence(confidence)}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
