// Package scoring ranks articles by freshness, source heat, anchored credibility and topical fit.
package scoring

import (
	"math"
	"strings"
	"time"

	"HotspotLite/internal/domain"
)

const (
	weightCredibility = 0.35
	weightFreshness   = 0.30
	weightHeat        = 0.20
	weightFit         = 0.15

	anchoredCredibility   = 1.0
	unanchoredCredibility = 0.4

	heatRankSpan = 50.0
	fitSaturate  = 2.0

	// HalfLife is the freshness half-life.
	HalfLife = 60 * time.Minute
)

var fitKeywords = []string{"财经", "货币", "利率", "通胀", "就业", "医保", "住房", "养老金", "教育", "基建", "社保", "财政", "券商", "A股", "交易所"}

// Input carries the fields a score is computed from.
type Input struct {
	PublishTime *time.Time
	FirstSeenAt time.Time
	HeatRank    *int
	Anchored    bool
	Title       string
}

// Components exposes the individual factors behind a score.
type Components struct {
	Credibility float64
	Freshness   float64
	Heat        float64
	Fit         float64
}

// Score computes the weighted score at the given instant.
func Score(in Input, now time.Time) (float64, Components) {
	ref := in.FirstSeenAt
	if in.PublishTime != nil && !in.PublishTime.IsZero() {
		ref = *in.PublishTime
	}

	parts := Components{
		Credibility: unanchoredCredibility,
		Freshness:   Freshness(now.Sub(ref)),
		Heat:        Heat(in.HeatRank),
		Fit:         KeywordFit(in.Title),
	}
	if in.Anchored {
		parts.Credibility = anchoredCredibility
	}

	score := weightCredibility*parts.Credibility +
		weightFreshness*parts.Freshness +
		weightHeat*parts.Heat +
		weightFit*parts.Fit
	return math.Max(0, math.Min(1, score)), parts
}

// Freshness decays exponentially with HalfLife. Future timestamps count as zero elapsed.
func Freshness(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-math.Ln2 * float64(elapsed) / float64(HalfLife))
}

// Heat maps a leaderboard rank to [0, 1]; absent ranks give 0.
func Heat(rank *int) float64 {
	if rank == nil {
		return 0
	}
	return math.Max(0, math.Min(1, 1-float64(*rank)/heatRankSpan))
}

// KeywordFit counts finance and livelihood keywords in the title.
func KeywordFit(title string) float64 {
	hits := 0
	for _, kw := range fitKeywords {
		if strings.Contains(title, kw) {
			hits++
		}
	}
	return math.Min(1, float64(hits)/fitSaturate)
}

// AnchorSet holds titles published by high-trust tiers.
type AnchorSet map[string]struct{}

// NewAnchorSet builds the exact-match set from titles.
func NewAnchorSet(titles []string) AnchorSet {
	set := make(AnchorSet, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return set
}

// Anchored reports whether title is present verbatim.
func (s AnchorSet) Anchored(title string) bool {
	_, ok := s[title]
	return ok
}

// InputFor adapts a stored article into a score input.
func InputFor(article domain.Article, anchors AnchorSet) Input {
	return Input{
		PublishTime: article.PublishTime,
		FirstSeenAt: article.FirstSeenAt,
		HeatRank:    article.HeatRank,
		Anchored:    anchors.Anchored(article.Title),
		Title:       article.Title,
	}
}
