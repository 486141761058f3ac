package scoring

import (
	"math"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestFreshnessHalfLife(t *testing.T) {
	t.Parallel()

	if got := Freshness(0); got != 1 {
		t.Fatalf("expected 1 at zero elapsed, got %v", got)
	}
	if got := Freshness(HalfLife); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 after one half-life, got %v", got)
	}
	if got := Freshness(-time.Hour); got != 1 {
		t.Fatalf("future timestamps should not exceed 1, got %v", got)
	}

	prev := Freshness(0)
	for m := 1; m <= 600; m += 7 {
		cur := Freshness(time.Duration(m) * time.Minute)
		if cur >= prev {
			t.Fatalf("freshness must strictly decrease: %v then %v at %dm", prev, cur, m)
		}
		if cur <= 0 {
			t.Fatalf("freshness must stay positive, got %v", cur)
		}
		prev = cur
	}
}

func TestHeat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rank *int
		want float64
	}{
		{rank: nil, want: 0},
		{rank: intPtr(0), want: 1},
		{rank: intPtr(10), want: 0.8},
		{rank: intPtr(50), want: 0},
		{rank: intPtr(80), want: 0},
		{rank: intPtr(-5), want: 1},
	}
	for _, tc := range cases {
		if got := Heat(tc.rank); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("rank %v: expected %v, got %v", tc.rank, tc.want, got)
		}
	}
}

func TestKeywordFit(t *testing.T) {
	t.Parallel()

	if got := KeywordFit("天气晴"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := KeywordFit("医保新政"); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := KeywordFit("医保 住房 教育"); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestScoreWeights(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	score, parts := Score(Input{
		FirstSeenAt: now,
		HeatRank:    intPtr(0),
		Anchored:    true,
		Title:       "医保 住房",
	}, now)
	if math.Abs(score-1) > 1e-9 {
		t.Fatalf("all factors maxed should give 1, got %v (%+v)", score, parts)
	}

	score, parts = Score(Input{FirstSeenAt: now.Add(-48 * time.Hour), Title: "无关"}, now)
	if parts.Credibility != 0.4 || parts.Heat != 0 || parts.Fit != 0 {
		t.Fatalf("unexpected components: %+v", parts)
	}
	if math.Abs(score-(0.35*0.4+0.30*parts.Freshness)) > 1e-12 {
		t.Fatalf("unexpected weighted score %v", score)
	}
}

func TestScorePrefersPublishTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-HalfLife)
	_, parts := Score(Input{PublishTime: &published, FirstSeenAt: now, Title: "x"}, now)
	if math.Abs(parts.Freshness-0.5) > 1e-9 {
		t.Fatalf("freshness should follow publish time, got %v", parts.Freshness)
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ranks := []*int{nil, intPtr(-100), intPtr(0), intPtr(25), intPtr(1000)}
	offsets := []time.Duration{-72 * time.Hour, 0, time.Minute, 24 * time.Hour, 10000 * time.Hour}
	for _, rank := range ranks {
		for _, off := range offsets {
			for _, anchored := range []bool{true, false} {
				score, _ := Score(Input{FirstSeenAt: now.Add(-off), HeatRank: rank, Anchored: anchored, Title: "财经 货币 利率"}, now)
				if score < 0 || score > 1 {
					t.Fatalf("score out of bounds: %v (rank=%v off=%v)", score, rank, off)
				}
			}
		}
	}
}

func TestAnchorSet(t *testing.T) {
	t.Parallel()

	set := NewAnchorSet([]string{"国务院发布通知", "另一条"})
	if !set.Anchored("国务院发布通知") {
		t.Fatalf("expected exact title to be anchored")
	}
	if set.Anchored("国务院发布通知 ") {
		t.Fatalf("anchoring must be exact, not fuzzy")
	}
}
