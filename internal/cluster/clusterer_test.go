package cluster

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"HotspotLite/internal/domain"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"A市发生3.2级地震", "A市发生地震，震级3.2级"},
		{"央行宣布降息", "央行宣布加息"},
		{"abc", "xyz"},
		{"a", "ab"},
		{"", "整条新闻"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Fatalf("similarity must be symmetric: %v vs %v for %q/%q", ab, ba, p[0], p[1])
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("similarity out of bounds: %v", ab)
		}
	}

	if got := Similarity("央行宣布降息", "央行宣布降息"); got != 1 {
		t.Fatalf("identical strings should score 1, got %v", got)
	}
	if got := Similarity("a b", "ab"); got != 1 {
		t.Fatalf("whitespace should be ignored, got %v", got)
	}
	if got := Similarity("A市发生3.2级地震", "A市发生地震，震级3.2级"); math.Abs(got-14.0/21.0) > 1e-9 {
		t.Fatalf("unexpected similarity %v", got)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint strings should score 0, got %v", got)
	}
}

func sampleArticles(base time.Time) []domain.Article {
	titles := []string{
		"A市发生3.2级地震",
		"A市发生地震，震级3.2级",
		"央行宣布降息25个基点",
		"央行宣布降息25个基点",
		"国务院发布通知",
	}
	out := make([]domain.Article, 0, len(titles))
	for i, title := range titles {
		out = append(out, domain.Article{
			ID:          string(rune('a' + i)),
			Title:       title,
			FirstSeenAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestBuildMergesNearDuplicates(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{ID: "older", Title: "A市发生地震，震级3.2级", FirstSeenAt: base.Add(-time.Minute)},
		{ID: "newer", Title: "A市发生3.2级地震", FirstSeenAt: base},
	}

	groups := Build(articles, 200, 0.6)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.Title != "A市发生3.2级地震" {
		t.Fatalf("representative should be the most recent article, got %q", g.Title)
	}
	if len(g.MemberIDs) != 2 || g.MemberIDs[0] != "newer" || g.MemberIDs[1] != "older" {
		t.Fatalf("unexpected members: %v", g.MemberIDs)
	}
	if math.Abs(g.Score()-0.4) > 1e-9 {
		t.Fatalf("expected score 0.4, got %v", g.Score())
	}
}

func TestBuildRespectsLimit(t *testing.T) {
	t.Parallel()

	groups := Build(sampleArticles(time.Now()), 2, 0.6)
	total := 0
	for _, g := range groups {
		total += len(g.MemberIDs)
	}
	if total != 2 {
		t.Fatalf("expected only the 2 most recent articles to be clustered, got %d", total)
	}
	if groups[0].MemberIDs[0] != "a" {
		t.Fatalf("expected most recent article first, got %v", groups[0].MemberIDs)
	}
}

func TestBuildFirstMatchWins(t *testing.T) {
	t.Parallel()

	base := time.Now()
	articles := []domain.Article{
		{ID: "1", Title: "央行宣布降息", FirstSeenAt: base},
		{ID: "2", Title: "央行宣布加息", FirstSeenAt: base.Add(-time.Minute)},
		{ID: "3", Title: "央行宣布降息了", FirstSeenAt: base.Add(-2 * time.Minute)},
	}
	groups := Build(articles, 10, 0.5)
	if len(groups) != 1 || len(groups[0].MemberIDs) != 3 {
		t.Fatalf("expected a single group of 3, got %+v", groups)
	}
}

func TestBuildThresholdMonotonic(t *testing.T) {
	t.Parallel()

	articles := sampleArticles(time.Now())
	prev := 0
	for step := 0; step <= 20; step++ {
		threshold := float64(step) / 20
		n := len(Build(articles, 200, threshold))
		if n < prev {
			t.Fatalf("threshold %.2f produced %d clusters, fewer than %d", threshold, n, prev)
		}
		prev = n
	}
	if prev != 4 {
		t.Fatalf("expected 4 clusters at threshold 1, got %d", prev)
	}
}

func TestBuildStableForEqualTimestamps(t *testing.T) {
	t.Parallel()

	at := time.Now()
	articles := []domain.Article{
		{ID: "x", Title: "甲", FirstSeenAt: at},
		{ID: "y", Title: "乙", FirstSeenAt: at},
	}
	groups := Build(articles, 10, 0.9)
	if groups[0].MemberIDs[0] != "x" || groups[1].MemberIDs[0] != "y" {
		t.Fatalf("equal timestamps must keep input order: %+v", groups)
	}
}

type fakeArticles struct {
	rows []domain.Article
}

func (f *fakeArticles) GetByURLHash(context.Context, string) (domain.Article, error) {
	return domain.Article{}, errors.New("not implemented")
}
func (f *fakeArticles) Insert(context.Context, domain.Article) error          { return nil }
func (f *fakeArticles) UpdateByURLHash(context.Context, domain.Article) error { return nil }
func (f *fakeArticles) ListArticles(context.Context) ([]domain.Article, error) {
	return f.rows, nil
}
func (f *fakeArticles) ListTitlesBySourceTypes(context.Context, []domain.SourceType) ([]string, error) {
	return nil, nil
}
func (f *fakeArticles) UpdateScore(context.Context, string, float64, float64) error { return nil }

type fakeEvents struct {
	byTitle map[string]domain.Event
	failOn  string
}

func (f *fakeEvents) UpsertEvent(_ context.Context, e domain.Event) error {
	if e.Title == f.failOn {
		return errors.New("boom")
	}
	f.byTitle[e.Title] = e
	return nil
}

func TestClustererRebuild(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	events := &fakeEvents{byTitle: map[string]domain.Event{
		"旧事件":         {Title: "旧事件", MemberIDs: []string{"z"}, Score: 0.2},
		"央行宣布降息25个基点": {Title: "央行宣布降息25个基点", MemberIDs: []string{"stale"}, Score: 0.2},
	}}
	c := NewClusterer(&fakeArticles{rows: sampleArticles(now)}, events, nil, func() time.Time { return now })

	groups, err := c.Rebuild(context.Background(), 200, 0.6)
	if err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	if _, ok := events.byTitle["旧事件"]; !ok {
		t.Fatalf("events outside the pass must not be deleted")
	}
	rate := events.byTitle["央行宣布降息25个基点"]
	if len(rate.MemberIDs) != 2 || rate.MemberIDs[0] != "c" || rate.MemberIDs[1] != "d" {
		t.Fatalf("event members must be fully replaced, got %v", rate.MemberIDs)
	}
	if !rate.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected updatedAt %v", rate.UpdatedAt)
	}
}

func TestClustererRebuildContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	events := &fakeEvents{byTitle: map[string]domain.Event{}, failOn: "A市发生3.2级地震"}
	c := NewClusterer(&fakeArticles{rows: sampleArticles(now)}, events, nil, nil)

	_, err := c.Rebuild(context.Background(), 200, 0.6)
	if err == nil {
		t.Fatalf("expected the failed upsert to be reported")
	}
	if len(events.byTitle) != 2 {
		t.Fatalf("remaining events should still be written, got %d", len(events.byTitle))
	}
}
