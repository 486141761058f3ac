package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

type memRepo struct {
	mu          sync.Mutex
	articles    map[string]domain.Article
	order       []string
	events      map[string]domain.Event
	failInsert  map[string]error
	failUpdate  error
	scoreCalls  int
	raceOnFirst *domain.Article
}

func newMemRepo() *memRepo {
	return &memRepo{
		articles:   map[string]domain.Article{},
		events:     map[string]domain.Event{},
		failInsert: map[string]error{},
	}
}

func (m *memRepo) GetByURLHash(_ context.Context, urlHash string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[urlHash]
	if !ok {
		return domain.Article{}, ports.ErrNotFound
	}
	return a, nil
}

func (m *memRepo) Insert(_ context.Context, a domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnFirst != nil {
		raced := *m.raceOnFirst
		m.raceOnFirst = nil
		m.articles[raced.URLHash] = raced
		m.order = append(m.order, raced.URLHash)
	}
	if err, ok := m.failInsert[a.Title]; ok {
		return err
	}
	if _, ok := m.articles[a.URLHash]; ok {
		return fmt.Errorf("insert: %w", ports.ErrDuplicate)
	}
	m.articles[a.URLHash] = a
	m.order = append(m.order, a.URLHash)
	return nil
}

func (m *memRepo) UpdateByURLHash(_ context.Context, a domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.articles[a.URLHash]; !ok {
		return ports.ErrNotFound
	}
	m.articles[a.URLHash] = a
	return nil
}

func (m *memRepo) ListArticles(context.Context) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Article, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, m.articles[h])
	}
	return out, nil
}

func (m *memRepo) ListTitlesBySourceTypes(_ context.Context, types []domain.SourceType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, h := range m.order {
		a := m.articles[h]
		for _, t := range types {
			if a.SourceType == t {
				out = append(out, a.Title)
			}
		}
	}
	return out, nil
}

func (m *memRepo) UpdateScore(_ context.Context, id string, credibility, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreCalls++
	for h, a := range m.articles {
		if a.ID == id {
			a.Credibility = credibility
			a.Score = score
			m.articles[h] = a
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *memRepo) UpsertEvent(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.Title] = e
	return nil
}

func (m *memRepo) byURL(url string) (domain.Article, bool) {
	a, err := m.GetByURLHash(context.Background(), URLHash(CanonicalURL(url)))
	return a, err == nil
}

type stubRules struct {
	cls domain.Classification
}

func (s stubRules) Classify(string, string, string) domain.Classification { return s.cls }

type stubFallback struct {
	mu      sync.Mutex
	calls   int
	outcome domain.FallbackOutcome
	block   bool
}

func (s *stubFallback) ClassifyFallback(ctx context.Context, _, _ string) domain.FallbackOutcome {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return domain.Unavailable()
	}
	return s.outcome
}

func (s *stubFallback) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSource struct {
	batches []domain.Batch
}

func (s stubSource) FetchAll(context.Context) []domain.Batch { return s.batches }

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("art-%d", n)
	}
}

var errBoom = errors.New("boom")
