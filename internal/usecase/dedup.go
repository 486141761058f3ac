package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"HotspotLite/internal/classify"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

const defaultFallbackTimeout = 8 * time.Second

// RuleClassifier is the deterministic first classification pass.
type RuleClassifier interface {
	Classify(title, summary, sourceID string) domain.Classification
}

// UpserterDeps wires the upsert engine.
type UpserterDeps struct {
	Repository      ports.ArticleRepository
	Rules           RuleClassifier
	Fallback        ports.FallbackClassifier
	FallbackTimeout time.Duration
	Metrics         ports.PipelineMetrics
	Logger          *slog.Logger
	Now             func() time.Time
	NewID           func() string
}

// Upserter resolves candidate identity by URL hash and persists articles.
type Upserter struct {
	repo            ports.ArticleRepository
	rules           RuleClassifier
	fallback        ports.FallbackClassifier
	fallbackTimeout time.Duration
	metrics         ports.PipelineMetrics
	logger          *slog.Logger
	now             func() time.Time
	newID           func() string
}

// CandidateFailure records a candidate that could not be persisted.
type CandidateFailure struct {
	URL string
	Err error
}

// UpsertResult summarizes one batch.
type UpsertResult struct {
	Processed int
	Inserted  int
	Updated   int
	Dropped   int
	Failures  []CandidateFailure
}

func (r *UpsertResult) merge(other UpsertResult) {
	r.Processed += other.Processed
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Dropped += other.Dropped
	r.Failures = append(r.Failures, other.Failures...)
}

// NewUpserter constructs the engine; Rules defaults to the built-in keyword table.
func NewUpserter(deps UpserterDeps) *Upserter {
	u := &Upserter{
		repo:            deps.Repository,
		rules:           deps.Rules,
		fallback:        deps.Fallback,
		fallbackTimeout: deps.FallbackTimeout,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		now:             deps.Now,
		newID:           deps.NewID,
	}
	if u.rules == nil {
		u.rules = classify.NewRules(classify.DefaultTable)
	}
	if u.fallbackTimeout <= 0 {
		u.fallbackTimeout = defaultFallbackTimeout
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.newID == nil {
		u.newID = uuid.NewString
	}
	return u
}

// Upsert processes candidates sequentially. A failing candidate is recorded and skipped;
// the batch itself never fails.
func (u *Upserter) Upsert(ctx context.Context, candidates []domain.Candidate) UpsertResult {
	var result UpsertResult
	for _, c := range candidates {
		if !wellFormed(c) {
			result.Dropped++
			continue
		}
		result.Processed++

		inserted, err := u.upsertOne(ctx, c)
		if err != nil {
			result.Failures = append(result.Failures, CandidateFailure{URL: c.URL, Err: err})
			u.warn("candidate upsert failed", "url", c.URL, "source", c.SourceID, "error", err)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if u.metrics != nil {
		u.metrics.ObserveUpsert(result.Processed, result.Inserted, result.Dropped, len(result.Failures))
	}
	if u.logger != nil {
		u.logger.Info("pipeline upsert",
			"count", result.Processed,
			"inserted", result.Inserted,
			"dropped", result.Dropped,
			"failed", len(result.Failures))
	}
	return result
}

func wellFormed(c domain.Candidate) bool {
	return strings.TrimSpace(c.Title) != "" && strings.TrimSpace(c.URL) != ""
}

func (u *Upserter) upsertOne(ctx context.Context, c domain.Candidate) (bool, error) {
	canonical := CanonicalURL(c.URL)
	urlHash := URLHash(canonical)

	existing, err := u.repo.GetByURLHash(ctx, urlHash)
	switch {
	case err == nil:
		return false, u.refresh(ctx, existing, c, canonical)
	case !errors.Is(err, ports.ErrNotFound):
		return false, fmt.Errorf("lookup %s: %w", urlHash, err)
	}

	title := strings.TrimSpace(c.Title)
	cls := u.classify(ctx, title, c.Summary, c.SourceID)
	article := domain.Article{
		ID:             u.newID(),
		URLHash:        urlHash,
		CleanHash:      CleanHash(title, c.Summary),
		Title:          title,
		URL:            strings.TrimSpace(c.URL),
		CanonicalURL:   canonical,
		Summary:        c.Summary,
		PublishTime:    parsePublishTime(c.PublishTime),
		FirstSeenAt:    u.now().UTC(),
		SourceID:       c.SourceID,
		SourceType:     c.SourceType,
		Via:            c.Via,
		HeatRank:       c.HeatRank,
		NewsType:       cls.NewsType,
		TypeConfidence: &cls.Confidence,
	}

	err = u.repo.Insert(ctx, article)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ports.ErrDuplicate) {
		return false, fmt.Errorf("insert %s: %w", urlHash, err)
	}

	// Lost an insert race: the record exists now, apply the candidate as an update.
	existing, err = u.repo.GetByURLHash(ctx, urlHash)
	if err != nil {
		return false, fmt.Errorf("reload %s after conflict: %w", urlHash, err)
	}
	return false, u.refresh(ctx, existing, c, canonical)
}

func (u *Upserter) refresh(ctx context.Context, existing domain.Article, c domain.Candidate, canonical string) error {
	updated := existing
	updated.Title = strings.TrimSpace(c.Title)
	updated.URL = strings.TrimSpace(c.URL)
	updated.CanonicalURL = canonical
	updated.SourceID = c.SourceID
	updated.SourceType = c.SourceType
	// Optional fields the candidate leaves out keep their stored values.
	if c.Summary != "" {
		updated.Summary = c.Summary
	}
	if ts := parsePublishTime(c.PublishTime); ts != nil {
		updated.PublishTime = ts
	}
	if c.Via != "" {
		updated.Via = c.Via
	}
	if c.HeatRank != nil {
		updated.HeatRank = c.HeatRank
	}
	updated.CleanHash = CleanHash(updated.Title, updated.Summary)

	if !existing.Classified() {
		cls := u.classify(ctx, updated.Title, updated.Summary, updated.SourceID)
		updated.NewsType = cls.NewsType
		updated.TypeConfidence = &cls.Confidence
	}

	if err := u.repo.UpdateByURLHash(ctx, updated); err != nil {
		return fmt.Errorf("update %s: %w", existing.URLHash, err)
	}
	return nil
}

func (u *Upserter) classify(ctx context.Context, title, summary, sourceID string) domain.Classification {
	cls := u.rules.Classify(title, summary, sourceID)
	if cls.Confidence >= classify.LowConfidence || u.fallback == nil {
		return cls
	}

	fctx, cancel := context.WithTimeout(ctx, u.fallbackTimeout)
	defer cancel()

	if got, ok := u.fallback.ClassifyFallback(fctx, title, summary).Get(); ok {
		u.observeFallback("classified")
		return got
	}
	u.observeFallback("unavailable")
	return cls
}

func (u *Upserter) observeFallback(outcome string) {
	if u.metrics != nil {
		u.metrics.ObserveFallback(outcome)
	}
}

func (u *Upserter) warn(msg string, args ...any) {
	if u.logger != nil {
		u.logger.Warn(msg, args...)
	}
}
