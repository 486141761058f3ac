package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"HotspotLite/internal/cluster"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
	"HotspotLite/internal/scoring"
)

const (
	defaultClusterLimit     = 200
	defaultClusterThreshold = 0.65
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source           ports.CandidateSource
	Articles         ports.ArticleRepository
	Events           ports.EventRepository
	Rules            RuleClassifier
	Fallback         ports.FallbackClassifier
	FallbackTimeout  time.Duration
	Metrics          ports.PipelineMetrics
	Logger           *slog.Logger
	Now              func() time.Time
	NewID            func() string
	ClusterLimit     int
	ClusterThreshold float64
}

// Pipeline implements one ingestion run: fetch, upsert, score, cluster.
type Pipeline struct {
	source    ports.CandidateSource
	articles  ports.ArticleRepository
	upserter  *Upserter
	clusterer *cluster.Clusterer
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time
	limit     int
	threshold float64
}

// SourceRun is the per-source outcome of a run.
type SourceRun struct {
	ID    string
	Kind  string
	Count int
	Err   error
	At    time.Time
}

// RunResult is returned from every run instead of mutating shared state.
type RunResult struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Sources     []SourceRun
	Upsert      UpsertResult
	Scored      int
	ScoreErrors int
	Events      int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	limit := deps.ClusterLimit
	if limit <= 0 {
		limit = defaultClusterLimit
	}
	threshold := deps.ClusterThreshold
	if threshold <= 0 {
		threshold = defaultClusterThreshold
	}

	var clusterLogger *slog.Logger
	if deps.Logger != nil {
		clusterLogger = deps.Logger.With("stage", "cluster")
	}

	return &Pipeline{
		source:   deps.Source,
		articles: deps.Articles,
		upserter: NewUpserter(UpserterDeps{
			Repository:      deps.Articles,
			Rules:           deps.Rules,
			Fallback:        deps.Fallback,
			FallbackTimeout: deps.FallbackTimeout,
			Metrics:         deps.Metrics,
			Logger:          deps.Logger,
			Now:             now,
			NewID:           deps.NewID,
		}),
		clusterer: cluster.NewClusterer(deps.Articles, deps.Events, clusterLogger, now),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       now,
		limit:     limit,
		threshold: threshold,
	}
}

// Run fetches every configured source and processes the batches.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	var batches []domain.Batch
	if p.source != nil {
		batches = p.source.FetchAll(ctx)
	}
	return p.Process(ctx, batches)
}

// Process runs the sequential part of a run over already fetched batches.
func (p *Pipeline) Process(ctx context.Context, batches []domain.Batch) (RunResult, error) {
	result := RunResult{StartedAt: p.now().UTC()}
	status := "success"
	defer func() {
		if p.metrics != nil {
			p.metrics.ObserveRun(status, p.now().Sub(result.StartedAt))
		}
	}()

	for _, batch := range batches {
		run := SourceRun{ID: batch.SourceID, Kind: batch.Kind, Count: len(batch.Candidates), Err: batch.Err, At: p.now().UTC()}
		result.Sources = append(result.Sources, run)
		if p.metrics != nil {
			p.metrics.ObserveFetch(batch.SourceID, batch.Err == nil, len(batch.Candidates))
		}
		if batch.Err != nil {
			p.warn("source fetch failed", "source", batch.SourceID, "kind", batch.Kind, "error", batch.Err)
			continue
		}
		result.Upsert.merge(p.upserter.Upsert(ctx, batch.Candidates))
	}

	scored, scoreErrs, err := p.Score(ctx)
	result.Scored, result.ScoreErrors = scored, scoreErrs
	if err != nil {
		status = "failure"
		result.FinishedAt = p.now().UTC()
		return result, fmt.Errorf("score articles: %w", err)
	}

	groups, err := p.clusterer.Rebuild(ctx, p.limit, p.threshold)
	result.Events = len(groups)
	result.FinishedAt = p.now().UTC()
	if err != nil {
		status = "failure"
		return result, fmt.Errorf("rebuild clusters: %w", err)
	}

	if p.logger != nil {
		p.logger.Info("pipeline run done",
			"sources", len(result.Sources),
			"processed", result.Upsert.Processed,
			"inserted", result.Upsert.Inserted,
			"scored", result.Scored,
			"events", result.Events,
			"took", result.FinishedAt.Sub(result.StartedAt))
	}
	return result, nil
}

// Score recomputes credibility and score for every stored article. Anchors are
// rebuilt on each call because the high-trust title set grows between runs.
func (p *Pipeline) Score(ctx context.Context) (int, int, error) {
	titles, err := p.articles.ListTitlesBySourceTypes(ctx, anchorTiers())
	if err != nil {
		return 0, 0, fmt.Errorf("load anchor titles: %w", err)
	}
	anchors := scoring.NewAnchorSet(titles)

	rows, err := p.articles.ListArticles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list articles: %w", err)
	}

	now := p.now()
	scored, failed := 0, 0
	for _, row := range rows {
		in := scoring.InputFor(row, anchors)
		score, _ := scoring.Score(in, now)
		credibility := 0.0
		if in.Anchored {
			credibility = 1
		}
		if err := p.articles.UpdateScore(ctx, row.ID, credibility, score); err != nil {
			failed++
			p.warn("score update failed", "id", row.ID, "error", err)
			continue
		}
		scored++
	}
	return scored, failed, nil
}

// Recluster rebuilds events without ingesting anything.
func (p *Pipeline) Recluster(ctx context.Context) (int, error) {
	groups, err := p.clusterer.Rebuild(ctx, p.limit, p.threshold)
	return len(groups), err
}

func anchorTiers() []domain.SourceType {
	return []domain.SourceType{domain.SourceTypeA, domain.SourceTypeC}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
