package ports

import (
	"context"
	"time"

	"HotspotLite/internal/domain"
)

// CandidateSource pulls one batch per configured feed.
type CandidateSource interface {
	FetchAll(ctx context.Context) []domain.Batch
}

// ArticleRepository is the narrow persistence contract the pipeline needs for articles.
type ArticleRepository interface {
	GetByURLHash(ctx context.Context, urlHash string) (domain.Article, error)
	Insert(ctx context.Context, article domain.Article) error
	UpdateByURLHash(ctx context.Context, article domain.Article) error
	ListArticles(ctx context.Context) ([]domain.Article, error)
	ListTitlesBySourceTypes(ctx context.Context, types []domain.SourceType) ([]string, error)
	UpdateScore(ctx context.Context, id string, credibility, score float64) error
}

// EventRepository persists clusters keyed by representative title.
type EventRepository interface {
	UpsertEvent(ctx context.Context, event domain.Event) error
}

// ArticleQuery filters and orders reads made by the API.
type ArticleQuery struct {
	SourceID   string
	SourceType domain.SourceType
	NewsType   string
	TitleLike  string
	Since      time.Time
	Limit      int
	ByRecency  bool
}

// ReadRepository serves the read API.
type ReadRepository interface {
	QueryArticles(ctx context.Context, q ArticleQuery) ([]domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	ListEvents(ctx context.Context, limit int) ([]domain.Event, error)
}

// FallbackClassifier is the optional external classification capability.
// Implementations never return errors; failures surface as domain.Unavailable().
type FallbackClassifier interface {
	ClassifyFallback(ctx context.Context, title, summary string) domain.FallbackOutcome
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// PipelineMetrics receives observability signals from a pipeline run.
type PipelineMetrics interface {
	ObserveUpsert(processed, inserted, dropped, failed int)
	ObserveFallback(outcome string)
	ObserveFetch(sourceID string, ok bool, count int)
	ObserveRun(status string, elapsed time.Duration)
}
