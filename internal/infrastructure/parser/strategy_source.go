package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"HotspotLite/internal/config"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
	"HotspotLite/internal/scanner"
)

const defaultFetchConcurrency = 4

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	sources     []config.SourceConfig
	concurrency int
	logger      *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
// Disabled sources are dropped here.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, concurrency int, log *slog.Logger) *StrategySource {
	enabled := make([]config.SourceConfig, 0, len(sources))
	for _, src := range sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &StrategySource{
		registry:    reg,
		sources:     enabled,
		concurrency: concurrency,
		logger:      log,
	}
}

// FetchAll runs every enabled source concurrently. The result holds one batch
// per source in configuration order; a failing source only fails its own batch.
func (s *StrategySource) FetchAll(ctx context.Context) []domain.Batch {
	batches := make([]domain.Batch, len(s.sources))
	s.debug("fetch all", "sources", len(s.sources), "concurrency", s.concurrency)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			batches[i] = s.fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

func (s *StrategySource) fetch(ctx context.Context, src config.SourceConfig) domain.Batch {
	start := time.Now()
	batch := domain.Batch{SourceID: src.ID, Kind: src.Kind}

	if s.registry == nil {
		batch.Err = fmt.Errorf("scanner registry is not configured")
		return batch
	}
	strategy, err := s.registry.Resolve(src.Kind)
	if err != nil {
		batch.Err = fmt.Errorf("source %s: %w", src.ID, err)
		return batch
	}

	sourceType := domain.SourceType(strings.ToUpper(src.Type))
	results, err := strategy.Scan(ctx, scanner.Request{
		SourceID:     src.ID,
		Entry:        src.Entry,
		SourceType:   sourceType,
		AllowedHosts: src.AllowedHosts,
		HrefPatterns: src.HrefPatterns,
	})
	if err != nil {
		batch.Err = fmt.Errorf("scan source %s: %w", src.ID, err)
		return batch
	}

	for i := range results {
		if results[i].SourceID == "" {
			results[i].SourceID = src.ID
		}
		if results[i].SourceType == "" {
			results[i].SourceType = sourceType
		}
	}
	batch.Candidates = results
	s.debug("source produced candidates", "source", src.ID, "kind", src.Kind, "count", len(results), "took", time.Since(start))
	return batch
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
