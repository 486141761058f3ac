// Package cluster groups recent articles into events by title similarity.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

const fullClusterSize = 5.0

// Group is an open cluster during a rebuild pass.
type Group struct {
	Title     string
	MemberIDs []string
}

// Score normalizes the member count to [0, 1].
func (g Group) Score() float64 {
	return math.Min(1, float64(len(g.MemberIDs))/fullClusterSize)
}

// Build selects the limit most recently first-seen articles and assigns each, in recency
// order, to the first group whose representative title is at least threshold similar.
func Build(articles []domain.Article, limit int, threshold float64) []Group {
	window := make([]domain.Article, len(articles))
	copy(window, articles)
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].FirstSeenAt.After(window[j].FirstSeenAt)
	})
	if limit >= 0 && len(window) > limit {
		window = window[:limit]
	}

	var groups []Group
	for _, art := range window {
		placed := false
		for i := range groups {
			if Similarity(art.Title, groups[i].Title) >= threshold {
				groups[i].MemberIDs = append(groups[i].MemberIDs, art.ID)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, Group{Title: art.Title, MemberIDs: []string{art.ID}})
		}
	}
	return groups
}

// Clusterer rebuilds events from the stored article set.
type Clusterer struct {
	articles ports.ArticleRepository
	events   ports.EventRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewClusterer wires the repositories. now defaults to time.Now.
func NewClusterer(articles ports.ArticleRepository, events ports.EventRepository, logger *slog.Logger, now func() time.Time) *Clusterer {
	if now == nil {
		now = time.Now
	}
	return &Clusterer{articles: articles, events: events, logger: logger, now: now}
}

// Rebuild upserts one event per group produced from the recent window. Events not
// produced in this pass are left untouched. A failed upsert does not stop the pass.
func (c *Clusterer) Rebuild(ctx context.Context, limit int, threshold float64) ([]Group, error) {
	rows, err := c.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	groups := Build(rows, limit, threshold)
	updatedAt := c.now().UTC()
	var errs []error
	for _, g := range groups {
		event := domain.Event{
			Title:     g.Title,
			MemberIDs: g.MemberIDs,
			Score:     g.Score(),
			UpdatedAt: updatedAt,
		}
		if err := c.events.UpsertEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("upsert event %q: %w", g.Title, err))
		}
	}

	if c.logger != nil {
		c.logger.Info("clusters rebuilt", "window", min(len(rows), max(limit, 0)), "events", len(groups), "threshold", threshold)
	}
	return groups, errors.Join(errs...)
}
