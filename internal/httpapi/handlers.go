package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
	"HotspotLite/internal/usecase"
)

const (
	defaultFeedLimit   = 100
	defaultEventsLimit = 100
	maxLimit           = 500
)

type runSummary struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Sources    int       `json:"sources"`
	Failed     int       `json:"failedSources"`
	Processed  int       `json:"processed"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Dropped    int       `json:"dropped"`
	Scored     int       `json:"scored"`
	Events     int       `json:"events"`
}

func summarize(res usecase.RunResult) runSummary {
	failed := 0
	for _, src := range res.Sources {
		if src.Err != nil {
			failed++
		}
	}
	return runSummary{
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Sources:    len(res.Sources),
		Failed:     failed,
		Processed:  res.Upsert.Processed,
		Inserted:   res.Upsert.Inserted,
		Updated:    res.Upsert.Updated,
		Dropped:    res.Upsert.Dropped,
		Scored:     res.Scored,
		Events:     res.Events,
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	data := map[string]any{
		"ok":   true,
		"time": s.now().UTC(),
	}
	if s.status != nil {
		if res, ok := s.status.LastRun(); ok {
			data["lastRun"] = summarize(res)
		}
	}
	return success(c, data)
}

func (s *Server) handleFeed(c echo.Context) error {
	q := ports.ArticleQuery{
		SourceID:  strings.TrimSpace(c.QueryParam("sourceId")),
		NewsType:  strings.TrimSpace(c.QueryParam("newsType")),
		TitleLike: strings.TrimSpace(c.QueryParam("q")),
		Limit:     parseLimit(c.QueryParam("limit"), defaultFeedLimit),
		ByRecency: c.QueryParam("sort") == "recent",
	}

	fieldErrors := map[string]string{}
	if raw := strings.TrimSpace(c.QueryParam("type")); raw != "" {
		st := domain.SourceType(strings.ToUpper(raw))
		if !st.Valid() {
			fieldErrors["type"] = "must be one of A, B, C, D, E"
		}
		q.SourceType = st
	}
	if raw := strings.TrimSpace(c.QueryParam("sinceMinutes")); raw != "" {
		mins, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fieldErrors["sinceMinutes"] = "must be a number"
		} else if mins > 0 {
			q.Since = s.now().Add(-time.Duration(mins * float64(time.Minute)))
		}
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rows, err := s.store.QueryArticles(c.Request().Context(), q)
	if err != nil {
		s.logger.Error("query feed failed", "error", err)
		return internalError(c, "Failed to load feed")
	}
	if rows == nil {
		rows = []domain.Article{}
	}
	return success(c, rows)
}

func (s *Server) handleItem(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	article, err := s.store.GetArticle(c.Request().Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		return failNotFound(c, "Article not found")
	}
	if err != nil {
		s.logger.Error("load article failed", "id", id, "error", err)
		return internalError(c, "Failed to load article")
	}
	return success(c, article)
}

func (s *Server) handleEvents(c echo.Context) error {
	events, err := s.store.ListEvents(c.Request().Context(), parseLimit(c.QueryParam("limit"), defaultEventsLimit))
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		return internalError(c, "Failed to load events")
	}
	if events == nil {
		events = []domain.Event{}
	}
	return success(c, events)
}

func (s *Server) handleSources(c echo.Context) error {
	if s.status == nil {
		return success(c, []usecase.SourceStatus{})
	}
	return success(c, s.status.Snapshot())
}

func (s *Server) handleRecluster(c echo.Context) error {
	if s.runner == nil {
		return fail(c, http.StatusServiceUnavailable, "Clustering is not available", nil)
	}
	n, err := s.runner.Recluster(c.Request().Context())
	if err != nil {
		s.logger.Error("recluster failed", "error", err)
		return internalError(c, "Failed to rebuild events")
	}
	return success(c, map[string]any{"ok": true, "events": n})
}

// parseLimit falls back to def for missing or unusable values and caps at maxLimit.
func parseLimit(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
