package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 500
)

var articleColumns = []string{
	"id", "url_hash", "clean_hash", "title", "url", "canonical_url", "summary",
	"publish_time", "first_seen_at", "source_id", "source_type", "via",
	"heat_rank", "news_type", "type_confidence", "credibility", "score",
}

// SQLRepository persists articles and events into Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

var (
	_ ports.ArticleRepository = (*SQLRepository)(nil)
	_ ports.EventRepository   = (*SQLRepository)(nil)
	_ ports.ReadRepository    = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB implementation.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
	}
}

// Migrate creates the tables and indexes when missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetByURLHash loads the article stored under the hash or returns ports.ErrNotFound.
func (r *SQLRepository) GetByURLHash(ctx context.Context, urlHash string) (domain.Article, error) {
	return r.getOne(ctx, sq.Eq{"url_hash": urlHash})
}

// GetArticle loads an article by id or returns ports.ErrNotFound.
func (r *SQLRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *SQLRepository) getOne(ctx context.Context, where sq.Sqlizer) (domain.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).From("articles").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build select: %w", err)
	}
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("select article: %w", err)
	}
	return a, nil
}

// Insert stores a new article. A url_hash collision yields ports.ErrDuplicate.
func (r *SQLRepository) Insert(ctx context.Context, a domain.Article) error {
	query, args, err := r.sb.Insert("articles").
		Columns(articleColumns...).
		Values(
			a.ID, a.URLHash, a.CleanHash, a.Title, a.URL, a.CanonicalURL, a.Summary,
			nullableMillis(a.PublishTime), a.FirstSeenAt.UnixMilli(), a.SourceID, string(a.SourceType), a.Via,
			nullableInt(a.HeatRank), a.NewsType, nullableFloat(a.TypeConfidence), a.Credibility, a.Score,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isURLHashConflict(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// UpdateByURLHash rewrites the mutable fields of the stored article.
// id, url_hash and first_seen_at are never touched.
func (r *SQLRepository) UpdateByURLHash(ctx context.Context, a domain.Article) error {
	query, args, err := r.sb.Update("articles").
		SetMap(map[string]any{
			"clean_hash":      a.CleanHash,
			"title":           a.Title,
			"url":             a.URL,
			"canonical_url":   a.CanonicalURL,
			"summary":         a.Summary,
			"publish_time":    nullableMillis(a.PublishTime),
			"source_id":       a.SourceID,
			"source_type":     string(a.SourceType),
			"via":             a.Via,
			"heat_rank":       nullableInt(a.HeatRank),
			"news_type":       a.NewsType,
			"type_confidence": nullableFloat(a.TypeConfidence),
		}).
		Where(sq.Eq{"url_hash": a.URLHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ListArticles returns every stored article, newest first.
func (r *SQLRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	return r.selectArticles(ctx, r.sb.Select(articleColumns...).From("articles").OrderBy("first_seen_at DESC", "id"))
}

// ListTitlesBySourceTypes returns titles of articles stored with any of the tiers.
func (r *SQLRepository) ListTitlesBySourceTypes(ctx context.Context, types []domain.SourceType) ([]string, error) {
	if len(types) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(types))
	for _, t := range types {
		values = append(values, string(t))
	}
	query, args, err := r.sb.Select("title").From("articles").Where(sq.Eq{"source_type": values}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select titles: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return titles, nil
}

// UpdateScore persists the credibility and score computed by the scorer.
func (r *SQLRepository) UpdateScore(ctx context.Context, id string, credibility, score float64) error {
	query, args, err := r.sb.Update("articles").
		Set("credibility", credibility).
		Set("score", score).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build score update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

// UpsertEvent overwrites the event stored under the same title or inserts a new one.
func (r *SQLRepository) UpsertEvent(ctx context.Context, e domain.Event) error {
	members, err := json.Marshal(memberIDs(e.MemberIDs))
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Update("events").
		Set("member_ids", string(members)).
		Set("score", e.Score).
		Set("updated_at", e.UpdatedAt.UnixMilli()).
		Where(sq.Eq{"title": e.Title}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build event update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		query, args, err = r.sb.Insert("events").
			Columns("title", "member_ids", "score", "updated_at").
			Values(e.Title, string(members), e.Score, e.UpdatedAt.UnixMilli()).
			ToSql()
		if err != nil {
			return fmt.Errorf("build event insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// QueryArticles serves the feed endpoint.
func (r *SQLRepository) QueryArticles(ctx context.Context, q ports.ArticleQuery) ([]domain.Article, error) {
	sel := r.sb.Select(articleColumns...).From("articles")
	if q.SourceID != "" {
		sel = sel.Where(sq.Eq{"source_id": q.SourceID})
	}
	if q.SourceType != "" {
		sel = sel.Where(sq.Eq{"source_type": string(q.SourceType)})
	}
	if q.NewsType != "" {
		sel = sel.Where(sq.Eq{"news_type": q.NewsType})
	}
	if term := strings.TrimSpace(q.TitleLike); term != "" {
		pattern := "%" + term + "%"
		if r.dialect == DialectPostgres {
			sel = sel.Where(sq.ILike{"title": pattern})
		} else {
			sel = sel.Where(sq.Like{"title": pattern})
		}
	}
	if !q.Since.IsZero() {
		sel = sel.Where(sq.GtOrEq{"first_seen_at": q.Since.UnixMilli()})
	}
	if q.ByRecency {
		sel = sel.OrderBy("first_seen_at DESC", "id")
	} else {
		sel = sel.OrderBy("score DESC", "first_seen_at DESC", "id")
	}
	sel = sel.Limit(uint64(ClampLimit(q.Limit)))

	return r.selectArticles(ctx, sel)
}

// ListEvents returns events, most recently updated first.
func (r *SQLRepository) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	query, args, err := r.sb.Select("title", "member_ids", "score", "updated_at").
		From("events").
		OrderBy("updated_at DESC", "title").
		Limit(uint64(ClampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			members string
			updated int64
		)
		if err := rows.Scan(&e.Title, &members, &e.Score, &updated); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &e.MemberIDs); err != nil {
			return nil, fmt.Errorf("decode members of %q: %w", e.Title, err)
		}
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return events, nil
}

// ClampLimit applies the default page size and the hard cap of the read API.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func (r *SQLRepository) selectArticles(ctx context.Context, sel sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a          domain.Article
		sourceType string
		publish    sql.NullInt64
		firstSeen  int64
		heatRank   sql.NullInt64
		confidence sql.NullFloat64
	)
	err := row.Scan(
		&a.ID, &a.URLHash, &a.CleanHash, &a.Title, &a.URL, &a.CanonicalURL, &a.Summary,
		&publish, &firstSeen, &a.SourceID, &sourceType, &a.Via,
		&heatRank, &a.NewsType, &confidence, &a.Credibility, &a.Score,
	)
	if err != nil {
		return domain.Article{}, err
	}

	a.SourceType = domain.SourceType(sourceType)
	a.FirstSeenAt = time.UnixMilli(firstSeen).UTC()
	if publish.Valid {
		t := time.UnixMilli(publish.Int64).UTC()
		a.PublishTime = &t
	}
	if heatRank.Valid {
		v := int(heatRank.Int64)
		a.HeatRank = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		a.TypeConfidence = &v
	}
	return a, nil
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func memberIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
