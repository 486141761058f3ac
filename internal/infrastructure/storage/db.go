package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects placeholder style and driver quirks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured driver name to a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectPostgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return db, nil
	case DialectSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One writer keeps the single-run assumption of the pipeline honest.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

const urlHashIndex = "articles_url_hash_idx"

// isURLHashConflict reports a unique violation on articles.url_hash only. Other
// constraint failures, such as an id collision, stay ordinary errors.
func isURLHashConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == urlHashIndex
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE && strings.Contains(liteErr.Error(), "articles.url_hash")
	}
	return false
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id              TEXT PRIMARY KEY,
		url_hash        TEXT NOT NULL,
		clean_hash      TEXT NOT NULL,
		title           TEXT NOT NULL,
		url             TEXT NOT NULL,
		canonical_url   TEXT NOT NULL,
		summary         TEXT NOT NULL DEFAULT '',
		publish_time    BIGINT NULL,
		first_seen_at   BIGINT NOT NULL,
		source_id       TEXT NOT NULL DEFAULT '',
		source_type     TEXT NOT NULL DEFAULT '',
		via             TEXT NOT NULL DEFAULT '',
		heat_rank       INTEGER NULL,
		news_type       TEXT NOT NULL DEFAULT '',
		type_confidence DOUBLE PRECISION NULL,
		credibility     DOUBLE PRECISION NOT NULL DEFAULT 0,
		score           DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + urlHashIndex + ` ON articles (url_hash)`,
	`CREATE INDEX IF NOT EXISTS articles_first_seen_idx ON articles (first_seen_at)`,
	`CREATE INDEX IF NOT EXISTS articles_source_type_idx ON articles (source_type)`,
	`CREATE TABLE IF NOT EXISTS events (
		title      TEXT NOT NULL,
		member_ids TEXT NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS events_title_idx ON events (title)`,
}
