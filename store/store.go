// Package store is the embedded persistence layer for a knowledge base:
// page metadata, outbound links, crawl job bookkeeping, the enrichment
// cache, and a full-text index over page titles and paths.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Page is a row in the pages table.
type Page struct {
	ID          string
	KbID        string
	URL         string
	Path        string
	Title       string
	ContentHash string
	FetchedAt   time.Time
	StatusCode  int
	ContentLen  int
}

// Link is a row in the links table.
type Link struct {
	ID         int64
	FromPageID string
	ToURL      string
	Kind       string
}

// CrawlJob is a row in the crawl_jobs table.
type CrawlJob struct {
	ID         string
	KbID       string
	StartedAt  time.Time
	FinishedAt *time.Time
	StatsJSON  string
}

// EnrichmentCacheEntry is a row in the enrichment_cache table.
type EnrichmentCacheEntry struct {
	KbID         string
	ArtifactType string
	PromptHash   string
	ModelID      string
	ResultJSON   string
	CreatedAt    time.Time
}

// SearchResult is one hit from FullTextSearch.
type SearchResult struct {
	Path  string
	Title string
	Score float64
}

// Store wraps the SQLite database backing a single knowledge base.
type Store struct {
	db       *sql.DB
	readOnly bool
}

// ErrReadOnly is returned by every write operation on a read-only Store.
var ErrReadOnly = fmt.Errorf("store: opened read-only")

// New opens (or creates, unless readOnly) the SQLite database at dbPath and
// applies any pending schema migrations.
func New(dbPath string, readOnly bool) (*Store, error) {
	if !readOnly {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	if readOnly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, readOnly: readOnly}

	if !readOnly {
		if err := s.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.readOnly {
		return ErrReadOnly
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- kb ---

func (s *Store) CreateKB(ctx context.Context, id, name, sourceURL string, now time.Time) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb (id, name, source_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, sourceURL, now, now)
	return err
}

func (s *Store) TouchKB(ctx context.Context, id string, now time.Time) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, `UPDATE kb SET updated_at = ? WHERE id = ?`, now, id)
	return err
}

// --- pages ---

// UpsertPage inserts or replaces a page keyed by (kb_id, path), returning
// the page id (preserved across updates when already present).
func (s *Store) UpsertPage(ctx context.Context, p Page) (string, error) {
	if s.readOnly {
		return "", ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, kb_id, url, path, title, content_hash, fetched_at, status_code, content_len)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kb_id, path) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at,
			status_code = excluded.status_code,
			content_len = excluded.content_len
	`, p.ID, p.KbID, p.URL, p.Path, p.Title, p.ContentHash, p.FetchedAt, p.StatusCode, p.ContentLen)
	if err != nil {
		return "", err
	}

	var id string
	row := s.db.QueryRowContext(ctx, `SELECT id FROM pages WHERE kb_id = ? AND path = ?`, p.KbID, p.Path)
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPageByPath(ctx context.Context, kbID, path string) (*Page, error) {
	p := &Page{}
	var title sql.NullString
	var statusCode, contentLen sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kb_id, url, path, title, content_hash, fetched_at, status_code, content_len
		FROM pages WHERE kb_id = ? AND path = ?
	`, kbID, path).Scan(&p.ID, &p.KbID, &p.URL, &p.Path, &title, &p.ContentHash, &p.FetchedAt, &statusCode, &contentLen)
	if err != nil {
		return nil, err
	}
	p.Title = title.String
	p.StatusCode = int(statusCode.Int64)
	p.ContentLen = int(contentLen.Int64)
	return p, nil
}

func (s *Store) ListPages(ctx context.Context, kbID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kb_id, url, path, title, content_hash, fetched_at, status_code, content_len
		FROM pages WHERE kb_id = ? ORDER BY path
	`, kbID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		var title sql.NullString
		var statusCode, contentLen sql.NullInt64
		if err := rows.Scan(&p.ID, &p.KbID, &p.URL, &p.Path, &title, &p.ContentHash, &p.FetchedAt, &statusCode, &contentLen); err != nil {
			return nil, err
		}
		p.Title = title.String
		p.StatusCode = int(statusCode.Int64)
		p.ContentLen = int(contentLen.Int64)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *Store) DeletePage(ctx context.Context, kbID, path string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE kb_id = ? AND path = ?`, kbID, path)
	return err
}

// --- links ---

func (s *Store) InsertLink(ctx context.Context, l Link) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links (from_page_id, to_url, kind) VALUES (?, ?, ?)`,
		l.FromPageID, l.ToURL, l.Kind)
	return err
}

func (s *Store) ListLinks(ctx context.Context, fromPageID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_page_id, to_url, kind FROM links WHERE from_page_id = ?`, fromPageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		var kind sql.NullString
		if err := rows.Scan(&l.ID, &l.FromPageID, &l.ToURL, &kind); err != nil {
			return nil, err
		}
		l.Kind = kind.String
		links = append(links, l)
	}
	return links, rows.Err()
}

// --- crawl_jobs ---

func (s *Store) InsertCrawlJob(ctx context.Context, j CrawlJob) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_jobs (id, kb_id, started_at) VALUES (?, ?, ?)`,
		j.ID, j.KbID, j.StartedAt)
	return err
}

func (s *Store) CompleteCrawlJob(ctx context.Context, id string, finishedAt time.Time, statsJSON string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_jobs SET finished_at = ?, stats_json = ? WHERE id = ?`,
		finishedAt, statsJSON, id)
	return err
}

// --- enrichment_cache ---

func (s *Store) GetEnrichmentCache(ctx context.Context, kbID, artifactType, promptHash, modelID string) (string, bool, error) {
	var result string
	err := s.db.QueryRowContext(ctx, `
		SELECT result_json FROM enrichment_cache
		WHERE kb_id = ? AND artifact_type = ? AND prompt_hash = ? AND model_id = ?
	`, kbID, artifactType, promptHash, modelID).Scan(&result)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result, true, nil
}

func (s *Store) SetEnrichmentCache(ctx context.Context, e EnrichmentCacheEntry) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichment_cache (kb_id, artifact_type, prompt_hash, model_id, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kb_id, artifact_type, prompt_hash, model_id) DO UPDATE SET
			result_json = excluded.result_json,
			created_at = excluded.created_at
	`, e.KbID, e.ArtifactType, e.PromptHash, e.ModelID, e.ResultJSON, e.CreatedAt)
	return err
}

func (s *Store) InvalidateEnrichmentCache(ctx context.Context, kbID string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_cache WHERE kb_id = ?`, kbID)
	return err
}

// --- search ---

// FullTextSearch ranks pages by BM25 relevance over (title, path).
func (s *Store) FullTextSearch(ctx context.Context, kbID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.path, p.title, bm25(pages_fts) AS score
		FROM pages_fts
		JOIN pages p ON p.rowid = pages_fts.rowid
		WHERE pages_fts MATCH ? AND p.kb_id = ?
		ORDER BY score
		LIMIT ?
	`, query, kbID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var title sql.NullString
		if err := rows.Scan(&r.Path, &title, &r.Score); err != nil {
			return nil, err
		}
		r.Title = title.String
		results = append(results, r)
	}
	return results, rows.Err()
}
