//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "kb.db"), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePage(kbID, path string) Page {
	return Page{
		ID:          "page-" + path,
		KbID:        kbID,
		URL:         "https://example.com/" + path,
		Path:        path,
		Title:       "Title " + path,
		ContentHash: "hash-" + path,
		FetchedAt:   time.Now().UTC(),
		StatusCode:  200,
		ContentLen:  1024,
	}
}

func TestCreateAndTouchKB(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateKB(ctx, "kb-1", "Example Docs", "https://example.com", now); err != nil {
		t.Fatalf("CreateKB: %v", err)
	}
	if err := s.TouchKB(ctx, "kb-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("TouchKB: %v", err)
	}
}

func TestUpsertPageInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.CreateKB(ctx, "kb-1", "Example", "https://example.com", now); err != nil {
		t.Fatalf("CreateKB: %v", err)
	}

	p := samplePage("kb-1", "guide/intro")
	id, err := s.UpsertPage(ctx, p)
	if err != nil {
		t.Fatalf("UpsertPage insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty page id")
	}

	p.Title = "Updated Title"
	p.ContentHash = "hash-changed"
	id2, err := s.UpsertPage(ctx, p)
	if err != nil {
		t.Fatalf("UpsertPage update: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected stable id across upserts, got %q then %q", id, id2)
	}

	got, err := s.GetPageByPath(ctx, "kb-1", "guide/intro")
	if err != nil {
		t.Fatalf("GetPageByPath: %v", err)
	}
	if got.Title != "Updated Title" || got.ContentHash != "hash-changed" {
		t.Fatalf("unexpected page after update: %+v", got)
	}
}

func TestListPagesOrderedByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.CreateKB(ctx, "kb-1", "Example", "https://example.com", now)

	for _, path := range []string{"zeta", "alpha", "mid/page"} {
		if _, err := s.UpsertPage(ctx, samplePage("kb-1", path)); err != nil {
			t.Fatalf("UpsertPage(%s): %v", path, err)
		}
	}

	pages, err := s.ListPages(ctx, "kb-1")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[0].Path != "alpha" || pages[2].Path != "zeta" {
		t.Fatalf("expected alphabetical path order, got %v", []string{pages[0].Path, pages[1].Path, pages[2].Path})
	}
}

func TestDeletePageCascadesLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.CreateKB(ctx, "kb-1", "Example", "https://example.com", now)

	id, err := s.UpsertPage(ctx, samplePage("kb-1", "guide/intro"))
	if err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	if err := s.InsertLink(ctx, Link{FromPageID: id, ToURL: "https://example.com/guide/next"}); err != nil {
		t.Fatalf("InsertLink: %v", err)
	}

	if err := s.DeletePage(ctx, "kb-1", "guide/intro"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	links, err := s.ListLinks(ctx, id)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected links cascade-deleted, got %d", len(links))
	}
}

func TestFullTextSearchRanksMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.CreateKB(ctx, "kb-1", "Example", "https://example.com", now)

	p1 := samplePage("kb-1", "install")
	p1.Title = "Installation Guide"
	p2 := samplePage("kb-1", "config")
	p2.Title = "Configuration Reference"
	if _, err := s.UpsertPage(ctx, p1); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	if _, err := s.UpsertPage(ctx, p2); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}

	results, err := s.FullTextSearch(ctx, "kb-1", "Installation", 10)
	if err != nil {
		t.Fatalf("FullTextSearch: %v", err)
	}
	if len(results) != 1 || results[0].Path != "install" {
		t.Fatalf("expected single match on 'install', got %+v", results)
	}
}

func TestEnrichmentCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetEnrichmentCache(ctx, "kb-1", "summarize_page", "hash1", "model-a")
	if err != nil {
		t.Fatalf("GetEnrichmentCache: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss before any write")
	}

	entry := EnrichmentCacheEntry{
		KbID:         "kb-1",
		ArtifactType: "summarize_page",
		PromptHash:   "hash1",
		ModelID:      "model-a",
		ResultJSON:   `{"text":"a summary"}`,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SetEnrichmentCache(ctx, entry); err != nil {
		t.Fatalf("SetEnrichmentCache: %v", err)
	}

	got, ok, err := s.GetEnrichmentCache(ctx, "kb-1", "summarize_page", "hash1", "model-a")
	if err != nil {
		t.Fatalf("GetEnrichmentCache: %v", err)
	}
	if !ok || got != entry.ResultJSON {
		t.Fatalf("expected cache hit with stored result, got ok=%v result=%q", ok, got)
	}

	if err := s.InvalidateEnrichmentCache(ctx, "kb-1"); err != nil {
		t.Fatalf("InvalidateEnrichmentCache: %v", err)
	}
	_, ok, err = s.GetEnrichmentCache(ctx, "kb-1", "summarize_page", "hash1", "model-a")
	if err != nil {
		t.Fatalf("GetEnrichmentCache after invalidate: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss after invalidation")
	}
}

func TestCrawlJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.CreateKB(ctx, "kb-1", "Example", "https://example.com", now)

	if err := s.InsertCrawlJob(ctx, CrawlJob{ID: "job-1", KbID: "kb-1", StartedAt: now}); err != nil {
		t.Fatalf("InsertCrawlJob: %v", err)
	}
	if err := s.CompleteCrawlJob(ctx, "job-1", now.Add(time.Second), `{"pages_fetched":3}`); err != nil {
		t.Fatalf("CompleteCrawlJob: %v", err)
	}
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kb.db")

	rw, err := New(dbPath, false)
	if err != nil {
		t.Fatalf("New (rw): %v", err)
	}
	rw.Close()

	ro, err := New(dbPath, true)
	if err != nil {
		t.Fatalf("New (ro): %v", err)
	}
	defer ro.Close()

	err = ro.CreateKB(context.Background(), "kb-1", "Example", "https://example.com", time.Now().UTC())
	if err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}
