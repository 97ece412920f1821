package crawler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/contextkb"
	"github.com/brunobiangulo/contextkb/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "kb.db"), false)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateKB(t.Context(), "kb-1", "Example", "https://example.com", time.Now().UTC()); err != nil {
		t.Fatalf("CreateKB: %v", err)
	}
	return st
}

func page(title string, links ...string) string {
	body := fmt.Sprintf("<html><head><title>%s</title></head><body><h1>%s</h1>", title, title)
	for _, l := range links {
		body += fmt.Sprintf(`<a href="%s">link</a>`, l)
	}
	return body + "</body></html>"
}

func TestCrawlFetchesLinkedPagesWithinScope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/guide/one", "/guide/two"))
	})
	mux.HandleFunc("/guide/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("One"))
	})
	mux.HandleFunc("/guide/two", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Two"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newTestStore(t)
	cr := NewForTesting()
	cfg := contextkb.CrawlConfig{Depth: 2, Concurrency: 2}

	summary, pages, err := cr.Crawl(t.Context(), srv.URL+"/", "kb-1", st, cfg)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if summary.PagesFetched != 3 {
		t.Fatalf("expected 3 pages fetched, got %d (errors=%v)", summary.PagesFetched, summary.Errors)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 fetched pages returned, got %d", len(pages))
	}

	stored, err := st.ListPages(t.Context(), "kb-1")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 pages persisted, got %d", len(stored))
	}
}

func TestCrawlRespectsDepthCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/a"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("A", "/a/b"))
	})
	mux.HandleFunc("/a/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("B", "/a/b/c"))
	})
	mux.HandleFunc("/a/b/c", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("C"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newTestStore(t)
	cr := NewForTesting()
	cfg := contextkb.CrawlConfig{Depth: 1, Concurrency: 2}

	summary, _, err := cr.Crawl(t.Context(), srv.URL+"/", "kb-1", st, cfg)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	// depth 0 (home) + depth 1 (/a) = 2 pages; /a/b and /a/b/c must not be fetched.
	if summary.PagesFetched != 2 {
		t.Fatalf("expected depth cap to limit fetch to 2 pages, got %d", summary.PagesFetched)
	}
}

func TestCrawlDeduplicatesRepeatedLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/a", "/a", "/a"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("A", "/"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newTestStore(t)
	cr := NewForTesting()
	cfg := contextkb.CrawlConfig{Depth: 3, Concurrency: 2}

	summary, _, err := cr.Crawl(t.Context(), srv.URL+"/", "kb-1", st, cfg)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if summary.PagesFetched != 2 {
		t.Fatalf("expected dedup to limit fetch to 2 distinct pages, got %d", summary.PagesFetched)
	}
}
