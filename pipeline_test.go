package contextkb

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/brunobiangulo/contextkb/assembler"
	"github.com/brunobiangulo/contextkb/crawler"
)

// withTestCrawler substitutes crawler.NewForTesting for the duration of one
// test, so Add/Update can reach httptest loopback fixtures; production
// always goes through the SSRF-safe crawler.New.
func withTestCrawler(t *testing.T) {
	t.Helper()
	orig := newCrawler
	newCrawler = crawler.NewForTesting
	t.Cleanup(func() { newCrawler = orig })
}

func pageHTML(title, body string, links ...string) string {
	html := fmt.Sprintf("<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p>", title, title, body)
	for _, l := range links {
		html += fmt.Sprintf(`<a href="%s">link</a>`, l)
	}
	return html + "</body></html>"
}

func TestAddCrawlsAndAssemblesKnowledgeBase(t *testing.T) {
	withTestCrawler(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("Home", "welcome", "/guide/one"))
	})
	mux.HandleFunc("/guide/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("One", "first guide page"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := PipelineConfig{
		Name:       "Example",
		OutputRoot: t.TempDir(),
		Crawl:      CrawlConfig{Depth: 1, Concurrency: 2, Mode: "crawl"},
		Enrichment: EnrichmentConfig{Skip: true},
	}

	result, err := Add(t.Context(), srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", result.PageCount)
	}

	manifest, err := assembler.LoadManifest(result.KBPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.PageCount != 2 {
		t.Fatalf("expected manifest page count 2, got %d", manifest.PageCount)
	}

	if _, err := os.Stat(filepath.Join(result.KBPath, "docs", "guide", "one.md")); err != nil {
		t.Fatalf("expected converted page on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(result.KBPath, "artifacts", "llms.txt")); err != nil {
		t.Fatalf("expected llms.txt artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(result.KBPath, "artifacts", "llms-full.txt")); err != nil {
		t.Fatalf("expected llms-full.txt artifact: %v", err)
	}
}

func TestAddDiscoversViaLlmsTxt(t *testing.T) {
	withTestCrawler(t)
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/llms.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "# Example\n\n> Summary.\n\n## Pages\n- [Intro](%s/intro)\n", srv.URL)
	})
	mux.HandleFunc("/intro", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("Intro", "getting started"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	cfg := PipelineConfig{
		Name:       "Example",
		OutputRoot: t.TempDir(),
		Crawl:      CrawlConfig{Depth: 3, Concurrency: 2, Mode: "auto"},
		Enrichment: EnrichmentConfig{Skip: true},
	}

	result, err := Add(t.Context(), srv.URL, cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("expected discovery to yield exactly the 1 linked page, got %d", result.PageCount)
	}
}

func TestAddRejectsMissingRequiredConfig(t *testing.T) {
	if _, err := Add(t.Context(), "https://example.com", PipelineConfig{}); err == nil {
		t.Fatal("expected error for missing name/output_root")
	}
}

func TestUpdateDistinguishesChangedAndUnchangedPages(t *testing.T) {
	withTestCrawler(t)
	var bodyB atomic.Value
	bodyB.Store("first guide page")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("Home", "welcome", "/a", "/b"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("A", "page a, stable"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("B", bodyB.Load().(string)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := PipelineConfig{
		Name:       "Example",
		OutputRoot: t.TempDir(),
		Crawl:      CrawlConfig{Depth: 1, Concurrency: 2, Mode: "crawl"},
		Enrichment: EnrichmentConfig{Skip: true},
	}

	added, err := Add(t.Context(), srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	bodyB.Store("second guide page, edited")

	updated, err := Update(t.Context(), added.KBID, srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Changed != 1 {
		t.Fatalf("expected exactly 1 changed page, got %d (added=%d unchanged=%d)", updated.Changed, updated.Added, updated.Unchanged)
	}
	if updated.Unchanged != 2 {
		t.Fatalf("expected exactly 2 unchanged pages, got %d", updated.Unchanged)
	}
}

func TestUpdatePrunesRemovedPages(t *testing.T) {
	withTestCrawler(t)
	var includeB atomic.Bool
	includeB.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if includeB.Load() {
			fmt.Fprint(w, pageHTML("Home", "welcome", "/a", "/b"))
		} else {
			fmt.Fprint(w, pageHTML("Home", "welcome", "/a"))
		}
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("A", "page a"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("B", "page b"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := PipelineConfig{
		Name:       "Example",
		OutputRoot: t.TempDir(),
		Crawl:      CrawlConfig{Depth: 1, Concurrency: 2, Mode: "crawl"},
		Enrichment: EnrichmentConfig{Skip: true},
		Prune:      true,
	}

	added, err := Add(t.Context(), srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.PageCount != 3 {
		t.Fatalf("expected 3 pages on initial add, got %d", added.PageCount)
	}

	includeB.Store(false)

	updated, err := Update(t.Context(), added.KBID, srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Removed != 1 {
		t.Fatalf("expected 1 removed page, got %d", updated.Removed)
	}
	if _, err := os.Stat(filepath.Join(added.KBPath, "docs", "b.md")); !os.IsNotExist(err) {
		t.Fatalf("expected pruned page file to be gone, stat err = %v", err)
	}
}

const fakeBridgeScript = `#!/bin/sh
echo '{"type":"ready"}'
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  type=$(printf '%s' "$line" | sed -n 's/.*"type":"\([^"]*\)".*/\1/p')
  if [ "$type" = "shutdown" ]; then
    exit 0
  fi
  printf '{"type":"result","id":"%s","result":{"text":"stub-text","tokens_in":1,"tokens_out":1,"model":"test-model","latency_ms":1}}\n' "$id"
done
`

func writeFakeBridge(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.sh")
	if err := os.WriteFile(path, []byte(fakeBridgeScript), 0755); err != nil {
		t.Fatalf("writing fake bridge: %v", err)
	}
	return path
}

func TestAddRunsEnrichmentAndWritesArtifacts(t *testing.T) {
	withTestCrawler(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("Home", "welcome"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := PipelineConfig{
		Name:       "Example",
		OutputRoot: t.TempDir(),
		Crawl:      CrawlConfig{Depth: 0, Concurrency: 1, Mode: "crawl"},
		Enrichment: EnrichmentConfig{BridgeCmd: "/bin/sh", BridgeScript: writeFakeBridge(t), ModelID: "test-model"},
	}

	result, err := Add(t.Context(), srv.URL+"/", cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Enrichment.SkillMd != "stub-text" {
		t.Fatalf("expected SKILL.md content from bridge, got %q", result.Enrichment.SkillMd)
	}

	if _, err := os.Stat(filepath.Join(result.KBPath, "artifacts", "SKILL.md")); err != nil {
		t.Fatalf("expected SKILL.md artifact written: %v", err)
	}

	manifest, err := assembler.LoadManifest(result.KBPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.Enrichment == nil || manifest.Enrichment.Model != "test-model" {
		t.Fatalf("expected enrichment metadata persisted, got %+v", manifest.Enrichment)
	}
}
