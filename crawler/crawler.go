// Package crawler performs a concurrent, scope-limited, SSRF-safe breadth
// first crawl of a documentation site, recording page metadata and
// outbound links into the store as it goes.
package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/contextkb"
	"github.com/brunobiangulo/contextkb/crawler/adapters"
	"github.com/brunobiangulo/contextkb/store"
)

// FetchedPage is one successfully retrieved page, carrying enough to feed
// the markdown conversion stage.
type FetchedPage struct {
	Meta  contextkb.PageMeta
	HTML  string
	Links []string
}

// Summary reports the outcome of one crawl invocation.
type Summary struct {
	PagesFetched   int
	PagesSkipped   int
	Errors         [][2]string // (url, message)
	Duration       time.Duration
	PrimaryAdapter string
}

// Crawler fetches pages within scope of a start URL.
type Crawler struct {
	client         *http.Client
	registry       *adapters.Registry
	allowLoopback  bool // test-only escape hatch, never set from production config
}

// New builds a Crawler with a bounded redirect policy and timeout.
func New() *Crawler {
	return &Crawler{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		registry: adapters.NewRegistry(),
	}
}

// NewForTesting returns a Crawler that permits fetching loopback addresses,
// for use with httptest fixtures only.
func NewForTesting() *Crawler {
	c := New()
	c.allowLoopback = true
	return c
}

type queueItem struct {
	url   string
	depth int
}

// Crawl performs the BFS traversal described in the component design:
// bounded concurrency, rate limiting, scope and SSRF checks, dedup by
// visited URL, and incremental persistence of pages/links into st.
func (c *Crawler) Crawl(ctx context.Context, startURL, kbID string, st *store.Store, cfg contextkb.CrawlConfig) (*Summary, []FetchedPage, error) {
	start := time.Now()

	su, err := url.Parse(startURL)
	if err != nil {
		return nil, nil, contextkb.ValidationError("invalid start url", err)
	}

	scope, err := NewScope(su, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, nil, contextkb.ConfigError("invalid scope patterns", err)
	}

	jobID := contextkb.NewKbId().String()
	if err := st.InsertCrawlJob(ctx, store.CrawlJob{ID: jobID, KbID: kbID, StartedAt: start}); err != nil {
		return nil, nil, contextkb.StorageError("inserting crawl job", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	rateLimit := time.Duration(cfg.RateLimitMs) * time.Millisecond

	var (
		mu           sync.Mutex
		visited      = map[string]struct{}{}
		fetchedPages []FetchedPage
		summary      Summary
		queue        = []queueItem{{url: normalizeURL(startURL), depth: 0}}
	)

	for len(queue) > 0 {
		batchSize := len(queue)
		if batchSize > concurrency*4 {
			batchSize = concurrency * 4
		}
		batch := queue[:batchSize]
		queue = queue[batchSize:]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var newItems []queueItem
		var newItemsMu sync.Mutex

		for _, item := range batch {
			item := item
			mu.Lock()
			if _, seen := visited[item.url]; seen {
				summary.PagesSkipped++
				mu.Unlock()
				continue
			}
			visited[item.url] = struct{}{}
			mu.Unlock()

			u, err := url.Parse(item.url)
			if err != nil {
				continue
			}
			if !scope.InScope(u) {
				continue
			}
			if !c.allowLoopback && isSSRFTarget(u) {
				slog.Warn("skipping ssrf-blocked url", "url", item.url)
				mu.Lock()
				summary.PagesSkipped++
				mu.Unlock()
				continue
			}

			g.Go(func() error {
				if rateLimit > 0 {
					select {
					case <-time.After(rateLimit):
					case <-gctx.Done():
						return nil
					}
				}

				page, err := c.fetchPage(gctx, item.url, kbID)
				if err != nil {
					mu.Lock()
					summary.Errors = append(summary.Errors, [2]string{item.url, err.Error()})
					mu.Unlock()
					slog.Warn("page fetch failed", "url", item.url, "error", err)
					return nil
				}

				mu.Lock()
				if summary.PrimaryAdapter == "" {
					summary.PrimaryAdapter = c.registry.DetectFromHTML(page.HTML, u)
				}
				summary.PagesFetched++
				fetchedPages = append(fetchedPages, *page)
				mu.Unlock()

				pageID, err := st.UpsertPage(gctx, store.Page{
					ID:          page.Meta.ID,
					KbID:        kbID,
					URL:         page.Meta.URL,
					Path:        page.Meta.Path,
					Title:       page.Meta.Title,
					ContentHash: page.Meta.ContentHash,
					FetchedAt:   page.Meta.FetchedAt,
					StatusCode:  page.Meta.StatusCode,
					ContentLen:  page.Meta.ContentLen,
				})
				if err != nil {
					slog.Warn("storing page failed", "url", item.url, "error", err)
					return nil
				}

				for _, link := range page.Links {
					if err := st.InsertLink(gctx, store.Link{FromPageID: pageID, ToURL: link}); err != nil {
						slog.Warn("storing link failed", "url", link, "error", err)
					}
				}

				if item.depth < cfg.Depth {
					newItemsMu.Lock()
					for _, link := range page.Links {
						newItems = append(newItems, queueItem{url: normalizeURL(link), depth: item.depth + 1})
					}
					newItemsMu.Unlock()
				}
				return nil
			})
		}

		_ = g.Wait()
		queue = append(queue, newItems...)
	}

	summary.Duration = time.Since(start)

	statsJSON, _ := json.Marshal(map[string]any{
		"status":        "completed",
		"pages_fetched": summary.PagesFetched,
		"pages_skipped": summary.PagesSkipped,
		"errors":        summary.Errors,
	})
	if err := st.CompleteCrawlJob(ctx, jobID, time.Now(), string(statsJSON)); err != nil {
		slog.Warn("completing crawl job failed", "error", err)
	}

	return &summary, fetchedPages, nil
}

func (c *Crawler) fetchPage(ctx context.Context, target, kbID string) (*FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "contextkb-crawler/1.0 (+https://github.com/brunobiangulo/contextkb)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, contextkb.NetworkError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contextkb.NetworkError(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contextkb.NetworkError("reading body", err)
	}

	finalURL := resp.Request.URL.String()
	links := extractLinks(body, resp.Request.URL)
	title := extractTitle(body)
	hash := computeHash(body)
	path := urlToPath(resp.Request.URL.Path)

	meta := contextkb.PageMeta{
		ID:          contextkb.NewKbId().String(),
		KbID:        kbID,
		URL:         finalURL,
		Path:        path,
		Title:       title,
		ContentHash: hash,
		FetchedAt:   time.Now().UTC(),
		StatusCode:  resp.StatusCode,
		ContentLen:  len(body),
	}

	return &FetchedPage{Meta: meta, HTML: string(body), Links: links}, nil
}

func computeHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func urlToPath(p string) string {
	p = strings.Trim(p, "/")
	for _, suffix := range []string{".html", ".htm", ".md"} {
		p = strings.TrimSuffix(p, suffix)
	}
	if p == "" {
		return "index"
	}
	return p
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") && strings.Count(u.Path, "/") > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

func extractLinks(body []byte, base *url.URL) []string {
	var links []string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := tokenizer.Token()
		if tok.Data != "a" {
			continue
		}
		for _, attr := range tok.Attr {
			if attr.Key != "href" {
				continue
			}
			href := strings.TrimSpace(attr.Val)
			if href == "" || strings.HasPrefix(href, "#") ||
				strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			resolved := base.ResolveReference(ref)
			resolved.Fragment = ""
			links = append(links, resolved.String())
		}
	}
	return links
}

func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inH1 := false
	var sb strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken:
			tok := tokenizer.Token()
			if tok.Data == "h1" {
				inH1 = true
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.Data == "h1" && inH1 {
				return strings.TrimSpace(sb.String())
			}
		case html.TextToken:
			if inH1 {
				sb.WriteString(string(tokenizer.Text()))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
