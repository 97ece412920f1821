package discovery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Result is what a crawl-vs-discover decision needs: whether llms.txt is
// usable, its parsed content, and the optional llms-full.txt sibling text.
type Result struct {
	Found    bool
	LlmsTxt  *Parsed
	FullText string // raw llms-full.txt body, empty if absent
}

// Discover fetches origin/llms.txt and origin/llms-full.txt concurrently.
// A missing or invalid llms.txt is reported as Found == false, never as an
// error — callers must fall back to crawling.
func Discover(ctx context.Context, client *http.Client, startURL string) (*Result, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return &Result{Found: false}, nil
	}
	origin := u.Scheme + "://" + u.Host

	var llmsTxtBody string
	var fullTextBody string

	g, gctx := errgroup.WithContext(context.Background())
	_ = gctx // intentionally not cancelling sibling fetch on error
	g.Go(func() error {
		body, ok := fetchValid(ctx, client, origin+"/llms.txt")
		if ok {
			llmsTxtBody = body
		}
		return nil
	})
	g.Go(func() error {
		body, ok := fetchValid(ctx, client, origin+"/llms-full.txt")
		if ok {
			fullTextBody = body
		}
		return nil
	})
	_ = g.Wait()

	if llmsTxtBody == "" {
		return &Result{Found: false}, nil
	}

	parsed, err := ParseLlmsTxt(llmsTxtBody)
	if err != nil {
		return &Result{Found: false}, nil
	}

	return &Result{Found: true, LlmsTxt: parsed, FullText: fullTextBody}, nil
}

// fetchValid performs the GET and validates status/size/shape, returning
// ok == false for any reason discovery should treat as "not published".
func fetchValid(ctx context.Context, client *http.Client, target string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		return "", false
	}

	text := string(body)
	if !firstNonBlankLineIsH1(text) {
		return "", false
	}
	return text, true
}

func firstNonBlankLineIsH1(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		return strings.HasPrefix(t, "# ")
	}
	return false
}
