package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// GitBook detects and extracts content from GitBook-hosted sites.
type GitBook struct{}

func (b *GitBook) Name() string { return "gitbook" }

func (b *GitBook) Detect(doc *goquery.Document) bool {
	if _, ok := doc.Find(`meta[name="gitbook"]`).Attr("content"); ok {
		return true
	}
	return doc.Find(".gitbook-root").Length() > 0
}

func (b *GitBook) ExtractContent(doc *goquery.Document) (string, string, bool) {
	h, ok := selectFirst(doc, []string{"main .gitbook-root", "[data-testid=\"page.contentEditor\"]", "main"})
	if !ok {
		return "", "", false
	}
	return h, firstH1(doc), true
}

func (b *GitBook) ExtractTOC(doc *goquery.Document) []contextkb.TocEntry {
	var entries []contextkb.TocEntry
	doc.Find("nav a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return
		}
		entries = append(entries, contextkb.TocEntry{Title: title, Path: strings.TrimPrefix(href, "/")})
	})
	return entries
}
