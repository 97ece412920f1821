package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// ReadTheDocs detects and extracts content from Sphinx/ReadTheDocs sites.
type ReadTheDocs struct{}

func (r *ReadTheDocs) Name() string { return "readthedocs" }

func (r *ReadTheDocs) Detect(doc *goquery.Document) bool {
	if _, ok := doc.Find(`meta[name="readthedocs"]`).Attr("content"); ok {
		return true
	}
	if doc.Find(".wy-nav-side").Length() > 0 || doc.Find(".wy-body-for-nav").Length() > 0 {
		return true
	}
	found := false
	doc.Find(`link[href*="_static"]`).Each(func(_ int, s *goquery.Selection) { found = true })
	return found
}

func (r *ReadTheDocs) ExtractContent(doc *goquery.Document) (string, string, bool) {
	h, ok := selectFirst(doc, []string{"div[role=\"main\"]", ".document", ".rst-content", "main"})
	if !ok {
		return "", "", false
	}
	return h, firstH1(doc), true
}

func (r *ReadTheDocs) ExtractTOC(doc *goquery.Document) []contextkb.TocEntry {
	var entries []contextkb.TocEntry
	doc.Find(".wy-menu a, .toctree-l1 > a").Each(func(_ int, s *goquery.Selection) {
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
