// Package adapters provides platform-specific content and TOC extraction
// for documentation generators (Docusaurus, VitePress, GitBook,
// ReadTheDocs) with a generic fallback that always matches.
package adapters

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// Adapter extracts page content and an optional TOC for one documentation
// platform.
type Adapter interface {
	Name() string
	Detect(doc *goquery.Document) bool
	ExtractContent(doc *goquery.Document) (html string, title string, ok bool)
	ExtractTOC(doc *goquery.Document) []contextkb.TocEntry
}

// Registry is an ordered, closed list of adapters terminated by Generic,
// which always detects true.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds the registry in detection priority order: Docusaurus,
// VitePress, GitBook, ReadTheDocs, then the generic fallback.
func NewRegistry() *Registry {
	return &Registry{adapters: []Adapter{
		&Docusaurus{},
		&VitePress{},
		&GitBook{},
		&ReadTheDocs{},
		&Generic{},
	}}
}

// Detect returns the first adapter that matches doc.
func (r *Registry) Detect(doc *goquery.Document) Adapter {
	for _, a := range r.adapters {
		if a.Detect(doc) {
			return a
		}
	}
	return r.adapters[len(r.adapters)-1]
}

// DetectFromHTML is a convenience used by the crawler, which only has the
// raw HTML string and a URL, to record a primary_adapter name without
// running full content extraction.
func (r *Registry) DetectFromHTML(rawHTML string, _ *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "generic"
	}
	return r.Detect(doc).Name()
}

// Extract runs detection then content/TOC extraction in one call.
func (r *Registry) Extract(doc *goquery.Document) (adapterName, html, title string, toc []contextkb.TocEntry) {
	a := r.Detect(doc)
	h, t, ok := a.ExtractContent(doc)
	if !ok {
		// Fall through to generic if a more specific adapter's selector
		// list didn't find anything (detected by platform markers but
		// content layout differs from the expected one).
		g := &Generic{}
		h, t, _ = g.ExtractContent(doc)
		return g.Name(), h, t, g.ExtractTOC(doc)
	}
	return a.Name(), h, t, a.ExtractTOC(doc)
}

// selectFirst returns the inner HTML of the first element matching any
// selector in order, and whether one matched.
func selectFirst(doc *goquery.Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		h, err := s.Html()
		if err != nil || strings.TrimSpace(h) == "" {
			continue
		}
		return h, true
	}
	return "", false
}

func firstH1(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
