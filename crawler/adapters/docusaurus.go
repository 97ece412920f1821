package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// Docusaurus detects and extracts content from Docusaurus-generated sites.
type Docusaurus struct{}

func (d *Docusaurus) Name() string { return "docusaurus" }

func (d *Docusaurus) Detect(doc *goquery.Document) bool {
	if meta, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok {
		if strings.Contains(strings.ToLower(meta), "docusaurus") {
			return true
		}
	}
	return doc.Find("[data-docusaurus-version]").Length() > 0
}

func (d *Docusaurus) ExtractContent(doc *goquery.Document) (string, string, bool) {
	h, ok := selectFirst(doc, []string{"article .markdown", "article", ".markdown", "main"})
	if !ok {
		return "", "", false
	}
	return h, firstH1(doc), true
}

func (d *Docusaurus) ExtractTOC(doc *goquery.Document) []contextkb.TocEntry {
	var entries []contextkb.TocEntry
	doc.Find(".menu__link, .table-of-contents a").Each(func(_ int, s *goquery.Selection) {
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
