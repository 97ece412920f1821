package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// VitePress detects and extracts content from VitePress-generated sites.
type VitePress struct{}

func (v *VitePress) Name() string { return "vitepress" }

func (v *VitePress) Detect(doc *goquery.Document) bool {
	return doc.Find("#VPContent").Length() > 0 || doc.Find(".VPDoc").Length() > 0
}

func (v *VitePress) ExtractContent(doc *goquery.Document) (string, string, bool) {
	h, ok := selectFirst(doc, []string{".vp-doc", ".VPDoc .content", "#VPContent main", "main"})
	if !ok {
		return "", "", false
	}
	return h, firstH1(doc), true
}

func (v *VitePress) ExtractTOC(doc *goquery.Document) []contextkb.TocEntry {
	var entries []contextkb.TocEntry
	doc.Find(".VPSidebarItem a, .outline-link").Each(func(_ int, s *goquery.Selection) {
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
