package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// chrome selectors stripped from the generic adapter's extracted content.
var genericChromeSelectors = []string{
	"nav", "header", "footer", "aside", "script", "style", ".sidebar", ".nav",
}

// Generic is the terminal fallback adapter: it always detects true and
// extracts from whatever the document's <main> or <body> contains after
// stripping common chrome elements.
type Generic struct{}

func (g *Generic) Name() string { return "generic" }

func (g *Generic) Detect(doc *goquery.Document) bool { return true }

func (g *Generic) ExtractContent(doc *goquery.Document) (string, string, bool) {
	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", "", false
	}
	clone := root.Clone()
	for _, sel := range genericChromeSelectors {
		clone.Find(sel).Remove()
	}
	h, err := clone.Html()
	if err != nil {
		return "", "", false
	}
	return h, firstH1(doc), true
}

func (g *Generic) ExtractTOC(doc *goquery.Document) []contextkb.TocEntry {
	var entries []contextkb.TocEntry
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return
		}
		entries = append(entries, contextkb.TocEntry{Title: title, Path: slugify(title)})
	})
	return entries
}

func slugify(title string) string {
	lower := strings.ToLower(title)
	var sb strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '_' || r == '-':
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}
