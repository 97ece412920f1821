// Package markdown converts adapter-extracted HTML into cleaned,
// frontmatter-annotated Markdown pages.
package markdown

import (
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb"
)

// skippedTags are removed before HTML-to-Markdown translation; their
// content carries no documentation value and often breaks conversion.
var skippedTags = []string{"script", "style", "nav", "iframe", "noscript", "svg"}

// Page is the result of converting one crawled page to Markdown.
type Page struct {
	Markdown  string
	Title     string
	WordCount int
}

// Convert turns adapter-extracted content HTML into a cleaned Markdown
// page with a YAML frontmatter block. sourceURL anchors relative link
// resolution; title is used when the content has no H1 of its own.
func Convert(contentHTML, title, sourceURL string, fetchedAt time.Time) (*Page, error) {
	withTables := PreprocessTables(contentHTML)
	stripped := stripSkippedTags(withTables)

	raw, err := htmltomarkdown.ConvertString(stripped)
	if err != nil {
		return nil, contextkb.ConversionError("html to markdown conversion failed", err)
	}

	cleaned := RunCleanupPipeline(raw, sourceURL)

	resolvedTitle := titleFromMarkdown(cleaned)
	if resolvedTitle == "" {
		resolvedTitle = title
	}

	fm, err := renderFrontmatter(sourceURL, resolvedTitle, fetchedAt)
	if err != nil {
		return nil, contextkb.ConversionError("rendering frontmatter", err)
	}

	return &Page{
		Markdown:  fm + cleaned,
		Title:     resolvedTitle,
		WordCount: countWords(cleaned),
	}, nil
}

func stripSkippedTags(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	for _, tag := range skippedTags {
		doc.Find(tag).Remove()
	}
	h, err := doc.Find("body").Html()
	if err != nil {
		return rawHTML
	}
	return h
}

func titleFromMarkdown(md string) string {
	for _, line := range strings.Split(md, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(t, "# "))
		}
	}
	return ""
}

// countWords counts words outside fenced code blocks, excluding heading
// marker tokens shorter than three characters (e.g. bare "#" runs).
func countWords(md string) int {
	lines := strings.Split(md, "\n")
	inCode := false
	count := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		for _, word := range strings.Fields(line) {
			if len(word) < 3 && strings.Trim(word, "#") == "" {
				continue
			}
			count++
		}
	}
	return count
}
