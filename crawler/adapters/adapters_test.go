package adapters

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing fixture html: %v", err)
	}
	return doc
}

func TestRegistryDetectsDocusaurusByGeneratorMeta(t *testing.T) {
	doc := mustDoc(t, `<html><head><meta name="generator" content="Docusaurus v3.1"></head>
		<body><article><div class="markdown"><h1>Intro</h1><p>hello</p></div></article></body></html>`)

	r := NewRegistry()
	name, contentHTML, title, _ := r.Extract(doc)
	if name != "docusaurus" {
		t.Fatalf("expected docusaurus to be detected, got %q", name)
	}
	if title != "Intro" {
		t.Fatalf("expected title Intro, got %q", title)
	}
	if !strings.Contains(contentHTML, "hello") {
		t.Fatalf("expected extracted content to include body text, got %q", contentHTML)
	}
}

func TestRegistryFallsBackToGenericWhenNothingMatches(t *testing.T) {
	doc := mustDoc(t, `<html><body><main><h1>Plain Page</h1><p>content here</p></main></body></html>`)

	r := NewRegistry()
	name, contentHTML, title, _ := r.Extract(doc)
	if name != "generic" {
		t.Fatalf("expected generic fallback, got %q", name)
	}
	if title != "Plain Page" {
		t.Fatalf("expected title Plain Page, got %q", title)
	}
	if !strings.Contains(contentHTML, "content here") {
		t.Fatalf("expected content preserved, got %q", contentHTML)
	}
}

func TestGenericStripsChromeElements(t *testing.T) {
	doc := mustDoc(t, `<html><body><main>
		<nav>site nav</nav>
		<h1>Title</h1>
		<p>real content</p>
		<aside class="sidebar">related links</aside>
	</main></body></html>`)

	g := &Generic{}
	h, _, ok := g.ExtractContent(doc)
	if !ok {
		t.Fatal("expected generic extraction to succeed")
	}
	if strings.Contains(h, "site nav") || strings.Contains(h, "related links") {
		t.Fatalf("expected chrome elements stripped, got %q", h)
	}
	if !strings.Contains(h, "real content") {
		t.Fatalf("expected real content preserved, got %q", h)
	}
}

func TestGenericExtractTOCBuildsEntriesFromHeadings(t *testing.T) {
	doc := mustDoc(t, `<html><body><main>
		<h1>Getting Started</h1>
		<h2>Installation</h2>
		<h2>Configuration</h2>
	</main></body></html>`)

	g := &Generic{}
	toc := g.ExtractTOC(doc)
	if len(toc) != 3 {
		t.Fatalf("expected 3 toc entries, got %d", len(toc))
	}
	if toc[0].Title != "Getting Started" || toc[0].Path != "getting-started" {
		t.Fatalf("unexpected first entry: %+v", toc[0])
	}
}

func TestRegistryDetectOrderPrefersMoreSpecificAdapters(t *testing.T) {
	// VitePress markers present alongside a generic-compatible body; registry
	// must prefer VitePress over falling through to Generic.
	doc := mustDoc(t, `<html><body><div id="VPContent"><div class="vp-doc"><h1>Guide</h1><p>text</p></div></div></body></html>`)

	r := NewRegistry()
	detected := r.Detect(doc)
	if detected.Name() != "vitepress" {
		t.Fatalf("expected vitepress to be detected ahead of generic, got %q", detected.Name())
	}
}
