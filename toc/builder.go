// Package toc builds the hierarchical table of contents from page
// metadata, honoring an adapter-provided TOC when it covers enough pages.
package toc

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/contextkb"
)

// PageInput is the minimal shape the builder needs per page.
type PageInput struct {
	Title string
	Path  string
	URL   string
}

// Build constructs a contextkb.Toc from pages. If adapterTOC is non-nil and
// covers at least half of pages, it is used verbatim; otherwise the TOC is
// derived from page path hierarchy.
func Build(pages []PageInput, adapterTOC []contextkb.TocEntry) contextkb.Toc {
	if len(adapterTOC) >= (len(pages)+1)/2 && len(adapterTOC) > 0 {
		return contextkb.Toc{Sections: adapterTOC}
	}
	return contextkb.Toc{Sections: buildFromPaths(pages)}
}

func buildFromPaths(pages []PageInput) []contextkb.TocEntry {
	entries := make(map[string]*contextkb.TocEntry, len(pages))
	var rootOrder []string

	for _, p := range pages {
		title := p.Title
		if title == "" {
			title = TitleFromPath(p.Path)
		}
		entries[p.Path] = &contextkb.TocEntry{Title: title, Path: p.Path, SourceURL: p.URL}
	}

	parentOf := func(path string) (string, bool) {
		idx := strings.LastIndex(path, "/")
		if idx < 0 {
			return "", false
		}
		return path[:idx], true
	}

	childrenOf := map[string][]string{}
	for _, p := range pages {
		if parent, ok := parentOf(p.Path); ok {
			childrenOf[parent] = append(childrenOf[parent], p.Path)
		} else {
			rootOrder = append(rootOrder, p.Path)
		}
	}

	// Orphan sections: a parent path that has no page of its own becomes a
	// new root entry titled from its last segment, holding its child pages.
	seenRoot := map[string]bool{}
	for _, path := range rootOrder {
		seenRoot[path] = true
	}
	for parent, children := range childrenOf {
		if _, ok := entries[parent]; !ok {
			if !seenRoot[parent] {
				entries[parent] = &contextkb.TocEntry{Title: TitleFromPath(lastSegment(parent)), Path: parent}
				rootOrder = append(rootOrder, parent)
				seenRoot[parent] = true
			}
		}
	}

	var attach func(path string) contextkb.TocEntry
	attach = func(path string) contextkb.TocEntry {
		e := *entries[path]
		childPaths := append([]string(nil), childrenOf[path]...)
		sortPaths(childPaths, entries)
		for _, cp := range childPaths {
			e.Children = append(e.Children, attach(cp))
		}
		return e
	}

	sortPaths(rootOrder, entries)
	var roots []contextkb.TocEntry
	for _, path := range rootOrder {
		roots = append(roots, attach(path))
	}
	return roots
}

// sortPaths orders sibling paths: "index"/"*/index" first, then
// case-insensitive title order.
func sortPaths(paths []string, entries map[string]*contextkb.TocEntry) {
	sort.SliceStable(paths, func(i, j int) bool {
		pi, pj := paths[i], paths[j]
		ii, ij := isIndex(pi), isIndex(pj)
		if ii != ij {
			return ii
		}
		ti, tj := entries[pi].Title, entries[pj].Title
		return strings.ToLower(ti) < strings.ToLower(tj)
	})
}

func isIndex(path string) bool {
	return path == "index" || strings.HasSuffix(path, "/index")
}

func lastSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// TitleFromPath converts a page path into a human title: "index" becomes
// "Overview"; otherwise dashes/underscores become spaces, each word
// capitalized.
func TitleFromPath(path string) string {
	seg := lastSegment(path)
	if seg == "index" {
		return "Overview"
	}
	seg = strings.ReplaceAll(seg, "-", " ")
	seg = strings.ReplaceAll(seg, "_", " ")
	words := strings.Fields(seg)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SlugifyPath normalizes an incoming URL path into a TOC-friendly slug:
// accented letters are decomposed to their ASCII base (so "Guía" becomes
// "guia" rather than being dropped), lowercased, no .html/.htm/.md suffix,
// slashes kept, spaces/underscores become dashes, other non-alphanumerics
// dropped.
func SlugifyPath(path string) string {
	p := strings.ToLower(stripDiacritics(path))
	for _, suffix := range []string{".html", ".htm", ".md"} {
		p = strings.TrimSuffix(p, suffix)
	}
	var sb strings.Builder
	for _, r := range p {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '/':
			sb.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}

// stripDiacritics decomposes p under NFKD and drops combining marks,
// so non-ASCII documentation titles still produce stable, readable slugs.
func stripDiacritics(p string) string {
	decomposed := norm.NFKD.String(p)
	var sb strings.Builder
	sb.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
