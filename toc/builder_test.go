package toc

import (
	"testing"

	"github.com/brunobiangulo/contextkb"
)

func TestTitleFromPath(t *testing.T) {
	cases := map[string]string{
		"index":            "Overview",
		"guide/index":      "Overview",
		"getting-started":  "Getting Started",
		"api_reference":    "Api Reference",
	}
	for path, want := range cases {
		if got := TitleFromPath(path); got != want {
			t.Errorf("TitleFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestBuildFromPathsOrdersIndexFirst(t *testing.T) {
	pages := []PageInput{
		{Path: "guide/zeta"},
		{Path: "guide/index"},
		{Path: "guide/alpha"},
	}
	result := Build(pages, nil)
	if len(result.Sections) != 1 {
		t.Fatalf("expected a single root section for 'guide', got %d", len(result.Sections))
	}
	root := result.Sections[0]
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(root.Children))
	}
	if root.Children[0].Path != "guide/index" {
		t.Fatalf("expected index first, got %q", root.Children[0].Path)
	}
	if root.Children[1].Path != "guide/alpha" {
		t.Fatalf("expected alpha before zeta, got order %v", []string{root.Children[1].Path, root.Children[2].Path})
	}
}

func TestBuildPrefersAdapterTOCWhenItCoversHalf(t *testing.T) {
	pages := []PageInput{{Path: "a"}, {Path: "b"}}
	adapter := []contextkb.TocEntry{{Title: "A", Path: "a"}}
	result := Build(pages, adapter)
	if len(result.Sections) != 1 || result.Sections[0].Path != "a" {
		t.Fatalf("expected adapter TOC used verbatim, got %+v", result.Sections)
	}
}
