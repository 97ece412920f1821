package contextkb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brunobiangulo/contextkb/assembler"
	"github.com/brunobiangulo/contextkb/crawler"
	"github.com/brunobiangulo/contextkb/crawler/adapters"
	"github.com/brunobiangulo/contextkb/discovery"
	"github.com/brunobiangulo/contextkb/enrichment"
	"github.com/brunobiangulo/contextkb/markdown"
	"github.com/brunobiangulo/contextkb/store"
	"github.com/brunobiangulo/contextkb/toc"
)

// AddResult summarizes a freshly created knowledge base.
type AddResult struct {
	KBID       KbId
	KBPath     string
	PageCount  int
	Enrichment *enrichment.Results
}

// UpdateResult summarizes a re-run against an existing knowledge base.
type UpdateResult struct {
	KBID       KbId
	KBPath     string
	Added      int
	Changed    int
	Unchanged  int
	Removed    int
	Enrichment *enrichment.Results
}

// Add discovers or crawls sourceURL, converts every page to Markdown,
// builds the table of contents, writes the KB layout, runs enrichment, and
// writes the synthesized artifacts. It is the entry point for a brand new
// knowledge base.
func Add(ctx context.Context, sourceURL string, cfg PipelineConfig) (*AddResult, error) {
	if cfg.Name == "" {
		return nil, ConfigError("pipeline name is required", nil)
	}
	if cfg.OutputRoot == "" {
		return nil, ConfigError("pipeline output_root is required", nil)
	}
	crawlCfg := cfg.Crawl
	if crawlCfg.Concurrency <= 0 {
		crawlCfg = DefaultCrawlConfig()
	}

	kbID := NewKbId()
	kbPath := assembler.KBPath(cfg.OutputRoot, kbID)

	st, err := store.New(assembler.DBPath(kbPath), false)
	if err != nil {
		return nil, StorageError("opening kb store", err)
	}
	defer st.Close()

	if err := st.CreateKB(ctx, kbID.String(), cfg.Name, sourceURL, time.Now().UTC()); err != nil {
		return nil, StorageError("creating kb record", err)
	}

	fetched, err := fetchPages(ctx, sourceURL, kbID.String(), st, crawlCfg)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, ErrNoPages
	}

	registry := adapters.NewRegistry()
	pagesMD := map[string]string{}
	var tocInputs []toc.PageInput
	var adapterTOC []TocEntry
	var enrichInputs []enrichment.PageInput

	for _, fp := range fetched {
		mp, tocEntries, err := convertFetchedPage(registry, fp)
		if err != nil {
			slog.Warn("converting page failed", "path", fp.Meta.Path, "error", err)
			continue
		}
		pagesMD[fp.Meta.Path] = mp.Markdown
		tocInputs = append(tocInputs, toc.PageInput{Title: mp.Title, Path: fp.Meta.Path, URL: fp.Meta.URL})
		adapterTOC = append(adapterTOC, tocEntries...)
		enrichInputs = append(enrichInputs, enrichment.PageInput{Path: fp.Meta.Path, Title: mp.Title, Content: mp.Markdown})
	}
	if len(pagesMD) == 0 {
		return nil, ErrNoPages
	}

	tocDoc := toc.Build(tocInputs, adapterTOC)
	tocJSON, _ := json.Marshal(tocDoc)

	manifest := &Manifest{
		SchemaVersion: SchemaVersion,
		ID:            kbID,
		Name:          cfg.Name,
		SourceURL:     sourceURL,
		ToolVersion:   cfg.ToolVersion,
		Config:        crawlCfg,
	}

	if err := assembler.Assemble(kbPath, manifest, tocDoc, pagesMD); err != nil {
		return nil, err
	}

	enrichResults, err := enrichment.Run(ctx, cfg.Enrichment, kbID.String(), cfg.Name, sourceURL, enrichInputs, string(tocJSON), st, NoopProgress{})
	if err != nil {
		return nil, err
	}

	artifacts := buildArtifacts(cfg.Name, sourceURL, tocDoc, pagesMD, enrichResults)
	enrichMeta := &EnrichmentMeta{
		Model:          enrichResults.Model,
		TotalTokensIn:  enrichResults.TotalTokensIn,
		TotalTokensOut: enrichResults.TotalTokensOut,
		CacheHits:      enrichResults.CacheHits,
		CacheMisses:    enrichResults.CacheMisses,
		CompletedAt:    time.Now().UTC(),
	}
	if _, err := assembler.AssembleArtifacts(kbPath, manifest, artifacts, enrichMeta); err != nil {
		return nil, err
	}

	return &AddResult{KBID: kbID, KBPath: kbPath, PageCount: len(pagesMD), Enrichment: enrichResults}, nil
}

// Update re-fetches sourceURL against an existing knowledge base, reusing
// unchanged pages (by content hash) and reconverting the rest. When
// cfg.Prune is set, pages no longer present at the source are removed from
// both the store and disk; otherwise they are left in place.
func Update(ctx context.Context, id KbId, sourceURL string, cfg PipelineConfig) (*UpdateResult, error) {
	if cfg.OutputRoot == "" {
		return nil, ConfigError("pipeline output_root is required", nil)
	}
	kbPath := assembler.KBPath(cfg.OutputRoot, id)
	manifest, err := assembler.LoadManifest(kbPath)
	if err != nil {
		return nil, err
	}

	crawlCfg := cfg.Crawl
	if crawlCfg.Concurrency <= 0 {
		crawlCfg = DefaultCrawlConfig()
	}

	st, err := store.New(assembler.DBPath(kbPath), false)
	if err != nil {
		return nil, StorageError("opening kb store", err)
	}
	defer st.Close()

	existingPages, err := st.ListPages(ctx, id.String())
	if err != nil {
		return nil, StorageError("listing existing pages", err)
	}
	existingByPath := make(map[string]store.Page, len(existingPages))
	for _, p := range existingPages {
		existingByPath[p.Path] = p
	}

	fetched, err := fetchPages(ctx, sourceURL, id.String(), st, crawlCfg)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, ErrNoPages
	}

	registry := adapters.NewRegistry()
	pagesMD := map[string]string{}
	var tocInputs []toc.PageInput
	var adapterTOC []TocEntry
	var enrichInputs []enrichment.PageInput
	result := &UpdateResult{KBID: id, KBPath: kbPath}

	seenPaths := map[string]bool{}
	for _, fp := range fetched {
		seenPaths[fp.Meta.Path] = true
		prior, existed := existingByPath[fp.Meta.Path]

		if existed && !cfg.Force && prior.ContentHash == fp.Meta.ContentHash {
			if content, err := assembler.LoadPage(kbPath, fp.Meta.Path); err == nil {
				result.Unchanged++
				title := toc.TitleFromPath(fp.Meta.Path)
				pagesMD[fp.Meta.Path] = content
				tocInputs = append(tocInputs, toc.PageInput{Title: title, Path: fp.Meta.Path, URL: fp.Meta.URL})
				enrichInputs = append(enrichInputs, enrichment.PageInput{Path: fp.Meta.Path, Title: title, Content: content})
				continue
			}
			slog.Warn("reloading unchanged page failed, reconverting", "path", fp.Meta.Path)
		}

		mp, tocEntries, err := convertFetchedPage(registry, fp)
		if err != nil {
			slog.Warn("converting page failed", "path", fp.Meta.Path, "error", err)
			continue
		}
		if existed {
			result.Changed++
		} else {
			result.Added++
		}
		pagesMD[fp.Meta.Path] = mp.Markdown
		tocInputs = append(tocInputs, toc.PageInput{Title: mp.Title, Path: fp.Meta.Path, URL: fp.Meta.URL})
		adapterTOC = append(adapterTOC, tocEntries...)
		enrichInputs = append(enrichInputs, enrichment.PageInput{Path: fp.Meta.Path, Title: mp.Title, Content: mp.Markdown})
	}

	if cfg.Prune {
		for path := range existingByPath {
			if seenPaths[path] {
				continue
			}
			result.Removed++
			if err := st.DeletePage(ctx, id.String(), path); err != nil {
				slog.Warn("removing stale page from store failed", "path", path, "error", err)
			}
			if err := assembler.RemovePage(kbPath, path); err != nil {
				slog.Warn("removing stale page file failed", "path", path, "error", err)
			}
		}
	}

	tocDoc := toc.Build(tocInputs, adapterTOC)
	tocJSON, _ := json.Marshal(tocDoc)

	manifest.SourceURL = sourceURL
	if cfg.ToolVersion != "" {
		manifest.ToolVersion = cfg.ToolVersion
	}
	manifest.Config = crawlCfg

	if err := assembler.Assemble(kbPath, manifest, tocDoc, pagesMD); err != nil {
		return nil, err
	}
	if err := st.TouchKB(ctx, id.String(), time.Now().UTC()); err != nil {
		slog.Warn("touching kb record failed", "error", err)
	}
	if cfg.Force {
		if err := st.InvalidateEnrichmentCache(ctx, id.String()); err != nil {
			slog.Warn("invalidating enrichment cache failed", "error", err)
		}
	}

	enrichResults, err := enrichment.Run(ctx, cfg.Enrichment, id.String(), manifest.Name, sourceURL, enrichInputs, string(tocJSON), st, NoopProgress{})
	if err != nil {
		return nil, err
	}
	result.Enrichment = enrichResults

	artifacts := buildArtifacts(manifest.Name, sourceURL, tocDoc, pagesMD, enrichResults)
	enrichMeta := &EnrichmentMeta{
		Model:          enrichResults.Model,
		TotalTokensIn:  enrichResults.TotalTokensIn,
		TotalTokensOut: enrichResults.TotalTokensOut,
		CacheHits:      enrichResults.CacheHits,
		CacheMisses:    enrichResults.CacheMisses,
		CompletedAt:    time.Now().UTC(),
	}
	if _, err := assembler.AssembleArtifacts(kbPath, manifest, artifacts, enrichMeta); err != nil {
		return nil, err
	}

	return result, nil
}

// newCrawler is a seam so tests can substitute crawler.NewForTesting, which
// permits fetching loopback httptest fixtures; production always uses the
// SSRF-safe default.
var newCrawler = crawler.New

// fetchPages resolves the crawl mode ("auto", "llms-txt", "crawl") into a
// flat page set: discovery is attempted first for "auto"/"llms-txt", with
// "auto" falling back to a full crawl when no usable llms.txt is published
// or when its entries yield no pages.
func fetchPages(ctx context.Context, sourceURL, kbID string, st *store.Store, cfg CrawlConfig) ([]crawler.FetchedPage, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "auto"
	}

	if mode == "auto" || mode == "llms-txt" {
		httpClient := &http.Client{Timeout: 15 * time.Second}
		disc, err := discovery.Discover(ctx, httpClient, sourceURL)
		if err == nil && disc.Found {
			slog.Info("using published llms.txt for page discovery", "entries", len(disc.LlmsTxt.Entries))
			pages := fetchFromLlmsTxt(ctx, kbID, st, disc.LlmsTxt)
			if len(pages) > 0 || mode == "llms-txt" {
				return pages, nil
			}
			slog.Warn("published llms.txt yielded no pages, falling back to crawl", "source_url", sourceURL)
		} else if mode == "llms-txt" {
			return nil, NetworkError("llms.txt not found or invalid at source", err)
		}
	}

	slog.Info("crawling site for page discovery", "source_url", sourceURL)
	cr := newCrawler()
	_, pages, err := cr.Crawl(ctx, sourceURL, kbID, st, cfg)
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// fetchFromLlmsTxt fetches each distinct entry URL as a single, non-recursive
// page. Per-entry failures are logged and skipped rather than aborting the
// whole discovery.
func fetchFromLlmsTxt(ctx context.Context, kbID string, st *store.Store, parsed *discovery.Parsed) []crawler.FetchedPage {
	cr := newCrawler()
	singlePage := CrawlConfig{Depth: 0, Concurrency: 1, Mode: "llms-txt"}

	var all []crawler.FetchedPage
	seen := map[string]bool{}
	for _, entry := range parsed.Entries {
		if seen[entry.URL] {
			continue
		}
		seen[entry.URL] = true
		_, pages, err := cr.Crawl(ctx, entry.URL, kbID, st, singlePage)
		if err != nil {
			slog.Warn("fetching llms.txt entry failed", "url", entry.URL, "error", err)
			continue
		}
		all = append(all, pages...)
	}
	return all
}

// convertFetchedPage runs adapter detection/extraction then Markdown
// conversion on one fetched page.
func convertFetchedPage(registry *adapters.Registry, page crawler.FetchedPage) (*markdown.Page, []TocEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, nil, ConversionError("parsing fetched page html", err)
	}
	_, contentHTML, title, tocEntries := registry.Extract(doc)
	if title == "" {
		title = page.Meta.Title
	}

	mp, err := markdown.Convert(contentHTML, title, page.Meta.URL, page.Meta.FetchedAt)
	if err != nil {
		return nil, nil, err
	}
	return mp, tocEntries, nil
}

// buildArtifacts assembles the six synthesized KB-level artifacts:
// llms.txt and llms-full.txt are derived mechanically from the TOC and page
// content; the remaining four come from the enrichment bridge and are
// omitted when enrichment produced no text for them.
func buildArtifacts(name, sourceURL string, tocDoc Toc, pagesMD map[string]string, results *enrichment.Results) map[string]string {
	artifacts := map[string]string{
		"llms.txt":      buildLlmsTxt(name, sourceURL, tocDoc, results.Descriptions),
		"llms-full.txt": buildLlmsFullTxt(tocDoc, pagesMD),
	}
	if results.SkillMd != "" {
		artifacts["SKILL.md"] = results.SkillMd
	}
	if results.Rules != "" {
		artifacts["rules.md"] = results.Rules
	}
	if results.Style != "" {
		artifacts["style.md"] = results.Style
	}
	if results.DoDont != "" {
		artifacts["do_dont.md"] = results.DoDont
	}
	return artifacts
}

// buildLlmsTxt renders the TOC into the llmstxt.org grammar
// discovery.ParseLlmsTxt also understands: an H1 title, a blockquote
// summary, then one H2 section per top-level TOC entry with the entry itself
// and its descendants flattened into bullet links.
func buildLlmsTxt(name, sourceURL string, tocDoc Toc, descriptions map[string]string) string {
	var sb strings.Builder
	sb.WriteString("# " + name + "\n\n")
	sb.WriteString("> Knowledge base generated from " + sourceURL + "\n\n")
	for _, section := range tocDoc.Sections {
		sb.WriteString("## " + section.Title + "\n")
		writeLlmsEntries(&sb, section, descriptions)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeLlmsEntries(sb *strings.Builder, entry TocEntry, descriptions map[string]string) {
	target := entry.SourceURL
	if target == "" {
		target = entry.Path
	}
	line := fmt.Sprintf("- [%s](%s)", entry.Title, target)
	if d := descriptions[entry.Path]; d != "" {
		line += ": " + d
	}
	sb.WriteString(line + "\n")
	for _, child := range entry.Children {
		writeLlmsEntries(sb, child, descriptions)
	}
}

// buildLlmsFullTxt concatenates the rendered Markdown of every page the TOC
// references, in TOC order, separated by a horizontal rule. Pages whose path
// no TOC entry names are not included.
func buildLlmsFullTxt(tocDoc Toc, pagesMD map[string]string) string {
	var sb strings.Builder
	var walk func(e TocEntry)
	walk = func(e TocEntry) {
		if content, ok := pagesMD[e.Path]; ok {
			sb.WriteString(content)
			sb.WriteString("\n\n---\n\n")
		}
		for _, child := range e.Children {
			walk(child)
		}
	}
	for _, section := range tocDoc.Sections {
		walk(section)
	}
	return sb.String()
}
