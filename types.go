// Package contextkb turns a documentation site into a portable,
// AI-consumable knowledge base: normalized Markdown pages, a hierarchical
// table of contents, a metadata manifest, and a set of synthesized
// artifacts (llms.txt, llms-full.txt, SKILL.md, rules.md, style.md,
// do_dont.md).
package contextkb

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current manifest schema version this build writes
// and the only version it will read without refusing the KB.
const SchemaVersion = 1

// KbId is a time-sortable 128-bit identifier for a knowledge base, rendered
// as a canonical UUID string. It is also used as the KB's directory name.
type KbId uuid.UUID

// NewKbId mints a fresh, monotonically-sortable identifier.
func NewKbId() KbId {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/random source is broken
		// beyond repair; fall back to a random v4 rather than panic.
		return KbId(uuid.New())
	}
	return KbId(id)
}

func (k KbId) String() string { return uuid.UUID(k).String() }

func ParseKbId(s string) (KbId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return KbId{}, ValidationError("invalid kb id", err)
	}
	return KbId(id), nil
}

// ArtifactMeta describes one written artifact file for the manifest.
type ArtifactMeta struct {
	Filename  string `json:"filename"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// EnrichmentMeta summarizes the most recent enrichment pass for the manifest.
type EnrichmentMeta struct {
	Model           string    `json:"model"`
	TotalTokensIn   int       `json:"total_tokens_in"`
	TotalTokensOut  int       `json:"total_tokens_out"`
	CacheHits       int       `json:"cache_hits"`
	CacheMisses     int       `json:"cache_misses"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Manifest is the one-per-KB metadata document written by the assembler.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	ID            KbId            `json:"id"`
	Name          string          `json:"name"`
	SourceURL     string          `json:"source_url"`
	ToolVersion   string          `json:"tool_version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	PageCount     int             `json:"page_count"`
	Config        any             `json:"config,omitempty"`
	Artifacts     []ArtifactMeta  `json:"artifacts,omitempty"`
	Enrichment    *EnrichmentMeta `json:"enrichment,omitempty"`
}

// TocEntry is one node of the hierarchical table of contents. Path uses
// forward slashes, has no extension, and never carries a leading slash.
type TocEntry struct {
	Title     string     `json:"title"`
	Path      string     `json:"path"`
	SourceURL string     `json:"source_url,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Children  []TocEntry `json:"children,omitempty"`
}

// Toc is the full table of contents document (toc.json).
type Toc struct {
	Sections []TocEntry `json:"sections"`
}

// PageMeta is a single crawled/converted page's metadata row.
type PageMeta struct {
	ID          string    `json:"id"`
	KbID        string    `json:"kb_id"`
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentLen  int       `json:"content_len,omitempty"`
}

// Link is one outbound link discovered on a page.
type Link struct {
	FromPageID string `json:"from_page_id"`
	ToURL      string `json:"to_url"`
	Kind       string `json:"kind,omitempty"`
}

// CrawlJob records one crawl invocation's lifecycle and outcome.
type CrawlJob struct {
	ID         string     `json:"id"`
	KbID       string     `json:"kb_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	StatsJSON  string     `json:"stats_json,omitempty"`
}

// EnrichmentCacheEntry is a cached bridge result keyed by the 4-tuple
// (kb_id, artifact_type, prompt_hash, model_id).
type EnrichmentCacheEntry struct {
	KbID         string
	ArtifactType string
	PromptHash   string
	ModelID      string
	ResultJSON   string
	CreatedAt    time.Time
}
