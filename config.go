package contextkb

// CrawlConfig governs discovery/crawl behavior for a single add or update.
type CrawlConfig struct {
	Depth            int      `json:"depth"`
	Concurrency      int      `json:"concurrency"`
	IncludePatterns  []string `json:"include_patterns,omitempty"`
	ExcludePatterns  []string `json:"exclude_patterns,omitempty"`
	RateLimitMs      int      `json:"rate_limit_ms"`
	Mode             string   `json:"mode"` // "auto", "llms-txt", "crawl"
	RespectRobotsTxt bool     `json:"respect_robots_txt"`
}

// DefaultCrawlConfig returns conservative defaults suitable for a first run
// against an unfamiliar site.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Depth:            3,
		Concurrency:      4,
		RateLimitMs:      250,
		Mode:             "auto",
		RespectRobotsTxt: true,
	}
}

// EnrichmentConfig configures the out-of-process model bridge.
type EnrichmentConfig struct {
	BridgeCmd    string `json:"bridge_cmd"`
	BridgeScript string `json:"bridge_script,omitempty"`
	WorkingDir   string `json:"working_dir,omitempty"`
	ModelID      string `json:"model_id"`
	APIKey       string `json:"api_key,omitempty"`
	Skip         bool   `json:"skip,omitempty"` // skip enrichment entirely
}

// Validate reports a Config-kind error when the bridge cannot plausibly be
// spawned; it does not attempt to contact the bridge.
func (c EnrichmentConfig) Validate() error {
	if c.Skip {
		return nil
	}
	if c.BridgeCmd == "" {
		return ConfigError("enrichment bridge_cmd is required unless skip is set", nil)
	}
	return nil
}

// PipelineConfig is the top-level configuration contract consumed by Add
// and Update. Loading it from a file plus environment overrides is the
// responsibility of the (out-of-scope) CLI front-end.
type PipelineConfig struct {
	Name         string           `json:"name"`
	OutputRoot   string           `json:"output_root"`
	Crawl        CrawlConfig      `json:"crawl"`
	Enrichment   EnrichmentConfig `json:"enrichment"`
	Prune        bool             `json:"prune,omitempty"`
	Force        bool             `json:"force,omitempty"`
	ToolVersion  string           `json:"tool_version,omitempty"`
}

// DefaultPipelineConfig returns a PipelineConfig with DefaultCrawlConfig
// wired in and enrichment skipped, suitable as a starting point before a
// caller overrides fields from its own configuration source.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Crawl:      DefaultCrawlConfig(),
		Enrichment: EnrichmentConfig{Skip: true},
	}
}
