package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/brunobiangulo/contextkb"
	"github.com/brunobiangulo/contextkb/store"
)

const (
	pageSummaryBudget     = 12000
	pageDescriptionBudget = 8000
	kbPageBudget          = 4000
)

const truncationMarker = "\n\n[... content truncated for LLM context window ...]"

// PageInput is one page's content available for enrichment.
type PageInput struct {
	Path    string
	Title   string
	Content string // cleaned markdown body
}

// Results aggregates everything Run produced.
type Results struct {
	Summaries      map[string]string // path -> summary
	Descriptions   map[string]string // path -> description
	LlmsTxt        string
	LlmsFullTxt    string
	SkillMd        string
	Rules          string
	Style          string
	DoDont         string
	Model          string
	TotalTokensIn  int
	TotalTokensOut int
	CacheHits      int
	CacheMisses    int
}

// Run drives the bridge through the four-phase enrichment sequence:
// per-page summaries, per-page descriptions, the four KB-level artifacts,
// then shutdown. Any failure on a single task is logged and that task's
// output is left empty; Run itself only fails if the bridge cannot be
// spawned at all.
func Run(ctx context.Context, cfg contextkb.EnrichmentConfig, kbID, kbName, sourceURL string, pages []PageInput, tocJSON string, st *store.Store, progress contextkb.Progress) (*Results, error) {
	if progress == nil {
		progress = contextkb.NoopProgress{}
	}
	results := &Results{
		Summaries:    map[string]string{},
		Descriptions: map[string]string{},
		Model:        cfg.ModelID,
	}

	if cfg.Skip {
		return results, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bridge, err := Spawn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := bridge.Shutdown(); err != nil {
			slog.Warn("bridge shutdown wait failed", "error", err)
		}
	}()

	progress.Phase("summarize_pages")
	for i, p := range pages {
		text, err := runCachedTask(ctx, bridge, st, results, kbID, cfg.ModelID, TaskSummarizePage,
			truncate(p.Content, pageSummaryBudget), Task{TaskType: TaskSummarizePage})
		if err != nil {
			slog.Warn("summarize_page failed", "path", p.Path, "error", err)
		} else {
			results.Summaries[p.Path] = text
		}
		progress.PageConverted(p.Path, i+1, len(pages))
	}

	progress.Phase("generate_descriptions")
	for i, p := range pages {
		text, err := runCachedTask(ctx, bridge, st, results, kbID, cfg.ModelID, TaskGenerateDescription,
			truncate(p.Content, pageDescriptionBudget), Task{TaskType: TaskGenerateDescription})
		if err != nil {
			slog.Warn("generate_description failed", "path", p.Path, "error", err)
		} else {
			results.Descriptions[p.Path] = text
		}
		progress.PageConverted(p.Path, i+1, len(pages))
	}

	progress.Phase("kb_artifacts")
	summariesJSON, _ := json.Marshal(results.Summaries)
	pagesJSON := buildPagesJSON(pages)

	kbTasks := []struct {
		taskType TaskType
		dest     *string
	}{
		{TaskGenerateSkillMd, &results.SkillMd},
		{TaskGenerateRules, &results.Rules},
		{TaskGenerateStyle, &results.Style},
		{TaskGenerateDoDont, &results.DoDont},
	}
	for _, kt := range kbTasks {
		text, err := runCachedTask(ctx, bridge, st, results, kbID, cfg.ModelID, kt.taskType, string(summariesJSON), Task{
			TaskType:  kt.taskType,
			PagesJSON: pagesJSON,
			TocJSON:   tocJSON,
			KbName:    kbName,
			SourceURL: sourceURL,
		})
		if err != nil {
			slog.Warn("kb artifact task failed", "task", kt.taskType, "error", err)
			continue
		}
		*kt.dest = text
	}

	return results, nil
}

// runCachedTask computes the prompt hash over (content, taskType), checks
// the cache, and on a miss sends the task to the bridge and caches the
// result.
func runCachedTask(ctx context.Context, bridge *BridgeHandle, st *store.Store, results *Results, kbID, modelID string, taskType TaskType, hashContent string, task Task) (string, error) {
	hash := promptHash(hashContent, string(taskType))

	if st != nil {
		if cached, ok, err := st.GetEnrichmentCache(ctx, kbID, string(taskType), hash, modelID); err == nil && ok {
			results.CacheHits++
			var r BridgeResult
			if err := json.Unmarshal([]byte(cached), &r); err == nil {
				return r.Text, nil
			}
		}
	}

	results.CacheMisses++
	task.Content = hashContent
	res, err := bridge.SendTask(task)
	if err != nil {
		return "", err
	}
	results.TotalTokensIn += res.TokensIn
	results.TotalTokensOut += res.TokensOut
	if res.Model != "" {
		results.Model = res.Model
	}

	if st != nil {
		resJSON, _ := json.Marshal(res)
		if err := st.SetEnrichmentCache(ctx, store.EnrichmentCacheEntry{
			KbID:         kbID,
			ArtifactType: string(taskType),
			PromptHash:   hash,
			ModelID:      modelID,
			ResultJSON:   string(resJSON),
		}); err != nil {
			slog.Warn("caching enrichment result failed", "task", taskType, "error", err)
		}
	}

	return res.Text, nil
}

func promptHash(content, taskType string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte(taskType))
	return hex.EncodeToString(h.Sum(nil))
}

// truncate clips content to maxChars, appending the literal marker line
// when truncation occurs.
func truncate(content string, maxChars int) string {
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + truncationMarker
}

func buildPagesJSON(pages []PageInput) string {
	type packed struct {
		Path    string `json:"path"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	packedPages := make([]packed, 0, len(pages))
	for _, p := range pages {
		packedPages = append(packedPages, packed{
			Path:    p.Path,
			Title:   p.Title,
			Content: truncate(p.Content, kbPageBudget),
		})
	}
	data, _ := json.Marshal(packedPages)
	return string(data)
}
