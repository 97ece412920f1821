// Command contextkb is a minimal entrypoint over the core add/update
// pipeline. The full CLI (subcommands, progress UI, config file discovery)
// is a thin adapter left to a separate front-end; this binary only proves
// the core is independently wireable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brunobiangulo/contextkb"
)

func main() {
	configPath := flag.String("config", "", "Path to pipeline config file (JSON)")
	sourceURL := flag.String("url", "", "Documentation site URL to add or update")
	updateID := flag.String("update", "", "Existing knowledge base id to update instead of adding")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *sourceURL == "" {
		slog.Error("missing required -url flag")
		os.Exit(1)
	}

	cfg := contextkb.DefaultPipelineConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	if v := os.Getenv("CONTEXTKB_OUTPUT_ROOT"); v != "" {
		cfg.OutputRoot = v
	}
	if v := os.Getenv("CONTEXTKB_BRIDGE_CMD"); v != "" {
		cfg.Enrichment.BridgeCmd = v
	}
	if v := os.Getenv("CONTEXTKB_BRIDGE_SCRIPT"); v != "" {
		cfg.Enrichment.BridgeScript = v
	}
	if v := os.Getenv("CONTEXTKB_MODEL_ID"); v != "" {
		cfg.Enrichment.ModelID = v
	}
	if v := os.Getenv("CONTEXTKB_API_KEY"); v != "" {
		cfg.Enrichment.APIKey = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *updateID != "" {
		id, err := contextkb.ParseKbId(*updateID)
		if err != nil {
			slog.Error("invalid -update id", "error", err)
			os.Exit(1)
		}
		result, err := contextkb.Update(ctx, id, *sourceURL, cfg)
		if err != nil {
			slog.Error("update failed", "error", err)
			os.Exit(1)
		}
		slog.Info("update complete", "kb_id", result.KBID.String(), "added", result.Added,
			"changed", result.Changed, "unchanged", result.Unchanged, "removed", result.Removed)
		return
	}

	if cfg.Name == "" {
		slog.Error("config name is required for a new knowledge base")
		os.Exit(1)
	}
	result, err := contextkb.Add(ctx, *sourceURL, cfg)
	if err != nil {
		slog.Error("add failed", "error", err)
		os.Exit(1)
	}
	slog.Info("add complete", "kb_id", result.KBID.String(), "kb_path", result.KBPath, "pages", result.PageCount)
}
