package assembler

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brunobiangulo/contextkb"
)

// ValidateKB enforces the structural invariants a reader depends on:
// manifest.json and toc.json exist and parse, docs/ exists, and the
// manifest schema_version is supported. TOC entries with no backing
// docs/<path>.md file are logged, not rejected.
func ValidateKB(kbPath string) error {
	manifest, err := LoadManifest(kbPath)
	if err != nil {
		return err
	}

	tocData, err := os.ReadFile(filepath.Join(kbPath, tocFilename))
	if err != nil {
		return contextkb.IOError(kbPath, "reading toc", err)
	}
	var tocDoc contextkb.Toc
	if err := json.Unmarshal(tocData, &tocDoc); err != nil {
		return contextkb.ParseError("invalid toc json", err)
	}

	docs := filepath.Join(kbPath, docsDir)
	if info, err := os.Stat(docs); err != nil || !info.IsDir() {
		return contextkb.ValidationError("docs directory missing", err)
	}

	var walk func(entries []contextkb.TocEntry)
	walk = func(entries []contextkb.TocEntry) {
		for _, e := range entries {
			if _, err := os.Stat(filepath.Join(docs, e.Path+".md")); err != nil {
				slog.Warn("toc entry has no backing page", "path", e.Path)
			}
			walk(e.Children)
		}
	}
	walk(tocDoc.Sections)

	_ = manifest
	return nil
}
