// Package assembler writes a knowledge base's on-disk layout: the
// manifest, the table of contents, per-page Markdown files, and the
// synthesized artifacts, using atomic writes so readers never observe a
// partial file.
package assembler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/contextkb"
)

const (
	manifestFilename = "manifest.json"
	tocFilename      = "toc.json"
	docsDir          = "docs"
	artifactsDir     = "artifacts"
	indexesDir       = "indexes"
)

// KBPath returns the directory a KB with the given id lives under.
func KBPath(outputRoot string, id contextkb.KbId) string {
	return filepath.Join(outputRoot, id.String())
}

// DBPath returns the path to the KB's store database file.
func DBPath(kbPath string) string {
	return filepath.Join(kbPath, indexesDir, "kb.db")
}

// Assemble creates the directory layout, writes manifest.json and
// toc.json, and writes each page's Markdown under docs/<path>.md. It is
// idempotent: re-running it overwrites prior content.
func Assemble(kbPath string, manifest *contextkb.Manifest, tocDoc contextkb.Toc, pages map[string]string) error {
	for _, dir := range []string{kbPath, filepath.Join(kbPath, docsDir), filepath.Join(kbPath, artifactsDir), filepath.Join(kbPath, indexesDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return contextkb.IOError(dir, "creating kb directory", err)
		}
	}

	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	manifest.UpdatedAt = time.Now().UTC()
	manifest.PageCount = len(pages)

	if err := writeJSONAtomic(filepath.Join(kbPath, manifestFilename), manifest); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(kbPath, tocFilename), tocDoc); err != nil {
		return err
	}

	for path, markdown := range pages {
		dest := filepath.Join(kbPath, docsDir, path+".md")
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return contextkb.IOError(dest, "creating docs subdirectory", err)
		}
		if err := writeFileAtomic(dest, []byte(markdown)); err != nil {
			return err
		}
	}

	return nil
}

// AssembleArtifacts writes each artifact atomically, computes its SHA-256
// and size, and refreshes the manifest's artifacts/enrichment blocks and
// updated_at.
func AssembleArtifacts(kbPath string, manifest *contextkb.Manifest, artifacts map[string]string, enrichment *contextkb.EnrichmentMeta) ([]contextkb.ArtifactMeta, error) {
	dir := filepath.Join(kbPath, artifactsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, contextkb.IOError(dir, "creating artifacts directory", err)
	}

	var metas []contextkb.ArtifactMeta
	for name, content := range artifacts {
		dest := filepath.Join(dir, name)
		if err := writeFileAtomic(dest, []byte(content)); err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(content))
		metas = append(metas, contextkb.ArtifactMeta{
			Filename:  name,
			SHA256:    hex.EncodeToString(sum[:]),
			SizeBytes: int64(len(content)),
		})
	}

	manifest.Artifacts = metas
	manifest.Enrichment = enrichment
	manifest.UpdatedAt = time.Now().UTC()

	if err := writeJSONAtomic(filepath.Join(kbPath, manifestFilename), manifest); err != nil {
		return nil, err
	}

	return metas, nil
}

// LoadManifest reads and parses manifest.json, failing with ErrSchemaMismatch
// if its schema_version is not the version this build understands.
func LoadManifest(kbPath string) (*contextkb.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(kbPath, manifestFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contextkb.ErrKBNotFound
		}
		return nil, contextkb.IOError(kbPath, "reading manifest", err)
	}
	var m contextkb.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, contextkb.ParseError("invalid manifest json", err)
	}
	if m.SchemaVersion != contextkb.SchemaVersion {
		return nil, contextkb.ErrSchemaMismatch
	}
	return &m, nil
}

// LoadPage reads an existing page's Markdown from disk, used by update to
// reuse unchanged pages without re-conversion.
func LoadPage(kbPath, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(kbPath, docsDir, path+".md"))
	if err != nil {
		return "", contextkb.IOError(path, "reading existing page", err)
	}
	return string(data), nil
}

// RemovePage deletes a page's Markdown file, ignoring a not-found error.
func RemovePage(kbPath, path string) error {
	err := os.Remove(filepath.Join(kbPath, docsDir, path+".md"))
	if err != nil && !os.IsNotExist(err) {
		return contextkb.IOError(path, "removing page", err)
	}
	return nil
}

func writeJSONAtomic(dest string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return contextkb.ParseError("marshaling json", err)
	}
	return writeFileAtomic(dest, data)
}

// writeFileAtomic writes to a temp file in the same directory then renames
// it into place, so readers never observe a partially written file.
func writeFileAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return contextkb.IOError(dest, "creating temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return contextkb.IOError(dest, "writing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return contextkb.IOError(dest, "closing temp file", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return contextkb.IOError(dest, "renaming into place", err)
	}
	return nil
}
