package markdown

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontmatter is marshaled ahead of every converted page's Markdown body.
type frontmatter struct {
	SourceURL string `yaml:"source_url"`
	Title     string `yaml:"title"`
	FetchedAt string `yaml:"fetched_at,omitempty"`
}

// renderFrontmatter produces the "---\n...\n---\n" block, followed by one
// blank line, that is prepended to a page's Markdown. Title quotes/backslashes are escaped by yaml.v3's
// default scalar quoting rules.
func renderFrontmatter(sourceURL, title string, fetchedAt time.Time) (string, error) {
	fm := frontmatter{SourceURL: sourceURL, Title: title}
	if !fetchedAt.IsZero() {
		fm.FetchedAt = fetchedAt.UTC().Format(time.RFC3339)
	}
	out, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n\n")
	return sb.String(), nil
}
