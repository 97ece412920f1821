// Package discovery detects and parses a site-published llms.txt (and the
// optional llms-full.txt sibling) so the pipeline can skip crawling when a
// maintainer already publishes a structured index.
package discovery

import (
	"strings"

	"github.com/brunobiangulo/contextkb"
)

// Entry is one bulleted link line under a section (or the top level).
type Entry struct {
	Name  string
	URL   string
	Notes string
}

// Section is one "## Heading" block of entries.
type Section struct {
	Title   string
	Entries []Entry
}

// Parsed is the full structure recovered from an llms.txt document.
type Parsed struct {
	Title    string
	Summary  string
	Sections []Section
	Entries  []Entry // flat concatenation across all sections
}

// ParseLlmsTxt parses content per the llmstxt.org convention: a required H1
// title, optional blockquote summary lines, then alternating H2 sections
// and bulleted link entries. Anything else is silently skipped.
func ParseLlmsTxt(content string) (*Parsed, error) {
	if strings.TrimSpace(content) == "" {
		return nil, contextkb.ParseError("llms.txt is empty", nil)
	}

	lines := strings.Split(content, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[i]), "# ") {
		return nil, contextkb.ParseError("llms.txt must start with an H1 heading (# Title)", nil)
	}
	title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[i]), "# "))
	i++

	var summaryParts []string
	for i < len(lines) {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			i++
			continue
		}
		if strings.HasPrefix(t, ">") {
			summaryParts = append(summaryParts, strings.TrimSpace(strings.TrimPrefix(t, ">")))
			i++
			continue
		}
		break
	}

	p := &Parsed{Title: title, Summary: strings.Join(summaryParts, " ")}

	var current *Section
	for ; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "## ") {
			if current != nil {
				p.Sections = append(p.Sections, *current)
			}
			current = &Section{Title: strings.TrimSpace(strings.TrimPrefix(t, "## "))}
			continue
		}
		if e, ok := parseLinkLine(t); ok {
			if current != nil {
				current.Entries = append(current.Entries, e)
			}
			p.Entries = append(p.Entries, e)
			continue
		}
		// Non-matching paragraph: ignored, non-fatal.
	}
	if current != nil {
		p.Sections = append(p.Sections, *current)
	}

	return p, nil
}

// parseLinkLine matches "- [Name](url)" or "- [Name](url): Notes".
func parseLinkLine(line string) (Entry, bool) {
	if !(strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")) {
		return Entry{}, false
	}
	rest := strings.TrimSpace(line[2:])
	if !strings.HasPrefix(rest, "[") {
		return Entry{}, false
	}
	closeBracket := strings.Index(rest, "]")
	if closeBracket < 0 || closeBracket+1 >= len(rest) || rest[closeBracket+1] != '(' {
		return Entry{}, false
	}
	name := rest[1:closeBracket]
	afterParen := rest[closeBracket+2:]
	closeParen := strings.Index(afterParen, ")")
	if closeParen < 0 {
		return Entry{}, false
	}
	url := afterParen[:closeParen]
	notes := strings.TrimSpace(afterParen[closeParen+1:])
	notes = strings.TrimPrefix(notes, ":")
	notes = strings.TrimSpace(notes)
	return Entry{Name: name, URL: url, Notes: notes}, true
}
