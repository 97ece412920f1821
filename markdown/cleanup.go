package markdown

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	headingRe   = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	blankLineRe = regexp.MustCompile(`\n{4,}`)
	codeFenceRe = regexp.MustCompile("(?m)^```(?:language-|lang-|highlight-)(\\w+)")
	strayHTMLRe = regexp.MustCompile(`</?(?:div|span|section|article|aside|header|footer|figure|figcaption|details|summary)(?:\s[^>]*)?>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
)

// RunCleanupPipeline applies the seven normalization passes, in order, to
// raw converted markdown.
func RunCleanupPipeline(md, baseURL string) string {
	md = normalizeHeadings(md)
	md = cleanBlankLines(md)
	md = fixCodeBlockLanguages(md)
	md = stripLeftoverHTML(md)
	md = resolveLinks(md, baseURL)
	md = normalizeWhitespace(md)
	md = ensureTrailingNewline(md)
	return md
}

// normalizeHeadings keeps only the first H1 (a single '#'); any later
// top-level heading is demoted to H2.
func normalizeHeadings(md string) string {
	seenH1 := false
	return headingRe.ReplaceAllStringFunc(md, func(m string) string {
		sub := headingRe.FindStringSubmatch(m)
		hashes, text := sub[1], sub[2]
		if len(hashes) == 1 {
			if !seenH1 {
				seenH1 = true
				return "# " + text
			}
			return "## " + text
		}
		return hashes + " " + text
	})
}

func cleanBlankLines(md string) string {
	return blankLineRe.ReplaceAllString(md, "\n\n\n")
}

func fixCodeBlockLanguages(md string) string {
	return codeFenceRe.ReplaceAllString(md, "```$1")
}

// stripLeftoverHTML removes structural HTML tags line by line, passing
// fenced code blocks through untouched.
func stripLeftoverHTML(md string) string {
	lines := strings.Split(md, "\n")
	inCode := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		lines[i] = strayHTMLRe.ReplaceAllStringFunc(line, func(tag string) string {
			return ""
		})
	}
	return strings.Join(lines, "\n")
}

// stripHTMLTags removes any remaining tags while preserving inner text,
// used when a whole element (not just the wrapping tag) must be flattened.
func stripHTMLTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

// resolveLinks rewrites relative, non-anchor, non-mailto, non-image hrefs
// to absolute URLs against baseURL.
func resolveLinks(md, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return md
	}

	matches := linkRe.FindAllStringSubmatchIndex(md, -1)
	if matches == nil {
		return md
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		sb.WriteString(md[last:start])
		isImage := start > 0 && md[start-1] == '!'
		text := md[m[2]:m[3]]
		href := md[m[4]:m[5]]

		if isImage || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") ||
			strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			sb.WriteString(md[start:end])
		} else if ref, err := url.Parse(href); err == nil {
			resolved := base.ResolveReference(ref)
			sb.WriteString("[" + text + "](" + resolved.String() + ")")
		} else {
			sb.WriteString(md[start:end])
		}
		last = end
	}
	sb.WriteString(md[last:])
	return sb.String()
}

func normalizeWhitespace(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func ensureTrailingNewline(md string) string {
	return strings.TrimRight(md, "\n") + "\n"
}
