package markdown

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PreprocessTables replaces every <table> in rawHTML with an equivalent
// pipe-delimited Markdown table, padding rows to the widest row's column
// count and using the first header-bearing row as the Markdown header.
// Runs before the HTML-to-Markdown converter, which otherwise renders
// tables inconsistently across platforms.
func PreprocessTables(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		md := tableToMarkdown(table)
		table.ReplaceWithHtml("\n\n" + md + "\n\n")
	})

	html, err := doc.Find("body").Html()
	if err != nil {
		return rawHTML
	}
	return html
}

func tableToMarkdown(table *goquery.Selection) string {
	var rows [][]string
	headerIdx := -1
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		hasHeader := false
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if goquery.NodeName(cell) == "th" {
				hasHeader = true
			}
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if hasHeader && headerIdx < 0 {
			headerIdx = len(rows)
		}
		rows = append(rows, cells)
	})

	if len(rows) == 0 {
		return ""
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}

	var sb strings.Builder
	if headerIdx < 0 {
		// No <th> cells at all: synthesize a blank header row so the
		// output is still a valid Markdown table.
		header := make([]string, width)
		rows = append([][]string{header}, rows...)
		headerIdx = 0
	}

	writeRow := func(cells []string) {
		sb.WriteString("| ")
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString(" |\n")
	}

	writeRow(rows[headerIdx])
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for i, r := range rows {
		if i != headerIdx {
			writeRow(r)
		}
	}

	return sb.String()
}
