package markdown

import (
	"strings"
	"testing"
)

func TestPreprocessTablesConvertsHeaderRow(t *testing.T) {
	html := `<body><table>
		<tr><th>Name</th><th>Type</th></tr>
		<tr><td>depth</td><td>int</td></tr>
		<tr><td>mode</td><td>string</td></tr>
	</table></body>`

	out := PreprocessTables(html)
	if !strings.Contains(out, "| Name | Type |") {
		t.Fatalf("expected header row preserved, got %q", out)
	}
	if !strings.Contains(out, "| --- | --- |") {
		t.Fatalf("expected separator row, got %q", out)
	}
	if !strings.Contains(out, "| depth | int |") {
		t.Fatalf("expected data row preserved, got %q", out)
	}
}

func TestPreprocessTablesSynthesizesHeaderWhenAbsent(t *testing.T) {
	html := `<body><table>
		<tr><td>a</td><td>b</td></tr>
		<tr><td>c</td><td>d</td></tr>
	</table></body>`

	out := PreprocessTables(html)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least header+separator+1 data row, got %q", out)
	}
	if !strings.Contains(lines[1], "---") {
		t.Fatalf("expected second line to be the separator row, got %q", lines[1])
	}
}

func TestPreprocessTablesPadsRaggedRows(t *testing.T) {
	html := `<body><table>
		<tr><th>A</th><th>B</th><th>C</th></tr>
		<tr><td>only-one</td></tr>
	</table></body>`

	out := PreprocessTables(html)
	if !strings.Contains(out, "| only-one |  |  |") {
		t.Fatalf("expected short row padded to width 3, got %q", out)
	}
}
