package enrichment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/contextkb"
)

const fakeBridgeScript = `#!/bin/sh
echo '{"type":"ready"}'
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  type=$(printf '%s' "$line" | sed -n 's/.*"type":"\([^"]*\)".*/\1/p')
  if [ "$type" = "shutdown" ]; then
    exit 0
  fi
  printf '{"type":"result","id":"%s","result":{"text":"stub-summary","tokens_in":3,"tokens_out":5,"model":"test-model","latency_ms":1}}\n' "$id"
done
`

func writeFakeBridge(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.sh")
	if err := os.WriteFile(path, []byte(fakeBridgeScript), 0755); err != nil {
		t.Fatalf("writing fake bridge: %v", err)
	}
	return path
}

func TestSpawnAndSendTaskRoundTrip(t *testing.T) {
	script := writeFakeBridge(t)
	cfg := contextkb.EnrichmentConfig{BridgeCmd: "/bin/sh", BridgeScript: script, ModelID: "test-model"}

	bridge, err := Spawn(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	res, err := bridge.SendTask(Task{TaskType: TaskSummarizePage, Content: "hello world"})
	if err != nil {
		t.Fatalf("SendTask: %v", err)
	}
	if res.Text != "stub-summary" {
		t.Fatalf("unexpected result text: %q", res.Text)
	}
	if res.TokensIn != 3 || res.TokensOut != 5 {
		t.Fatalf("unexpected token counts: %+v", res)
	}

	if err := bridge.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestPromptHashStableAcrossCallsSameInput(t *testing.T) {
	a := promptHash("content", "summarize_page")
	b := promptHash("content", "summarize_page")
	if a != b {
		t.Fatalf("expected stable hash, got %q vs %q", a, b)
	}
	c := promptHash("content", "generate_description")
	if a == c {
		t.Fatal("expected different task types to hash differently")
	}
}

func TestTruncateAppendsMarkerOnlyWhenNeeded(t *testing.T) {
	short := "short content"
	if got := truncate(short, 100); got != short {
		t.Fatalf("expected untruncated passthrough, got %q", got)
	}

	long := make([]byte, 50)
	for i := range long {
		long[i] = 'a'
	}
	got := truncate(string(long), 10)
	if len(got) <= 10 {
		t.Fatalf("expected marker appended, got %q", got)
	}
	if got[:10] != string(long[:10]) {
		t.Fatalf("expected content prefix preserved, got %q", got)
	}
}
