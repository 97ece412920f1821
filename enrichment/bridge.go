// Package enrichment drives an external model-bridge subprocess over a
// line-delimited JSON protocol to synthesize summaries, descriptions, and
// instructional artifacts for a knowledge base.
package enrichment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/brunobiangulo/contextkb"
)

// TaskType enumerates the enrichment operations the bridge can perform.
type TaskType string

const (
	TaskSummarizePage       TaskType = "summarize_page"
	TaskGenerateDescription TaskType = "generate_description"
	TaskGenerateSkillMd     TaskType = "generate_skill_md"
	TaskGenerateRules       TaskType = "generate_rules"
	TaskGenerateStyle       TaskType = "generate_style"
	TaskGenerateDoDont      TaskType = "generate_do_dont"
	TaskGenerateLlmsTxt     TaskType = "generate_llms_txt"
	TaskGenerateLlmsFullTxt TaskType = "generate_llms_full_txt"
)

// Task is one unit of enrichment work sent to the bridge.
type Task struct {
	TaskType  TaskType `json:"task_type"`
	Content   string   `json:"content,omitempty"`
	PagesJSON string   `json:"pages_json,omitempty"`
	TocJSON   string   `json:"toc_json,omitempty"`
	KbName    string   `json:"kb_name,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
}

// BridgeResult is the bridge's answer to a single task.
type BridgeResult struct {
	Text      string `json:"text"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
}

type requestFrame struct {
	Type string `json:"type"` // "enrich" or "shutdown"
	ID   string `json:"id,omitempty"`
	Task *Task  `json:"task,omitempty"`
}

type responseFrame struct {
	Type   string        `json:"type"` // "ready", "result", "error"
	ID     string        `json:"id,omitempty"`
	Result *BridgeResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BridgeHandle owns one spawned bridge subprocess and enforces the
// strictly-serial request/response protocol.
type BridgeHandle struct {
	cmd     *exec.Cmd
	stdin   *json.Encoder
	scanner *bufio.Scanner
	counter int64
}

// Spawn starts the bridge subprocess and blocks until it emits exactly one
// {"type":"ready"} frame on stdout.
func Spawn(ctx context.Context, cfg contextkb.EnrichmentConfig) (*BridgeHandle, error) {
	args := []string{}
	if cfg.BridgeScript != "" {
		args = append(args, cfg.BridgeScript)
	}
	cmd := exec.CommandContext(ctx, cfg.BridgeCmd, args...)
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, contextkb.EnrichmentError("opening bridge stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, contextkb.EnrichmentError("opening bridge stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, contextkb.EnrichmentError("spawning bridge process", err)
	}

	h := &BridgeHandle{
		cmd:     cmd,
		stdin:   json.NewEncoder(stdin),
		scanner: bufio.NewScanner(stdout),
	}
	h.scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var ready responseFrame
	if err := h.readFrame(&ready); err != nil {
		return nil, contextkb.EnrichmentError("waiting for bridge ready frame", err)
	}
	if ready.Type != "ready" {
		return nil, contextkb.EnrichmentError(fmt.Sprintf("expected ready frame, got %q", ready.Type), nil)
	}

	return h, nil
}

// SendTask sends one enrich request and blocks for its matching response.
func (h *BridgeHandle) SendTask(task Task) (*BridgeResult, error) {
	id := fmt.Sprintf("req-%d", atomic.AddInt64(&h.counter, 1))

	if err := h.stdin.Encode(requestFrame{Type: "enrich", ID: id, Task: &task}); err != nil {
		return nil, contextkb.EnrichmentError("writing enrich request", err)
	}

	var resp responseFrame
	if err := h.readFrame(&resp); err != nil {
		return nil, contextkb.EnrichmentError("reading bridge response", err)
	}

	switch resp.Type {
	case "ready":
		return nil, contextkb.EnrichmentError("unexpected ready frame mid-conversation", nil)
	case "error":
		if resp.ID != id {
			return nil, contextkb.EnrichmentError(fmt.Sprintf("response id mismatch: want %s got %s", id, resp.ID), nil)
		}
		return nil, contextkb.EnrichmentError(resp.Error, nil)
	case "result":
		if resp.ID != id {
			return nil, contextkb.EnrichmentError(fmt.Sprintf("response id mismatch: want %s got %s", id, resp.ID), nil)
		}
		return resp.Result, nil
	default:
		return nil, contextkb.EnrichmentError(fmt.Sprintf("unknown response type %q", resp.Type), nil)
	}
}

// Shutdown sends the shutdown frame and waits for process exit. A process
// still running 5 seconds later is killed and an error is returned. A failed
// write, a non-zero exit or a kill is logged by the caller, never escalated.
func (h *BridgeHandle) Shutdown() error {
	_ = h.stdin.Encode(requestFrame{Type: "shutdown"})
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		_ = h.cmd.Process.Kill()
		<-done
		return fmt.Errorf("bridge did not exit within 5s of shutdown; killed")
	}
}

func (h *BridgeHandle) readFrame(v *responseFrame) error {
	if !h.scanner.Scan() {
		if err := h.scanner.Err(); err != nil {
			return err
		}
		return fmt.Errorf("bridge stdout closed unexpectedly")
	}
	return json.Unmarshal(h.scanner.Bytes(), v)
}
