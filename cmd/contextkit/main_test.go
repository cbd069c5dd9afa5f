// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/contextkit/lib/llm"
	llmcontext "github.com/bureau-foundation/contextkit/lib/llm/context"
)

const recordedSSE = "event: message_start\n" +
	`data: {"type":"message_start","message":{"model":"claude-sonnet-4-5-20250929","usage":{"input_tokens":100,"output_tokens":1,"cache_read_input_tokens":2048}}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Replayed answer"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":0}` + "\n\n" +
	"event: message_delta\n" +
	`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":6}}` + "\n\n" +
	"event: message_stop\n" +
	`data: {"type":"message_stop"}` + "\n\n"

const historyJSONC = `[
  // Earlier turns of the conversation.
  {"role": "user", "content": [{"type": "text", "text": "What is CBOR?"}]},
  {"role": "assistant", "content": [{"type": "text", "text": "A binary data format."}]},
]`

// fixture writes a replay transcript and a history file and returns
// their paths.
func fixture(t *testing.T) (replayPath, historyPath string) {
	t.Helper()
	directory := t.TempDir()
	replayPath = filepath.Join(directory, "turn.sse")
	if err := os.WriteFile(replayPath, []byte(recordedSSE), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	historyPath = filepath.Join(directory, "chat.jsonc")
	if err := os.WriteFile(historyPath, []byte(historyJSONC), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return replayPath, historyPath
}

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", ""}, args...)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestReplayTextReport(t *testing.T) {
	t.Parallel()
	replayPath, historyPath := fixture(t)

	stdout, _, err := runArgs(t,
		"--config", writeConfig(t),
		"--history", historyPath,
		"--prompt", "And CBOR tags?",
		"--replay", replayPath,
	)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.HasPrefix(stdout, "Replayed answer\n") {
		t.Errorf("stdout does not start with the response text:\n%s", stdout)
	}
	for _, want := range []string{"claude-sonnet-4-5", "Budget", "Prompt cache"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q:\n%s", want, stdout)
		}
	}
}

func TestReplayJSONReport(t *testing.T) {
	t.Parallel()
	replayPath, historyPath := fixture(t)

	stdout, _, err := runArgs(t,
		"--config", writeConfig(t),
		"--history", historyPath,
		"--prompt", "And CBOR tags?",
		"--replay", replayPath,
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}

	var report struct {
		Model  string `json:"model"`
		Budget struct {
			TotalUsedTokens int64 `json:"total_used_tokens"`
		} `json:"budget"`
		Preflight struct {
			OriginalMessages int   `json:"original_messages"`
			MarkedIndices    []int `json:"marked_indices"`
		} `json:"preflight"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
	}
	if report.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want %q", report.Model, "claude-sonnet-4-5")
	}
	// The replayed turn reports 100 input and 6 output tokens on top of
	// the loaded history's estimated size.
	history, err := loadHistory(historyPath)
	if err != nil {
		t.Fatalf("loadHistory() error: %v", err)
	}
	want := 106 + llmcontext.NewCharEstimator().EstimateTokens(history)
	if report.Budget.TotalUsedTokens != want {
		t.Errorf("TotalUsedTokens = %d, want %d", report.Budget.TotalUsedTokens, want)
	}
	if report.Preflight.OriginalMessages != 3 {
		t.Errorf("OriginalMessages = %d, want 3", report.Preflight.OriginalMessages)
	}
	if len(report.Preflight.MarkedIndices) != 2 || report.Preflight.MarkedIndices[0] != 0 || report.Preflight.MarkedIndices[1] != 2 {
		t.Errorf("MarkedIndices = %v, want [0 2]", report.Preflight.MarkedIndices)
	}
}

func TestLongHistoryIsTruncated(t *testing.T) {
	t.Parallel()
	replayPath, _ := fixture(t)
	directory := t.TempDir()

	configPath := filepath.Join(directory, "contextkit.yaml")
	config := `model: tiny
log_level: warn
budget:
  max_input_utilization: 0.85
  output_token_buffer: 100
models:
  - id: tiny
    context_window: 1000
    max_output_tokens: 100
`
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	var long []llm.Message
	for i := range 10 {
		long = append(long,
			llm.UserMessage(fmt.Sprintf("question %d %s", i, strings.Repeat("q", 200))),
			llm.AssistantMessage(fmt.Sprintf("answer %d %s", i, strings.Repeat("a", 200))))
	}
	historyPath := filepath.Join(directory, "long.json")
	if err := saveHistory(historyPath, long); err != nil {
		t.Fatalf("saveHistory() error: %v", err)
	}

	stdout, _, err := runArgs(t,
		"--config", configPath,
		"--history", historyPath,
		"--prompt", "summarize",
		"--replay", replayPath,
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}

	var report struct {
		Preflight struct {
			Truncated        bool `json:"truncated"`
			OriginalMessages int  `json:"original_messages"`
			WorkingMessages  int  `json:"working_messages"`
		} `json:"preflight"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
	}
	preflight := report.Preflight
	if !preflight.Truncated || preflight.OriginalMessages != 21 || preflight.WorkingMessages != 7 {
		t.Errorf("preflight = %+v, want 21 messages truncated to 7", preflight)
	}
}

func TestReplaySavesHistory(t *testing.T) {
	t.Parallel()
	replayPath, historyPath := fixture(t)
	savePath := filepath.Join(t.TempDir(), "saved.json")

	_, _, err := runArgs(t,
		"--config", writeConfig(t),
		"--history", historyPath,
		"--prompt", "And CBOR tags?",
		"--replay", replayPath,
		"--save-history", savePath,
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}

	saved, err := loadHistory(savePath)
	if err != nil {
		t.Fatalf("loadHistory() error: %v", err)
	}
	if len(saved) != 4 {
		t.Fatalf("saved %d messages, want 4", len(saved))
	}
	if saved[2].FlattenedText() != "And CBOR tags?" {
		t.Errorf("saved[2] = %q, want the prompt", saved[2].FlattenedText())
	}
	last := saved[3]
	if last.Role != llm.RoleAssistant || last.FlattenedText() != "Replayed answer" {
		t.Errorf("saved[3] = %s %q, want assistant %q", last.Role, last.FlattenedText(), "Replayed answer")
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "contextkit ") {
		t.Errorf("--version output = %q, want prefix %q", stdout.String(), "contextkit ")
	}
}

func TestHelp(t *testing.T) {
	t.Parallel()
	_, stderr, err := runArgs(t, "--help")
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}
	for _, want := range []string{"Usage:", "--replay", "--save-history"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("help missing %q:\n%s", want, stderr)
		}
	}
}

func TestRejectedInvocations(t *testing.T) {
	t.Parallel()
	replayPath, _ := fixture(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--bogus"}, "unknown flag"},
		{"positional argument", []string{"extra"}, "unexpected argument"},
		{"bad format", []string{"--format", "xml"}, "unknown format"},
		{"replay with record", []string{"--replay", replayPath, "--record", "out.sse"}, "cannot be combined"},
		{"nothing to send", []string{"--config", writeConfig(t), "--replay", replayPath}, "nothing to send"},
		{"bad log level", []string{"--config", writeConfig(t), "--log-level", "loud", "--prompt", "hi", "--replay", replayPath}, "log_level"},
		{"missing history", []string{"--config", writeConfig(t), "--history", filepath.Join(t.TempDir(), "none.json"), "--replay", replayPath}, "reading history"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := runArgs(t, test.args...)
			if err == nil {
				t.Fatalf("run(%v) succeeded, want error containing %q", test.args, test.want)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("run(%v) error = %v, want it to contain %q", test.args, err, test.want)
			}
		})
	}
}

func TestLiveRequiresAPIKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "contextkit.yaml")
	content := "anthropic:\n  api_key_env: CONTEXTKIT_TEST_KEY_THAT_IS_NEVER_SET\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	_, _, err := runArgs(t, "--config", path, "--prompt", "hi")
	if err == nil || !strings.Contains(err.Error(), "CONTEXTKIT_TEST_KEY_THAT_IS_NEVER_SET is not set") {
		t.Errorf("run() error = %v, want missing API key", err)
	}
}

func TestLoadHistoryRejectsUnknownRole(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.json")
	content := `[{"role": "system", "content": [{"type": "text", "text": "x"}]}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := loadHistory(path); err == nil || !strings.Contains(err.Error(), `role "system"`) {
		t.Errorf("loadHistory() error = %v, want role error", err)
	}
}

// writeConfig writes a minimal YAML config so tests do not depend on
// CONTEXTKIT_CONFIG in the environment.
func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contextkit.yaml")
	if err := os.WriteFile(path, []byte("model: claude-sonnet-4-5\nlog_level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}
