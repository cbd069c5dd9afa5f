// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/contextkit/lib/clock"
	"github.com/bureau-foundation/contextkit/lib/codec"
	"github.com/bureau-foundation/contextkit/lib/llm/budget"
	"github.com/bureau-foundation/contextkit/lib/llm/cache"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
	"github.com/bureau-foundation/contextkit/lib/llm/stream"
)

type fixedSource struct {
	budget budget.Budget
}

func (fixedSource) Profile() model.Profile {
	return model.Profile{ID: "claude-sonnet-4-5", ContextWindow: 200_000}
}
func (source fixedSource) RemainingBudget() budget.Budget { return source.budget }
func (fixedSource) Utilization() float64                  { return 0.9 }
func (fixedSource) CacheMetrics() cache.Metrics {
	return cache.Metrics{Hits: 3, Misses: 1, ReadTokens: 1_500, WriteTokens: 900, TotalTokensSaved: 1_200, CostSaved: 0.0031}
}
func (fixedSource) EfficiencyMetrics() cache.Efficiency { return cache.Efficiency{HitRate: 0.75} }
func (fixedSource) EstimateCost() float64              { return 1.2345 }
func (fixedSource) LastPreflight() stream.PreflightReport {
	return stream.PreflightReport{
		Truncated: true, OriginalMessages: 40, WorkingMessages: 21,
		EstimatedInputTokens: 12_000, Accommodated: true, PrefixReused: true,
	}
}

func sampleSnapshot() Snapshot {
	source := fixedSource{budget: budget.Budget{
		AvailableInputTokens: -2_500,
		ReservedOutputTokens: 4_096,
		TotalUsedTokens:      180_000,
	}}
	return Capture(source, clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestCapture(t *testing.T) {
	t.Parallel()

	snapshot := sampleSnapshot()
	if snapshot.Model != "claude-sonnet-4-5" || snapshot.ContextWindow != 200_000 {
		t.Errorf("Model, ContextWindow = %q, %d", snapshot.Model, snapshot.ContextWindow)
	}
	if snapshot.Cache.Hits != 3 || snapshot.EstimatedCost != 1.2345 || !snapshot.Preflight.Truncated {
		t.Errorf("Capture() = %+v, want the source's values", snapshot)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC); !snapshot.CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", snapshot.CapturedAt, want)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	if err := Write(&buffer, sampleSnapshot(), FormatJSON, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	budgetFields, ok := decoded["budget"].(map[string]any)
	if !ok || budgetFields["available_input_tokens"] != float64(-2_500) {
		t.Errorf("budget = %v, want available_input_tokens -2500", decoded["budget"])
	}
	if cacheFields, ok := decoded["cache"].(map[string]any); !ok || cacheFields["hits"] != float64(3) {
		t.Errorf("cache = %v, want hits 3", decoded["cache"])
	}
}

func TestWriteCBOR(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	if err := Write(&buffer, sampleSnapshot(), FormatCBOR, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	var decoded map[string]any
	if err := codec.Unmarshal(buffer.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded["model"] != "claude-sonnet-4-5" {
		t.Errorf("model = %v, want claude-sonnet-4-5", decoded["model"])
	}
	if _, ok := decoded["preflight"].(map[string]any); !ok {
		t.Errorf("preflight = %T, want a map", decoded["preflight"])
	}
}

func TestRenderPlain(t *testing.T) {
	t.Parallel()

	report := NewRenderer(&bytes.Buffer{}, false).Render(sampleSnapshot())
	if strings.Contains(report, "\x1b[") {
		t.Errorf("plain report contains escape codes:\n%s", report)
	}
	for _, want := range []string{
		"claude-sonnet-4-5",
		"200,000",
		"-2,500 (over budget)",
		"90.0%",
		"3 / 1",
		"$0.0031",
		"75.0%",
		"21 of 40 messages (truncated)",
		"~12,000",
		"$1.23",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"text", "json", "cbor"} {
		if _, err := ParseFormat(value); err != nil {
			t.Errorf("ParseFormat(%q) error: %v", value, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}

func TestFormatTokens(t *testing.T) {
	t.Parallel()

	tests := map[int64]string{0: "0", 999: "999", 1_000: "1,000", 123_456: "123,456", 1_234_567: "1,234,567", -45_000: "-45,000"}
	for input, want := range tests {
		if got := formatTokens(input); got != want {
			t.Errorf("formatTokens(%d) = %q, want %q", input, got, want)
		}
	}
}
