// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

func TestCharEstimator_DefaultRatio(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	// 400 chars of text + 20 overhead = 420 chars; 420/4.0 = 105, +1.
	messages := []llm.Message{llm.UserMessage(strings.Repeat("x", 400))}

	if tokens := estimator.EstimateTokens(messages); tokens != 106 {
		t.Errorf("EstimateTokens() = %d, want 106", tokens)
	}
}

func TestCharEstimator_FirstObservationReplacesDefault(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	// (5 + 20) + (5 + 20) = 50 chars reported as 25 tokens: ratio 2.0.
	messages := []llm.Message{llm.UserMessage("hello"), llm.AssistantMessage("world")}
	estimator.RecordUsage(messages, 25)

	if ratio := estimator.CharactersPerToken(); ratio != 2.0 {
		t.Errorf("CharactersPerToken() = %v, want 2.0", ratio)
	}
	if tokens := estimator.EstimateTokens(messages); tokens != 26 {
		t.Errorf("after calibration, EstimateTokens() = %d, want 26", tokens)
	}
}

func TestCharEstimator_EMABlend(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	// 80 chars + 20 overhead = 100 chars.
	messages := []llm.Message{llm.UserMessage(strings.Repeat("y", 80))}

	estimator.RecordUsage(messages, 50) // ratio 2.0
	estimator.RecordUsage(messages, 10) // ratio 10.0

	want := 0.3*10.0 + 0.7*2.0
	if got := estimator.CharactersPerToken(); math.Abs(got-want) > 1e-9 {
		t.Errorf("CharactersPerToken() = %v, want %v", got, want)
	}
}

func TestCharEstimator_ConvergesToObservedRatio(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	messages := []llm.Message{llm.UserMessage(strings.Repeat("z", 100))}
	for range 20 {
		estimator.RecordUsage(messages, 40) // 120 chars / 40 = 3.0
	}
	if got := estimator.CharactersPerToken(); math.Abs(got-3.0) > 1e-6 {
		t.Errorf("CharactersPerToken() = %v, want ~3.0", got)
	}
}

func TestCharEstimator_IgnoresUselessObservations(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	messages := []llm.Message{llm.UserMessage("hello")}

	estimator.RecordUsage(messages, 0)
	estimator.RecordUsage(messages, -50)
	estimator.RecordUsage(nil, 100)

	// 25 chars / 4.0 = 6.25, rounded up.
	if tokens := estimator.EstimateTokens(messages); tokens != 7 {
		t.Errorf("EstimateTokens() = %d, want 7", tokens)
	}
}

func TestMessageCharCountToolBlocks(t *testing.T) {
	t.Parallel()

	message := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
		llm.ToolUseBlock("id", "grep", json.RawMessage(`{"q":1}`)),
		llm.ToolResultBlock("id", "ok", false),
	}}
	// overhead 20 + "grep" 4 + input 7 + "ok" 2 + "id" 2
	if got := messageCharCount(message); got != 35 {
		t.Errorf("messageCharCount() = %d, want 35", got)
	}
}
