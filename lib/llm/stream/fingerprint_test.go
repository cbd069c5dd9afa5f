// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/json"
	"testing"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

func mustFingerprint(t *testing.T, messages []llm.Message) Fingerprint {
	t.Helper()
	fingerprint, err := PrefixFingerprint(messages)
	if err != nil {
		t.Fatalf("PrefixFingerprint() error: %v", err)
	}
	return fingerprint
}

func TestPrefixFingerprintStable(t *testing.T) {
	t.Parallel()

	build := func() []llm.Message {
		return []llm.Message{
			llm.UserMessage("list files"),
			{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
				llm.ToolUseBlock("toolu_1", "ls", json.RawMessage(`{"dir":"."}`)),
			}},
		}
	}
	first, second := mustFingerprint(t, build()), mustFingerprint(t, build())
	if first != second {
		t.Errorf("fingerprints differ for equal messages: %s != %s", first, second)
	}
	if first.IsZero() {
		t.Error("fingerprint is zero")
	}
	if len(first.String()) != 64 {
		t.Errorf("String() = %q, want 64 hex characters", first.String())
	}
}

func TestPrefixFingerprintSensitivity(t *testing.T) {
	t.Parallel()

	base := mustFingerprint(t, []llm.Message{llm.UserMessage("a"), llm.AssistantMessage("b")})
	variants := map[string][]llm.Message{
		"text":   {llm.UserMessage("a"), llm.AssistantMessage("c")},
		"role":   {llm.UserMessage("a"), llm.UserMessage("b")},
		"length": {llm.UserMessage("a")},
		"marker": {llm.UserMessage("a"), {Role: llm.RoleAssistant, Content: []llm.ContentBlock{{
			Type: llm.ContentText, Text: "b", CacheControl: &llm.CacheControl{Type: llm.CacheControlEphemeral},
		}}}},
	}
	for name, messages := range variants {
		if mustFingerprint(t, messages) == base {
			t.Errorf("%s change did not change the fingerprint", name)
		}
	}
}

func TestFingerprintText(t *testing.T) {
	t.Parallel()

	var zero Fingerprint
	if zero.String() != "" {
		t.Errorf("zero String() = %q, want empty", zero.String())
	}
	fingerprint := mustFingerprint(t, []llm.Message{llm.UserMessage("x")})
	text, err := fingerprint.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	if string(text) != fingerprint.String() {
		t.Errorf("MarshalText() = %q, want %q", text, fingerprint.String())
	}
}
