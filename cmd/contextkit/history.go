// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

// loadHistory reads a JSON array of messages. Comments and trailing
// commas are allowed.
func loadHistory(path string) ([]llm.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var history []llm.Message
	if err := json.Unmarshal(jsonc.ToJSON(data), &history); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	for i, message := range history {
		if message.Role != llm.RoleUser && message.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("history %s: message %d has role %q (want user or assistant)", path, i, message.Role)
		}
	}
	return history, nil
}

// saveHistory writes history as indented JSON.
func saveHistory(path string, history []llm.Message) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}
