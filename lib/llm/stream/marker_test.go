// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

func markedPositions(messages []llm.Message) []int {
	var positions []int
	for i, message := range messages {
		for j, block := range message.Content {
			if block.CacheControl != nil {
				if j != len(message.Content)-1 {
					return nil
				}
				positions = append(positions, i)
			}
		}
	}
	return positions
}

func TestApplyCacheMarkers(t *testing.T) {
	t.Parallel()

	toolTurn := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
		llm.TextBlock("checking"),
		llm.ToolUseBlock("toolu_1", "read_file", json.RawMessage(`{"path":"a.go"}`)),
	}}
	history := []llm.Message{
		llm.UserMessage("task"),
		toolTurn,
		llm.ToolResultMessage(llm.ToolResult{ToolUseID: "toolu_1", Content: "package a"}),
		llm.AssistantMessage("done"),
		{Role: llm.RoleUser},
	}

	tests := []struct {
		name   string
		policy MarkerPolicy
		want   []int
	}{
		{name: "default is last two users", policy: "", want: []int{0, 2}},
		{name: "last two users", policy: MarkLastTwoUsers, want: []int{0, 2}},
		{name: "last user", policy: MarkLastUser, want: []int{2}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			annotated, marked := ApplyCacheMarkers(history, test.policy)
			if !reflect.DeepEqual(marked, test.want) {
				t.Errorf("marked = %v, want %v", marked, test.want)
			}
			if got := markedPositions(annotated); !reflect.DeepEqual(got, test.want) {
				t.Errorf("annotated positions = %v, want %v", got, test.want)
			}
			if got := markedPositions(history); got != nil {
				t.Errorf("input was annotated at %v", got)
			}
		})
	}
}

func TestApplyCacheMarkersWithoutUsers(t *testing.T) {
	t.Parallel()

	annotated, marked := ApplyCacheMarkers([]llm.Message{llm.AssistantMessage("hello")}, MarkLastTwoUsers)
	if len(marked) != 0 {
		t.Errorf("marked = %v, want none", marked)
	}
	if len(annotated) != 1 || annotated[0].Content[0].CacheControl != nil {
		t.Errorf("annotated = %+v, want an unmarked copy", annotated)
	}
}

func TestApplyCacheMarkersSingleUser(t *testing.T) {
	t.Parallel()

	annotated, marked := ApplyCacheMarkers([]llm.Message{llm.UserMessage("only")}, MarkLastTwoUsers)
	if !reflect.DeepEqual(marked, []int{0}) {
		t.Errorf("marked = %v, want [0]", marked)
	}
	if control := annotated[0].Content[0].CacheControl; control == nil || control.Type != llm.CacheControlEphemeral {
		t.Errorf("CacheControl = %+v, want ephemeral", control)
	}
}

func TestMarkerPolicyValidate(t *testing.T) {
	t.Parallel()

	for _, policy := range []MarkerPolicy{"", MarkLastUser, MarkLastTwoUsers} {
		if err := policy.Validate(); err != nil {
			t.Errorf("Validate(%q) error: %v", policy, err)
		}
	}
	if err := MarkerPolicy("last_three").Validate(); err == nil {
		t.Error("Validate(last_three) succeeded, want error")
	}
}
