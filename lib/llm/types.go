// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType discriminates the variants of [ContentBlock].
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentToolUse    ContentType = "tool_use"
	ContentToolResult ContentType = "tool_result"
)

// Markers written into flattened message text for tool blocks. The
// relevance scorer looks for these to detect tool activity.
const (
	ToolUseMarker    = "[tool_use"
	ToolResultMarker = "[tool_result"
)

// CacheControlEphemeral is the only cache-control type the Messages API
// accepts today: a breakpoint whose prefix is cached for a few minutes.
const CacheControlEphemeral = "ephemeral"

// CacheControl is a prompt-cache breakpoint hint attached to a content
// block. The provider caches the request prefix up to and including
// the marked block.
type CacheControl struct {
	Type string `json:"type"`
}

// ToolUse is a tool invocation requested by the model.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult carries the output of a tool invocation back to the
// model, referencing the originating [ToolUse] by ID.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ContentBlock is one segment of a message. Exactly one of Text,
// ToolUse, or ToolResult is meaningful, selected by Type.
type ContentBlock struct {
	Type       ContentType `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// CacheControl is set only on annotated copies produced for a
	// request. Histories owned by callers never carry it.
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Message is one turn of a conversation. Its position in the history
// slice is its ordinal. Messages are treated as immutable: code that
// needs to change a message works on a copy from [Message.Clone].
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

// ToolUseBlock returns a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Type:    ContentToolUse,
		ToolUse: &ToolUse{ID: id, Name: name, Input: input},
	}
}

// ToolResultBlock returns a tool_result content block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:       ContentToolResult,
		ToolResult: &ToolResult{ToolUseID: toolUseID, Content: content, IsError: isError},
	}
}

// UserMessage returns a user message with a single text block.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// AssistantMessage returns an assistant message with a single text block.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// ToolResultMessage returns a user-role message carrying tool results.
func ToolResultMessage(results ...ToolResult) Message {
	message := Message{Role: RoleUser}
	for _, result := range results {
		message.Content = append(message.Content, ToolResultBlock(result.ToolUseID, result.Content, result.IsError))
	}
	return message
}

// Clone returns a copy of the message whose Content slice can be
// modified without affecting the receiver. Tool payloads are shared;
// they are never mutated in place.
func (message Message) Clone() Message {
	content := make([]ContentBlock, len(message.Content))
	copy(content, message.Content)
	return Message{Role: message.Role, Content: content}
}

// FlattenedText renders the message as plain text: text blocks
// verbatim, tool blocks as bracketed markers followed by their
// payload. Blocks are joined with newlines.
func (message Message) FlattenedText() string {
	var builder strings.Builder
	for i, block := range message.Content {
		if i > 0 {
			builder.WriteByte('\n')
		}
		switch block.Type {
		case ContentText:
			builder.WriteString(block.Text)
		case ContentToolUse:
			builder.WriteString(ToolUseMarker)
			if block.ToolUse != nil {
				builder.WriteString(":" + block.ToolUse.Name + "] ")
				builder.Write(block.ToolUse.Input)
			} else {
				builder.WriteString("]")
			}
		case ContentToolResult:
			builder.WriteString(ToolResultMarker)
			if block.ToolResult != nil {
				builder.WriteString(":" + block.ToolResult.ToolUseID + "] ")
				builder.WriteString(block.ToolResult.Content)
			} else {
				builder.WriteString("]")
			}
		}
	}
	return builder.String()
}

// Usage reports token consumption for a request or a segment of a
// streamed response. Cache counters are zero when the provider did
// not report them.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64 `json:"cache_write_tokens,omitempty"`
}

// PromptTokens returns the full prompt size the provider processed:
// fresh input plus tokens read from and written to the cache.
func (usage Usage) PromptTokens() int64 {
	return usage.InputTokens + usage.CacheReadTokens + usage.CacheWriteTokens
}

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
)

// Request is a provider-neutral message request.
type Request struct {
	Model         string
	System        string
	Messages      []Message
	MaxTokens     int
	Temperature   *float64
	StopSequences []string
}

// Response is the complete result of a request, accumulated from a
// stream by [EventStream].
type Response struct {
	Model      string
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}
