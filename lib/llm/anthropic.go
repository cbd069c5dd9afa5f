// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const (
	// DefaultAnthropicBaseURL is the public Messages API host.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	// DefaultAnthropicVersion is the anthropic-version header value.
	DefaultAnthropicVersion = "2023-06-01"
)

// AnthropicOptions configures an [Anthropic] provider.
type AnthropicOptions struct {
	// BaseURL is the scheme and host of the API, without a trailing
	// slash. Empty means [DefaultAnthropicBaseURL].
	BaseURL string

	// APIKey is sent as x-api-key. Empty omits the header, which is
	// correct behind a credential-injecting proxy.
	APIKey string

	// Version is sent as anthropic-version. Empty means
	// [DefaultAnthropicVersion].
	Version string

	// Recorder, when non-nil, receives a copy of every raw SSE byte
	// read from the response body.
	Recorder io.Writer
}

// Anthropic implements [Provider] for the Anthropic Messages API.
type Anthropic struct {
	httpClient *http.Client
	options    AnthropicOptions
}

// NewAnthropic creates an Anthropic provider. A nil httpClient means
// [http.DefaultClient].
func NewAnthropic(httpClient *http.Client, options AnthropicOptions) *Anthropic {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if options.BaseURL == "" {
		options.BaseURL = DefaultAnthropicBaseURL
	}
	if options.Version == "" {
		options.Version = DefaultAnthropicVersion
	}
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")
	return &Anthropic{httpClient: httpClient, options: options}
}

// Stream sends a streaming request and returns an [EventStream] over
// the decoded SSE events.
func (provider *Anthropic) Stream(ctx context.Context, request Request) (*EventStream, error) {
	headers := map[string]string{"anthropic-version": provider.options.Version}
	if provider.options.APIKey != "" {
		headers["x-api-key"] = provider.options.APIKey
	}

	httpResponse, err := doProviderRequest(ctx, provider.httpClient,
		provider.options.BaseURL+"/v1/messages", buildAnthropicRequest(request),
		"llm/anthropic", headers)
	if err != nil {
		return nil, err
	}

	body := httpResponse.Body
	if provider.options.Recorder != nil {
		body = teeReadCloser{Reader: io.TeeReader(body, provider.options.Recorder), Closer: body}
	}
	return DecodeAnthropicStream(body), nil
}

type teeReadCloser struct {
	io.Reader
	io.Closer
}

func buildAnthropicRequest(request Request) anthropicRequest {
	wireRequest := anthropicRequest{
		Model:         request.Model,
		MaxTokens:     request.MaxTokens,
		System:        request.System,
		Stream:        true,
		Temperature:   request.Temperature,
		StopSequences: request.StopSequences,
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, toAnthropicMessage(message))
	}
	return wireRequest
}

// DecodeAnthropicStream parses an Anthropic Messages SSE body into
// provider events. The body is closed by [EventStream.Close].
//
// The wire reports message_delta output_tokens as a running total for
// the message. The decoder subtracts what message_start and earlier
// deltas already reported, so every [MessageDelta] carries a true
// increment.
func DecodeAnthropicStream(body io.ReadCloser) *EventStream {
	decoder := &anthropicDecoder{
		scanner: NewSSEScanner(body),
		blocks:  make(map[int]*anthropicPartialBlock),
	}
	return NewEventStream(decoder.next, body)
}

type anthropicDecoder struct {
	scanner *SSEScanner

	// blocks holds content blocks between content_block_start and
	// content_block_stop, keyed by block index.
	blocks map[int]*anthropicPartialBlock

	// outputReported is the output token count already surfaced in
	// MessageStart and MessageDelta events.
	outputReported int64
}

func (decoder *anthropicDecoder) next() (ProviderEvent, error) {
	for {
		if !decoder.scanner.Next() {
			if err := decoder.scanner.Err(); err != nil {
				return nil, fmt.Errorf("llm/anthropic: reading SSE: %w", err)
			}
			return nil, io.EOF
		}

		sseEvent := decoder.scanner.Event()
		event, err := decoder.decode(sseEvent)
		if err != nil {
			return nil, err
		}
		if event != nil {
			return event, nil
		}
	}
}

// decode converts one SSE event. A nil event with a nil error means
// the SSE event produced nothing to yield.
func (decoder *anthropicDecoder) decode(sseEvent SSEEvent) (ProviderEvent, error) {
	data := []byte(sseEvent.Data)

	switch sseEvent.Type {
	case "message_start":
		var envelope struct {
			Message struct {
				Model string         `json:"model"`
				Usage anthropicUsage `json:"usage"`
			} `json:"message"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("llm/anthropic: parsing message_start: %w", err)
		}
		usage := envelope.Message.Usage.toUsage()
		decoder.outputReported = usage.OutputTokens
		return MessageStart{Model: envelope.Message.Model, Usage: usage}, nil

	case "content_block_start":
		var envelope struct {
			Index        int                   `json:"index"`
			ContentBlock anthropicContentBlock `json:"content_block"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("llm/anthropic: parsing content_block_start: %w", err)
		}
		partial := &anthropicPartialBlock{
			blockType: envelope.ContentBlock.Type,
			toolUseID: envelope.ContentBlock.ID,
			toolName:  envelope.ContentBlock.Name,
		}
		partial.text.WriteString(envelope.ContentBlock.Text)
		decoder.blocks[envelope.Index] = partial
		start := ContentBlockStart{Index: envelope.Index, BlockType: envelope.ContentBlock.Type}
		if start.BlockType == "text" {
			start.Text = envelope.ContentBlock.Text
		}
		return start, nil

	case "content_block_delta":
		var envelope struct {
			Index int `json:"index"`
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
				Thinking    string `json:"thinking"`
			} `json:"delta"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("llm/anthropic: parsing content_block_delta: %w", err)
		}
		partial := decoder.blocks[envelope.Index]

		var delta Delta
		switch envelope.Delta.Type {
		case "text_delta":
			delta = TextDelta{Text: envelope.Delta.Text}
			if partial != nil {
				partial.text.WriteString(envelope.Delta.Text)
			}
		case "input_json_delta":
			delta = InputJSONDelta{PartialJSON: envelope.Delta.PartialJSON}
			if partial != nil {
				partial.inputJSON.WriteString(envelope.Delta.PartialJSON)
			}
		case "thinking_delta":
			delta = ThinkingDelta{Thinking: envelope.Delta.Thinking}
			if partial != nil {
				partial.text.WriteString(envelope.Delta.Thinking)
			}
		default:
			delta = UnknownDelta{Type: envelope.Delta.Type}
		}
		return ContentBlockDelta{Index: envelope.Index, Delta: delta}, nil

	case "content_block_stop":
		var envelope struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("llm/anthropic: parsing content_block_stop: %w", err)
		}
		partial, found := decoder.blocks[envelope.Index]
		if !found {
			return nil, nil
		}
		delete(decoder.blocks, envelope.Index)
		return ContentBlockStop{Index: envelope.Index, Block: partial.toContentBlock()}, nil

	case "message_delta":
		var envelope struct {
			Delta struct {
				StopReason string `json:"stop_reason"`
			} `json:"delta"`
			Usage struct {
				OutputTokens int64 `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("llm/anthropic: parsing message_delta: %w", err)
		}
		// The wire count is cumulative. A count below what was already
		// reported adds nothing.
		increment := max(envelope.Usage.OutputTokens-decoder.outputReported, 0)
		decoder.outputReported += increment
		return MessageDelta{
			StopReason: mapAnthropicStopReason(envelope.Delta.StopReason),
			Usage:      Usage{OutputTokens: increment},
		}, nil

	case "message_stop":
		return MessageStop{}, nil

	case "ping":
		return Ping{}, nil

	case "error":
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Message == "" {
			return nil, &ProviderError{Type: "error", Message: sseEvent.Data}
		}
		return nil, &ProviderError{Type: envelope.Error.Type, Message: envelope.Error.Message}

	default:
		return UnknownEvent{Type: sseEvent.Type, Data: sseEvent.Data}, nil
	}
}

// --- Anthropic wire types ---

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	Stream        bool               `json:"stream,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text,omitempty"`
	ID           string                 `json:"id,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Input        json.RawMessage        `json:"input,omitempty"`
	ToolUseID    string                 `json:"tool_use_id,omitempty"`
	Content      json.RawMessage        `json:"content,omitempty"`
	IsError      bool                   `json:"is_error,omitempty"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

func (wire anthropicUsage) toUsage() Usage {
	return Usage{
		InputTokens:      wire.InputTokens,
		OutputTokens:     wire.OutputTokens,
		CacheReadTokens:  wire.CacheReadInputTokens,
		CacheWriteTokens: wire.CacheCreationInputTokens,
	}
}

// anthropicPartialBlock is a content block being assembled from deltas.
type anthropicPartialBlock struct {
	blockType string
	text      strings.Builder
	inputJSON strings.Builder
	toolUseID string
	toolName  string
}

func (block *anthropicPartialBlock) toContentBlock() ContentBlock {
	switch block.blockType {
	case "text":
		return TextBlock(block.text.String())
	case "tool_use":
		return ToolUseBlock(block.toolUseID, block.toolName, completeToolInput(block.inputJSON.String()))
	default:
		return TextBlock(fmt.Sprintf("[%s] %s", block.blockType, block.text.String()))
	}
}

// completeToolInput turns accumulated input_json_delta fragments into
// valid JSON. Tools without arguments stream no fragments at all, and
// a stream cut short leaves a truncated object that jsonrepair can
// usually close. Input that cannot be repaired is preserved as a JSON
// string so the block still marshals.
func completeToolInput(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	quoted, _ := json.Marshal(raw)
	return json.RawMessage(quoted)
}

func toAnthropicMessage(message Message) anthropicMessage {
	wire := anthropicMessage{Role: string(message.Role)}
	for _, block := range message.Content {
		wire.Content = append(wire.Content, toAnthropicContentBlock(block))
	}
	return wire
}

func toAnthropicContentBlock(block ContentBlock) anthropicContentBlock {
	wire := anthropicContentBlock{Type: string(block.Type)}
	switch block.Type {
	case ContentText:
		wire.Text = block.Text
	case ContentToolUse:
		if block.ToolUse != nil {
			wire.ID = block.ToolUse.ID
			wire.Name = block.ToolUse.Name
			wire.Input = block.ToolUse.Input
			if len(wire.Input) == 0 {
				wire.Input = json.RawMessage("{}")
			}
		}
	case ContentToolResult:
		if block.ToolResult != nil {
			// The wire content field is polymorphic; a JSON string is
			// the plain-text form.
			contentJSON, _ := json.Marshal(block.ToolResult.Content)
			wire.ToolUseID = block.ToolResult.ToolUseID
			wire.Content = contentJSON
			wire.IsError = block.ToolResult.IsError
		}
	}
	if block.CacheControl != nil {
		wire.CacheControl = &anthropicCacheControl{Type: block.CacheControl.Type}
	}
	return wire
}

func mapAnthropicStopReason(reason string) StopReason {
	switch reason {
	case "end_turn":
		return StopReasonEndTurn
	case "tool_use":
		return StopReasonToolUse
	case "max_tokens":
		return StopReasonMaxTokens
	case "stop_sequence":
		return StopReasonStopSequence
	default:
		return StopReason(reason)
	}
}
