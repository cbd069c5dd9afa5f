// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

// ProviderEvent is one event of a provider's streamed response, in the
// order the provider declared it. The set of variants is closed:
// consumers switch on the concrete type and treat anything they do not
// recognize (including [UnknownEvent]) as a no-op.
type ProviderEvent interface {
	providerEvent()
}

// MessageStart opens a response. Usage carries the prompt-side counts
// (input and cache tokens) plus any output tokens already generated.
type MessageStart struct {
	Model string
	Usage Usage
}

// ContentBlockStart opens the content block at Index. BlockType is the
// provider's block type ("text", "tool_use", "thinking", ...). Text is
// the initial content of a text block, usually empty; later text
// arrives as [TextDelta] fragments appended to it.
type ContentBlockStart struct {
	Index     int
	BlockType string
	Text      string
}

// ContentBlockDelta carries an incremental update to the block at Index.
type ContentBlockDelta struct {
	Index int
	Delta Delta
}

// ContentBlockStop closes the block at Index. Block is the fully
// assembled content.
type ContentBlockStop struct {
	Index int
	Block ContentBlock
}

// MessageDelta carries end-of-message metadata. Usage.OutputTokens is
// the number of output tokens generated since the last usage report,
// never a running total; the other counters are zero.
type MessageDelta struct {
	StopReason StopReason
	Usage      Usage
}

// MessageStop closes the response.
type MessageStop struct{}

// Ping is a keepalive with no payload.
type Ping struct{}

// UnknownEvent is an event type this package does not model. It is
// surfaced rather than dropped so recorders and debuggers can see it.
type UnknownEvent struct {
	Type string
	Data string
}

func (MessageStart) providerEvent()      {}
func (ContentBlockStart) providerEvent() {}
func (ContentBlockDelta) providerEvent() {}
func (ContentBlockStop) providerEvent()  {}
func (MessageDelta) providerEvent()      {}
func (MessageStop) providerEvent()       {}
func (Ping) providerEvent()              {}
func (UnknownEvent) providerEvent()      {}

// Delta is the payload of a [ContentBlockDelta]. Like ProviderEvent it
// is a closed sum type.
type Delta interface {
	delta()
}

// TextDelta appends text to a text block.
type TextDelta struct {
	Text string
}

// InputJSONDelta appends a fragment of a tool_use block's input JSON.
type InputJSONDelta struct {
	PartialJSON string
}

// ThinkingDelta appends extended-thinking text. It is never shown to
// the caller as response text.
type ThinkingDelta struct {
	Thinking string
}

// UnknownDelta is a delta type this package does not model.
type UnknownDelta struct {
	Type string
}

func (TextDelta) delta()      {}
func (InputJSONDelta) delta() {}
func (ThinkingDelta) delta()  {}
func (UnknownDelta) delta()   {}
