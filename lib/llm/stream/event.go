// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

// Event is one normalized event yielded by [Stream.Next]: either a
// [UsageEvent] or a [TextEvent].
type Event interface {
	event()
}

// UsageEvent reports token consumption as it was applied to the
// session ledgers. The event for a response's start carries the prompt
// counts; later events carry only output increments, with InputTokens
// zero. Cache counts are zero when the provider reported none.
type UsageEvent struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64 `json:"cache_write_tokens,omitempty"`
}

// TextEvent carries a fragment of generated text. The first fragment
// of every content block after the first begins with a newline.
type TextEvent struct {
	Text string `json:"text"`
}

func (UsageEvent) event() {}
func (TextEvent) event()  {}
