// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm holds the provider-neutral conversation types and the
// streaming transport for hosted model APIs.
//
// [Message] and [ContentBlock] describe a conversation. [Usage] reports
// token consumption, including prompt-cache reads and writes.
//
// A [Provider] turns a [Request] into an [EventStream] of
// [ProviderEvent] values, a closed sum type mirroring the provider's
// streaming lifecycle: [MessageStart], [ContentBlockStart],
// [ContentBlockDelta] (whose [Delta] is itself a sum type),
// [ContentBlockStop], [MessageDelta], [MessageStop], [Ping], and
// [UnknownEvent] for anything newer than this package. EventStream
// also accumulates the complete [Response].
//
// Streaming uses Server-Sent Events parsed by [SSEScanner].
// [DecodeAnthropicStream] turns an Anthropic Messages SSE body into
// provider events and can be fed from a live response ([Anthropic]) or
// a recorded transcript.
package llm
