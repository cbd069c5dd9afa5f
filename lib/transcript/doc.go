// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript stores raw provider SSE streams on disk and plays
// them back.
//
// A transcript is the exact byte stream a provider sent, optionally
// compressed. The file extension selects the compression: .zst for
// zstd, .lz4 for LZ4 frames, anything else for plain text. Live
// sessions record through [Create] (wired into the Anthropic provider's
// Recorder option); [Replay] serves a transcript as a provider, so a
// session can be rerun offline with identical events.
package transcript
