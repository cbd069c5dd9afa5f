// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry captures and reports a session's token budget and
// prompt-cache economics.
//
// [Capture] reads a [Source] (a stream.Coordinator) into a [Snapshot].
// [Write] emits the snapshot as indented JSON, deterministic CBOR, or
// a styled text report from [Renderer].
package telemetry
