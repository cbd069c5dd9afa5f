// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream coordinates one conversation session's requests to a
// model provider.
//
// A [Coordinator] owns the session's [budget.Tracker] and
// [cache.Accountant]. [Coordinator.Dispatch] runs a preflight and
// sends the request:
//
//   - when the tracker advises truncation, the history is replaced by
//     the truncator's output (by default [llmcontext.Relevance]);
//   - the estimated prompt size is checked against the context window,
//     and a misfit is logged and reported but never refused;
//   - cache breakpoints are placed on a copy of the history according
//     to the [MarkerPolicy], and the prefix through each breakpoint is
//     fingerprinted to predict whether the provider will serve it from
//     cache.
//
// The returned [Stream] converts provider events into [UsageEvent] and
// [TextEvent] values. Usage is applied to the ledgers in the order the
// provider declared it: the response's start event once, then each
// output increment. Events the coordinator does not recognize are
// skipped. A stream that is closed early or fails keeps every update
// already applied.
//
// Each request moves through [Idle], [Preflight], [Dispatch],
// [Streaming], and ends in [Drained] or [Failed]. Only one request may
// be in flight per coordinator.
package stream
