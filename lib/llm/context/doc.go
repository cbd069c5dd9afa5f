// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package context shortens conversation histories and estimates their
// size in tokens.
//
// [Relevance] is the truncation strategy: it always keeps the first
// message (usually the task statement) and ranks the rest by a
// weighted sum of recency, text length, and tool activity. It is a
// pure function of its input and options, doing no I/O, so callers can
// run it synchronously right before a request.
//
// [CharEstimator] implements [TokenEstimator] with a character ratio
// calibrated from provider usage reports.
//
// Import this package as llmcontext to keep it apart from the standard
// library's context package.
package context
