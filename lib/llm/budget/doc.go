// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package budget tracks token consumption against a model's context
// window.
//
// A [Tracker] is advisory. It never rejects usage: over-budget shows
// up as a negative available allowance, a false
// [Tracker.CanAccommodate], or a true [Tracker.ShouldTruncate], and
// the caller decides what to do about it.
package budget
