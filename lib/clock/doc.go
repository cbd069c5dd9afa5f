// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Code that timestamps or times things accepts a Clock instead of
// calling time.Now directly. In production, Real() provides the
// standard library behavior. In tests, Fake() provides a clock that
// moves only when Advance or Set is called, so durations and
// timestamps in logs and reports are deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	coordinator, err := stream.New(stream.Config{Clock: c, ...})
//	c.Advance(250 * time.Millisecond)
package clock
