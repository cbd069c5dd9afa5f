// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"errors"
	"fmt"
	"math"

	"github.com/bureau-foundation/contextkit/lib/llm"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
)

var (
	// ErrNoContextWindow is returned when a tracker is built from a
	// profile without a positive context window.
	ErrNoContextWindow = errors.New("budget: profile has no context window")

	// ErrInvalidOptions is returned for out-of-range [Options].
	ErrInvalidOptions = errors.New("budget: invalid options")
)

// Options tune how much of the context window a session may use.
type Options struct {
	// MaxInputUtilization is the fraction of the context window that
	// input may occupy, in (0, 1]. Above it the tracker advises
	// truncation.
	MaxInputUtilization float64

	// OutputTokenBuffer is the number of tokens held back for the
	// model's response.
	OutputTokenBuffer int64
}

// DefaultOptions leaves 15% of the window for output and reserves
// 4096 tokens, the default max_tokens of most agent loops.
func DefaultOptions() Options {
	return Options{
		MaxInputUtilization: 0.85,
		OutputTokenBuffer:   4_096,
	}
}

// Validate reports whether the options are in range.
func (options Options) Validate() error {
	if math.IsNaN(options.MaxInputUtilization) || options.MaxInputUtilization <= 0 || options.MaxInputUtilization > 1 {
		return fmt.Errorf("%w: max input utilization %v outside (0, 1]", ErrInvalidOptions, options.MaxInputUtilization)
	}
	if options.OutputTokenBuffer < 0 {
		return fmt.Errorf("%w: output token buffer %d is negative", ErrInvalidOptions, options.OutputTokenBuffer)
	}
	return nil
}

// CacheTokens counts prompt-cache traffic seen by a tracker.
type CacheTokens struct {
	Reads  int64 `json:"reads"`
	Writes int64 `json:"writes"`
}

// Budget is the ledger state of a [Tracker].
type Budget struct {
	// AvailableInputTokens is the input allowance left. It goes
	// negative when the session is over budget; that is a valid state,
	// surfaced through CanAccommodate and ShouldTruncate.
	AvailableInputTokens int64 `json:"available_input_tokens"`

	// ReservedOutputTokens is held back for responses.
	ReservedOutputTokens int64 `json:"reserved_output_tokens"`

	// TotalUsedTokens is input plus output across all usage reports.
	// It only grows until [Tracker.Reset].
	TotalUsedTokens int64 `json:"total_used_tokens"`

	CacheTokens CacheTokens `json:"cache_tokens"`
}

// Tracker is a session-scoped ledger of token consumption against one
// model's context window. Each session owns its own Tracker; it has a
// single-writer discipline and does no locking.
//
// The zero value is not usable. Construct with [NewTracker]; calling
// a method on an unconstructed Tracker panics.
type Tracker struct {
	profile *model.Profile
	options Options
	budget  Budget
}

// NewTracker binds a tracker to profile. The available input
// allowance starts at floor(contextWindow * MaxInputUtilization) and
// the reservation at OutputTokenBuffer.
func NewTracker(profile model.Profile, options Options) (*Tracker, error) {
	if profile.ContextWindow <= 0 {
		return nil, fmt.Errorf("%w: %q has context window %d", ErrNoContextWindow, profile.ID, profile.ContextWindow)
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	tracker := &Tracker{profile: &profile, options: options}
	tracker.budget = tracker.initialBudget()
	return tracker, nil
}

func (tracker *Tracker) initialBudget() Budget {
	return Budget{
		AvailableInputTokens: int64(math.Floor(float64(tracker.profile.ContextWindow) * tracker.options.MaxInputUtilization)),
		ReservedOutputTokens: tracker.options.OutputTokenBuffer,
	}
}

func (tracker *Tracker) mustBeInitialized() {
	if tracker == nil || tracker.profile == nil {
		panic("budget: Tracker used without a model profile; construct it with budget.NewTracker")
	}
}

// UpdateUsage records one usage report. Input and output add to the
// total; input alone reduces the available allowance, without
// clamping. Cache counters accumulate.
func (tracker *Tracker) UpdateUsage(usage llm.Usage) {
	tracker.mustBeInitialized()
	tracker.budget.TotalUsedTokens += usage.InputTokens + usage.OutputTokens
	tracker.budget.AvailableInputTokens -= usage.InputTokens
	tracker.budget.CacheTokens.Reads += usage.CacheReadTokens
	tracker.budget.CacheTokens.Writes += usage.CacheWriteTokens
}

// CanAccommodate reports whether a request of inputTokens with an
// expected response of estimatedOutputTokens, plus the output
// reservation, fits in the context window.
func (tracker *Tracker) CanAccommodate(inputTokens, estimatedOutputTokens int64) bool {
	tracker.mustBeInitialized()
	return inputTokens+estimatedOutputTokens+tracker.budget.ReservedOutputTokens <= tracker.profile.ContextWindow
}

// Utilization is TotalUsedTokens as a fraction of the context window.
func (tracker *Tracker) Utilization() float64 {
	tracker.mustBeInitialized()
	return float64(tracker.budget.TotalUsedTokens) / float64(tracker.profile.ContextWindow)
}

// ShouldTruncate reports whether utilization exceeds the configured
// maximum input utilization.
func (tracker *Tracker) ShouldTruncate() bool {
	return tracker.Utilization() > tracker.options.MaxInputUtilization
}

// EstimateCost returns the session cost in US dollars: every used
// token at the input price plus cache reads and writes at their own
// prices. Returns 0 when the profile lacks any of those prices.
func (tracker *Tracker) EstimateCost() float64 {
	tracker.mustBeInitialized()
	profile := tracker.profile
	if profile.InputPrice == nil || profile.CacheReadPrice == nil || profile.CacheWritePrice == nil {
		return 0
	}
	inputPrice, readPrice, writePrice := *profile.InputPrice, *profile.CacheReadPrice, *profile.CacheWritePrice
	cache := tracker.budget.CacheTokens
	return float64(tracker.budget.TotalUsedTokens)*inputPrice/1e6 +
		(float64(cache.Reads)*readPrice+float64(cache.Writes)*writePrice)/1e6
}

// Snapshot returns a copy of the ledger. It does not modify the
// tracker.
func (tracker *Tracker) Snapshot() Budget {
	tracker.mustBeInitialized()
	return tracker.budget
}

// Reset returns the ledger to the state NewTracker produced.
func (tracker *Tracker) Reset() {
	tracker.mustBeInitialized()
	tracker.budget = tracker.initialBudget()
}

// Profile returns the model profile the tracker is bound to.
func (tracker *Tracker) Profile() model.Profile {
	tracker.mustBeInitialized()
	return *tracker.profile
}

// Options returns the options the tracker was built with.
func (tracker *Tracker) Options() Options {
	tracker.mustBeInitialized()
	return tracker.options
}
