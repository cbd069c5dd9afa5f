// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/contextkit/lib/clock"
	"github.com/bureau-foundation/contextkit/lib/llm"
	"github.com/bureau-foundation/contextkit/lib/llm/budget"
	"github.com/bureau-foundation/contextkit/lib/llm/cache"
	llmcontext "github.com/bureau-foundation/contextkit/lib/llm/context"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
)

var (
	// ErrNoProvider is returned by [New] when Config.Provider is nil.
	ErrNoProvider = errors.New("stream: no provider configured")

	// ErrInFlight is returned by [Coordinator.Dispatch] while a
	// previous stream is still open.
	ErrInFlight = errors.New("stream: a request is already in flight")

	// ErrEmptyHistory is returned by [Coordinator.Dispatch] for an
	// empty history.
	ErrEmptyHistory = errors.New("stream: empty history")

	// ErrAbandoned is returned by [Stream.Next] after the stream was
	// closed before the provider finished.
	ErrAbandoned = errors.New("stream: abandoned before completion")
)

// defaultMaxTokens is used when neither the config nor the profile
// sets a response limit.
const defaultMaxTokens = 4_096

// State is the lifecycle position of a coordinator's current request.
type State int

const (
	Idle State = iota
	Preflight
	Dispatch
	Streaming
	Drained
	Failed
)

func (state State) String() string {
	switch state {
	case Idle:
		return "idle"
	case Preflight:
		return "preflight"
	case Dispatch:
		return "dispatch"
	case Streaming:
		return "streaming"
	case Drained:
		return "drained"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// Truncator shortens a history before dispatch. [llmcontext.Relevance]
// is the standard implementation.
type Truncator interface {
	Truncate(history []llm.Message) []llm.Message
}

// Config configures a [Coordinator]. Provider and Profile are
// required; every other field has a default.
type Config struct {
	// Provider issues requests.
	Provider llm.Provider

	// Profile is the resolved model profile. Its context window bounds
	// the budget and its prices drive cost and savings figures.
	Profile model.Profile

	// Model is the model id sent to the provider. Defaults to
	// Profile.ID.
	Model string

	// System is the system prompt.
	System string

	// MaxTokens limits the response length. Defaults to
	// Profile.MaxOutputTokens, then 4096.
	MaxTokens int

	// Temperature is passed through when non-nil.
	Temperature *float64

	// Budget sets the tracker options. The zero value means
	// [budget.DefaultOptions].
	Budget budget.Options

	// Truncator replaces the history when the tracker advises
	// truncation. Defaults to [llmcontext.Relevance] with
	// [llmcontext.DefaultRelevanceOptions].
	Truncator Truncator

	// Estimator predicts the prompt size for the preflight budget
	// check and is calibrated from every response's reported usage.
	// Defaults to [llmcontext.NewCharEstimator].
	Estimator llmcontext.TokenEstimator

	// MarkerPolicy selects cache breakpoints. Defaults to
	// [MarkLastTwoUsers].
	MarkerPolicy MarkerPolicy

	// PriorUsage is usage the conversation consumed before this
	// coordinator existed, such as the earlier turns of a resumed
	// session. It is applied to the budget tracker once, at
	// construction, so the first dispatch can already be truncated.
	// [Coordinator.Reset] clears it.
	PriorUsage llm.Usage

	Clock  clock.Clock
	Logger *slog.Logger
}

// PreflightReport describes the decisions made before the most recent
// dispatch.
type PreflightReport struct {
	// Truncated is true when the history was replaced by the
	// truncator's output.
	Truncated bool `json:"truncated"`

	OriginalMessages int `json:"original_messages"`
	WorkingMessages  int `json:"working_messages"`

	// EstimatedInputTokens is the estimator's prediction for the
	// working history.
	EstimatedInputTokens int64 `json:"estimated_input_tokens"`

	// Accommodated reports whether the estimate plus MaxTokens fit the
	// context window. A false value is advisory: the request is sent
	// anyway.
	Accommodated bool `json:"accommodated"`

	// MarkedIndices are the working-history positions that carry a
	// cache breakpoint.
	MarkedIndices []int `json:"marked_indices,omitempty"`

	// PrefixFingerprint digests the working history through the newest
	// breakpoint.
	PrefixFingerprint Fingerprint `json:"prefix_fingerprint"`

	// PrefixReused is true when one of this request's breakpoints
	// covers exactly the prefix the previous request ended its newest
	// breakpoint on, so the provider should serve it from cache.
	PrefixReused bool `json:"prefix_reused"`
}

// Coordinator drives requests for one conversation session. It owns
// the session's budget tracker and cache accountant, runs the
// preflight (truncation, budget advisory, cache markers), issues the
// request, and turns the provider's events into normalized [Event]
// values while applying their usage to the ledgers in provider order.
//
// One request may be in flight at a time. Accessors are safe to call
// from any goroutine, including while a stream is being consumed.
//
// The zero value is not usable. Construct with [New]; calling a method
// on an unconstructed Coordinator panics.
type Coordinator struct {
	provider     llm.Provider
	model        string
	system       string
	maxTokens    int
	temperature  *float64
	truncator    Truncator
	markerPolicy MarkerPolicy
	clock        clock.Clock
	logger       *slog.Logger

	mutex         sync.Mutex
	tracker       *budget.Tracker
	accountant    *cache.Accountant
	estimator     llmcontext.TokenEstimator
	state         State
	active        *Stream
	lastPreflight PreflightReport
	previousHead  Fingerprint
}

// New builds a coordinator, binding a fresh tracker and accountant to
// config.Profile.
func New(config Config) (*Coordinator, error) {
	if config.Provider == nil {
		return nil, ErrNoProvider
	}
	if err := config.MarkerPolicy.Validate(); err != nil {
		return nil, err
	}

	options := config.Budget
	if options == (budget.Options{}) {
		options = budget.DefaultOptions()
	}
	tracker, err := budget.NewTracker(config.Profile, options)
	if err != nil {
		return nil, fmt.Errorf("stream: creating budget tracker: %w", err)
	}
	if config.PriorUsage != (llm.Usage{}) {
		tracker.UpdateUsage(config.PriorUsage)
	}

	truncator := config.Truncator
	if truncator == nil {
		relevance, err := llmcontext.NewRelevance(llmcontext.DefaultRelevanceOptions())
		if err != nil {
			return nil, fmt.Errorf("stream: creating truncator: %w", err)
		}
		truncator = relevance
	}

	coordinator := &Coordinator{
		provider:     config.Provider,
		model:        config.Model,
		system:       config.System,
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
		truncator:    truncator,
		markerPolicy: config.MarkerPolicy,
		clock:        config.Clock,
		logger:       config.Logger,
		tracker:      tracker,
		accountant:   cache.NewAccountant(),
		estimator:    config.Estimator,
	}
	if coordinator.model == "" {
		coordinator.model = config.Profile.ID
	}
	if coordinator.maxTokens <= 0 {
		coordinator.maxTokens = int(config.Profile.MaxOutputTokens)
	}
	if coordinator.maxTokens <= 0 {
		coordinator.maxTokens = defaultMaxTokens
	}
	if coordinator.markerPolicy == "" {
		coordinator.markerPolicy = MarkLastTwoUsers
	}
	if coordinator.estimator == nil {
		coordinator.estimator = llmcontext.NewCharEstimator()
	}
	if coordinator.clock == nil {
		coordinator.clock = clock.Real()
	}
	if coordinator.logger == nil {
		coordinator.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return coordinator, nil
}

func (coordinator *Coordinator) mustBeInitialized() {
	if coordinator == nil || coordinator.tracker == nil {
		panic("stream: Coordinator used without a model profile; construct it with stream.New")
	}
}

// Dispatch runs the preflight for history and sends the request. The
// returned [Stream] yields the normalized response events and must be
// consumed to io.EOF or closed before the next Dispatch.
//
// Preflight replaces the working history with the truncator's output
// when the tracker advises truncation, checks the estimated prompt
// against the budget (logging, never refusing), and places cache
// breakpoints on an annotated copy. history itself is never modified.
func (coordinator *Coordinator) Dispatch(ctx context.Context, history []llm.Message) (*Stream, error) {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	if coordinator.active != nil {
		return nil, ErrInFlight
	}
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	coordinator.state = Preflight
	report := PreflightReport{OriginalMessages: len(history)}
	working := history
	if coordinator.tracker.ShouldTruncate() {
		working = coordinator.truncator.Truncate(history)
		report.Truncated = true
		coordinator.logger.Info("truncated history before dispatch",
			"original_messages", len(history),
			"working_messages", len(working),
			"utilization", coordinator.tracker.Utilization(),
		)
	}
	report.WorkingMessages = len(working)

	report.EstimatedInputTokens = coordinator.estimator.EstimateTokens(working)
	report.Accommodated = coordinator.tracker.CanAccommodate(report.EstimatedInputTokens, int64(coordinator.maxTokens))
	if !report.Accommodated {
		coordinator.logger.Warn("request may exceed context window",
			"estimated_input_tokens", report.EstimatedInputTokens,
			"max_tokens", coordinator.maxTokens,
			"context_window", coordinator.tracker.Profile().ContextWindow,
		)
	}

	annotated, marked := ApplyCacheMarkers(working, coordinator.markerPolicy)
	report.MarkedIndices = marked
	fingerprints, err := breakpointFingerprints(working, marked)
	if err != nil {
		coordinator.state = Failed
		return nil, err
	}
	if len(fingerprints) > 0 {
		report.PrefixFingerprint = fingerprints[len(fingerprints)-1]
		report.PrefixReused = !coordinator.previousHead.IsZero() &&
			slices.Contains(fingerprints, coordinator.previousHead)
		coordinator.logger.Debug("cache breakpoints placed",
			"marked_indices", marked,
			"prefix_fingerprint", report.PrefixFingerprint.String(),
			"prefix_reused", report.PrefixReused,
		)
	}
	coordinator.lastPreflight = report

	coordinator.state = Dispatch
	events, err := coordinator.provider.Stream(ctx, llm.Request{
		Model:       coordinator.model,
		System:      coordinator.system,
		Messages:    annotated,
		MaxTokens:   coordinator.maxTokens,
		Temperature: coordinator.temperature,
	})
	if err != nil {
		coordinator.state = Failed
		coordinator.logger.Error("dispatch failed", "model", coordinator.model, "error", err)
		return nil, fmt.Errorf("stream: dispatching request: %w", err)
	}
	coordinator.previousHead = report.PrefixFingerprint

	coordinator.state = Streaming
	stream := &Stream{
		coordinator: coordinator,
		events:      events,
		working:     working,
		textBlocks:  make(map[int]bool),
		startedAt:   coordinator.clock.Now(),
	}
	coordinator.active = stream
	return stream, nil
}

// applyStart records a response's prompt-side usage in both ledgers
// and calibrates the estimator against the messages that produced it.
// Caller holds the mutex.
func (coordinator *Coordinator) applyStart(usage llm.Usage, working []llm.Message) {
	coordinator.tracker.UpdateUsage(usage)
	basePrice, readPrice := coordinator.cachePrices()
	coordinator.accountant.TrackUsage(usage.CacheReadTokens, usage.CacheWriteTokens,
		usage.PromptTokens(), basePrice, readPrice)
	coordinator.estimator.RecordUsage(working, usage.PromptTokens())
}

// cachePrices returns the input and cache-read prices, or zeros when
// the profile lacks either, so savings degrade to token counts alone.
func (coordinator *Coordinator) cachePrices() (float64, float64) {
	profile := coordinator.tracker.Profile()
	if profile.InputPrice == nil || profile.CacheReadPrice == nil {
		return 0, 0
	}
	return *profile.InputPrice, *profile.CacheReadPrice
}

// finish moves the coordinator to a terminal state and releases the
// in-flight slot. Caller holds the mutex.
func (coordinator *Coordinator) finish(state State) {
	coordinator.state = state
	coordinator.active = nil
}

// State returns the lifecycle state of the most recent request.
func (coordinator *Coordinator) State() State {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.state
}

// LastPreflight returns the report of the most recent dispatch.
func (coordinator *Coordinator) LastPreflight() PreflightReport {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	report := coordinator.lastPreflight
	report.MarkedIndices = slices.Clone(report.MarkedIndices)
	return report
}

// EfficiencyMetrics returns the cache efficiency ratios for the
// session.
func (coordinator *Coordinator) EfficiencyMetrics() cache.Efficiency {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.accountant.Efficiency()
}

// CacheMetrics returns the cache ledger.
func (coordinator *Coordinator) CacheMetrics() cache.Metrics {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.accountant.Snapshot()
}

// RemainingBudget returns the budget ledger.
func (coordinator *Coordinator) RemainingBudget() budget.Budget {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.tracker.Snapshot()
}

// Utilization returns the fraction of the context window consumed.
func (coordinator *Coordinator) Utilization() float64 {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.tracker.Utilization()
}

// EstimateCost returns the session cost in US dollars, or 0 when the
// profile lacks prices.
func (coordinator *Coordinator) EstimateCost() float64 {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.tracker.EstimateCost()
}

// Profile returns the model profile the session is bound to.
func (coordinator *Coordinator) Profile() model.Profile {
	coordinator.mustBeInitialized()
	return coordinator.tracker.Profile()
}

// Reset clears both ledgers and the cache-prefix history, returning
// the session to its freshly constructed accounting state. It fails
// with ErrInFlight while a stream is open.
func (coordinator *Coordinator) Reset() error {
	coordinator.mustBeInitialized()
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	if coordinator.active != nil {
		return ErrInFlight
	}
	coordinator.tracker.Reset()
	coordinator.accountant.Reset()
	coordinator.previousHead = Fingerprint{}
	coordinator.lastPreflight = PreflightReport{}
	coordinator.state = Idle
	return nil
}
