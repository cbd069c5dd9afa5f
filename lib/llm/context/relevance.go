// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

// ErrInvalidRelevanceOptions is returned by [NewRelevance] for
// out-of-range options.
var ErrInvalidRelevanceOptions = errors.New("context: invalid relevance options")

// lengthSaturation is the flattened text length at which the length
// component of a relevance score stops growing.
const lengthSaturation = 1000.0

// retainFraction is the share of the history kept before clamping.
const retainFraction = 0.5

// RelevanceOptions configure [Relevance].
type RelevanceOptions struct {
	// MinRetainCount and MaxRetainCount clamp how many messages after
	// the first are kept.
	MinRetainCount int
	MaxRetainCount int

	// RecentMessageWeight scales position: the newest candidate scores
	// the full weight, older ones proportionally less.
	RecentMessageWeight float64

	// ContentLengthWeight scales text length, saturating at 1000
	// characters.
	ContentLengthWeight float64

	// ToolUseWeight is added when the message involves a tool call or
	// tool result.
	ToolUseWeight float64
}

// DefaultRelevanceOptions favors recency, then tool activity, then
// length.
func DefaultRelevanceOptions() RelevanceOptions {
	return RelevanceOptions{
		MinRetainCount:      4,
		MaxRetainCount:      40,
		RecentMessageWeight: 0.5,
		ContentLengthWeight: 0.2,
		ToolUseWeight:       0.3,
	}
}

// Validate reports whether the options are usable.
func (options RelevanceOptions) Validate() error {
	if options.MinRetainCount < 0 {
		return fmt.Errorf("%w: min retain count %d is negative", ErrInvalidRelevanceOptions, options.MinRetainCount)
	}
	if options.MaxRetainCount < options.MinRetainCount {
		return fmt.Errorf("%w: max retain count %d is below min retain count %d",
			ErrInvalidRelevanceOptions, options.MaxRetainCount, options.MinRetainCount)
	}
	for name, weight := range map[string]float64{
		"recent message": options.RecentMessageWeight,
		"content length": options.ContentLengthWeight,
		"tool use":       options.ToolUseWeight,
	} {
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("%w: %s weight is %v", ErrInvalidRelevanceOptions, name, weight)
		}
	}
	return nil
}

// Relevance shortens a conversation by keeping its first message and
// the highest-scoring of the rest. It holds no state between calls.
type Relevance struct {
	options RelevanceOptions
}

// NewRelevance returns a truncator with the given options.
func NewRelevance(options RelevanceOptions) (*Relevance, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return &Relevance{options: options}, nil
}

// Options returns the truncator's configuration.
func (truncator *Relevance) Options() RelevanceOptions {
	return truncator.options
}

// RetainCount returns how many messages after the first survive
// truncation of a history of length historyLength:
// floor(historyLength/2) clamped to [MinRetainCount, MaxRetainCount].
func (truncator *Relevance) RetainCount(historyLength int) int {
	count := int(math.Floor(float64(historyLength) * retainFraction))
	return max(truncator.options.MinRetainCount, min(truncator.options.MaxRetainCount, count))
}

// Scores returns the relevance score of every message after the first,
// indexed from zero. Histories of length one or less have no
// candidates.
func (truncator *Relevance) Scores(history []llm.Message) []float64 {
	if len(history) <= 1 {
		return nil
	}
	candidates := history[1:]
	total := float64(len(candidates))
	scores := make([]float64, len(candidates))
	for i, message := range candidates {
		text := message.FlattenedText()
		recency := float64(i+1) / total
		length := min(float64(utf8.RuneCountInString(text))/lengthSaturation, 1)
		tool := 0.0
		if strings.Contains(text, llm.ToolUseMarker) || strings.Contains(text, llm.ToolResultMarker) {
			tool = 1
		}
		scores[i] = truncator.options.RecentMessageWeight*recency +
			truncator.options.ContentLengthWeight*length +
			truncator.options.ToolUseWeight*tool
	}
	return scores
}

// Truncate returns the first message followed by the RetainCount
// highest-scoring later messages in their original order. Equal
// scores favor the older message. A history of length one or less is
// returned as is. The input slice is never modified.
func (truncator *Relevance) Truncate(history []llm.Message) []llm.Message {
	if len(history) <= 1 {
		return history
	}

	scores := truncator.Scores(history)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	keep := min(truncator.RetainCount(len(history)), len(order))
	selected := order[:keep]
	slices.Sort(selected)

	result := make([]llm.Message, 0, keep+1)
	result = append(result, history[0])
	for _, candidate := range selected {
		result = append(result, history[candidate+1])
	}
	return result
}
