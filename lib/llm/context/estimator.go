// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/bureau-foundation/contextkit/lib/llm"

// TokenEstimator estimates the prompt size of a message slice without
// a tokenizer, and calibrates itself from the provider's real counts.
type TokenEstimator interface {
	// EstimateTokens returns the estimated token count of messages.
	EstimateTokens(messages []llm.Message) int64

	// RecordUsage reports that sending messages cost
	// actualPromptTokens (input plus cache reads and writes).
	RecordUsage(messages []llm.Message, actualPromptTokens int64)
}

// defaultCharactersPerToken is the ratio before any calibration. BPE
// tokenizers average 3.5-4.5 characters per token on English mixed
// with code; 4.0 errs toward overestimating.
const defaultCharactersPerToken = 4.0

// defaultSmoothingFactor is the weight of a new observation in the
// exponential moving average.
const defaultSmoothingFactor = 0.3

// messageOverheadCharacters stands in for role markers and JSON
// framing ({"role":"user","content":[...]}).
const messageOverheadCharacters = 20

// CharEstimator estimates tokens from character counts with a ratio
// that adapts to observed usage. The first observation replaces the
// default ratio outright; later ones blend in by EMA, which smooths
// the swing between text-heavy and JSON-heavy turns.
//
// The ratio also absorbs system prompt and framing overhead, so early
// estimates run high. High is the safe direction for a budget check.
type CharEstimator struct {
	charactersPerToken float64
	smoothingFactor    float64
	observationCount   int
}

// NewCharEstimator creates a CharEstimator at 4.0 characters per token
// with a smoothing factor of 0.3.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{
		charactersPerToken: defaultCharactersPerToken,
		smoothingFactor:    defaultSmoothingFactor,
	}
}

// EstimateTokens implements [TokenEstimator]. The result always rounds
// up.
func (estimator *CharEstimator) EstimateTokens(messages []llm.Message) int64 {
	characters := messagesCharCount(messages)
	return int64(float64(characters)/estimator.charactersPerToken) + 1
}

// RecordUsage implements [TokenEstimator]. Non-positive counts and
// empty message slices are ignored.
func (estimator *CharEstimator) RecordUsage(messages []llm.Message, actualPromptTokens int64) {
	if actualPromptTokens <= 0 {
		return
	}
	characters := messagesCharCount(messages)
	if characters == 0 {
		return
	}

	observedRatio := float64(characters) / float64(actualPromptTokens)
	estimator.observationCount++
	if estimator.observationCount == 1 {
		estimator.charactersPerToken = observedRatio
		return
	}
	estimator.charactersPerToken = estimator.smoothingFactor*observedRatio +
		(1.0-estimator.smoothingFactor)*estimator.charactersPerToken
}

// CharactersPerToken returns the current calibrated ratio.
func (estimator *CharEstimator) CharactersPerToken() float64 {
	return estimator.charactersPerToken
}

func messageCharCount(message llm.Message) int {
	count := messageOverheadCharacters
	for _, block := range message.Content {
		switch block.Type {
		case llm.ContentText:
			count += len(block.Text)
		case llm.ContentToolUse:
			if block.ToolUse != nil {
				count += len(block.ToolUse.Name) + len(block.ToolUse.Input)
			}
		case llm.ContentToolResult:
			if block.ToolResult != nil {
				count += len(block.ToolResult.Content) + len(block.ToolResult.ToolUseID)
			}
		}
	}
	return count
}

func messagesCharCount(messages []llm.Message) int {
	total := 0
	for i := range messages {
		total += messageCharCount(messages[i])
	}
	return total
}
