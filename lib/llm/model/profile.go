// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "fmt"

// Profile describes the limits and prices of one model. Prices are in
// US dollars per million tokens; a nil price means the price is
// unknown, and cost computations that need it report zero.
//
// Profiles are read-only once resolved. Nothing in this module
// modifies a Profile it was handed.
type Profile struct {
	// ID is the model identifier, without a date suffix for built-in
	// profiles.
	ID string `json:"id" yaml:"id" toml:"id"`

	// ContextWindow is the maximum number of tokens (prompt plus
	// response) the model accepts in one request.
	ContextWindow int64 `json:"context_window" yaml:"context_window" toml:"context_window"`

	// MaxOutputTokens is the largest max_tokens value the model
	// accepts.
	MaxOutputTokens int64 `json:"max_output_tokens" yaml:"max_output_tokens" toml:"max_output_tokens"`

	InputPrice      *float64 `json:"input_price,omitempty" yaml:"input_price,omitempty" toml:"input_price,omitempty"`
	OutputPrice     *float64 `json:"output_price,omitempty" yaml:"output_price,omitempty" toml:"output_price,omitempty"`
	CacheReadPrice  *float64 `json:"cache_read_price,omitempty" yaml:"cache_read_price,omitempty" toml:"cache_read_price,omitempty"`
	CacheWritePrice *float64 `json:"cache_write_price,omitempty" yaml:"cache_write_price,omitempty" toml:"cache_write_price,omitempty"`
}

// Price returns a pointer to perMTok, for filling Profile price fields.
func Price(perMTok float64) *float64 {
	return &perMTok
}

// Validate reports whether the profile can back a token budget.
func (profile Profile) Validate() error {
	if profile.ID == "" {
		return fmt.Errorf("model: profile has no id")
	}
	if profile.ContextWindow <= 0 {
		return fmt.Errorf("model: profile %q: context_window must be positive, got %d", profile.ID, profile.ContextWindow)
	}
	if profile.MaxOutputTokens < 0 {
		return fmt.Errorf("model: profile %q: max_output_tokens must not be negative, got %d", profile.ID, profile.MaxOutputTokens)
	}
	for name, price := range map[string]*float64{
		"input_price":       profile.InputPrice,
		"output_price":      profile.OutputPrice,
		"cache_read_price":  profile.CacheReadPrice,
		"cache_write_price": profile.CacheWritePrice,
	} {
		if price != nil && *price < 0 {
			return fmt.Errorf("model: profile %q: %s must not be negative", profile.ID, name)
		}
	}
	return nil
}

// DefaultProfile is the designated fallback for model identifiers the
// registry does not know. 128k tokens is a conservative middle ground
// for modern models. It carries no prices, so cost estimates for
// unknown models are zero rather than wrong.
var DefaultProfile = Profile{
	ID:              "default",
	ContextWindow:   128_000,
	MaxOutputTokens: 4_096,
}

// claude builds a Claude profile. Cache writes are priced at the
// five-minute ephemeral rate, which is what cache_control breakpoints
// without a ttl use.
func claude(id string, window, maxOutput int64, input, output, cacheWrite, cacheRead float64) Profile {
	return Profile{
		ID:              id,
		ContextWindow:   window,
		MaxOutputTokens: maxOutput,
		InputPrice:      Price(input),
		OutputPrice:     Price(output),
		CacheReadPrice:  Price(cacheRead),
		CacheWritePrice: Price(cacheWrite),
	}
}

// windowOnly builds a profile for a model whose prices are not
// tracked here.
func windowOnly(id string, window, maxOutput int64) Profile {
	return Profile{ID: id, ContextWindow: window, MaxOutputTokens: maxOutput}
}

// builtinProfiles are the profiles every new [Registry] starts with.
// Context windows and prices are from provider documentation as of
// early 2026; configuration can override any of them.
func builtinProfiles() []Profile {
	return []Profile{
		// Anthropic Claude.
		claude("claude-opus-4-6", 200_000, 32_000, 5.00, 25.00, 6.25, 0.50),
		claude("claude-opus-4-5", 200_000, 32_000, 5.00, 25.00, 6.25, 0.50),
		claude("claude-opus-4-1", 200_000, 32_000, 15.00, 75.00, 18.75, 1.50),
		claude("claude-opus-4", 200_000, 32_000, 15.00, 75.00, 18.75, 1.50),
		claude("claude-sonnet-4-6", 200_000, 64_000, 3.00, 15.00, 3.75, 0.30),
		claude("claude-sonnet-4-5", 200_000, 64_000, 3.00, 15.00, 3.75, 0.30),
		claude("claude-sonnet-4", 200_000, 64_000, 3.00, 15.00, 3.75, 0.30),
		claude("claude-haiku-4-5", 200_000, 64_000, 1.00, 5.00, 1.25, 0.10),
		claude("claude-3-5-haiku", 200_000, 8_192, 0.80, 4.00, 1.00, 0.08),
		claude("claude-3-5-sonnet", 200_000, 8_192, 3.00, 15.00, 3.75, 0.30),

		// OpenAI.
		windowOnly("gpt-4o", 128_000, 16_384),
		windowOnly("gpt-4o-mini", 128_000, 16_384),
		windowOnly("gpt-4-turbo", 128_000, 4_096),
		windowOnly("o3", 200_000, 100_000),
		windowOnly("o3-mini", 200_000, 100_000),

		// Others commonly served behind compatible endpoints.
		windowOnly("deepseek-chat", 64_000, 8_192),
		windowOnly("gemini-2.0-flash", 1_048_576, 8_192),
		windowOnly("mistral-large-latest", 128_000, 8_192),
	}
}
