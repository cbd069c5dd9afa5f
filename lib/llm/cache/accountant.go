// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cache

// Metrics is the ledger state of an [Accountant]. Every field is a
// monotonic counter except CostSaved, which decreases when cache
// reads are priced above the baseline input price.
type Metrics struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	TotalTokensSaved int64   `json:"total_tokens_saved"`
	WriteTokens      int64   `json:"write_tokens"`
	ReadTokens       int64   `json:"read_tokens"`
	CostSaved        float64 `json:"cost_saved"`
}

// Efficiency is derived from [Metrics]. Each ratio is zero when its
// denominator is zero.
type Efficiency struct {
	// HitRate is hits / (hits + misses).
	HitRate float64 `json:"hit_rate"`

	// TokenSavingsRate is tokens saved per cached token moved
	// (read or written).
	TokenSavingsRate float64 `json:"token_savings_rate"`

	// CostEfficiency is dollars saved per token written to the cache.
	CostEfficiency float64 `json:"cost_efficiency"`
}

// Accountant is a session-scoped ledger of prompt-cache hits and
// misses and the money they saved. The zero value is an empty ledger
// ready for use. Like the budget tracker it is single-writer.
type Accountant struct {
	metrics Metrics
}

// NewAccountant returns an empty ledger.
func NewAccountant() *Accountant {
	return &Accountant{}
}

// TrackUsage classifies one request's cache traffic. A request that
// read from the cache is a hit, whatever else it did; otherwise one
// that wrote to the cache is a miss; a request with neither is not
// counted.
//
// For a hit, baselineInputTokens is what the prompt would have cost
// in fresh input tokens, and the saving is the difference between
// paying baseInputPrice for all of them and paying cacheReadPrice for
// the reads. Prices are per million tokens. The saving is not clamped
// at zero.
func (accountant *Accountant) TrackUsage(cacheReadTokens, cacheWriteTokens, baselineInputTokens int64, baseInputPrice, cacheReadPrice float64) {
	switch {
	case cacheReadTokens > 0:
		accountant.metrics.Hits++
		accountant.metrics.ReadTokens += cacheReadTokens
		accountant.metrics.CostSaved += (float64(baselineInputTokens)*baseInputPrice - float64(cacheReadTokens)*cacheReadPrice) / 1e6
		accountant.metrics.TotalTokensSaved += baselineInputTokens - cacheReadTokens
	case cacheWriteTokens > 0:
		accountant.metrics.WriteTokens += cacheWriteTokens
		accountant.metrics.Misses++
	}
}

// Efficiency derives ratios from the current counters.
func (accountant *Accountant) Efficiency() Efficiency {
	metrics := accountant.metrics
	var efficiency Efficiency
	if requests := metrics.Hits + metrics.Misses; requests > 0 {
		efficiency.HitRate = float64(metrics.Hits) / float64(requests)
	}
	if moved := metrics.ReadTokens + metrics.WriteTokens; moved > 0 {
		efficiency.TokenSavingsRate = float64(metrics.TotalTokensSaved) / float64(moved)
	}
	if metrics.WriteTokens > 0 {
		efficiency.CostEfficiency = metrics.CostSaved / float64(metrics.WriteTokens)
	}
	return efficiency
}

// Snapshot returns a copy of the counters.
func (accountant *Accountant) Snapshot() Metrics {
	return accountant.metrics
}

// Reset zeroes every counter.
func (accountant *Accountant) Reset() {
	accountant.metrics = Metrics{}
}
