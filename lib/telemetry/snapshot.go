// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/contextkit/lib/clock"
	"github.com/bureau-foundation/contextkit/lib/codec"
	"github.com/bureau-foundation/contextkit/lib/llm/budget"
	"github.com/bureau-foundation/contextkit/lib/llm/cache"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
	"github.com/bureau-foundation/contextkit/lib/llm/stream"
)

// Source is the read side of a session. [stream.Coordinator]
// implements it.
type Source interface {
	Profile() model.Profile
	RemainingBudget() budget.Budget
	Utilization() float64
	CacheMetrics() cache.Metrics
	EfficiencyMetrics() cache.Efficiency
	EstimateCost() float64
	LastPreflight() stream.PreflightReport
}

// Snapshot is a point-in-time view of a session's budget and cache
// economics.
type Snapshot struct {
	CapturedAt    time.Time              `json:"captured_at"`
	Model         string                 `json:"model"`
	ContextWindow int64                  `json:"context_window"`
	Budget        budget.Budget          `json:"budget"`
	Utilization   float64                `json:"utilization"`
	Cache         cache.Metrics          `json:"cache"`
	Efficiency    cache.Efficiency       `json:"efficiency"`
	EstimatedCost float64                `json:"estimated_cost"`
	Preflight     stream.PreflightReport `json:"preflight"`
}

// Capture reads every accessor of source once.
func Capture(source Source, c clock.Clock) Snapshot {
	profile := source.Profile()
	return Snapshot{
		CapturedAt:    c.Now().UTC(),
		Model:         profile.ID,
		ContextWindow: profile.ContextWindow,
		Budget:        source.RemainingBudget(),
		Utilization:   source.Utilization(),
		Cache:         source.CacheMetrics(),
		Efficiency:    source.EfficiencyMetrics(),
		EstimatedCost: source.EstimateCost(),
		Preflight:     source.LastPreflight(),
	}
}

// Format selects how [Write] encodes a snapshot.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a --format value.
func ParseFormat(value string) (Format, error) {
	switch format := Format(value); format {
	case FormatText, FormatJSON, FormatCBOR:
		return format, nil
	}
	return "", fmt.Errorf("telemetry: unknown format %q (want text, json or cbor)", value)
}

// Write encodes snapshot to w. Text output is styled by renderer,
// which may be nil for the default renderer.
func Write(w io.Writer, snapshot Snapshot, format Format, renderer *Renderer) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snapshot)
	case FormatCBOR:
		return codec.NewEncoder(w).Encode(snapshot)
	case FormatText:
		if renderer == nil {
			renderer = NewRenderer(w, false)
		}
		_, err := io.WriteString(w, renderer.Render(snapshot)+"\n")
		return err
	default:
		return fmt.Errorf("telemetry: unknown format %q", format)
	}
}
