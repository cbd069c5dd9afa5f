// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

// Flexoki dark accents, matching the palette of the usage dashboards.
var (
	colorBorder = lipgloss.Color("#575653")
	colorMuted  = lipgloss.Color("#6F6E69")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorOrange = lipgloss.Color("#DA702C")
	colorRed    = lipgloss.Color("#D14D41")
	colorBlue   = lipgloss.Color("#4385BE")
)

// Renderer turns a [Snapshot] into a styled text report.
type Renderer struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	tokens  lipgloss.Style
	cost    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
}

// NewRenderer styles output for w. With color false (or when w is not
// a color terminal) the report is plain ASCII with no escape codes.
func NewRenderer(w io.Writer, color bool) *Renderer {
	renderer := lipgloss.NewRenderer(w)
	if !color {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		title: renderer.NewStyle().Bold(true).Foreground(colorText).
			Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
		section: renderer.NewStyle().Bold(true).Foreground(colorAccent),
		label:   renderer.NewStyle().Foreground(colorMuted).Width(24),
		value:   renderer.NewStyle().Foreground(colorText),
		tokens:  renderer.NewStyle().Foreground(colorBlue),
		cost:    renderer.NewStyle().Foreground(colorGreen),
		warn:    renderer.NewStyle().Foreground(colorOrange),
		bad:     renderer.NewStyle().Foreground(colorRed),
	}
}

// Render returns the report for snapshot.
func (renderer *Renderer) Render(snapshot Snapshot) string {
	var lines []string
	add := func(label string, value string) {
		lines = append(lines, "  "+renderer.label.Render(label)+value)
	}

	lines = append(lines, renderer.title.Render("contextkit · "+snapshot.Model), "")

	lines = append(lines, renderer.section.Render("Budget"))
	add("context window", renderer.tokens.Render(formatTokens(snapshot.ContextWindow)))
	add("used", renderer.tokens.Render(formatTokens(snapshot.Budget.TotalUsedTokens)))
	available := renderer.tokens.Render(formatTokens(snapshot.Budget.AvailableInputTokens))
	if snapshot.Budget.AvailableInputTokens < 0 {
		available = renderer.bad.Render(formatTokens(snapshot.Budget.AvailableInputTokens) + " (over budget)")
	}
	add("available input", available)
	add("reserved output", renderer.tokens.Render(formatTokens(snapshot.Budget.ReservedOutputTokens)))
	add("utilization", renderer.utilization(snapshot.Utilization))

	lines = append(lines, "", renderer.section.Render("Prompt cache"))
	add("hits / misses", renderer.value.Render(fmt.Sprintf("%d / %d", snapshot.Cache.Hits, snapshot.Cache.Misses)))
	add("read / written", renderer.tokens.Render(formatTokens(snapshot.Cache.ReadTokens)+" / "+formatTokens(snapshot.Cache.WriteTokens)))
	add("tokens saved", renderer.tokens.Render(formatTokens(snapshot.Cache.TotalTokensSaved)))
	add("cost saved", renderer.cost.Render(formatCost(snapshot.Cache.CostSaved)))
	add("hit rate", renderer.value.Render(formatPercent(snapshot.Efficiency.HitRate)))

	lines = append(lines, "", renderer.section.Render("Last request"))
	preflight := snapshot.Preflight
	messages := strconv.Itoa(preflight.WorkingMessages) + " messages"
	if preflight.Truncated {
		messages = renderer.warn.Render(fmt.Sprintf("%d of %d messages (truncated)", preflight.WorkingMessages, preflight.OriginalMessages))
	}
	add("history", renderer.value.Render(messages))
	estimate := renderer.tokens.Render("~" + formatTokens(preflight.EstimatedInputTokens))
	if !preflight.Accommodated && preflight.OriginalMessages > 0 {
		estimate += " " + renderer.warn.Render("(exceeds window)")
	}
	add("estimated input", estimate)
	reuse := "no"
	if preflight.PrefixReused {
		reuse = "yes"
	}
	add("cached prefix reused", renderer.value.Render(reuse))

	lines = append(lines, "", "  "+renderer.label.Render("estimated cost")+renderer.cost.Render(formatCost(snapshot.EstimatedCost)))
	return strings.Join(lines, "\n")
}

func (renderer *Renderer) utilization(fraction float64) string {
	text := formatPercent(fraction)
	switch {
	case fraction > 0.85:
		return renderer.bad.Render(text)
	case fraction > 0.6:
		return renderer.warn.Render(text)
	default:
		return renderer.value.Render(text)
	}
}

// formatTokens adds thousands separators: 1234567 -> "1,234,567".
func formatTokens(n int64) string {
	return humanize.Comma(n)
}

// formatCost prints dollars with more precision for small amounts,
// since per-request cache savings are often fractions of a cent.
func formatCost(dollars float64) string {
	if dollars > -1 && dollars < 1 {
		return fmt.Sprintf("$%.4f", dollars)
	}
	return fmt.Sprintf("$%.2f", dollars)
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}
