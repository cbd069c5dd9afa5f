// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/contextkit/lib/clock"
	"github.com/bureau-foundation/contextkit/lib/config"
	"github.com/bureau-foundation/contextkit/lib/llm"
	llmcontext "github.com/bureau-foundation/contextkit/lib/llm/context"
	"github.com/bureau-foundation/contextkit/lib/llm/stream"
	"github.com/bureau-foundation/contextkit/lib/telemetry"
	"github.com/bureau-foundation/contextkit/lib/transcript"
)

type sessionParams struct {
	config  *config.Config
	options options
	format  telemetry.Format
	stdout  io.Writer
	logger  *slog.Logger
}

// runSession dispatches one request and writes the response text and
// the session report.
func runSession(ctx context.Context, params sessionParams) (err error) {
	cfg, opts := params.config, params.options

	var history []llm.Message
	if opts.historyPath != "" {
		history, err = loadHistory(opts.historyPath)
		if err != nil {
			return err
		}
	}

	// A loaded history was already sent; its estimated size counts as
	// spent input.
	estimator := llmcontext.NewCharEstimator()
	var prior llm.Usage
	if len(history) > 0 {
		prior.InputTokens = estimator.EstimateTokens(history)
	}
	if opts.prompt != "" {
		history = append(history, llm.UserMessage(opts.prompt))
	}
	if len(history) == 0 {
		return errors.New("nothing to send: give --history, --prompt, or both")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	profile := registry.Resolve(cfg.Model)
	if profile.ID != cfg.Model {
		params.logger.Debug("model resolved to registry profile",
			"model", cfg.Model,
			"profile", profile.ID,
			"context_window", profile.ContextWindow,
		)
	}

	system, err := cfg.SystemPrompt()
	if err != nil {
		return err
	}

	provider, closeProvider, err := newProvider(cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeProvider())
	}()

	truncator, err := llmcontext.NewRelevance(cfg.RelevanceOptions())
	if err != nil {
		return err
	}
	coordinator, err := stream.New(stream.Config{
		Provider:     provider,
		Profile:      profile,
		Model:        cfg.Model,
		System:       system,
		MaxTokens:    cfg.MaxTokens,
		Budget:       cfg.BudgetOptions(),
		Truncator:    truncator,
		Estimator:    estimator,
		MarkerPolicy: cfg.MarkerPolicy(),
		PriorUsage:   prior,
		Clock:        clock.Real(),
		Logger:       params.logger,
	})
	if err != nil {
		return err
	}

	response, err := consume(ctx, coordinator, history, params)
	if err != nil {
		return err
	}

	if opts.savePath != "" {
		saved := append(history, llm.Message{Role: llm.RoleAssistant, Content: response.Content})
		if err := saveHistory(opts.savePath, saved); err != nil {
			return err
		}
		params.logger.Info("history saved", "path", opts.savePath, "messages", len(saved))
	}

	snapshot := telemetry.Capture(coordinator, clock.Real())
	var renderer *telemetry.Renderer
	if params.format == telemetry.FormatText {
		renderer = telemetry.NewRenderer(params.stdout, isTerminal(params.stdout))
	}
	return telemetry.Write(params.stdout, snapshot, params.format, renderer)
}

// consume drains one dispatched stream. In text format the response
// is written to stdout as it arrives.
func consume(ctx context.Context, coordinator *stream.Coordinator, history []llm.Message, params sessionParams) (llm.Response, error) {
	responseStream, err := coordinator.Dispatch(ctx, history)
	if err != nil {
		return llm.Response{}, err
	}
	defer responseStream.Close()

	printText := params.format == telemetry.FormatText
	wroteText := false
	for {
		event, err := responseStream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return llm.Response{}, err
		}
		switch event := event.(type) {
		case stream.TextEvent:
			if printText {
				fmt.Fprint(params.stdout, event.Text)
				wroteText = true
			}
		case stream.UsageEvent:
			params.logger.Debug("usage",
				"input_tokens", event.InputTokens,
				"output_tokens", event.OutputTokens,
				"cache_read_tokens", event.CacheReadTokens,
				"cache_write_tokens", event.CacheWriteTokens,
			)
		}
	}
	if wroteText {
		fmt.Fprint(params.stdout, "\n\n")
	}
	return responseStream.Response(), nil
}

// newProvider returns the replay provider for --replay, otherwise the
// live Anthropic provider, recording to --record when set. The
// returned close function flushes the recording.
func newProvider(cfg *config.Config, opts options) (llm.Provider, func() error, error) {
	noop := func() error { return nil }
	if opts.replayPath != "" {
		return transcript.NewReplay(opts.replayPath), noop, nil
	}

	anthropicOptions := cfg.AnthropicOptions()
	if anthropicOptions.APIKey == "" {
		return nil, nil, fmt.Errorf("%s is not set; export it, add it to the env file, or use --replay", cfg.Anthropic.APIKeyEnv)
	}
	if opts.recordPath == "" {
		return llm.NewAnthropic(nil, anthropicOptions), noop, nil
	}
	recording, err := transcript.Create(opts.recordPath)
	if err != nil {
		return nil, nil, err
	}
	anthropicOptions.Recorder = recording
	return llm.NewAnthropic(nil, anthropicOptions), recording.Close, nil
}
