// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command contextkit sends a conversation to a model through a
// budget-aware, cache-aware session and reports what it cost.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/contextkit/lib/config"
	"github.com/bureau-foundation/contextkit/lib/process"
	"github.com/bureau-foundation/contextkit/lib/telemetry"
	"github.com/bureau-foundation/contextkit/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		process.Fatal(err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	model       string
	historyPath string
	prompt      string
	replayPath  string
	recordPath  string
	savePath    string
	format      string
	logLevel    string
	envFile     string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("contextkit", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "config file (.yaml, .toml, .json, .jsonc); default $"+config.EnvironmentVariable)
	flagSet.StringVarP(&opts.model, "model", "m", "", "model id, overriding the config")
	flagSet.StringVar(&opts.historyPath, "history", "", "JSON or JSONC file holding the conversation so far")
	flagSet.StringVarP(&opts.prompt, "prompt", "p", "", "user message appended to the history")
	flagSet.StringVar(&opts.replayPath, "replay", "", "answer from a recorded SSE transcript instead of the live API")
	flagSet.StringVar(&opts.recordPath, "record", "", "save the live SSE stream to this transcript (.zst and .lz4 are compressed)")
	flagSet.StringVar(&opts.savePath, "save-history", "", "write the history plus the response to this JSON file")
	flagSet.StringVarP(&opts.format, "format", "f", "text", "report format: text, json or cbor")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error, overriding the config")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the API key, if present")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other binaries.
	if len(args) > 0 && args[0] == "--version" {
		version.Fprint(stdout, "contextkit")
		return nil
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.replayPath != "" && opts.recordPath != "" {
		return errors.New("--replay and --record cannot be combined")
	}

	format, err := telemetry.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := newLogger(stderr, level)

	return runSession(ctx, sessionParams{
		config:  cfg,
		options: opts,
		format:  format,
		stdout:  stdout,
		logger:  logger,
	})
}

// loadEnvFile loads a dotenv file. A missing file is not an error;
// variables already in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadConfig resolves the config from --config, then
// CONTEXTKIT_CONFIG, then built-in defaults, and applies flag
// overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `contextkit: send a conversation through a budget- and cache-aware session.

The loaded history counts against the token budget as already spent
input, and is truncated by relevance when the budget advises it (the
truncation section of the config). The last user turns are marked as prompt-cache breakpoints,
and the response streams to stdout. A report of the token budget, cache
savings, and estimated cost follows. With --format json or cbor only the
report is written to stdout.

Usage:
  contextkit [flags]

Examples:
  # Ask a question with the default model (reads ANTHROPIC_API_KEY)
  contextkit --prompt "Summarize RFC 8949 in one paragraph"

  # Continue a saved conversation and record the raw stream
  contextkit --history chat.jsonc --prompt "And CBOR tags?" \
      --save-history chat.jsonc --record turn.sse.zst

  # Replay a recorded turn offline and print the report as JSON
  contextkit --history chat.jsonc --replay turn.sse.zst --format json

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
