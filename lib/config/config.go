// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/contextkit/lib/llm"
	"github.com/bureau-foundation/contextkit/lib/llm/budget"
	llmcontext "github.com/bureau-foundation/contextkit/lib/llm/context"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
	"github.com/bureau-foundation/contextkit/lib/llm/stream"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "CONTEXTKIT_CONFIG"

// Config is the configuration of a contextkit session.
type Config struct {
	// Model is the model identifier sent to the provider and resolved
	// against the model registry.
	Model string `yaml:"model" toml:"model" json:"model"`

	// System is the system prompt. SystemFile, when set, replaces it
	// with the contents of a file.
	System     string `yaml:"system" toml:"system" json:"system"`
	SystemFile string `yaml:"system_file" toml:"system_file" json:"system_file"`

	// MaxTokens limits each response. Zero means the model profile's
	// maximum output.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`

	Budget     BudgetConfig     `yaml:"budget" toml:"budget" json:"budget"`
	Truncation TruncationConfig `yaml:"truncation" toml:"truncation" json:"truncation"`

	// CacheMarkers is the cache breakpoint policy: "last_user" or
	// "last_two_users".
	CacheMarkers string `yaml:"cache_markers" toml:"cache_markers" json:"cache_markers"`

	// Models adds or replaces model profiles in the built-in registry.
	Models []model.Profile `yaml:"models" toml:"models" json:"models"`

	// ModelsFile is a JSONC file of additional profiles, loaded before
	// Models.
	ModelsFile string `yaml:"models_file" toml:"models_file" json:"models_file"`

	Anthropic AnthropicConfig `yaml:"anthropic" toml:"anthropic" json:"anthropic"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// BudgetConfig mirrors [budget.Options].
type BudgetConfig struct {
	MaxInputUtilization float64 `yaml:"max_input_utilization" toml:"max_input_utilization" json:"max_input_utilization"`
	OutputTokenBuffer   int64   `yaml:"output_token_buffer" toml:"output_token_buffer" json:"output_token_buffer"`
}

// TruncationConfig mirrors [llmcontext.RelevanceOptions].
type TruncationConfig struct {
	MinRetainCount      int     `yaml:"min_retain_count" toml:"min_retain_count" json:"min_retain_count"`
	MaxRetainCount      int     `yaml:"max_retain_count" toml:"max_retain_count" json:"max_retain_count"`
	RecentMessageWeight float64 `yaml:"recent_message_weight" toml:"recent_message_weight" json:"recent_message_weight"`
	ContentLengthWeight float64 `yaml:"content_length_weight" toml:"content_length_weight" json:"content_length_weight"`
	ToolUseWeight       float64 `yaml:"tool_use_weight" toml:"tool_use_weight" json:"tool_use_weight"`
}

// AnthropicConfig configures the live provider.
type AnthropicConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url" json:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in a config file.
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env" json:"api_key_env"`

	Version string `yaml:"version" toml:"version" json:"version"`
}

// Default returns the configuration every file is layered onto.
func Default() *Config {
	budgetOptions := budget.DefaultOptions()
	relevance := llmcontext.DefaultRelevanceOptions()
	return &Config{
		Model: "claude-sonnet-4-5",
		Budget: BudgetConfig{
			MaxInputUtilization: budgetOptions.MaxInputUtilization,
			OutputTokenBuffer:   budgetOptions.OutputTokenBuffer,
		},
		Truncation: TruncationConfig{
			MinRetainCount:      relevance.MinRetainCount,
			MaxRetainCount:      relevance.MaxRetainCount,
			RecentMessageWeight: relevance.RecentMessageWeight,
			ContentLengthWeight: relevance.ContentLengthWeight,
			ToolUseWeight:       relevance.ToolUseWeight,
		},
		CacheMarkers: string(stream.MarkLastTwoUsers),
		Anthropic: AnthropicConfig{
			BaseURL:   llm.DefaultAnthropicBaseURL,
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Version:   llm.DefaultAnthropicVersion,
		},
		LogLevel: "info",
	}
}

// Load loads the file named by CONTEXTKIT_CONFIG. It fails when the
// variable is unset; there is no search path.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile layers the file at path onto [Default]. The format follows
// the extension: .yaml or .yml, .toml, .json or .jsonc (comments and
// trailing commas allowed). Path fields then get ${VAR} and
// ${VAR:-default} expansion.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := cfg.decode(filepath.Ext(path), data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.expandVariables(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) decode(extension string, data []byte) error {
	switch strings.ToLower(extension) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		return toml.Unmarshal(data, c)
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml, .toml, .json or .jsonc)", extension)
	}
}

// expandVariables expands path fields. ${CONFIG_DIR} is the directory
// holding the config file, so companion files can be referenced
// relative to it.
func (c *Config) expandVariables(configDir string) {
	vars := map[string]string{
		"CONFIG_DIR": configDir,
		"HOME":       os.Getenv("HOME"),
	}
	c.SystemFile = expandVars(c.SystemFile, vars)
	c.ModelsFile = expandVars(c.ModelsFile, vars)
	c.Anthropic.BaseURL = expandVars(c.Anthropic.BaseURL, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if err := c.BudgetOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("budget: %w", err))
	}
	if err := c.RelevanceOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("truncation: %w", err))
	}
	if err := c.MarkerPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache_markers: %w", err))
	}
	for i, profile := range c.Models {
		if err := profile.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("models[%d]: %w", i, err))
		}
	}
	if c.Anthropic.APIKeyEnv == "" {
		errs = append(errs, errors.New("anthropic.api_key_env is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// BudgetOptions returns the tracker options.
func (c *Config) BudgetOptions() budget.Options {
	return budget.Options{
		MaxInputUtilization: c.Budget.MaxInputUtilization,
		OutputTokenBuffer:   c.Budget.OutputTokenBuffer,
	}
}

// RelevanceOptions returns the truncator options.
func (c *Config) RelevanceOptions() llmcontext.RelevanceOptions {
	return llmcontext.RelevanceOptions{
		MinRetainCount:      c.Truncation.MinRetainCount,
		MaxRetainCount:      c.Truncation.MaxRetainCount,
		RecentMessageWeight: c.Truncation.RecentMessageWeight,
		ContentLengthWeight: c.Truncation.ContentLengthWeight,
		ToolUseWeight:       c.Truncation.ToolUseWeight,
	}
}

// MarkerPolicy returns the cache breakpoint policy.
func (c *Config) MarkerPolicy() stream.MarkerPolicy {
	return stream.MarkerPolicy(c.CacheMarkers)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// SystemPrompt returns the contents of SystemFile when set, otherwise
// System.
func (c *Config) SystemPrompt() (string, error) {
	if c.SystemFile == "" {
		return c.System, nil
	}
	data, err := os.ReadFile(c.SystemFile)
	if err != nil {
		return "", fmt.Errorf("config: reading system_file: %w", err)
	}
	return string(data), nil
}

// Registry builds the model registry: built-in profiles, then
// ModelsFile, then Models.
func (c *Config) Registry() (*model.Registry, error) {
	registry := model.NewRegistry()
	if c.ModelsFile != "" {
		if err := registry.LoadRegistryFile(c.ModelsFile); err != nil {
			return nil, fmt.Errorf("config: models_file: %w", err)
		}
	}
	for i, profile := range c.Models {
		if err := registry.Register(profile); err != nil {
			return nil, fmt.Errorf("config: models[%d]: %w", i, err)
		}
	}
	return registry, nil
}

// AnthropicOptions returns the live provider options, reading the API
// key from the environment variable named by APIKeyEnv.
func (c *Config) AnthropicOptions() llm.AnthropicOptions {
	return llm.AnthropicOptions{
		BaseURL: c.Anthropic.BaseURL,
		APIKey:  os.Getenv(c.Anthropic.APIKeyEnv),
		Version: c.Anthropic.Version,
	}
}
