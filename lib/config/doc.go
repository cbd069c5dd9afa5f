// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads contextkit session configuration.
//
// Configuration comes from a single file named by either the
// CONTEXTKIT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file discovery and no hidden
// fallback. The file is layered onto [Default], so it only needs the
// fields it changes.
//
// The format follows the file extension: YAML (.yaml, .yml), TOML
// (.toml), or JSON with comments (.json, .jsonc).
//
// Path fields (system_file, models_file, anthropic.base_url) expand
// ${VAR} and ${VAR:-default}; ${CONFIG_DIR} is the directory of the
// config file. Environment variables do not otherwise override values.
// The API key is never stored in the file: anthropic.api_key_env names
// the variable that holds it.
//
// Converters turn the file's sections into the option types of the
// session packages: [Config.BudgetOptions], [Config.RelevanceOptions],
// [Config.MarkerPolicy], [Config.Registry], [Config.AnthropicOptions].
package config
