// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package model is the registry of model profiles: context window,
// output limit, and per-million-token prices for input, output, cache
// reads, and cache writes.
//
// [Registry.Resolve] never fails. Identifiers it does not know map to
// the fallback profile ([DefaultProfile] unless replaced), so a typo
// in a model name degrades cost reporting instead of breaking a
// session. Profiles can be overridden from configuration or from a
// JSONC file via [Registry.LoadRegistryFile].
package model
