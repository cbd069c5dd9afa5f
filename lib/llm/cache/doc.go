// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache accounts for provider-side prompt caching: how often
// a request reused a cached prefix, how many tokens moved through the
// cache, and what that saved compared with sending the prompt fresh.
package cache
