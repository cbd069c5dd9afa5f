// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for contextkit binaries:
// reporting a fatal error from run() before or after the structured
// logger exists, and mapping errors to exit codes.
package process
