// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's CBOR encoding configuration.
//
// JSON is the format of external interfaces (the provider wire
// protocol, config and history files, --format json reports). CBOR is
// used where bytes must be canonical or compact: cache-prefix
// fingerprints hash the CBOR encoding of a message prefix, and
// telemetry snapshots can be emitted as CBOR for machine consumers.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical data always produces identical bytes. That property is
// what makes a digest of an encoded conversation prefix stable across
// dispatches.
//
//	data, err := codec.Marshal(messages)
//	err = codec.Unmarshal(data, &snapshot)
//
// Types shared with JSON carry only `json` struct tags: fxamacker/cbor
// reads them when `cbor` tags are absent, so one tag controls field
// naming in both formats.
package codec
