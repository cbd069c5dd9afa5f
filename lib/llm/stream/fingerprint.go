// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/contextkit/lib/codec"
	"github.com/bureau-foundation/contextkit/lib/llm"
)

// Fingerprint is a keyed BLAKE3 digest of a conversation prefix.
type Fingerprint [32]byte

// String returns the hex form of the digest, or "" for the zero value.
func (fingerprint Fingerprint) String() string {
	if fingerprint.IsZero() {
		return ""
	}
	return hex.EncodeToString(fingerprint[:])
}

// IsZero reports whether the fingerprint is unset.
func (fingerprint Fingerprint) IsZero() bool {
	return fingerprint == Fingerprint{}
}

// MarshalText encodes the fingerprint as hex, so reports carry it as
// a string in both JSON and CBOR.
func (fingerprint Fingerprint) MarshalText() ([]byte, error) {
	return []byte(fingerprint.String()), nil
}

// prefixDomainKey separates prefix digests from any other BLAKE3 use.
// ASCII "contextkit.cache.prefix", zero-padded to 32 bytes.
var prefixDomainKey = [32]byte{
	'c', 'o', 'n', 't', 'e', 'x', 't', 'k', 'i', 't', '.', 'c', 'a', 'c', 'h', 'e',
	'.', 'p', 'r', 'e', 'f', 'i', 'x', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// PrefixFingerprint digests the canonical CBOR encoding of messages.
// Messages must be unannotated: cache-control markers move between
// requests and would change the digest of an otherwise identical
// prefix.
func PrefixFingerprint(messages []llm.Message) (Fingerprint, error) {
	encoded, err := codec.Marshal(messages)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stream: encoding prefix: %w", err)
	}
	hasher, err := blake3.NewKeyed(prefixDomainKey[:])
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stream: creating prefix hasher: %w", err)
	}
	hasher.Write(encoded)
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint, nil
}

// breakpointFingerprints digests the prefix ending at each marked
// index, in the order of marked.
func breakpointFingerprints(messages []llm.Message, marked []int) ([]Fingerprint, error) {
	fingerprints := make([]Fingerprint, 0, len(marked))
	for _, index := range marked {
		fingerprint, err := PrefixFingerprint(messages[:index+1])
		if err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fingerprint)
	}
	return fingerprints, nil
}
