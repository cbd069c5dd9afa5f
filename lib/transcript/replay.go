// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

// Replay is an [llm.Provider] that answers every request with a
// recorded Anthropic SSE transcript. The request is not inspected.
// Each call reopens the file, so one transcript can answer any number
// of requests.
type Replay struct {
	path string
}

// NewReplay returns a provider serving the transcript at path.
func NewReplay(path string) *Replay {
	return &Replay{path: path}
}

// Stream implements [llm.Provider].
func (replay *Replay) Stream(ctx context.Context, _ llm.Request) (*llm.EventStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := Open(replay.path)
	if err != nil {
		return nil, fmt.Errorf("transcript: replaying: %w", err)
	}
	return llm.DecodeAnthropicStream(body), nil
}
