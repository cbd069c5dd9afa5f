// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/bureau-foundation/contextkit/lib/llm"
)

// MarkerPolicy selects which messages of an outgoing request receive a
// prompt-cache breakpoint.
type MarkerPolicy string

const (
	// MarkLastUser marks the final content block of the last
	// user-role message.
	MarkLastUser MarkerPolicy = "last_user"

	// MarkLastTwoUsers marks the final content block of the last and
	// second-to-last user-role messages. The older breakpoint covers
	// the prefix the previous request wrote to the cache, so it is read
	// back; the newer one writes the extended prefix for the next
	// request. This is the default.
	MarkLastTwoUsers MarkerPolicy = "last_two_users"
)

// Validate reports whether policy is a known policy. The empty policy
// is valid and means [MarkLastTwoUsers].
func (policy MarkerPolicy) Validate() error {
	switch policy {
	case "", MarkLastUser, MarkLastTwoUsers:
		return nil
	}
	return fmt.Errorf("stream: unknown cache marker policy %q (want %q or %q)", string(policy), MarkLastUser, MarkLastTwoUsers)
}

func (policy MarkerPolicy) count() int {
	if policy == MarkLastUser {
		return 1
	}
	return 2
}

// ApplyCacheMarkers returns a copy of messages in which the last
// content block of each message selected by policy carries an
// ephemeral cache-control marker, together with the selected indices
// in ascending order. Tool-result messages are user-role and count.
// Messages without content are skipped. The input is not modified.
func ApplyCacheMarkers(messages []llm.Message, policy MarkerPolicy) ([]llm.Message, []int) {
	annotated := make([]llm.Message, len(messages))
	copy(annotated, messages)

	var marked []int
	for i := len(messages) - 1; i >= 0 && len(marked) < policy.count(); i-- {
		if messages[i].Role != llm.RoleUser || len(messages[i].Content) == 0 {
			continue
		}
		message := messages[i].Clone()
		message.Content[len(message.Content)-1].CacheControl = &llm.CacheControl{Type: llm.CacheControlEphemeral}
		annotated[i] = message
		marked = append(marked, i)
	}

	// Collected newest first.
	for left, right := 0, len(marked)-1; left < right; left, right = left+1, right-1 {
		marked[left], marked[right] = marked[right], marked[left]
	}
	return annotated, marked
}
