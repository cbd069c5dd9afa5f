// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/contextkit/lib/clock"
	"github.com/bureau-foundation/contextkit/lib/llm"
)

// Stream is the normalized event sequence of one dispatched request.
// It is finite and cannot be restarted. Stream is not safe for
// concurrent iteration; the coordinator's accessors may be called
// while it is being consumed.
type Stream struct {
	coordinator *Coordinator
	events      *llm.EventStream
	working     []llm.Message
	startedAt   time.Time

	// Guarded by coordinator.mutex.
	started      bool
	textBlocks   map[int]bool
	outputTokens int64
	done         bool
	err          error
}

// Next returns the next normalized event, applying any usage it
// carries to the session ledgers before returning it. It returns
// io.EOF once the provider's sequence is exhausted; a provider or
// transport error ends the stream and is returned from this and every
// later call.
//
//	for {
//	    event, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    switch event := event.(type) {
//	    case stream.TextEvent:
//	        fmt.Print(event.Text)
//	    case stream.UsageEvent:
//	        // ...
//	    }
//	}
func (stream *Stream) Next() (Event, error) {
	coordinator := stream.coordinator
	for {
		coordinator.mutex.Lock()
		if stream.done {
			err := stream.err
			coordinator.mutex.Unlock()
			return nil, err
		}
		coordinator.mutex.Unlock()

		// The provider read blocks; accessors stay available meanwhile.
		providerEvent, err := stream.events.Next()

		coordinator.mutex.Lock()
		if stream.done {
			// Closed while the read was blocked.
			err := stream.err
			coordinator.mutex.Unlock()
			return nil, err
		}
		if err != nil {
			stream.end(err)
			err := stream.err
			coordinator.mutex.Unlock()
			return nil, err
		}
		event := stream.apply(providerEvent)
		coordinator.mutex.Unlock()

		if event != nil {
			return event, nil
		}
	}
}

// apply handles one provider event. Caller holds the mutex.
func (stream *Stream) apply(providerEvent llm.ProviderEvent) Event {
	switch providerEvent := providerEvent.(type) {
	case llm.MessageStart:
		if stream.started {
			return nil
		}
		stream.started = true
		usage := providerEvent.Usage
		stream.coordinator.applyStart(usage, stream.working)
		stream.outputTokens += usage.OutputTokens
		return UsageEvent{
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			CacheReadTokens:  usage.CacheReadTokens,
			CacheWriteTokens: usage.CacheWriteTokens,
		}

	case llm.MessageDelta:
		output := providerEvent.Usage.OutputTokens
		stream.coordinator.tracker.UpdateUsage(llm.Usage{OutputTokens: output})
		stream.outputTokens += output
		return UsageEvent{OutputTokens: output}

	case llm.ContentBlockStart:
		if providerEvent.Text == "" {
			return nil
		}
		return stream.text(providerEvent.Index, providerEvent.Text)

	case llm.ContentBlockDelta:
		text, ok := providerEvent.Delta.(llm.TextDelta)
		if !ok {
			return nil
		}
		return stream.text(providerEvent.Index, text.Text)
	}
	return nil
}

// text wraps a fragment of the text block at index. The first fragment
// of every block after the first is prefixed with a newline. Caller
// holds the mutex.
func (stream *Stream) text(index int, fragment string) Event {
	if !stream.textBlocks[index] {
		stream.textBlocks[index] = true
		if index > 0 {
			fragment = "\n" + fragment
		}
	}
	return TextEvent{Text: fragment}
}

// end moves the stream and its coordinator to a terminal state. Caller
// holds the mutex.
func (stream *Stream) end(err error) {
	coordinator := stream.coordinator
	stream.done = true
	duration := clock.Since(coordinator.clock, stream.startedAt)

	switch {
	case err == io.EOF:
		stream.err = io.EOF
		coordinator.finish(Drained)
		ledger := coordinator.tracker.Snapshot()
		coordinator.logger.Info("stream drained",
			"model", coordinator.model,
			"output_tokens", stream.outputTokens,
			"total_used_tokens", ledger.TotalUsedTokens,
			"available_input_tokens", ledger.AvailableInputTokens,
			"estimated_cost", coordinator.tracker.EstimateCost(),
			"duration", duration,
		)
	case errors.Is(err, ErrAbandoned):
		stream.err = err
		coordinator.finish(Failed)
		coordinator.logger.Warn("stream abandoned before completion",
			"model", coordinator.model,
			"output_tokens", stream.outputTokens,
			"duration", duration,
		)
	default:
		stream.err = fmt.Errorf("stream: reading provider events: %w", err)
		coordinator.finish(Failed)
		coordinator.logger.Error("stream failed",
			"model", coordinator.model,
			"output_tokens", stream.outputTokens,
			"duration", duration,
			"error", err,
		)
	}
}

// Response returns the provider response accumulated so far: the
// assistant's content blocks, stop reason, and usage. It is complete
// once Next has returned io.EOF.
func (stream *Stream) Response() llm.Response {
	return stream.events.Response()
}

// Close releases the provider stream. Closing before Next has returned
// io.EOF abandons the request: the coordinator moves to [Failed],
// usage already applied stays applied, and later calls to Next return
// [ErrAbandoned]. Closing a finished stream only releases resources.
func (stream *Stream) Close() error {
	coordinator := stream.coordinator
	coordinator.mutex.Lock()
	if !stream.done {
		stream.end(ErrAbandoned)
	}
	coordinator.mutex.Unlock()
	return stream.events.Close()
}
