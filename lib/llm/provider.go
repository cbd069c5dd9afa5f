// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Provider is the transport collaborator for a model API. It owns
// connection setup, authentication, and retries; this package only
// consumes the ordered event sequence it returns.
type Provider interface {
	// Stream sends a streaming request and returns an [EventStream]
	// that yields provider events as they arrive. The caller must call
	// [EventStream.Close] when done, even if iteration ended early.
	Stream(ctx context.Context, request Request) (*EventStream, error)
}

// nextFunc is the iteration function for an EventStream. Returns
// io.EOF when the stream is complete.
type nextFunc func() (ProviderEvent, error)

// EventStream reads provider events from a streaming response. It
// yields [ProviderEvent] values via [EventStream.Next] while
// accumulating the complete [Response] internally.
//
// EventStream is not safe for concurrent iteration. [EventStream.Response]
// may be called from another goroutine.
type EventStream struct {
	next     nextFunc
	closer   io.Closer
	response Response
	mutex    sync.Mutex
	done     bool
}

// NewEventStream creates an EventStream from an iteration function and
// an io.Closer for the underlying resource (typically the HTTP
// response body). The next function must return (event, nil) for each
// event and (nil, io.EOF) when the stream is complete.
func NewEventStream(next func() (ProviderEvent, error), closer io.Closer) *EventStream {
	return &EventStream{
		next:   next,
		closer: closer,
	}
}

// NewSliceStream returns an EventStream that yields events in order
// and then io.EOF. Useful for replaying captured sequences.
func NewSliceStream(events []ProviderEvent) *EventStream {
	position := 0
	return NewEventStream(func() (ProviderEvent, error) {
		if position >= len(events) {
			return nil, io.EOF
		}
		event := events[position]
		position++
		return event, nil
	}, nil)
}

// Next returns the next event from the stream. Returns io.EOF when
// the stream is complete; every later call also returns io.EOF.
//
//	for {
//	    event, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // switch on event's concrete type
//	}
func (stream *EventStream) Next() (ProviderEvent, error) {
	if stream.done {
		return nil, io.EOF
	}

	event, err := stream.next()
	if err != nil {
		if err == io.EOF {
			stream.done = true
		}
		return nil, err
	}

	stream.accumulate(event)
	return event, nil
}

// Response returns the response accumulated so far. It is complete
// only after [EventStream.Next] has returned io.EOF.
func (stream *EventStream) Response() Response {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	return stream.response
}

// Close releases the underlying resources.
func (stream *EventStream) Close() error {
	stream.done = true
	if stream.closer != nil {
		return stream.closer.Close()
	}
	return nil
}

func (stream *EventStream) accumulate(event ProviderEvent) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()

	switch event := event.(type) {
	case MessageStart:
		stream.response.Model = event.Model
		stream.response.Usage = event.Usage
	case ContentBlockStop:
		stream.response.Content = append(stream.response.Content, event.Block)
	case MessageDelta:
		if event.StopReason != "" {
			stream.response.StopReason = event.StopReason
		}
		stream.response.Usage.OutputTokens += event.Usage.OutputTokens
	}
}

// ProviderError is returned when the model API responds with an error,
// either as an HTTP status or as an error event inside a stream.
type ProviderError struct {
	// StatusCode is the HTTP status code. Zero for in-stream errors.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g., "invalid_request_error", "overloaded_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.StatusCode == 0 {
		return fmt.Sprintf("llm: stream error: %s: %s", err.Type, err.Message)
	}
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited returns true if the error is a rate limit response.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == 429 || err.Type == "rate_limit_error"
}

// IsOverloaded returns true if the error is a server overload response.
func (err *ProviderError) IsOverloaded() bool {
	return err.StatusCode == 529 || err.Type == "overloaded_error"
}

// doProviderRequest marshals wireRequest as JSON, POSTs it to endpoint,
// and returns the HTTP response. Non-200 statuses become a
// ProviderError. On success the caller closes the response body; on
// error it is already closed.
func doProviderRequest(ctx context.Context, httpClient *http.Client, endpoint string, wireRequest any, prefix string, headers map[string]string) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	for name, value := range headers {
		httpRequest.Header.Set(name, value)
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}

	return httpResponse, nil
}

// readProviderError parses an error body of the form
// {"error":{"type":"...","message":"..."}}.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}

	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    string(body),
	}
}
