// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is a single Server-Sent Event.
type SSEEvent struct {
	// Type is the "event:" field. Empty when the event omitted it.
	Type string

	// Data is the payload. Multiple "data:" lines are joined with
	// newlines.
	Data string
}

// SSEScanner reads Server-Sent Events from an [io.Reader]. Events are
// delimited by blank lines; "data:" lines carry the payload and
// "event:" names the type. Comments (lines starting with ":") and
// unknown fields are skipped.
//
//	scanner := NewSSEScanner(reader)
//	for scanner.Next() {
//	    event := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type SSEScanner struct {
	reader  *bufio.Reader
	current SSEEvent
	err     error
}

// NewSSEScanner creates a scanner that reads SSE events from reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	return &SSEScanner{
		reader: bufio.NewReaderSize(reader, 64*1024),
	}
}

// Next advances to the next event. Returns false at end of input or on
// a read error; [SSEScanner.Err] tells the two apart.
func (scanner *SSEScanner) Next() bool {
	scanner.current = SSEEvent{}
	if scanner.err != nil {
		return false
	}

	var pending sseAccumulator
	for {
		line, err := scanner.reader.ReadString('\n')
		if err != nil && line == "" {
			scanner.err = err
			if err == io.EOF && pending.hasData {
				// An event cut off by EOF without its blank line is
				// still delivered.
				scanner.current = pending.event()
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if pending.hasData {
				scanner.current = pending.event()
				return true
			}
			pending = sseAccumulator{}
			continue
		}
		pending.addLine(line)
	}
}

// Event returns the event parsed by the last successful [SSEScanner.Next].
func (scanner *SSEScanner) Event() SSEEvent {
	return scanner.current
}

// Err returns the first read error, or nil if scanning ended at a
// clean EOF.
func (scanner *SSEScanner) Err() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}

// sseAccumulator collects the fields of one event between blank lines.
type sseAccumulator struct {
	eventType string
	dataLines []string
	hasData   bool
}

func (accumulator *sseAccumulator) addLine(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	field, value, hasColon := strings.Cut(line, ":")
	if hasColon {
		// One optional space after the colon is not part of the value.
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		accumulator.dataLines = append(accumulator.dataLines, value)
		accumulator.hasData = true
	case "event":
		accumulator.eventType = value
	}
}

func (accumulator *sseAccumulator) event() SSEEvent {
	return SSEEvent{
		Type: accumulator.eventType,
		Data: strings.Join(accumulator.dataLines, "\n"),
	}
}
