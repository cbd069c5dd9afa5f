// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/contextkit/lib/llm"
	"github.com/bureau-foundation/contextkit/lib/llm/model"
	"github.com/bureau-foundation/contextkit/lib/llm/stream"
)

const recordedSSE = "event: message_start\n" +
	`data: {"type":"message_start","message":{"model":"claude-sonnet-4-5-20250929","usage":{"input_tokens":100,"output_tokens":1,"cache_read_input_tokens":2048}}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Replayed"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":0}` + "\n\n" +
	"event: message_delta\n" +
	`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":6}}` + "\n\n" +
	"event: message_stop\n" +
	`data: {"type":"message_stop"}` + "\n\n"

func writeTranscript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	writer, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := io.WriteString(writer, content); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return path
}

func TestCompressionForPath(t *testing.T) {
	t.Parallel()

	tests := map[string]Compression{
		"session.sse":     CompressionNone,
		"session.sse.zst": CompressionZstd,
		"a.ZSTD":          CompressionZstd,
		"session.lz4":     CompressionLZ4,
		"noextension":     CompressionNone,
	}
	for path, want := range tests {
		if got := CompressionForPath(path); got != want {
			t.Errorf("CompressionForPath(%q) = %v, want %v", path, got, want)
		}
	}
}

// frameMagic is the leading bytes of each compressed frame format.
var frameMagic = map[Compression][]byte{
	CompressionZstd: {0x28, 0xb5, 0x2f, 0xfd},
	CompressionLZ4:  {0x04, 0x22, 0x4d, 0x18},
}

func TestCreateOpenRoundtrip(t *testing.T) {
	t.Parallel()

	content := strings.Repeat(recordedSSE, 50)
	for _, name := range []string{"plain.sse", "packed.sse.zst", "packed.sse.lz4"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := writeTranscript(t, name, content)

			reader, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer reader.Close()
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("ReadAll() error: %v", err)
			}
			if string(got) != content {
				t.Errorf("read %d bytes, want the %d written", len(got), len(content))
			}

			if CompressionForPath(name) != CompressionNone {
				raw, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("ReadFile() error: %v", err)
				}
				if len(raw) >= len(content)/2 {
					t.Errorf("%s file is %d bytes, want under half of the %d written", name, len(raw), len(content))
				}
				if magic := frameMagic[CompressionForPath(name)]; !bytes.HasPrefix(raw, magic) {
					t.Errorf("%s file starts with % x, want frame magic % x", name, raw[:min(len(raw), 4)], magic)
				}
			}
		})
	}
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "absent.zst"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want not-exist", err)
	}
}

func TestReplayThroughCoordinator(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t, "turn.sse.zst", recordedSSE)
	coordinator, err := stream.New(stream.Config{
		Provider: NewReplay(path),
		Profile: model.Profile{
			ID:             "claude-sonnet-4-5",
			ContextWindow:  200_000,
			InputPrice:     model.Price(3),
			CacheReadPrice: model.Price(0.3),
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// One transcript answers repeated requests.
	for turn := range 2 {
		events, err := coordinator.Dispatch(context.Background(), []llm.Message{llm.UserMessage("replay")})
		if err != nil {
			t.Fatalf("Dispatch() error: %v", err)
		}
		var text strings.Builder
		for {
			event, err := events.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if textEvent, ok := event.(stream.TextEvent); ok {
				text.WriteString(textEvent.Text)
			}
		}
		if text.String() != "Replayed" {
			t.Errorf("turn %d text = %q, want Replayed", turn, text.String())
		}
		if err := events.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	}

	remaining := coordinator.RemainingBudget()
	if remaining.TotalUsedTokens != 2*(100+1+5) {
		t.Errorf("TotalUsedTokens = %d, want %d", remaining.TotalUsedTokens, 2*(100+1+5))
	}
	if hits := coordinator.CacheMetrics().Hits; hits != 2 {
		t.Errorf("Hits = %d, want 2", hits)
	}
}

func TestReplayHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewReplay("unused").Stream(ctx, llm.Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}
}
