// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the framing of a transcript file.
type Compression uint8

const (
	// CompressionNone is plain SSE text.
	CompressionNone Compression = iota

	// CompressionZstd is a zstd stream (.zst).
	CompressionZstd

	// CompressionLZ4 is an LZ4 frame stream (.lz4).
	CompressionLZ4
)

func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(compression))
	}
}

// CompressionForPath picks the compression from the file extension:
// .zst and .zstd are zstd, .lz4 is LZ4, anything else is plain.
func CompressionForPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// NewWriter wraps w so that written bytes are compressed. Closing the
// returned writer flushes the compressor but does not close w.
func NewWriter(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("transcript: creating zstd encoder: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("transcript: unknown compression %v", compression)
	}
}

// NewReader wraps r so that reads return decompressed bytes. Closing
// the returned reader releases decoder resources but does not close r.
func NewReader(r io.Reader, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("transcript: creating zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("transcript: unknown compression %v", compression)
	}
}

// Create creates (or truncates) a transcript file, compressing by
// extension. Close flushes the compressor and closes the file.
func Create(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	writer, err := NewWriter(file, CompressionForPath(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileWriter{WriteCloser: writer, file: file}, nil
}

// Open opens a transcript file, decompressing by extension. Close
// closes the file.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	reader, err := NewReader(file, CompressionForPath(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileReader{ReadCloser: reader, file: file}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type fileWriter struct {
	io.WriteCloser
	file *os.File
}

func (writer *fileWriter) Close() error {
	return errors.Join(writer.WriteCloser.Close(), writer.file.Close())
}

type fileReader struct {
	io.ReadCloser
	file *os.File
}

func (reader *fileReader) Close() error {
	return errors.Join(reader.ReadCloser.Close(), reader.file.Close())
}
