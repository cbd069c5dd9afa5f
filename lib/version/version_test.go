// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestInfoDefaults(t *testing.T) {
	t.Parallel()

	if got, want := Info(), "0.1.0-dev (unknown, unknown)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestFprint(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	Fprint(&buffer, "contextkit")
	output := buffer.String()
	if !strings.HasPrefix(output, "contextkit 0.1.0-dev") {
		t.Errorf("Fprint() = %q, want binary name and version", output)
	}
	if !strings.Contains(output, runtime.Version()) {
		t.Errorf("Fprint() = %q, want Go version", output)
	}
}
