// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry a specific process
// exit code.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err on stderr and exits. Errors implementing
// [ExitCoder] anywhere in their chain exit with their own code and
// print nothing further; everything else prints "error: err" and exits
// with code 1. Use it in main() for errors from run(), where the
// structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w as Fatal would and returns the exit code
// Fatal would use.
func Report(w io.Writer, err error) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
