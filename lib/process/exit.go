// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Exit codes used by the agent binaries.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// Fatal writes "error: err" to stderr and exits with ExitFailure. Use
// it in main() for errors returned from run().
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitFailure)
}

// Usage writes "usage error: err" to stderr and exits with ExitUsage.
// Use it for bad command lines, after pflag has printed its own help.
func Usage(err error) {
	fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
	os.Exit(ExitUsage)
}
