// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for the agent binaries:
// reporting an error to stderr and exiting, for the points in main()
// where the structured logger is not available or no longer useful.
package process
