// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the agent packages.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets. sun_path is limited to 108 bytes and t.TempDir()
// paths under a deep TMPDIR can exceed it.
//
// [RequireReceive], [RequireClosed], and [RequireBlocked] wrap the
// select-with-timeout pattern so that a hung session fails the test
// instead of stalling the whole run. They are the only place in the
// test suite that uses real wall-clock timeouts.
//
// [Pipe] returns the two ends of an in-memory connection with cleanup
// registered, for driving a session without a socket file.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
