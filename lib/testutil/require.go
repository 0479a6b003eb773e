// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the Require helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first.
//
//	response := testutil.RequireReceive(t, responses, 5*time.Second, "waiting for init response")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(msgAndArgs))
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("no value after %v: %s", timeout, describe(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close (or deliver) within timeout. Use
// it for completion channels such as shutdown.Source.Drained.
//
//	testutil.RequireClosed(t, source.Drained(), 5*time.Second, "sessions drained")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("still open after %v: %s", timeout, describe(msgAndArgs))
	}
}

// RequireBlocked fails the test if ch delivers or closes within
// duration. It checks that a wait is still pending, such as a
// coordinator that must not return while a session is alive. The full
// duration is spent on every passing run, so keep it short.
//
//	testutil.RequireBlocked(t, serveDone, 100*time.Millisecond, "Serve returned before drain")
func RequireBlocked[T any](t TB, ch <-chan T, duration time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("channel ready within %v: %s", duration, describe(msgAndArgs))
	case <-time.After(duration):
	}
}

// describe renders the optional trailing arguments of a Require call:
// nothing, a single value, or a format string and its arguments.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "(no message)"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
