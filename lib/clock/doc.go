// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that records timestamps or measures durations accepts a Clock
// instead of calling time.Now directly. Production wiring passes
// Real(); tests pass Fake() and move time explicitly with Advance, so
// durations in logs and statistics are deterministic:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	session := agent.New(stream, handler, token, agent.Config{Clock: fake})
//	...
//	fake.Advance(3 * time.Second)
package clock
