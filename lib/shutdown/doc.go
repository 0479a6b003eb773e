// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shutdown coordinates graceful shutdown across many
// independently running sessions.
//
// A [Source] owns two signals:
//
//   - A one-shot broadcast. [Source.Trigger] closes a channel that
//     every subscriber observes, so any number of sessions wake up
//     from the same event without polling a shared flag.
//   - A completion group. Every [Token] handed out by
//     [Source.Subscribe] is a member until [Token.Release] is called.
//     [Source.Wait] blocks until Trigger has been called and the group
//     is empty, which is how a coordinator knows every session has
//     finished flushing. Sessions that end before Trigger do not drain
//     the group early.
//
// Triggering does not stop anything by itself. Each session observes
// its Token at its own pace (typically in a select alongside its I/O)
// and finishes its work before releasing. A coordinator therefore
// calls Trigger and then Wait:
//
//	source := shutdown.NewSource()
//	token := source.Subscribe()
//	go func() {
//	    defer token.Release()
//	    select {
//	    case <-token.Done():
//	    case work := <-queue:
//	        ...
//	    }
//	}()
//	...
//	source.Trigger()
//	source.Wait(ctx)
//
// A Token latches: once it has observed the broadcast, [Token.IsShutdown]
// and [Token.Wait] return immediately on every later call. A Token is
// owned by one session goroutine; the Source is safe for concurrent use.
package shutdown
