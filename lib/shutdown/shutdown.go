// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shutdown

import (
	"context"
	"sync"
)

// Source is the shared origin of shutdown tokens.
type Source struct {
	signal      chan struct{}
	triggerOnce sync.Once

	mu sync.Mutex
	// members counts tokens that have not been released.
	members int
	// drained is closed the first time members is zero after Trigger.
	drained       chan struct{}
	drainedClosed bool
}

// NewSource returns a Source with no subscribers that has not been
// triggered.
func NewSource() *Source {
	return &Source{
		signal:  make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// Subscribe returns a new Token observing this Source and adds it to
// the completion group. The caller must eventually call
// [Token.Release]. Subscribing after Trigger returns a Token that is
// already shut down; it counts toward Active until released, but is
// not waited for if the group had already drained.
func (source *Source) Subscribe() *Token {
	source.mu.Lock()
	source.members++
	source.mu.Unlock()

	token := &Token{signal: source.signal}
	token.release = func() {
		source.mu.Lock()
		defer source.mu.Unlock()
		source.members--
		source.closeIfDrained()
	}
	return token
}

// Trigger broadcasts shutdown to every current and future Token.
// Calling it more than once is harmless.
func (source *Source) Trigger() {
	source.triggerOnce.Do(func() {
		close(source.signal)
	})
	source.mu.Lock()
	defer source.mu.Unlock()
	source.closeIfDrained()
}

// closeIfDrained closes drained once shutdown has been broadcast and
// no token is held. The caller holds mu.
func (source *Source) closeIfDrained() {
	if source.drainedClosed || source.members > 0 || !source.Triggered() {
		return
	}
	close(source.drained)
	source.drainedClosed = true
}

// Triggered reports whether Trigger has been called.
func (source *Source) Triggered() bool {
	select {
	case <-source.signal:
		return true
	default:
		return false
	}
}

// Active returns the number of tokens not yet released.
func (source *Source) Active() int {
	source.mu.Lock()
	defer source.mu.Unlock()
	return source.members
}

// Drained returns a channel that is closed once Trigger has been
// called and every subscribed Token has been released. It may be
// requested at any time, including before the first Subscribe; it
// never closes before Trigger.
func (source *Source) Drained() <-chan struct{} {
	return source.drained
}

// Wait blocks until Drained is closed or ctx is done. It returns
// ctx.Err() in the latter case; the sessions are left running.
func (source *Source) Wait(ctx context.Context) error {
	select {
	case <-source.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Token is one session's view of a Source. It is not safe for
// concurrent use: a single session goroutine owns it.
type Token struct {
	signal    <-chan struct{}
	triggered bool

	releaseOnce sync.Once
	release     func()
}

// IsShutdown reports whether shutdown has been observed, without
// blocking. A broadcast that has fired but not yet been observed is
// picked up and latched here.
func (token *Token) IsShutdown() bool {
	if token.triggered {
		return true
	}
	select {
	case <-token.signal:
		token.triggered = true
	default:
	}
	return token.triggered
}

// Done returns a channel that is closed when shutdown is broadcast,
// for use in a select. After receiving from it, call IsShutdown or
// Wait to latch the Token.
func (token *Token) Done() <-chan struct{} {
	return token.signal
}

// Wait blocks until shutdown is broadcast or ctx is done. If the
// Token has already latched, it returns nil immediately.
func (token *Token) Wait(ctx context.Context) error {
	if token.triggered {
		return nil
	}
	select {
	case <-token.signal:
		token.triggered = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release removes the Token from its Source's completion group. Only
// the first call has an effect. A released Token still reports
// shutdown state normally.
func (token *Token) Release() {
	token.releaseOnce.Do(func() {
		if token.release != nil {
			token.release()
		}
	})
}

// Standalone returns a Token that is not attached to any Source, and
// a function that triggers it. Useful for running a single session
// outside a server, such as over stdin and stdout.
func Standalone() (*Token, func()) {
	signal := make(chan struct{})
	var once sync.Once
	return &Token{signal: signal}, func() {
		once.Do(func() { close(signal) })
	}
}
