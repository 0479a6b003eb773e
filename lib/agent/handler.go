// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"net"

	"github.com/bureau-foundation/udfagent/lib/shutdown"
	"github.com/bureau-foundation/udfagent/lib/udf"
)

// Handler is the user logic driven by an Agent. One Handler instance
// serves one session. Methods run synchronously on the session's
// goroutine and must not block indefinitely: nothing preempts them, and
// shutdown is only observed between calls.
//
// A returned error ends the session (see ErrHandler). Rejecting a
// request that has a success field, such as an Init with bad options,
// is done by returning a response with Success false and a nil error.
type Handler interface {
	// Info declares the edge types the handler consumes and produces
	// and the Init options it accepts.
	Info() (*udf.InfoResponse, error)

	// Init applies the options chosen by the host.
	Init(request *udf.InitRequest) (*udf.InitResponse, error)

	// Snapshot returns the handler's state as an opaque blob.
	Snapshot() (*udf.SnapshotResponse, error)

	// Restore replaces the handler's state with a blob produced by an
	// earlier Snapshot.
	Restore(request *udf.RestoreRequest) (*udf.RestoreResponse, error)

	// BeginBatch marks the start of a batch. No response is written.
	BeginBatch(begin *udf.BeginBatch) error

	// Point processes one input point. The handler may emit any number
	// of output points through sink before returning. An error matching
	// ErrBackpressure is logged and does not end the session.
	Point(point *udf.Point, sink PointSink) error

	// EndBatch marks the end of a batch. No response is written.
	EndBatch(end *udf.EndBatch) error
}

// PointSink accepts points emitted by a Handler. Send never blocks: it
// either queues the point for writing or fails with ErrBackpressure.
// A sink is safe to retain and call from other goroutines for the
// lifetime of its session.
type PointSink interface {
	Send(point *udf.Point) error
}

// Acceptor builds the Agent for one accepted connection. The Agent
// must own conn and token: its Run closes the connection and releases
// the token when the session ends.
//
// An error closes only that connection; the listener keeps serving.
type Acceptor interface {
	Accept(conn net.Conn, token *shutdown.Token) (*Agent, error)
}

// AcceptorFunc adapts a function to the Acceptor interface.
type AcceptorFunc func(conn net.Conn, token *shutdown.Token) (*Agent, error)

// Accept calls f(conn, token).
func (f AcceptorFunc) Accept(conn net.Conn, token *shutdown.Token) (*Agent, error) {
	return f(conn, token)
}
