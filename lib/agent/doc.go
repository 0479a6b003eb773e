// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the per-connection session engine of a UDF
// agent: the process that a host streaming engine drives over a Unix
// socket to run user-defined stream and batch transforms.
//
// A session is owned end to end by one [Agent]. The Agent owns the
// byte stream (through a [Connection], which does the framing), one
// [Handler] carrying the user logic, one [shutdown.Token], and a
// bounded queue of outbound points. [Agent.Run] races three events:
//
//   - the next request decoded from the stream,
//   - a point waiting in the outbound queue,
//   - the shutdown token firing.
//
// Requests are handled one at a time. The next request is not read
// until the previous one has been dispatched and its response (if the
// kind has one) has been written. Points emitted by the handler through
// its [PointSink] are written in FIFO order and may interleave with
// request responses.
//
// The sink never blocks. When the queue is full, Send fails with
// [ErrBackpressure] and the handler decides what to do with the point.
//
// # Errors
//
// Session-ending errors are classified with sentinel values that
// callers test with errors.Is:
//
//   - [ErrTransport]: the stream failed. A clean close by the peer
//     between frames is not an error; Run returns nil.
//   - [ErrCodec]: a frame or body could not be decoded or encoded.
//   - [ErrProtocol]: a request arrived that the handler's declared
//     mode does not allow.
//   - [ErrHandler]: a handler method returned an error.
//
// For every kind except ErrTransport the Agent writes one best-effort
// error response to the peer before closing. A handler that rejects
// Init or Restore does so through the response's success flag; that is
// an ordinary negative response, not a session error.
package agent
