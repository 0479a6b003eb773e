// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import "errors"

var (
	// ErrTransport marks a failure reading from or writing to the
	// stream. The session cannot continue.
	ErrTransport = errors.New("transport error")

	// ErrCodec marks a frame that could not be decoded, or a response
	// that could not be encoded.
	ErrCodec = errors.New("codec error")

	// ErrBackpressure is returned by PointSink.Send when the outbound
	// queue is full. It is never fatal to the session.
	ErrBackpressure = errors.New("outbound point queue full")

	// ErrProtocol marks a request that is not valid in the session's
	// current mode, such as a batch boundary sent to a stream handler.
	ErrProtocol = errors.New("protocol error")

	// ErrHandler marks an error returned by a Handler method.
	ErrHandler = errors.New("handler error")
)
