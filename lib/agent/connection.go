// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/udfagent/lib/udf"
)

// Connection frames requests and responses over one byte stream. It
// holds no protocol state: the inbound frame buffer and the outbound
// encode buffer are reused across calls, nothing else is remembered.
//
// ReadMessage and SendResponse may be called from different
// goroutines, but neither may be called concurrently with itself.
type Connection struct {
	stream io.ReadWriteCloser
	frames *udf.FrameReader
	out    []byte
}

// NewConnection wraps stream. Frames larger than maxMessageSize bytes
// are rejected; zero or negative selects udf.DefaultMaxFrameSize.
func NewConnection(stream io.ReadWriteCloser, maxMessageSize int) *Connection {
	if maxMessageSize <= 0 {
		maxMessageSize = udf.DefaultMaxFrameSize
	}
	return &Connection{
		stream: stream,
		frames: udf.NewFrameReader(stream, maxMessageSize),
	}
}

// ReadMessage blocks until one complete frame has arrived and returns
// the decoded request.
//
// A peer that closes the stream between frames produces an error
// matching both ErrTransport and io.EOF. A stream that ends inside a
// frame matches ErrTransport and io.ErrUnexpectedEOF. A length prefix
// that is malformed or over the size limit, and a body that does not
// decode, match ErrCodec.
func (c *Connection) ReadMessage() (*udf.Request, error) {
	body, err := c.frames.Next()
	if err != nil {
		if errors.Is(err, udf.ErrMalformedPrefix) || errors.Is(err, udf.ErrFrameTooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrCodec, err)
		}
		return nil, fmt.Errorf("%w: reading frame: %w", ErrTransport, err)
	}
	request, err := udf.UnmarshalRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %d-byte request: %w", ErrCodec, len(body), err)
	}
	return request, nil
}

// SendResponse encodes response and writes it as a single frame with
// one Write call.
func (c *Connection) SendResponse(response *udf.Response) error {
	frame, err := udf.AppendResponseFrame(c.out[:0], response)
	if err != nil {
		return fmt.Errorf("%w: encoding %s response: %w", ErrCodec, response.Kind(), err)
	}
	c.out = frame
	if _, err := c.stream.Write(frame); err != nil {
		return fmt.Errorf("%w: writing %s response: %w", ErrTransport, response.Kind(), err)
	}
	return nil
}

// Close closes the underlying stream. A ReadMessage blocked on the
// stream returns with an ErrTransport error.
func (c *Connection) Close() error {
	return c.stream.Close()
}
