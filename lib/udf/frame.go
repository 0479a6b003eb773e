// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxFrameSize bounds the body length a FrameReader accepts
// when the caller does not configure one. Points are small; the
// largest legitimate frames are snapshot blobs.
const DefaultMaxFrameSize = 64 * 1024 * 1024

// maxPrefixLength is the longest uvarint encoding of a uint64.
const maxPrefixLength = binary.MaxVarintLen64

var (
	// ErrFrameTooLarge is returned when a length prefix announces a
	// body larger than the reader's maximum.
	ErrFrameTooLarge = errors.New("udf: frame exceeds maximum size")

	// ErrMalformedPrefix is returned when the length prefix is not a
	// valid uvarint (more than ten bytes or overflowing 64 bits).
	ErrMalformedPrefix = errors.New("udf: malformed length prefix")
)

// FrameReader reads length-prefixed frames from a byte stream. The
// body buffer is reused across calls: a slice returned by Next is
// valid only until the following call.
type FrameReader struct {
	reader  io.Reader
	maxSize int
	scratch [1]byte
	body    []byte

	// streamErr records the last error returned by the underlying
	// reader during prefix decoding, to tell stream failures apart
	// from malformed prefixes.
	streamErr error
}

// NewFrameReader returns a FrameReader over reader. A maxSize of zero
// or less selects DefaultMaxFrameSize.
func NewFrameReader(reader io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{
		reader:  reader,
		maxSize: maxSize,
		body:    make([]byte, 0, 128),
	}
}

// ReadByte reads exactly one byte from the underlying stream. It is
// used for the length prefix so that nothing past the current frame
// is consumed.
func (frames *FrameReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(frames.reader, frames.scratch[:]); err != nil {
		frames.streamErr = err
		return 0, err
	}
	return frames.scratch[0], nil
}

// Next blocks until a complete frame has been read and returns its
// body. Errors:
//
//   - io.EOF: the stream ended cleanly before the first prefix byte.
//   - io.ErrUnexpectedEOF: the stream ended inside a prefix or body.
//   - ErrMalformedPrefix, ErrFrameTooLarge: the prefix is unusable.
//   - any other error from the underlying reader.
func (frames *FrameReader) Next() ([]byte, error) {
	frames.streamErr = nil
	size, err := binary.ReadUvarint(frames)
	if err != nil {
		if frames.streamErr == nil {
			// The bytes arrived but do not form a uvarint.
			return nil, fmt.Errorf("%w: %v", ErrMalformedPrefix, err)
		}
		return nil, err
	}
	if size > uint64(frames.maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (maximum %d)", ErrFrameTooLarge, size, frames.maxSize)
	}

	length := int(size)
	if cap(frames.body) < length {
		frames.body = make([]byte, length)
	}
	frames.body = frames.body[:length]
	if _, err := io.ReadFull(frames.reader, frames.body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading %d-byte frame body: %w", length, err)
	}
	return frames.body, nil
}

// ReadRequest reads one frame and decodes it as a Request.
func (frames *FrameReader) ReadRequest() (*Request, error) {
	body, err := frames.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(body)
}

// ReadResponse reads one frame and decodes it as a Response.
func (frames *FrameReader) ReadResponse() (*Response, error) {
	body, err := frames.Next()
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(body)
}

// AppendFrame appends uvarint(len(body)) followed by body to dst.
func AppendFrame(dst, body []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(body)))
	return append(dst, body...)
}

// AppendRequestFrame encodes request and appends it to dst as one
// frame.
func AppendRequestFrame(dst []byte, request *Request) ([]byte, error) {
	start := len(dst)
	dst = reservePrefix(dst)
	dst, err := AppendRequest(dst, request)
	if err != nil {
		return dst[:start], err
	}
	return finishFrame(dst, start), nil
}

// AppendResponseFrame encodes response and appends it to dst as one
// frame.
func AppendResponseFrame(dst []byte, response *Response) ([]byte, error) {
	start := len(dst)
	dst = reservePrefix(dst)
	dst, err := AppendResponse(dst, response)
	if err != nil {
		return dst[:start], err
	}
	return finishFrame(dst, start), nil
}

// reservePrefix appends room for the longest possible length prefix.
// The body is encoded after it; finishFrame then writes the real
// prefix and closes the gap.
func reservePrefix(dst []byte) []byte {
	var zero [maxPrefixLength]byte
	return append(dst, zero[:]...)
}

func finishFrame(buffer []byte, start int) []byte {
	bodyStart := start + maxPrefixLength
	bodyLength := len(buffer) - bodyStart

	var prefix [maxPrefixLength]byte
	prefixLength := binary.PutUvarint(prefix[:], uint64(bodyLength))
	copy(buffer[start:], prefix[:prefixLength])
	copy(buffer[start+prefixLength:], buffer[bodyStart:])
	return buffer[:start+prefixLength+bodyLength]
}
