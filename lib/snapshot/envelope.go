// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bureau-foundation/udfagent/lib/codec"
)

const (
	magic   = "UDFS"
	version = 1

	// MaxStateSize bounds the declared uncompressed payload size.
	MaxStateSize = 16 * 1024 * 1024
)

// ErrCorrupt is matched by every Decode error caused by the blob
// itself, as opposed to the caller's target type.
var ErrCorrupt = errors.New("corrupt snapshot")

// Header describes an envelope without its payload.
type Header struct {
	Version     uint8
	Compression Compression
	RawSize     int
	Digest      Digest
}

// Encode serializes state as CBOR and wraps it in an envelope. With
// Auto, or when the chosen algorithm does not shrink the payload, the
// payload is stored uncompressed and the header says so.
func Encode(state any, compression Compression) ([]byte, error) {
	raw, err := codec.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot state: %w", err)
	}
	if len(raw) > MaxStateSize {
		return nil, fmt.Errorf("snapshot state is %d bytes (maximum %d)", len(raw), MaxStateSize)
	}

	if compression == Auto {
		compression = Zstd
		if len(raw) < autoThreshold {
			compression = None
		}
	}
	payload, err := compress(raw, compression)
	if errors.Is(err, errIncompressible) {
		compression, payload = None, raw
	} else if err != nil {
		return nil, err
	}

	digest := digestOf(raw)
	envelope := make([]byte, 0, len(magic)+2+binary.MaxVarintLen64+len(digest)+len(payload))
	envelope = append(envelope, magic...)
	envelope = append(envelope, version, byte(compression))
	envelope = binary.AppendUvarint(envelope, uint64(len(raw)))
	envelope = append(envelope, digest[:]...)
	envelope = append(envelope, payload...)
	return envelope, nil
}

// Decode verifies an envelope and decodes its state into target.
func Decode(data []byte, target any) error {
	header, raw, err := Open(data)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: decoding %d-byte state: %w", ErrCorrupt, header.RawSize, err)
	}
	return nil
}

// Open verifies an envelope and returns its header and uncompressed
// CBOR payload without decoding the state.
func Open(data []byte) (Header, []byte, error) {
	header, payload, err := parseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	raw, err := decompress(payload, header.Compression, header.RawSize)
	if err != nil {
		return Header{}, nil, err
	}
	if digestOf(raw) != header.Digest {
		return Header{}, nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return header, raw, nil
}

func parseHeader(data []byte) (Header, []byte, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return Header{}, nil, fmt.Errorf("%w: missing %q magic", ErrCorrupt, magic)
	}
	rest := data[len(magic):]
	if len(rest) < 2 {
		return Header{}, nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	header := Header{Version: rest[0], Compression: Compression(rest[1])}
	if header.Version != version {
		return Header{}, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	rest = rest[2:]

	size, length := binary.Uvarint(rest)
	if length <= 0 {
		return Header{}, nil, fmt.Errorf("%w: malformed size", ErrCorrupt)
	}
	if size > MaxStateSize {
		return Header{}, nil, fmt.Errorf("%w: declared size %d exceeds maximum %d", ErrCorrupt, size, MaxStateSize)
	}
	header.RawSize = int(size)
	rest = rest[length:]

	if len(rest) < len(header.Digest) {
		return Header{}, nil, fmt.Errorf("%w: truncated digest", ErrCorrupt)
	}
	copy(header.Digest[:], rest)
	return header, rest[len(header.Digest):], nil
}
