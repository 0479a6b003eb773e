// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how an envelope's payload is stored. The values
// of None, LZ4 and Zstd are written into envelopes and must not change.
type Compression uint8

const (
	// None stores the payload as is.
	None Compression = 0

	// LZ4 stores the payload as one LZ4 block. Fast, modest ratio.
	LZ4 Compression = 1

	// Zstd stores the payload as a zstd frame at the default level.
	Zstd Compression = 2

	// Auto is an encoding policy, never written to an envelope: small
	// payloads are stored uncompressed and larger ones with zstd.
	Auto Compression = 255
)

// autoThreshold is the payload size below which Auto skips compression.
const autoThreshold = 256

func (compression Compression) String() string {
	switch compression {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(compression))
	}
}

// ParseCompression parses a compression name as used in configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "auto", "":
		return Auto, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q (want none, lz4, zstd, or auto)", name)
	}
}

// errIncompressible means compression would not shrink the payload.
// The envelope then falls back to None.
var errIncompressible = errors.New("payload is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns data compressed with the given algorithm, or
// errIncompressible when the result would not be smaller.
func compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case None:
		return data, nil
	case LZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case Zstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot compression %s", compression)
	}
}

// decompress reverses compress. The result must be exactly rawSize
// bytes long.
func decompress(payload []byte, compression Compression, rawSize int) ([]byte, error) {
	switch compression {
	case None:
		if len(payload) != rawSize {
			return nil, fmt.Errorf("%w: stored payload is %d bytes, header says %d", ErrCorrupt, len(payload), rawSize)
		}
		return payload, nil
	case LZ4:
		destination := make([]byte, rawSize)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 decompress: %w", ErrCorrupt, err)
		}
		if read != rawSize {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, header says %d", ErrCorrupt, read, rawSize)
		}
		return destination, nil
	case Zstd:
		result, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress: %w", ErrCorrupt, err)
		}
		if len(result) != rawSize {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, header says %d", ErrCorrupt, len(result), rawSize)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrCorrupt, uint8(compression))
	}
}
