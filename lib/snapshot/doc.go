// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot wraps handler state in a self-checking envelope for
// the opaque blob carried by snapshot and restore messages.
//
// An envelope is laid out as:
//
//	"UDFS"          4 bytes, magic
//	version         1 byte, currently 1
//	compression     1 byte, see Compression
//	raw size        uvarint, length of the uncompressed payload
//	digest          32 bytes, BLAKE3 keyed hash of the uncompressed payload
//	payload         remaining bytes, compressed per the compression byte
//
// The uncompressed payload is the CBOR encoding of the handler's state
// (lib/codec). The digest is computed over uncompressed bytes, so
// re-encoding a snapshot with a different compression keeps its digest.
//
// Decode checks everything it can before trusting the payload: magic,
// version, compression tag, declared size against a limit, the size
// after decompression, and the digest. Any mismatch is reported as an
// error matching ErrCorrupt, which handlers turn into a negative
// restore response.
package snapshot
