// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration used for handler state
// inside snapshot envelopes.
//
// The UDF wire protocol itself is protobuf (see lib/udf). The snapshot
// and restore messages carry an opaque blob, and handlers in this
// module fill that blob with CBOR through lib/snapshot. Keeping the
// modes here means every handler encodes state the same way, and a
// probe tool can render any snapshot without knowing its Go type.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same state always produces the same bytes, so identical snapshots
// have identical digests.
//
//	data, err := codec.Marshal(state)
//	err = codec.Unmarshal(data, &state)
//
// State structs use `cbor` tags. Unknown fields are ignored on decode,
// so a handler may add state fields without invalidating snapshots
// taken by an older build.
package codec
