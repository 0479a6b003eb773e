// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 keyed hash of an uncompressed payload.
type Digest [32]byte

// digestKey separates snapshot digests from any other BLAKE3 use. It
// is the ASCII domain name zero-padded to 32 bytes and is fixed:
// changing it invalidates every stored snapshot.
var digestKey = [32]byte{
	'u', 'd', 'f', 'a', 'g', 'e', 'n', 't', '.', 's', 'n', 'a', 'p', 's', 'h', 'o',
	't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func digestOf(payload []byte) Digest {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
