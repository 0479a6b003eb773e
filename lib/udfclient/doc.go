// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package udfclient is the host side of the UDF agent protocol. It
// dials an agent's Unix socket and exchanges framed requests and
// responses with it.
//
// The request/response helpers (Info, Init, Keepalive, Snapshot,
// Restore) send one request and wait for the response of the matching
// kind. Point responses that arrive in the meantime are buffered and
// returned later by NextPoint, since an agent writes emitted points
// whenever they are ready. An error response from the agent is
// returned as a *RemoteError.
//
// A Client is not safe for concurrent use.
package udfclient
