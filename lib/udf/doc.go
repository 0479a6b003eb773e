// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package udf defines the messages exchanged between a streaming host
// (Kapacitor) and a user-defined function agent, and their wire
// encoding.
//
// The host drives the agent with a [Request] per frame: capability
// query (Info), configuration (Init), liveness (Keepalive), state
// capture and replay (Snapshot, Restore), batch delimiters (Begin,
// End), and data (Point). The agent answers with a [Response] for the
// request kinds that carry one, and additionally streams Point
// responses whenever the handler emits them.
//
// # Wire format
//
// Each frame on the socket is:
//
//	uvarint(len(body)) || body
//
// The length prefix is an unsigned LEB128 varint. The body is the
// proto3 encoding of the host's agent schema. Field numbers in this
// package are contract constants shared with the host; the encoder is
// written directly against protowire so the package carries no
// generated code. Map fields are encoded in sorted key order, which
// makes the encoding of a given message deterministic. Unknown fields
// are skipped on decode so that a newer host can add fields without
// breaking older agents.
//
// [ReadFrame] and [AppendFrame] handle the length prefix. They never
// read ahead past the end of the current frame: the prefix is consumed
// one byte at a time so the stream position after a call is exactly
// the start of the next frame.
package udf
