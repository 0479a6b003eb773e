// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service runs UDF agents behind a Unix socket listener.
//
// [Server] accepts connections, asks an [agent.Acceptor] to build one
// [agent.Agent] per connection, and runs each Agent on its own
// goroutine. Every Agent receives a token from a shared
// [shutdown.Source]. When the context passed to [Server.Serve] is
// cancelled, the server stops accepting, broadcasts shutdown to every
// token, and returns only after every Agent has flushed its queued
// points, closed its connection, and released its token.
//
// A failing connection affects only its own session. An error from
// the listener itself ends the accept loop; Serve still drains the
// live sessions before returning it.
//
// [ListenUnix] prepares the socket path: it replaces a stale socket
// left by a previous run, refuses to replace anything that is not a
// socket, and restricts the socket to owner and group.
package service
