// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package service

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerAttrs returns log attributes identifying the process on the
// other end of a Unix socket connection, read with SO_PEERCRED. Other
// connection types, and failures, yield no attributes.
func peerAttrs(conn net.Conn) []any {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return nil
	}
	var credentials *unix.Ucred
	var credentialsErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credentialsErr != nil {
		return nil
	}
	return []any{"peer_pid", credentials.Pid, "peer_uid", credentials.Uid}
}
