// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/bureau-foundation/udfagent/lib/agent"
	"github.com/bureau-foundation/udfagent/lib/shutdown"
)

// Server accepts connections and runs one Agent per connection until
// shutdown. Create it with NewServer and call Serve once.
type Server struct {
	listener net.Listener
	acceptor agent.Acceptor
	logger   *slog.Logger

	// source hands a token to every session. Triggering it asks all
	// sessions to drain; its Drained channel closes once every token
	// has been released.
	source *shutdown.Source
}

// NewServer creates a server that takes ownership of listener. Serve
// closes the listener when it stops accepting.
func NewServer(listener net.Listener, acceptor agent.Acceptor, logger *slog.Logger) *Server {
	return &Server{
		listener: listener,
		acceptor: acceptor,
		logger:   logger,
		source:   shutdown.NewSource(),
	}
}

// Sessions reports how many sessions are still running.
func (s *Server) Sessions() int {
	return s.source.Active()
}

// Serve accepts connections until ctx is cancelled or the listener
// fails. Either way it then broadcasts shutdown to every live session
// and blocks until all of them have exited.
//
// Serve returns nil after a cancellation or after the listener was
// closed by someone else, and the accept error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("agent server listening", "address", s.listener.Addr().String())

	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- s.acceptConnections()
	}()

	var acceptErr error
	select {
	case <-ctx.Done():
		s.listener.Close()
		acceptErr = <-acceptDone
	case acceptErr = <-acceptDone:
		s.listener.Close()
		if acceptErr != nil {
			s.logger.Error("accept loop failed", "error", acceptErr)
		}
	}

	// No session can start after this point: the accept loop has
	// exited, so every token that will ever exist has been handed out.
	s.logger.Info("shutting down, draining sessions", "sessions", s.source.Active())
	s.source.Trigger()
	<-s.source.Drained()
	s.logger.Info("all sessions drained")
	return acceptErr
}

func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.startSession(conn)
	}
}

// startSession builds the Agent for conn and runs it on a new
// goroutine. Acceptor failures close conn and leave the server running.
func (s *Server) startSession(conn net.Conn) {
	peer := peerAttrs(conn)
	token := s.source.Subscribe()

	session, err := s.acceptor.Accept(conn, token)
	if err == nil && session == nil {
		err = errors.New("acceptor returned no agent")
	}
	if err != nil {
		s.logger.Error("rejecting connection", append(peer, "error", err)...)
		conn.Close()
		token.Release()
		return
	}

	logger := s.logger.With("session_id", session.ID())
	logger.Info("connection accepted", peer...)
	go func() {
		if err := session.Run(); err != nil {
			logger.Debug("session ended with error", "error", err)
		}
	}()
}
