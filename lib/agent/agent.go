// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/udfagent/lib/clock"
	"github.com/bureau-foundation/udfagent/lib/shutdown"
	"github.com/bureau-foundation/udfagent/lib/udf"
)

// DefaultQueueCapacity is the number of emitted points an Agent holds
// before PointSink.Send starts failing with ErrBackpressure.
const DefaultQueueCapacity = 128

// Config tunes an Agent. The zero value is usable.
type Config struct {
	// QueueCapacity bounds the outbound point queue. Zero selects
	// DefaultQueueCapacity.
	QueueCapacity int

	// MaxMessageSize bounds inbound frames. Zero selects
	// udf.DefaultMaxFrameSize.
	MaxMessageSize int

	// Logger receives session lifecycle and error events. Nil discards
	// them.
	Logger *slog.Logger

	// Clock measures session duration. Nil selects clock.Real().
	Clock clock.Clock
}

// Stats counts what a session has done so far.
type Stats struct {
	// Requests is the number of requests read and dispatched.
	Requests uint64

	// PointsIn is the number of point requests passed to the handler.
	PointsIn uint64

	// PointsEmitted is the number of points accepted by the sink.
	PointsEmitted uint64

	// PointsFlushed is the number of queued points written to the peer.
	PointsFlushed uint64

	// Rejected is the number of sink calls that failed with
	// ErrBackpressure.
	Rejected uint64
}

// Agent runs one session. Create it with New and call Run exactly once.
type Agent struct {
	id         string
	connection *Connection
	handler    Handler
	token      *shutdown.Token
	points     chan *udf.Point
	logger     *slog.Logger
	clock      clock.Clock

	// wants is the input edge type from the handler's last Info
	// response. Batch boundaries are only checked once it is known.
	wants      udf.EdgeType
	wantsKnown bool

	requests      atomic.Uint64
	pointsIn      atomic.Uint64
	pointsEmitted atomic.Uint64
	pointsFlushed atomic.Uint64
	rejected      atomic.Uint64
}

// New creates an Agent that serves handler over stream. The Agent
// takes ownership of stream and token: Run closes the one and releases
// the other before returning.
func New(stream io.ReadWriteCloser, handler Handler, token *shutdown.Token, config Config) *Agent {
	capacity := config.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessionClock := config.Clock
	if sessionClock == nil {
		sessionClock = clock.Real()
	}
	id := uuid.NewString()
	return &Agent{
		id:         id,
		connection: NewConnection(stream, config.MaxMessageSize),
		handler:    handler,
		token:      token,
		points:     make(chan *udf.Point, capacity),
		logger:     logger.With("session_id", id),
		clock:      sessionClock,
	}
}

// ID returns the session identifier used in log records.
func (a *Agent) ID() string { return a.id }

// Stats returns a snapshot of the session counters. It is safe to call
// while Run is executing.
func (a *Agent) Stats() Stats {
	return Stats{
		Requests:      a.requests.Load(),
		PointsIn:      a.pointsIn.Load(),
		PointsEmitted: a.pointsEmitted.Load(),
		PointsFlushed: a.pointsFlushed.Load(),
		Rejected:      a.rejected.Load(),
	}
}

// inbound is one result of Connection.ReadMessage, handed from the
// reader goroutine to the session loop.
type inbound struct {
	request *udf.Request
	err     error
}

// Run serves the session until the peer closes the stream, the token
// fires, or an error ends it. A peer close and a shutdown both return
// nil. On shutdown a request already read from the stream is still
// handled, then every queued point is written.
//
// On return the stream is closed, the reader goroutine has exited,
// and the token has been released.
func (a *Agent) Run() error {
	start := a.clock.Now()
	a.logger.Info("session started")

	requests := make(chan inbound)
	proceed := make(chan struct{})
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		a.readRequests(requests, proceed, stop)
	}()

	err := a.loop(requests, proceed)

	close(stop)
	a.connection.Close()
	<-readerDone
	a.token.Release()

	attrs := []any{
		"duration", clock.Since(a.clock, start),
		"requests", a.requests.Load(),
		"points_in", a.pointsIn.Load(),
		"points_emitted", a.pointsEmitted.Load(),
		"points_flushed", a.pointsFlushed.Load(),
		"rejected", a.rejected.Load(),
	}
	if err != nil {
		a.logger.Error("session failed", append(attrs, "error", err)...)
		return err
	}
	a.logger.Info("session ended", attrs...)
	return nil
}

// readRequests reads one request at a time. After handing a request to
// the loop it waits for proceed, so no read begins until the previous
// request has been fully handled.
func (a *Agent) readRequests(requests chan<- inbound, proceed <-chan struct{}, stop <-chan struct{}) {
	for {
		request, err := a.connection.ReadMessage()
		select {
		case requests <- inbound{request: request, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
		select {
		case <-proceed:
		case <-stop:
			return
		}
	}
}

func (a *Agent) loop(requests <-chan inbound, proceed chan<- struct{}) error {
	for {
		select {
		case <-a.token.Done():
			a.token.IsShutdown()
			if err := a.finishPending(requests); err != nil {
				return a.fail(err)
			}
			return a.drain()

		case point := <-a.points:
			if err := a.flush(point); err != nil {
				return err
			}

		case message := <-requests:
			if message.err != nil {
				if errors.Is(message.err, io.EOF) {
					a.logger.Info("peer closed connection")
					return nil
				}
				return a.fail(message.err)
			}
			a.requests.Add(1)
			if err := a.dispatch(message.request); err != nil {
				return a.fail(err)
			}
			proceed <- struct{}{}
		}
	}
}

// aLongTimeAgo is a read deadline that has always passed.
var aLongTimeAgo = time.Unix(1, 0)

// deadlineStream is implemented by net.Conn.
type deadlineStream interface {
	SetReadDeadline(time.Time) error
}

// finishPending dispatches a request the reader has already taken off
// the stream when shutdown arrives. A stream with read deadlines has
// its pending read interrupted, and the reader's last result is
// awaited: either a complete request or the interruption. Otherwise
// only a request already handed over is picked up.
func (a *Agent) finishPending(requests <-chan inbound) error {
	var message inbound
	if stream, ok := a.connection.stream.(deadlineStream); ok && stream.SetReadDeadline(aLongTimeAgo) == nil {
		message = <-requests
	} else {
		select {
		case message = <-requests:
		default:
			return nil
		}
	}
	if message.err != nil {
		if !errors.Is(message.err, io.EOF) && !errors.Is(message.err, os.ErrDeadlineExceeded) {
			a.logger.Debug("read interrupted by shutdown", "error", message.err)
		}
		return nil
	}
	a.requests.Add(1)
	return a.dispatch(message.request)
}

// drain writes every point already in the queue without waiting for
// more.
func (a *Agent) drain() error {
	queued := len(a.points)
	a.logger.Debug("shutdown requested, draining", "queued", queued)
	for {
		select {
		case point := <-a.points:
			if err := a.flush(point); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (a *Agent) flush(point *udf.Point) error {
	if err := a.connection.SendResponse(&udf.Response{Point: point}); err != nil {
		return err
	}
	a.pointsFlushed.Add(1)
	return nil
}

// fail tells the peer why the session is ending, when the stream is
// still usable, and returns err.
func (a *Agent) fail(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	if errors.Is(err, ErrProtocol) {
		a.logger.Warn("protocol violation", "error", err)
	}
	notice := &udf.Response{Error: &udf.ErrorResponse{Error: err.Error()}}
	if sendErr := a.connection.SendResponse(notice); sendErr != nil {
		a.logger.Debug("error response not delivered", "error", sendErr)
	}
	return err
}

func (a *Agent) dispatch(request *udf.Request) error {
	kind := request.Kind()
	a.logger.Debug("request received", "kind", kind)

	switch kind {
	case udf.KindNone:
		return nil

	case udf.KindInfo:
		info, err := a.handler.Info()
		if err := checkResponse(kind, info, err); err != nil {
			return err
		}
		a.wants = info.Wants
		a.wantsKnown = true
		return a.connection.SendResponse(&udf.Response{Info: info})

	case udf.KindInit:
		response, err := a.handler.Init(request.Init)
		if err := checkResponse(kind, response, err); err != nil {
			return err
		}
		if !response.Success {
			a.logger.Warn("init rejected", "error", response.Error)
		}
		return a.connection.SendResponse(&udf.Response{Init: response})

	case udf.KindKeepalive:
		return a.connection.SendResponse(&udf.Response{
			Keepalive: &udf.KeepaliveResponse{Time: request.Keepalive.Time},
		})

	case udf.KindSnapshot:
		response, err := a.handler.Snapshot()
		if err := checkResponse(kind, response, err); err != nil {
			return err
		}
		return a.connection.SendResponse(&udf.Response{Snapshot: response})

	case udf.KindRestore:
		response, err := a.handler.Restore(request.Restore)
		if err := checkResponse(kind, response, err); err != nil {
			return err
		}
		if !response.Success {
			a.logger.Warn("restore rejected", "error", response.Error)
		}
		return a.connection.SendResponse(&udf.Response{Restore: response})

	case udf.KindBegin:
		if err := a.checkBatchAllowed(kind); err != nil {
			return err
		}
		if err := a.handler.BeginBatch(request.Begin); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrHandler, kind, err)
		}
		return nil

	case udf.KindPoint:
		a.pointsIn.Add(1)
		err := a.handler.Point(request.Point, queueSink{agent: a})
		if errors.Is(err, ErrBackpressure) {
			a.logger.Warn("point dropped", "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrHandler, kind, err)
		}
		return nil

	case udf.KindEnd:
		if err := a.checkBatchAllowed(kind); err != nil {
			return err
		}
		if err := a.handler.EndBatch(request.End); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrHandler, kind, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unexpected request kind %s", ErrProtocol, kind)
}

// checkBatchAllowed rejects batch boundaries sent to a handler that
// declared a stream input edge.
func (a *Agent) checkBatchAllowed(kind udf.Kind) error {
	if a.wantsKnown && a.wants == udf.EdgeStream {
		return fmt.Errorf("%w: %s received but handler wants %s edges", ErrProtocol, kind, a.wants)
	}
	return nil
}

// checkResponse turns a failed or empty handler result into a session
// error.
func checkResponse[T any](kind udf.Kind, response *T, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHandler, kind, err)
	}
	if response == nil {
		return fmt.Errorf("%w: %s returned no response", ErrHandler, kind)
	}
	return nil
}

// queueSink is the PointSink handed to Handler.Point.
type queueSink struct {
	agent *Agent
}

func (sink queueSink) Send(point *udf.Point) error {
	if point == nil {
		return errors.New("cannot emit a nil point")
	}
	select {
	case sink.agent.points <- point:
		sink.agent.pointsEmitted.Add(1)
		return nil
	default:
		sink.agent.rejected.Add(1)
		return fmt.Errorf("%w: %d points waiting", ErrBackpressure, cap(sink.agent.points))
	}
}
