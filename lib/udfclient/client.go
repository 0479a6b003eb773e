// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udfclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bureau-foundation/udfagent/lib/clock"
	"github.com/bureau-foundation/udfagent/lib/udf"
)

// dialTimeout bounds the connect phase of Dial.
const dialTimeout = 5 * time.Second

// responseTimeout is how long a helper waits for its response when
// ctx carries no deadline of its own.
const responseTimeout = 30 * time.Second

// RemoteError is returned when the agent answers with an error
// response. The agent closes the session after sending one.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "agent error: " + e.Message
}

// Client is a connection to one agent session.
type Client struct {
	conn    net.Conn
	frames  *udf.FrameReader
	out     []byte
	clock   clock.Clock
	pending []*udf.Point
}

// Dial connects to the agent socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return New(conn, clock.Real()), nil
}

// New wraps an established connection. The clock supplies keepalive
// timestamps.
func New(conn net.Conn, timeSource clock.Clock) *Client {
	return &Client{
		conn:   conn,
		frames: udf.NewFrameReader(conn, 0),
		clock:  timeSource,
	}
}

// Close closes the connection. The agent sees a clean end of stream.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one request frame.
func (c *Client) Send(request *udf.Request) error {
	frame, err := udf.AppendRequestFrame(c.out[:0], request)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", request.Kind(), err)
	}
	c.out = frame
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("writing %s request: %w", request.Kind(), err)
	}
	return nil
}

// Receive reads the next response frame, whatever its kind. It does
// not consult the buffer of points collected by the helpers.
func (c *Client) Receive() (*udf.Response, error) {
	response, err := c.frames.ReadResponse()
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return response, nil
}

// Info asks the agent for its edge types and options.
func (c *Client) Info(ctx context.Context) (*udf.InfoResponse, error) {
	response, err := c.roundTrip(ctx, &udf.Request{Info: &udf.InfoRequest{}}, udf.KindInfo)
	if err != nil {
		return nil, err
	}
	return response.Info, nil
}

// Init sends the given options. A rejection is reported through the
// response's Success and Error fields, not as a Go error.
func (c *Client) Init(ctx context.Context, options ...udf.Option) (*udf.InitResponse, error) {
	response, err := c.roundTrip(ctx, &udf.Request{Init: &udf.InitRequest{Options: options}}, udf.KindInit)
	if err != nil {
		return nil, err
	}
	return response.Init, nil
}

// Keepalive sends the current time and returns the echoed timestamp
// in nanoseconds.
func (c *Client) Keepalive(ctx context.Context) (int64, error) {
	sent := c.clock.Now().UnixNano()
	response, err := c.roundTrip(ctx, &udf.Request{Keepalive: &udf.KeepaliveRequest{Time: sent}}, udf.KindKeepalive)
	if err != nil {
		return 0, err
	}
	if response.Keepalive.Time != sent {
		return 0, fmt.Errorf("keepalive echoed %d, sent %d", response.Keepalive.Time, sent)
	}
	return response.Keepalive.Time, nil
}

// Snapshot returns the agent's opaque state blob.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	response, err := c.roundTrip(ctx, &udf.Request{Snapshot: &udf.SnapshotRequest{}}, udf.KindSnapshot)
	if err != nil {
		return nil, err
	}
	return response.Snapshot.Snapshot, nil
}

// Restore hands a previously captured blob back to the agent.
func (c *Client) Restore(ctx context.Context, snapshot []byte) (*udf.RestoreResponse, error) {
	response, err := c.roundTrip(ctx, &udf.Request{Restore: &udf.RestoreRequest{Snapshot: snapshot}}, udf.KindRestore)
	if err != nil {
		return nil, err
	}
	return response.Restore, nil
}

// Point sends one data point. Points have no direct response; read
// emitted points with NextPoint.
func (c *Client) Point(point *udf.Point) error {
	return c.Send(&udf.Request{Point: point})
}

// NextPoint returns the oldest emitted point, reading from the agent
// if none is buffered.
func (c *Client) NextPoint(ctx context.Context) (*udf.Point, error) {
	if len(c.pending) > 0 {
		point := c.pending[0]
		c.pending = c.pending[1:]
		return point, nil
	}
	stop := c.bind(ctx)
	defer stop()
	response, err := c.Receive()
	if err != nil {
		return nil, err
	}
	switch response.Kind() {
	case udf.KindPoint:
		return response.Point, nil
	case udf.KindError:
		return nil, &RemoteError{Message: response.Error.Error}
	}
	return nil, fmt.Errorf("unexpected %s response while waiting for a point", response.Kind())
}

// Buffered reports how many emitted points are waiting for NextPoint.
func (c *Client) Buffered() int {
	return len(c.pending)
}

func (c *Client) roundTrip(ctx context.Context, request *udf.Request, want udf.Kind) (*udf.Response, error) {
	stop := c.bind(ctx)
	defer stop()

	if err := c.Send(request); err != nil {
		return nil, err
	}
	for {
		response, err := c.Receive()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s response: %w", want, err)
		}
		switch response.Kind() {
		case want:
			return response, nil
		case udf.KindPoint:
			c.pending = append(c.pending, response.Point)
		case udf.KindError:
			return nil, &RemoteError{Message: response.Error.Error}
		default:
			return nil, fmt.Errorf("unexpected %s response while waiting for %s", response.Kind(), want)
		}
	}
}

// bind applies ctx to the connection: its deadline (or responseTimeout
// when it has none) becomes the I/O deadline, and cancellation
// interrupts blocked I/O. The returned function undoes both.
func (c *Client) bind(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(responseTimeout)
	}
	c.conn.SetDeadline(deadline)
	stopInterrupt := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		stopInterrupt()
		c.conn.SetDeadline(time.Time{})
	}
}
