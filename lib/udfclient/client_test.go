// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udfclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/udfagent/lib/clock"
	"github.com/bureau-foundation/udfagent/lib/testutil"
	"github.com/bureau-foundation/udfagent/lib/udf"
)

var testEpoch = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

// scriptedAgent answers each request it reads with the responses
// produced by reply, then exits when the client closes.
func scriptedAgent(t *testing.T, conn net.Conn, reply func(*udf.Request) []*udf.Response) {
	t.Helper()
	go func() {
		frames := udf.NewFrameReader(conn, 0)
		for {
			request, err := frames.ReadRequest()
			if err != nil {
				return
			}
			for _, response := range reply(request) {
				frame, err := udf.AppendResponseFrame(nil, response)
				if err != nil {
					t.Errorf("encoding %s: %v", response.Kind(), err)
					return
				}
				if _, err := conn.Write(frame); err != nil {
					return
				}
			}
		}
	}()
}

func newTestClient(t *testing.T, reply func(*udf.Request) []*udf.Response) (*Client, *clock.FakeClock) {
	t.Helper()
	hostSide, agentSide := testutil.Pipe(t)
	scriptedAgent(t, agentSide, reply)
	fake := clock.Fake(testEpoch)
	return New(hostSide, fake), fake
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestKeepaliveUsesClock(t *testing.T) {
	t.Parallel()
	client, fake := newTestClient(t, func(request *udf.Request) []*udf.Response {
		return []*udf.Response{{Keepalive: &udf.KeepaliveResponse{Time: request.Keepalive.Time}}}
	})
	fake.Advance(time.Minute)

	echoed, err := client.Keepalive(testContext(t))
	if err != nil {
		t.Fatalf("Keepalive: %v", err)
	}
	if want := testEpoch.Add(time.Minute).UnixNano(); echoed != want {
		t.Errorf("echoed: got %d, want %d", echoed, want)
	}
}

func TestKeepaliveDetectsWrongEcho(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(*udf.Request) []*udf.Response {
		return []*udf.Response{{Keepalive: &udf.KeepaliveResponse{Time: 1}}}
	})
	if _, err := client.Keepalive(testContext(t)); err == nil {
		t.Fatal("Keepalive: expected mismatch error")
	}
}

func TestRoundTripBuffersInterleavedPoints(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(request *udf.Request) []*udf.Response {
		switch request.Kind() {
		case udf.KindSnapshot:
			return []*udf.Response{
				{Point: &udf.Point{Name: "first"}},
				{Point: &udf.Point{Name: "second"}},
				{Snapshot: &udf.SnapshotResponse{Snapshot: []byte("blob")}},
			}
		case udf.KindPoint:
			return []*udf.Response{{Point: &udf.Point{Name: "third"}}}
		}
		return nil
	})
	ctx := testContext(t)

	blob, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if string(blob) != "blob" {
		t.Errorf("snapshot: got %q", blob)
	}
	if client.Buffered() != 2 {
		t.Fatalf("buffered: got %d, want 2", client.Buffered())
	}

	if err := client.Point(&udf.Point{}); err != nil {
		t.Fatalf("Point: %v", err)
	}
	for _, want := range []string{"first", "second", "third"} {
		point, err := client.NextPoint(ctx)
		if err != nil {
			t.Fatalf("NextPoint: %v", err)
		}
		if point.Name != want {
			t.Errorf("point order: got %q, want %q", point.Name, want)
		}
	}
}

func TestRemoteErrorIsReturned(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(*udf.Request) []*udf.Response {
		return []*udf.Response{{Error: &udf.ErrorResponse{Error: "handler error: boom"}}}
	})

	_, err := client.Info(testContext(t))
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Info: got %v, want *RemoteError", err)
	}
	if remote.Message != "handler error: boom" {
		t.Errorf("message: got %q", remote.Message)
	}
}

func TestUnexpectedResponseKind(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(*udf.Request) []*udf.Response {
		return []*udf.Response{{Init: &udf.InitResponse{Success: true}}}
	})
	if _, err := client.Info(testContext(t)); err == nil {
		t.Fatal("Info: expected error for init response")
	}
}

func TestCancelledContextInterruptsWait(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(*udf.Request) []*udf.Response { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Info(ctx)
		done <- err
	}()
	testutil.RequireBlocked(t, done, 50*time.Millisecond, "Info returned without a response")
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Info to give up"); err == nil {
		t.Fatal("Info: expected error after cancellation")
	}
}

func TestDialMissingSocket(t *testing.T) {
	t.Parallel()
	if _, err := Dial(testContext(t), testutil.SocketPath(t, "absent.sock")); err == nil {
		t.Fatal("Dial: expected error for missing socket")
	}
}
