// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/udfagent/lib/agent"
	"github.com/bureau-foundation/udfagent/lib/clock"
	"github.com/bureau-foundation/udfagent/lib/mirror"
	"github.com/bureau-foundation/udfagent/lib/shutdown"
	"github.com/bureau-foundation/udfagent/lib/snapshot"
	"github.com/bureau-foundation/udfagent/lib/testutil"
	"github.com/bureau-foundation/udfagent/lib/udf"
	"github.com/bureau-foundation/udfagent/lib/udfclient"
)

func mirrorClient(t *testing.T) *udfclient.Client {
	t.Helper()
	hostSide, agentSide := testutil.Pipe(t)
	token, release := shutdown.Standalone()
	t.Cleanup(release)
	session, err := mirror.NewAcceptor(agent.Config{}, snapshot.Zstd).Accept(agentSide, token)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	go session.Run()
	return udfclient.New(hostSide, clock.Real())
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestProbeInfo(t *testing.T) {
	t.Parallel()
	var output bytes.Buffer
	if err := probe(testContext(t), mirrorClient(t), clock.Real(), "info", &output); err != nil {
		t.Fatalf("probe info: %v", err)
	}
	for _, want := range []string{"wants:    stream", "provides: stream", "option:   field(string, double)"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output missing %q:\n%s", want, output.String())
		}
	}
}

func TestProbeKeepalive(t *testing.T) {
	t.Parallel()
	var output bytes.Buffer
	if err := probe(testContext(t), mirrorClient(t), clock.Real(), "keepalive", &output); err != nil {
		t.Fatalf("probe keepalive: %v", err)
	}
	if !strings.HasPrefix(output.String(), "keepalive ok in ") {
		t.Errorf("output: got %q", output.String())
	}
}

func TestProbeSnapshotRendersState(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	client := mirrorClient(t)
	if _, err := client.Init(ctx, udf.Option{
		Name:   mirror.OptionField,
		Values: []udf.OptionValue{udf.StringValue("cpu"), udf.DoubleValue(1.5)},
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var output bytes.Buffer
	if err := probe(ctx, client, clock.Real(), "snapshot", &output); err != nil {
		t.Fatalf("probe snapshot: %v", err)
	}
	for _, want := range []string{"snapshot: version 1", "digest:", `"cpu"`} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output missing %q:\n%s", want, output.String())
		}
	}
}

func TestPrintSnapshotNonEnvelope(t *testing.T) {
	t.Parallel()
	var output bytes.Buffer
	if err := printSnapshot(&output, []byte("raw state")); err != nil {
		t.Fatalf("printSnapshot: %v", err)
	}
	if !strings.Contains(output.String(), "9 bytes, not an envelope") {
		t.Errorf("output: got %q", output.String())
	}
}

func TestProbeUnknownCommand(t *testing.T) {
	t.Parallel()
	if err := probe(testContext(t), mirrorClient(t), clock.Real(), "restart", &bytes.Buffer{}); err == nil {
		t.Fatal("probe: expected error for unknown command")
	}
}
