// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Udf-probe connects to a running UDF agent and issues one request,
// for checking an agent by hand or from a health check.
//
// Usage:
//
//	udf-probe --socket PATH info
//	udf-probe --socket PATH keepalive
//	udf-probe --socket PATH snapshot
//
// The snapshot command prints the envelope header and the handler
// state in CBOR diagnostic notation when the blob is a snapshot
// envelope, and its size otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/udfagent/lib/clock"
	"github.com/bureau-foundation/udfagent/lib/codec"
	"github.com/bureau-foundation/udfagent/lib/process"
	"github.com/bureau-foundation/udfagent/lib/snapshot"
	"github.com/bureau-foundation/udfagent/lib/udf"
	"github.com/bureau-foundation/udfagent/lib/udfclient"
	"github.com/bureau-foundation/udfagent/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("udf-probe", pflag.ContinueOnError)
	socketPath := flagSet.String("socket", "", "agent Unix socket path (required)")
	timeout := flagSet.Duration("timeout", 5*time.Second, "overall deadline for the probe")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		process.Usage(err)
	}
	if *showVersion {
		fmt.Printf("udf-probe %s\n", version.Info())
		return nil
	}
	if *socketPath == "" || flagSet.NArg() != 1 {
		process.Usage(errors.New("need --socket PATH and one command: info, keepalive, or snapshot"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := udfclient.Dial(ctx, *socketPath)
	if err != nil {
		return err
	}
	defer client.Close()
	return probe(ctx, client, clock.Real(), flagSet.Arg(0), os.Stdout)
}

// probe runs one command against client and writes a report to output.
func probe(ctx context.Context, client *udfclient.Client, timeSource clock.Clock, command string, output io.Writer) error {
	switch command {
	case "info":
		info, err := client.Info(ctx)
		if err != nil {
			return err
		}
		printInfo(output, info)
		return nil

	case "keepalive":
		start := timeSource.Now()
		if _, err := client.Keepalive(ctx); err != nil {
			return err
		}
		fmt.Fprintf(output, "keepalive ok in %s\n", clock.Since(timeSource, start))
		return nil

	case "snapshot":
		blob, err := client.Snapshot(ctx)
		if err != nil {
			return err
		}
		return printSnapshot(output, blob)

	default:
		return fmt.Errorf("unknown command %q (want info, keepalive, or snapshot)", command)
	}
}

func printInfo(output io.Writer, info *udf.InfoResponse) {
	fmt.Fprintf(output, "wants:    %s\n", info.Wants)
	fmt.Fprintf(output, "provides: %s\n", info.Provides)
	names := make([]string, 0, len(info.Options))
	for name := range info.Options {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		types := make([]string, 0, len(info.Options[name].ValueTypes))
		for _, valueType := range info.Options[name].ValueTypes {
			types = append(types, valueType.String())
		}
		fmt.Fprintf(output, "option:   %s(%s)\n", name, strings.Join(types, ", "))
	}
}

func printSnapshot(output io.Writer, blob []byte) error {
	header, raw, err := snapshot.Open(blob)
	if errors.Is(err, snapshot.ErrCorrupt) {
		fmt.Fprintf(output, "snapshot: %d bytes, not an envelope (%v)\n", len(blob), err)
		return nil
	}
	if err != nil {
		return err
	}
	notation, err := codec.Diagnose(raw)
	if err != nil {
		return fmt.Errorf("rendering snapshot state: %w", err)
	}
	fmt.Fprintf(output, "snapshot: version %d, %s, %d bytes stored, %d bytes raw\n",
		header.Version, header.Compression, len(blob), header.RawSize)
	fmt.Fprintf(output, "digest:   %x\n", header.Digest)
	fmt.Fprintf(output, "state:    %s\n", notation)
	return nil
}
