// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Udf-mirror is a UDF agent that stamps one configured double field
// onto every point it receives and streams the points back.
//
// It listens on a Unix socket and serves each host connection as an
// independent session. On SIGINT or SIGTERM it stops accepting, lets
// every session flush its queued points, and exits once all sessions
// have closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/udfagent/lib/agent"
	"github.com/bureau-foundation/udfagent/lib/config"
	"github.com/bureau-foundation/udfagent/lib/logging"
	"github.com/bureau-foundation/udfagent/lib/mirror"
	"github.com/bureau-foundation/udfagent/lib/process"
	"github.com/bureau-foundation/udfagent/lib/service"
	"github.com/bureau-foundation/udfagent/lib/snapshot"
	"github.com/bureau-foundation/udfagent/lib/version"
)

func main() {
	if err := run(); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			process.Usage(usage.err)
		}
		process.Fatal(err)
	}
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func run() error {
	flagSet := pflag.NewFlagSet("udf-mirror", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to a YAML or JSONC config file (default: $"+config.EnvironmentVariable+")")
	socketPath := flagSet.String("socket", "", "Unix socket path to listen on")
	queueCapacity := flagSet.Int("queue-capacity", 0, "outbound point queue size per session")
	maxMessageSize := flagSet.Int("max-message-size", 0, "largest accepted request frame in bytes")
	logLevel := flagSet.String("log-level", "", "debug, info, warn, or error")
	logFormat := flagSet.String("log-format", "", "auto, text, or json")
	compression := flagSet.String("snapshot-compression", "", "none, lz4, zstd, or auto")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return usageError{err}
	}
	if *showVersion {
		fmt.Printf("udf-mirror %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return usageError{fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("socket") {
		cfg.SocketPath = *socketPath
	}
	if flagSet.Changed("queue-capacity") {
		cfg.QueueCapacity = *queueCapacity
	}
	if flagSet.Changed("max-message-size") {
		cfg.MaxMessageSize = *maxMessageSize
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if flagSet.Changed("snapshot-compression") {
		cfg.Snapshot.Compression = *compression
	}
	cfg.ExpandVariables()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	snapshotCompression, err := snapshot.ParseCompression(cfg.Snapshot.Compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := service.ListenUnix(cfg.SocketPath)
	if err != nil {
		return err
	}
	logger.Info("udf-mirror starting",
		"version", version.Info(),
		"socket", cfg.SocketPath,
		"queue_capacity", cfg.QueueCapacity,
		"snapshot_compression", snapshotCompression.String(),
	)

	acceptor := mirror.NewAcceptor(agent.Config{
		QueueCapacity:  cfg.QueueCapacity,
		MaxMessageSize: cfg.MaxMessageSize,
		Logger:         logger,
	}, snapshotCompression)
	return service.NewServer(listener, acceptor, logger).Serve(ctx)
}

// loadConfig reads the file named by --config, or by the environment
// variable when the flag is absent, or returns the defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv(config.EnvironmentVariable) != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}
