// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the file path from.
const EnvironmentVariable = "UDF_AGENT_CONFIG"

// Config is the agent process configuration.
type Config struct {
	// SocketPath is where the agent listens. Supports ${VAR:-default}.
	SocketPath string `yaml:"socket_path"`

	// QueueCapacity bounds each session's outbound point queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// MaxMessageSize bounds each inbound frame, in bytes.
	MaxMessageSize int `yaml:"max_message_size"`

	Log      LogConfig      `yaml:"log"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of auto, text, json. Auto picks text on a terminal
	// and JSON otherwise.
	Format string `yaml:"format"`
}

// SnapshotConfig controls handler state snapshots.
type SnapshotConfig struct {
	// Compression is one of none, lz4, zstd, auto.
	Compression string `yaml:"compression"`
}

var (
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"auto", "text", "json"}
	compressions = []string{"none", "lz4", "zstd", "auto"}
)

const (
	minMessageSize = 1024
	maxMessageSize = 1 << 30
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SocketPath:     "${XDG_RUNTIME_DIR:-/tmp}/udf-agent.sock",
		QueueCapacity:  128,
		MaxMessageSize: 64 * 1024 * 1024,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Snapshot: SnapshotConfig{
			Compression: "auto",
		},
	}
}

// Load loads the file named by UDF_AGENT_CONFIG. It fails when the
// variable is unset rather than guessing a location.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your agent config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults and expands
// variables. It does not validate; call Validate after applying flag
// overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.ExpandVariables()
	return cfg, nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} in path fields.
// Flag values applied after loading go through it as well.
func (c *Config) ExpandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity))
	}
	if c.MaxMessageSize < minMessageSize || c.MaxMessageSize > maxMessageSize {
		errs = append(errs, fmt.Errorf("max_message_size must be between %d and %d, got %d",
			minMessageSize, maxMessageSize, c.MaxMessageSize))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}
	if !slices.Contains(compressions, c.Snapshot.Compression) {
		errs = append(errs, fmt.Errorf("snapshot.compression must be one of: %v", compressions))
	}

	return errors.Join(errs...)
}
