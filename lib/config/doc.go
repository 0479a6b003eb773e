// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration file for UDF agent binaries.
//
// Configuration comes from a single file, named either by the
// UDF_AGENT_CONFIG environment variable (via [Load]) or by a --config
// flag (via [LoadFile]). Running without a file is also supported: the
// binaries start from [Default] and apply their flags. There is no
// search path and no per-field environment overrides.
//
// Files are YAML. Files ending in .json or .jsonc are accepted too:
// comments and trailing commas are stripped first, and the result is
// parsed as YAML, which JSON is a subset of. Unknown keys are errors,
// so a misspelled option does not silently fall back to its default.
//
// ${VAR} and ${VAR:-default} patterns in socket_path are expanded from
// the environment after loading.
//
// This package depends on no other packages in this module.
package config
