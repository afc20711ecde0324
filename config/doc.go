// Copyright (c) Colloquy Authors.
// Licensed under the MIT License.

// Package config loads conversation run configuration from YAML with
// environment-variable overrides for credentials, and builds participants
// from it.
package config
