// Copyright (c) Colloquy Authors.
// Licensed under the MIT License.

// Package tools provides the tool execution boundary used by turn running:
// an Executor interface the orchestration core calls to resolve tool
// invocations, plus a registry-backed implementation for wiring Go functions
// up as tools.
package tools
