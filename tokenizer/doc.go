// Copyright (c) Colloquy Authors.
// Licensed under the MIT License.

// Package tokenizer provides tiktoken-backed token counting with a
// CJK-aware estimation fallback for models with no published encoding.
package tokenizer
