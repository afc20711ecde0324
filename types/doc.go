// Copyright (c) Colloquy Authors.
// Licensed under the MIT License.

/*
Package types provides the shared chat contract used across colloquy.

types is the lowest-level public package and depends on no other package in
the module. Every adapter, the turn runner and the conversation runner speak
exclusively through these types; no vendor-specific field ever crosses this
boundary.

Core types:

  - Role / Message       — normalized conversation message (text, tool calls, tool results)
  - ToolSchema           — tool definition (name + description + JSON Schema parameters)
  - ToolCall / ToolResult — model-requested invocation and its outcome
  - ResponseFormat       — advisory structured-output request
  - ChatResponse         — normalized provider response with retained raw payload
  - Error / ErrorCode    — structured error taxonomy with Retryable and Provider markers
  - Tokenizer            — token counting interface (EstimateTokenizer built in)
  - JSONSchema           — small JSON Schema builder for tool parameters and response formats
*/
package types
