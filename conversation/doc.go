// Copyright (c) Colloquy Authors.
// Licensed under the MIT License.

// Package conversation implements the orchestration core: participants,
// the append-only transcript, the single-turn tool-resolution loop, the
// round-robin multi-participant runner, and the read-only transcript
// analyzer.
//
// Execution is single-threaded and synchronous. Every adapter call and tool
// execution blocks the run; the runner performs no retries of its own and
// exposes no cancellation beyond the context passed into Run. A run ends
// only on turn-cap exhaustion, stop-condition satisfaction, or an error
// escaping an adapter or tool executor — in the error case the transcript
// up to the last completed turn stays valid and can seed a continued run.
package conversation
