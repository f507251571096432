// Package pipeline wires the capture path to the transcript merger: each raw
// chunk passes the voice activity gate and the segment accumulator, completed
// segments flow through a draining dispatch queue, and every dequeued segment
// is recognized in its own goroutine under a per-request deadline. Shutdown
// is two-phase: drain, then hard-cancel after a grace period.
package pipeline
