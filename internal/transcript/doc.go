// Package transcript maintains the rolling transcript history and merges
// newly recognized segments into it, deduplicating the overlapping partial
// results a streaming recognizer naturally produces.
package transcript
