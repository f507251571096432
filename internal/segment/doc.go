// Package segment implements utterance segmentation: a stateful accumulator
// that turns a raw chunk stream plus voice-activity signals into bounded audio
// segments, and a draining FIFO queue that decouples ingestion from
// recognition latency.
package segment
