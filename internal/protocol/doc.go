// Package protocol defines the UDP capture datagram format: a 4-byte
// little-endian sample-rate header followed by raw interleaved little-endian
// float32 audio samples.
package protocol
