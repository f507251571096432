// Package vad provides a per-chunk voice activity gate based on signal energy
// and peak amplitude of the down-mixed mono signal.
package vad
