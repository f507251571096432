// Package audio provides format conversion for captured samples: down-mixing
// interleaved float32 PCM to mono, decimating to the recognizer's 16 kHz rate,
// and wrapping the result in a minimal WAV container.
package audio
