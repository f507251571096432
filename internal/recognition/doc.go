// Package recognition implements speech recognition backends. Both backends
// accept a self-contained WAV clip and return plain text: an HTTP multipart
// client with retry and rate limiting, and an OpenAI Whisper client.
package recognition
