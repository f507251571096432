package audio

import (
	"encoding/binary"
	"math"
)

// TargetSampleRate is the fixed sample rate required by the recognizer.
const TargetSampleRate = 16000

// bytesPerSourceSample is the width of one float32 source sample.
const bytesPerSourceSample = 4

// MonoSamples decodes interleaved little-endian float32 frames and down-mixes
// them to mono by averaging all channels of each frame. Truncated trailing
// bytes that do not form a complete frame are discarded. Empty or too-short
// input yields an empty slice.
func MonoSamples(raw []byte, channels int) []float64 {
	if channels < 1 {
		return nil
	}

	frameBytes := channels * bytesPerSourceSample
	frames := len(raw) / frameBytes
	if frames == 0 {
		return nil
	}

	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			bits := binary.LittleEndian.Uint32(raw[base+ch*bytesPerSourceSample:])
			sum += float64(math.Float32frombits(bits))
		}
		mono[i] = sum / float64(channels)
	}

	return mono
}

// ConvertToMono16k converts interleaved float32 frames at sourceRate into
// mono 16-bit PCM at the target rate. Resampling is plain decimation by
// floor(sourceRate/target); a ratio below 1 is treated as 1 (no resampling).
// Each output sample is the channel mean clamped to [-1, 1] before
// quantization. Empty input produces an empty (non-nil) slice.
func ConvertToMono16k(raw []byte, channels, sourceRate int) []int16 {
	mono := MonoSamples(raw, channels)

	ratio := sourceRate / TargetSampleRate
	if ratio < 1 {
		ratio = 1
	}

	out := make([]int16, 0, len(mono)/ratio+1)
	for i := 0; i < len(mono); i += ratio {
		s := mono[i]
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out = append(out, int16(s*math.MaxInt16))
	}

	return out
}

// PCMBytes serializes 16-bit samples as little-endian bytes.
func PCMBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
