package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// floatBytes encodes float32 samples as interleaved little-endian bytes.
func floatBytes(samples ...float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestMonoSamplesStereoDownmix(t *testing.T) {
	// Two stereo frames: (0.5, -0.5) and (1.0, 0.0)
	raw := floatBytes(0.5, -0.5, 1.0, 0.0)

	mono := MonoSamples(raw, 2)
	if len(mono) != 2 {
		t.Fatalf("Expected 2 mono samples, got %d", len(mono))
	}

	if math.Abs(mono[0]) > 1e-9 {
		t.Errorf("Expected first sample 0, got %f", mono[0])
	}

	if math.Abs(mono[1]-0.5) > 1e-9 {
		t.Errorf("Expected second sample 0.5, got %f", mono[1])
	}
}

func TestMonoSamplesTruncatedFrame(t *testing.T) {
	// Three floats with 2 channels: only one complete frame
	raw := floatBytes(0.25, 0.75, 0.5)

	mono := MonoSamples(raw, 2)
	if len(mono) != 1 {
		t.Fatalf("Expected 1 mono sample, got %d", len(mono))
	}

	if math.Abs(mono[0]-0.5) > 1e-6 {
		t.Errorf("Expected sample 0.5, got %f", mono[0])
	}
}

func TestMonoSamplesEmptyInput(t *testing.T) {
	if mono := MonoSamples(nil, 2); len(mono) != 0 {
		t.Errorf("Expected empty result for nil input, got %d samples", len(mono))
	}

	// Less than one frame
	if mono := MonoSamples(floatBytes(0.5), 2); len(mono) != 0 {
		t.Errorf("Expected empty result for partial frame, got %d samples", len(mono))
	}
}

func TestConvertToMono16kDecimation(t *testing.T) {
	// 48kHz source: ratio 3, 6 mono samples should produce 2 output samples
	raw := floatBytes(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	out := ConvertToMono16k(raw, 1, 48000)
	if len(out) != 2 {
		t.Fatalf("Expected 2 output samples, got %d", len(out))
	}

	scale := float64(math.MaxInt16)
	expected0 := int16(0.1 * scale)
	expected1 := int16(0.4 * scale)

	if out[0] != expected0 {
		t.Errorf("Expected first sample %d, got %d", expected0, out[0])
	}

	if out[1] != expected1 {
		t.Errorf("Expected second sample %d, got %d", expected1, out[1])
	}
}

func TestConvertToMono16kLowSourceRate(t *testing.T) {
	// Source below the target rate: no decimation
	raw := floatBytes(0.1, 0.2, 0.3)

	out := ConvertToMono16k(raw, 1, 8000)
	if len(out) != 3 {
		t.Errorf("Expected 3 output samples without decimation, got %d", len(out))
	}
}

func TestConvertToMono16kClamping(t *testing.T) {
	raw := floatBytes(2.0, -3.0)

	out := ConvertToMono16k(raw, 1, 16000)
	if len(out) != 2 {
		t.Fatalf("Expected 2 output samples, got %d", len(out))
	}

	if out[0] != math.MaxInt16 {
		t.Errorf("Expected positive clamp to %d, got %d", math.MaxInt16, out[0])
	}

	if out[1] != -math.MaxInt16 {
		t.Errorf("Expected negative clamp to %d, got %d", -math.MaxInt16, out[1])
	}
}

func TestConvertToMono16kEmptyInput(t *testing.T) {
	out := ConvertToMono16k(nil, 2, 16000)
	if out == nil {
		t.Fatal("Expected non-nil slice for empty input")
	}
	if len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
}

func TestPCMBytes(t *testing.T) {
	data := PCMBytes([]int16{0x0102, -1})

	if len(data) != 4 {
		t.Fatalf("Expected 4 bytes, got %d", len(data))
	}

	if data[0] != 0x02 || data[1] != 0x01 {
		t.Errorf("Expected little-endian encoding, got % x", data[:2])
	}

	if data[2] != 0xff || data[3] != 0xff {
		t.Errorf("Expected -1 encoded as ff ff, got % x", data[2:])
	}
}
