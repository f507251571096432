package vad

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

func TestNewGateValidation(t *testing.T) {
	if _, err := NewGate(-1, 0.01, 10000); err == nil {
		t.Error("Expected error for negative energy threshold")
	}

	if _, err := NewGate(200, 1.5, 10000); err == nil {
		t.Error("Expected error for peak threshold above 1")
	}

	if _, err := NewGate(200, 0.01, 0); err == nil {
		t.Error("Expected error for zero energy scale")
	}

	gate, err := NewGate(200, 0.01, 10000)
	if err != nil {
		t.Fatalf("NewGate failed with valid thresholds: %v", err)
	}
	if gate == nil {
		t.Fatal("NewGate returned nil")
	}
}

func TestDetectSilence(t *testing.T) {
	gate := NewDefaultGate()

	raw := floatBytes(0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0)

	hasVoice, energy := gate.Detect(raw, 2)
	if hasVoice {
		t.Error("Silence should not be detected as voice")
	}
	if energy != 0 {
		t.Errorf("Expected zero energy for silence, got %f", energy)
	}
}

func TestDetectShortInput(t *testing.T) {
	gate := NewDefaultGate()

	// Less than one full stereo frame
	hasVoice, energy := gate.Detect(floatBytes(0.9), 2)
	if hasVoice {
		t.Error("Partial frame should not be detected as voice")
	}
	if energy != 0 {
		t.Errorf("Expected zero energy for partial frame, got %f", energy)
	}
}

func TestDetectEnergyTrigger(t *testing.T) {
	gate := NewDefaultGate()

	// Mono amplitude 0.2: energy = 0.04 * 10000 = 400 > 200
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.2
	}

	hasVoice, energy := gate.Detect(floatBytes(samples...), 1)
	if !hasVoice {
		t.Errorf("Expected voice detection at energy %f", energy)
	}
	if math.Abs(energy-400) > 1 {
		t.Errorf("Expected energy near 400, got %f", energy)
	}
}

func TestDetectPeakTrigger(t *testing.T) {
	// Raise the energy threshold so only the peak test can fire
	gate, err := NewGate(1e9, 0.01, 10000)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	// Mostly silence with one sample above the peak threshold
	samples := make([]float32, 1000)
	samples[500] = 0.02

	hasVoice, _ := gate.Detect(floatBytes(samples...), 1)
	if !hasVoice {
		t.Error("Expected voice detection from peak amplitude")
	}
}

func TestDetectBelowBothThresholds(t *testing.T) {
	gate := NewDefaultGate()

	// Amplitude 0.004: energy = 0.000016 * 10000 = 0.16, peak 0.004
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.004
	}

	hasVoice, _ := gate.Detect(floatBytes(samples...), 1)
	if hasVoice {
		t.Error("Low-level noise should not be detected as voice")
	}
}
