package vad

import (
	"fmt"
	"math"

	"github.com/skypro1111/live-caption-service/internal/audio"
)

// Default gate thresholds. The energy scale keeps thresholds in a
// human-tunable range instead of raw mean-square values.
const (
	DefaultEnergyThreshold = 200.0
	DefaultPeakThreshold   = 0.01
	DefaultEnergyScale     = 10000.0
)

// Gate is a stateless energy/amplitude voice activity test. It is safe for
// concurrent use.
type Gate struct {
	energyThreshold float64
	peakThreshold   float64
	energyScale     float64
}

// NewGate creates a voice activity gate with the given thresholds.
func NewGate(energyThreshold, peakThreshold, energyScale float64) (*Gate, error) {
	if energyThreshold < 0 {
		return nil, fmt.Errorf("energy threshold cannot be negative, got %f", energyThreshold)
	}

	if peakThreshold < 0 || peakThreshold > 1 {
		return nil, fmt.Errorf("peak threshold must be between 0 and 1, got %f", peakThreshold)
	}

	if energyScale <= 0 {
		return nil, fmt.Errorf("energy scale must be positive, got %f", energyScale)
	}

	return &Gate{
		energyThreshold: energyThreshold,
		peakThreshold:   peakThreshold,
		energyScale:     energyScale,
	}, nil
}

// NewDefaultGate creates a gate with the default thresholds.
func NewDefaultGate() *Gate {
	g, _ := NewGate(DefaultEnergyThreshold, DefaultPeakThreshold, DefaultEnergyScale)
	return g
}

// Detect reports whether the chunk contains voice activity and returns the
// scaled mean-square energy of the down-mixed mono signal. Voice is detected
// when the energy exceeds the energy threshold or the peak absolute amplitude
// exceeds the peak threshold. Chunks shorter than one full frame yield
// (false, 0).
func (g *Gate) Detect(raw []byte, channels int) (bool, float64) {
	mono := audio.MonoSamples(raw, channels)
	if len(mono) == 0 {
		return false, 0
	}

	var sumSquares, peak float64
	for _, s := range mono {
		sumSquares += s * s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}

	energy := sumSquares / float64(len(mono)) * g.energyScale
	hasVoice := energy > g.energyThreshold || peak > g.peakThreshold

	return hasVoice, energy
}

// EnergyThreshold returns the configured energy threshold.
func (g *Gate) EnergyThreshold() float64 {
	return g.energyThreshold
}

// PeakThreshold returns the configured peak amplitude threshold.
func (g *Gate) PeakThreshold() float64 {
	return g.peakThreshold
}
