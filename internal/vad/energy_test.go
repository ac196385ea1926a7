package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWindow(n int, freq, sampleRate, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestEnergyDetectorSilenceLowProbability(t *testing.T) {
	d := NewEnergyDetector()
	silence := make([]float32, 480)

	for i := 0; i < 5; i++ {
		prob, err := d.Probability(silence)
		require.NoError(t, err)
		require.LessOrEqual(t, prob, float32(0.5))
	}
}

func TestEnergyDetectorLoudToneHighProbability(t *testing.T) {
	d := NewEnergyDetector()
	silence := make([]float32, 480)
	// Prime the noise floor on a few silent windows first.
	for i := 0; i < 5; i++ {
		_, _ = d.Probability(silence)
	}

	tone := sineWindow(480, 440, 16000, 0.8)
	prob, err := d.Probability(tone)
	require.NoError(t, err)
	require.Greaterf(t, prob, float32(0.5), "loud tone over silence floor should score high, got %.4f", prob)
}

func TestEnergyDetectorResetClearsFloor(t *testing.T) {
	d := NewEnergyDetector()
	loud := sineWindow(480, 440, 16000, 0.9)
	_, _ = d.Probability(loud)
	d.Reset()
	require.False(t, d.adapted)
}
