package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate, n int, amplitude float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	samples := sineWave(440, 16000, 100, 0.5)
	original := append([]float32(nil), samples...)

	_ = Apply(samples, 16000, DefaultFilterConfig())
	require.Equal(t, original, samples)
}

func TestNormalizeScalesToTargetPeak(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.05}
	out := normalize(samples, 0.8)
	var peak float32
	for _, s := range out {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	require.InDelta(t, 0.8, peak, 1e-3)
}

func TestNoiseGateAttenuatesBelowThreshold(t *testing.T) {
	quiet := sineWave(440, 16000, 320, 0.001)
	out := noiseGate(quiet, 16000, 0.01)
	require.Less(t, RMS(out), RMS(quiet))
}

func TestDeClickSmoothsIsolatedSpike(t *testing.T) {
	samples := []float32{0.0, 0.0, 0.9, 0.0, 0.0}
	out := deClick(samples, 0.4)
	require.InDelta(t, 0.0, out[2], 1e-6)
}

func TestAnalyzeFlagsSilence(t *testing.T) {
	m := Analyze(make([]float32, 160), 16000)
	require.True(t, m.IsSilent)
}

func TestAnalyzeDetectsClicks(t *testing.T) {
	samples := make([]float32, 0, 320)
	for i := 0; i < 40; i++ {
		samples = append(samples, 0.0, 0.9, 0.0)
	}
	m := Analyze(samples, 16000)
	require.Greater(t, m.ClickCount, 0)
}

func TestAdaptiveConfigWidensNoiseGateOnLowSNR(t *testing.T) {
	cfg := AdaptiveConfig(QualityMetrics{SNR: 5})
	require.Equal(t, float32(0.015), cfg.NoiseGateThreshold)
}
