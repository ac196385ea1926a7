package asr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessAppliesPreEmphasis(t *testing.T) {
	in := []float32{1.0, 1.0, 1.0}
	out := preprocess(in)
	require.Equal(t, float32(1.0), out[0])
	require.InDelta(t, 1.0-PreEmphasisCoefficient, out[1], 1e-6)
}

func TestPreprocessPeakNormalizes(t *testing.T) {
	in := []float32{2.0, -1.0, 0.5}
	out := preprocess(in)
	var peak float32
	for _, s := range out {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	require.LessOrEqual(t, peak, float32(1.0+1e-6))
}

func TestValidateSamplesRejectsTooShort(t *testing.T) {
	samples := make([]float32, 1000) // well under MinSegmentSeconds at 16kHz
	err := validateSamples(samples)
	require.Error(t, err)
	var fmtErr *InvalidAudioFormatError
	require.ErrorAs(t, err, &fmtErr)
}

func TestValidateSamplesRejectsTooLong(t *testing.T) {
	samples := make([]float32, 16000*31)
	require.Error(t, validateSamples(samples))
}

func TestValidateSamplesAcceptsInRangeDuration(t *testing.T) {
	samples := make([]float32, 16000*2)
	require.NoError(t, validateSamples(samples))
}
