package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConditionPassesThroughSilence(t *testing.T) {
	samples := make([]float32, 160)
	out := condition(samples, 16000)
	require.Equal(t, samples, out)
}

func TestConditionReturnsSameLengthForVoicedInput(t *testing.T) {
	samples := make([]float32, 320)
	for i := range samples {
		samples[i] = 0.3
	}
	out := condition(samples, 16000)
	require.Len(t, out, len(samples))
}
