package vad

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testModelPath(t *testing.T) string {
	t.Helper()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	return filepath.Join(home, ".local/share/transcore/models/silero_vad.onnx")
}

func TestNeuralDetectorBasic(t *testing.T) {
	modelPath := testModelPath(t)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Skip("silero vad model not found, skipping")
	}

	d, err := NewNeuralDetector(modelPath, 16000)
	require.NoError(t, err)
	defer d.Close()

	silence := make([]float32, 512)
	prob, err := d.Probability(silence)
	require.NoError(t, err)
	require.Lessf(t, prob, float32(0.3), "silence should score low, got %.4f", prob)
}

func TestNeuralDetectorStreamingState(t *testing.T) {
	modelPath := testModelPath(t)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Skip("silero vad model not found, skipping")
	}

	d, err := NewNeuralDetector(modelPath, 16000)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 10; i++ {
		chunk := make([]float32, 512)
		for j := range chunk {
			chunk[j] = float32(i%3-1) * 0.01
		}
		_, err := d.Probability(chunk)
		require.NoError(t, err)
	}
	d.Reset()
}
