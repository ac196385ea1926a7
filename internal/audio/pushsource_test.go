package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushSourceDeliversFrames(t *testing.T) {
	p := NewPushSource(1)
	p.Push([]float32{0.1, 0.2}, 16000)

	f := <-p.Frames()
	require.Equal(t, []float32{0.1, 0.2}, f.Samples)
	require.Equal(t, 16000, f.SampleRate)
	require.Equal(t, 1, f.Channels)
}

func TestPushSourceDropsOldestOnOverflow(t *testing.T) {
	p := NewPushSource(1) // queueCap = 50
	for i := 0; i < 60; i++ {
		p.Push([]float32{float32(i)}, 16000)
	}
	require.Len(t, p.queue, p.queueCap)

	first := <-p.Frames()
	require.NotEqual(t, float32(0), first.Samples[0], "the oldest frames should have been dropped, not the newest")
}

func TestPushSourceIgnoresPushAfterClose(t *testing.T) {
	p := NewPushSource(1)
	p.Close()
	require.NotPanics(t, func() {
		p.Push([]float32{0.1}, 16000)
	})
}
