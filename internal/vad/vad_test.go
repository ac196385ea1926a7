package vad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcore/internal/audiotype"
)

// constantDetector always reports the configured probability, independent
// of window content, to drive the segmentation state machine deterministically.
type constantDetector struct{ prob float32 }

func (c *constantDetector) Probability(window []float32) (float32, error) { return c.prob, nil }
func (c *constantDetector) Reset()                                        {}

// switchingDetector returns speechProb for the first speechWindows calls,
// then silenceProb forever after.
type switchingDetector struct {
	speechWindows int
	speechProb    float32
	silenceProb   float32
	calls         int
}

func (s *switchingDetector) Probability(window []float32) (float32, error) {
	s.calls++
	if s.calls <= s.speechWindows {
		return s.speechProb, nil
	}
	return s.silenceProb, nil
}
func (s *switchingDetector) Reset() {}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	cfg.WindowMs = 30 // 480 samples/window
	cfg.HangoverWindows = 3
	cfg.PreRollMs = 60 // 2 windows
	cfg.MinSegmentDuration = 100 * time.Millisecond
	cfg.MaxSegmentDuration = 2 * time.Second
	return cfg
}

func TestVADNoSpeechEmitsNoSegments(t *testing.T) {
	v := New(&constantDetector{prob: 0.1}, testConfig())
	samples := make([]float32, 480*20)
	segs, err := v.Feed(samples)
	require.NoError(t, err)
	require.Empty(t, segs)
}

func TestVADSpeechFollowedByHangoverClosesSegment(t *testing.T) {
	cfg := testConfig()
	// 10 windows of speech, then enough silence to trip the hangover.
	det := &switchingDetector{speechWindows: 10, speechProb: 0.9, silenceProb: 0.0}
	v := New(det, cfg)

	windowSize := cfg.windowSamples()
	total := (10 + cfg.HangoverWindows + 5) * windowSize
	segs, err := v.Feed(make([]float32, total))
	require.NoError(t, err)
	require.Len(t, segs, 1)

	seg := segs[0]
	require.Greater(t, len(seg.Samples), 0)
	require.Equal(t, int64(1), seg.SegmentID)
	require.GreaterOrEqual(t, seg.EndTime, seg.StartTime)
}

func TestVADShortSegmentBelowMinDurationIsDiscarded(t *testing.T) {
	cfg := testConfig()
	cfg.MinSegmentDuration = 10 * time.Second // unreachable in this test
	det := &switchingDetector{speechWindows: 2, speechProb: 0.9, silenceProb: 0.0}
	v := New(det, cfg)

	windowSize := cfg.windowSamples()
	total := (2 + cfg.HangoverWindows + 2) * windowSize
	segs, err := v.Feed(make([]float32, total))
	require.NoError(t, err)
	require.Empty(t, segs, "segment shorter than MinSegmentDuration must be dropped")
}

func TestVADMaxDurationForceSplits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentDuration = 300 * time.Millisecond // 10 windows at 30ms
	det := &constantDetector{prob: 0.9}              // continuous speech, never stops
	v := New(det, cfg)

	windowSize := cfg.windowSamples()
	// Feed well past two max-duration cycles.
	segs, err := v.Feed(make([]float32, windowSize*25))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 2, "continuous speech longer than MaxSegmentDuration must force-split")
}

func TestVADPreRollBackfillsBeforeSpeechOnset(t *testing.T) {
	cfg := testConfig()
	det := &switchingDetector{speechWindows: 0, speechProb: 0.9, silenceProb: 0.0}
	v := New(det, cfg)
	windowSize := cfg.windowSamples()

	// Feed a few silent windows (building pre-roll), then flip the detector to speech.
	_, err := v.Feed(make([]float32, windowSize*2))
	require.NoError(t, err)

	det.speechWindows = 8
	det.calls = 0
	total := windowSize * (8 + cfg.HangoverWindows)
	segs, err := v.Feed(make([]float32, total))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Greater(t, len(segs[0].Samples), windowSize*8, "segment should include backfilled pre-roll windows")
}

func TestRunForwardsSegmentsUntilChannelClosed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	det := &switchingDetector{speechWindows: 10, speechProb: 0.9, silenceProb: 0.0}
	v := New(det, cfg)

	frames := make(chan audiotype.Frame, 1)
	segments, errc := Run(ctx, v, frames)

	windowSize := cfg.windowSamples()
	frames <- audiotype.Frame{Samples: make([]float32, windowSize*(10+cfg.HangoverWindows+3))}
	close(frames)

	seg, ok := <-segments
	require.True(t, ok)
	require.Equal(t, int64(1), seg.SegmentID)

	_, stillOpen := <-segments
	require.False(t, stillOpen)
	require.NoError(t, <-errc)
}
