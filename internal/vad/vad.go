// Package vad turns a stream of 16kHz mono audio frames into speech
// Segments, per spec §4.3: fixed-size probability windows, a hangover
// counter that closes a segment after sustained non-speech, a pre-roll
// buffer that backfills the handful of windows before speech was detected,
// and hard min/max segment duration bounds.
package vad

import (
	"context"
	"time"

	"transcore/internal/audiotype"
	"transcore/internal/corerr"
)

// Detector scores one fixed-size window of samples for speech probability.
// Implementations must be safe for sequential reuse across windows within a
// single VAD instance; Reset clears any internal streaming state (e.g. an
// RNN hidden state) between independent segments or sessions.
type Detector interface {
	Probability(window []float32) (float32, error)
	Reset()
}

// Config parameterizes the windowing and segmentation policy.
type Config struct {
	SampleRate int
	WindowMs   int // window size in milliseconds; 30ms/480 samples at 16kHz

	Threshold       float32 // P(speech) >= Threshold counts the window as speech
	HangoverWindows int     // consecutive non-speech windows required to close a segment
	PreRollMs       int     // audio retained before the first speech window, backfilled into the segment

	MinSegmentDuration time.Duration // segments shorter than this are discarded
	MaxSegmentDuration time.Duration // segments longer than this are force-closed and a new one starts immediately
}

// DefaultConfig matches the values from spec §4.3.
func DefaultConfig() Config {
	return Config{
		SampleRate:         audiotype.TargetSampleRate,
		WindowMs:           30,
		Threshold:          0.5,
		HangoverWindows:    20, // 20 * 30ms = 600ms
		PreRollMs:          200,
		MinSegmentDuration: 500 * time.Millisecond,
		MaxSegmentDuration: 30 * time.Second,
	}
}

func (c Config) windowSamples() int {
	n := c.SampleRate * c.WindowMs / 1000
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) preRollWindows() int {
	if c.WindowMs == 0 {
		return 0
	}
	n := c.PreRollMs / c.WindowMs
	if n < 1 {
		n = 1
	}
	return n
}

// VAD holds the rolling state needed to turn a continuous sample stream into
// discrete Segments. It is not safe for concurrent use from multiple
// goroutines; one VAD is owned by one Pipeline's audio path.
type VAD struct {
	cfg      Config
	detector Detector

	pending []float32 // samples not yet long enough to form a full window

	preRoll    [][]float32 // ring of the last preRollWindows windows, pre-speech
	preRollPos int

	inSpeech   bool
	hangover   int
	segSamples []float32
	segStart   float64 // seconds from stream start

	elapsed    float64 // seconds of audio consumed so far
	nextSegID  int64
}

// New builds a VAD over detector with cfg. detector is typically an
// EnergyDetector (the always-available default) or a NeuralDetector.
func New(detector Detector, cfg Config) *VAD {
	return &VAD{
		cfg:      cfg,
		detector: detector,
		preRoll:  make([][]float32, cfg.preRollWindows()),
	}
}

// Feed appends newly-resampled 16kHz mono samples and returns any segments
// completed as a result. Most calls return zero segments; a call can also
// return a force-closed segment immediately followed by a fresh one under
// MaxSegmentDuration, so callers must not assume at most one result.
func (v *VAD) Feed(samples []float32) ([]audiotype.Segment, error) {
	v.pending = append(v.pending, samples...)
	windowSize := v.cfg.windowSamples()

	var out []audiotype.Segment
	for len(v.pending) >= windowSize {
		window := v.pending[:windowSize]
		v.pending = v.pending[windowSize:]

		prob, err := v.detector.Probability(window)
		if err != nil {
			return out, corerr.New(corerr.KindFatal, "vad", err)
		}

		windowStart := v.elapsed
		v.elapsed += float64(windowSize) / float64(v.cfg.SampleRate)

		if seg, closed := v.processWindow(window, prob, windowStart); closed {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (v *VAD) processWindow(window []float32, prob float32, windowStart float64) (audiotype.Segment, bool) {
	isSpeech := prob >= v.cfg.Threshold

	if !v.inSpeech {
		if !isSpeech {
			v.pushPreRoll(window)
			return audiotype.Segment{}, false
		}
		v.beginSegment(windowStart)
	}

	v.segSamples = append(v.segSamples, window...)

	if isSpeech {
		v.hangover = 0
	} else {
		v.hangover++
	}

	segDuration := time.Duration(float64(len(v.segSamples)) / float64(v.cfg.SampleRate) * float64(time.Second))

	switch {
	case v.hangover >= v.cfg.HangoverWindows:
		return v.endSegment(windowStart + float64(len(window))/float64(v.cfg.SampleRate))
	case segDuration >= v.cfg.MaxSegmentDuration:
		seg, ok := v.endSegment(windowStart + float64(len(window))/float64(v.cfg.SampleRate))
		// Start the continuation segment immediately; the speaker is still
		// talking, only the max-duration bound forced the cut.
		v.beginSegment(windowStart + float64(len(window))/float64(v.cfg.SampleRate))
		return seg, ok
	default:
		return audiotype.Segment{}, false
	}
}

func (v *VAD) pushPreRoll(window []float32) {
	n := len(v.preRoll)
	if n == 0 {
		return
	}
	cp := make([]float32, len(window))
	copy(cp, window)
	v.preRoll[v.preRollPos%n] = cp
	v.preRollPos++
}

func (v *VAD) beginSegment(startTime float64) {
	v.inSpeech = true
	v.hangover = 0
	v.segStart = startTime

	// Backfill the pre-roll windows collected before speech was detected,
	// oldest first.
	n := len(v.preRoll)
	v.segSamples = v.segSamples[:0]
	if n > 0 {
		count := n
		if v.preRollPos < n {
			count = v.preRollPos
		}
		for i := 0; i < count; i++ {
			idx := (v.preRollPos - count + i + n) % n
			if v.preRoll[idx] != nil {
				v.segSamples = append(v.segSamples, v.preRoll[idx]...)
				v.segStart -= float64(len(v.preRoll[idx])) / float64(v.cfg.SampleRate)
			}
		}
	}
	if v.segStart < 0 {
		v.segStart = 0
	}
}

func (v *VAD) endSegment(endTime float64) (audiotype.Segment, bool) {
	v.inSpeech = false
	v.hangover = 0
	samples := v.segSamples
	v.segSamples = nil
	for i := range v.preRoll {
		v.preRoll[i] = nil
	}
	v.preRollPos = 0

	duration := time.Duration(float64(len(samples)) / float64(v.cfg.SampleRate) * float64(time.Second))
	if duration < v.cfg.MinSegmentDuration {
		return audiotype.Segment{}, false
	}

	v.nextSegID++
	return audiotype.Segment{
		SegmentID: v.nextSegID,
		StartTime: v.segStart,
		EndTime:   endTime,
		Samples:   samples,
	}, true
}

// Run drives Feed from a frame channel until it's closed or ctx is
// cancelled, emitting completed Segments on the returned channel. The
// returned channel is closed when Run returns.
func Run(ctx context.Context, v *VAD, frames <-chan audiotype.Frame) (<-chan audiotype.Segment, <-chan error) {
	segments := make(chan audiotype.Segment, 4)
	errc := make(chan error, 1)

	go func() {
		defer close(segments)
		defer close(errc)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				segs, err := v.Feed(f.Samples)
				if err != nil {
					errc <- err
					return
				}
				for _, seg := range segs {
					select {
					case segments <- seg:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return segments, errc
}
