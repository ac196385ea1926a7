package audio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transcore/internal/audiotype"
	"transcore/internal/corerr"
)

// frameDuration is the chunk size Replay slices a decoded file into, matching
// the ~20ms granularity Capture's malgo callback delivers.
const frameDuration = 20 * time.Millisecond

// Replay produces audiotype.Frame values from a decoded audio file instead
// of a live device, for offline validation and the File source in spec §4.1.
// It shares Capture's bounded-queue, drop-oldest-on-overflow contract so the
// Resampler and VAD stages don't need to distinguish live from replayed audio.
type Replay struct {
	queue    chan audiotype.Frame
	queueCap int
	paced    bool
}

// NewReplay builds a Replay. When paced is true, frames are delivered at
// wall-clock rate (for testing realistic backpressure); when false, frames
// are published back to back without pacing (for batch validation runs), and
// the oldest queued frame is dropped whenever the queue is full.
func NewReplay(queueCapacitySeconds int, paced bool) *Replay {
	framesPerSecond := int(time.Second / frameDuration)
	return &Replay{
		queue:    make(chan audiotype.Frame, queueCapacitySeconds*framesPerSecond),
		queueCap: queueCapacitySeconds * framesPerSecond,
		paced:    paced,
	}
}

// Start decodes path (.wav or .mp3, by extension) and streams it onto
// Frames() as SourceFile frames. It blocks until the file is fully queued or
// ctx is cancelled, so callers typically run it in its own goroutine.
func (r *Replay) Start(ctx context.Context, path string) error {
	samples, sampleRate, err := decodeReplayFile(path)
	if err != nil {
		return corerr.New(corerr.KindUnsupportedFormat, "replay", err)
	}

	chunkSize := int(float64(sampleRate) * frameDuration.Seconds())
	if chunkSize < 1 {
		chunkSize = 1
	}

	ticker := newReplayPacer(r.paced, frameDuration)
	defer ticker.Stop()

	for i := 0; i < len(samples); i += chunkSize {
		end := i + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		frame := audiotype.Frame{
			Samples:    append([]float32(nil), samples[i:end]...),
			SampleRate: sampleRate,
			Channels:   1,
			WallTime:   time.Now(),
			Source:     audiotype.SourceFile,
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}

		r.publish(frame)
	}
	close(r.queue)
	return nil
}

func (r *Replay) publish(f audiotype.Frame) {
	select {
	case r.queue <- f:
		return
	default:
	}
	select {
	case <-r.queue:
	default:
	}
	select {
	case r.queue <- f:
	default:
	}
}

// Frames returns the channel frames are delivered on. It closes once the
// file has been fully replayed.
func (r *Replay) Frames() <-chan audiotype.Frame { return r.queue }

// QueueCapacity reports the configured queue capacity.
func (r *Replay) QueueCapacity() int { return r.queueCap }

func decodeReplayFile(path string) ([]float32, int, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mp3"):
		reader, err := newMP3Reader(path)
		if err != nil {
			return nil, 0, err
		}
		defer reader.Close()
		return reader.readAllMono()
	case strings.HasSuffix(lower, ".wav"):
		reader, err := newWAVReader(path)
		if err != nil {
			return nil, 0, err
		}
		return reader.samples, reader.sampleRate, nil
	default:
		return nil, 0, fmt.Errorf("unsupported replay file extension: %s", path)
	}
}

// replayPacer abstracts away the paced/unpaced distinction behind a single
// channel-returning interface.
type replayPacer interface {
	C() <-chan time.Time
	Stop()
}

func newReplayPacer(paced bool, interval time.Duration) replayPacer {
	if paced {
		return &tickerPacer{t: time.NewTicker(interval)}
	}
	return &immediatePacer{}
}

type tickerPacer struct{ t *time.Ticker }

func (p *tickerPacer) C() <-chan time.Time { return p.t.C }
func (p *tickerPacer) Stop()               { p.t.Stop() }

// immediatePacer fires instantly, for unpaced batch replay.
type immediatePacer struct{}

func (p *immediatePacer) C() <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}
func (p *immediatePacer) Stop() {}
