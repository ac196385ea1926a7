package audio

import (
	"log"
	"sync"
	"time"

	"transcore/internal/audiotype"
)

// PushSource is a Source fed by explicit Push calls instead of a device
// callback or a decoded file, for sessions started with external_capture
// (the client owns the microphone and forwards frames over push_audio).
// It shares Capture's bounded-queue, drop-oldest-on-overflow contract so the
// Resampler and VAD stages don't need to distinguish how a frame arrived.
type PushSource struct {
	queue    chan audiotype.Frame
	queueCap int

	mu            sync.Mutex
	framesDropped int64
	lastDropLog   time.Time
	closed        bool
}

// NewPushSource builds a PushSource sized like Capture's queue, assuming the
// same ~20ms/50fps callback granularity as a live device.
func NewPushSource(queueCapacitySeconds int) *PushSource {
	framesPerSecond := 50
	return &PushSource{
		queue:    make(chan audiotype.Frame, queueCapacitySeconds*framesPerSecond),
		queueCap: queueCapacitySeconds * framesPerSecond,
	}
}

// Push enqueues one client-supplied frame, stamping SourceMicrophone and the
// current wall time since an external capture client doesn't provide one.
func (p *PushSource) Push(samples []float32, sampleRate int) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.publish(audiotype.Frame{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   1,
		WallTime:   time.Now(),
		Source:     audiotype.SourceMicrophone,
	})
}

func (p *PushSource) publish(f audiotype.Frame) {
	select {
	case p.queue <- f:
		return
	default:
	}
	select {
	case <-p.queue:
	default:
	}
	select {
	case p.queue <- f:
	default:
	}
	p.mu.Lock()
	p.framesDropped++
	shouldLog := time.Since(p.lastDropLog) >= time.Second
	if shouldLog {
		p.lastDropLog = time.Now()
	}
	dropped := p.framesDropped
	p.mu.Unlock()
	if shouldLog {
		log.Printf("pushsource: dropped oldest frame, total dropped=%d", dropped)
	}
}

// Frames returns the channel pushed frames are delivered on.
func (p *PushSource) Frames() <-chan audiotype.Frame { return p.queue }

// Close stops accepting further pushes and closes the frame channel. Safe to
// call once the owning session has cancelled its context.
func (p *PushSource) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.queue)
}
