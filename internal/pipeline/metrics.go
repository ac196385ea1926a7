package pipeline

import (
	"sync"
	"time"

	"transcore/internal/transport"
)

// Metrics accumulates the counters get_metrics (spec §6) reports for one
// session. All fields are updated under a single-writer discipline per
// spec §5; Snapshot gives readers a consistent copy.
type Metrics struct {
	mu sync.Mutex

	framesDropped int64
	queueDepth    int

	pass1LatencySum time.Duration
	pass1Count      int64
	pass1SoftMisses int64 // Pass 1 emissions that exceeded the 1.5s soft budget

	pass2LatencySum time.Duration
	pass2Count      int64

	processedSeconds float64
	wallStart        time.Time
}

func newMetrics() *Metrics {
	return &Metrics{wallStart: time.Now()}
}

func (m *Metrics) recordFramesDropped(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesDropped = n
}

func (m *Metrics) recordQueueDepth(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = n
}

// pass1SoftBudget is spec §5's soft latency budget for Pass 1 emission.
const pass1SoftBudget = 1500 * time.Millisecond

func (m *Metrics) recordPass1(latency time.Duration, segmentSeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pass1LatencySum += latency
	m.pass1Count++
	if latency > pass1SoftBudget {
		m.pass1SoftMisses++
	}
	m.processedSeconds += segmentSeconds
}

func (m *Metrics) recordPass2(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pass2LatencySum += latency
	m.pass2Count++
}

// Snapshot renders the current counters as the wire type transport sends
// back on get_metrics.
func (m *Metrics) Snapshot() transport.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pass1Avg, pass2Avg float64
	if m.pass1Count > 0 {
		pass1Avg = float64(m.pass1LatencySum.Milliseconds()) / float64(m.pass1Count)
	}
	if m.pass2Count > 0 {
		pass2Avg = float64(m.pass2LatencySum.Milliseconds()) / float64(m.pass2Count)
	}

	var rtf float64
	if m.processedSeconds > 0 {
		rtf = time.Since(m.wallStart).Seconds() / m.processedSeconds
	}

	return transport.MetricsSnapshot{
		FramesDropped:  m.framesDropped,
		QueueDepth:     m.queueDepth,
		Pass1LatencyMs: pass1Avg,
		Pass2LatencyMs: pass2Avg,
		RTF:            rtf,
	}
}

// Pass1SoftMisses reports how many Pass 1 emissions violated the soft
// latency budget.
func (m *Metrics) Pass1SoftMisses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pass1SoftMisses
}

// ProcessedSeconds reports the cumulative audio duration transcribed so
// far, for ProcessingProgress events.
func (m *Metrics) ProcessedSeconds() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processedSeconds
}
