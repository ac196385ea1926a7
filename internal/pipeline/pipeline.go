// Package pipeline wires capture/replay -> resampler -> VAD -> two-pass
// ASR+speaker attribution into a session-scoped DAG, and owns the session
// lifecycle state machine, per spec §4.6.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcore/internal/asr"
	"transcore/internal/audio"
	"transcore/internal/audiotype"
	"transcore/internal/corerr"
	"transcore/internal/modeltier"
	"transcore/internal/profilestore"
	"transcore/internal/speaker"
	"transcore/internal/transport"
	"transcore/internal/vad"
)

// ProgressHeartbeat is how often a running session reports
// ProcessingProgress, independent of VAD's own partial-segment heartbeat.
const ProgressHeartbeat = 2 * time.Second

// captureQueueSeconds sizes Capture's bounded frame queue, per spec §4.2's
// "10x capacity-seconds" recommendation.
const captureQueueSeconds = 10

// Deps are the shared, session-independent collaborators a Manager wires
// every session's runtime from.
type Deps struct {
	ModelRegistry  *modeltier.Registry
	ModelManager   *modeltier.Manager
	ProfileStore   *profilestore.Store
	SpeakerEncoder *speaker.Encoder // nil disables speaker attribution entirely
	ClusterConfig  speaker.ClusterConfig
	VADConfig      vad.Config
	NewDetector    func() vad.Detector // builds a fresh Detector per session
}

// Manager implements transport.Controller, running one pipeline DAG per
// active session. hub is wired in after construction via SetHub, since
// transport.NewHub needs a Controller and Manager needs the Hub it's
// registered with to emit events — the two are built back to back in main.
type Manager struct {
	deps Deps
	hub  *transport.Hub

	mu       sync.Mutex
	sessions map[string]*sessionRuntime
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*sessionRuntime),
	}
}

// SetHub wires the transport.Hub a Manager emits session events to. Must be
// called once before StartSession; main builds the Hub around this same
// Manager (as its Controller) immediately after NewManager.
func (m *Manager) SetHub(hub *transport.Hub) {
	m.hub = hub
}

// sessionRuntime is everything one StartSession call allocates.
type sessionRuntime struct {
	id  string
	fsm *fsm
	mu  sync.Mutex

	cancel context.CancelFunc

	capture *audio.Capture
	replay  *audio.Replay
	pushSrc *audio.PushSource

	cluster      *speaker.Cluster
	orchestrator *orchestrator
	metrics      *Metrics

	paused bool
}

// StartSession implements transport.Controller. It allocates a fresh
// session runtime, seeds the speaker cluster from the profile store, and
// starts the capture/replay -> resampler -> VAD -> two-pass ASR chain in
// background goroutines.
func (m *Manager) StartSession(cfg transport.SessionConfig) (string, error) {
	sessionID := uuid.New().String()
	cluster := speaker.NewCluster(m.deps.ClusterConfig)
	if m.deps.ProfileStore != nil {
		for _, p := range m.deps.ProfileStore.Profiles() {
			cluster.Seed(p)
		}
	}

	metrics := newMetrics()
	asrMgr := asr.NewManager(m.deps.ModelRegistry, cfg.CustomVocabulary)
	orch := newOrchestrator(sessionID, asrMgr, m.deps.ModelManager, cluster, m.deps.SpeakerEncoder, metrics, m.hub)

	rt := &sessionRuntime{
		id:           sessionID,
		fsm:          newFSM(),
		cluster:      cluster,
		orchestrator: orch,
		metrics:      metrics,
	}
	if err := rt.fsm.transition(StateRunning); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel

	if err := m.startSource(ctx, rt, cfg); err != nil {
		cancel()
		return "", err
	}

	m.mu.Lock()
	m.sessions[sessionID] = rt
	m.mu.Unlock()

	return sessionID, nil
}

func (m *Manager) startSource(ctx context.Context, rt *sessionRuntime, cfg transport.SessionConfig) error {
	resampler := audio.NewResampler()
	detector := m.newDetector()
	v := vad.New(detector, m.deps.VADConfig)

	var frames <-chan audiotype.Frame

	switch {
	case cfg.ReplayFilePath != "":
		replay := audio.NewReplay(captureQueueSeconds, false)
		rt.replay = replay
		go func() {
			if err := replay.Start(ctx, cfg.ReplayFilePath); err != nil && ctx.Err() == nil {
				m.fail(rt, err)
			}
		}()
		frames = replay.Frames()

	case cfg.ExternalCapture:
		push := audio.NewPushSource(captureQueueSeconds)
		rt.pushSrc = push
		go func() {
			<-ctx.Done()
			push.Close()
		}()
		frames = push.Frames()

	default:
		capture, err := audio.NewCapture(captureQueueSeconds)
		if err != nil {
			return err
		}
		if err := capture.Start(ctx, cfg.DeviceID, audiotype.SourceMicrophone); err != nil {
			return err
		}
		rt.capture = capture
		frames = capture.Frames()
	}

	segments, errc := vad.Run(ctx, v, resampledFrames(ctx, resampler, frames))

	go m.drain(ctx, rt, segments, errc)
	go m.reportProgress(ctx, rt)

	return nil
}

func (m *Manager) newDetector() vad.Detector {
	if m.deps.NewDetector != nil {
		return m.deps.NewDetector()
	}
	return vad.NewEnergyDetector()
}

// resampledFrames adapts a raw Frame channel into one carrying only 16kHz
// mono output conditioned for VAD (high-pass, de-click, noise gate,
// normalize, per spec §4.2's capture-to-VAD path). Every frame the
// Resampler rejects (an unsupported rate/channel combination) is logged and
// dropped, including the first one; the session keeps running, no Warning
// event is emitted, and the session is never failed for it.
func resampledFrames(ctx context.Context, r *audio.Resampler, in <-chan audiotype.Frame) <-chan audiotype.Frame {
	out := make(chan audiotype.Frame, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
				resampled, err := r.Resample(f)
				if err != nil {
					log.Printf("pipeline: resample: %v", err)
					continue
				}
				resampled.Samples = condition(resampled.Samples, resampled.SampleRate)
				select {
				case out <- resampled:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// condition runs the adaptive filter chain (noise gate, normalization,
// high-pass, de-click) over one resampled frame before it reaches the VAD,
// deriving the filter configuration from the frame's own measured quality
// rather than a single fixed setting for every channel.
func condition(samples []float32, sampleRate int) []float32 {
	quality := audio.Analyze(samples, sampleRate)
	if quality.IsSilent {
		return samples
	}
	cfg := audio.AdaptiveConfig(quality)
	return audio.Apply(samples, sampleRate, cfg)
}

func (m *Manager) drain(ctx context.Context, rt *sessionRuntime, segments <-chan audiotype.Segment, errc <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errc:
			if ok && err != nil {
				m.fail(rt, err)
			}
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			rt.mu.Lock()
			paused := rt.paused
			rt.mu.Unlock()
			if paused {
				continue // Paused: incoming frames/segments are dropped, per spec §4.6.
			}
			if err := rt.orchestrator.Process(seg); err != nil {
				if ce, ok := corerr.As(err); ok && ce.Kind.Fatal() {
					m.fail(rt, err)
					return
				}
				log.Printf("pipeline: session %s: %v", rt.id, err)
			}
		}
	}
}

func (m *Manager) reportProgress(ctx context.Context, rt *sessionRuntime) {
	ticker := time.NewTicker(ProgressHeartbeat)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.hub.EmitProgress(rt.id, transport.ProgressEvent{
				ProcessedSeconds: rt.metrics.ProcessedSeconds(),
				WallSeconds:      time.Since(start).Seconds(),
			})
		}
	}
}

func (m *Manager) fail(rt *sessionRuntime, err error) {
	rt.mu.Lock()
	_ = rt.fsm.transition(StateFailed)
	rt.mu.Unlock()
	m.hub.EmitFatal(rt.id, transport.FatalEvent{Code: "session_failed", Detail: err.Error()})
}

// Pause implements transport.Controller.
func (m *Manager) Pause(sessionID string) error {
	rt, err := m.get(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.fsm.transition(StatePaused); err != nil {
		return err
	}
	rt.paused = true
	return nil
}

// Resume implements transport.Controller.
func (m *Manager) Resume(sessionID string) error {
	rt, err := m.get(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.fsm.transition(StateRunning); err != nil {
		return err
	}
	rt.paused = false
	return nil
}

// Stop implements transport.Controller: transitions to Finalizing, drains
// in-flight Pass 2 work, then Closed, syncing speaker profiles back to the
// store on the way out.
func (m *Manager) Stop(sessionID string) error {
	rt, err := m.get(sessionID)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	if ferr := rt.fsm.transition(StateFinalizing); ferr != nil {
		rt.mu.Unlock()
		return ferr
	}
	rt.mu.Unlock()

	if rt.capture != nil {
		rt.capture.Stop()
	}
	rt.cancel()
	rt.orchestrator.Wait()

	if m.deps.ProfileStore != nil {
		if err := m.deps.ProfileStore.Sync(rt.cluster.Profiles()); err != nil {
			log.Printf("pipeline: session %s: profile store sync: %v", sessionID, err)
		}
	}

	rt.mu.Lock()
	_ = rt.fsm.transition(StateClosed)
	rt.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	return nil
}

// PushAudio implements transport.Controller for sessions started with
// external_capture: the client owns audio capture and forwards frames over
// push_audio instead of this process opening a device itself.
func (m *Manager) PushAudio(sessionID string, frame transport.AudioFrame) error {
	rt, err := m.get(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	push := rt.pushSrc
	rt.mu.Unlock()
	if push == nil {
		return fmt.Errorf("pipeline: session %s was not started with external_capture, push_audio is not accepted", sessionID)
	}
	push.Push(frame.Samples, frame.SampleRate)
	return nil
}

// Metrics implements transport.Controller.
func (m *Manager) Metrics(sessionID string) (transport.MetricsSnapshot, error) {
	rt, err := m.get(sessionID)
	if err != nil {
		return transport.MetricsSnapshot{}, err
	}
	return rt.metrics.Snapshot(), nil
}

func (m *Manager) get(sessionID string) (*sessionRuntime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown session %s", sessionID)
	}
	return rt, nil
}
