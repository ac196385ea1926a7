package asr

import (
	"fmt"
	"path/filepath"
	"sync"

	"transcore/internal/modeltier"
)

// Manager owns one Engine per configured tier and builds the Context each
// Transcribe call needs from session-local running state (previous segment
// text, the configured custom vocabulary, and the overlap buffer supplied
// by the caller for chunk-boundary dedup).
type Manager struct {
	registry *modeltier.Registry
	vocab    []string

	mu      sync.Mutex
	engines map[modeltier.Tier]Engine
	history []string // trailing recognized words, capped at PreviousWordsLimit
}

// NewManager builds a Manager over registry. Engines are created lazily on
// first use of a tier, so a session that only ever transcribes with Turbo
// never pays HighAccuracy's load cost.
func NewManager(registry *modeltier.Registry, customVocabulary []string) *Manager {
	return &Manager{
		registry: registry,
		vocab:    customVocabulary,
		engines:  make(map[modeltier.Tier]Engine),
	}
}

// engineFor lazily loads and caches the Engine for tier. The configured
// path is treated as a directory holding encoder.onnx, decoder.onnx, and
// tokens.txt, the three files a sherpa-onnx Whisper-family model needs.
func (m *Manager) engineFor(tier modeltier.Tier) (Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[tier]; ok {
		return e, nil
	}

	dir, err := m.registry.Path(tier)
	if err != nil {
		return nil, err
	}

	engine, err := NewSherpaEngine(SherpaEngineConfig{
		EncoderPath: filepath.Join(dir, "encoder.onnx"),
		DecoderPath: filepath.Join(dir, "decoder.onnx"),
		TokensPath:  filepath.Join(dir, "tokens.txt"),
	})
	if err != nil {
		return nil, err
	}
	m.engines[tier] = engine
	return engine, nil
}

// Transcribe runs samples through tier's engine, injecting the running
// previous-segments context and overlapBuffer (the tail text of whatever
// segment preceded this one within the chunk-boundary window, or "" when
// not applicable). On success it extends the running history with the
// result's words for the next call.
func (m *Manager) Transcribe(tier modeltier.Tier, samples []float32, overlapBuffer string) (Result, error) {
	engine, err := m.engineFor(tier)
	if err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	prevText := truncatePreviousWords(joinHistory(m.history))
	vocab := m.vocab
	m.mu.Unlock()

	result, err := engine.Transcribe(samples, Context{
		PreviousSegmentsText: prevText,
		CustomVocabulary:     vocab,
		OverlapBuffer:        overlapBuffer,
	})
	if err != nil {
		return Result{}, fmt.Errorf("asr transcribe (tier=%s): %w", tier, err)
	}

	m.mu.Lock()
	for _, w := range result.Words {
		m.history = append(m.history, w.Text)
	}
	if len(m.history) > PreviousWordsLimit {
		m.history = m.history[len(m.history)-PreviousWordsLimit:]
	}
	m.mu.Unlock()

	return result, nil
}

func joinHistory(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

// Close releases every engine this Manager has loaded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tier, e := range m.engines {
		e.Close()
		delete(m.engines, tier)
	}
}
