package modeltier

import (
	"fmt"
	"os"
	"sync"
)

// Status reports whether a tier's model file is present on disk and usable.
type Status string

const (
	StatusReady   Status = "ready"
	StatusMissing Status = "missing"
)

// Manager tracks the readiness of each configured tier's model file and the
// tier currently assigned to Pass 1 and Pass 2. Provisioning (downloading or
// converting a model) is out of scope; Manager only ever reads, never writes,
// the registry's paths.
type Manager struct {
	registry *Registry

	mu    sync.RWMutex
	pass1 Tier
	pass2 Tier
}

// NewManager builds a Manager over registry, defaulting Pass 1 to Turbo and
// Pass 2 to HighAccuracy per spec §4.6's two-pass design.
func NewManager(registry *Registry) *Manager {
	return &Manager{
		registry: registry,
		pass1:    Turbo,
		pass2:    HighAccuracy,
	}
}

// Status stats tier's configured path and reports whether it's usable. A
// tier's path may name either a single model file or a directory holding a
// multi-file model (e.g. a Whisper-family encoder/decoder/tokens triple);
// either way it must exist and be non-empty.
func (m *Manager) Status(tier Tier) Status {
	path, err := m.registry.Path(tier)
	if err != nil {
		return StatusMissing
	}
	info, err := os.Stat(path)
	if err != nil {
		return StatusMissing
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil || len(entries) == 0 {
			return StatusMissing
		}
		return StatusReady
	}
	if info.Size() == 0 {
		return StatusMissing
	}
	return StatusReady
}

// Verify checks that every tier in AllTiers is StatusReady (a non-empty file
// or a non-empty directory), returning an error naming the first tier that
// isn't. cmd/transcore calls it once at startup and logs the error as a
// warning without exiting; a session that later uses an unready tier fails
// when its ASR engine is loaded.
func (m *Manager) Verify() error {
	for _, tier := range AllTiers {
		if m.Status(tier) != StatusReady {
			path, _ := m.registry.Path(tier)
			return fmt.Errorf("modeltier: model for tier %q not found at %s", tier, path)
		}
	}
	return nil
}

// SetPassTiers reassigns which tier backs Pass 1 (immediate) and Pass 2
// (refined) transcription, letting a caller trade latency for accuracy
// without restarting the pipeline.
func (m *Manager) SetPassTiers(pass1, pass2 Tier) error {
	if !pass1.valid() || !pass2.valid() {
		return fmt.Errorf("modeltier: invalid pass tier assignment (%q, %q)", pass1, pass2)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pass1, m.pass2 = pass1, pass2
	return nil
}

// PassTiers returns the tiers currently assigned to Pass 1 and Pass 2.
func (m *Manager) PassTiers() (pass1, pass2 Tier) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pass1, m.pass2
}

// Pass1Path and Pass2Path resolve the currently assigned tiers to model
// paths, for handing directly to the ASR engine manager.
func (m *Manager) Pass1Path() (string, error) {
	m.mu.RLock()
	tier := m.pass1
	m.mu.RUnlock()
	return m.registry.Path(tier)
}

func (m *Manager) Pass2Path() (string, error) {
	m.mu.RLock()
	tier := m.pass2
	m.mu.RUnlock()
	return m.registry.Path(tier)
}
