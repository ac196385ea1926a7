package profilestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcore/internal/corerr"
	"transcore/internal/speaker"
)

// Store is the schema-versioned JSON-backed persistence layer for speaker
// profiles. It is safe for concurrent use.
type Store struct {
	path string

	mu   sync.RWMutex
	data file
}

// Open loads (or initializes) the profile store at dataDir/speakers.json.
// A missing file is not an error; a file whose Version exceeds CurrentVersion
// is a *corerr.Error of KindProfileStoreVersionMismatch, per the §9 REDESIGN
// decision to hard-fail rather than silently adopt an unknown future schema.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "speakers.json")
	s := &Store{
		path: path,
		data: file{Version: CurrentVersion},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.KindProfileStoreUnavailable, "profilestore", err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, corerr.New(corerr.KindProfileStoreUnavailable, "profilestore",
			fmt.Errorf("parse %s: %w", path, err))
	}
	if f.Version > CurrentVersion {
		return nil, corerr.New(corerr.KindProfileStoreVersionMismatch, "profilestore",
			fmt.Errorf("speakers.json schema version %d is newer than supported version %d", f.Version, CurrentVersion))
	}

	s.data = f
	return s, nil
}

// Profiles returns every persisted profile as a speaker.Profile, ready to be
// handed to speaker.Cluster.Seed for cross-session recovery.
func (s *Store) Profiles() []*speaker.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*speaker.Profile, 0, len(s.data.Profiles))
	for _, r := range s.data.Profiles {
		out = append(out, recordToProfile(r))
	}
	return out
}

// Sync replaces the store's contents with profiles and writes it to disk
// atomically (write to a temp file, then rename). Callers typically call
// this at session end with speaker.Cluster.Profiles().
func (s *Store) Sync(profiles []*speaker.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing := make(map[string]ProfileRecord, len(s.data.Profiles))
	for _, r := range s.data.Profiles {
		existing[r.ID] = r
	}

	records := make([]ProfileRecord, 0, len(profiles))
	for _, p := range profiles {
		prev, known := existing[p.ID]
		r := profileToRecord(p)
		if known {
			r.Name = prev.Name
			r.CreatedAt = prev.CreatedAt
			r.SamplePath = prev.SamplePath
		} else {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		r.LastSeenAt = now
		records = append(records, r)
	}

	s.data = file{Version: CurrentVersion, Profiles: records}
	return s.saveLocked()
}

// Rename assigns a display name to a persisted profile, independent of the
// next Sync (so a user-entered name survives even if that speaker doesn't
// reappear in the current session's Cluster).
func (s *Store) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Profiles {
		if s.data.Profiles[i].ID == id {
			s.data.Profiles[i].Name = name
			s.data.Profiles[i].UpdatedAt = time.Now()
			return s.saveLocked()
		}
	}
	return fmt.Errorf("profile not found: %s", id)
}

// Delete removes a persisted profile permanently.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Profiles {
		if s.data.Profiles[i].ID == id {
			s.data.Profiles = append(s.data.Profiles[:i], s.data.Profiles[i+1:]...)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("profile not found: %s", id)
}

// Count returns the number of persisted profiles.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Profiles)
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return corerr.New(corerr.KindProfileStoreUnavailable, "profilestore", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return corerr.New(corerr.KindProfileStoreUnavailable, "profilestore", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return corerr.New(corerr.KindProfileStoreUnavailable, "profilestore", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return corerr.New(corerr.KindProfileStoreUnavailable, "profilestore", err)
	}
	return nil
}

func recordToProfile(r ProfileRecord) *speaker.Profile {
	p := &speaker.Profile{
		ID:        r.ID,
		SeenCount: r.SeenCount,
	}
	p.Embeddings = make([]speaker.Embedding, len(r.Embeddings))
	for i, e := range r.Embeddings {
		emb := make(speaker.Embedding, len(e))
		copy(emb, e)
		p.Embeddings[i] = emb
	}
	p.Qualities = make([]float32, len(r.Qualities))
	copy(p.Qualities, r.Qualities)
	return p
}

func profileToRecord(p *speaker.Profile) ProfileRecord {
	r := ProfileRecord{
		ID:        p.ID,
		SeenCount: p.SeenCount,
	}
	r.Embeddings = make([][]float32, len(p.Embeddings))
	for i, e := range p.Embeddings {
		ev := make([]float32, len(e))
		copy(ev, e)
		r.Embeddings[i] = ev
	}
	r.Qualities = make([]float32, len(p.Qualities))
	copy(r.Qualities, p.Qualities)
	return r
}

// NewProfileID generates a fresh UUID-keyed profile identifier, for callers
// registering a speaker explicitly (e.g. via an enrollment operation) rather
// than through Cluster's own speaker_N auto-numbering.
func NewProfileID() string {
	return uuid.New().String()
}
