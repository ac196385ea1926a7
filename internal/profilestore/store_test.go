package profilestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"transcore/internal/corerr"
	"transcore/internal/speaker"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 0, s.Count())
}

func TestSyncThenOpenRoundTripsProfiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	profiles := []*speaker.Profile{
		{
			ID:         "speaker_1",
			Embeddings: []speaker.Embedding{{1, 0, 0}, {0.9, 0.1, 0}},
			Qualities:  []float32{0.8, 0.6},
			SeenCount:  2,
		},
	}
	require.NoError(t, s.Sync(profiles))

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Count())

	got := reopened.Profiles()
	require.Len(t, got, 1)
	require.Equal(t, "speaker_1", got[0].ID)
	require.Len(t, got[0].Embeddings, 2)
	require.Equal(t, []float32{0.8, 0.6}, got[0].Qualities)
}

func TestSyncPreservesRenameAcrossResync(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	p := &speaker.Profile{ID: "speaker_1", Embeddings: []speaker.Embedding{{1, 0}}, Qualities: []float32{0.5}}
	require.NoError(t, s.Sync([]*speaker.Profile{p}))
	require.NoError(t, s.Rename("speaker_1", "Alice"))

	require.NoError(t, s.Sync([]*speaker.Profile{p}))

	raw, err := os.ReadFile(filepath.Join(dir, "speakers.json"))
	require.NoError(t, err)
	var f file
	require.NoError(t, json.Unmarshal(raw, &f))
	require.Len(t, f.Profiles, 1)
	require.Equal(t, "Alice", f.Profiles[0].Name)
}

func TestOpenRejectsNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	future := file{Version: CurrentVersion + 1, Profiles: []ProfileRecord{{ID: "x"}}}
	data, err := json.Marshal(future)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "speakers.json"), data, 0o644))

	_, err = Open(dir)
	require.Error(t, err)
	ce, ok := corerr.As(err)
	require.True(t, ok)
	require.Equal(t, corerr.KindProfileStoreVersionMismatch, ce.Kind)
	require.True(t, ce.Kind.Fatal())
}

func TestDeleteRemovesProfile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	p := &speaker.Profile{ID: "speaker_1", Embeddings: []speaker.Embedding{{1, 0}}, Qualities: []float32{0.5}}
	require.NoError(t, s.Sync([]*speaker.Profile{p}))
	require.NoError(t, s.Delete("speaker_1"))
	require.Equal(t, 0, s.Count())
}

func TestConfidenceBuckets(t *testing.T) {
	require.Equal(t, "high", Confidence(0.9))
	require.Equal(t, "medium", Confidence(0.75))
	require.Equal(t, "low", Confidence(0.55))
	require.Equal(t, "none", Confidence(0.2))
}
