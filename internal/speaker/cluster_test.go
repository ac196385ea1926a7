package speaker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func unitVec(dim, hot int) Embedding {
	v := make(Embedding, dim)
	v[hot%dim] = 1
	return v
}

// nearVec returns a vector close to base (a small rotation toward a
// different axis), used to simulate acoustic variation from the same speaker.
func nearVec(base Embedding, noise float32) Embedding {
	v := cloneEmbedding(base)
	v[0] += noise
	return normalize(v)
}

func TestClusterFirstEmbeddingCreatesProfile(t *testing.T) {
	c := NewCluster(DefaultClusterConfig())
	res := c.Assign(unitVec(4, 0), 0.9)
	require.True(t, res.IsNewSpeaker)
	require.Len(t, c.Profiles(), 1)
}

func TestClusterSimilarEmbeddingJoinsExistingProfile(t *testing.T) {
	c := NewCluster(DefaultClusterConfig())
	base := unitVec(4, 0)
	first := c.Assign(base, 0.9)
	require.True(t, first.IsNewSpeaker)

	second := c.Assign(nearVec(base, 0.05), 0.9)
	require.False(t, second.IsNewSpeaker)
	require.Equal(t, first.SpeakerID, second.SpeakerID)
	require.Len(t, c.Profiles(), 1)
}

func TestClusterDissimilarEmbeddingCreatesNewProfile(t *testing.T) {
	c := NewCluster(DefaultClusterConfig())
	c.Assign(unitVec(4, 0), 0.9)
	res := c.Assign(unitVec(4, 2), 0.9)
	require.True(t, res.IsNewSpeaker)
	require.Len(t, c.Profiles(), 2)
}

func TestClusterSaturatedAssignsToClosestProfile(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.MaxSpeakers = 1
	c := NewCluster(cfg)

	first := c.Assign(unitVec(4, 0), 0.9)
	require.True(t, first.IsNewSpeaker)

	// A clearly different voice, but the registry is saturated at MaxSpeakers=1.
	res := c.Assign(unitVec(4, 2), 0.9)
	require.False(t, res.IsNewSpeaker)
	require.Equal(t, first.SpeakerID, res.SpeakerID)
	require.Len(t, c.Profiles(), 1)
}

func TestClusterEvictsLowestQualityEmbeddingAtCap(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.MaxEmbeddingsPerProfile = 2
	c := NewCluster(cfg)

	base := unitVec(4, 0)
	c.Assign(base, 0.1)                // embedding 1, low quality
	c.Assign(nearVec(base, 0.01), 0.2) // embedding 2, fills capacity
	require.Len(t, c.Profiles()[0].Embeddings, 2)

	c.Assign(nearVec(base, 0.01), 0.9) // higher quality than either stored embedding
	p := c.Profiles()[0]
	require.Len(t, p.Embeddings, 2)
	require.Contains(t, p.Qualities, float32(0.9))
	require.NotContains(t, p.Qualities, float32(0.1), "lowest-quality embedding should have been evicted")
}

func TestClusterOverlapDetectedWhenSecondBestIsClose(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.SimilarityThreshold = 0.9
	cfg.OverlapMargin = 0.3
	c := NewCluster(cfg)

	a := Embedding{1, 0, 0, 0}
	b := Embedding{0, 1, 0, 0}
	c.Assign(a, 0.9)
	c.Assign(b, 0.9)
	require.Len(t, c.Profiles(), 2)

	// A probe equidistant between the two orthogonal profiles scores both
	// close to 0.707, so the runner-up is at or above
	// SimilarityThreshold-OverlapMargin (0.6).
	probe := normalize([]float32{0.6, 0.6, 0, 0})
	res := c.Assign(probe, 0.9)
	require.True(t, res.Overlap)
}

func TestClusterSeedPreservesCrossSessionProfile(t *testing.T) {
	c := NewCluster(DefaultClusterConfig())
	seeded := &Profile{
		ID:         "speaker_existing",
		Embeddings: []Embedding{unitVec(4, 0)},
		Qualities:  []float32{0.8},
	}
	c.Seed(seeded)
	require.NotNil(t, seeded.Centroid)

	res := c.Assign(nearVec(unitVec(4, 0), 0.02), 0.9)
	require.Equal(t, "speaker_existing", res.SpeakerID)
	require.False(t, res.IsNewSpeaker)
}
