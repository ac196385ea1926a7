package speaker

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"
)

// ClusterConfig parameterizes the online single-pass agglomerative
// clustering policy from spec §4.5.
type ClusterConfig struct {
	SimilarityThreshold     float32 // cosine similarity required to join an existing profile
	MaxSpeakers             int     // cap on distinct profiles within a session
	MaxEmbeddingsPerProfile int     // bounded cardinality per profile; lowest-quality evicted at cap
	OverlapMargin           float32 // a second-best score at or above Threshold-OverlapMargin flags overlap
}

// DefaultClusterConfig matches spec §4.5's defaults.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		SimilarityThreshold:     0.7,
		MaxSpeakers:             16,
		MaxEmbeddingsPerProfile: 16,
		OverlapMargin:           0.05,
	}
}

// Profile is one speaker's in-memory identity: a bounded set of sample
// embeddings and the centroid derived from them.
type Profile struct {
	ID         string
	Embeddings []Embedding
	Qualities  []float32
	Centroid   Embedding
	SeenCount  int
}

// AssignResult describes the outcome of assigning one embedding to the
// cluster registry.
type AssignResult struct {
	SpeakerID    string
	IsNewSpeaker bool
	Similarity   float32 // similarity to the assigned profile's prior centroid
	Overlap      bool    // a second profile scored almost as well: likely overlapping speech
}

// Cluster holds the session-local speaker registry. It is not safe for
// concurrent use; callers serialize Assign calls through the Pipeline's
// speaker-engine task.
type Cluster struct {
	cfg      ClusterConfig
	profiles []*Profile
	nextID   int
}

// NewCluster builds an empty registry. Seed can be used to preload
// cross-session profiles recovered from the profile store.
func NewCluster(cfg ClusterConfig) *Cluster {
	return &Cluster{cfg: cfg}
}

// Seed preloads a profile recovered from persistent storage, preserving its
// ID and sample embeddings so matching can continue across sessions.
func (c *Cluster) Seed(p *Profile) {
	if p.Centroid == nil {
		p.Centroid = computeCentroid(p.Embeddings)
	}
	c.profiles = append(c.profiles, p)
}

// Profiles returns the current registry, for persistence or inspection.
func (c *Cluster) Profiles() []*Profile { return c.profiles }

// Assign maps emb (with an extraction quality score in [0,1], typically
// derived from segment duration/SNR) onto a speaker identity, creating a new
// profile if emb doesn't match any existing one closely enough and the
// session hasn't reached MaxSpeakers.
func (c *Cluster) Assign(emb Embedding, quality float32) AssignResult {
	if len(c.profiles) == 0 {
		p := c.createProfile(emb, quality)
		return AssignResult{SpeakerID: p.ID, IsNewSpeaker: true, Similarity: 1.0}
	}

	bestIdx, bestSim, secondSim := c.rankMatches(emb)
	overlap := secondSim >= c.cfg.SimilarityThreshold-c.cfg.OverlapMargin

	switch {
	case bestSim >= c.cfg.SimilarityThreshold:
		p := c.profiles[bestIdx]
		c.updateProfile(p, emb, quality)
		return AssignResult{SpeakerID: p.ID, Similarity: bestSim, Overlap: overlap}

	case len(c.profiles) < c.cfg.MaxSpeakers:
		p := c.createProfile(emb, quality)
		return AssignResult{SpeakerID: p.ID, IsNewSpeaker: true, Similarity: bestSim, Overlap: overlap}

	default:
		// Saturated at MaxSpeakers: assign to the closest profile even
		// though it falls short of the join threshold, per spec §4.5.
		p := c.profiles[bestIdx]
		c.updateProfile(p, emb, quality)
		return AssignResult{SpeakerID: p.ID, Similarity: bestSim, Overlap: overlap}
	}
}

// rankMatches returns the index and similarity of the best-matching
// profile, and the similarity of the runner-up (-2 if there is only one
// profile), used for both threshold comparison and overlap detection.
func (c *Cluster) rankMatches(emb Embedding) (bestIdx int, bestSim, secondSim float32) {
	bestIdx = -1
	bestSim = -2 // below any valid cosine similarity, so the first profile always wins the initial comparison
	secondSim = -2
	for i, p := range c.profiles {
		sim := cosineSimilarity(emb, p.Centroid)
		if sim > bestSim {
			secondSim = bestSim
			bestSim = sim
			bestIdx = i
		} else if sim > secondSim {
			secondSim = sim
		}
	}
	return bestIdx, bestSim, secondSim
}

func (c *Cluster) createProfile(emb Embedding, quality float32) *Profile {
	c.nextID++
	p := &Profile{
		ID:         fmt.Sprintf("speaker_%d", c.nextID),
		Embeddings: []Embedding{cloneEmbedding(emb)},
		Qualities:  []float32{quality},
		Centroid:   cloneEmbedding(emb),
		SeenCount:  1,
	}
	c.profiles = append(c.profiles, p)
	return p
}

// updateProfile appends emb to p's embedding set (evicting the
// lowest-quality member first if p is at capacity) and recomputes the
// centroid.
func (c *Cluster) updateProfile(p *Profile, emb Embedding, quality float32) {
	p.SeenCount++

	if len(p.Embeddings) >= c.cfg.MaxEmbeddingsPerProfile {
		worst := 0
		for i, q := range p.Qualities {
			if q < p.Qualities[worst] {
				worst = i
			}
		}
		if quality > p.Qualities[worst] {
			p.Embeddings[worst] = cloneEmbedding(emb)
			p.Qualities[worst] = quality
		}
	} else {
		p.Embeddings = append(p.Embeddings, cloneEmbedding(emb))
		p.Qualities = append(p.Qualities, quality)
	}

	p.Centroid = computeCentroid(p.Embeddings)
}

// computeCentroid averages embeddings via BLAS axpy/scal and renormalizes
// the result to unit length.
func computeCentroid(embeddings []Embedding) Embedding {
	if len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	sum := blas32.Vector{N: dim, Data: make([]float32, dim), Inc: 1}
	for _, e := range embeddings {
		blas32.Axpy(1, vec(e), sum)
	}
	blas32.Scal(1/float32(len(embeddings)), sum)
	return normalize(sum.Data)
}

func cloneEmbedding(e Embedding) Embedding {
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// cosineSimilarity computes the cosine similarity of two unit-normalized
// vectors, which reduces to a dot product.
func cosineSimilarity(a, b Embedding) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	return blas32.Dot(vec(a), vec(b))
}

func vec(e Embedding) blas32.Vector {
	return blas32.Vector{N: len(e), Data: e, Inc: 1}
}
