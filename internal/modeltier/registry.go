// Package modeltier maps the three configured ASR quality tiers onto model
// file paths. The core treats a model file as an opaque path handed to the
// ASR engine: no download, conversion, or format inspection lives here.
package modeltier

import "fmt"

// Tier names one of the three quality levels a session's two-pass pipeline
// draws from: a fast Pass-1 tier and a slower, more accurate Pass-2 tier.
type Tier string

const (
	// Turbo is the fastest tier, typically used for Pass 1.
	Turbo Tier = "turbo"
	// Standard balances speed and accuracy.
	Standard Tier = "standard"
	// HighAccuracy is the slowest, most accurate tier, typically used for Pass 2.
	HighAccuracy Tier = "high_accuracy"
)

// AllTiers lists every recognized tier, in ascending order of expected cost.
var AllTiers = []Tier{Turbo, Standard, HighAccuracy}

func (t Tier) valid() bool {
	for _, known := range AllTiers {
		if t == known {
			return true
		}
	}
	return false
}

// Registry resolves each Tier to an on-disk model path. It holds no
// knowledge of how the files got there; provisioning a model is the
// operator's job, not this package's.
type Registry struct {
	paths map[Tier]string
}

// NewRegistry builds a Registry from a tier-to-path map. Every tier in
// AllTiers must have a non-empty path, or NewRegistry returns an error —
// the core cannot start a pipeline with an incompletely configured tier set.
func NewRegistry(paths map[Tier]string) (*Registry, error) {
	r := &Registry{paths: make(map[Tier]string, len(AllTiers))}
	for _, tier := range AllTiers {
		path, ok := paths[tier]
		if !ok || path == "" {
			return nil, fmt.Errorf("modeltier: no model path configured for tier %q", tier)
		}
		r.paths[tier] = path
	}
	return r, nil
}

// Path returns the model file path for tier, or an error if tier is unknown.
func (r *Registry) Path(tier Tier) (string, error) {
	if !tier.valid() {
		return "", fmt.Errorf("modeltier: unknown tier %q", tier)
	}
	path, ok := r.paths[tier]
	if !ok {
		return "", fmt.Errorf("modeltier: tier %q not configured", tier)
	}
	return path, nil
}

// Paths returns a copy of the full tier-to-path mapping, used when wiring
// engine instances for every tier at pipeline startup.
func (r *Registry) Paths() map[Tier]string {
	out := make(map[Tier]string, len(r.paths))
	for k, v := range r.paths {
		out[k] = v
	}
	return out
}
