package alts

import (
	"github.com/rotisserie/eris"
)

// Group holds indices into the profile slice passed to Cluster, in roster
// order. A group is never empty.
type Group []int

// Engine clusters profiles into alt groups.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg, fills in defaults and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "alts: new engine")
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 1 when both are empty.
func Jaccard(a, b Fingerprint) float64 {
	small, large := a, b
	if small.Len() > large.Len() {
		small, large = large, small
	}
	inter := 0
	for p := range small.set {
		if large.Has(p) {
			inter++
		}
	}
	union := a.Len() + b.Len() - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// Reliable reports whether p's fingerprint is large enough to compare.
func (e *Engine) Reliable(p Profile) bool {
	return p.Fingerprint.Len() >= e.cfg.MinFingerprint
}

// Cluster partitions profiles into groups with a greedy single pass: the
// first unclaimed profile becomes the base and claims every later unclaimed
// profile whose similarity to the base reaches the threshold. Profiles under
// the reliability floor are never compared and end up alone. The result
// depends on input order and is deterministic for a given order.
func (e *Engine) Cluster(profiles []Profile) []Group {
	claimed := make([]bool, len(profiles))
	groups := make([]Group, 0, len(profiles))

	for b := range profiles {
		if claimed[b] {
			continue
		}
		claimed[b] = true
		group := Group{b}
		base := profiles[b]

		if e.Reliable(base) {
			for c := b + 1; c < len(profiles); c++ {
				if claimed[c] || !e.matches(base, profiles[c]) {
					continue
				}
				claimed[c] = true
				group = append(group, c)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func (e *Engine) matches(base, cand Profile) bool {
	if !e.Reliable(cand) {
		return false
	}
	if e.cfg.CollectionPrefilter && base.Signature() != cand.Signature() {
		return false
	}
	return Jaccard(base.Fingerprint, cand.Fingerprint) >= e.cfg.Threshold
}
