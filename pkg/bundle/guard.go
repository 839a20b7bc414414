package bundle

import (
	"sync"
)

// RollbackGuardConfig tunes the denial-rate regression detector.
type RollbackGuardConfig struct {
	// MinSamples is how many post-swap decisions must accumulate before the
	// guard will judge the new bundle.
	MinSamples int

	// Threshold is the absolute denial-rate increase over the pre-swap
	// baseline that counts as a regression (0.2 = twenty points).
	Threshold float64
}

// DefaultRollbackGuardConfig returns the production defaults.
func DefaultRollbackGuardConfig() RollbackGuardConfig {
	return RollbackGuardConfig{
		MinSamples: 100,
		Threshold:  0.2,
	}
}

// RollbackGuard watches the denial rate across bundle swaps. A spike right
// after a swap usually means a broken rule set shipped; the syncer rolls back
// automatically when the guard trips.
type RollbackGuard struct {
	cfg RollbackGuardConfig

	mu       sync.Mutex
	allows   int
	denies   int
	baseline float64
	armed    bool
	tripped  bool
}

// NewRollbackGuard creates a guard with the given thresholds.
func NewRollbackGuard(cfg RollbackGuardConfig) *RollbackGuard {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultRollbackGuardConfig().MinSamples
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultRollbackGuardConfig().Threshold
	}
	return &RollbackGuard{cfg: cfg}
}

// Record feeds one decision outcome into the current window.
func (g *RollbackGuard) Record(allow bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if allow {
		g.allows++
	} else {
		g.denies++
	}
}

// OnSwap snapshots the pre-swap denial rate as the baseline and starts a fresh
// window. The guard only arms when the old window had enough samples to be a
// meaningful baseline.
func (g *RollbackGuard) OnSwap() {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.allows + g.denies
	if total >= g.cfg.MinSamples {
		g.baseline = float64(g.denies) / float64(total)
		g.armed = true
	} else {
		g.armed = false
	}
	g.allows = 0
	g.denies = 0
	g.tripped = false
}

// Regressed reports whether the post-swap denial rate exceeds the baseline by
// the configured threshold. Trips at most once per swap.
func (g *RollbackGuard) Regressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed || g.tripped {
		return false
	}
	total := g.allows + g.denies
	if total < g.cfg.MinSamples {
		return false
	}
	rate := float64(g.denies) / float64(total)
	if rate-g.baseline > g.cfg.Threshold {
		g.tripped = true
		return true
	}
	return false
}
