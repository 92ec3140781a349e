package battle

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Source supplies uniform samples in [0,1). Implementations must be safe for
// concurrent use.
type Source interface {
	Float64() float64
}

// RandSource is a seeded PCG generator guarded by a mutex.
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource returns a Source seeded with seed.
func NewRandSource(seed uint64) *RandSource {
	return &RandSource{rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))} //nolint:gosec // game randomness, not crypto
}

// Float64 returns the next sample in [0,1).
func (s *RandSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// FixedSource always returns the same sample. FixedSource(0.5) yields a
// factor of exactly 1.0 with the default range.
type FixedSource float64

// Float64 returns the fixed sample.
func (f FixedSource) Float64() float64 { return float64(f) }

// sample reads src and forces the value into [0,1].
func sample(src Source) float64 {
	v := src.Float64()
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
