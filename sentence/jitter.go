package sentence

import "math/rand"

// Source supplies uniformly distributed values in [0, 1). *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic Source seeded with seed. It is not safe
// for concurrent use.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Vary returns v shifted by up to p*|v| in either direction, e.g. p = 0.05
// gives ±5%. Every call draws a fresh sample from src.
func Vary(src Source, v, p float64) float64 {
	u := 2*src.Float64() - 1
	return v + v*p*u
}
