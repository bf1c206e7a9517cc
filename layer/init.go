package layer

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Initializer draws initial weights from a seeded source
type Initializer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewInitializer creates an initializer; the same seed yields the same weights
func NewInitializer(seed uint64) *Initializer {
	return &Initializer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// TruncatedNormal fills v with normal samples of the given stddev, redrawing samples
// further than two standard deviations from zero.
func (i *Initializer) TruncatedNormal(v []float32, stddev float32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for n := range v {
		z := i.rng.NormFloat64()
		for math.Abs(z) > 2 {
			z = i.rng.NormFloat64()
		}
		v[n] = float32(z) * stddev
	}
}

// Constant fills v with c
func Constant(v []float32, c float32) {
	for n := range v {
		v[n] = c
	}
}

// HeStddev is the default weight stddev for a given fan-in
func HeStddev(fanIn int) float32 {
	return float32(math.Sqrt(2 / float64(fanIn)))
}

// Source returns a child random source, for layers that need their own randomness
func (i *Initializer) Source() *rand.Rand {
	i.mu.Lock()
	defer i.mu.Unlock()
	return rand.New(rand.NewPCG(i.rng.Uint64(), i.rng.Uint64()))
}
