package fw

import "math/rand/v2"

// Rng is the non-cryptographic pseudo-random source the deferred
// propagation discipline draws its retry jitter from (spec.md §4.5,
// §9). The original source seeded a file-scope static 48-bit generator
// shared across every strategy instance and across process restarts;
// spec.md §9 calls that out as a bug and asks for an injected,
// per-instance, reproducible source instead.
type Rng interface {
	// UintN returns a pseudo-random value in [0, n). Behavior is
	// undefined for n == 0; callers must not invoke it with an empty range.
	UintN(n uint64) uint64
}

// rngSource is the default Rng, backed by math/rand/v2's ChaCha8
// generator seeded once at construction.
type rngSource struct {
	r *rand.Rand
}

// NewRng constructs an Rng seeded deterministically from seed, so a
// configured seed (fw.ncc.rng_seed) reproduces the same propagation
// schedule across runs - the reproducibility spec.md §9 asks for.
func NewRng(seed uint64) Rng {
	var seed32 [32]byte
	for i := 0; i < 4; i++ {
		shift := uint(i) * 16
		seed32[2*i] = byte(seed >> shift)
		seed32[2*i+1] = byte(seed >> (shift + 8))
	}
	return &rngSource{r: rand.New(rand.NewChaCha8(seed32))}
}

// UintN returns a pseudo-random value in [0, n).
func (s *rngSource) UintN(n uint64) uint64 {
	return s.r.Uint64N(n)
}
