package diffusion

import "math/rand/v2"

// Stream is a seeded family of independent generators. Each id yields its
// own PCG generator, so work split across goroutines by id is reproducible
// regardless of how many goroutines run it.
type Stream struct {
	seed uint64
}

func NewStream(seed int64) Stream {
	return Stream{seed: uint64(seed)}
}

func (s Stream) Seed() int64 { return int64(s.seed) }

// Rand returns the generator for id. Calling Rand twice with the same id
// returns two generators producing the same sequence.
func (s Stream) Rand(id uint64) *rand.Rand {
	return rand.New(s.Source(id))
}

func (s Stream) Source(id uint64) rand.Source {
	return rand.NewPCG(s.seed, splitmix(id))
}

// Derive returns a child stream for id, independent of the parent's
// generators.
func (s Stream) Derive(id uint64) Stream {
	return Stream{seed: splitmix(s.seed ^ splitmix(id+0x9e3779b97f4a7c15))}
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
