// Package rng holds the random sources consumed by the verifier. Sources
// are owned by callers; the verifier only draws from them.
package rng

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is a reproducible stream of uniform and exponential variates.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// Float32 returns a uniform draw in [0, 1).
	Float32() float32
	// ExpFloat64 returns an Exponential(1) draw in (0, +MaxFloat64].
	ExpFloat64() float64
}

// Generators binds a reproducible source to a request index. Requests
// without an entry draw from the shared default source.
type Generators map[int]Source

// New returns a PCG-backed source for seed. Equal seeds yield equal
// streams.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
}

// NewDefault returns a source for the shared default stream. seed == 0
// seeds from the clock.
func NewDefault(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{src: New(seed)}
}

// Locked serialises access to a shared source.
type Locked struct {
	mu  sync.Mutex
	src Source
}

// Lock acquires the source for a run of draws; the returned function
// releases it.
func (l *Locked) Lock() (Source, func()) {
	l.mu.Lock()
	return l.src, l.mu.Unlock
}

// FillUniform overwrites dst with uniform draws in [0, 1).
func FillUniform(src Source, dst []float32) {
	for i := range dst {
		dst[i] = src.Float32()
	}
}

// FillExponential overwrites dst with Exponential(1) draws.
func FillExponential(src Source, dst []float32) {
	for i := range dst {
		dst[i] = float32(src.ExpFloat64())
	}
}
