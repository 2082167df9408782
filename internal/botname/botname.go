// Package botname generates guest display names such as "Mortal_qXbT".
package botname

import (
	rand "math/rand/v2"
)

const (
	letters       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLength  = 4
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// RandSource is the randomness a Generator draws from.
type RandSource interface {
	IntN(n int) int
}

// Generator builds names from a prefix and a random letter suffix.
type Generator struct {
	prefix string
	rand   RandSource
}

// NewGenerator returns a generator. A nil source uses the global random
// source.
func NewGenerator(prefix string, src RandSource) *Generator {
	if src == nil {
		src = globalSource{}
	}
	return &Generator{prefix: prefix, rand: src}
}

// Generate returns a new name.
func (g *Generator) Generate() string {
	suffix := make([]byte, suffixLength)
	for i := range suffix {
		suffix[i] = letters[g.rand.IntN(len(letters))]
	}
	if g.prefix == "" {
		return string(suffix)
	}
	return g.prefix + "_" + string(suffix)
}

// Seeded returns a deterministic source for reproducible names.
func Seeded(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }
