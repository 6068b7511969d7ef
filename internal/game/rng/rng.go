// Package rng provides the randomness abstraction used for room codes
// and question shuffling.
package rng

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
)

// Source is the randomness provider.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is uniformly distributed in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "rng: Intn called with n <= 0" if n <= 0.
// Panics with "rng: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("rng: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// seededSource implements Source using a seeded math/rand generator.
// Not safe for concurrent use; intended for deterministic tests.
type seededSource struct {
	r *mrand.Rand
}

// NewSeededSource returns a deterministic Source for the given seed.
func NewSeededSource(seed int64) Source {
	return &seededSource{r: mrand.New(mrand.NewSource(seed))}
}

func (s *seededSource) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	return s.r.Intn(n)
}
