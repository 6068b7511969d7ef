// Package ident generates short public room codes.
package ident

import (
	"fmt"

	"github.com/duoquiz/duoquiz/internal/game/rng"
)

// alphabet is URL-safe and unambiguous enough for codes read aloud
// between two people sharing a link.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces random room codes from an injectable entropy
// source, so tests can be deterministic.
type Generator struct {
	src rng.Source
}

// NewGenerator creates a Generator backed by the given source.
//
// Precondition: src must be non-nil.
func NewGenerator(src rng.Source) *Generator {
	if src == nil {
		panic("ident: nil randomness source")
	}
	return &Generator{src: src}
}

// Code returns a random code of length n over [A-Za-z0-9].
//
// Precondition: n > 0.
// Postcondition: Returns a string of exactly n alphabet characters.
func (g *Generator) Code(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("ident: code length must be positive, got %d", n)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[g.src.Intn(len(alphabet))]
	}
	return string(out), nil
}
