// Package questions loads the quiz question pack and deals shuffled
// decks for new rooms.
package questions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/duoquiz/duoquiz/internal/game/rng"
	"github.com/duoquiz/duoquiz/internal/game/room"
)

// packFile is the top-level YAML structure of a question pack.
type packFile struct {
	Questions []string `yaml:"questions"`
}

// Load reads a question pack from the given YAML file.
//
// Precondition: path must point to a readable YAML file.
// Postcondition: Returns a non-empty question list or a non-nil error.
func Load(path string) ([]room.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question pack %s: %w", path, err)
	}

	var pf packFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing question pack %s: %w", path, err)
	}

	qs := make([]room.Question, 0, len(pf.Questions))
	for i, q := range pf.Questions {
		if q == "" {
			return nil, fmt.Errorf("question pack %s: question %d is empty", path, i)
		}
		qs = append(qs, room.Question(q))
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("question pack %s contains no questions", path)
	}
	return qs, nil
}

// Source deals independently shuffled copies of one question pool.
// Safe for concurrent use as long as the underlying rng.Source is.
type Source struct {
	pool []room.Question
	src  rng.Source
}

// NewSource creates a deck source over the given pool.
//
// Precondition: pool must be non-empty; src must be non-nil.
func NewSource(pool []room.Question, src rng.Source) (*Source, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("question pool is empty")
	}
	if src == nil {
		return nil, fmt.Errorf("randomness source is nil")
	}
	return &Source{
		pool: append([]room.Question(nil), pool...),
		src:  src,
	}, nil
}

// Deck returns a freshly shuffled copy of the pool. Each room shuffles
// once at creation; the order is fixed thereafter.
//
// Postcondition: The result is a permutation of the pool.
func (s *Source) Deck() []room.Question {
	deck := append([]room.Question(nil), s.pool...)
	// Fisher-Yates
	for i := len(deck) - 1; i > 0; i-- {
		j := s.src.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// Len returns the pool size.
func (s *Source) Len() int {
	return len(s.pool)
}
