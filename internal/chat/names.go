package chat

import (
	"fmt"
	"math/rand"
	"time"
)

var nameAdjectives = []string{
	"Swift", "Bright", "Cool", "Wild", "Smart",
	"Quick", "Bold", "Calm", "Wise", "Pure",
}

var nameNouns = []string{
	"Fox", "Eagle", "Tiger", "Wolf", "Bear",
	"Lion", "Hawk", "Owl", "Deer", "Cat",
}

// NameGenerator produces random display names of the form
// AdjectiveNounNNN, e.g. "SwiftFox042". Names are not guaranteed unique;
// the pool is small and collisions are accepted by the rest of the system.
type NameGenerator struct {
	rng *rand.Rand
}

// NewNameGenerator creates a generator backed by the given source.
// A nil source falls back to a time-seeded one.
func NewNameGenerator(src rand.Source) *NameGenerator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &NameGenerator{rng: rand.New(src)}
}

// Generate returns the next random display name.
func (g *NameGenerator) Generate() string {
	adjective := nameAdjectives[g.rng.Intn(len(nameAdjectives))]
	noun := nameNouns[g.rng.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%d", adjective, noun, g.rng.Intn(1000))
}
