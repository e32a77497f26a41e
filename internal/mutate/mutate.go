// Package mutate holds the grammar-aware document mutators and the message
// sequence mutators. Every mutator either changes the input (Mutated) or
// declines without side effects (Skipped); grammar misses and size-cap
// violations never propagate as errors.
package mutate

import (
	"github.com/standardbeagle/lspfuzz/internal/generate"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// Result reports what a mutator did.
type Result uint8

const (
	Skipped Result = iota
	Mutated
)

// Mutator transforms an input in place.
type Mutator interface {
	// Name is a stable identifier used in logs and stats.
	Name() string
	Mutate(s *generate.State, in *lspinput.Input) (Result, error)
}

// All returns the full havoc set: document mutations plus message-sequence
// mutations, weighted by repetition the way the selection tables build them.
func All(config generate.Config) []Mutator {
	return append(DocumentMutators(config), MessageMutators()...)
}
