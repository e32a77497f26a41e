// Package generate produces well-shaped LSP message parameters drawn from
// the current input: documents, positions inside terminal ranges, ranges
// spanning real subtrees, and values the server itself returned earlier.
package generate

import (
	"errors"
	"math/rand/v2"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// ErrNothingGenerated means the generator had no material to work with
// (empty workspace, no fragments, …). Mutators translate it to Skipped.
var ErrNothingGenerated = errors.New("nothing generated")

// Config toggles the deliberately-invalid generation paths.
type Config struct {
	// InvalidPositions enables out-of-bounds position generation.
	InvalidPositions bool `toml:"invalid_positions"`
	// InvalidRanges enables past-the-end and inverted ranges.
	InvalidRanges bool `toml:"invalid_ranges"`
	// InvalidCode enables the grammar mutations that produce parse errors.
	InvalidCode bool `toml:"invalid_code"`
	// FeedbackFragments enables sampling from server-response metadata.
	FeedbackFragments bool `toml:"feedback_fragments"`
}

func DefaultConfig() Config {
	return Config{
		InvalidPositions:  true,
		InvalidRanges:     true,
		InvalidCode:       true,
		FeedbackFragments: true,
	}
}

// State is the mutable context threaded through generators and mutators.
// It is owned by the fuzzing loop; nothing here is safe for concurrent use.
type State struct {
	Rand      *rand.Rand
	Grammars  *grammar.ContextLookup
	RuleUsage *grammar.RuleUsageStats
	Config    Config

	// Tokens holds UTF-8 strings from the target's auto-dictionary.
	Tokens [][]byte

	// Fragments is the response metadata of the corpus entry currently
	// being mutated; may be nil.
	Fragments *lspinput.ResponseFragments

	// MaxDocumentSize bounds document growth during mutation.
	MaxDocumentSize int
}

// DefaultMaxDocumentSize caps mutated documents at 1 MiB.
const DefaultMaxDocumentSize = 1 << 20

func NewState(seed uint64, grammars *grammar.ContextLookup, config Config) *State {
	return &State{
		Rand:            rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Grammars:        grammars,
		RuleUsage:       grammar.NewRuleUsageStats(),
		Config:          config,
		MaxDocumentSize: DefaultMaxDocumentSize,
	}
}

// Coinflip returns true with probability p.
func (s *State) Coinflip(p float64) bool {
	return s.Rand.Float64() < p
}

// Choose picks a uniformly random element of the slice.
func Choose[T any](s *State, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[s.Rand.IntN(len(items))], true
}
