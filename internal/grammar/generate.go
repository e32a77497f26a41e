package grammar

import (
	"errors"
	"math/rand/v2"
)

// DefaultDepthLimit bounds recursive rule expansion before the generator
// falls back to mined fragments.
const DefaultDepthLimit = 5

// ErrNoDerivation is returned when neither a rule nor a fragment can
// produce bytes for the requested node kind.
var ErrNoDerivation = errors.New("no derivation available for node kind")

// RuleUsageStats tracks how often each derivation sequence of each
// (language, non-terminal) pair has been expanded. Rarely used rules get
// higher weights, which drives the generator toward unexplored grammar.
type RuleUsageStats struct {
	counts map[ruleKey][]uint64
}

type ruleKey struct {
	language Language
	rule     string
}

func NewRuleUsageStats() *RuleUsageStats {
	return &RuleUsageStats{counts: make(map[ruleKey][]uint64)}
}

// pick selects a sequence index by inverse-usage weighting and records the
// use. Weight of rule i is max(1, maxCount) - count_i + 1.
func (s *RuleUsageStats) pick(rng *rand.Rand, language Language, rule string, n int) int {
	key := ruleKey{language: language, rule: rule}
	counts, ok := s.counts[key]
	if !ok || len(counts) != n {
		counts = make([]uint64, n)
		s.counts[key] = counts
	}
	var maxCount uint64 = 1
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	var total uint64
	weights := make([]uint64, n)
	for i, c := range counts {
		w := maxCount - c + 1
		weights[i] = w
		total += w
	}
	target := rng.Uint64N(total)
	var acc uint64
	chosen := n - 1
	for i, w := range weights {
		acc += w
		if target < acc {
			chosen = i
			break
		}
	}
	counts[chosen]++
	return chosen
}

// Generator produces random derivations for node kinds of one language.
type Generator struct {
	ctx   *Context
	usage *RuleUsageStats
}

func NewGenerator(ctx *Context, usage *RuleUsageStats) *Generator {
	return &Generator{ctx: ctx, usage: usage}
}

// Generate expands a random derivation of the node kind with the default
// depth limit.
func (g *Generator) Generate(kind string, rng *rand.Rand) ([]byte, error) {
	return g.generate(kind, rng, DefaultDepthLimit)
}

// GenerateDepth is Generate with an explicit depth limit.
func (g *Generator) GenerateDepth(kind string, rng *rand.Rand, depthLimit int) ([]byte, error) {
	return g.generate(kind, rng, depthLimit)
}

func (g *Generator) generate(kind string, rng *rand.Rand, depth int) ([]byte, error) {
	sequences := g.ctx.Sequences(kind)
	if depth <= 0 || len(sequences) == 0 {
		return g.sampleFragment(kind, rng)
	}
	idx := g.usage.pick(rng, g.ctx.Language, kind, len(sequences))
	var out []byte
	for _, symbol := range sequences[idx] {
		switch symbol.Kind {
		case SymbolLiteral:
			out = append(out, symbol.Literal...)
		case SymbolNamedTerminal:
			fragment, err := g.sampleFragment(symbol.Name, rng)
			if err != nil {
				return nil, err
			}
			out = append(out, fragment...)
		case SymbolNonTerminal:
			expanded, err := g.generate(symbol.Name, rng, depth-1)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	return out, nil
}

func (g *Generator) sampleFragment(kind string, rng *rand.Rand) ([]byte, error) {
	fragments := g.ctx.NodeFragments(kind)
	if len(fragments) == 0 {
		return nil, ErrNoDerivation
	}
	return fragments[rng.IntN(len(fragments))], nil
}
