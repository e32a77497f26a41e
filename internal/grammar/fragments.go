package grammar

import (
	"encoding/json"
	"fmt"
	"os"
)

// ByteRange indexes into the shared code buffer of a Fragments table.
type ByteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Fragments maps node-kind names to byte ranges of real source code mined
// from external projects. All ranges index the shared Code buffer so the
// table stays compact even with hundreds of thousands of fragments.
type Fragments struct {
	Code   []byte                 `json:"code"`
	Ranges map[string][]ByteRange `json:"ranges"`
}

// Get returns the mined fragments for a node kind. The returned slices
// alias the shared buffer and must not be mutated.
func (f *Fragments) Get(kind string) [][]byte {
	ranges, ok := f.Ranges[kind]
	if !ok {
		return nil
	}
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		out[i] = f.Code[r.Start:r.End]
	}
	return out
}

// Count returns how many fragments exist for a node kind.
func (f *Fragments) Count(kind string) int {
	return len(f.Ranges[kind])
}

// Add appends a fragment for the node kind, deduplicating nothing; the
// miner is responsible for keeping the table bounded.
func (f *Fragments) Add(kind string, fragment []byte) {
	if f.Ranges == nil {
		f.Ranges = make(map[string][]ByteRange)
	}
	start := len(f.Code)
	f.Code = append(f.Code, fragment...)
	f.Ranges[kind] = append(f.Ranges[kind], ByteRange{Start: start, End: len(f.Code)})
}

// Context bundles everything the mutators need to work on one language.
type Context struct {
	Language  Language   `json:"language"`
	Grammar   *Grammar   `json:"grammar"`
	Fragments *Fragments `json:"fragments"`
}

// NodeFragments returns the mined fragments for a node kind, possibly empty.
func (c *Context) NodeFragments(kind string) [][]byte {
	if c.Fragments == nil {
		return nil
	}
	return c.Fragments.Get(kind)
}

// Sequences returns the derivation rules for a non-terminal, or nil.
func (c *Context) Sequences(nonTerminal string) []DerivationSequence {
	if c.Grammar == nil {
		return nil
	}
	return c.Grammar.Sequences(nonTerminal)
}

// ContextLookup resolves the grammar context for a language.
type ContextLookup struct {
	contexts map[Language]*Context
}

func NewContextLookup(contexts ...*Context) *ContextLookup {
	lookup := &ContextLookup{contexts: make(map[Language]*Context, len(contexts))}
	for _, ctx := range contexts {
		lookup.contexts[ctx.Language] = ctx
	}
	return lookup
}

// Get returns the context for a language, or nil when the language has no
// mined grammar data (mutators then skip).
func (l *ContextLookup) Get(language Language) *Context {
	if l == nil {
		return nil
	}
	return l.contexts[language]
}

// Contexts returns all registered contexts.
func (l *ContextLookup) Contexts() []*Context {
	out := make([]*Context, 0, len(l.contexts))
	for _, ctx := range l.contexts {
		out = append(out, ctx)
	}
	return out
}

// contextFile is the on-disk shape of a mined fragments file.
type contextFile struct {
	Language  string     `json:"language"`
	Grammar   *Grammar   `json:"grammar,omitempty"`
	Fragments *Fragments `json:"fragments"`
}

// LoadContextFile reads a fragments file produced by mine-grammar-fragments.
func LoadContextFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fragments file: %w", err)
	}
	var file contextFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding fragments file %s: %w", path, err)
	}
	language, err := ParseLanguage(file.Language)
	if err != nil {
		return nil, err
	}
	return &Context{Language: language, Grammar: file.Grammar, Fragments: file.Fragments}, nil
}

// SaveContextFile writes a context in the fragments-file format.
func SaveContextFile(path string, ctx *Context) error {
	file := contextFile{
		Language:  ctx.Language.String(),
		Grammar:   ctx.Grammar,
		Fragments: ctx.Fragments,
	}
	data, err := json.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encoding fragments file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
