package grammar

import (
	"encoding/json"
	"fmt"
)

// Symbol is one element of a derivation sequence.
type Symbol struct {
	// Kind discriminates which of the fields below is meaningful.
	Kind SymbolKind `json:"kind"`
	// Literal holds the exact bytes for SymbolLiteral.
	Literal []byte `json:"literal,omitempty"`
	// Name holds the referenced rule or terminal name otherwise.
	Name string `json:"name,omitempty"`
}

type SymbolKind uint8

const (
	// SymbolLiteral emits its bytes verbatim.
	SymbolLiteral SymbolKind = iota
	// SymbolNamedTerminal is a token rule expanded from mined fragments.
	SymbolNamedTerminal
	// SymbolNonTerminal references another derivation rule.
	SymbolNonTerminal
)

// DerivationSequence is one right-hand side of a derivation rule.
type DerivationSequence []Symbol

// Grammar maps non-terminal names to their derivation sequences, in the
// order they appear in the tree-sitter grammar definition.
type Grammar struct {
	Start string                          `json:"start"`
	Rules map[string][]DerivationSequence `json:"rules"`
}

// RuleNames returns the non-terminals that have at least one sequence.
func (g *Grammar) RuleNames() []string {
	names := make([]string, 0, len(g.Rules))
	for name, sequences := range g.Rules {
		if len(sequences) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Sequences returns the derivation sequences of a non-terminal, or nil.
func (g *Grammar) Sequences(nonTerminal string) []DerivationSequence {
	return g.Rules[nonTerminal]
}

// Expanding choice rules multiplies sequences; the cap keeps pathological
// grammars (deeply nested choices) from exploding the table.
const maxSequencesPerRule = 64

// tsRule mirrors the rule objects of a tree-sitter grammar.json file.
type tsRule struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Value   json.RawMessage `json:"value"`
	Members []tsRule        `json:"members"`
	Content *tsRule         `json:"content"`
}

type tsGrammarFile struct {
	Name  string                     `json:"name"`
	Word  string                     `json:"word"`
	Rules map[string]json.RawMessage `json:"rules"`
}

// ParseGrammarJSON recovers a flat derivation grammar from a tree-sitter
// grammar.json document. Choice rules become multiple sequences, sequence
// rules concatenate, and token-level constructs degrade to named terminals
// that the generator satisfies from mined fragments.
func ParseGrammarJSON(data []byte) (*Grammar, error) {
	var file tsGrammarFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding grammar json: %w", err)
	}
	grammar := &Grammar{Rules: make(map[string][]DerivationSequence, len(file.Rules))}
	for name, raw := range file.Rules {
		var rule tsRule
		if err := json.Unmarshal(raw, &rule); err != nil {
			return nil, fmt.Errorf("decoding rule %s: %w", name, err)
		}
		// Top-level token rules carry no name of their own; the rule key
		// is the terminal name the fragment table is keyed by.
		if rule.Name == "" {
			switch rule.Type {
			case "PATTERN", "TOKEN", "IMMEDIATE_TOKEN":
				rule.Name = name
			}
		}
		sequences := flattenRule(&rule)
		if len(sequences) > maxSequencesPerRule {
			sequences = sequences[:maxSequencesPerRule]
		}
		grammar.Rules[name] = sequences
		if grammar.Start == "" {
			// tree-sitter puts the start rule first; JSON maps lose order,
			// so the conventional source_file/translation_unit names win
			// below and this is only the fallback.
			grammar.Start = name
		}
	}
	for _, conventional := range []string{"source_file", "translation_unit", "program", "compilation_unit", "module"} {
		if _, ok := grammar.Rules[conventional]; ok {
			grammar.Start = conventional
			break
		}
	}
	return grammar, nil
}

// flattenRule converts one grammar.json rule into derivation sequences.
func flattenRule(rule *tsRule) []DerivationSequence {
	switch rule.Type {
	case "BLANK":
		return []DerivationSequence{{}}
	case "STRING":
		var literal string
		_ = json.Unmarshal(rule.Value, &literal)
		return []DerivationSequence{{Symbol{Kind: SymbolLiteral, Literal: []byte(literal)}}}
	case "PATTERN", "TOKEN", "IMMEDIATE_TOKEN":
		// Regex-defined and token-fenced rules are opaque here; the
		// generator samples a mined fragment for them instead.
		name := rule.Name
		if name == "" && rule.Content != nil {
			name = rule.Content.Name
		}
		return []DerivationSequence{{Symbol{Kind: SymbolNamedTerminal, Name: name}}}
	case "SYMBOL":
		return []DerivationSequence{{Symbol{Kind: SymbolNonTerminal, Name: rule.Name}}}
	case "SEQ":
		sequences := []DerivationSequence{{}}
		for i := range rule.Members {
			member := flattenRule(&rule.Members[i])
			sequences = crossConcat(sequences, member)
			if len(sequences) > maxSequencesPerRule {
				sequences = sequences[:maxSequencesPerRule]
			}
		}
		return sequences
	case "CHOICE":
		var sequences []DerivationSequence
		for i := range rule.Members {
			sequences = append(sequences, flattenRule(&rule.Members[i])...)
			if len(sequences) >= maxSequencesPerRule {
				return sequences[:maxSequencesPerRule]
			}
		}
		return sequences
	case "REPEAT":
		// Zero, one, or two repetitions keep the table finite.
		inner := flattenRule(rule.Content)
		out := []DerivationSequence{{}}
		out = append(out, inner...)
		out = append(out, crossConcat(inner, inner)...)
		if len(out) > maxSequencesPerRule {
			out = out[:maxSequencesPerRule]
		}
		return out
	case "REPEAT1":
		inner := flattenRule(rule.Content)
		out := append([]DerivationSequence{}, inner...)
		out = append(out, crossConcat(inner, inner)...)
		if len(out) > maxSequencesPerRule {
			out = out[:maxSequencesPerRule]
		}
		return out
	case "ALIAS", "FIELD", "PREC", "PREC_LEFT", "PREC_RIGHT", "PREC_DYNAMIC":
		if rule.Content != nil {
			return flattenRule(rule.Content)
		}
		return nil
	default:
		return nil
	}
}

func crossConcat(left, right []DerivationSequence) []DerivationSequence {
	out := make([]DerivationSequence, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			seq := make(DerivationSequence, 0, len(l)+len(r))
			seq = append(seq, l...)
			seq = append(seq, r...)
			out = append(out, seq)
		}
	}
	return out
}
