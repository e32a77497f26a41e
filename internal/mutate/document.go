package mutate

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/generate"
	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// nodeSelector picks the node a mutation will replace.
type nodeSelector func(s *generate.State, doc *textdocument.Document) (textdocument.NodeInfo, bool)

// nodeGenerator produces the replacement bytes for the selected node.
type nodeGenerator func(s *generate.State, doc *textdocument.Document, node textdocument.NodeInfo, ctx *grammar.Context) ([]byte, bool)

// replaceNode is the core document mutation: choose a document, choose a
// node, generate a replacement, splice, and rebase message coordinates.
type replaceNode struct {
	name     string
	selector nodeSelector
	generate nodeGenerator
}

func (m *replaceNode) Name() string { return m.name }

func (m *replaceNode) Mutate(s *generate.State, in *lspinput.Input) (Result, error) {
	ref, err := generate.ChooseDocument(s, in)
	if err != nil {
		return Skipped, nil
	}
	ctx := s.Grammars.Get(ref.Document.Language())
	if ctx == nil {
		return Skipped, nil
	}
	node, ok := m.selector(s, ref.Document)
	if !ok {
		return Skipped, nil
	}
	replacement, ok := m.generate(s, ref.Document, node, ctx)
	if !ok {
		return Skipped, nil
	}
	nodeLen := int(node.Range.EndByte - node.Range.StartByte)
	if ref.Document.Len()-nodeLen+len(replacement) > s.MaxDocumentSize {
		return Skipped, nil
	}
	edit := ref.Document.Splice(node.Range, replacement)
	in.Rebase(lspinput.AbstractURI(ref.Path), edit)
	return Mutated, nil
}

func anyNode(s *generate.State, doc *textdocument.Document) (textdocument.NodeInfo, bool) {
	return generate.Choose(s, doc.CollectNodes(nil))
}

func terminalNode(s *generate.State, doc *textdocument.Document) (textdocument.NodeInfo, bool) {
	return generate.Choose(s, doc.CollectNodes(func(n *tree_sitter.Node) bool {
		return n.ChildCount() == 0
	}))
}

func errorNode(s *generate.State, doc *textdocument.Document) (textdocument.NodeInfo, bool) {
	return generate.Choose(s, doc.CollectNodes(func(n *tree_sitter.Node) bool {
		return n.IsError() || n.IsMissing()
	}))
}

func commentNode(s *generate.State, doc *textdocument.Document) (textdocument.NodeInfo, bool) {
	ranges := doc.CapturedRanges("comment")
	r, ok := generate.Choose(s, ranges)
	if !ok {
		return textdocument.NodeInfo{}, false
	}
	return textdocument.NodeInfo{Kind: "comment", Range: r}, true
}

func emptyReplacement(*generate.State, *textdocument.Document, textdocument.NodeInfo, *grammar.Context) ([]byte, bool) {
	return []byte{}, true
}

// minedFragment replaces the node with a mined fragment of the same kind,
// keeping the document syntactically plausible.
func minedFragment(s *generate.State, _ *textdocument.Document, node textdocument.NodeInfo, ctx *grammar.Context) ([]byte, bool) {
	fragment, ok := generate.Choose(s, ctx.NodeFragments(node.Kind))
	if !ok {
		return nil, false
	}
	return fragment, true
}

// expandGrammar replaces the node with a fresh derivation of its own kind.
func expandGrammar(s *generate.State, _ *textdocument.Document, node textdocument.NodeInfo, ctx *grammar.Context) ([]byte, bool) {
	gen := grammar.NewGenerator(ctx, s.RuleUsage)
	out, err := gen.Generate(node.Kind, s.Rand)
	if err != nil {
		return nil, false
	}
	return out, true
}

// mismatchedNode derives for a different node kind, producing realistic
// parse errors.
func mismatchedNode(s *generate.State, _ *textdocument.Document, node textdocument.NodeInfo, ctx *grammar.Context) ([]byte, bool) {
	if ctx.Grammar == nil {
		return nil, false
	}
	names := ctx.Grammar.RuleNames()
	kind, ok := generate.Choose(s, names)
	if !ok || kind == node.Kind {
		return nil, false
	}
	gen := grammar.NewGenerator(ctx, s.RuleUsage)
	out, err := gen.Generate(kind, s.Rand)
	if err != nil {
		return nil, false
	}
	return out, true
}

// truncateTerminal keeps a random prefix of a terminal node.
func truncateTerminal(s *generate.State, doc *textdocument.Document, node textdocument.NodeInfo, _ *grammar.Context) ([]byte, bool) {
	text := doc.Text(node.Range)
	if len(text) < 2 {
		return nil, false
	}
	keep := s.Rand.IntN(len(text))
	out := make([]byte, keep)
	copy(out, text[:keep])
	return out, true
}

// DocumentMutators builds the grammar-aware mutation table. The correct-
// code mutations are repeated to weight them, matching how often they are
// useful relative to the error-producing ones.
func DocumentMutators(config generate.Config) []Mutator {
	removeComment := &replaceNode{name: "remove-comment", selector: commentNode, generate: emptyReplacement}
	mutators := []Mutator{
		&replaceNode{name: "replace-node/mined-fragment", selector: anyNode, generate: minedFragment},
		&replaceNode{name: "replace-node/mined-fragment", selector: anyNode, generate: minedFragment},
		&replaceNode{name: "replace-node/expand-grammar", selector: anyNode, generate: expandGrammar},
		&replaceNode{name: "replace-node/expand-grammar", selector: anyNode, generate: expandGrammar},
		&replaceNode{name: "replace-node/expand-grammar", selector: anyNode, generate: expandGrammar},
		&replaceNode{name: "replace-node/expand-grammar", selector: anyNode, generate: expandGrammar},
		removeComment,
		removeComment,
		removeComment,
	}
	if config.InvalidCode {
		mutators = append(mutators,
			&replaceNode{name: "recover-error-node", selector: errorNode, generate: minedFragment},
			&replaceNode{name: "replace-node/mismatched", selector: anyNode, generate: mismatchedNode},
			&replaceNode{name: "truncate-terminal", selector: terminalNode, generate: truncateTerminal},
			&replaceNode{name: "empty-terminal", selector: terminalNode, generate: emptyReplacement},
		)
	}
	return mutators
}
