package generate

import (
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// ChooseDocument picks a document uniformly from the workspace.
func ChooseDocument(s *State, in *lspinput.Input) (lspinput.DocumentRef, error) {
	ref, ok := Choose(s, in.Workspace.Documents())
	if !ok {
		return lspinput.DocumentRef{}, ErrNothingGenerated
	}
	return ref, nil
}

// PositionSelector picks a position inside (or deliberately outside) a
// document.
type PositionSelector func(s *State, doc *textdocument.Document) (lsp.Position, error)

// TerminalStartPosition steers toward syntactic landmarks: the start of a
// random leaf node.
func TerminalStartPosition(s *State, doc *textdocument.Document) (lsp.Position, error) {
	r, ok := Choose(s, doc.TerminalRanges())
	if !ok {
		return lsp.Position{}, ErrNothingGenerated
	}
	return lsp.Position{Line: uint32(r.StartPoint.Row), Character: uint32(r.StartPoint.Column)}, nil
}

// HighlightPosition picks a position inside a node captured by the
// highlight query.
func HighlightPosition(s *State, doc *textdocument.Document) (lsp.Position, error) {
	groups := []string{"identifier", "function.name", "string", "comment"}
	group, _ := Choose(s, groups)
	ranges := doc.CapturedRanges(group)
	r, ok := Choose(s, ranges)
	if !ok {
		return lsp.Position{}, ErrNothingGenerated
	}
	return lsp.Position{Line: uint32(r.StartPoint.Row), Character: uint32(r.StartPoint.Column)}, nil
}

// ValidPosition picks a uniformly random in-bounds (line, col).
func ValidPosition(s *State, doc *textdocument.Document) (lsp.Position, error) {
	lines := doc.Lines()
	lineIdx := s.Rand.IntN(len(lines))
	col := 0
	if n := len(lines[lineIdx]); n > 0 {
		col = s.Rand.IntN(n + 1)
	}
	return lsp.Position{Line: uint32(lineIdx), Character: uint32(col)}, nil
}

// invalidPositionBound caps out-of-bounds coordinates.
const invalidPositionBound = 1024

// RandomPosition generates a possibly out-of-bounds position up to the
// bound; only registered when invalid positions are enabled.
func RandomPosition(s *State, _ *textdocument.Document) (lsp.Position, error) {
	return lsp.Position{
		Line:      uint32(s.Rand.IntN(invalidPositionBound + 1)),
		Character: uint32(s.Rand.IntN(invalidPositionBound + 1)),
	}, nil
}

// positionSelectors weights terminal-start and highlight positions over
// plain random ones, with the out-of-bounds path gated by config.
func positionSelectors(config Config) []PositionSelector {
	selectors := []PositionSelector{
		ValidPosition,
		TerminalStartPosition, TerminalStartPosition, TerminalStartPosition,
		HighlightPosition, HighlightPosition, HighlightPosition,
	}
	if config.InvalidPositions {
		selectors = append(selectors, RandomPosition)
	}
	return selectors
}

// DocPosition generates a ⟨document identifier, position⟩ pair.
func DocPosition(s *State, in *lspinput.Input) (lsp.TextDocumentPositionParams, error) {
	ref, err := ChooseDocument(s, in)
	if err != nil {
		return lsp.TextDocumentPositionParams{}, err
	}
	selector, _ := Choose(s, positionSelectors(s.Config))
	pos, err := selector(s, ref.Document)
	if err != nil {
		return lsp.TextDocumentPositionParams{}, err
	}
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI(ref.Path)},
		Position:     pos,
	}, nil
}

// DocIdentifier generates a bare text document identifier.
func DocIdentifier(s *State, in *lspinput.Input) (lsp.TextDocumentIdentifier, error) {
	ref, err := ChooseDocument(s, in)
	if err != nil {
		return lsp.TextDocumentIdentifier{}, err
	}
	return lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI(ref.Path)}, nil
}
