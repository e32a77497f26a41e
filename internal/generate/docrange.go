package generate

import (
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// RangeSelector picks a range inside (or deliberately outside) a document.
type RangeSelector func(s *State, doc *textdocument.Document) lsp.Range

func wholeRange(doc *textdocument.Document) lsp.Range {
	lines := doc.Lines()
	last := len(lines) - 1
	return lsp.Range{
		End: lsp.Position{Line: uint32(last), Character: uint32(len(lines[last]))},
	}
}

// WholeDocumentRange spans the entire document.
func WholeDocumentRange(_ *State, doc *textdocument.Document) lsp.Range {
	return wholeRange(doc)
}

// RandomRange picks an ordered random line/column pair.
func RandomRange(s *State, doc *textdocument.Document) lsp.Range {
	lines := doc.Lines()
	startLine := s.Rand.IntN(len(lines))
	endLine := startLine
	if rest := len(lines) - startLine; rest > 1 {
		endLine = startLine + s.Rand.IntN(rest)
	}
	colIn := func(lineIdx int) uint32 {
		if n := len(lines[lineIdx]); n > 0 {
			return uint32(s.Rand.IntN(n + 1))
		}
		return 0
	}
	start := lsp.Position{Line: uint32(startLine), Character: colIn(startLine)}
	end := lsp.Position{Line: uint32(endLine), Character: colIn(endLine)}
	if endLine == startLine && end.Character < start.Character {
		start.Character, end.Character = end.Character, start.Character
	}
	return lsp.Range{Start: start, End: end}
}

// SubtreeRange spans a randomly chosen parse-tree node.
func SubtreeRange(s *State, doc *textdocument.Document) lsp.Range {
	nodes := doc.CollectNodes(nil)
	info, ok := Choose(s, nodes)
	if !ok {
		return wholeRange(doc)
	}
	return lsp.Range{
		Start: lsp.Position{Line: uint32(info.Range.StartPoint.Row), Character: uint32(info.Range.StartPoint.Column)},
		End:   lsp.Position{Line: uint32(info.Range.EndPoint.Row), Character: uint32(info.Range.EndPoint.Column)},
	}
}

// AfterEndRange starts at the end of the file and runs past it.
func AfterEndRange(_ *State, doc *textdocument.Document) lsp.Range {
	whole := wholeRange(doc)
	return lsp.Range{
		Start: whole.End,
		End:   lsp.Position{Line: 65536, Character: whole.End.Character},
	}
}

// InvertedRange has end before start.
func InvertedRange(_ *State, doc *textdocument.Document) lsp.Range {
	whole := wholeRange(doc)
	return lsp.Range{Start: whole.End, End: whole.Start}
}

func rangeSelectors(config Config) []RangeSelector {
	if config.InvalidRanges {
		return []RangeSelector{
			WholeDocumentRange, RandomRange, RandomRange,
			SubtreeRange, AfterEndRange, InvertedRange,
		}
	}
	return []RangeSelector{
		WholeDocumentRange, RandomRange, RandomRange, RandomRange,
		SubtreeRange, SubtreeRange,
	}
}

// DocRange generates a ⟨document identifier, range⟩ pair.
func DocRange(s *State, in *lspinput.Input) (lsp.TextDocumentIdentifier, lsp.Range, error) {
	ref, err := ChooseDocument(s, in)
	if err != nil {
		return lsp.TextDocumentIdentifier{}, lsp.Range{}, err
	}
	selector, _ := Choose(s, rangeSelectors(s.Config))
	return lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI(ref.Path)},
		selector(s, ref.Document), nil
}
