package lspinput

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
)

// An edit replacing one line with three shifts positions at or after its
// start point by the row/column delta; earlier positions stay put.
func TestRebasePositions(t *testing.T) {
	in := Seed(grammar.LangC)
	uri := AbstractURI("main.c")
	in.Messages = []lsp.Message{
		hoverAt(uri, 0),                       // before the edit
		hoverAt(AbstractURI("other.c"), 5),    // different document
		hoverAt(uri, 5),                       // after the edit
	}
	in.Messages[0].Positions()[0].Character = 1
	in.Messages[2].Positions()[0].Character = 7

	edit := tree_sitter.InputEdit{
		StartPosition:  tree_sitter.Point{Row: 2, Column: 0},
		OldEndPosition: tree_sitter.Point{Row: 2, Column: 4},
		NewEndPosition: tree_sitter.Point{Row: 4, Column: 2},
	}
	in.Rebase(uri, edit)

	// Strictly before: unchanged.
	assert.EqualValues(t, 0, in.Messages[0].Positions()[0].Line)
	assert.EqualValues(t, 1, in.Messages[0].Positions()[0].Character)
	// Other document: unchanged.
	assert.EqualValues(t, 5, in.Messages[1].Positions()[0].Line)
	// At or after: shifted by (Δrow=2, Δcol=-2).
	assert.EqualValues(t, 7, in.Messages[2].Positions()[0].Line)
	assert.EqualValues(t, 5, in.Messages[2].Positions()[0].Character)
}

func TestRebaseRanges(t *testing.T) {
	in := Seed(grammar.LangC)
	uri := AbstractURI("main.c")
	in.Messages = []lsp.Message{
		lsp.NewMessage(lsp.KindInlayHint, &lsp.InlayHintParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 0},
				End:   lsp.Position{Line: 3, Character: 2},
			},
		}),
	}
	edit := tree_sitter.InputEdit{
		StartPosition:  tree_sitter.Point{Row: 1, Column: 0},
		OldEndPosition: tree_sitter.Point{Row: 1, Column: 1},
		NewEndPosition: tree_sitter.Point{Row: 2, Column: 1},
	}
	in.Rebase(uri, edit)

	r := in.Messages[0].Ranges()[0]
	require.NotNil(t, r)
	// Start is before the edit, end is after: endpoint-wise rebase.
	assert.EqualValues(t, 0, r.Start.Line)
	assert.EqualValues(t, 4, r.End.Line)
}

func TestRebaseClampsAtZero(t *testing.T) {
	in := Seed(grammar.LangC)
	uri := AbstractURI("main.c")
	in.Messages = []lsp.Message{hoverAt(uri, 1)}

	// A shrinking edit with a negative column delta larger than the
	// position's column.
	edit := tree_sitter.InputEdit{
		StartPosition:  tree_sitter.Point{Row: 1, Column: 0},
		OldEndPosition: tree_sitter.Point{Row: 1, Column: 9},
		NewEndPosition: tree_sitter.Point{Row: 1, Column: 0},
	}
	in.Rebase(uri, edit)
	assert.EqualValues(t, 0, in.Messages[0].Positions()[0].Character)
}
