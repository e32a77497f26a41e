package lspinput

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/lsp"
)

// Rebase shifts every message coordinate referring into the edited
// document: positions at or after the edit's start point move by the
// edit's row/column delta, positions strictly before stay untouched.
// Ranges are rebased endpoint-wise.
func (in *Input) Rebase(abstractURI string, edit tree_sitter.InputEdit) {
	for i := range in.Messages {
		msg := in.Messages[i]
		docURI, ok := msg.DocumentURI()
		if !ok || docURI != abstractURI {
			continue
		}
		for _, pos := range msg.Positions() {
			rebasePosition(pos, edit)
		}
		for _, r := range msg.Ranges() {
			rebasePosition(&r.Start, edit)
			rebasePosition(&r.End, edit)
		}
	}
}

func rebasePosition(pos *lsp.Position, edit tree_sitter.InputEdit) {
	start := edit.StartPosition
	if !atOrAfter(*pos, start) {
		return
	}
	deltaRows := int64(edit.NewEndPosition.Row) - int64(edit.OldEndPosition.Row)
	deltaCols := int64(edit.NewEndPosition.Column) - int64(edit.OldEndPosition.Column)
	pos.Line = clampU32(int64(pos.Line) + deltaRows)
	pos.Character = clampU32(int64(pos.Character) + deltaCols)
}

func atOrAfter(pos lsp.Position, point tree_sitter.Point) bool {
	if uint(pos.Line) != point.Row {
		return uint(pos.Line) > point.Row
	}
	return uint(pos.Character) >= point.Column
}

func clampU32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
