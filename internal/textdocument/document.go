// Package textdocument holds the mutable ⟨language, bytes, parse tree⟩
// triple the grammar-aware mutators operate on. The parse tree is kept
// consistent with the content across every edit.
package textdocument

import (
	"bytes"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
)

const lineSep = byte('\n')

// Document owns its content and parse tree. All mutation goes through
// Splice, which refreshes the tree atomically; callers must not hold nodes
// across edits.
type Document struct {
	language grammar.Language
	content  []byte
	tree     *tree_sitter.Tree
}

// New parses the content and returns a document. Invalid input produces a
// tree containing ERROR nodes rather than a failure.
func New(language grammar.Language, content []byte) *Document {
	doc := &Document{language: language, content: content}
	doc.reparse(nil)
	return doc
}

func (d *Document) reparse(oldTree *tree_sitter.Tree) {
	parser := d.language.NewParser()
	defer parser.Close()
	tree := parser.Parse(d.content, oldTree)
	if oldTree != nil {
		oldTree.Close()
	}
	d.tree = tree
}

func (d *Document) Language() grammar.Language { return d.language }

// Content returns the document bytes. Callers must not mutate the slice.
func (d *Document) Content() []byte { return d.content }

func (d *Document) Len() int { return len(d.content) }

// Tree returns the current parse tree. The tree is invalidated by the next
// Splice.
func (d *Document) Tree() *tree_sitter.Tree { return d.tree }

// Lines splits the content on '\n'. A trailing newline yields a final
// empty line, matching how LSP positions address the file.
func (d *Document) Lines() [][]byte {
	return bytes.Split(d.content, []byte{lineSep})
}

// Clone deep-copies the document, reparsing the copied content.
func (d *Document) Clone() *Document {
	content := make([]byte, len(d.content))
	copy(content, d.content)
	return New(d.language, content)
}

// Splice replaces the byte range of a node with new content, edits the
// parse tree, and incrementally reparses. The returned InputEdit lets the
// caller rebase any coordinates that referred into this document.
func (d *Document) Splice(nodeRange tree_sitter.Range, replacement []byte) tree_sitter.InputEdit {
	edit := EditForReplacement(nodeRange, replacement)

	updated := make([]byte, 0, len(d.content)-int(nodeRange.EndByte-nodeRange.StartByte)+len(replacement))
	updated = append(updated, d.content[:nodeRange.StartByte]...)
	updated = append(updated, replacement...)
	updated = append(updated, d.content[nodeRange.EndByte:]...)
	d.content = updated

	d.tree.Edit(&edit)
	d.reparse(d.tree)
	return edit
}

// EditForReplacement builds the InputEdit describing the replacement of a
// node range by new bytes.
func EditForReplacement(nodeRange tree_sitter.Range, replacement []byte) tree_sitter.InputEdit {
	deltaRows, deltaCols := MeasureFragment(replacement)
	newEnd := tree_sitter.Point{
		Row:    nodeRange.StartPoint.Row + uint(deltaRows),
		Column: uint(deltaCols),
	}
	if deltaRows == 0 {
		newEnd.Column = nodeRange.StartPoint.Column + uint(deltaCols)
	}
	return tree_sitter.InputEdit{
		StartByte:      nodeRange.StartByte,
		OldEndByte:     nodeRange.EndByte,
		NewEndByte:     nodeRange.StartByte + uint(len(replacement)),
		StartPosition:  nodeRange.StartPoint,
		OldEndPosition: nodeRange.EndPoint,
		NewEndPosition: newEnd,
	}
}

// MeasureFragment returns the row/column footprint of a byte fragment:
// rows is the number of line separators, cols the bytes after the last one.
func MeasureFragment(fragment []byte) (rows, cols int) {
	for i := len(fragment) - 1; i >= 0; i-- {
		if fragment[i] == lineSep {
			rows++
		}
		if rows == 0 {
			cols++
		}
	}
	return rows, cols
}
