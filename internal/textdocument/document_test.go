package textdocument

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
)

func TestMeasureFragment(t *testing.T) {
	tests := []struct {
		fragment string
		rows     int
		cols     int
	}{
		{"hello", 0, 5},
		{"hello\nworld", 1, 5},
		{"hello\nworld\n", 2, 0},
		{"", 0, 0},
		{"hello\nworld\nrust", 2, 4},
	}
	for _, tc := range tests {
		rows, cols := MeasureFragment([]byte(tc.fragment))
		assert.Equal(t, tc.rows, rows, "rows of %q", tc.fragment)
		assert.Equal(t, tc.cols, cols, "cols of %q", tc.fragment)
	}
}

func TestLines(t *testing.T) {
	doc := New(grammar.LangRust, []byte("hello\nworld\nrust"))
	lines := doc.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "hello", string(lines[0]))
	assert.Equal(t, "rust", string(lines[2]))

	trailing := New(grammar.LangRust, []byte("hello\n"))
	require.Len(t, trailing.Lines(), 2)
	assert.Empty(t, trailing.Lines()[1])
}

// Replacing the string literal of a Rust print call with an empty string
// must leave a tree without ERROR nodes.
func TestSpliceStringLiteral(t *testing.T) {
	doc := New(grammar.LangRust, []byte(`fn main() { println!("x"); }`))

	var literal *tree_sitter.Range
	doc.Nodes(func(node *tree_sitter.Node) bool {
		if node.Kind() == "string_literal" {
			r := node.Range()
			literal = &r
			return false
		}
		return true
	})
	require.NotNil(t, literal, "the seed document must contain a string literal")

	doc.Splice(*literal, []byte{})
	assert.Equal(t, `fn main() { println!(); }`, string(doc.Content()))

	hasError := false
	doc.Nodes(func(node *tree_sitter.Node) bool {
		if node.IsError() || node.IsMissing() {
			hasError = true
			return false
		}
		return true
	})
	assert.False(t, hasError, "splice must not introduce ERROR nodes")
}

// After any sequence of splices the incrementally maintained tree must
// equal a fresh parse of the content.
func TestSpliceKeepsTreeConsistent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	doc := New(grammar.LangC, []byte("int main() {\n  int x = 1;\n  return x;\n}\n"))

	replacements := [][]byte{
		[]byte(""), []byte("y"), []byte("42"), []byte("foo(1, 2)"),
		[]byte("/* c */"), []byte("\n"), []byte("while (1) {}"),
	}
	for i := 0; i < 32; i++ {
		ranges := doc.TerminalRanges()
		require.NotEmpty(t, ranges)
		target := ranges[rng.IntN(len(ranges))]
		doc.Splice(target, replacements[rng.IntN(len(replacements))])

		fresh := New(doc.Language(), append([]byte(nil), doc.Content()...))
		require.Equal(t,
			fresh.Tree().RootNode().ToSexp(),
			doc.Tree().RootNode().ToSexp(),
			"iteration %d: incremental tree diverged from fresh parse", i)
	}
}

func TestTerminalRangesAndCaptures(t *testing.T) {
	doc := New(grammar.LangGo, []byte("package main\n\n// greet\nfunc main() {}\n"))
	assert.NotEmpty(t, doc.TerminalRanges())

	comments := doc.CapturedRanges("comment")
	require.Len(t, comments, 1)
	assert.Equal(t, "// greet", string(doc.Text(comments[0])))
}

func TestSmallestNodeAt(t *testing.T) {
	doc := New(grammar.LangC, []byte("int main() { return 0; }\n"))
	point := tree_sitter.Point{Row: 0, Column: 13}
	info, ok := doc.SmallestNodeAt(point, point)
	require.True(t, ok)
	assert.True(t, info.Terminal)
	assert.Equal(t, "return", info.Kind)
}
