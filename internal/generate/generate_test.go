package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

func newState() *State {
	return NewState(99, grammar.NewContextLookup(), DefaultConfig())
}

func TestChooseDocument(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangC)
	ref, err := ChooseDocument(s, in)
	require.NoError(t, err)
	assert.Equal(t, "main.c", ref.Path)

	empty := lspinput.New(lspinput.NewWorkspace())
	_, err = ChooseDocument(s, empty)
	assert.ErrorIs(t, err, ErrNothingGenerated)
}

func TestPositionSelectors(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangC)
	ref, err := ChooseDocument(s, in)
	require.NoError(t, err)
	doc := ref.Document
	lines := doc.Lines()

	for i := 0; i < 32; i++ {
		pos, err := TerminalStartPosition(s, doc)
		require.NoError(t, err)
		assert.Less(t, int(pos.Line), len(lines))

		pos, err = ValidPosition(s, doc)
		require.NoError(t, err)
		require.Less(t, int(pos.Line), len(lines))
		assert.LessOrEqual(t, int(pos.Character), len(lines[pos.Line]))
	}
}

func TestHighlightPosition(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangGo)
	ref, err := ChooseDocument(s, in)
	require.NoError(t, err)

	found := false
	for i := 0; i < 32 && !found; i++ {
		if _, err := HighlightPosition(s, ref.Document); err == nil {
			found = true
		}
	}
	assert.True(t, found, "the Go seed has identifiers to capture")
}

func TestDocPositionEmitsAbstractURI(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangRust)
	params, err := DocPosition(s, in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params.TextDocument.URI, "lsp-fuzz://"))
}

func TestRangeSelectors(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangC)
	ref, err := ChooseDocument(s, in)
	require.NoError(t, err)
	doc := ref.Document

	whole := WholeDocumentRange(s, doc)
	assert.Equal(t, lsp.Position{}, whole.Start)

	inverted := InvertedRange(s, doc)
	assert.True(t, inverted.Start.Line > inverted.End.Line ||
		(inverted.Start.Line == inverted.End.Line && inverted.Start.Character >= inverted.End.Character))

	after := AfterEndRange(s, doc)
	assert.EqualValues(t, 65536, after.End.Line)

	for i := 0; i < 16; i++ {
		r := RandomRange(s, doc)
		assert.LessOrEqual(t, r.Start.Line, r.End.Line)
	}
}

func TestGenerateStringFallsBack(t *testing.T) {
	s := newState()
	in := lspinput.Seed(grammar.LangC)
	s.Tokens = [][]byte{[]byte("tok"), {0xff, 0xfe}}

	seen := map[string]bool{}
	for i := 0; i < 128; i++ {
		text, err := GenerateString(s, in)
		require.NoError(t, err)
		seen[text] = true
		assert.NotEqual(t, string([]byte{0xff, 0xfe}), text, "invalid UTF-8 tokens are filtered")
	}
	assert.True(t, seen[""], "empty default must appear")
	assert.True(t, seen["tok"], "dictionary tokens must appear")
}

func TestFragmentSampling(t *testing.T) {
	s := newState()
	s.Fragments = &lspinput.ResponseFragments{
		Commands: []lsp.Command{{Title: "served", Command: "from.server"}},
	}
	assert.Equal(t, "from.server", FragmentCommand(s).Command)

	s.Fragments = nil
	assert.Equal(t, "noop", FragmentCommand(s).Command, "fallback without metadata")

	s.Config.FeedbackFragments = false
	s.Fragments = &lspinput.ResponseFragments{
		Commands: []lsp.Command{{Command: "ignored"}},
	}
	assert.Equal(t, "noop", FragmentCommand(s).Command, "config disables feedback sampling")
}

func TestEveryKindGeneratorProducesMatchingParams(t *testing.T) {
	s := newState()
	s.Fragments = &lspinput.ResponseFragments{}
	in := lspinput.Seed(grammar.LangC)

	for _, kind := range SynthesizableKinds() {
		for _, gen := range ForKind(kind) {
			params, err := gen(s, in)
			if err != nil {
				assert.ErrorIs(t, err, ErrNothingGenerated, "kind %s", kind.Method)
				continue
			}
			msg := lsp.NewMessage(kind, params)
			_, jsonErr := msg.MarshalJSON()
			assert.NoError(t, jsonErr, "kind %s params must serialize", kind.Method)
		}
	}
}

func TestOptional(t *testing.T) {
	s := newState()
	some, none := 0, 0
	for i := 0; i < 1000; i++ {
		if Optional(s, 7) == nil {
			none++
		} else {
			some++
		}
	}
	assert.Greater(t, some, none, "presence dominates")
	assert.Positive(t, none, "omission occurs")
}
