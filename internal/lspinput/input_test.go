package lspinput

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lsp/jsonrpc"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

func TestValidSegment(t *testing.T) {
	assert.True(t, ValidSegment("main.c"))
	assert.True(t, ValidSegment("söurce"))
	for _, invalid := range []string{"", ".", "..", "a/b", "a\x00b", string([]byte{0xff, 0xfe})} {
		assert.False(t, ValidSegment(invalid), "%q must be rejected", invalid)
	}
}

func TestWorkspaceTree(t *testing.T) {
	w := NewWorkspace()
	require.NoError(t, w.AddDocument("src/main.c", textdocument.New(grammar.LangC, []byte("int x;"))))
	require.NoError(t, w.AddDocument("src/util.c", textdocument.New(grammar.LangC, []byte("int y;"))))
	require.NoError(t, w.AddDocument("README", textdocument.New(grammar.LangC, []byte("hi"))))

	assert.Error(t, w.AddDocument("src/main.c", textdocument.New(grammar.LangC, []byte("dup"))))
	assert.Error(t, w.AddDocument("src/main.c/nested", textdocument.New(grammar.LangC, []byte("x"))))
	assert.Error(t, w.AddDocument("../escape", textdocument.New(grammar.LangC, []byte("x"))))

	assert.Equal(t, 3, w.Len())
	paths := make([]string, 0, 3)
	w.Walk(func(path string, _ *textdocument.Document) { paths = append(paths, path) })
	assert.Equal(t, []string{"src/main.c", "src/util.c", "README"}, paths)

	doc, ok := w.Lookup("src/util.c")
	require.True(t, ok)
	assert.Equal(t, "int y;", string(doc.Content()))
	_, ok = w.Lookup("src/missing.c")
	assert.False(t, ok)
}

func TestWorkspaceHash(t *testing.T) {
	build := func(content string) *Workspace {
		w := NewWorkspace()
		require.NoError(t, w.AddDocument("main.c", textdocument.New(grammar.LangC, []byte(content))))
		return w
	}
	assert.Equal(t, build("int x;").Hash(), build("int x;").Hash())
	assert.NotEqual(t, build("int x;").Hash(), build("int y;").Hash())
}

func TestMaterialize(t *testing.T) {
	w := NewWorkspace()
	require.NoError(t, w.AddDocument("nested/dir/file.c", textdocument.New(grammar.LangC, []byte("int z;"))))
	dir := t.TempDir()
	require.NoError(t, w.Materialize(dir))
	data, err := os.ReadFile(dir + "/nested/dir/file.c")
	require.NoError(t, err)
	assert.Equal(t, "int z;", string(data))
}

func decodeStream(t *testing.T, payload []byte) []jsonrpc.Message {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(payload))
	var frames []jsonrpc.Message
	for {
		msg, err := jsonrpc.Decode(reader)
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, *msg)
	}
}

func hoverAt(uri string, line uint32) lsp.Message {
	return lsp.NewMessage(lsp.KindHover, &lsp.HoverParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			Position:     lsp.Position{Line: line},
		},
	})
}

func TestRequestBytesShape(t *testing.T) {
	in := Seed(grammar.LangC)
	in.Messages = append(in.Messages,
		hoverAt(AbstractURI("main.c"), 0),
		lsp.NewMessage(lsp.KindSetTrace, &lsp.SetTraceParams{Value: "off"}),
		hoverAt(AbstractURI("main.c"), 1),
	)

	payload, err := in.RequestBytes("/tmp/ws")
	require.NoError(t, err)
	frames := decodeStream(t, payload)

	// initialize, initialized, didOpen, 3 stored messages, shutdown, exit.
	require.Len(t, frames, 8)
	assert.Equal(t, "initialize", frames[0].Method)
	require.NotNil(t, frames[0].ID)
	assert.EqualValues(t, 0, *frames[0].ID)
	assert.Equal(t, "initialized", frames[1].Method)
	assert.Equal(t, "textDocument/didOpen", frames[2].Method)

	assert.Equal(t, "textDocument/hover", frames[3].Method)
	require.NotNil(t, frames[3].ID)
	assert.EqualValues(t, 2, *frames[3].ID)
	assert.Equal(t, "$/setTrace", frames[4].Method)
	assert.Nil(t, frames[4].ID)
	require.NotNil(t, frames[5].ID)
	assert.EqualValues(t, 3, *frames[5].ID, "request ids are monotonic from 2")

	assert.Equal(t, "shutdown", frames[6].Method)
	require.NotNil(t, frames[6].ID)
	assert.EqualValues(t, 1, *frames[6].ID)
	assert.Equal(t, "exit", frames[7].Method)
}

// The abstract scheme must be fully rewritten to the workspace URI.
func TestRequestBytesRewritesURIs(t *testing.T) {
	in := Seed(grammar.LangC)
	in.Messages = append(in.Messages, hoverAt(AbstractURI("main.c"), 0))

	payload, err := in.RequestBytes("/tmp/ws")
	require.NoError(t, err)
	text := string(payload)
	assert.Contains(t, text, `"uri":"file:///tmp/ws/main.c"`)
	assert.NotContains(t, text, jsonrpc.AbstractScheme)
}

// Reordering messages changes only per-frame content order and the ids,
// not the framing shape.
func TestRequestBytesReorder(t *testing.T) {
	base := Seed(grammar.LangC)
	base.Messages = []lsp.Message{
		hoverAt(AbstractURI("main.c"), 0),
		lsp.NewMessage(lsp.KindWorkspaceSymbol, &lsp.WorkspaceSymbolParams{Query: "q"}),
	}
	reordered := base.Clone()
	reordered.Messages[0], reordered.Messages[1] = reordered.Messages[1], reordered.Messages[0]

	basePayload, err := base.RequestBytes("/tmp/ws")
	require.NoError(t, err)
	reorderedPayload, err := reordered.RequestBytes("/tmp/ws")
	require.NoError(t, err)

	baseFrames := decodeStream(t, basePayload)
	reorderedFrames := decodeStream(t, reorderedPayload)
	require.Equal(t, len(baseFrames), len(reorderedFrames))

	assert.Equal(t, baseFrames[3].Method, reorderedFrames[4].Method)
	assert.Equal(t, baseFrames[4].Method, reorderedFrames[3].Method)
	// Ids stay monotonic over emission order regardless of content.
	assert.EqualValues(t, 2, *reorderedFrames[3].ID)
	assert.EqualValues(t, 3, *reorderedFrames[4].ID)
}

func TestInputJSONRoundTrip(t *testing.T) {
	in := Seed(grammar.LangRust)
	in.Messages = append(in.Messages, hoverAt(AbstractURI("main.rs"), 2))

	data, err := json.Marshal(in)
	require.NoError(t, err)
	var decoded Input
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, in.Workspace.Hash(), decoded.Workspace.Hash())
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "textDocument/hover", decoded.Messages[0].Method())
}

func TestCloneIsDeep(t *testing.T) {
	in := Seed(grammar.LangC)
	in.Messages = append(in.Messages, hoverAt(AbstractURI("main.c"), 5))
	clone := in.Clone()

	doc, _ := clone.Workspace.Lookup("main.c")
	doc.Splice(doc.TerminalRanges()[0], []byte("long"))
	clone.Messages[0].Positions()[0].Line = 99

	original, _ := in.Workspace.Lookup("main.c")
	assert.True(t, strings.HasPrefix(string(original.Content()), "int"))
	assert.EqualValues(t, 5, in.Messages[0].Positions()[0].Line)
}
