package feedback

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lspfuzz/internal/forkserver"
	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/observe"
)

func TestMaxMapFeedback(t *testing.T) {
	shared := make([]byte, 8)
	observer := observe.NewMapObserver(shared)
	feedback := NewMaxMapFeedback(observer)

	shared[1] = 1
	observer.PostExec()
	assert.True(t, feedback.IsInteresting(), "first hit is novel")

	observer.PostExec()
	assert.False(t, feedback.IsInteresting(), "same coverage is not novel")

	shared[1] = 200 // higher hitcount class on a known edge
	observer.PostExec()
	assert.True(t, feedback.IsInteresting())

	shared[1] = 0
	shared[5] = 1
	observer.PostExec()
	assert.True(t, feedback.IsInteresting(), "new edge is novel")
	assert.Equal(t, 2, feedback.CoveredEdges())
}

const crashLog = `==11==ERROR: AddressSanitizer: heap-use-after-free on address 0x1
    #0 0x10 in free_twice /src/a.c:10
    #1 0x20 in main /src/a.c:99
`

// S5: with ASan the second crash with the same stack is rejected; without
// ASan both are kept.
func TestCrashObjectiveDedup(t *testing.T) {
	backtrace := &observe.BacktraceObserver{}
	require.NoError(t, backtrace.Observe([]byte(crashLog)))

	withAsan := NewCrashObjective(true, backtrace)
	assert.True(t, withAsan.IsSolution(forkserver.ExitCrash))
	assert.False(t, withAsan.IsSolution(forkserver.ExitCrash), "same stack hash is a duplicate")
	assert.False(t, withAsan.IsSolution(forkserver.ExitOk))
	assert.False(t, withAsan.IsSolution(forkserver.ExitTimeout))

	withoutAsan := NewCrashObjective(false, backtrace)
	assert.True(t, withoutAsan.IsSolution(forkserver.ExitCrash))
	assert.True(t, withoutAsan.IsSolution(forkserver.ExitCrash), "without ASan every crash is kept")
}

func TestCrashObjectiveNewStack(t *testing.T) {
	backtrace := &observe.BacktraceObserver{}
	objective := NewCrashObjective(true, backtrace)

	require.NoError(t, backtrace.Observe([]byte(crashLog)))
	assert.True(t, objective.IsSolution(forkserver.ExitCrash))

	backtrace.PreExec()
	require.NoError(t, backtrace.Observe([]byte(
		"==12==ERROR: AddressSanitizer: SEGV on unknown address\n    #0 0x30 in elsewhere /src/b.c:3\n")))
	assert.True(t, objective.IsSolution(forkserver.ExitCrash), "a new stack is a new solution")
}

func publishDiagnostics(t *testing.T, observer *observe.ResponseObserver, code, source string) {
	t.Helper()
	observer.PreExec()
	body := `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///ws/main.c","diagnostics":[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}},"code":"` + code + `","source":"` + source + `","message":"m"}]}}`
	frame := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	observer.Capture([]byte(frame))
	require.NotEmpty(t, observer.Messages())
}

// Prop 6: once a pair is seen, it is seen forever.
func TestDiagnosticNovelty(t *testing.T) {
	observer := &observe.ResponseObserver{}
	novelty := NewDiagnosticNovelty(observer)

	publishDiagnostics(t, observer, "E0001", "compiler")
	assert.True(t, novelty.IsInteresting())
	for i := 0; i < 10; i++ {
		publishDiagnostics(t, observer, "E0001", "compiler")
		assert.False(t, novelty.IsInteresting(), "the filter never regresses")
	}
	publishDiagnostics(t, observer, "E0002", "compiler")
	assert.True(t, novelty.IsInteresting())
}

func opsInput(t *testing.T) *lspinput.Input {
	t.Helper()
	in := lspinput.Seed(grammar.LangC)
	in.Messages = []lsp.Message{lsp.NewMessage(lsp.KindHover, &lsp.HoverParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI("main.c")},
			Position:     lsp.Position{Line: 0, Character: 4},
		},
	})}
	return in
}

func TestOperationContextNovelty(t *testing.T) {
	novelty := NewOperationContextNovelty()
	in := opsInput(t)

	require.NotEmpty(t, OperationContextTriples(in))
	assert.True(t, novelty.IsInteresting(in))
	assert.False(t, novelty.IsInteresting(in), "same ⟨language, path, method⟩ triple")

	// Same position, different method: novel again.
	in.Messages[0] = lsp.NewMessage(lsp.KindDefinition, &lsp.DefinitionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI("main.c")},
			Position:     lsp.Position{Line: 0, Character: 4},
		},
	})
	assert.True(t, novelty.IsInteresting(in))
}

func TestCollectFragments(t *testing.T) {
	in := opsInput(t)
	observer := &observe.ResponseObserver{}
	observer.PreExec()

	// Response to the stored hover (id 2): hover results are not collected.
	body := `{"jsonrpc":"2.0","id":2,"result":null}`
	observer.Capture([]byte("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body))
	fragments := CollectFragments(in, observer)
	assert.True(t, fragments.Empty())

	// Now a code-action request whose response carries both shapes.
	in.Messages = append(in.Messages, lsp.NewMessage(lsp.KindCodeAction, &lsp.CodeActionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lspinput.AbstractURI("main.c")},
	}))
	observer.PreExec()
	body = `{"jsonrpc":"2.0","id":3,"result":[` +
		`{"title":"fix it","kind":"quickfix"},` +
		`{"title":"run","command":"server.run"}]}`
	observer.Capture([]byte("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body))
	fragments = CollectFragments(in, observer)
	require.Len(t, fragments.CodeActions, 1)
	assert.Equal(t, "fix it", fragments.CodeActions[0].Title)
	require.Len(t, fragments.Commands, 1)
	assert.Equal(t, "server.run", fragments.Commands[0].Command)

	// Diagnostics fold in as ⟨uri, range⟩ refs.
	observer.PreExec()
	body = `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":` +
		`{"uri":"file:///ws/main.c","diagnostics":[{"range":{"start":{"line":1,"character":0},"end":{"line":1,"character":5}},"message":"bad"}]}}`
	observer.Capture([]byte("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body))
	fragments = CollectFragments(in, observer)
	require.Len(t, fragments.Diagnostics, 1)
	assert.EqualValues(t, 1, fragments.Diagnostics[0].Range.Start.Line)
}
