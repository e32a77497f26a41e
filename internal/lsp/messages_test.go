package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRegistry(t *testing.T) {
	assert.Same(t, KindHover, KindByMethod("textDocument/hover"))
	assert.Nil(t, KindByMethod("textDocument/unknown"))

	seen := make(map[string]bool, len(Kinds))
	for _, kind := range Kinds {
		assert.False(t, seen[kind.Method], "duplicate method %s", kind.Method)
		seen[kind.Method] = true
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := NewMessage(KindHover, &HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: "lsp-fuzz://main.c"},
			Position:     Position{Line: 3, Character: 14},
		},
	})
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Same(t, KindHover, decoded.Kind)
	assert.Equal(t, original.Params, decoded.Params)
}

func TestMessageSequenceRoundTrip(t *testing.T) {
	messages := []Message{
		NewMessage(KindDefinition, &DefinitionParams{
			TextDocumentPositionParams: TextDocumentPositionParams{
				TextDocument: TextDocumentIdentifier{URI: "lsp-fuzz://a.rs"},
				Position:     Position{Line: 1, Character: 1},
			},
		}),
		NewMessage(KindSetTrace, &SetTraceParams{Value: "verbose"}),
		NewMessage(KindInlayHint, &InlayHintParams{
			TextDocument: TextDocumentIdentifier{URI: "lsp-fuzz://a.rs"},
			Range:        Range{End: Position{Line: 2, Character: 0}},
		}),
	}
	data, err := json.Marshal(messages)
	require.NoError(t, err)

	var decoded []Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(messages))
	for i := range messages {
		assert.Equal(t, messages[i].Method(), decoded[i].Method())
		assert.Equal(t, messages[i].Params, decoded[i].Params)
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"method":"bogus/method","params":{}}`), &msg)
	assert.Error(t, err)
}

func TestInspectors(t *testing.T) {
	hover := NewMessage(KindHover, &HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: "lsp-fuzz://x.c"},
			Position:     Position{Line: 9, Character: 4},
		},
	})
	uri, ok := hover.DocumentURI()
	require.True(t, ok)
	assert.Equal(t, "lsp-fuzz://x.c", uri)
	require.Len(t, hover.Positions(), 1)
	assert.Empty(t, hover.Ranges())

	inlay := NewMessage(KindInlayHint, &InlayHintParams{
		TextDocument: TextDocumentIdentifier{URI: "lsp-fuzz://x.c"},
	})
	assert.Empty(t, inlay.Positions())
	assert.Len(t, inlay.Ranges(), 1)

	symbol := NewMessage(KindWorkspaceSymbol, &WorkspaceSymbolParams{Query: "q"})
	_, ok = symbol.DocumentURI()
	assert.False(t, ok)
}
