package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFraming(t *testing.T) {
	msg := NewRequest(1, "initialize", json.RawMessage(`{"processId":null}`))
	frame, err := msg.Encode()
	require.NoError(t, err)

	header, body, found := bytes.Cut(frame, []byte("\r\n\r\n"))
	require.True(t, found, "header block must terminate with CRLFCRLF")
	assert.Equal(t, fmt.Sprintf("Content-Length: %d", len(body)), string(header))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "initialize", decoded["method"])
	assert.Equal(t, float64(1), decoded["id"])
}

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		NewRequest(7, "textDocument/hover", json.RawMessage(`{"position":{"line":1,"character":2}}`)),
		NewNotification("exit", nil),
		NewNotification("textDocument/didOpen", json.RawMessage(`{"textDocument":{"uri":"lsp-fuzz://a.c"}}`)),
	}
	var stream bytes.Buffer
	for _, msg := range messages {
		frame, err := msg.Encode()
		require.NoError(t, err)
		stream.Write(frame)
	}

	reader := bufio.NewReader(&stream)
	for _, want := range messages {
		got, err := Decode(reader)
		require.NoError(t, err)
		assert.Equal(t, want.Method, got.Method)
		if want.ID == nil {
			assert.Nil(t, got.ID)
		} else {
			require.NotNil(t, got.ID)
			assert.Equal(t, *want.ID, *got.ID)
		}
		assert.JSONEq(t, string(orEmpty(want.Params)), string(orEmpty(got.Params)))
	}
	_, err := Decode(reader)
	assert.ErrorIs(t, err, io.EOF)
}

func orEmpty(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return json.RawMessage("null")
	}
	return raw
}

func TestDecodeRejectsMissingLength(t *testing.T) {
	reader := bufio.NewReader(bytes.NewReader([]byte("Content-Type: json\r\n\r\n{}")))
	_, err := Decode(reader)
	assert.Error(t, err)
}

func TestDecodeRejectsBareLF(t *testing.T) {
	reader := bufio.NewReader(bytes.NewReader([]byte("Content-Length: 2\n\n{}")))
	_, err := Decode(reader)
	assert.Error(t, err)
}

func TestLocalize(t *testing.T) {
	params := json.RawMessage(`{
        "uri": "lsp-fuzz://path/to/file",
        "nested": {"uri": "lsp-fuzz://path/to/other"},
        "arr": ["lsp-fuzz://elem", {"uri": "lsp-fuzz://deep"}],
        "untouched": "file:///already/concrete"
    }`)
	out, err := Localize(params, "file:///tmp/ws/")
	require.NoError(t, err)
	assert.JSONEq(t, `{
        "uri": "file:///tmp/ws/path/to/file",
        "nested": {"uri": "file:///tmp/ws/path/to/other"},
        "arr": ["file:///tmp/ws/elem", {"uri": "file:///tmp/ws/deep"}],
        "untouched": "file:///already/concrete"
    }`, string(out))
	assert.NotContains(t, string(out), AbstractScheme)
}

func TestLocalizeRequiresTrailingSlash(t *testing.T) {
	_, err := Localize(json.RawMessage(`{}`), "file:///tmp/ws")
	assert.Error(t, err)
}
