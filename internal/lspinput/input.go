package lspinput

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.lsp.dev/uri"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lsp/jsonrpc"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// MaxMessages caps the stored message sequence length.
const MaxMessages = 128

// Input is one test case: a workspace plus an ordered message sequence.
// Every URI inside Messages uses the abstract lsp-fuzz:// scheme and
// resolves to a workspace path.
type Input struct {
	Workspace *Workspace
	Messages  []lsp.Message
}

func New(workspace *Workspace) *Input {
	return &Input{Workspace: workspace}
}

// Seed builds the default single-document input for a language.
func Seed(language grammar.Language) *Input {
	return New(SeedWorkspace(language))
}

// Clone deep-copies the input. Message params are copied through their
// JSON form, which is also how corpus entries round-trip.
func (in *Input) Clone() *Input {
	out := &Input{Workspace: in.Workspace.Clone()}
	if len(in.Messages) == 0 {
		return out
	}
	data, err := json.Marshal(in.Messages)
	if err != nil {
		panic(fmt.Sprintf("lspinput: cloning messages: %v", err))
	}
	if err := json.Unmarshal(data, &out.Messages); err != nil {
		panic(fmt.Sprintf("lspinput: cloning messages: %v", err))
	}
	return out
}

// Len is the scheduler-facing size: message count plus workspace bytes.
func (in *Input) Len() int {
	return len(in.Messages) + in.Workspace.ByteLen()
}

// AbstractURI returns the lsp-fuzz:// URI for a workspace-relative path.
func AbstractURI(path string) string {
	return jsonrpc.AbstractScheme + path
}

// AbstractToPath strips the abstract scheme, returning the workspace path.
func AbstractToPath(abstract string) (string, bool) {
	return strings.CutPrefix(abstract, jsonrpc.AbstractScheme)
}

// DocumentFor resolves an abstract URI mentioned in a message to the
// workspace document it addresses.
func (in *Input) DocumentFor(abstractURI string) (*textdocument.Document, bool) {
	path, ok := AbstractToPath(abstractURI)
	if !ok {
		return nil, false
	}
	return in.Workspace.Lookup(path)
}

// WorkspaceURI builds the concrete file:// URI (with trailing slash) for a
// materialised workspace directory.
func WorkspaceURI(workspaceDir string) string {
	u := string(uri.File(workspaceDir))
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// RequestBytes serializes the full session byte stream for the target:
// Initialize, Initialized, one DidOpen per document, the stored messages,
// Shutdown, Exit. Ids 0 and 1 go to Initialize and Shutdown; stored
// requests are numbered monotonically from 2.
func (in *Input) RequestBytes(workspaceDir string) ([]byte, error) {
	workspaceURI := WorkspaceURI(workspaceDir)

	var buf bytes.Buffer
	emit := func(msg jsonrpc.Message) error {
		frame, err := msg.Encode()
		if err != nil {
			return err
		}
		buf.Write(frame)
		return nil
	}

	initParams, err := json.Marshal(lsp.InitializeParams{
		Capabilities: lsp.ClientCapabilities,
		WorkspaceFolders: []lsp.WorkspaceFolder{{
			URI:  strings.TrimSuffix(workspaceURI, "/"),
			Name: "workspace",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding initialize params: %w", err)
	}
	if err := emit(jsonrpc.NewRequest(0, "initialize", initParams)); err != nil {
		return nil, err
	}
	if err := emit(jsonrpc.NewNotification("initialized", json.RawMessage("{}"))); err != nil {
		return nil, err
	}

	for _, ref := range in.Workspace.Documents() {
		openParams, err := json.Marshal(lsp.DidOpenTextDocumentParams{
			TextDocument: lsp.TextDocumentItem{
				URI:        AbstractURI(ref.Path),
				LanguageID: ref.Document.Language().LSPLanguageID(),
				Version:    1,
				Text:       string(ref.Document.Content()),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("encoding didOpen params: %w", err)
		}
		openParams, err = jsonrpc.Localize(openParams, workspaceURI)
		if err != nil {
			return nil, err
		}
		if err := emit(jsonrpc.NewNotification("textDocument/didOpen", openParams)); err != nil {
			return nil, err
		}
	}

	nextID := int64(2)
	for _, msg := range in.Messages {
		params, err := json.Marshal(msg.Params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", msg.Method(), err)
		}
		params, err = jsonrpc.Localize(params, workspaceURI)
		if err != nil {
			return nil, err
		}
		var frame jsonrpc.Message
		if msg.IsRequest() {
			frame = jsonrpc.NewRequest(nextID, msg.Method(), params)
			nextID++
		} else {
			frame = jsonrpc.NewNotification(msg.Method(), params)
		}
		if err := emit(frame); err != nil {
			return nil, err
		}
	}

	if err := emit(jsonrpc.NewRequest(1, "shutdown", nil)); err != nil {
		return nil, err
	}
	if err := emit(jsonrpc.NewNotification("exit", nil)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inputJSON is the corpus serialization shape.
type inputJSON struct {
	Files    []fileJSON    `json:"files"`
	Messages []lsp.Message `json:"messages"`
}

type fileJSON struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  []byte `json:"content"`
}

func (in *Input) MarshalJSON() ([]byte, error) {
	out := inputJSON{Messages: in.Messages}
	for _, ref := range in.Workspace.Documents() {
		out.Files = append(out.Files, fileJSON{
			Path:     ref.Path,
			Language: ref.Document.Language().String(),
			Content:  ref.Document.Content(),
		})
	}
	return json.Marshal(&out)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var raw inputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in.Workspace = NewWorkspace()
	for _, file := range raw.Files {
		language, err := grammar.ParseLanguage(file.Language)
		if err != nil {
			return fmt.Errorf("input file %s: %w", file.Path, err)
		}
		doc := textdocument.New(language, file.Content)
		if err := in.Workspace.AddDocument(file.Path, doc); err != nil {
			return err
		}
	}
	in.Messages = raw.Messages
	return nil
}
