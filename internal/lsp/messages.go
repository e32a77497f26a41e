package lsp

import (
	"encoding/json"
	"fmt"
)

// Kind describes one client→server method: its wire name, whether it is a
// request (carries an id) or a notification, and how to allocate its
// parameter type for decoding.
type Kind struct {
	Method    string
	Request   bool
	newParams func() any
}

// NewParams allocates a zero parameter value for this kind.
func (k *Kind) NewParams() any { return k.newParams() }

func request[P any](method string) *Kind {
	return &Kind{Method: method, Request: true, newParams: func() any { return new(P) }}
}

func notification[P any](method string) *Kind {
	return &Kind{Method: method, Request: false, newParams: func() any { return new(P) }}
}

// The closed set of message kinds the fuzzer can put into an input. The
// implicit Initialize/Initialized/DidOpen prelude and the Shutdown/Exit
// tail are emitted at serialization time and are not part of this list.
var (
	KindDidOpen    = notification[DidOpenTextDocumentParams]("textDocument/didOpen")
	KindDidChange  = notification[DidChangeTextDocumentParams]("textDocument/didChange")
	KindDidSave    = notification[DidSaveTextDocumentParams]("textDocument/didSave")
	KindDidClose   = notification[DidCloseTextDocumentParams]("textDocument/didClose")
	KindCompletion = request[CompletionParams]("textDocument/completion")
	KindCompletionResolve = request[CompletionItem]("completionItem/resolve")
	KindHover             = request[HoverParams]("textDocument/hover")
	KindSignatureHelp     = request[SignatureHelpParams]("textDocument/signatureHelp")
	KindDeclaration       = request[DeclarationParams]("textDocument/declaration")
	KindDefinition        = request[DefinitionParams]("textDocument/definition")
	KindTypeDefinition    = request[TypeDefinitionParams]("textDocument/typeDefinition")
	KindImplementation    = request[ImplementationParams]("textDocument/implementation")
	KindReferences        = request[ReferenceParams]("textDocument/references")
	KindDocumentHighlight = request[DocumentHighlightParams]("textDocument/documentHighlight")
	KindDocumentSymbol    = request[DocumentSymbolParams]("textDocument/documentSymbol")
	KindCodeAction        = request[CodeActionParams]("textDocument/codeAction")
	KindCodeActionResolve = request[CodeAction]("codeAction/resolve")
	KindCodeLens          = request[CodeLensParams]("textDocument/codeLens")
	KindCodeLensResolve   = request[CodeLens]("codeLens/resolve")
	KindDocumentLink      = request[DocumentLinkParams]("textDocument/documentLink")
	KindDocumentLinkResolve = request[DocumentLink]("documentLink/resolve")
	KindDocumentColor       = request[DocumentColorParams]("textDocument/documentColor")
	KindColorPresentation   = request[ColorPresentationParams]("textDocument/colorPresentation")
	KindFormatting          = request[DocumentFormattingParams]("textDocument/formatting")
	KindRangeFormatting     = request[DocumentRangeFormattingParams]("textDocument/rangeFormatting")
	KindOnTypeFormatting    = request[DocumentOnTypeFormattingParams]("textDocument/onTypeFormatting")
	KindRename              = request[RenameParams]("textDocument/rename")
	KindPrepareRename       = request[PrepareRenameParams]("textDocument/prepareRename")
	KindFoldingRange        = request[FoldingRangeParams]("textDocument/foldingRange")
	KindSelectionRange      = request[SelectionRangeParams]("textDocument/selectionRange")
	KindPrepareCallHierarchy = request[CallHierarchyPrepareParams]("textDocument/prepareCallHierarchy")
	KindCallHierarchyIncoming = request[CallHierarchyIncomingCallsParams]("callHierarchy/incomingCalls")
	KindCallHierarchyOutgoing = request[CallHierarchyOutgoingCallsParams]("callHierarchy/outgoingCalls")
	KindPrepareTypeHierarchy  = request[TypeHierarchyPrepareParams]("textDocument/prepareTypeHierarchy")
	KindTypeHierarchySupertypes = request[TypeHierarchySupertypesParams]("typeHierarchy/supertypes")
	KindTypeHierarchySubtypes   = request[TypeHierarchySubtypesParams]("typeHierarchy/subtypes")
	KindSemanticTokensFull      = request[SemanticTokensParams]("textDocument/semanticTokens/full")
	KindSemanticTokensFullDelta = request[SemanticTokensDeltaParams]("textDocument/semanticTokens/full/delta")
	KindSemanticTokensRange     = request[SemanticTokensRangeParams]("textDocument/semanticTokens/range")
	KindLinkedEditingRange      = request[LinkedEditingRangeParams]("textDocument/linkedEditingRange")
	KindMoniker                 = request[MonikerParams]("textDocument/moniker")
	KindDocumentDiagnostic      = request[DocumentDiagnosticParams]("textDocument/diagnostic")
	KindInlayHint               = request[InlayHintParams]("textDocument/inlayHint")
	KindInlayHintResolve        = request[InlayHint]("inlayHint/resolve")
	KindInlineValue             = request[InlineValueParams]("textDocument/inlineValue")
	KindWorkspaceSymbol         = request[WorkspaceSymbolParams]("workspace/symbol")
	KindWorkspaceSymbolResolve  = request[WorkspaceSymbol]("workspaceSymbol/resolve")
	KindExecuteCommand          = request[ExecuteCommandParams]("workspace/executeCommand")
	KindDidChangeConfiguration  = notification[DidChangeConfigurationParams]("workspace/didChangeConfiguration")
	KindDidChangeWatchedFiles   = notification[DidChangeWatchedFilesParams]("workspace/didChangeWatchedFiles")
	KindDidChangeWorkspaceFolders = notification[DidChangeWorkspaceFoldersParams]("workspace/didChangeWorkspaceFolders")
	KindWillCreateFiles           = request[CreateFilesParams]("workspace/willCreateFiles")
	KindDidCreateFiles            = notification[CreateFilesParams]("workspace/didCreateFiles")
	KindWillRenameFiles           = request[RenameFilesParams]("workspace/willRenameFiles")
	KindDidRenameFiles            = notification[RenameFilesParams]("workspace/didRenameFiles")
	KindWillDeleteFiles           = request[DeleteFilesParams]("workspace/willDeleteFiles")
	KindDidDeleteFiles            = notification[DeleteFilesParams]("workspace/didDeleteFiles")
	KindWorkspaceDiagnostic       = request[WorkspaceDiagnosticParams]("workspace/diagnostic")
	KindCancelRequest             = notification[CancelParams]("$/cancelRequest")
	KindSetTrace                  = notification[SetTraceParams]("$/setTrace")
	KindLogTrace                  = notification[LogTraceParams]("$/logTrace")
	KindProgress                  = notification[ProgressParams]("$/progress")
)

// Kinds lists every message kind in a stable order; mutators index into it.
var Kinds = []*Kind{
	KindDidOpen, KindDidChange, KindDidSave, KindDidClose,
	KindCompletion, KindCompletionResolve, KindHover, KindSignatureHelp,
	KindDeclaration, KindDefinition, KindTypeDefinition, KindImplementation,
	KindReferences, KindDocumentHighlight, KindDocumentSymbol,
	KindCodeAction, KindCodeActionResolve, KindCodeLens, KindCodeLensResolve,
	KindDocumentLink, KindDocumentLinkResolve, KindDocumentColor,
	KindColorPresentation, KindFormatting, KindRangeFormatting,
	KindOnTypeFormatting, KindRename, KindPrepareRename, KindFoldingRange,
	KindSelectionRange, KindPrepareCallHierarchy, KindCallHierarchyIncoming,
	KindCallHierarchyOutgoing, KindPrepareTypeHierarchy,
	KindTypeHierarchySupertypes, KindTypeHierarchySubtypes,
	KindSemanticTokensFull, KindSemanticTokensFullDelta,
	KindSemanticTokensRange, KindLinkedEditingRange, KindMoniker,
	KindDocumentDiagnostic, KindInlayHint, KindInlayHintResolve,
	KindInlineValue, KindWorkspaceSymbol, KindWorkspaceSymbolResolve,
	KindExecuteCommand, KindDidChangeConfiguration, KindDidChangeWatchedFiles,
	KindDidChangeWorkspaceFolders, KindWillCreateFiles, KindDidCreateFiles,
	KindWillRenameFiles, KindDidRenameFiles, KindWillDeleteFiles,
	KindDidDeleteFiles, KindWorkspaceDiagnostic, KindCancelRequest,
	KindSetTrace, KindLogTrace, KindProgress,
}

var kindsByMethod = func() map[string]*Kind {
	m := make(map[string]*Kind, len(Kinds))
	for _, k := range Kinds {
		m[k.Method] = k
	}
	return m
}()

// KindByMethod resolves a method string to its kind, or nil.
func KindByMethod(method string) *Kind {
	return kindsByMethod[method]
}

// Message is one stored client→server message: a kind plus its typed
// parameters. JSON-RPC ids are not stored; they are assigned when the
// input is serialized.
type Message struct {
	Kind   *Kind
	Params any
}

// NewMessage pairs a kind with parameters of the matching type.
func NewMessage(kind *Kind, params any) Message {
	return Message{Kind: kind, Params: params}
}

func (m Message) Method() string { return m.Kind.Method }

func (m Message) IsRequest() bool { return m.Kind.Request }

type messageJSON struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// MarshalJSON serializes the message as {"method":…, "params":…}. This is
// the corpus format, not the wire format (see jsonrpc).
func (m Message) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s params: %w", m.Kind.Method, err)
	}
	return json.Marshal(messageJSON{Method: m.Kind.Method, Params: params})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := KindByMethod(raw.Method)
	if kind == nil {
		return fmt.Errorf("unknown message method %q", raw.Method)
	}
	params := kind.NewParams()
	if len(raw.Params) > 0 {
		if err := json.Unmarshal(raw.Params, params); err != nil {
			return fmt.Errorf("unmarshaling %s params: %w", raw.Method, err)
		}
	}
	m.Kind = kind
	m.Params = params
	return nil
}
