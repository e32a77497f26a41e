package generate

import (
	"encoding/json"

	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// ParamsGenerator produces typed parameters for one message kind. The
// returned value is always a pointer to the kind's parameter struct.
type ParamsGenerator func(s *State, in *lspinput.Input) (any, error)

// ForKind returns the registered parameter generators for a message kind.
// An empty slice means the kind cannot be synthesized (it is still decoded
// and replayed from corpora).
func ForKind(kind *lsp.Kind) []ParamsGenerator {
	return kindGenerators[kind]
}

// SynthesizableKinds lists the kinds that have at least one generator.
func SynthesizableKinds() []*lsp.Kind {
	var out []*lsp.Kind
	for _, kind := range lsp.Kinds {
		if len(kindGenerators[kind]) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

func positional[P any](build func(lsp.TextDocumentPositionParams) P) ParamsGenerator {
	return func(s *State, in *lspinput.Input) (any, error) {
		base, err := DocPosition(s, in)
		if err != nil {
			return nil, err
		}
		p := build(base)
		return &p, nil
	}
}

func ranged[P any](build func(lsp.TextDocumentIdentifier, lsp.Range) P) ParamsGenerator {
	return func(s *State, in *lspinput.Input) (any, error) {
		doc, r, err := DocRange(s, in)
		if err != nil {
			return nil, err
		}
		p := build(doc, r)
		return &p, nil
	}
}

func documental[P any](build func(lsp.TextDocumentIdentifier) P) ParamsGenerator {
	return func(s *State, in *lspinput.Input) (any, error) {
		doc, err := DocIdentifier(s, in)
		if err != nil {
			return nil, err
		}
		p := build(doc)
		return &p, nil
	}
}

func fragment[P any](sample func(*State) P) ParamsGenerator {
	return func(s *State, _ *lspinput.Input) (any, error) {
		p := sample(s)
		return &p, nil
	}
}

var kindGenerators = map[*lsp.Kind][]ParamsGenerator{
	lsp.KindDidChange: {func(s *State, in *lspinput.Input) (any, error) {
		ref, err := ChooseDocument(s, in)
		if err != nil {
			return nil, err
		}
		text, err := GenerateString(s, in)
		if err != nil {
			return nil, err
		}
		return &lsp.DidChangeTextDocumentParams{
			TextDocument: lsp.VersionedTextDocumentIdentifier{
				URI:     lspinput.AbstractURI(ref.Path),
				Version: int32(s.Rand.IntN(4) + 2),
			},
			ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: text}},
		}, nil
	}},
	lsp.KindDidSave: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DidSaveTextDocumentParams {
		return lsp.DidSaveTextDocumentParams{TextDocument: doc}
	})},
	lsp.KindDidClose: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DidCloseTextDocumentParams {
		return lsp.DidCloseTextDocumentParams{TextDocument: doc}
	})},
	lsp.KindCompletion: {positional(func(base lsp.TextDocumentPositionParams) lsp.CompletionParams {
		return lsp.CompletionParams{TextDocumentPositionParams: base, Context: &lsp.CompletionContext{TriggerKind: 1}}
	})},
	lsp.KindCompletionResolve: {fragment(FragmentCompletionItem)},
	lsp.KindHover: {positional(func(base lsp.TextDocumentPositionParams) lsp.HoverParams {
		return lsp.HoverParams{TextDocumentPositionParams: base}
	})},
	lsp.KindSignatureHelp: {positional(func(base lsp.TextDocumentPositionParams) lsp.SignatureHelpParams {
		return lsp.SignatureHelpParams{TextDocumentPositionParams: base}
	})},
	lsp.KindDeclaration: {positional(func(base lsp.TextDocumentPositionParams) lsp.DeclarationParams {
		return lsp.DeclarationParams{TextDocumentPositionParams: base}
	})},
	lsp.KindDefinition: {positional(func(base lsp.TextDocumentPositionParams) lsp.DefinitionParams {
		return lsp.DefinitionParams{TextDocumentPositionParams: base}
	})},
	lsp.KindTypeDefinition: {positional(func(base lsp.TextDocumentPositionParams) lsp.TypeDefinitionParams {
		return lsp.TypeDefinitionParams{TextDocumentPositionParams: base}
	})},
	lsp.KindImplementation: {positional(func(base lsp.TextDocumentPositionParams) lsp.ImplementationParams {
		return lsp.ImplementationParams{TextDocumentPositionParams: base}
	})},
	lsp.KindReferences: {positional(func(base lsp.TextDocumentPositionParams) lsp.ReferenceParams {
		return lsp.ReferenceParams{TextDocumentPositionParams: base, Context: lsp.ReferenceContext{IncludeDeclaration: true}}
	})},
	lsp.KindDocumentHighlight: {positional(func(base lsp.TextDocumentPositionParams) lsp.DocumentHighlightParams {
		return lsp.DocumentHighlightParams{TextDocumentPositionParams: base}
	})},
	lsp.KindDocumentSymbol: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DocumentSymbolParams {
		return lsp.DocumentSymbolParams{TextDocument: doc}
	})},
	lsp.KindCodeAction: {func(s *State, in *lspinput.Input) (any, error) {
		doc, r, err := DocRange(s, in)
		if err != nil {
			return nil, err
		}
		return &lsp.CodeActionParams{
			TextDocument: doc,
			Range:        r,
			Context:      lsp.CodeActionContext{Diagnostics: FragmentDiagnostics(s, 4)},
		}, nil
	}},
	lsp.KindCodeActionResolve: {fragment(FragmentCodeAction)},
	lsp.KindCodeLens: {documental(func(doc lsp.TextDocumentIdentifier) lsp.CodeLensParams {
		return lsp.CodeLensParams{TextDocument: doc}
	})},
	lsp.KindCodeLensResolve: {fragment(FragmentCodeLens)},
	lsp.KindDocumentLink: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DocumentLinkParams {
		return lsp.DocumentLinkParams{TextDocument: doc}
	})},
	lsp.KindDocumentLinkResolve: {fragment(FragmentDocumentLink)},
	lsp.KindDocumentColor: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DocumentColorParams {
		return lsp.DocumentColorParams{TextDocument: doc}
	})},
	lsp.KindColorPresentation: {ranged(func(doc lsp.TextDocumentIdentifier, r lsp.Range) lsp.ColorPresentationParams {
		return lsp.ColorPresentationParams{TextDocument: doc, Color: lsp.Color{Red: 1, Alpha: 1}, Range: r}
	})},
	lsp.KindFormatting: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DocumentFormattingParams {
		return lsp.DocumentFormattingParams{TextDocument: doc, Options: lsp.FormattingOptions{TabSize: 4, InsertSpaces: true}}
	})},
	lsp.KindRangeFormatting: {ranged(func(doc lsp.TextDocumentIdentifier, r lsp.Range) lsp.DocumentRangeFormattingParams {
		return lsp.DocumentRangeFormattingParams{TextDocument: doc, Range: r, Options: lsp.FormattingOptions{TabSize: 4, InsertSpaces: true}}
	})},
	lsp.KindOnTypeFormatting: {positional(func(base lsp.TextDocumentPositionParams) lsp.DocumentOnTypeFormattingParams {
		return lsp.DocumentOnTypeFormattingParams{
			TextDocument: base.TextDocument,
			Position:     base.Position,
			Ch:           "}",
			Options:      lsp.FormattingOptions{TabSize: 4, InsertSpaces: true},
		}
	})},
	lsp.KindRename: {func(s *State, in *lspinput.Input) (any, error) {
		base, err := DocPosition(s, in)
		if err != nil {
			return nil, err
		}
		name, err := GenerateString(s, in)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = "renamed"
		}
		return &lsp.RenameParams{TextDocument: base.TextDocument, Position: base.Position, NewName: name}, nil
	}},
	lsp.KindPrepareRename: {positional(func(base lsp.TextDocumentPositionParams) lsp.PrepareRenameParams {
		return lsp.PrepareRenameParams{TextDocumentPositionParams: base}
	})},
	lsp.KindFoldingRange: {documental(func(doc lsp.TextDocumentIdentifier) lsp.FoldingRangeParams {
		return lsp.FoldingRangeParams{TextDocument: doc}
	})},
	lsp.KindSelectionRange: {func(s *State, in *lspinput.Input) (any, error) {
		base, err := DocPosition(s, in)
		if err != nil {
			return nil, err
		}
		return &lsp.SelectionRangeParams{TextDocument: base.TextDocument, Positions: []lsp.Position{base.Position}}, nil
	}},
	lsp.KindPrepareCallHierarchy: {positional(func(base lsp.TextDocumentPositionParams) lsp.CallHierarchyPrepareParams {
		return lsp.CallHierarchyPrepareParams{TextDocumentPositionParams: base}
	})},
	lsp.KindCallHierarchyIncoming: {fragment(func(s *State) lsp.CallHierarchyIncomingCallsParams {
		return lsp.CallHierarchyIncomingCallsParams{Item: FragmentCallHierarchyItem(s)}
	})},
	lsp.KindCallHierarchyOutgoing: {fragment(func(s *State) lsp.CallHierarchyOutgoingCallsParams {
		return lsp.CallHierarchyOutgoingCallsParams{Item: FragmentCallHierarchyItem(s)}
	})},
	lsp.KindPrepareTypeHierarchy: {positional(func(base lsp.TextDocumentPositionParams) lsp.TypeHierarchyPrepareParams {
		return lsp.TypeHierarchyPrepareParams{TextDocumentPositionParams: base}
	})},
	lsp.KindTypeHierarchySupertypes: {fragment(func(s *State) lsp.TypeHierarchySupertypesParams {
		return lsp.TypeHierarchySupertypesParams{Item: FragmentTypeHierarchyItem(s)}
	})},
	lsp.KindTypeHierarchySubtypes: {fragment(func(s *State) lsp.TypeHierarchySubtypesParams {
		return lsp.TypeHierarchySubtypesParams{Item: FragmentTypeHierarchyItem(s)}
	})},
	lsp.KindSemanticTokensFull: {documental(func(doc lsp.TextDocumentIdentifier) lsp.SemanticTokensParams {
		return lsp.SemanticTokensParams{TextDocument: doc}
	})},
	lsp.KindSemanticTokensFullDelta: {documental(func(doc lsp.TextDocumentIdentifier) lsp.SemanticTokensDeltaParams {
		return lsp.SemanticTokensDeltaParams{TextDocument: doc, PreviousResultID: "1"}
	})},
	lsp.KindSemanticTokensRange: {ranged(func(doc lsp.TextDocumentIdentifier, r lsp.Range) lsp.SemanticTokensRangeParams {
		return lsp.SemanticTokensRangeParams{TextDocument: doc, Range: r}
	})},
	lsp.KindLinkedEditingRange: {positional(func(base lsp.TextDocumentPositionParams) lsp.LinkedEditingRangeParams {
		return lsp.LinkedEditingRangeParams{TextDocumentPositionParams: base}
	})},
	lsp.KindMoniker: {positional(func(base lsp.TextDocumentPositionParams) lsp.MonikerParams {
		return lsp.MonikerParams{TextDocumentPositionParams: base}
	})},
	lsp.KindDocumentDiagnostic: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DocumentDiagnosticParams {
		return lsp.DocumentDiagnosticParams{TextDocument: doc}
	})},
	lsp.KindInlayHint: {ranged(func(doc lsp.TextDocumentIdentifier, r lsp.Range) lsp.InlayHintParams {
		return lsp.InlayHintParams{TextDocument: doc, Range: r}
	})},
	lsp.KindInlayHintResolve: {fragment(FragmentInlayHint)},
	lsp.KindInlineValue: {ranged(func(doc lsp.TextDocumentIdentifier, r lsp.Range) lsp.InlineValueParams {
		return lsp.InlineValueParams{TextDocument: doc, Range: r, Context: lsp.InlineValueContext{StoppedLocation: r}}
	})},
	lsp.KindWorkspaceSymbol: {func(s *State, in *lspinput.Input) (any, error) {
		query, err := GenerateString(s, in)
		if err != nil {
			return nil, err
		}
		return &lsp.WorkspaceSymbolParams{Query: query}, nil
	}},
	lsp.KindWorkspaceSymbolResolve: {fragment(FragmentWorkspaceSymbol)},
	lsp.KindExecuteCommand: {fragment(func(s *State) lsp.ExecuteCommandParams {
		command := FragmentCommand(s)
		return lsp.ExecuteCommandParams{Command: command.Command, Arguments: command.Arguments}
	})},
	lsp.KindDidChangeConfiguration: {fragment(func(_ *State) lsp.DidChangeConfigurationParams {
		return lsp.DidChangeConfigurationParams{Settings: json.RawMessage("{}")}
	})},
	lsp.KindDidChangeWatchedFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DidChangeWatchedFilesParams {
		return lsp.DidChangeWatchedFilesParams{Changes: []lsp.FileEvent{{URI: doc.URI, Type: 2}}}
	})},
	lsp.KindDidChangeWorkspaceFolders: {fragment(func(_ *State) lsp.DidChangeWorkspaceFoldersParams {
		return lsp.DidChangeWorkspaceFoldersParams{}
	})},
	lsp.KindWillCreateFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.CreateFilesParams {
		return lsp.CreateFilesParams{Files: []lsp.FileCreate{{URI: doc.URI + ".new"}}}
	})},
	lsp.KindDidCreateFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.CreateFilesParams {
		return lsp.CreateFilesParams{Files: []lsp.FileCreate{{URI: doc.URI + ".new"}}}
	})},
	lsp.KindWillRenameFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.RenameFilesParams {
		return lsp.RenameFilesParams{Files: []lsp.FileRename{{OldURI: doc.URI, NewURI: doc.URI + ".renamed"}}}
	})},
	lsp.KindDidRenameFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.RenameFilesParams {
		return lsp.RenameFilesParams{Files: []lsp.FileRename{{OldURI: doc.URI, NewURI: doc.URI + ".renamed"}}}
	})},
	lsp.KindWillDeleteFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DeleteFilesParams {
		return lsp.DeleteFilesParams{Files: []lsp.FileDelete{{URI: doc.URI}}}
	})},
	lsp.KindDidDeleteFiles: {documental(func(doc lsp.TextDocumentIdentifier) lsp.DeleteFilesParams {
		return lsp.DeleteFilesParams{Files: []lsp.FileDelete{{URI: doc.URI}}}
	})},
	lsp.KindWorkspaceDiagnostic: {fragment(func(_ *State) lsp.WorkspaceDiagnosticParams {
		return lsp.WorkspaceDiagnosticParams{PreviousResultIDs: []json.RawMessage{}}
	})},
	lsp.KindCancelRequest: {fragment(func(s *State) lsp.CancelParams {
		return lsp.CancelParams{ID: int64(s.Rand.IntN(MaxCancelID))}
	})},
	lsp.KindSetTrace: {fragment(func(s *State) lsp.SetTraceParams {
		values := []string{"off", "messages", "verbose"}
		value, _ := Choose(s, values)
		return lsp.SetTraceParams{Value: value}
	})},
	lsp.KindLogTrace: {fragment(func(_ *State) lsp.LogTraceParams {
		return lsp.LogTraceParams{Message: "trace"}
	})},
	lsp.KindProgress: {fragment(func(_ *State) lsp.ProgressParams {
		return lsp.ProgressParams{Token: json.RawMessage(`"progress"`), Value: json.RawMessage("{}")}
	})},
}

// MaxCancelID bounds generated $/cancelRequest ids to plausibly-live ones.
const MaxCancelID = MaxMessages + 2

// MaxMessages re-exports the input cap for the cancel-id bound.
const MaxMessages = lspinput.MaxMessages
