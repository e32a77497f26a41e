package lsp

// Params values are always pointers to their parameter structs, so the
// accessors below can hand out mutable views for coordinate rebasing.

// DocumentURI returns the abstract URI of the text document a message
// addresses, when it addresses one.
func (m Message) DocumentURI() (string, bool) {
	switch p := m.Params.(type) {
	case *DidOpenTextDocumentParams:
		return p.TextDocument.URI, true
	case *DidChangeTextDocumentParams:
		return p.TextDocument.URI, true
	case *DidSaveTextDocumentParams:
		return p.TextDocument.URI, true
	case *DidCloseTextDocumentParams:
		return p.TextDocument.URI, true
	case *CompletionParams:
		return p.TextDocument.URI, true
	case *HoverParams:
		return p.TextDocument.URI, true
	case *SignatureHelpParams:
		return p.TextDocument.URI, true
	case *DeclarationParams:
		return p.TextDocument.URI, true
	case *DefinitionParams:
		return p.TextDocument.URI, true
	case *TypeDefinitionParams:
		return p.TextDocument.URI, true
	case *ImplementationParams:
		return p.TextDocument.URI, true
	case *ReferenceParams:
		return p.TextDocument.URI, true
	case *DocumentHighlightParams:
		return p.TextDocument.URI, true
	case *DocumentSymbolParams:
		return p.TextDocument.URI, true
	case *CodeActionParams:
		return p.TextDocument.URI, true
	case *CodeLensParams:
		return p.TextDocument.URI, true
	case *DocumentLinkParams:
		return p.TextDocument.URI, true
	case *DocumentColorParams:
		return p.TextDocument.URI, true
	case *ColorPresentationParams:
		return p.TextDocument.URI, true
	case *DocumentFormattingParams:
		return p.TextDocument.URI, true
	case *DocumentRangeFormattingParams:
		return p.TextDocument.URI, true
	case *DocumentOnTypeFormattingParams:
		return p.TextDocument.URI, true
	case *RenameParams:
		return p.TextDocument.URI, true
	case *PrepareRenameParams:
		return p.TextDocument.URI, true
	case *FoldingRangeParams:
		return p.TextDocument.URI, true
	case *SelectionRangeParams:
		return p.TextDocument.URI, true
	case *CallHierarchyPrepareParams:
		return p.TextDocument.URI, true
	case *TypeHierarchyPrepareParams:
		return p.TextDocument.URI, true
	case *SemanticTokensParams:
		return p.TextDocument.URI, true
	case *SemanticTokensDeltaParams:
		return p.TextDocument.URI, true
	case *SemanticTokensRangeParams:
		return p.TextDocument.URI, true
	case *LinkedEditingRangeParams:
		return p.TextDocument.URI, true
	case *MonikerParams:
		return p.TextDocument.URI, true
	case *DocumentDiagnosticParams:
		return p.TextDocument.URI, true
	case *InlayHintParams:
		return p.TextDocument.URI, true
	case *InlineValueParams:
		return p.TextDocument.URI, true
	default:
		return "", false
	}
}

// Positions returns mutable pointers to every standalone position the
// message carries.
func (m Message) Positions() []*Position {
	switch p := m.Params.(type) {
	case *CompletionParams:
		return []*Position{&p.Position}
	case *HoverParams:
		return []*Position{&p.Position}
	case *SignatureHelpParams:
		return []*Position{&p.Position}
	case *DeclarationParams:
		return []*Position{&p.Position}
	case *DefinitionParams:
		return []*Position{&p.Position}
	case *TypeDefinitionParams:
		return []*Position{&p.Position}
	case *ImplementationParams:
		return []*Position{&p.Position}
	case *ReferenceParams:
		return []*Position{&p.Position}
	case *DocumentHighlightParams:
		return []*Position{&p.Position}
	case *RenameParams:
		return []*Position{&p.Position}
	case *PrepareRenameParams:
		return []*Position{&p.Position}
	case *CallHierarchyPrepareParams:
		return []*Position{&p.Position}
	case *TypeHierarchyPrepareParams:
		return []*Position{&p.Position}
	case *LinkedEditingRangeParams:
		return []*Position{&p.Position}
	case *MonikerParams:
		return []*Position{&p.Position}
	case *DocumentOnTypeFormattingParams:
		return []*Position{&p.Position}
	case *SelectionRangeParams:
		out := make([]*Position, len(p.Positions))
		for i := range p.Positions {
			out[i] = &p.Positions[i]
		}
		return out
	default:
		return nil
	}
}

// Ranges returns mutable pointers to every range the message carries.
func (m Message) Ranges() []*Range {
	switch p := m.Params.(type) {
	case *CodeActionParams:
		return []*Range{&p.Range}
	case *ColorPresentationParams:
		return []*Range{&p.Range}
	case *DocumentRangeFormattingParams:
		return []*Range{&p.Range}
	case *SemanticTokensRangeParams:
		return []*Range{&p.Range}
	case *InlayHintParams:
		return []*Range{&p.Range}
	case *InlineValueParams:
		return []*Range{&p.Range}
	default:
		return nil
	}
}
