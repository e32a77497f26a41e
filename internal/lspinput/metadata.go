package lspinput

import (
	"github.com/standardbeagle/lspfuzz/internal/lsp"
)

// DiagnosticRef is one ⟨uri, range⟩ pair reported by the server.
type DiagnosticRef struct {
	URI   string    `json:"uri"`
	Range lsp.Range `json:"range"`
}

// ResponseFragments is the per-corpus-entry metadata holding the
// server-supplied values the parameter generators sample from. It is
// written once when an entry is inserted and read-only afterwards.
type ResponseFragments struct {
	Diagnostics        []DiagnosticRef         `json:"diagnostics,omitempty"`
	CodeActions        []lsp.CodeAction        `json:"codeActions,omitempty"`
	Commands           []lsp.Command           `json:"commands,omitempty"`
	InlayHints         []lsp.InlayHint         `json:"inlayHints,omitempty"`
	CompletionItems    []lsp.CompletionItem    `json:"completionItems,omitempty"`
	CodeLenses         []lsp.CodeLens          `json:"codeLenses,omitempty"`
	WorkspaceSymbols   []lsp.WorkspaceSymbol   `json:"workspaceSymbols,omitempty"`
	TypeHierarchyItems []lsp.TypeHierarchyItem `json:"typeHierarchyItems,omitempty"`
	CallHierarchyItems []lsp.CallHierarchyItem `json:"callHierarchyItems,omitempty"`
	DocumentLinks      []lsp.DocumentLink      `json:"documentLinks,omitempty"`
}

// Empty reports whether no fragment of any kind has been collected.
func (f *ResponseFragments) Empty() bool {
	if f == nil {
		return true
	}
	return len(f.Diagnostics) == 0 &&
		len(f.CodeActions) == 0 &&
		len(f.Commands) == 0 &&
		len(f.InlayHints) == 0 &&
		len(f.CompletionItems) == 0 &&
		len(f.CodeLenses) == 0 &&
		len(f.WorkspaceSymbols) == 0 &&
		len(f.TypeHierarchyItems) == 0 &&
		len(f.CallHierarchyItems) == 0 &&
		len(f.DocumentLinks) == 0
}
