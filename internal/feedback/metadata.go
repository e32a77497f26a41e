package feedback

import (
	"encoding/json"

	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/observe"
)

// CollectFragments builds the response metadata attached to a corpus entry
// on insertion: diagnostics plus every server-supplied value the parameter
// generators can reuse later. Responses are matched to requests through
// the monotonic id assignment of the serializer (stored requests start at
// id 2, in order).
func CollectFragments(in *lspinput.Input, observer *observe.ResponseObserver) *lspinput.ResponseFragments {
	fragments := &lspinput.ResponseFragments{}

	methodByID := make(map[int64]string)
	nextID := int64(2)
	for _, msg := range in.Messages {
		if msg.IsRequest() {
			methodByID[nextID] = msg.Method()
			nextID++
		}
	}

	for _, frame := range observer.Messages() {
		if frame.IsNotification() && frame.Method == "textDocument/publishDiagnostics" {
			var params lsp.PublishDiagnosticsParams
			if err := json.Unmarshal(frame.Params, &params); err != nil {
				continue
			}
			for _, diag := range params.Diagnostics {
				fragments.Diagnostics = append(fragments.Diagnostics, lspinput.DiagnosticRef{
					URI:   params.URI,
					Range: diag.Range,
				})
			}
			continue
		}
		if !frame.IsResponse() || frame.ID == nil || frame.Result == nil {
			continue
		}
		collectResponse(fragments, methodByID[*frame.ID], frame.Result)
	}
	return fragments
}

func collectResponse(fragments *lspinput.ResponseFragments, method string, result json.RawMessage) {
	switch method {
	case lsp.KindCodeAction.Method:
		// Each element is either a Command or a CodeAction; a code action
		// always has a title, a command additionally a command string.
		var items []json.RawMessage
		if json.Unmarshal(result, &items) != nil {
			return
		}
		for _, item := range items {
			var command lsp.Command
			if json.Unmarshal(item, &command) == nil && command.Command != "" {
				fragments.Commands = append(fragments.Commands, command)
				continue
			}
			var action lsp.CodeAction
			if json.Unmarshal(item, &action) == nil {
				fragments.CodeActions = append(fragments.CodeActions, action)
			}
		}
	case lsp.KindInlayHint.Method:
		var hints []lsp.InlayHint
		if json.Unmarshal(result, &hints) == nil {
			fragments.InlayHints = append(fragments.InlayHints, hints...)
		}
	case lsp.KindCompletion.Method:
		// Either CompletionItem[] or a CompletionList.
		var items []lsp.CompletionItem
		if json.Unmarshal(result, &items) == nil {
			fragments.CompletionItems = append(fragments.CompletionItems, items...)
			return
		}
		var list struct {
			Items []lsp.CompletionItem `json:"items"`
		}
		if json.Unmarshal(result, &list) == nil {
			fragments.CompletionItems = append(fragments.CompletionItems, list.Items...)
		}
	case lsp.KindCodeLens.Method:
		var lenses []lsp.CodeLens
		if json.Unmarshal(result, &lenses) == nil {
			fragments.CodeLenses = append(fragments.CodeLenses, lenses...)
		}
	case lsp.KindWorkspaceSymbol.Method:
		var symbols []lsp.WorkspaceSymbol
		if json.Unmarshal(result, &symbols) == nil {
			fragments.WorkspaceSymbols = append(fragments.WorkspaceSymbols, symbols...)
		}
	case lsp.KindPrepareTypeHierarchy.Method:
		var items []lsp.TypeHierarchyItem
		if json.Unmarshal(result, &items) == nil {
			fragments.TypeHierarchyItems = append(fragments.TypeHierarchyItems, items...)
		}
	case lsp.KindPrepareCallHierarchy.Method:
		var items []lsp.CallHierarchyItem
		if json.Unmarshal(result, &items) == nil {
			fragments.CallHierarchyItems = append(fragments.CallHierarchyItems, items...)
		}
	case lsp.KindDocumentLink.Method:
		var links []lsp.DocumentLink
		if json.Unmarshal(result, &links) == nil {
			fragments.DocumentLinks = append(fragments.DocumentLinks, links...)
		}
	}
}
