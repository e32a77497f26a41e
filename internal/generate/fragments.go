package generate

import (
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// sampleFragment picks a server-returned representative of T from the
// current entry's response metadata, falling back to the given default
// when feedback-guided generation is off or nothing was collected.
func sampleFragment[T any](s *State, items []T, fallback T) T {
	if !s.Config.FeedbackFragments {
		return fallback
	}
	if item, ok := Choose(s, items); ok {
		return item
	}
	return fallback
}

func fragments(s *State) *lspinput.ResponseFragments {
	if s.Fragments == nil {
		return &lspinput.ResponseFragments{}
	}
	return s.Fragments
}

// FragmentCodeAction samples a CodeAction the server returned earlier.
func FragmentCodeAction(s *State) lsp.CodeAction {
	return sampleFragment(s, fragments(s).CodeActions, lsp.CodeAction{Title: "quickfix"})
}

// FragmentCommand samples a Command the server returned earlier.
func FragmentCommand(s *State) lsp.Command {
	return sampleFragment(s, fragments(s).Commands, lsp.Command{Title: "noop", Command: "noop"})
}

// FragmentInlayHint samples an InlayHint the server returned earlier.
func FragmentInlayHint(s *State) lsp.InlayHint {
	return sampleFragment(s, fragments(s).InlayHints, lsp.InlayHint{Label: []byte(`""`)})
}

// FragmentCompletionItem samples a CompletionItem the server returned.
func FragmentCompletionItem(s *State) lsp.CompletionItem {
	return sampleFragment(s, fragments(s).CompletionItems, lsp.CompletionItem{Label: "item"})
}

// FragmentCodeLens samples a CodeLens the server returned earlier.
func FragmentCodeLens(s *State) lsp.CodeLens {
	return sampleFragment(s, fragments(s).CodeLenses, lsp.CodeLens{})
}

// FragmentWorkspaceSymbol samples a WorkspaceSymbol the server returned.
func FragmentWorkspaceSymbol(s *State) lsp.WorkspaceSymbol {
	return sampleFragment(s, fragments(s).WorkspaceSymbols, lsp.WorkspaceSymbol{Name: "symbol", Location: []byte(`{}`)})
}

// FragmentTypeHierarchyItem samples a TypeHierarchyItem.
func FragmentTypeHierarchyItem(s *State) lsp.TypeHierarchyItem {
	return sampleFragment(s, fragments(s).TypeHierarchyItems, lsp.TypeHierarchyItem{Name: "type", URI: lspinput.AbstractURI("main")})
}

// FragmentCallHierarchyItem samples a CallHierarchyItem.
func FragmentCallHierarchyItem(s *State) lsp.CallHierarchyItem {
	return sampleFragment(s, fragments(s).CallHierarchyItems, lsp.CallHierarchyItem{Name: "fn", URI: lspinput.AbstractURI("main")})
}

// FragmentDocumentLink samples a DocumentLink.
func FragmentDocumentLink(s *State) lsp.DocumentLink {
	return sampleFragment(s, fragments(s).DocumentLinks, lsp.DocumentLink{})
}

// FragmentDiagnostics returns diagnostics recorded for the entry, used to
// populate code-action contexts.
func FragmentDiagnostics(s *State, limit int) []lsp.Diagnostic {
	refs := fragments(s).Diagnostics
	if len(refs) == 0 || !s.Config.FeedbackFragments {
		return nil
	}
	if len(refs) > limit {
		refs = refs[:limit]
	}
	out := make([]lsp.Diagnostic, 0, len(refs))
	for _, ref := range refs {
		out = append(out, lsp.Diagnostic{Range: ref.Range, Message: "diagnostic"})
	}
	return out
}

// OptionalNoneProbability is the chance an Optional parameter is omitted.
const OptionalNoneProbability = 0.2

// Optional wraps a generator result, omitting it with a small probability.
func Optional[T any](s *State, value T) *T {
	if s.Coinflip(OptionalNoneProbability) {
		return nil
	}
	return &value
}
