package lsp

import "encoding/json"

// ClientCapabilities is the fixed capabilities blob sent in the Initialize
// prelude. It declares support for the feature areas whose responses feed
// back into parameter generation.
var ClientCapabilities = json.RawMessage(`{
  "textDocument": {
    "synchronization": {"didSave": true, "willSave": false},
    "publishDiagnostics": {"relatedInformation": true, "codeDescriptionSupport": true, "dataSupport": true},
    "completion": {"completionItem": {"snippetSupport": true, "resolveSupport": {"properties": ["documentation", "detail", "additionalTextEdits"]}}},
    "hover": {"contentFormat": ["markdown", "plaintext"]},
    "signatureHelp": {},
    "codeAction": {"codeActionLiteralSupport": {"codeActionKind": {"valueSet": ["quickfix", "refactor", "source"]}}, "resolveSupport": {"properties": ["edit"]}, "dataSupport": true},
    "codeLens": {},
    "documentLink": {"tooltipSupport": true},
    "inlayHint": {"resolveSupport": {"properties": ["label.location", "textEdits"]}},
    "inlineValue": {},
    "semanticTokens": {
      "requests": {"full": {"delta": true}, "range": true},
      "tokenTypes": ["namespace", "type", "class", "function", "variable", "keyword", "comment", "string"],
      "tokenModifiers": ["declaration", "definition", "readonly", "static"],
      "formats": ["relative"]
    },
    "foldingRange": {},
    "selectionRange": {},
    "callHierarchy": {},
    "typeHierarchy": {},
    "moniker": {},
    "linkedEditingRange": {},
    "diagnostic": {"relatedDocumentSupport": true}
  },
  "workspace": {
    "workspaceFolders": true,
    "symbol": {"resolveSupport": {"properties": ["location.range"]}},
    "executeCommand": {},
    "didChangeConfiguration": {},
    "didChangeWatchedFiles": {},
    "fileOperations": {"didCreate": true, "didRename": true, "didDelete": true, "willCreate": true, "willRename": true, "willDelete": true},
    "diagnostics": {"refreshSupport": true}
  },
  "window": {"workDoneProgress": true}
}`)
