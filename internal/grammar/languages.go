package grammar

import (
	"unsafe"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Highlight queries capture the node classes the position generators and
// comment mutators steer toward. They are deliberately small; full editor
// highlighting is not the goal.
var languageInfos = [languageCount]languageInfo{
	LangC: {
		name:        "c",
		lspID:       "c",
		extension:   ".c",
		languagePtr: func() unsafe.Pointer { return tree_sitter_c.Language() },
		highlightSrc: `
            (comment) @comment
            (string_literal) @string
            (identifier) @identifier
            (function_definition declarator: (function_declarator declarator: (identifier) @function.name))
        `,
	},
	LangCpp: {
		name:        "cpp",
		lspID:       "cpp",
		extension:   ".cc",
		languagePtr: func() unsafe.Pointer { return tree_sitter_cpp.Language() },
		highlightSrc: `
            (comment) @comment
            (string_literal) @string
            (identifier) @identifier
        `,
	},
	LangCSharp: {
		name:        "csharp",
		lspID:       "csharp",
		extension:   ".cs",
		languagePtr: func() unsafe.Pointer { return tree_sitter_csharp.Language() },
		highlightSrc: `
            (comment) @comment
            (string_literal) @string
            (identifier) @identifier
        `,
	},
	LangGo: {
		name:        "go",
		lspID:       "go",
		extension:   ".go",
		languagePtr: func() unsafe.Pointer { return tree_sitter_go.Language() },
		highlightSrc: `
            (comment) @comment
            (interpreted_string_literal) @string
            (raw_string_literal) @string
            (identifier) @identifier
            (function_declaration name: (identifier) @function.name)
        `,
	},
	LangJava: {
		name:        "java",
		lspID:       "java",
		extension:   ".java",
		languagePtr: func() unsafe.Pointer { return tree_sitter_java.Language() },
		highlightSrc: `
            (line_comment) @comment
            (block_comment) @comment
            (string_literal) @string
            (identifier) @identifier
        `,
	},
	LangJavaScript: {
		name:        "javascript",
		lspID:       "javascript",
		extension:   ".js",
		languagePtr: func() unsafe.Pointer { return tree_sitter_javascript.Language() },
		highlightSrc: `
            (comment) @comment
            (string) @string
            (identifier) @identifier
            (function_declaration name: (identifier) @function.name)
        `,
	},
	LangPHP: {
		name:        "php",
		lspID:       "php",
		extension:   ".php",
		languagePtr: func() unsafe.Pointer { return tree_sitter_php.LanguagePHP() },
		highlightSrc: `
            (comment) @comment
            (string) @string
            (name) @identifier
        `,
	},
	LangPython: {
		name:        "python",
		lspID:       "python",
		extension:   ".py",
		languagePtr: func() unsafe.Pointer { return tree_sitter_python.Language() },
		highlightSrc: `
            (comment) @comment
            (string) @string
            (identifier) @identifier
            (function_definition name: (identifier) @function.name)
        `,
	},
	LangRust: {
		name:        "rust",
		lspID:       "rust",
		extension:   ".rs",
		languagePtr: func() unsafe.Pointer { return tree_sitter_rust.Language() },
		highlightSrc: `
            (line_comment) @comment
            (block_comment) @comment
            (string_literal) @string
            (identifier) @identifier
            (function_item name: (identifier) @function.name)
        `,
	},
	LangTypeScript: {
		name:        "typescript",
		lspID:       "typescript",
		extension:   ".ts",
		languagePtr: func() unsafe.Pointer { return tree_sitter_typescript.LanguageTypescript() },
		highlightSrc: `
            (comment) @comment
            (string) @string
            (identifier) @identifier
        `,
	},
	LangZig: {
		name:        "zig",
		lspID:       "zig",
		extension:   ".zig",
		languagePtr: func() unsafe.Pointer { return tree_sitter_zig.Language() },
		highlightSrc: `
            (comment) @comment
            (identifier) @identifier
        `,
	},
}
