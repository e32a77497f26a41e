package grammar

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Language identifies one of the grammars the fuzzer can parse and mutate.
type Language uint8

const (
	LangC Language = iota
	LangCpp
	LangCSharp
	LangGo
	LangJava
	LangJavaScript
	LangPHP
	LangPython
	LangRust
	LangTypeScript
	LangZig

	languageCount
)

// Languages returns all supported languages in declaration order.
func Languages() []Language {
	langs := make([]Language, 0, languageCount)
	for l := Language(0); l < languageCount; l++ {
		langs = append(langs, l)
	}
	return langs
}

func (l Language) String() string {
	return languageInfos[l].name
}

// LSPLanguageID returns the identifier used in DidOpen text document items.
func (l Language) LSPLanguageID() string {
	return languageInfos[l].lspID
}

// FileExtension returns the extension (with dot) used when materialising
// workspace files for this language.
func (l Language) FileExtension() string {
	return languageInfos[l].extension
}

// ParseLanguage resolves a language from its CLI name (case-insensitive).
func ParseLanguage(name string) (Language, error) {
	for l := Language(0); l < languageCount; l++ {
		if strings.EqualFold(languageInfos[l].name, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown language %q", name)
}

// TSLanguage returns the shared tree-sitter language handle.
func (l Language) TSLanguage() *tree_sitter.Language {
	languageInfos[l].once.Do(func() {
		languageInfos[l].tsLanguage = tree_sitter.NewLanguage(languageInfos[l].languagePtr())
	})
	return languageInfos[l].tsLanguage
}

// NewParser builds a parser configured for this language. The caller owns
// the parser and should Close it when done.
func (l Language) NewParser() *tree_sitter.Parser {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(l.TSLanguage()); err != nil {
		// The bundled grammars are version-matched with the binding, so
		// this only fires on an ABI mismatch at build time.
		panic(fmt.Sprintf("grammar: set language %s: %v", l, err))
	}
	return parser
}

// HighlightQuery returns the compiled highlight query for this language.
// Compilation happens once; the query is shared.
func (l Language) HighlightQuery() *tree_sitter.Query {
	info := &languageInfos[l]
	info.queryOnce.Do(func() {
		query, _ := tree_sitter.NewQuery(l.TSLanguage(), info.highlightSrc)
		// The tree-sitter Go binding can return a typed nil error, so
		// the query pointer is what we trust.
		info.highlight = query
	})
	return info.highlight
}

type languageInfo struct {
	name         string
	lspID        string
	extension    string
	languagePtr  func() unsafe.Pointer
	highlightSrc string

	once       sync.Once
	tsLanguage *tree_sitter.Language
	queryOnce  sync.Once
	highlight  *tree_sitter.Query
}
