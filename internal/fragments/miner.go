// Package fragments mines node-keyed code fragments from real source
// trees. The resulting table feeds the grammar-aware mutators.
package fragments

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// MinerOptions bounds the mining pass.
type MinerOptions struct {
	// Include/Exclude are doublestar patterns matched against the path
	// relative to the mined root.
	Include []string
	Exclude []string
	// MaxFragmentLen skips nodes longer than this many bytes.
	MaxFragmentLen int
	// MaxPerKind caps fragments kept per node kind.
	MaxPerKind int
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

func DefaultMinerOptions(language grammar.Language) MinerOptions {
	return MinerOptions{
		Include:        []string{"**/*" + language.FileExtension()},
		MaxFragmentLen: 256,
		MaxPerKind:     512,
		MaxFileSize:    1 << 20,
	}
}

// Mine walks the root, parses every matching file, and records the byte
// text of each named node under its kind.
func Mine(root string, language grammar.Language, options MinerOptions) (*grammar.Fragments, error) {
	fragments := &grammar.Fragments{Ranges: make(map[string][]grammar.ByteRange)}
	seen := make(map[string]map[string]struct{})

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == ".git" || entry.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(options.Include, rel) || matchesAny(options.Exclude, rel) {
			return nil
		}
		info, err := entry.Info()
		if err != nil || info.Size() > options.MaxFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		mineFile(fragments, seen, language, content, options)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return fragments, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func mineFile(fragments *grammar.Fragments, seen map[string]map[string]struct{}, language grammar.Language, content []byte, options MinerOptions) {
	doc := textdocument.New(language, content)
	doc.Nodes(func(node *tree_sitter.Node) bool {
		if !node.IsNamed() || node.IsError() || node.IsMissing() {
			return true
		}
		kind := node.Kind()
		if fragments.Count(kind) >= options.MaxPerKind {
			return true
		}
		start, end := node.StartByte(), node.EndByte()
		if end-start == 0 || int(end-start) > options.MaxFragmentLen {
			return true
		}
		text := content[start:end]
		kindSeen, ok := seen[kind]
		if !ok {
			kindSeen = make(map[string]struct{})
			seen[kind] = kindSeen
		}
		if _, dup := kindSeen[string(text)]; dup {
			return true
		}
		kindSeen[string(text)] = struct{}{}
		fragments.Add(kind, text)
		return true
	})
}

// LoadGrammarJSON reads a tree-sitter grammar.json file for the mined
// language, when the caller has one available.
func LoadGrammarJSON(path string) (*grammar.Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grammar json: %w", err)
	}
	g, err := grammar.ParseGrammarJSON(data)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// InferLanguage guesses the language of a mined tree from its file
// extensions when the CLI flag is absent.
func InferLanguage(root string) (grammar.Language, error) {
	counts := make(map[grammar.Language]int)
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, language := range grammar.Languages() {
			if language.FileExtension() == ext {
				counts[language]++
			}
		}
		return nil
	})
	best := grammar.Language(0)
	bestCount := 0
	for language, count := range counts {
		if count > bestCount {
			best, bestCount = language, count
		}
	}
	if bestCount == 0 {
		return 0, fmt.Errorf("cannot infer language under %s; pass --language", root)
	}
	return best, nil
}
