// Package lspinput defines the two-dimensional fuzzing input: a workspace
// of source documents plus an ordered Language Server Protocol message
// sequence referring into them.
package lspinput

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/textdocument"
)

// ValidSegment reports whether a path segment may appear in a workspace:
// valid UTF-8, non-empty, no separator, and not a dot component.
func ValidSegment(segment string) bool {
	return segment != "" &&
		segment != "." &&
		segment != ".." &&
		utf8.ValidString(segment) &&
		!strings.ContainsAny(segment, "/\x00")
}

// Entry is either a document or a nested directory.
type Entry struct {
	Document  *textdocument.Document
	Directory *Workspace
}

func (e Entry) isFile() bool { return e.Document != nil }

// Workspace is an ordered mapping from path segments to entries. Order is
// insertion order; duplicates are rejected.
type Workspace struct {
	segments []string
	entries  map[string]Entry
}

func NewWorkspace() *Workspace {
	return &Workspace{entries: make(map[string]Entry)}
}

// AddDocument inserts a document under a relative slash-separated path,
// creating intermediate directories. Each path segment must be valid.
func (w *Workspace) AddDocument(path string, doc *textdocument.Document) error {
	segments := strings.Split(path, "/")
	current := w
	for i, segment := range segments {
		if !ValidSegment(segment) {
			return fmt.Errorf("invalid path segment %q in %q", segment, path)
		}
		last := i == len(segments)-1
		entry, exists := current.entries[segment]
		switch {
		case last && exists:
			return fmt.Errorf("duplicate workspace path %q", path)
		case last:
			current.insert(segment, Entry{Document: doc})
		case exists && entry.Directory == nil:
			return fmt.Errorf("path %q passes through a file", path)
		case exists:
			current = entry.Directory
		default:
			dir := NewWorkspace()
			current.insert(segment, Entry{Directory: dir})
			current = dir
		}
	}
	return nil
}

func (w *Workspace) insert(segment string, entry Entry) {
	w.segments = append(w.segments, segment)
	w.entries[segment] = entry
}

// Walk visits every document in insertion order with its slash-separated
// relative path.
func (w *Workspace) Walk(visit func(path string, doc *textdocument.Document)) {
	w.walk("", visit)
}

func (w *Workspace) walk(prefix string, visit func(string, *textdocument.Document)) {
	for _, segment := range w.segments {
		entry := w.entries[segment]
		path := segment
		if prefix != "" {
			path = prefix + "/" + segment
		}
		if entry.isFile() {
			visit(path, entry.Document)
		} else {
			entry.Directory.walk(path, visit)
		}
	}
}

// Documents returns path/document pairs in insertion order.
func (w *Workspace) Documents() []DocumentRef {
	var out []DocumentRef
	w.Walk(func(path string, doc *textdocument.Document) {
		out = append(out, DocumentRef{Path: path, Document: doc})
	})
	return out
}

type DocumentRef struct {
	Path     string
	Document *textdocument.Document
}

// Lookup resolves a slash-separated relative path to a document.
func (w *Workspace) Lookup(path string) (*textdocument.Document, bool) {
	segments := strings.Split(path, "/")
	current := w
	for i, segment := range segments {
		entry, ok := current.entries[segment]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			if entry.isFile() {
				return entry.Document, true
			}
			return nil, false
		}
		if entry.Directory == nil {
			return nil, false
		}
		current = entry.Directory
	}
	return nil, false
}

// Len returns the number of documents in the tree.
func (w *Workspace) Len() int {
	n := 0
	w.Walk(func(string, *textdocument.Document) { n++ })
	return n
}

// ByteLen sums path and content lengths; the scheduler weighs inputs by it.
func (w *Workspace) ByteLen() int {
	n := 0
	w.Walk(func(path string, doc *textdocument.Document) {
		n += len(path) + doc.Len()
	})
	return n
}

// Clone deep-copies the workspace tree and its documents.
func (w *Workspace) Clone() *Workspace {
	out := NewWorkspace()
	for _, segment := range w.segments {
		entry := w.entries[segment]
		if entry.isFile() {
			out.insert(segment, Entry{Document: entry.Document.Clone()})
		} else {
			out.insert(segment, Entry{Directory: entry.Directory.Clone()})
		}
	}
	return out
}

// Hash returns the 64-bit content hash used to name the materialisation
// directory, computed over the canonical (sorted) serialization so that
// identical workspaces share a directory.
func (w *Workspace) Hash() uint64 {
	digest := xxhash.New()
	refs := w.Documents()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	for _, ref := range refs {
		_, _ = digest.WriteString(ref.Path)
		_, _ = digest.Write([]byte{0})
		_, _ = digest.Write(ref.Document.Content())
		_, _ = digest.Write([]byte{0, byte(ref.Document.Language())})
	}
	return digest.Sum64()
}

// Materialize writes the workspace under dir, creating directories as
// needed.
func (w *Workspace) Materialize(dir string) error {
	for _, ref := range w.Documents() {
		dest := filepath.Join(dir, filepath.FromSlash(ref.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating workspace directory: %w", err)
		}
		if err := os.WriteFile(dest, ref.Document.Content(), 0o644); err != nil {
			return fmt.Errorf("writing workspace file %s: %w", ref.Path, err)
		}
	}
	return nil
}

// SeedWorkspace builds the minimal single-document workspace the generator
// starts from when no seed corpus is given.
func SeedWorkspace(language grammar.Language) *Workspace {
	seed := seedContent[language]
	if seed == "" {
		seed = "\n"
	}
	w := NewWorkspace()
	_ = w.AddDocument("main"+language.FileExtension(), textdocument.New(language, []byte(seed)))
	return w
}

var seedContent = map[grammar.Language]string{
	grammar.LangC:          "int main() { return 0; }\n",
	grammar.LangCpp:        "int main() { return 0; }\n",
	grammar.LangCSharp:     "class Program { static void Main() {} }\n",
	grammar.LangGo:         "package main\n\nfunc main() {}\n",
	grammar.LangJava:       "class Main { public static void main(String[] args) {} }\n",
	grammar.LangJavaScript: "function main() { return 0; }\n",
	grammar.LangPHP:        "<?php\nfunction main() { return 0; }\n",
	grammar.LangPython:     "def main():\n    return 0\n",
	grammar.LangRust:       "fn main() {}\n",
	grammar.LangTypeScript: "function main(): number { return 0; }\n",
	grammar.LangZig:        "pub fn main() void {}\n",
}
