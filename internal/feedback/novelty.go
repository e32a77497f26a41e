package feedback

import (
	"encoding/binary"
	"encoding/json"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/observe"
)

// Bloom filter sizing for the process-wide novelty sets.
const (
	noveltyCapacity = 1_000_000
	noveltyFPRate   = 0.001
)

// DiagnosticNovelty tracks ⟨diagnostic code, source⟩ pairs across the
// whole campaign. Once a pair is seen it stays seen; the filter never
// regresses.
type DiagnosticNovelty struct {
	observer *observe.ResponseObserver
	seen     *bloom.BloomFilter
}

func NewDiagnosticNovelty(observer *observe.ResponseObserver) *DiagnosticNovelty {
	return &DiagnosticNovelty{
		observer: observer,
		seen:     bloom.NewWithEstimates(noveltyCapacity, noveltyFPRate),
	}
}

// IsInteresting reports whether any PublishDiagnostics notification of the
// last run carried a ⟨code, source⟩ pair not yet in the filter, merging
// all pairs as a side effect.
func (f *DiagnosticNovelty) IsInteresting() bool {
	interesting := false
	for _, pair := range diagnosticPairs(f.observer) {
		if !f.seen.TestOrAdd(pair) {
			interesting = true
		}
	}
	return interesting
}

func diagnosticPairs(observer *observe.ResponseObserver) [][]byte {
	var pairs [][]byte
	for _, msg := range observer.Messages() {
		if msg.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var params lsp.PublishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			continue
		}
		for _, diag := range params.Diagnostics {
			key := make([]byte, 0, len(diag.Code)+len(diag.Source)+1)
			key = append(key, diag.Code...)
			key = append(key, 0)
			key = append(key, diag.Source...)
			pairs = append(pairs, key)
		}
	}
	return pairs
}

// OperationContextNovelty tracks ⟨language, tree-path hash, method⟩
// triples: the syntactic context a request pointed at, per method.
type OperationContextNovelty struct {
	seen *bloom.BloomFilter
}

func NewOperationContextNovelty() *OperationContextNovelty {
	return &OperationContextNovelty{seen: bloom.NewWithEstimates(noveltyCapacity, noveltyFPRate)}
}

// OperationContextTriples computes the operation-context triples of an
// input: one per position/range a request points into a document.
func OperationContextTriples(in *lspinput.Input) [][]byte {
	var triples [][]byte
	for _, msg := range in.Messages {
		uri, ok := msg.DocumentURI()
		if !ok {
			continue
		}
		doc, ok := in.DocumentFor(uri)
		if !ok {
			continue
		}
		record := func(pathHash uint64) {
			key := make([]byte, 0, 10+len(msg.Method()))
			key = append(key, byte(doc.Language()))
			key = binary.BigEndian.AppendUint64(key, pathHash)
			key = append(key, msg.Method()...)
			triples = append(triples, key)
		}
		hashIDs := func(kindIDs []uint16) uint64 {
			digest := xxhash.New()
			var buf [2]byte
			for _, id := range kindIDs {
				binary.BigEndian.PutUint16(buf[:], id)
				_, _ = digest.Write(buf[:])
			}
			return digest.Sum64()
		}
		for _, pos := range msg.Positions() {
			point := tree_sitter.Point{Row: uint(pos.Line), Column: uint(pos.Character)}
			if hash, ok := doc.PathHashAt(point, point, hashIDs); ok {
				record(hash)
			}
		}
		for _, r := range msg.Ranges() {
			start := tree_sitter.Point{Row: uint(r.Start.Line), Column: uint(r.Start.Character)}
			end := tree_sitter.Point{Row: uint(r.End.Line), Column: uint(r.End.Character)}
			if hash, ok := doc.PathHashAt(start, end, hashIDs); ok {
				record(hash)
			}
		}
	}
	return triples
}

// IsInteresting reports whether the input exercises a request method on a
// syntactic context not yet seen, merging every triple as a side effect.
func (f *OperationContextNovelty) IsInteresting(in *lspinput.Input) bool {
	interesting := false
	for _, triple := range OperationContextTriples(in) {
		if !f.seen.TestOrAdd(triple) {
			interesting = true
		}
	}
	return interesting
}

// Merge folds triples into the filter without a novelty verdict, used by
// the metadata-append path on corpus insertion.
func (f *OperationContextNovelty) Merge(in *lspinput.Input) {
	for _, triple := range OperationContextTriples(in) {
		f.seen.Add(triple)
	}
}
