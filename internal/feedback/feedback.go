// Package feedback decides which executions are interesting (stored in the
// corpus) and which are solutions (stored as crashes).
package feedback

import (
	"github.com/standardbeagle/lspfuzz/internal/forkserver"
	"github.com/standardbeagle/lspfuzz/internal/observe"
)

// MaxMapFeedback keeps the best hitcount-class per edge seen so far and
// reports executions that raise any entry.
type MaxMapFeedback struct {
	observer *observe.MapObserver
	history  []byte
	filled   int
}

func NewMaxMapFeedback(observer *observe.MapObserver) *MaxMapFeedback {
	return &MaxMapFeedback{
		observer: observer,
		history:  make([]byte, observer.Len()),
	}
}

// IsInteresting merges the last run's classified map into the history and
// reports whether anything new appeared.
func (f *MaxMapFeedback) IsInteresting() bool {
	snapshot := f.observer.Snapshot()
	if len(f.history) != len(snapshot) {
		f.history = make([]byte, len(snapshot))
	}
	interesting := false
	for i, v := range snapshot {
		if v > f.history[i] {
			f.history[i] = v
			interesting = true
		}
	}
	return interesting
}

// CoveredEdges counts history entries with any coverage, for stats.
func (f *MaxMapFeedback) CoveredEdges() int {
	n := 0
	for _, v := range f.history {
		if v != 0 {
			n++
		}
	}
	return n
}

// CrashObjective implements the solution decision with fast-AND semantics:
// Crash ∧ (¬ASan ∨ novel stack hash). Without ASan every crash is kept;
// with ASan only the first crash per stack-hash class.
type CrashObjective struct {
	asanEnabled bool
	backtrace   *observe.BacktraceObserver
	seenHashes  map[uint64]struct{}
}

func NewCrashObjective(asanEnabled bool, backtrace *observe.BacktraceObserver) *CrashObjective {
	return &CrashObjective{
		asanEnabled: asanEnabled,
		backtrace:   backtrace,
		seenHashes:  make(map[uint64]struct{}),
	}
}

// IsSolution reports whether the execution should be stored as a crash.
func (o *CrashObjective) IsSolution(kind forkserver.ExitKind) bool {
	if kind != forkserver.ExitCrash {
		return false
	}
	if !o.asanEnabled {
		return true
	}
	hash := o.backtrace.Hash()
	if _, seen := o.seenHashes[hash]; seen {
		return false
	}
	o.seenHashes[hash] = struct{}{}
	return true
}
