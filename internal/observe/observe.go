// Package observe turns raw execution artifacts into the observations the
// feedbacks consume: edge coverage, wall-clock time, the target's JSON-RPC
// output, and the sanitizer backtrace.
package observe

import (
	"bufio"
	"bytes"
	"time"

	"github.com/standardbeagle/lspfuzz/internal/asan"
	"github.com/standardbeagle/lspfuzz/internal/lsp/jsonrpc"
)

// hitcountClasses bucket raw edge counters the way AFL does, so loop
// iteration counts collapse into coarse classes.
var hitcountClasses = buildHitcountClasses()

func buildHitcountClasses() [256]byte {
	var classes [256]byte
	for i := range classes {
		switch {
		case i == 0:
			classes[i] = 0
		case i == 1:
			classes[i] = 1
		case i == 2:
			classes[i] = 2
		case i == 3:
			classes[i] = 4
		case i <= 7:
			classes[i] = 8
		case i <= 15:
			classes[i] = 16
		case i <= 31:
			classes[i] = 32
		case i <= 127:
			classes[i] = 64
		default:
			classes[i] = 128
		}
	}
	return classes
}

// MapObserver wraps the shared coverage map. The map is written by the
// child and read here after it exits; the observer classifies hitcounts
// into a private snapshot.
type MapObserver struct {
	shared   []byte
	snapshot []byte
}

func NewMapObserver(shared []byte) *MapObserver {
	return &MapObserver{shared: shared, snapshot: make([]byte, len(shared))}
}

// Truncate shrinks the observed window after handshake negotiation.
func (o *MapObserver) Truncate(size int) {
	if size < len(o.shared) {
		o.shared = o.shared[:size]
		o.snapshot = o.snapshot[:size]
	}
}

// Len returns the observed map size.
func (o *MapObserver) Len() int { return len(o.shared) }

// PostExec snapshots and classifies the shared map.
func (o *MapObserver) PostExec() {
	for i, v := range o.shared {
		o.snapshot[i] = hitcountClasses[v]
	}
}

// Snapshot returns the classified coverage of the last run.
func (o *MapObserver) Snapshot() []byte { return o.snapshot }

// TimeObserver records per-run wall-clock duration.
type TimeObserver struct {
	last time.Duration
}

func (o *TimeObserver) Record(d time.Duration) { o.last = d }

func (o *TimeObserver) Last() time.Duration { return o.last }

// ResponseObserver parses all JSON-RPC frames present on the target's
// stdout, stopping at EOF or the first invalid frame.
type ResponseObserver struct {
	messages []jsonrpc.Message
}

// PreExec clears the buffered messages.
func (o *ResponseObserver) PreExec() {
	o.messages = o.messages[:0]
}

// Capture parses the raw stdout bytes of one run.
func (o *ResponseObserver) Capture(stdout []byte) {
	reader := bufio.NewReader(bytes.NewReader(stdout))
	for {
		msg, err := jsonrpc.Decode(reader)
		if err != nil {
			return
		}
		o.messages = append(o.messages, *msg)
	}
}

// Messages returns the frames captured for the last run.
func (o *ResponseObserver) Messages() []jsonrpc.Message { return o.messages }

// BacktraceObserver keeps the parsed sanitizer report of the last run and
// its stack hash.
type BacktraceObserver struct {
	report *asan.Report
	hash   uint64
}

// PreExec drops the previous report.
func (o *BacktraceObserver) PreExec() {
	o.report = nil
	o.hash = 0
}

// Observe parses an ASan log; malformed logs discard the observation.
func (o *BacktraceObserver) Observe(log []byte) error {
	if len(log) == 0 {
		return nil
	}
	report, err := asan.Parse(log)
	if err != nil {
		return err
	}
	o.report = report
	o.hash = report.StackHash()
	return nil
}

// Report returns the parsed report of the last run, or nil.
func (o *BacktraceObserver) Report() *asan.Report { return o.report }

// Hash returns the stack hash of the last run, 0 when no report exists.
func (o *BacktraceObserver) Hash() uint64 { return o.hash }
