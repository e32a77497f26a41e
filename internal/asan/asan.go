// Package asan parses AddressSanitizer log files: the ==pid== report
// lines, the severity classification, and the stack frames used for crash
// deduplication.
package asan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Frame is one parsed stack-trace entry.
type Frame struct {
	Index    int
	Address  uint64
	Function string
	Module   string
	Offset   uint64
	File     string
	Line     int
	Column   int
}

// Severity buckets reports the way crash triage sorts them.
type Severity uint8

const (
	SeverityUnknown Severity = iota
	SeverityNotExploitable
	SeverityProbablyExploitable
	SeverityExploitable
)

func (s Severity) String() string {
	switch s {
	case SeverityExploitable:
		return "EXPLOITABLE"
	case SeverityProbablyExploitable:
		return "PROBABLY_EXPLOITABLE"
	case SeverityNotExploitable:
		return "NOT_EXPLOITABLE"
	default:
		return "UNKNOWN"
	}
}

// Report is a parsed sanitizer log.
type Report struct {
	Pid      int
	Class    string
	Severity Severity
	Summary  []string
	Frames   []Frame
}

// StackHash returns the 64-bit dedup key over the stack trace: function
// names where known, otherwise module+offset.
func (r *Report) StackHash() uint64 {
	digest := xxhash.New()
	for _, frame := range r.Frames {
		if frame.Function != "" {
			_, _ = digest.WriteString(frame.Function)
		} else {
			_, _ = digest.WriteString(frame.Module)
			_, _ = digest.WriteString(strconv.FormatUint(frame.Offset, 16))
		}
		_, _ = digest.Write([]byte{0})
	}
	return digest.Sum64()
}

// TopFunction returns the innermost named frame, used by triage clustering.
func (r *Report) TopFunction() string {
	for _, frame := range r.Frames {
		if frame.Function != "" {
			return frame.Function
		}
	}
	return ""
}

var (
	reportLineRe = regexp.MustCompile(`^==(\d+)==\s?(.*)$`)
	frameRe      = regexp.MustCompile(`^\s*#(\d+)\s+0x([0-9a-fA-F]+)\s+(?:in\s+)?(.*)$`)
	moduleRe     = regexp.MustCompile(`\(([^)+]+)\+0x([0-9a-fA-F]+)\)`)
	locationRe   = regexp.MustCompile(`([^\s:]+):(\d+)(?::(\d+))?\s*$`)
)

// Classification of the error kind string extracted from the first report
// line, roughly following the libcasr execution classes.
var severityByClass = map[string]Severity{
	"heap-buffer-overflow":   SeverityExploitable,
	"stack-buffer-overflow":  SeverityExploitable,
	"global-buffer-overflow": SeverityExploitable,
	"heap-use-after-free":    SeverityExploitable,
	"stack-use-after-return": SeverityExploitable,
	"use-after-poison":       SeverityExploitable,
	"double-free":            SeverityExploitable,
	"SEGV":                   SeverityProbablyExploitable,
	"stack-overflow":         SeverityProbablyExploitable,
	"FPE":                    SeverityNotExploitable,
	"allocation-size-too-big": SeverityNotExploitable,
	"out-of-memory":           SeverityNotExploitable,
	"memory-leaks":            SeverityNotExploitable,
	"LeakSanitizer":           SeverityNotExploitable,
}

// Parse extracts the report from a raw sanitizer log. Logs with no
// ==pid== line produce an error; callers log and drop the observation.
func Parse(log []byte) (*Report, error) {
	report := &Report{Severity: SeverityUnknown}
	lines := strings.Split(string(log), "\n")
	sawHeader := false
	for _, line := range lines {
		if match := reportLineRe.FindStringSubmatch(line); match != nil {
			pid, _ := strconv.Atoi(match[1])
			if !sawHeader {
				// The first ==pid== line names the error; the summary
				// keeps the rest.
				sawHeader = true
				report.Pid = pid
				report.Class = classify(match[2])
				report.Severity = severityByClass[report.Class]
				continue
			}
			if strings.TrimSpace(match[2]) != "" {
				report.Summary = append(report.Summary, match[2])
			}
			continue
		}
		if frame, ok := parseFrame(line); ok {
			report.Frames = append(report.Frames, frame)
		}
	}
	if !sawHeader {
		return nil, fmt.Errorf("no sanitizer report header in log")
	}
	return report, nil
}

func classify(headline string) string {
	for class := range severityByClass {
		if strings.Contains(headline, class) {
			return class
		}
	}
	fields := strings.Fields(headline)
	if len(fields) > 0 {
		return strings.Trim(fields[len(fields)-1], ":")
	}
	return "unknown"
}

func parseFrame(line string) (Frame, bool) {
	match := frameRe.FindStringSubmatch(line)
	if match == nil {
		return Frame{}, false
	}
	index, _ := strconv.Atoi(match[1])
	address, _ := strconv.ParseUint(match[2], 16, 64)
	frame := Frame{Index: index, Address: address}
	rest := match[3]

	if moduleMatch := moduleRe.FindStringSubmatch(rest); moduleMatch != nil {
		frame.Module = moduleMatch[1]
		frame.Offset, _ = strconv.ParseUint(moduleMatch[2], 16, 64)
		rest = strings.TrimSpace(moduleRe.ReplaceAllString(rest, ""))
	}
	if locMatch := locationRe.FindStringSubmatch(rest); locMatch != nil {
		frame.File = locMatch[1]
		frame.Line, _ = strconv.Atoi(locMatch[2])
		if locMatch[3] != "" {
			frame.Column, _ = strconv.Atoi(locMatch[3])
		}
		rest = strings.TrimSpace(strings.TrimSuffix(rest, locMatch[0]))
	}
	if rest != "" && !strings.HasPrefix(rest, "(") {
		frame.Function = strings.Fields(rest)[0]
	}
	return frame, true
}
