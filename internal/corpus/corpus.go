// Package corpus keeps the evolving input population, the on-disk
// solutions directory, and the power-scheduled entry selection.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// Entry is one corpus member plus its scheduling statistics and the
// response metadata written at insertion time.
type Entry struct {
	ID        int
	Input     *lspinput.Input
	Fragments *lspinput.ResponseFragments

	// Calibration results.
	AvgExecTime time.Duration
	Calibrated  bool

	// Scheduling counters.
	Selected   int
	FoundAt    uint64
	Performance float64
}

// Corpus is the in-memory population with an optional on-disk mirror.
type Corpus struct {
	entries []*Entry
	dir     string
}

// New creates a corpus; dir may be empty for memory-only operation.
func New(dir string) (*Corpus, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating corpus dir: %w", err)
		}
	}
	return &Corpus{dir: dir}, nil
}

// Add inserts an input and mirrors it to disk under a stable name.
func (c *Corpus) Add(in *lspinput.Input, fragments *lspinput.ResponseFragments, executions uint64) (*Entry, error) {
	entry := &Entry{
		ID:        len(c.entries),
		Input:     in,
		Fragments: fragments,
		FoundAt:   executions,
	}
	c.entries = append(c.entries, entry)
	if c.dir != "" {
		if err := writeEntry(c.dir, entry.ID, in); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func writeEntry(dir string, id int, in *lspinput.Input) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding corpus entry: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("id_%06d", id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing corpus entry: %w", err)
	}
	return nil
}

// Len returns the population size.
func (c *Corpus) Len() int { return len(c.entries) }

// Get returns the entry with the given id.
func (c *Corpus) Get(id int) *Entry { return c.entries[id] }

// Entries returns the live entry slice; callers must not reorder it.
func (c *Corpus) Entries() []*Entry { return c.entries }

// LoadDir reads every corpus entry file in a directory.
func LoadDir(dir string) ([]*lspinput.Input, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus dir: %w", err)
	}
	var inputs []*lspinput.Input
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading corpus entry %s: %w", file.Name(), err)
		}
		var in lspinput.Input
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("decoding corpus entry %s: %w", file.Name(), err)
		}
		inputs = append(inputs, &in)
	}
	return inputs, nil
}

// Solutions is the crash store. Crashes surface to the user as stable
// file names under the solutions directory.
type Solutions struct {
	dir  string
	next int
}

func NewSolutions(dir string) (*Solutions, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating solutions dir: %w", err)
	}
	return &Solutions{dir: dir}, nil
}

// Add stores a crashing input as input_<n> and returns the path.
func (s *Solutions) Add(in *lspinput.Input) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encoding solution: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("input_%06d", s.next))
	s.next++
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing solution: %w", err)
	}
	return path, nil
}
