package corpus

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

func TestCorpusAddAndMirror(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	entry, err := c.Add(lspinput.Seed(grammar.LangC), &lspinput.ResponseFragments{}, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.ID)
	assert.EqualValues(t, 7, entry.FoundAt)

	_, err = os.Stat(filepath.Join(dir, "id_000000"))
	assert.NoError(t, err)

	inputs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, entry.Input.Workspace.Hash(), inputs[0].Workspace.Hash())
}

func TestSolutionsNaming(t *testing.T) {
	dir := t.TempDir()
	solutions, err := NewSolutions(dir)
	require.NoError(t, err)

	first, err := solutions.Add(lspinput.Seed(grammar.LangC))
	require.NoError(t, err)
	second, err := solutions.Add(lspinput.Seed(grammar.LangRust))
	require.NoError(t, err)
	assert.Equal(t, "input_000000", filepath.Base(first))
	assert.Equal(t, "input_000001", filepath.Base(second))
}

func TestSchedulerPrefersFastShortEntries(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	small, err := c.Add(lspinput.Seed(grammar.LangC), nil, 0)
	require.NoError(t, err)
	small.AvgExecTime = time.Millisecond
	small.Calibrated = true

	big := lspinput.Seed(grammar.LangC)
	doc, _ := big.Workspace.Lookup("main.c")
	doc.Splice(doc.TerminalRanges()[0], make([]byte, 4096))
	bigEntry, err := c.Add(big, nil, 0)
	require.NoError(t, err)
	bigEntry.AvgExecTime = 100 * time.Millisecond
	bigEntry.Calibrated = true

	rng := rand.New(rand.NewPCG(1, 1))
	scheduler := NewScheduler(ScheduleFast, false)
	counts := map[int]int{}
	for i := 0; i < 2000; i++ {
		counts[scheduler.Select(rng, c).ID]++
	}
	assert.Greater(t, counts[small.ID], counts[bigEntry.ID]*10,
		"short fast entries dominate selection")
}

func TestPowerScoreBounds(t *testing.T) {
	entry := &Entry{Input: lspinput.Seed(grammar.LangC)}
	for _, schedule := range []PowerSchedule{ScheduleFast, ScheduleExplore, ScheduleExploit, ScheduleLin, ScheduleQuad, ScheduleCoe} {
		scheduler := NewScheduler(schedule, false)
		for selected := 0; selected < 64; selected += 8 {
			entry.Selected = selected
			score := scheduler.PowerScore(entry)
			assert.GreaterOrEqual(t, score, 1)
			assert.LessOrEqual(t, score, 256)
		}
	}
}

func TestParsePowerSchedule(t *testing.T) {
	schedule, err := ParsePowerSchedule("EXPLORE")
	require.NoError(t, err)
	assert.Equal(t, ScheduleExplore, schedule)
	_, err = ParsePowerSchedule("warp")
	assert.Error(t, err)
}
