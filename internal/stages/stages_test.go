package stages

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTimeBudget(t *testing.T) {
	unlimited := NewTimeBudget(0)
	assert.False(t, unlimited.Expired())

	tiny := NewTimeBudget(time.Nanosecond)
	time.Sleep(time.Millisecond)
	assert.True(t, tiny.Expired())
}

func makeDir(t *testing.T, base, name string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestWorkspaceCleanupWatermark(t *testing.T) {
	base := t.TempDir()
	cleanup := NewWorkspaceCleanup(10)

	old := makeDir(t, base, "ws_old")
	recent := makeDir(t, base, "ws_recent")
	cleanup.Track(old, 1)

	// Below the threshold nothing happens.
	cleanup.MaybePerform(5)
	cleanup.Wait()
	_, err := os.Stat(old)
	assert.NoError(t, err)

	// The first sweep advances the watermark; only directories whose last
	// use predates the watermark of the sweep are removed.
	cleanup.MaybePerform(12)
	cleanup.Wait()
	_, err = os.Stat(old)
	assert.NoError(t, err, "nothing predates the initial watermark")

	// After the watermark moved to 12, the next sweep removes the dir last
	// used before it; the one used at 20 survives.
	cleanup.Track(recent, 20)
	cleanup.MaybePerform(24)
	cleanup.Wait()
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err), "old workspace must be removed")
	_, err = os.Stat(recent)
	assert.NoError(t, err, "recently used workspace survives")
}

func TestWorkspaceCleanupMissingDirIsFine(t *testing.T) {
	cleanup := NewWorkspaceCleanup(1)
	cleanup.Track("/nonexistent/lspfuzz-test-dir", 1)
	cleanup.MaybePerform(10)
	cleanup.Wait()
}
