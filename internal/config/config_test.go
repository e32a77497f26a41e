package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.True(t, cfg.Generators.InvalidCode)
	assert.Equal(t, 4, cfg.Fuzzing.CalibrationRuns)
	assert.Equal(t, "fast", cfg.Fuzzing.PowerSchedule)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lspfuzz.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[generators]
invalid_positions = false
feedback_fragments = true

[fuzzing]
calibration_runs = 9
power_schedule = "explore"
cycle_schedules = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Generators.InvalidPositions)
	assert.Equal(t, 9, cfg.Fuzzing.CalibrationRuns)
	assert.Equal(t, "explore", cfg.Fuzzing.PowerSchedule)
	assert.True(t, cfg.Fuzzing.CycleSchedules)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[generators\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
