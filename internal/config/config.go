// Package config loads the fuzzer configuration file and applies CLI flag
// overrides on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/lspfuzz/internal/generate"
)

// Config is the on-disk TOML shape. Zero values fall back to defaults.
type Config struct {
	// Generators toggles the deliberately-invalid generation paths.
	Generators generate.Config `toml:"generators"`

	Fuzzing FuzzingConfig `toml:"fuzzing"`
}

type FuzzingConfig struct {
	// CalibrationRuns is how many times a new entry executes during
	// calibration.
	CalibrationRuns int `toml:"calibration_runs"`
	// CleanupThreshold is the execution count between workspace GC sweeps.
	CleanupThreshold uint64 `toml:"cleanup_threshold"`
	// PowerSchedule names the scheduling formula (fast, explore, …).
	PowerSchedule string `toml:"power_schedule"`
	// CycleSchedules rotates through all schedules during the campaign.
	CycleSchedules bool `toml:"cycle_schedules"`
	// MaxDocumentSize caps mutated document growth in bytes.
	MaxDocumentSize int `toml:"max_document_size"`
}

func Default() *Config {
	return &Config{
		Generators: generate.DefaultConfig(),
		Fuzzing: FuzzingConfig{
			CalibrationRuns:  4,
			CleanupThreshold: 4096,
			PowerSchedule:    "fast",
			MaxDocumentSize:  generate.DefaultMaxDocumentSize,
		},
	}
}

// Load reads a TOML config file. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Fuzzing.CalibrationRuns <= 0 {
		cfg.Fuzzing.CalibrationRuns = 4
	}
	if cfg.Fuzzing.MaxDocumentSize <= 0 {
		cfg.Fuzzing.MaxDocumentSize = generate.DefaultMaxDocumentSize
	}
	return cfg, nil
}
