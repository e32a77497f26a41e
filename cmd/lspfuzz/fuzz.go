//go:build linux

package main

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/standardbeagle/lspfuzz/internal/config"
	"github.com/standardbeagle/lspfuzz/internal/corpus"
	"github.com/standardbeagle/lspfuzz/internal/forkserver"
	"github.com/standardbeagle/lspfuzz/internal/fuzzer"
	"github.com/standardbeagle/lspfuzz/internal/generate"
	"github.com/standardbeagle/lspfuzz/internal/grammar"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/target"
)

func fuzzCommand() *cli.Command {
	return &cli.Command{
		Name:  "fuzz",
		Usage: "Run a fuzzing campaign against an instrumented LSP server",
		Flags: append(targetFlags(),
			&cli.StringFlag{Name: "corpus", Usage: "Corpus directory", Value: "corpus"},
			&cli.StringFlag{Name: "crashes", Usage: "Solutions directory", Value: "crashes"},
			&cli.StringFlag{Name: "seeds-dir", Usage: "Seed corpus directory"},
			&cli.StringFlag{Name: "language", Usage: "Seed language when no seeds are given", Value: "c"},
			&cli.StringSliceFlag{Name: "fragments-file", Usage: "Mined derivation-fragments file (repeatable)"},
			&cli.StringFlag{Name: "power-schedule", Usage: "Power schedule (fast, explore, exploit, lin, quad, coe)"},
			&cli.BoolFlag{Name: "cycle-schedules", Usage: "Cycle through all power schedules"},
			&cli.Float64Flag{Name: "time-budget", Usage: "Stop after this many hours (0 = unlimited)"},
			&cli.IntFlag{Name: "cpu-core", Usage: "Pin the fuzzer to a CPU core", Value: -1},
			&cli.BoolFlag{Name: "shmem-input", Usage: "Deliver inputs via shared memory"},
			&cli.Uint64Flag{Name: "seed", Usage: "RNG seed (0 = time-based)"},
		),
		Action: runFuzz,
	}
}

func targetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "target", Usage: "Path to the instrumented LSP server", Required: true},
		&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
		&cli.IntFlag{Name: "map-size", Usage: "Coverage map size in bytes (0 = ask the target)"},
		&cli.Uint64Flag{Name: "exec-timeout", Usage: "Per-run timeout in milliseconds", Value: 1200},
		&cli.StringFlag{Name: "kill-signal", Usage: "Signal used to kill misbehaving children", Value: "SIGKILL"},
		&cli.IntFlag{Name: "crash-exit-code", Usage: "Exit code treated as a crash", Value: -1},
		&cli.BoolFlag{Name: "debug-child", Usage: "Inherit the child's stderr"},
	}
}

func parseKillSignal(name string) (syscall.Signal, error) {
	signals := map[string]syscall.Signal{
		"SIGKILL": unix.SIGKILL,
		"SIGTERM": unix.SIGTERM,
		"SIGINT":  unix.SIGINT,
		"SIGABRT": unix.SIGABRT,
		"SIGUSR1": unix.SIGUSR1,
		"SIGUSR2": unix.SIGUSR2,
	}
	signal, ok := signals[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("unknown kill signal %q", name)
	}
	return signal, nil
}

func executorConfig(c *cli.Context, binaryInfo target.BinaryInfo) (forkserver.ExecutorConfig, error) {
	killSignal, err := parseKillSignal(c.String("kill-signal"))
	if err != nil {
		return forkserver.ExecutorConfig{}, err
	}
	mapSize := c.Int("map-size")
	if mapSize == 0 {
		mapSize, err = target.DumpMapSize(c.String("target"))
		if err != nil {
			return forkserver.ExecutorConfig{}, fmt.Errorf("coverage map size unknown: %w", err)
		}
		log.Information("Target reports a coverage map of {MapSize} byte(s)", mapSize)
	}
	var crashExitCode *int
	if code := c.Int("crash-exit-code"); code >= 0 {
		crashExitCode = &code
	}
	return forkserver.ExecutorConfig{
		TargetPath:    c.String("target"),
		TargetArgs:    c.StringSlice("target-arg"),
		TempDir:       c.String("temp-dir"),
		MapSize:       mapSize,
		UseInputShm:   c.Bool("shmem-input"),
		Timeout:       time.Duration(c.Uint64("exec-timeout")) * time.Millisecond,
		KillSignal:    killSignal,
		CrashExitCode: crashExitCode,
		AsanEnabled:   binaryInfo.AddressSanitizer,
		Persistent:    binaryInfo.PersistentMode,
		Deferred:      binaryInfo.DeferForkServer,
		DebugChild:    c.Bool("debug-child"),
	}, nil
}

func loadGrammars(paths []string) (*grammar.ContextLookup, error) {
	var contexts []*grammar.Context
	for _, path := range paths {
		ctx, err := grammar.LoadContextFile(path)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, ctx)
	}
	return grammar.NewContextLookup(contexts...), nil
}

func runFuzz(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	binaryInfo, err := target.Scan(c.String("target"))
	if err != nil {
		return err
	}
	if !binaryInfo.AFLInstrumented {
		return fmt.Errorf("the target is not instrumented with AFL++")
	}
	if binaryInfo.PersistentMode {
		log.Information("Persistent mode detected")
	}
	if binaryInfo.DeferForkServer {
		log.Information("Deferred forkserver detected")
	}
	if binaryInfo.AddressSanitizer {
		log.Information("Target is built with AddressSanitizer")
	}

	if core := c.Int("cpu-core"); core >= 0 {
		var mask unix.CPUSet
		mask.Set(core)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			log.Warning("Failed to set CPU affinity to core {Core}: {Error}", core, err.Error())
		} else {
			log.Information("Pinned to CPU core {Core}", core)
		}
	}

	execConfig, err := executorConfig(c, binaryInfo)
	if err != nil {
		return err
	}

	grammars, err := loadGrammars(c.StringSlice("fragments-file"))
	if err != nil {
		return err
	}
	if len(c.StringSlice("fragments-file")) == 0 {
		log.Warning("No fragments file given; document mutations are disabled, only message mutations run")
	}

	schedule := corpus.ScheduleFast
	scheduleName := cfg.Fuzzing.PowerSchedule
	if flag := c.String("power-schedule"); flag != "" {
		scheduleName = flag
	}
	if scheduleName != "" {
		schedule, err = corpus.ParsePowerSchedule(scheduleName)
		if err != nil {
			return err
		}
	}

	seeds, err := loadSeeds(c)
	if err != nil {
		return err
	}

	rngSeed := c.Uint64("seed")
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	state := generate.NewState(rngSeed, grammars, cfg.Generators)
	state.MaxDocumentSize = cfg.Fuzzing.MaxDocumentSize

	options := fuzzer.Options{
		Executor:         execConfig,
		CorpusDir:        c.String("corpus"),
		SolutionDir:      c.String("crashes"),
		Seeds:            seeds,
		Generators:       cfg.Generators,
		Schedule:         schedule,
		CycleSchedules:   c.Bool("cycle-schedules") || cfg.Fuzzing.CycleSchedules,
		CalibrationRuns:  cfg.Fuzzing.CalibrationRuns,
		CleanupThreshold: cfg.Fuzzing.CleanupThreshold,
		TimeBudget:       time.Duration(c.Float64("time-budget") * float64(time.Hour)),
		RandomSeed:       rngSeed,
	}

	campaign, err := fuzzer.New(log, state, options)
	if err != nil {
		return err
	}
	defer campaign.Close()
	return campaign.Run()
}

func loadSeeds(c *cli.Context) ([]*lspinput.Input, error) {
	if dir := c.String("seeds-dir"); dir != "" {
		return corpus.LoadDir(dir)
	}
	language, err := grammar.ParseLanguage(c.String("language"))
	if err != nil {
		return nil, err
	}
	return []*lspinput.Input{lspinput.Seed(language)}, nil
}
