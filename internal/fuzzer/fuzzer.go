//go:build linux

// Package fuzzer wires the executor, observers, feedbacks, corpus, and
// stages into the single-threaded fuzzing loop.
package fuzzer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/willibrandon/mtlog/core"

	"github.com/standardbeagle/lspfuzz/internal/corpus"
	"github.com/standardbeagle/lspfuzz/internal/feedback"
	"github.com/standardbeagle/lspfuzz/internal/forkserver"
	"github.com/standardbeagle/lspfuzz/internal/generate"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
	"github.com/standardbeagle/lspfuzz/internal/mutate"
	"github.com/standardbeagle/lspfuzz/internal/observe"
	"github.com/standardbeagle/lspfuzz/internal/stages"
)

// Options configures one fuzzing campaign.
type Options struct {
	Executor    forkserver.ExecutorConfig
	CorpusDir   string
	SolutionDir string
	Seeds       []*lspinput.Input

	Generators       generate.Config
	Schedule         corpus.PowerSchedule
	CycleSchedules   bool
	CalibrationRuns  int
	CleanupThreshold uint64
	TimeBudget       time.Duration
	RandomSeed       uint64
}

// Fuzzer owns everything alive during a campaign.
type Fuzzer struct {
	log core.Logger

	state    *generate.State
	executor *forkserver.Executor

	edges     *observe.MapObserver
	times     *observe.TimeObserver
	responses *observe.ResponseObserver
	backtrace *observe.BacktraceObserver

	mapFeedback *feedback.MaxMapFeedback
	diagNovelty *feedback.DiagnosticNovelty
	opsNovelty  *feedback.OperationContextNovelty
	objective   *feedback.CrashObjective

	corpus    *corpus.Corpus
	solutions *corpus.Solutions
	scheduler *corpus.Scheduler
	mutators  []mutate.Mutator

	stop    *stages.StopHandler
	budget  *stages.TimeBudget
	cleanup *stages.WorkspaceCleanup

	calibrationRuns int
	executions      uint64
	crashes         uint64
	timeouts        uint64
}

// New builds the campaign: spawns the target, performs the handshake, and
// seeds the state.
func New(log core.Logger, state *generate.State, options Options) (*Fuzzer, error) {
	executor, err := forkserver.NewExecutor(options.Executor)
	if err != nil {
		return nil, err
	}

	edges := observe.NewMapObserver(executor.CoverageMap())
	responses := &observe.ResponseObserver{}
	backtrace := &observe.BacktraceObserver{}

	corpusStore, err := corpus.New(options.CorpusDir)
	if err != nil {
		executor.Close()
		return nil, err
	}
	solutions, err := corpus.NewSolutions(options.SolutionDir)
	if err != nil {
		executor.Close()
		return nil, err
	}

	if tokens := executor.AutoTokens(); len(tokens) > 0 {
		state.Tokens = parseAutoDict(tokens)
		log.Information("Extracted {Count} auto-dictionary token(s) from the target", len(state.Tokens))
	}

	calibrationRuns := options.CalibrationRuns
	if calibrationRuns <= 0 {
		calibrationRuns = 4
	}

	fuzzer := &Fuzzer{
		log:             log.ForContext("Component", "fuzzer"),
		state:           state,
		executor:        executor,
		edges:           edges,
		times:           &observe.TimeObserver{},
		responses:       responses,
		backtrace:       backtrace,
		mapFeedback:     feedback.NewMaxMapFeedback(edges),
		diagNovelty:     feedback.NewDiagnosticNovelty(responses),
		opsNovelty:      feedback.NewOperationContextNovelty(),
		objective:       feedback.NewCrashObjective(options.Executor.AsanEnabled, backtrace),
		corpus:          corpusStore,
		solutions:       solutions,
		scheduler:       corpus.NewScheduler(options.Schedule, options.CycleSchedules),
		mutators:        mutate.All(options.Generators),
		stop:            stages.InstallStopHandler(),
		budget:          stages.NewTimeBudget(options.TimeBudget),
		cleanup:         stages.NewWorkspaceCleanup(options.CleanupThreshold),
		calibrationRuns: calibrationRuns,
	}

	for _, seed := range options.Seeds {
		if _, err := fuzzer.evaluate(seed, true); err != nil {
			fuzzer.Close()
			return nil, fmt.Errorf("evaluating seed input: %w", err)
		}
	}
	if fuzzer.corpus.Len() == 0 && len(options.Seeds) > 0 {
		// Seeds that found nothing new still anchor the population.
		entry, err := fuzzer.corpus.Add(options.Seeds[0], &lspinput.ResponseFragments{}, fuzzer.executions)
		if err != nil {
			fuzzer.Close()
			return nil, err
		}
		fuzzer.calibrate(entry)
	}
	return fuzzer, nil
}

// parseAutoDict decodes the AFL autodict blob: length-prefixed tokens.
func parseAutoDict(blob []byte) [][]byte {
	var tokens [][]byte
	for len(blob) > 0 {
		n := int(blob[0])
		blob = blob[1:]
		if n == 0 || n > len(blob) {
			break
		}
		token := bytes.Clone(blob[:n])
		tokens = append(tokens, token)
		blob = blob[n:]
	}
	return tokens
}

// Run executes the fuzzing loop until SIGINT or the time budget expires.
func (f *Fuzzer) Run() error {
	f.log.Information("Entering fuzzing loop with {CorpusSize} corpus entries", f.corpus.Len())
	lastReport := time.Now()
	for {
		if f.stop.ShouldStop() {
			f.log.Information("Stop requested; finishing after {Executions} execution(s)", f.executions)
			return nil
		}
		if f.budget.Expired() {
			f.log.Information("Time budget exhausted after {Executions} execution(s)", f.executions)
			return nil
		}

		entry := f.scheduler.Select(f.state.Rand, f.corpus)
		if entry == nil {
			return fmt.Errorf("corpus is empty; provide seeds or a seed language")
		}
		if !entry.Calibrated {
			if err := f.calibrate(entry); err != nil {
				return err
			}
		}

		score := f.scheduler.PowerScore(entry)
		for i := 0; i < score; i++ {
			if f.stop.ShouldStop() {
				return nil
			}
			candidate := entry.Input.Clone()
			f.state.Fragments = entry.Fragments
			if !f.mutateOnce(candidate) {
				continue
			}
			if _, err := f.evaluate(candidate, false); err != nil {
				return err
			}
		}

		f.cleanup.MaybePerform(f.executions)
		if time.Since(lastReport) > 10*time.Second {
			f.log.Information(
				"exec={Executions} corpus={Corpus} crashes={Crashes} timeouts={Timeouts} edges={Edges}",
				f.executions, f.corpus.Len(), f.crashes, f.timeouts, f.mapFeedback.CoveredEdges(),
			)
			lastReport = time.Now()
		}
	}
}

// havocStackPow bounds how many mutations stack per candidate (2^0..2^6).
const havocStackPow = 6

// mutateOnce applies a havoc-style stack of mutations; false means every
// mutation in the stack skipped.
func (f *Fuzzer) mutateOnce(candidate *lspinput.Input) bool {
	stack := 1 << f.state.Rand.IntN(havocStackPow+1)
	mutated := false
	for i := 0; i < stack; i++ {
		mutator := f.mutators[f.state.Rand.IntN(len(f.mutators))]
		result, err := mutator.Mutate(f.state, candidate)
		if err != nil {
			f.log.Warning("Mutator {Mutator} failed: {Error}", mutator.Name(), err.Error())
			continue
		}
		if result == mutate.Mutated {
			mutated = true
		}
	}
	return mutated
}

// evaluate runs one input, applies feedbacks and the objective, and stores
// it when interesting.
func (f *Fuzzer) evaluate(in *lspinput.Input, isSeed bool) (*corpus.Entry, error) {
	execution, err := f.runOnce(in)
	if err != nil {
		return nil, err
	}

	interesting := f.mapFeedback.IsInteresting()
	interesting = f.diagNovelty.IsInteresting() || interesting
	interesting = f.opsNovelty.IsInteresting(in) || interesting

	if f.objective.IsSolution(execution.Result.Kind) {
		f.crashes++
		path, err := f.solutions.Add(in)
		if err != nil {
			return nil, err
		}
		f.log.Information("Crash stored at {Path} (kind={Kind})", path, execution.Result.Kind.String())
	}
	if execution.Result.Kind == forkserver.ExitTimeout {
		f.timeouts++
	}

	if !interesting && !isSeed {
		return nil, nil
	}
	if !interesting && isSeed && f.corpus.Len() > 0 {
		return nil, nil
	}

	fragments := feedback.CollectFragments(in, f.responses)
	f.opsNovelty.Merge(in)
	entry, err := f.corpus.Add(in, fragments, f.executions)
	if err != nil {
		return nil, err
	}
	return entry, f.calibrate(entry)
}

// runOnce performs one execution with the observer pre/post hooks.
func (f *Fuzzer) runOnce(in *lspinput.Input) (forkserver.Execution, error) {
	f.responses.PreExec()
	f.backtrace.PreExec()

	execution, err := f.executor.Run(in)
	if err != nil {
		return execution, err
	}
	f.executions++
	f.cleanup.Track(execution.WorkspaceDir, f.executions)

	f.edges.PostExec()
	f.times.Record(execution.Duration)
	f.responses.Capture(execution.Stdout)
	if err := f.backtrace.Observe(execution.AsanLog); err != nil {
		f.log.Debug("Discarding malformed sanitizer log: {Error}", err.Error())
	}
	return execution, nil
}

// calibrate runs an entry a fixed number of times to estimate its average
// execution time and warm up the coverage history.
func (f *Fuzzer) calibrate(entry *corpus.Entry) error {
	var total time.Duration
	for i := 0; i < f.calibrationRuns; i++ {
		execution, err := f.runOnce(entry.Input)
		if err != nil {
			return fmt.Errorf("calibrating entry %d: %w", entry.ID, err)
		}
		f.mapFeedback.IsInteresting()
		total += execution.Duration
	}
	entry.AvgExecTime = total / time.Duration(f.calibrationRuns)
	entry.Calibrated = true
	return nil
}

// Executions returns the campaign execution count.
func (f *Fuzzer) Executions() uint64 { return f.executions }

// Close tears down the executor and waits for the cleanup worker.
func (f *Fuzzer) Close() {
	f.executor.Close()
	f.cleanup.Wait()
}
