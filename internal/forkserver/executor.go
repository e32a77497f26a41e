//go:build linux

package forkserver

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// AsanLogPrefix is the file name prefix ASan appends ".<pid>" to.
const AsanLogPrefix = "lspfuzz-asan"

// WorkspaceDirPrefix prefixes materialised workspace directory names.
const WorkspaceDirPrefix = "lspfuzz-workspace_"

// ExecutorConfig collects everything needed to run inputs against one
// target binary.
type ExecutorConfig struct {
	TargetPath    string
	TargetArgs    []string
	TempDir       string
	MapSize       int
	UseInputShm   bool
	InputShmSize  int
	Timeout       time.Duration
	KillSignal    syscall.Signal
	CrashExitCode *int
	AsanEnabled   bool
	Persistent    bool
	Deferred      bool
	DebugChild    bool
}

// Execution is the observable outcome of running one input.
type Execution struct {
	Result   RunResult
	Duration time.Duration
	// Stdout is everything the child wrote; the response observer parses
	// it into JSON-RPC frames.
	Stdout []byte
	// AsanLog is the raw sanitizer log for this run, when one was found.
	AsanLog []byte
	// WorkspaceDir is where the input's workspace was materialised.
	WorkspaceDir string
}

// Executor owns the forkserver, the shared-memory segments, and the
// scratch files used to deliver inputs and capture output.
type Executor struct {
	config   ExecutorConfig
	fs       *Forkserver
	coverage *ShMem
	inputShm *ShMem

	inputFile  *os.File
	stdoutFile *os.File

	// mapSize is the effective coverage size after handshake truncation.
	mapSize int
	// autoTokens is the raw autodict blob from the handshake, if any.
	autoTokens []byte
}

// NewExecutor creates the shared memory, spawns the target, and completes
// the handshake.
func NewExecutor(config ExecutorConfig) (*Executor, error) {
	coverage, err := NewShMem(config.MapSize)
	if err != nil {
		return nil, fmt.Errorf("creating coverage map: %w", err)
	}
	executor := &Executor{config: config, coverage: coverage, mapSize: config.MapSize}

	if config.UseInputShm {
		size := config.InputShmSize
		if size == 0 {
			size = 1 << 22
		}
		executor.inputShm, err = NewShMem(size)
		if err != nil {
			executor.Close()
			return nil, fmt.Errorf("creating input shm: %w", err)
		}
	}

	executor.inputFile, err = os.CreateTemp(config.TempDir, "lspfuzz-input_*")
	if err != nil {
		executor.Close()
		return nil, fmt.Errorf("creating input file: %w", err)
	}
	executor.stdoutFile, err = os.CreateTemp(config.TempDir, "lspfuzz-stdout_*")
	if err != nil {
		executor.Close()
		return nil, fmt.Errorf("creating stdout capture file: %w", err)
	}

	spawnConfig := Config{
		Path:            config.TargetPath,
		Args:            config.TargetArgs,
		CoverageShmID:   coverage.ID,
		CoverageMapSize: config.MapSize,
		InputShm:        executor.inputShm,
		PersistentMode:  config.Persistent,
		DeferForkServer: config.Deferred,
		DebugChild:      config.DebugChild,
		KillSignal:      config.KillSignal,
	}
	if config.AsanEnabled {
		spawnConfig.Env = append(spawnConfig.Env, "ASAN_OPTIONS="+AsanOptions(config.TempDir))
	}

	executor.fs, err = Spawn(spawnConfig, executor.inputFile, executor.stdoutFile)
	if err != nil {
		executor.Close()
		return nil, err
	}

	handshake, err := executor.fs.Initialize(config.MapSize, executor.inputShm != nil)
	if err != nil {
		executor.Close()
		return nil, fmt.Errorf("forkserver handshake: %w", err)
	}
	if handshake.MapSize > 0 {
		executor.mapSize = handshake.MapSize
	}
	executor.autoTokens = handshake.AutoTokens
	return executor, nil
}

// AsanOptions renders the ASAN_OPTIONS value exported to the child.
func AsanOptions(workDir string) string {
	return "log_path=" + filepath.Join(workDir, AsanLogPrefix) +
		":abort_on_error=1" +
		":handle_segv=1:handle_sigbus=1:handle_abort=1:handle_sigill=1:handle_sigfpe=1" +
		":detect_leaks=1:allocator_may_return_null=1:disable_coredump=1:symbolize=1"
}

// MapSize returns the effective coverage map size.
func (e *Executor) MapSize() int { return e.mapSize }

// CoverageMap returns the live coverage bytes, truncated to the effective
// size. The target zeroes the map at the start of every fork; the harness
// never clears it.
func (e *Executor) CoverageMap() []byte { return e.coverage.Data[:e.mapSize] }

// AutoTokens returns the auto-dictionary blob negotiated at handshake.
func (e *Executor) AutoTokens() []byte { return e.autoTokens }

// WorkspaceDirFor returns the content-addressed materialisation directory
// for an input.
func (e *Executor) WorkspaceDirFor(in *lspinput.Input) string {
	return filepath.Join(e.config.TempDir, fmt.Sprintf("%s%016x", WorkspaceDirPrefix, in.Workspace.Hash()))
}

// Run materialises the workspace, delivers the serialized session, and
// executes one fork of the target.
func (e *Executor) Run(in *lspinput.Input) (Execution, error) {
	var execution Execution

	workspaceDir := e.WorkspaceDirFor(in)
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return execution, fmt.Errorf("creating workspace dir: %w", err)
	}
	if err := in.Workspace.Materialize(workspaceDir); err != nil {
		return execution, err
	}
	execution.WorkspaceDir = workspaceDir

	payload, err := in.RequestBytes(workspaceDir)
	if err != nil {
		return execution, err
	}
	if err := e.deliver(payload); err != nil {
		return execution, err
	}

	started := time.Now()
	result, err := e.fs.Run(e.config.Timeout, e.config.CrashExitCode)
	if err != nil {
		return execution, err
	}
	execution.Result = result
	execution.Duration = time.Since(started)

	execution.Stdout, err = e.drainStdout()
	if err != nil {
		return execution, err
	}

	if e.config.AsanEnabled {
		logPath := filepath.Join(e.config.TempDir, fmt.Sprintf("%s.%d", AsanLogPrefix, result.Pid))
		if data, err := os.ReadFile(logPath); err == nil {
			execution.AsanLog = data
			_ = os.Remove(logPath)
		}
	}
	return execution, nil
}

// deliver writes the payload into the input shm (length-prefixed, per the
// AFL shared-memory fuzzing convention) or into the stdin scratch file.
func (e *Executor) deliver(payload []byte) error {
	if e.inputShm != nil {
		if len(payload)+4 > e.inputShm.Len() {
			payload = payload[:e.inputShm.Len()-4]
		}
		binary.NativeEndian.PutUint32(e.inputShm.Data[:4], uint32(len(payload)))
		copy(e.inputShm.Data[4:], payload)
		return nil
	}
	if err := e.inputFile.Truncate(0); err != nil {
		return fmt.Errorf("truncating input file: %w", err)
	}
	if _, err := e.inputFile.WriteAt(payload, 0); err != nil {
		return fmt.Errorf("writing input file: %w", err)
	}
	if _, err := e.inputFile.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding input file: %w", err)
	}
	return nil
}

func (e *Executor) drainStdout() ([]byte, error) {
	info, err := e.stdoutFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat on stdout capture: %w", err)
	}
	data := make([]byte, info.Size())
	if _, err := e.stdoutFile.ReadAt(data, 0); err != nil && info.Size() > 0 {
		return nil, fmt.Errorf("reading stdout capture: %w", err)
	}
	if err := e.stdoutFile.Truncate(0); err != nil {
		return nil, fmt.Errorf("truncating stdout capture: %w", err)
	}
	return data, nil
}

// Close releases the forkserver, shared memory, and scratch files.
func (e *Executor) Close() error {
	if e.fs != nil {
		_ = e.fs.Close()
	}
	if e.inputShm != nil {
		_ = e.inputShm.Close()
	}
	if e.coverage != nil {
		_ = e.coverage.Close()
	}
	for _, file := range []*os.File{e.inputFile, e.stdoutFile} {
		if file != nil {
			name := file.Name()
			_ = file.Close()
			_ = os.Remove(name)
		}
	}
	return nil
}
