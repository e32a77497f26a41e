//go:build linux

// Package forkserver drives an AFL++-instrumented target through the new
// forkserver model: shared-memory coverage map, fd 198/199 pipe protocol,
// one forked child per input, timeouts via pselect.
package forkserver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Control and status pipe numbers in the child, fixed by the AFL ABI.
const (
	ctlFD = 198
	stFD  = ctlFD + 1
)

// Config describes how to spawn and talk to the target.
type Config struct {
	Path string
	Args []string
	Env  []string

	// CoverageShmID/Size export the edge map to the child.
	CoverageShmID   int
	CoverageMapSize int

	// InputShm, when non-nil, enables shared-memory input delivery.
	InputShm *ShMem

	PersistentMode  bool
	DeferForkServer bool
	DebugChild      bool

	KillSignal syscall.Signal
}

// Forkserver is the live communication channel with the spawned target.
type Forkserver struct {
	cmd *exec.Cmd

	// rx is the status pipe (child→parent), tx the control pipe.
	rx *os.File
	tx *os.File

	// stdout receives everything the servers under test write; the
	// response observer drains it between runs.
	stdout *os.File

	childPID        int
	lastRunTimedOut bool
	killSignal      syscall.Signal
}

// Spawn starts the target with the forkserver pipes bound to fds 198/199
// and the coverage shm exported in the environment. stdin is bound to
// inputFile unless shared-memory input is configured.
func Spawn(config Config, inputFile *os.File, stdoutFile *os.File) (*Forkserver, error) {
	stRead, stWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating status pipe: %w", err)
	}
	ctlRead, ctlWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating control pipe: %w", err)
	}

	// The duplicates are created without CLOEXEC, so they survive the
	// exec and appear in the child at the fixed AFL fd numbers.
	if err := unix.Dup3(int(ctlRead.Fd()), ctlFD, 0); err != nil {
		return nil, fmt.Errorf("binding control pipe to fd %d: %w", ctlFD, err)
	}
	if err := unix.Dup3(int(stWrite.Fd()), stFD, 0); err != nil {
		return nil, fmt.Errorf("binding status pipe to fd %d: %w", stFD, err)
	}

	cmd := exec.Command(config.Path, config.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = append(os.Environ(),
		"__AFL_SHM_ID="+strconv.Itoa(config.CoverageShmID),
		"__AFL_SHM_ID_SIZE="+strconv.Itoa(config.CoverageMapSize),
		"AFL_MAP_SIZE="+strconv.Itoa(config.CoverageMapSize),
		"LD_BIND_NOW=1",
	)
	if config.InputShm != nil {
		cmd.Env = append(cmd.Env,
			"__AFL_SHM_FUZZ_ID="+strconv.Itoa(config.InputShm.ID),
			"__AFL_SHM_FUZZ_ID_SIZE="+strconv.Itoa(config.InputShm.Len()),
		)
		cmd.Stdin = nil
	} else {
		cmd.Stdin = inputFile
	}
	if config.PersistentMode {
		cmd.Env = append(cmd.Env, "__AFL_PERSISTENT=1")
	}
	if config.DeferForkServer {
		cmd.Env = append(cmd.Env, "__AFL_DEFER_FORKSRV=1")
	}
	cmd.Env = append(cmd.Env, config.Env...)

	cmd.Stdout = stdoutFile
	if config.DebugChild {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning forkserver target: %w", err)
	}

	// The child inherited its copies at 198/199; close every parent-side
	// duplicate it does not need.
	_ = ctlRead.Close()
	_ = stWrite.Close()
	_ = unix.Close(ctlFD)
	_ = unix.Close(stFD)

	return &Forkserver{
		cmd:        cmd,
		rx:         stRead,
		tx:         ctlWrite,
		stdout:     stdoutFile,
		killSignal: config.KillSignal,
	}, nil
}

// NewFromPipes wires a forkserver over existing pipes; tests use this to
// script the target side of the protocol.
func NewFromPipes(rx, tx *os.File, killSignal syscall.Signal) *Forkserver {
	return &Forkserver{rx: rx, tx: tx, killSignal: killSignal}
}

func (f *Forkserver) readWord() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(f.rx, buf[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

func (f *Forkserver) writeWord(word uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], word)
	_, err := f.tx.Write(buf[:])
	return err
}

func (f *Forkserver) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.rx, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// InitializeResult reports what the handshake negotiated.
type InitializeResult struct {
	// MapSize is the coverage map size the target declared, or 0 when the
	// target did not send one.
	MapSize int
	// AutoTokens holds the raw auto-dictionary blob, when sent.
	AutoTokens []byte
}

// Initialize performs the forkserver handshake. allocatedMapSize is the
// size of the attached coverage segment; a larger declared size fails.
// hasInputShm tells the handshake whether shared-memory input exists.
func (f *Forkserver) Initialize(allocatedMapSize int, hasInputShm bool) (InitializeResult, error) {
	var result InitializeResult

	version, err := f.readWord()
	if err != nil {
		return result, fmt.Errorf("reading forkserver hello: %w", err)
	}
	if err := checkHandshakeError(version); err != nil {
		return result, err
	}
	if err := checkVersion(version); err != nil {
		return result, err
	}
	if err := f.writeWord(version ^ 0xffffffff); err != nil {
		return result, fmt.Errorf("writing handshake response: %w", err)
	}

	options, err := f.readWord()
	if err != nil {
		return result, fmt.Errorf("reading forkserver options: %w", err)
	}
	if options&optMapSize != 0 {
		size, err := f.readWord()
		if err != nil {
			return result, fmt.Errorf("reading map size: %w", err)
		}
		if int(size) > allocatedMapSize {
			return result, fmt.Errorf(
				"illegal argument: the coverage map is too small, the target requires %d bytes", size)
		}
		result.MapSize = int(size)
	}
	if options&optShmemFuzz != 0 && !hasInputShm {
		return result, fmt.Errorf("target requested shared-memory fuzzing, but no input segment was prepared")
	}
	if options&optAutoDict != 0 {
		size, err := f.readWord()
		if err != nil {
			return result, fmt.Errorf("reading autodict size: %w", err)
		}
		if size < autoDictMinSize || size > autoDictMaxSize {
			return result, fmt.Errorf(
				"autodict size %d out of range %d..%d; update afl-cc", size, autoDictMinSize, autoDictMaxSize)
		}
		tokens, err := f.readBytes(int(size))
		if err != nil {
			return result, fmt.Errorf("reading autodict tokens: %w", err)
		}
		result.AutoTokens = tokens
	}

	echo, err := f.readWord()
	if err != nil {
		return result, fmt.Errorf("reading handshake echo: %w", err)
	}
	if echo != version {
		return result, fmt.Errorf("forkserver communication error (%#x => %#x)", echo, version)
	}
	return result, nil
}

// ExitKind classifies one run of the target.
type ExitKind uint8

const (
	ExitOk ExitKind = iota
	ExitCrash
	ExitTimeout
)

func (k ExitKind) String() string {
	switch k {
	case ExitCrash:
		return "crash"
	case ExitTimeout:
		return "timeout"
	default:
		return "ok"
	}
}

// RunResult is the outcome of one fork.
type RunResult struct {
	Kind   ExitKind
	Pid    int
	Status unix.WaitStatus
}

// Run requests one fork and waits for it to exit or time out. The input
// must already be delivered (stdin file rewound or shm written).
func (f *Forkserver) Run(timeout time.Duration, crashExitCode *int) (RunResult, error) {
	var result RunResult

	notify := uint32(0)
	if f.lastRunTimedOut {
		notify = 1
	}
	if err := f.writeWord(notify); err != nil {
		return result, fmt.Errorf("requesting fork (forkserver dead?): %w", err)
	}
	f.lastRunTimedOut = false

	pidWord, err := f.readWord()
	if err != nil {
		return result, fmt.Errorf("reading child pid: %w", err)
	}
	pid := int(int32(pidWord))
	if pid <= 0 {
		return result, fmt.Errorf("forkserver returned invalid pid %d", pid)
	}
	f.childPID = pid
	result.Pid = pid

	status, ok, err := f.readStatusTimed(timeout)
	if err != nil {
		return result, err
	}
	if !ok {
		f.lastRunTimedOut = true
		if err := unix.Kill(pid, f.killSignal); err != nil && err != unix.ESRCH {
			return result, fmt.Errorf("killing timed-out child %d: %w", pid, err)
		}
		if _, err := f.readWord(); err != nil {
			return result, fmt.Errorf("collecting status of timed-out child: %w", err)
		}
		result.Kind = ExitTimeout
		f.childPID = 0
		return result, nil
	}

	ws := unix.WaitStatus(status)
	result.Status = ws
	exitCodeIsCrash := crashExitCode != nil && ws.Exited() && ws.ExitStatus() == *crashExitCode
	if ws.Signaled() || exitCodeIsCrash {
		result.Kind = ExitCrash
	}
	if !ws.Stopped() {
		f.childPID = 0
	}
	return result, nil
}

// readStatusTimed waits for a status word with pselect. ok is false on
// timeout.
func (f *Forkserver) readStatusTimed(timeout time.Duration) (uint32, bool, error) {
	fd := int(f.rx.Fd())
	var readfds unix.FdSet
	readfds.Set(fd)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Pselect(fd+1, &readfds, nil, nil, &ts, nil)
	if err != nil {
		return 0, false, fmt.Errorf("pselect on status pipe: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	word, err := f.readWord()
	if err != nil {
		return 0, false, fmt.Errorf("unable to communicate with forkserver (OOM?): %w", err)
	}
	return word, true, nil
}

// Close tears the forkserver down: kill any live child, then the
// forkserver itself, wait, and escalate to SIGKILL if that fails.
func (f *Forkserver) Close() error {
	if f.childPID > 0 {
		_ = unix.Kill(f.childPID, f.killSignal)
		f.childPID = 0
	}
	if f.cmd != nil && f.cmd.Process != nil {
		pid := f.cmd.Process.Pid
		if err := unix.Kill(pid, f.killSignal); err != nil && err != unix.ESRCH {
			_ = unix.Kill(pid, unix.SIGKILL)
		} else if err := f.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				_ = unix.Kill(pid, unix.SIGKILL)
			}
		}
	}
	_ = f.rx.Close()
	_ = f.tx.Close()
	return nil
}
