//go:build linux

package forkserver

import (
	"encoding/binary"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer plays the target side of the wire protocol over real
// pipes, the way an instrumented binary would.
type scriptedServer struct {
	t *testing.T
	// st is written by the "target", ctl read by it.
	st  *os.File
	ctl *os.File
}

func newScripted(t *testing.T, killSignal syscall.Signal) (*Forkserver, *scriptedServer) {
	t.Helper()
	stRead, stWrite, err := os.Pipe()
	require.NoError(t, err)
	ctlRead, ctlWrite, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		stRead.Close()
		stWrite.Close()
		ctlRead.Close()
		ctlWrite.Close()
	})
	fs := NewFromPipes(stRead, ctlWrite, killSignal)
	return fs, &scriptedServer{t: t, st: stWrite, ctl: ctlRead}
}

func (s *scriptedServer) send(word uint32) {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], word)
	_, err := s.st.Write(buf[:])
	require.NoError(s.t, err)
}

func (s *scriptedServer) sendBytes(data []byte) {
	_, err := s.st.Write(data)
	require.NoError(s.t, err)
}

func (s *scriptedServer) recv() uint32 {
	var buf [4]byte
	_, err := s.ctl.Read(buf[:])
	require.NoError(s.t, err)
	return binary.NativeEndian.Uint32(buf[:])
}

// S1: plain version word, no options, echo. The harness must answer with
// the complement and leave the map size untouched.
func TestHandshakeHappyPath(t *testing.T) {
	fs, server := newScripted(t, syscall.SIGKILL)

	done := make(chan InitializeResult, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := fs.Initialize(65536, false)
		if err != nil {
			errs <- err
			return
		}
		done <- result
	}()

	server.send(0x41464c01)
	assert.Equal(t, uint32(0xBEB9B3FE), server.recv())
	server.send(0x00000000)
	server.send(0x41464c01)

	select {
	case result := <-done:
		assert.Zero(t, result.MapSize)
		assert.Empty(t, result.AutoTokens)
	case err := <-errs:
		t.Fatalf("handshake failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("handshake did not complete")
	}
}

// S2: the declared map size must truncate the observer; a declared size
// above the allocation fails with an illegal-argument error.
func TestHandshakeMapSize(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		fs, server := newScripted(t, syscall.SIGKILL)
		done := make(chan InitializeResult, 1)
		go func() {
			result, err := fs.Initialize(65536, false)
			require.NoError(t, err)
			done <- result
		}()
		server.send(0x41464c01)
		server.recv()
		server.send(optMapSize)
		server.send(8192)
		server.send(0x41464c01)
		result := <-done
		assert.Equal(t, 8192, result.MapSize)
	})

	t.Run("too large", func(t *testing.T) {
		fs, server := newScripted(t, syscall.SIGKILL)
		errs := make(chan error, 1)
		go func() {
			_, err := fs.Initialize(4096, false)
			errs <- err
		}()
		server.send(0x41464c01)
		server.recv()
		server.send(optMapSize)
		server.send(8192)
		err := <-errs
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal argument")
	})
}

func TestHandshakeAutoDict(t *testing.T) {
	fs, server := newScripted(t, syscall.SIGKILL)
	done := make(chan InitializeResult, 1)
	go func() {
		result, err := fs.Initialize(65536, false)
		require.NoError(t, err)
		done <- result
	}()
	server.send(0x41464c01)
	server.recv()
	server.send(optAutoDict)
	tokens := []byte{3, 'f', 'o', 'o'}
	server.send(uint32(len(tokens)))
	server.sendBytes(tokens)
	server.send(0x41464c01)
	result := <-done
	assert.Equal(t, tokens, result.AutoTokens)
}

func TestHandshakeShmemFuzzWithoutSegment(t *testing.T) {
	fs, server := newScripted(t, syscall.SIGKILL)
	errs := make(chan error, 1)
	go func() {
		_, err := fs.Initialize(65536, false)
		errs <- err
	}()
	server.send(0x41464c01)
	server.recv()
	server.send(optShmemFuzz)
	assert.Error(t, <-errs)
}

func TestHandshakeEchoMismatch(t *testing.T) {
	fs, server := newScripted(t, syscall.SIGKILL)
	errs := make(chan error, 1)
	go func() {
		_, err := fs.Initialize(65536, false)
		errs <- err
	}()
	server.send(0x41464c01)
	server.recv()
	server.send(0)
	server.send(0x41464c02)
	assert.Error(t, <-errs)
}

// Every documented error code decodes to its own distinct error.
func TestHandshakeErrorTable(t *testing.T) {
	codes := map[uint32]error{
		fsErrorMapSize:       ErrMapSizeUnknown,
		fsErrorMapAddr:       ErrMapAddr,
		fsErrorShmOpen:       ErrShmOpen,
		fsErrorShmat:         ErrShmat,
		fsErrorMmap:          ErrMmap,
		fsErrorOldCmplog:     ErrOldCmplog,
		fsErrorOldCmplogQemu: ErrOldCmplogQemu,
	}
	seen := make(map[error]bool)
	for code, want := range codes {
		err := checkHandshakeError(errorFlag | code)
		require.ErrorIs(t, err, want, "code %#x", code)
		assert.False(t, seen[want], "errors must be distinct")
		seen[want] = true
	}
	assert.Error(t, checkHandshakeError(errorFlag|0x4000), "unknown codes still fail")
	assert.NoError(t, checkHandshakeError(0x41464c01))
}

func TestVersionChecks(t *testing.T) {
	assert.NoError(t, checkVersion(0x41464c01))
	assert.ErrorIs(t, checkVersion(0x41464c00), ErrNoVersion)
	assert.ErrorIs(t, checkVersion(0x41464c7f), ErrBadVersion)
	assert.ErrorIs(t, checkVersion(0x12345678), ErrOldForkserver)
}

// S6: a run that never reports a status must come back as a timeout, and
// the forkserver must stay usable for the next run.
func TestRunTimeoutThenRecovery(t *testing.T) {
	// Signal 0 probes process existence without delivering anything, so
	// the scripted pid can be our own.
	fs, server := newScripted(t, syscall.Signal(0))
	pid := uint32(os.Getpid())

	type outcome struct {
		result RunResult
		err    error
	}
	run := func() chan outcome {
		out := make(chan outcome, 1)
		go func() {
			result, err := fs.Run(100*time.Millisecond, nil)
			out <- outcome{result, err}
		}()
		return out
	}

	// First run: deliver a pid, then stay silent past the timeout.
	first := run()
	assert.Equal(t, uint32(0), server.recv(), "first run reports no prior timeout")
	server.send(pid)
	// The harness kills the child and then expects one final status word.
	time.Sleep(200 * time.Millisecond)
	server.send(0)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, ExitTimeout, got.result.Kind)

	// Second run: the timeout flag is set, and a normal exit works.
	second := run()
	assert.Equal(t, uint32(1), server.recv(), "timeout flag must be passed on")
	server.send(pid)
	server.send(0) // wait status: clean exit
	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, ExitOk, got.result.Kind)
	assert.Equal(t, int(pid), got.result.Pid)
}

func TestRunCrashDetection(t *testing.T) {
	fs, server := newScripted(t, syscall.Signal(0))
	pid := uint32(os.Getpid())

	go func() {
		server.recv()
		server.send(pid)
		// Raw wait status for "killed by SIGSEGV".
		server.send(uint32(syscall.SIGSEGV))
	}()
	result, err := fs.Run(time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitCrash, result.Kind)
}

func TestRunCrashExitCode(t *testing.T) {
	fs, server := newScripted(t, syscall.Signal(0))
	pid := uint32(os.Getpid())
	crashCode := 77

	go func() {
		server.recv()
		server.send(pid)
		server.send(uint32(77 << 8)) // exited with status 77
	}()
	result, err := fs.Run(time.Second, &crashCode)
	require.NoError(t, err)
	assert.Equal(t, ExitCrash, result.Kind)
}

func TestRunRejectsBadPid(t *testing.T) {
	fs, server := newScripted(t, syscall.Signal(0))
	go func() {
		server.recv()
		server.send(0)
	}()
	_, err := fs.Run(time.Second, nil)
	assert.Error(t, err)
}
