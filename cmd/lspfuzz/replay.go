//go:build linux

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/standardbeagle/lspfuzz/internal/asan"
	"github.com/standardbeagle/lspfuzz/internal/forkserver"
	"github.com/standardbeagle/lspfuzz/internal/lsp/jsonrpc"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// replayResult is what one reproduction run observed.
type replayResult struct {
	Crashed         bool            `json:"crashed"`
	ExitDescription string          `json:"exit"`
	CrashingMethod  string          `json:"crashingMethod,omitempty"`
	CrashingID      *int64          `json:"crashingId,omitempty"`
	Report          *asan.Report    `json:"asanReport,omitempty"`
	RawRequest      json.RawMessage `json:"rawRequest,omitempty"`
}

// responseWait bounds how long a replay waits for each response.
const responseWait = 30 * time.Second

// loadInput reads a serialized input from a corpus or solutions file.
func loadInput(path string) (*lspinput.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	var in lspinput.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decoding input %s: %w", path, err)
	}
	return &in, nil
}

// replay materialises the workspace in a fresh temp dir and feeds the
// session to a plain (non-forkserver) target process message by message,
// waiting for each request's response so the crashing request can be
// identified.
func replay(in *lspinput.Input, targetPath string, targetArgs []string) (*replayResult, error) {
	workspaceDir, err := os.MkdirTemp("", "lspfuzz-reproduce_*")
	if err != nil {
		return nil, fmt.Errorf("creating reproduction workspace: %w", err)
	}
	defer os.RemoveAll(workspaceDir)

	if err := in.Workspace.Materialize(workspaceDir); err != nil {
		return nil, err
	}

	cmd := exec.Command(targetPath, targetArgs...)
	cmd.Dir = workspaceDir
	cmd.Env = append(os.Environ(), "ASAN_OPTIONS="+forkserver.AsanOptions(workspaceDir))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting target: %w", err)
	}

	payload, err := in.RequestBytes(workspaceDir)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	frames, err := splitFrames(payload)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	result := &replayResult{}
	reader := bufio.NewReader(stdout)
	var lastSent *jsonrpc.Message
	for i := range frames {
		frame := &frames[i]
		encoded, err := frame.Encode()
		if err != nil {
			break
		}
		if _, err := stdin.Write(encoded); err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, unix.EPIPE) {
				break
			}
			_ = cmd.Process.Kill()
			return nil, fmt.Errorf("sending message to target: %w", err)
		}
		lastSent = frame
		if frame.ID == nil {
			continue
		}
		if !awaitResponse(reader, stdout, *frame.ID) {
			break
		}
	}
	_ = stdin.Close()

	waitErr := cmd.Wait()
	if waitErr == nil {
		result.ExitDescription = "exit status 0"
		return result, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return nil, fmt.Errorf("waiting for target: %w", waitErr)
	}
	result.Crashed = true
	result.ExitDescription = exitErr.String()
	if lastSent != nil {
		result.CrashingMethod = lastSent.Method
		result.CrashingID = lastSent.ID
		if raw, err := json.Marshal(lastSent); err == nil {
			result.RawRequest = raw
		}
	}
	result.Report = findAsanReport(workspaceDir)
	return result, nil
}

// splitFrames re-parses a serialized session into individual frames.
func splitFrames(payload []byte) ([]jsonrpc.Message, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	var frames []jsonrpc.Message
	for {
		msg, err := jsonrpc.Decode(reader)
		if err != nil {
			if err == io.EOF {
				return frames, nil
			}
			return nil, err
		}
		frames = append(frames, *msg)
	}
}

// awaitResponse drains server output until the response with the given id
// arrives, the wait times out, or the stream ends.
func awaitResponse(reader *bufio.Reader, stdout io.ReadCloser, id int64) bool {
	deadline := time.Now().Add(responseWait)
	for {
		if reader.Buffered() == 0 {
			file, ok := stdout.(interface{ Fd() uintptr })
			if ok && !waitReadable(int(file.Fd()), time.Until(deadline)) {
				return false
			}
		}
		msg, err := jsonrpc.Decode(reader)
		if err != nil {
			return false
		}
		if msg.IsResponse() && msg.ID != nil && *msg.ID == id {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
	}
}

func waitReadable(fd int, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	var readfds unix.FdSet
	readfds.Set(fd)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Pselect(fd+1, &readfds, nil, nil, &ts, nil)
	return err == nil && n > 0
}

// findAsanReport picks up and parses the sanitizer log the crashed child
// left behind, if any.
func findAsanReport(workspaceDir string) *asan.Report {
	matches, _ := filepath.Glob(filepath.Join(workspaceDir, forkserver.AsanLogPrefix+".*"))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		report, err := asan.Parse(data)
		if err != nil {
			continue
		}
		return report
	}
	return nil
}
