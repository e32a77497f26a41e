// Package target inspects the fuzz-target binary before the loop starts:
// instrumentation signatures and the pre-flight coverage-map size dump.
package target

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// BinaryInfo summarizes the byte signatures found in the target binary.
type BinaryInfo struct {
	AFLInstrumented bool
	PersistentMode  bool
	DeferForkServer bool
	AddressSanitizer bool
}

var (
	shmEnvSignature        = []byte("__AFL_SHM_ID")
	persistentSignature    = []byte("##SIG_AFL_PERSISTENT##")
	deferForkSrvSignature  = []byte("##SIG_AFL_DEFER_FORKSRV##")
	asanSignature          = []byte("__asan_")
)

// Scan reads the binary and looks for the AFL++ and ASan signatures.
func Scan(path string) (BinaryInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("reading target binary: %w", err)
	}
	return BinaryInfo{
		AFLInstrumented:  bytes.Contains(data, shmEnvSignature),
		PersistentMode:   bytes.Contains(data, persistentSignature),
		DeferForkServer:  bytes.Contains(data, deferForkSrvSignature),
		AddressSanitizer: bytes.Contains(data, asanSignature),
	}, nil
}

// DumpMapSize runs the target with AFL_DUMP_MAP_SIZE=1 and parses the
// single integer it prints.
func DumpMapSize(path string) (int, error) {
	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), "AFL_DUMP_MAP_SIZE=1")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("running target with AFL_DUMP_MAP_SIZE=1: %w", err)
	}
	text := strings.TrimSpace(string(out))
	size, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parsing map size from %q: %w", text, err)
	}
	return size, nil
}
