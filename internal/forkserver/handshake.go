package forkserver

import (
	"errors"
	"fmt"
)

// Forkserver wire protocol constants. Words are 32-bit native-endian.
const (
	versionBase = 0x41464c00 // "AFL\0" + version
	versionMin  = 1
	versionMax  = 1

	errorFlag = 0xeffe0000

	optMapSize    = 1 << 0
	optShmemFuzz  = 1 << 1
	optAutoDict   = 1 << 11

	autoDictMinSize = 2
	autoDictMaxSize = 0xffffff
)

// Handshake error codes reported by the target in the low 16 bits.
const (
	fsErrorMapSize      = 1 << 0
	fsErrorMapAddr      = 1 << 1
	fsErrorShmOpen      = 1 << 2
	fsErrorShmat        = 1 << 3
	fsErrorMmap         = 1 << 4
	fsErrorOldCmplog    = 1 << 5
	fsErrorOldCmplogQemu = 1 << 6
)

// Distinct errors per documented handshake failure.
var (
	ErrMapSizeUnknown = errors.New(
		"AFL_MAP_SIZE is not set and the target reports that the required size is very large; " +
			"run the target with AFL_DEBUG=1 and pass __afl_final_loc as the map size")
	ErrMapAddr = errors.New(
		"the target reports that a hardcoded map address made the shared-memory mmap fail; " +
			"recompile with afl-clang-lto without AFL_LLVM_MAP_ADDR, or with afl-clang-fast")
	ErrShmOpen      = errors.New("the target reports that shm_open() failed")
	ErrShmat        = errors.New("the target reports that shmat() failed")
	ErrMmap         = errors.New("the target reports that mmap() of the shared memory failed")
	ErrOldCmplog    = errors.New("the cmplog target was built with a too old AFL++; recompile it")
	ErrOldCmplogQemu = errors.New("the AFL++ QEMU/FRIDA loaders are too old for cmplog; recompile them")

	ErrOldForkserver = errors.New("the target uses the legacy forkserver model, which is not supported")
	ErrNoVersion     = errors.New("forkserver version is not assigned; recompile the target")
	ErrBadVersion    = errors.New("forkserver version is not supported; recompile the target")
)

// checkHandshakeError decodes the error word the target may send instead
// of a version. A nil return means the word is not an error report.
func checkHandshakeError(word uint32) error {
	if word&errorFlag != errorFlag {
		return nil
	}
	switch code := word & 0x0000ffff; code {
	case fsErrorMapSize:
		return ErrMapSizeUnknown
	case fsErrorMapAddr:
		return ErrMapAddr
	case fsErrorShmOpen:
		return ErrShmOpen
	case fsErrorShmat:
		return ErrShmat
	case fsErrorMmap:
		return ErrMmap
	case fsErrorOldCmplog:
		return ErrOldCmplog
	case fsErrorOldCmplogQemu:
		return ErrOldCmplogQemu
	default:
		return fmt.Errorf("unknown error code %#x from the target", code)
	}
}

// checkVersion validates the version word of the new forkserver model.
func checkVersion(word uint32) error {
	if word < versionBase || word > versionBase+0xff {
		return ErrOldForkserver
	}
	switch version := word - versionBase; {
	case version == 0:
		return ErrNoVersion
	case version >= versionMin && version <= versionMax:
		return nil
	default:
		return ErrBadVersion
	}
}
