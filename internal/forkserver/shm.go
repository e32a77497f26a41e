//go:build linux

package forkserver

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ShMem is a System V shared memory segment attached to this process. The
// id is exported to the child through the __AFL_SHM_* environment
// variables; the child attaches it itself.
type ShMem struct {
	ID   int
	Data []byte
}

// NewShMem creates and attaches a private SysV segment of the given size.
func NewShMem(size int) (*ShMem, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		return nil, fmt.Errorf("shmget(%d bytes): %w", size, err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shmat(%d): %w", id, err)
	}
	return &ShMem{ID: id, Data: data}, nil
}

// Close detaches and removes the segment.
func (m *ShMem) Close() error {
	if m.Data != nil {
		if err := unix.SysvShmDetach(m.Data); err != nil {
			return fmt.Errorf("shmdt: %w", err)
		}
		m.Data = nil
	}
	if _, err := unix.SysvShmCtl(m.ID, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("shmctl(IPC_RMID): %w", err)
	}
	return nil
}

// Len returns the segment size.
func (m *ShMem) Len() int { return len(m.Data) }
