//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes of disk for f and sets its length.
// Filesystems without fallocate support (NFS, tmpfs on old kernels) only
// get the length.
func fallocateFile(f *os.File, size int64) error {
	fd := int(f.Fd())
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}
