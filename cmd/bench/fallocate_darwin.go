//go:build darwin

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes of disk for f with F_PREALLOCATE and
// sets its length.
func fallocateFile(f *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	_ = unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &fst)
	return unix.Ftruncate(int(f.Fd()), size)
}
