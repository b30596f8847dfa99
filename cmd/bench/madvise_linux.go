//go:build linux

package main

import "golang.org/x/sys/unix"

// adviseRandom tells the kernel that lookups touch the mapping at random,
// which disables readahead. Errors are ignored.
func adviseRandom(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
}
