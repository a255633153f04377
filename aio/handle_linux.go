//go:build linux

// File: aio/handle_linux.go
// Author: momentics <momentics@gmail.com>

package aio

import "golang.org/x/sys/unix"

// CloseHandle releases the kernel resource behind h. Only the creator may
// call it, exactly once; a second close on the same value is undefined.
func CloseHandle(h Handle) error {
	return unix.Close(int(h))
}
