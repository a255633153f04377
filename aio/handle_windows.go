//go:build windows

// File: aio/handle_windows.go
// Author: momentics <momentics@gmail.com>

package aio

import "golang.org/x/sys/windows"

// CloseHandle releases the socket resource behind h. Only the creator may
// call it, exactly once; a second close on the same value is undefined.
func CloseHandle(h Handle) error {
	return windows.Closesocket(windows.Handle(h))
}
