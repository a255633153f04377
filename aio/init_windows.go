//go:build windows

// File: aio/init_windows.go
// Author: momentics <momentics@gmail.com>

package aio

import (
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
)

// platformInit starts the Winsock subsystem. The mswsock extension entry
// points (AcceptEx, ConnectEx) are resolved lazily on first use.
func platformInit() error {
	var data windows.WSAData
	if err := windows.WSAStartup(uint32(0x202), &data); err != nil {
		return api.Wrap(api.ErrCodeInternal, "wsa startup", err)
	}
	return nil
}

func platformCleanup() error {
	if err := windows.WSACleanup(); err != nil {
		return api.Wrap(api.ErrCodeInternal, "wsa cleanup", err)
	}
	return nil
}
