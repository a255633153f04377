// File: aio/init.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide subsystem lifecycle. Bounds the lifetime of every Socket and
// EventPoller: nothing may be created before Initialize succeeds or used
// after Cleanup runs.

package aio

import (
	"sync/atomic"

	"github.com/momentics/hioload-aio/api"
)

var subsystemReady atomic.Bool

// Initialize performs one-time backend setup (on Windows, starting the
// Winsock subsystem and loading extension entry points). Calling it twice
// without an intervening Cleanup fails with api.ErrUnexpected.
func Initialize() error {
	if !subsystemReady.CompareAndSwap(false, true) {
		return api.ErrUnexpected
	}
	if err := platformInit(); err != nil {
		subsystemReady.Store(false)
		return err
	}
	return nil
}

// Cleanup reverses Initialize. All Sockets and EventPollers must already be
// closed; using any of them afterwards is a precondition violation.
func Cleanup() error {
	if !subsystemReady.CompareAndSwap(true, false) {
		return api.ErrUnexpected
	}
	return platformCleanup()
}

func initialized() bool { return subsystemReady.Load() }
