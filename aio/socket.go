// File: aio/socket.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral Socket surface: option identifiers and the advisory
// per-pipe locks. Operations live in socket_linux.go and socket_windows.go.

package aio

import (
	"golang.org/x/sync/semaphore"

	"github.com/momentics/hioload-aio/api"
)

// Option identifies a socket configuration knob for GetOption/SetOption.
// Options carry no concurrency contract beyond "not concurrent with itself
// on the same socket".
type Option int

const (
	ReuseAddr Option = iota
	TcpNoDelay
	RecvBuffer
	SendBuffer
	KeepAlive
)

// pipe guards one direction of a Socket. Non-reentrant, single-permit:
// a second concurrent acquire fails instead of blocking, so a contract
// violation surfaces as api.ErrPipeBusy rather than undefined behavior.
type pipe struct {
	sem *semaphore.Weighted
}

func newPipe() pipe { return pipe{sem: semaphore.NewWeighted(1)} }

func (p pipe) acquire() error {
	if !p.sem.TryAcquire(1) {
		return api.ErrPipeBusy
	}
	return nil
}

func (p pipe) release() { p.sem.Release(1) }
