// File: aio/handle.go
// Author: momentics <momentics@gmail.com>

package aio

// Handle identifies exactly one kernel resource: a file descriptor on Unix
// platforms, a SOCKET or completion-port handle on Windows. Wrapper objects
// hold a Handle by value, but only the creator closes it, exactly once.
type Handle uintptr

// InvalidHandle is the canonical "no resource" value.
const InvalidHandle = ^Handle(0)
