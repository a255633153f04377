// File: aio/poller.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral EventPoller surface. The concrete demultiplexer lives in
// poller_linux.go (epoll + eventfd wakeup) and poller_windows.go (I/O
// completion port); exactly one is compiled per target.
//
// Contract summary:
//
//   - Register(h, flags, data) adds h to the interest set. Duplicate handles
//     fail with api.ErrAlreadyExists; data equal to the poller's reserved
//     sentinel (its own address, used to tell wakeups from socket events)
//     fails with api.ErrInvalidValue.
//   - Reregister re-arms a PollOneShot handle after its event was consumed;
//     without it the handle delivers nothing further.
//   - Notify(data) injects a synthetic event, readable and never writable,
//     waking a thread blocked in Poll. It does not affect in-flight socket
//     operations.
//   - Poll(events, timeoutMs) blocks up to timeoutMs milliseconds. Zero
//     returns immediately with whatever is ready; any negative value blocks
//     until at least one event arrives.
//   - Delivery is level-triggered unless PollEdgeTrigger is set: since the
//     flag occupies its own bit in the wire contract, its absence selects
//     the repeating-while-ready discipline and the bit opts in to
//     edge semantics.
//
// At most one EventPoller may be active in a process at a time, and a poller
// must not be re-derived from its Handle once Notify has been used.

package aio

// DefaultMaxEvents bounds the per-wait kernel event batch.
const DefaultMaxEvents = 128
