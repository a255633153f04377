// File: aio/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package aio is a backend-agnostic asynchronous socket I/O substrate: one
// operation set for non-blocking stream and datagram endpoints plus a
// readiness/completion demultiplexer, with exactly one kernel backend
// compiled in per target (epoll on Linux, an I/O completion port on
// Windows). Build tags select the backend; there is no runtime dispatch.
//
// Lifecycle rules:
//
//   - Initialize must succeed before any Socket or EventPoller is created;
//     Cleanup reverses it and invalidates all live objects.
//   - Handles have exactly one logical owner and are closed exactly once by
//     explicit Close calls. There are no finalizers. Double-close and
//     use-after-close are precondition violations, not reported errors.
//
// Concurrency rules:
//
//   - A Socket exposes two independent pipes, READ and WRITE. At most one
//     operation may run on a pipe at a time; the pipes of one socket may be
//     driven fully in parallel. The pipe locks are advisory single-permit
//     semaphores: a second concurrent operation on the same pipe fails with
//     api.ErrPipeBusy instead of corrupting state.
//   - EventPoller.Register, Reregister and Notify may run concurrently with
//     Poll, but concurrent Register calls for the same handle are not safe.
//
// Asynchrony is expressed purely through api.Result: operations on a
// non-blocking socket never suspend; they report StatusRetry, the caller
// waits on the poller and retries the identical operation.
package aio
