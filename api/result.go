// File: api/result.go
// Author: momentics <momentics@gmail.com>
//
// Unified outcome model for readiness-based (epoll/kqueue) and
// completion-based (overlapped) I/O backends.

package api

// Status classifies the outcome of a single I/O attempt. The same four
// states apply whether the backend attempted the transfer inline
// (readiness model) or is reporting a previously queued transfer
// (completion model).
type Status uint8

const (
	// StatusCompleted means the operation was fully satisfied.
	// Result.N holds the exact transferred byte count.
	StatusCompleted Status = iota

	// StatusRetry means the operation would block on a non-blocking
	// resource or made only partial progress. Result.N holds the bytes
	// transferred so far (possibly zero). The caller must re-arm interest
	// through the poller and retry the identical operation with the
	// remaining data once notified.
	StatusRetry

	// StatusError means the operation failed for this call. Result.N still
	// reflects partial progress before the failure. The cause travels
	// out-of-band as an error value, never through Status itself.
	StatusError

	// StatusMoreMemory means the supplied buffers were too small for the
	// backend's intermediate staging (address or ancillary data).
	// Result.N is unspecified. The underlying I/O did not fail; retry with
	// a larger region.
	StatusMoreMemory
)

// String returns a human-readable status name for diagnostics.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusRetry:
		return "retry"
	case StatusError:
		return "error"
	case StatusMoreMemory:
		return "more-memory"
	}
	return "unknown"
}

// Result is the synchronous outcome of every I/O-performing operation.
// N is meaningful for Completed, Retry and Error; for MoreMemory it is
// unspecified and must be ignored.
type Result struct {
	Status Status
	N      int
}

// Completed reports a fully satisfied transfer of n bytes.
func Completed(n int) Result { return Result{Status: StatusCompleted, N: n} }

// Retrying reports a would-block or partial transfer of n bytes.
func Retrying(n int) Result { return Result{Status: StatusRetry, N: n} }

// Failed reports an irrecoverable failure after n bytes of progress.
func Failed(n int) Result { return Result{Status: StatusError, N: n} }

// MoreMemory reports insufficient staging space in the supplied buffers.
func MoreMemory() Result { return Result{Status: StatusMoreMemory} }
