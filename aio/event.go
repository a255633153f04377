// File: aio/event.go
// Author: momentics <momentics@gmail.com>

package aio

import "github.com/momentics/hioload-aio/api"

// Event is a single-consumption notification delivered by EventPoller.Poll.
// Data is the user word supplied at registration (or to Notify); Flags
// carries the PollRead/PollWrite bits identifying which pipe produced the
// event; Result embeds the outcome of the operation that became ready or
// completed. An Event's Data must not be consumed twice.
type Event struct {
	Data   uintptr
	Flags  api.PollFlags
	Result api.Result
}

// Readable reports whether the event signals the READ pipe.
func (e Event) Readable() bool { return e.Flags&api.PollRead != 0 }

// Writable reports whether the event signals the WRITE pipe.
func (e Event) Writable() bool { return e.Flags&api.PollWrite != 0 }
