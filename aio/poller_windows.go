//go:build windows

// File: aio/poller_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows I/O completion port demultiplexer. This is a completion-based
// backend: Poll reports finished overlapped transfers rather than
// readiness, with the transferred byte count embedded in the Event's
// Result. Completion packets are inherently one-shot per posted operation,
// so PollOneShot and PollEdgeTrigger need no kernel translation here;
// Reregister only updates the registration table.

package aio

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
)

type registration struct {
	flags api.PollFlags
	data  uintptr
}

// EventPoller is a completion-port-backed demultiplexer.
type EventPoller struct {
	iocp windows.Handle

	mu      sync.Mutex
	regs    map[Handle]registration
	wakeups *queue.Queue // pending Notify payloads, drained in FIFO order
}

// NewEventPoller acquires the kernel completion port.
func NewEventPoller() (*EventPoller, error) {
	if !initialized() {
		return nil, api.ErrNotInitialized
	}
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "iocp create", err)
	}
	return &EventPoller{
		iocp:    iocp,
		regs:    make(map[Handle]registration),
		wakeups: queue.New(),
	}, nil
}

// Handle exposes the demultiplexer handle. Re-deriving a poller from it
// after Notify has been used is not allowed.
func (p *EventPoller) Handle() Handle { return Handle(p.iocp) }

func (p *EventPoller) sentinel() uintptr { return uintptr(unsafe.Pointer(p)) }

// Register associates h with the completion port under its own value as
// completion key; user data lives in the registration table so Reregister
// can replace it.
func (p *EventPoller) Register(h Handle, flags api.PollFlags, data uintptr) error {
	if h == InvalidHandle {
		return api.ErrInvalidHandle
	}
	if data == p.sentinel() {
		return api.ErrInvalidValue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.regs[h]; dup {
		return api.ErrAlreadyExists
	}
	if _, err := windows.CreateIoCompletionPort(windows.Handle(h), p.iocp, uintptr(h), 0); err != nil {
		if err == windows.ERROR_INVALID_HANDLE {
			return api.ErrInvalidHandle
		}
		return api.Wrap(api.ErrCodeInternal, "iocp associate", err).WithContext("handle", uintptr(h))
	}
	p.regs[h] = registration{flags: flags, data: data}
	return nil
}

// Reregister replaces the flags and data of an existing registration. The
// port association itself is permanent for the handle's lifetime.
func (p *EventPoller) Reregister(h Handle, flags api.PollFlags, data uintptr) error {
	if data == p.sentinel() {
		return api.ErrInvalidValue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[h]; !ok {
		return api.ErrNotFound
	}
	p.regs[h] = registration{flags: flags, data: data}
	return nil
}

// Unregister drops the registration. Packets already queued for h are
// discarded at delivery.
func (p *EventPoller) Unregister(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[h]; !ok {
		return api.ErrNotFound
	}
	delete(p.regs, h)
	return nil
}

// Notify injects a synthetic event carrying data, readable and never
// writable, waking one thread blocked in Poll.
func (p *EventPoller) Notify(data uintptr) error {
	if data == p.sentinel() {
		return api.ErrInvalidValue
	}
	p.mu.Lock()
	p.wakeups.Add(data)
	p.mu.Unlock()
	if err := windows.PostQueuedCompletionStatus(p.iocp, 0, p.sentinel(), nil); err != nil {
		return fmt.Errorf("iocp post: %w", err)
	}
	return nil
}

// Poll dequeues completion packets for up to timeoutMs milliseconds.
// timeoutMs == 0 returns immediately; any negative value blocks until at
// least one event is available.
func (p *EventPoller) Poll(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, api.ErrInvalidEvents
	}
	first := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		first = uint32(timeoutMs)
	}

	n := 0
	timeout := first
	for n < len(events) {
		var qty uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(p.iocp, &qty, &key, &ov, timeout)
		if err != nil && ov == nil {
			if err == windows.WAIT_TIMEOUT {
				if n == 0 && timeoutMs < 0 {
					// A packet yielding no event may have zeroed the
					// timeout; restore the blocking wait.
					timeout = first
					continue
				}
				break
			}
			return n, fmt.Errorf("iocp wait: %w", err)
		}

		if key == p.sentinel() {
			p.mu.Lock()
			if p.wakeups.Length() > 0 {
				data := p.wakeups.Remove().(uintptr)
				events[n] = Event{Data: data, Flags: api.PollRead, Result: api.Completed(0)}
				n++
			}
			p.mu.Unlock()
		} else if ev, ok := p.completionEvent(key, qty, ov, err); ok {
			events[n] = ev
			n++
		}
		// Drain whatever else is queued without blocking again.
		timeout = 0
	}
	return n, nil
}

// completionEvent maps a dequeued packet onto the registration table. The
// overlapped pointer leads back to the socket's per-pipe operation state,
// which identifies the producing pipe.
func (p *EventPoller) completionEvent(key uintptr, qty uint32, ov *windows.Overlapped, failure error) (Event, bool) {
	p.mu.Lock()
	reg, ok := p.regs[Handle(key)]
	p.mu.Unlock()
	if !ok || ov == nil {
		return Event{}, false
	}
	op := (*ioOp)(unsafe.Pointer(ov))
	res := api.Completed(int(qty))
	if failure != nil {
		res = api.Failed(int(qty))
	}
	return Event{Data: reg.data, Flags: op.pipe, Result: res}, true
}

// Close releases the completion port. Any operation afterwards is
// undefined.
func (p *EventPoller) Close() error {
	if err := windows.CloseHandle(p.iocp); err != nil {
		return fmt.Errorf("close iocp: %w", err)
	}
	return nil
}
