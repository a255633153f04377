//go:build linux

// File: aio/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) demultiplexer. Edge-triggered and one-shot delivery map
// directly to EPOLLET/EPOLLONESHOT; cross-thread wakeup rides an eventfd
// registered under the poller's reserved sentinel.

package aio

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
)

type registration struct {
	flags api.PollFlags
	data  uintptr
}

// EventPoller is an epoll-backed readiness demultiplexer.
type EventPoller struct {
	epfd   int
	wakefd int

	mu      sync.Mutex
	regs    map[Handle]registration
	wakeups *queue.Queue // pending Notify payloads, drained in FIFO order

	scratch []unix.EpollEvent
}

// NewEventPoller acquires the kernel demultiplexer and its wakeup channel.
func NewEventPoller() (*EventPoller, error) {
	if !initialized() {
		return nil, api.ErrNotInitialized
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "epoll create", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, api.Wrap(api.ErrCodeInternal, "eventfd", err)
	}
	p := &EventPoller{
		epfd:    epfd,
		wakefd:  wakefd,
		regs:    make(map[Handle]registration),
		wakeups: queue.New(),
		scratch: make([]unix.EpollEvent, DefaultMaxEvents),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, api.Wrap(api.ErrCodeInternal, "epoll ctl add wakeup", err)
	}
	return p, nil
}

// Handle exposes the demultiplexer handle. Re-deriving a poller from it
// after Notify has been used is not allowed.
func (p *EventPoller) Handle() Handle { return Handle(p.epfd) }

// sentinel is the reserved user-data word distinguishing wakeups from
// socket events.
func (p *EventPoller) sentinel() uintptr { return uintptr(unsafe.Pointer(p)) }

// Register adds h to the interest set with the given flags and user data.
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
	ev := unix.EpollEvent{Events: epollEvents(flags), Fd: int32(h)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(h), &ev); err != nil {
		switch err {
		case unix.EBADF, unix.EPERM:
			return api.ErrInvalidHandle
		case unix.ENOMEM, unix.ENOSPC:
			return api.ErrOutOfResources
		case unix.EEXIST:
			return api.ErrAlreadyExists
		}
		return api.Wrap(api.ErrCodeInternal, "epoll ctl add", err).WithContext("handle", uintptr(h))
	}
	p.regs[h] = registration{flags: flags, data: data}
	return nil
}

// Reregister re-arms a registered handle, replacing its flags and data.
// Required after consuming an event for a PollOneShot handle.
func (p *EventPoller) Reregister(h Handle, flags api.PollFlags, data uintptr) error {
	if data == p.sentinel() {
		return api.ErrInvalidValue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[h]; !ok {
		return api.ErrNotFound
	}
	ev := unix.EpollEvent{Events: epollEvents(flags), Fd: int32(h)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(h), &ev); err != nil {
		return api.Wrap(api.ErrCodeInternal, "epoll ctl mod", err).WithContext("handle", uintptr(h))
	}
	p.regs[h] = registration{flags: flags, data: data}
	return nil
}

// Unregister removes h from the interest set.
func (p *EventPoller) Unregister(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[h]; !ok {
		return api.ErrNotFound
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(h), nil); err != nil {
		return api.Wrap(api.ErrCodeInternal, "epoll ctl del", err).WithContext("handle", uintptr(h))
	}
	delete(p.regs, h)
	return nil
}

// Notify injects a synthetic event carrying data, readable and never
// writable, waking one thread blocked in Poll. It does not touch any
// in-flight socket operation.
func (p *EventPoller) Notify(data uintptr) error {
	if data == p.sentinel() {
		return api.ErrInvalidValue
	}
	p.mu.Lock()
	p.wakeups.Add(data)
	p.mu.Unlock()
	return p.signalWake()
}

func (p *EventPoller) signalWake() error {
	one := [8]byte{1}
	_, err := unix.Write(p.wakefd, one[:])
	// EAGAIN means the counter is already saturated; the wakeup is pending.
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Poll blocks up to timeoutMs milliseconds and returns the prefix of events
// filled with ready notifications. timeoutMs == 0 returns immediately; any
// negative value blocks until at least one event is available. A signal
// interrupting the wait is not a timeout: the wait resumes with whatever
// time remains.
func (p *EventPoller) Poll(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, api.ErrInvalidEvents
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	var deadline time.Time
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	for {
		raw := p.scratch
		if len(events) < len(raw) {
			raw = raw[:len(events)]
		}
		nready, err := unix.EpollWait(p.epfd, raw, timeoutMs)
		if err == unix.EINTR {
			if timeoutMs == 0 {
				return 0, nil
			}
			if timeoutMs > 0 {
				left := time.Until(deadline)
				if left <= 0 {
					return 0, nil
				}
				if timeoutMs = int(left / time.Millisecond); timeoutMs == 0 {
					timeoutMs = 1
				}
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		n := p.deliver(events, raw[:nready])
		// A wakeup consumed by a racing Poll, or a stale fd, can leave an
		// indefinite wait empty-handed; go back to sleep.
		if n == 0 && timeoutMs < 0 {
			continue
		}
		return n, nil
	}
}

// deliver translates kernel events into the caller's buffer. Wakeup payloads
// go after the kernel events: readiness already consumed from epoll must
// never be discarded for lack of space (a dropped EPOLLONESHOT event would
// starve its handle with no signal to re-arm), while surplus payloads stay
// queued for the next Poll. raw is never longer than events, so kernel
// events always fit.
func (p *EventPoller) deliver(events []Event, raw []unix.EpollEvent) int {
	n := 0
	sawWakeup := false
	for i := range raw {
		h := Handle(raw[i].Fd)
		if int(h) == p.wakefd {
			sawWakeup = true
			continue
		}
		p.mu.Lock()
		reg, ok := p.regs[h]
		p.mu.Unlock()
		if !ok {
			continue
		}
		var fl api.PollFlags
		if raw[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLPRI) != 0 {
			fl |= api.PollRead
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			fl |= api.PollWrite
		}
		res := api.Completed(0)
		if raw[i].Events&unix.EPOLLERR != 0 {
			fl |= reg.flags & (api.PollRead | api.PollWrite)
			res = api.Failed(0)
		}
		if fl == 0 {
			continue
		}
		events[n] = Event{Data: reg.data, Flags: fl, Result: res}
		n++
	}
	if sawWakeup {
		n += p.drainWakeups(events[n:])
	}
	return n
}

// drainWakeups consumes the eventfd counter and emits queued Notify
// payloads. Payloads that do not fit in events stay queued and the wakeup
// is re-signaled for the next Poll.
func (p *EventPoller) drainWakeups(events []Event) int {
	var counter [8]byte
	_, _ = unix.Read(p.wakefd, counter[:])

	n := 0
	p.mu.Lock()
	for p.wakeups.Length() > 0 && n < len(events) {
		data := p.wakeups.Remove().(uintptr)
		events[n] = Event{Data: data, Flags: api.PollRead, Result: api.Completed(0)}
		n++
	}
	leftover := p.wakeups.Length() > 0
	p.mu.Unlock()
	if leftover {
		_ = p.signalWake()
	}
	return n
}

// Close releases the demultiplexer. Any operation afterwards is undefined.
func (p *EventPoller) Close() error {
	if err := unix.Close(p.wakefd); err != nil {
		unix.Close(p.epfd)
		return fmt.Errorf("close wakeup: %w", err)
	}
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("close epoll: %w", err)
	}
	return nil
}

func epollEvents(flags api.PollFlags) uint32 {
	var ev uint32
	if flags.Has(api.PollRead) {
		ev |= unix.EPOLLIN
	}
	if flags.Has(api.PollWrite) {
		ev |= unix.EPOLLOUT
	}
	if flags.Has(api.PollOneShot) {
		ev |= unix.EPOLLONESHOT
	}
	if flags.Has(api.PollEdgeTrigger) {
		ev |= unix.EPOLLET
	}
	return ev
}
