// File: api/flags.go
// Author: momentics <momentics@gmail.com>
//
// Bitmask wire contract for poller interest sets and socket construction.
// The numeric values are fixed; backends translate them to kernel flags.

package api

// PollFlags selects the events a handle is registered for and the delivery
// discipline. EdgeTrigger and OneShot are orthogonal and may combine.
type PollFlags uint32

const (
	// PollRead requests read-readiness (or read-completion) events.
	PollRead PollFlags = 1 << 0

	// PollWrite requests write-readiness (or write-completion) events.
	PollWrite PollFlags = 1 << 1

	// PollOneShot disables further events for the handle after one delivery
	// until Reregister re-arms it. Forgetting to re-arm silently starves
	// the handle.
	PollOneShot PollFlags = 1 << 2

	// PollEdgeTrigger regenerates an event only after the I/O condition has
	// been acted upon and changes again. Registrations without this bit
	// deliver level-triggered readiness: the event repeats while the
	// condition holds.
	PollEdgeTrigger PollFlags = 1 << 3
)

// Has reports whether all bits in mask are set.
func (f PollFlags) Has(mask PollFlags) bool { return f&mask == mask }

// SockFlags configures a socket at construction time. The transport and
// address-family groups are mutually exclusive; when several bits of a group
// are set, the lowest bit wins: Raw over Tcp over Udp, Ipv4 over Ipv6.
// SockNonblock is an independent modifier.
type SockFlags uint32

const (
	SockRaw      SockFlags = 1 << 0
	SockTcp      SockFlags = 1 << 1
	SockUdp      SockFlags = 1 << 2
	SockIpv4     SockFlags = 1 << 3
	SockIpv6     SockFlags = 1 << 4
	SockNonblock SockFlags = 1 << 5
)

// Transport resolves the transport group in priority order Raw > Tcp > Udp.
// ok is false when no transport bit is set.
func (f SockFlags) Transport() (tr SockFlags, ok bool) {
	switch {
	case f&SockRaw != 0:
		return SockRaw, true
	case f&SockTcp != 0:
		return SockTcp, true
	case f&SockUdp != 0:
		return SockUdp, true
	}
	return 0, false
}

// Family resolves the address-family group in priority order Ipv4 > Ipv6.
// ok is false when no family bit is set.
func (f SockFlags) Family() (fam SockFlags, ok bool) {
	switch {
	case f&SockIpv4 != 0:
		return SockIpv4, true
	case f&SockIpv6 != 0:
		return SockIpv6, true
	}
	return 0, false
}

// Nonblocking reports whether the socket was requested in non-blocking mode.
func (f SockFlags) Nonblocking() bool { return f&SockNonblock != 0 }
