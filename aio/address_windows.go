//go:build windows

// File: aio/address_windows.go
// Author: momentics <momentics@gmail.com>
//
// Address is a tagged union over the raw sockaddr_in and sockaddr_in6
// encodings. Len discriminates the populated variant and always equals the
// byte size of exactly one of the two.

package aio

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
)

// Encoded sizes of the two variants.
const (
	AddrSizeIPv4 = int(unsafe.Sizeof(windows.RawSockaddrInet4{}))
	AddrSizeIPv6 = int(unsafe.Sizeof(windows.RawSockaddrInet6{}))
)

// Address is a backend-encoded IPv4/IPv6 endpoint descriptor.
type Address struct {
	Len int
	v4  windows.RawSockaddrInet4
	v6  windows.RawSockaddrInet6
}

// AddrFromIPv4 builds an IPv4 endpoint from a numeric address and port.
func AddrFromIPv4(ip [4]byte, port uint16) Address {
	var a Address
	a.Len = AddrSizeIPv4
	a.v4.Family = windows.AF_INET
	a.v4.Addr = ip
	setPort(&a.v4.Port, port)
	return a
}

// AddrFromIPv6 builds an IPv6 endpoint from a numeric address and port.
func AddrFromIPv6(ip [16]byte, port uint16) Address {
	var a Address
	a.Len = AddrSizeIPv6
	a.v6.Family = windows.AF_INET6
	a.v6.Addr = ip
	setPort(&a.v6.Port, port)
	return a
}

// IsIPv4 reports whether the IPv4 variant is populated.
func (a *Address) IsIPv4() bool { return a.Len == AddrSizeIPv4 }

// IsIPv6 reports whether the IPv6 variant is populated.
func (a *Address) IsIPv6() bool { return a.Len == AddrSizeIPv6 }

// Port returns the endpoint port in host order, 0 for an empty address.
func (a *Address) Port() uint16 {
	switch {
	case a.IsIPv4():
		return getPort(a.v4.Port)
	case a.IsIPv6():
		return getPort(a.v6.Port)
	}
	return 0
}

// IPv4 returns the numeric IPv4 address; only valid when IsIPv4.
func (a *Address) IPv4() [4]byte { return a.v4.Addr }

// IPv6 returns the numeric IPv6 address; only valid when IsIPv6.
func (a *Address) IPv6() [16]byte { return a.v6.Addr }

// Encode writes the populated variant's wire encoding into dst and returns
// the byte count. Fails with api.ErrInvalidValue when dst is too small or
// the address is empty.
func (a *Address) Encode(dst []byte) (int, error) {
	switch {
	case a.IsIPv4():
		if len(dst) < AddrSizeIPv4 {
			return 0, api.ErrInvalidValue
		}
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&a.v4)), AddrSizeIPv4)
		return copy(dst, raw), nil
	case a.IsIPv6():
		if len(dst) < AddrSizeIPv6 {
			return 0, api.ErrInvalidValue
		}
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&a.v6)), AddrSizeIPv6)
		return copy(dst, raw), nil
	}
	return 0, api.ErrInvalidValue
}

// DecodeAddr reconstructs an Address from a wire encoding produced by
// Encode, discriminating the variant by length.
func DecodeAddr(b []byte) (Address, error) {
	var a Address
	switch len(b) {
	case AddrSizeIPv4:
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&a.v4)), AddrSizeIPv4), b)
		a.Len = AddrSizeIPv4
	case AddrSizeIPv6:
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&a.v6)), AddrSizeIPv6), b)
		a.Len = AddrSizeIPv6
	default:
		return a, api.ErrInvalidValue
	}
	return a, nil
}

// sockaddr converts to the x/sys representation used by kernel calls.
func (a *Address) sockaddr() windows.Sockaddr {
	switch {
	case a.IsIPv4():
		return &windows.SockaddrInet4{Port: int(a.Port()), Addr: a.v4.Addr}
	case a.IsIPv6():
		return &windows.SockaddrInet6{
			Port:   int(a.Port()),
			Addr:   a.v6.Addr,
			ZoneId: a.v6.Scope_id,
		}
	}
	return nil
}

// setSockaddr populates the address from a kernel-returned peer.
func (a *Address) setSockaddr(sa windows.Sockaddr) {
	switch peer := sa.(type) {
	case *windows.SockaddrInet4:
		*a = AddrFromIPv4(peer.Addr, uint16(peer.Port))
	case *windows.SockaddrInet6:
		*a = AddrFromIPv6(peer.Addr, uint16(peer.Port))
	}
}

// Port fields of the raw encodings hold network byte order.
func setPort(dst *uint16, port uint16) {
	p := (*[2]byte)(unsafe.Pointer(dst))
	p[0] = byte(port >> 8)
	p[1] = byte(port)
}

func getPort(src uint16) uint16 {
	p := (*[2]byte)(unsafe.Pointer(&src))
	return uint16(p[0])<<8 | uint16(p[1])
}
