//go:build !linux && !windows

// File: aio/stub_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub backend for unsupported platforms. Descriptor types fall back to
// plain slices so the package still compiles; every factory fails with
// api.ErrNotSupported.

package aio

import (
	"github.com/momentics/hioload-aio/api"
)

func platformInit() error { return api.ErrNotSupported }

func platformCleanup() error { return nil }

// CloseHandle is unavailable on this platform.
func CloseHandle(Handle) error { return api.ErrNotSupported }

// Buffer is a plain byte-slice descriptor on platforms without a native
// scatter/gather layout.
type Buffer struct {
	b []byte
}

// BufferFrom encodes b.
func BufferFrom(b []byte) Buffer { return Buffer{b: b} }

// Bytes returns the described region.
func (b Buffer) Bytes() []byte { return b.b }

// Len reports the described byte count.
func (b Buffer) Len() int { return len(b.b) }

// Encoded sizes of the two Address variants (sockaddr_in, sockaddr_in6).
const (
	AddrSizeIPv4 = 16
	AddrSizeIPv6 = 28
)

// Address is an IPv4/IPv6 endpoint descriptor.
type Address struct {
	Len  int
	ip4  [4]byte
	ip6  [16]byte
	port uint16
}

// AddrFromIPv4 builds an IPv4 endpoint.
func AddrFromIPv4(ip [4]byte, port uint16) Address {
	return Address{Len: AddrSizeIPv4, ip4: ip, port: port}
}

// AddrFromIPv6 builds an IPv6 endpoint.
func AddrFromIPv6(ip [16]byte, port uint16) Address {
	return Address{Len: AddrSizeIPv6, ip6: ip, port: port}
}

func (a *Address) IsIPv4() bool   { return a.Len == AddrSizeIPv4 }
func (a *Address) IsIPv6() bool   { return a.Len == AddrSizeIPv6 }
func (a *Address) Port() uint16   { return a.port }
func (a *Address) IPv4() [4]byte  { return a.ip4 }
func (a *Address) IPv6() [16]byte { return a.ip6 }

// Encode is unavailable on this platform.
func (a *Address) Encode([]byte) (int, error) { return 0, api.ErrNotSupported }

// DecodeAddr is unavailable on this platform.
func DecodeAddr([]byte) (Address, error) { return Address{}, api.ErrNotSupported }

// EventPoller is unavailable on this platform.
type EventPoller struct{}

// NewEventPoller fails on unsupported platforms.
func NewEventPoller() (*EventPoller, error) { return nil, api.ErrNotSupported }

func (p *EventPoller) Handle() Handle                                  { return InvalidHandle }
func (p *EventPoller) Register(Handle, api.PollFlags, uintptr) error   { return api.ErrNotSupported }
func (p *EventPoller) Reregister(Handle, api.PollFlags, uintptr) error { return api.ErrNotSupported }
func (p *EventPoller) Unregister(Handle) error                         { return api.ErrNotSupported }
func (p *EventPoller) Notify(uintptr) error                            { return api.ErrNotSupported }
func (p *EventPoller) Poll([]Event, int) (int, error)                  { return 0, api.ErrNotSupported }
func (p *EventPoller) Close() error                                    { return api.ErrNotSupported }

// Socket is unavailable on this platform.
type Socket struct{}

// NewSocket fails on unsupported platforms.
func NewSocket(api.SockFlags) (*Socket, error) { return nil, api.ErrNotSupported }

func (s *Socket) Handle() Handle                { return InvalidHandle }
func (s *Socket) Flags() api.SockFlags          { return 0 }
func (s *Socket) Close() error                  { return api.ErrNotSupported }
func (s *Socket) Bind(*Address) error           { return api.ErrNotSupported }
func (s *Socket) Listen(int) error              { return api.ErrNotSupported }
func (s *Socket) LocalAddr() (Address, error)   { return Address{}, api.ErrNotSupported }
func (s *Socket) Shutdown(api.PollFlags) error  { return api.ErrNotSupported }
func (s *Socket) SetOption(Option, int) error   { return api.ErrNotSupported }
func (s *Socket) GetOption(Option) (int, error) { return 0, api.ErrNotSupported }

func (s *Socket) Connect(*Address) (api.Result, error) {
	return api.Failed(0), api.ErrNotSupported
}

func (s *Socket) Accept(*Address) (*Socket, api.Result, error) {
	return nil, api.Failed(0), api.ErrNotSupported
}

func (s *Socket) Read([]Buffer) (api.Result, error) {
	return api.Failed(0), api.ErrNotSupported
}

func (s *Socket) Write([]Buffer) (api.Result, error) {
	return api.Failed(0), api.ErrNotSupported
}

func (s *Socket) ReadFrom(*Address, []Buffer) (api.Result, error) {
	return api.Failed(0), api.ErrNotSupported
}

func (s *Socket) WriteTo(*Address, []Buffer) (api.Result, error) {
	return api.Failed(0), api.ErrNotSupported
}
