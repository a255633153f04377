//go:build linux

// File: aio/socket_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux socket operations on raw descriptors via golang.org/x/sys/unix.
// Vectored transfers use readv/writev for streams and the
// RecvmsgBuffers/SendmsgBuffers pair for datagrams.

package aio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
)

// Socket is a bidirectional stream or datagram endpoint over one Handle.
// Its construction flags are fixed for the socket's lifetime.
type Socket struct {
	h     Handle
	flags api.SockFlags
	rd    pipe
	wr    pipe
}

// NewSocket creates a kernel socket from construction flags. Within the
// transport and family groups the lowest set bit wins (Raw > Tcp > Udp,
// Ipv4 > Ipv6); SockNonblock makes every steady-state operation return
// StatusRetry instead of suspending.
func NewSocket(flags api.SockFlags) (*Socket, error) {
	if !initialized() {
		return nil, api.ErrNotInitialized
	}
	fam, ok := flags.Family()
	if !ok {
		return nil, api.ErrInvalidValue
	}
	tr, ok := flags.Transport()
	if !ok {
		return nil, api.ErrInvalidValue
	}

	domain := unix.AF_INET
	if fam == api.SockIpv6 {
		domain = unix.AF_INET6
	}
	var typ, proto int
	switch tr {
	case api.SockRaw:
		typ = unix.SOCK_RAW
	case api.SockTcp:
		typ, proto = unix.SOCK_STREAM, unix.IPPROTO_TCP
	case api.SockUdp:
		typ, proto = unix.SOCK_DGRAM, unix.IPPROTO_UDP
	}
	typ |= unix.SOCK_CLOEXEC
	if flags.Nonblocking() {
		typ |= unix.SOCK_NONBLOCK
	}

	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		if err == unix.EMFILE || err == unix.ENFILE || err == unix.ENOBUFS {
			return nil, api.ErrOutOfResources
		}
		return nil, api.Wrap(api.ErrCodeInternal, "socket create", err)
	}
	return newSocketFromFd(fd, flags), nil
}

func newSocketFromFd(fd int, flags api.SockFlags) *Socket {
	return &Socket{h: Handle(fd), flags: flags, rd: newPipe(), wr: newPipe()}
}

// Handle returns the underlying kernel resource. The Socket remains the
// owner; only its Close releases it.
func (s *Socket) Handle() Handle { return s.h }

// Flags returns the construction-time flag set.
func (s *Socket) Flags() api.SockFlags { return s.flags }

// Close releases the socket's handle. Exactly once, by the owner.
func (s *Socket) Close() error {
	return unix.Close(int(s.h))
}

// Bind attaches the socket to a local address. Locks both pipes and always
// runs to completion regardless of SockNonblock.
func (s *Socket) Bind(addr *Address) error {
	if err := s.lockBoth(); err != nil {
		return err
	}
	defer s.unlockBoth()
	sa := addr.sockaddr()
	if sa == nil {
		return api.ErrInvalidValue
	}
	if err := unix.Bind(int(s.h), sa); err != nil {
		return api.Wrap(api.ErrCodeInternal, "bind", err).WithContext("port", addr.Port())
	}
	return nil
}

// Listen marks the socket as accepting connections. Locks both pipes and
// always runs to completion.
func (s *Socket) Listen(backlog int) error {
	if err := s.lockBoth(); err != nil {
		return err
	}
	defer s.unlockBoth()
	if err := unix.Listen(int(s.h), backlog); err != nil {
		return api.Wrap(api.ErrCodeInternal, "listen", err).WithContext("backlog", backlog)
	}
	return nil
}

// LocalAddr reports the address the socket is bound to.
func (s *Socket) LocalAddr() (Address, error) {
	var a Address
	sa, err := unix.Getsockname(int(s.h))
	if err != nil {
		return a, fmt.Errorf("getsockname: %w", err)
	}
	a.setSockaddr(sa)
	return a, nil
}

// Connect initiates the connection handshake. Locks the WRITE pipe. On a
// non-blocking socket it reports StatusRetry until the handshake completes,
// signaled by a WRITE-readiness event; retrying then reports
// StatusCompleted.
func (s *Socket) Connect(addr *Address) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()
	sa := addr.sockaddr()
	if sa == nil {
		return api.Failed(0), api.ErrInvalidValue
	}
	switch err := unix.Connect(int(s.h), sa); err {
	case nil, unix.EISCONN:
		return api.Completed(0), nil
	case unix.EINPROGRESS, unix.EALREADY, unix.EAGAIN, unix.EINTR:
		return api.Retrying(0), nil
	default:
		return api.Failed(0), fmt.Errorf("connect: %w", err)
	}
}

// Accept takes one pending connection. Locks the READ pipe. On a
// non-blocking socket it reports StatusRetry until a connection is pending,
// signaled by a READ-readiness event. peer, when non-nil, must stay valid
// until StatusCompleted is observed; the accepted socket inherits the
// listener's flag set.
func (s *Socket) Accept(peer *Address) (*Socket, api.Result, error) {
	if err := s.rd.acquire(); err != nil {
		return nil, api.Failed(0), err
	}
	defer s.rd.release()

	sockFlags := unix.SOCK_CLOEXEC
	if s.flags.Nonblocking() {
		sockFlags |= unix.SOCK_NONBLOCK
	}
	fd, sa, err := unix.Accept4(int(s.h), sockFlags)
	switch err {
	case nil:
	case unix.EAGAIN, unix.ECONNABORTED, unix.EINTR:
		return nil, api.Retrying(0), nil
	default:
		return nil, api.Failed(0), fmt.Errorf("accept: %w", err)
	}
	if peer != nil {
		peer.setSockaddr(sa)
	}
	return newSocketFromFd(fd, s.flags), api.Completed(0), nil
}

// Read gathers bytes into bufs in order. Locks the READ pipe. A zero
// StatusCompleted count means end of stream.
func (s *Socket) Read(bufs []Buffer) (api.Result, error) {
	if err := s.rd.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.rd.release()

	n, err := unix.Readv(int(s.h), byteViews(bufs))
	switch err {
	case nil:
		return api.Completed(n), nil
	case unix.EAGAIN, unix.EINTR:
		return api.Retrying(0), nil
	default:
		return api.Failed(0), fmt.Errorf("read: %w", err)
	}
}

// Write scatters bytes from bufs in order. Locks the WRITE pipe. A short
// transfer reports StatusRetry with the bytes already written; retry with
// the remaining data after a WRITE event.
func (s *Socket) Write(bufs []Buffer) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()

	views := byteViews(bufs)
	total := 0
	for _, v := range views {
		total += len(v)
	}
	n, err := unix.Writev(int(s.h), views)
	switch err {
	case nil:
		if n < total {
			return api.Retrying(n), nil
		}
		return api.Completed(n), nil
	case unix.EAGAIN, unix.EINTR:
		return api.Retrying(0), nil
	default:
		return api.Failed(0), fmt.Errorf("write: %w", err)
	}
}

// ReadFrom receives one datagram into bufs and populates addr with the
// peer endpoint. Locks the READ pipe. addr must stay valid until
// StatusCompleted is observed. A datagram exceeding the buffer set reports
// StatusMoreMemory.
func (s *Socket) ReadFrom(addr *Address, bufs []Buffer) (api.Result, error) {
	if err := s.rd.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.rd.release()

	n, _, recvflags, sa, err := unix.RecvmsgBuffers(int(s.h), byteViews(bufs), nil, 0)
	switch err {
	case nil:
	case unix.EAGAIN, unix.EINTR:
		return api.Retrying(0), nil
	default:
		return api.Failed(0), fmt.Errorf("readfrom: %w", err)
	}
	if addr != nil {
		addr.setSockaddr(sa)
	}
	if recvflags&(unix.MSG_TRUNC|unix.MSG_CTRUNC) != 0 {
		return api.MoreMemory(), nil
	}
	return api.Completed(n), nil
}

// WriteTo sends bufs as one datagram to addr. Locks the WRITE pipe. addr
// must stay valid until StatusCompleted is observed.
func (s *Socket) WriteTo(addr *Address, bufs []Buffer) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()

	sa := addr.sockaddr()
	if sa == nil {
		return api.Failed(0), api.ErrInvalidValue
	}
	n, err := unix.SendmsgBuffers(int(s.h), byteViews(bufs), nil, sa, 0)
	switch err {
	case nil:
		return api.Completed(n), nil
	case unix.EAGAIN, unix.EINTR:
		return api.Retrying(0), nil
	default:
		return api.Failed(0), fmt.Errorf("writeto: %w", err)
	}
}

// Shutdown half-closes the pipes selected by how (PollRead, PollWrite or
// both).
func (s *Socket) Shutdown(how api.PollFlags) error {
	var mode int
	switch {
	case how.Has(api.PollRead | api.PollWrite):
		mode = unix.SHUT_RDWR
	case how.Has(api.PollRead):
		mode = unix.SHUT_RD
	case how.Has(api.PollWrite):
		mode = unix.SHUT_WR
	default:
		return api.ErrInvalidValue
	}
	if err := unix.Shutdown(int(s.h), mode); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// SetOption sets a configuration knob.
func (s *Socket) SetOption(opt Option, value int) error {
	level, name, err := sockoptNames(opt)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(int(s.h), level, name, value); err != nil {
		return fmt.Errorf("setsockopt: %w", err)
	}
	return nil
}

// GetOption reads a configuration knob.
func (s *Socket) GetOption(opt Option) (int, error) {
	level, name, err := sockoptNames(opt)
	if err != nil {
		return 0, err
	}
	v, err := unix.GetsockoptInt(int(s.h), level, name)
	if err != nil {
		return 0, fmt.Errorf("getsockopt: %w", err)
	}
	return v, nil
}

func sockoptNames(opt Option) (level, name int, err error) {
	switch opt {
	case ReuseAddr:
		return unix.SOL_SOCKET, unix.SO_REUSEADDR, nil
	case TcpNoDelay:
		return unix.IPPROTO_TCP, unix.TCP_NODELAY, nil
	case RecvBuffer:
		return unix.SOL_SOCKET, unix.SO_RCVBUF, nil
	case SendBuffer:
		return unix.SOL_SOCKET, unix.SO_SNDBUF, nil
	case KeepAlive:
		return unix.SOL_SOCKET, unix.SO_KEEPALIVE, nil
	}
	return 0, 0, api.ErrInvalidValue
}

func (s *Socket) lockBoth() error {
	if err := s.rd.acquire(); err != nil {
		return err
	}
	if err := s.wr.acquire(); err != nil {
		s.rd.release()
		return err
	}
	return nil
}

func (s *Socket) unlockBoth() {
	s.wr.release()
	s.rd.release()
}
