//go:build windows

// File: aio/socket_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows socket operations over overlapped Winsock I/O. Each pipe owns one
// in-flight overlapped operation; a call that queues work reports
// StatusRetry, the completion surfaces through the poller, and retrying the
// identical call harvests the queued result.

package aio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
)

// ioOp is the per-pipe overlapped operation state. The Overlapped must stay
// the first field: the poller recovers the ioOp from the completion
// packet's overlapped pointer.
type ioOp struct {
	o       windows.Overlapped
	pipe    api.PollFlags
	pending bool
}

// Socket is a bidirectional stream or datagram endpoint over one Handle.
// Its construction flags are fixed for the socket's lifetime.
type Socket struct {
	h     Handle
	flags api.SockFlags
	rd    pipe
	wr    pipe

	rdOp ioOp
	wrOp ioOp

	// AcceptEx staging: the pre-created client socket and the kernel's
	// address scratch area, live across the Retry protocol.
	acceptSock windows.Handle
	acceptBuf  [2 * (AddrSizeIPv6 + 16)]byte

	// WSARecvFrom staging for the peer endpoint.
	fromRaw windows.RawSockaddrAny
	fromLen int32

	bound      bool
	connecting bool
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

	domain := int32(windows.AF_INET)
	if fam == api.SockIpv6 {
		domain = windows.AF_INET6
	}
	var typ, proto int32
	switch tr {
	case api.SockRaw:
		typ = windows.SOCK_RAW
	case api.SockTcp:
		typ, proto = windows.SOCK_STREAM, windows.IPPROTO_TCP
	case api.SockUdp:
		typ, proto = windows.SOCK_DGRAM, windows.IPPROTO_UDP
	}

	fd, err := windows.WSASocket(domain, typ, proto, nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		if err == windows.WSAEMFILE || err == windows.WSAENOBUFS {
			return nil, api.ErrOutOfResources
		}
		return nil, api.Wrap(api.ErrCodeInternal, "socket create", err)
	}
	// Synchronous successes complete inline instead of also queueing a
	// packet on the port.
	_ = windows.SetFileCompletionNotificationModes(fd,
		windows.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS|windows.FILE_SKIP_SET_EVENT_ON_HANDLE)
	return newSocketFromHandle(fd, flags), nil
}

func newSocketFromHandle(fd windows.Handle, flags api.SockFlags) *Socket {
	return &Socket{
		h:          Handle(fd),
		flags:      flags,
		rd:         newPipe(),
		wr:         newPipe(),
		rdOp:       ioOp{pipe: api.PollRead},
		wrOp:       ioOp{pipe: api.PollWrite},
		acceptSock: windows.InvalidHandle,
	}
}

func (s *Socket) sys() windows.Handle { return windows.Handle(s.h) }

// Handle returns the underlying kernel resource. The Socket remains the
// owner; only its Close releases it.
func (s *Socket) Handle() Handle { return s.h }

// Flags returns the construction-time flag set.
func (s *Socket) Flags() api.SockFlags { return s.flags }

// Close releases the socket's handle. Exactly once, by the owner.
func (s *Socket) Close() error {
	if s.acceptSock != windows.InvalidHandle {
		_ = windows.Closesocket(s.acceptSock)
		s.acceptSock = windows.InvalidHandle
	}
	return windows.Closesocket(s.sys())
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
	if err := windows.Bind(s.sys(), sa); err != nil {
		return api.Wrap(api.ErrCodeInternal, "bind", err).WithContext("port", addr.Port())
	}
	s.bound = true
	return nil
}

// Listen marks the socket as accepting connections. Locks both pipes and
// always runs to completion.
func (s *Socket) Listen(backlog int) error {
	if err := s.lockBoth(); err != nil {
		return err
	}
	defer s.unlockBoth()
	if err := windows.Listen(s.sys(), backlog); err != nil {
		return api.Wrap(api.ErrCodeInternal, "listen", err).WithContext("backlog", backlog)
	}
	return nil
}

// LocalAddr reports the address the socket is bound to.
func (s *Socket) LocalAddr() (Address, error) {
	var a Address
	sa, err := windows.Getsockname(s.sys())
	if err != nil {
		return a, fmt.Errorf("getsockname: %w", err)
	}
	a.setSockaddr(sa)
	return a, nil
}

// Connect initiates the connection handshake via ConnectEx. Locks the
// WRITE pipe. On a non-blocking socket it reports StatusRetry until the
// queued handshake completes, signaled through the poller by a WRITE
// completion; retrying then reports StatusCompleted.
func (s *Socket) Connect(addr *Address) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()

	if s.connecting {
		res, err := s.finishOp(&s.wrOp)
		if err == nil && res.Status == api.StatusCompleted {
			s.connecting = false
			_ = windows.SetsockoptInt(s.sys(), windows.SOL_SOCKET, windows.SO_UPDATE_CONNECT_CONTEXT, 0)
			res = api.Completed(0)
		}
		return res, err
	}

	sa := addr.sockaddr()
	if sa == nil {
		return api.Failed(0), api.ErrInvalidValue
	}
	// ConnectEx requires a bound socket.
	if !s.bound {
		wild := s.wildcardAddr()
		if err := windows.Bind(s.sys(), wild.sockaddr()); err != nil {
			return api.Failed(0), fmt.Errorf("connect bind: %w", err)
		}
		s.bound = true
	}

	s.wrOp.o = windows.Overlapped{}
	var sent uint32
	err := windows.ConnectEx(s.sys(), sa, nil, 0, &sent, &s.wrOp.o)
	switch err {
	case nil:
		_ = windows.SetsockoptInt(s.sys(), windows.SOL_SOCKET, windows.SO_UPDATE_CONNECT_CONTEXT, 0)
		return api.Completed(0), nil
	case windows.ERROR_IO_PENDING:
		s.wrOp.pending = true
		s.connecting = true
		if s.flags.Nonblocking() {
			return api.Retrying(0), nil
		}
		res, err := s.waitOp(&s.wrOp)
		if err == nil && res.Status == api.StatusCompleted {
			s.connecting = false
			_ = windows.SetsockoptInt(s.sys(), windows.SOL_SOCKET, windows.SO_UPDATE_CONNECT_CONTEXT, 0)
			res = api.Completed(0)
		}
		return res, err
	default:
		return api.Failed(0), fmt.Errorf("connect: %w", err)
	}
}

// Accept takes one pending connection via AcceptEx. Locks the READ pipe.
// On a non-blocking socket it reports StatusRetry until the queued accept
// completes, signaled through the poller by a READ completion. peer, when
// non-nil, must stay valid until StatusCompleted is observed; the accepted
// socket inherits the listener's flag set.
func (s *Socket) Accept(peer *Address) (*Socket, api.Result, error) {
	if err := s.rd.acquire(); err != nil {
		return nil, api.Failed(0), err
	}
	defer s.rd.release()

	if s.acceptSock == windows.InvalidHandle {
		res, err := s.startAccept()
		if res.Status != api.StatusRetry || err != nil {
			if res.Status == api.StatusCompleted {
				return s.finishAccept(peer)
			}
			return nil, res, err
		}
		if s.flags.Nonblocking() {
			return nil, res, nil
		}
	}
	if s.flags.Nonblocking() {
		res, err := s.finishOp(&s.rdOp)
		if res.Status != api.StatusCompleted || err != nil {
			return nil, res, err
		}
		return s.finishAccept(peer)
	}
	res, err := s.waitOp(&s.rdOp)
	if res.Status != api.StatusCompleted || err != nil {
		return nil, res, err
	}
	return s.finishAccept(peer)
}

func (s *Socket) startAccept() (api.Result, error) {
	fam, _ := s.flags.Family()
	domain := int32(windows.AF_INET)
	if fam == api.SockIpv6 {
		domain = windows.AF_INET6
	}
	client, err := windows.WSASocket(domain, windows.SOCK_STREAM, windows.IPPROTO_TCP,
		nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return api.Failed(0), fmt.Errorf("accept socket: %w", err)
	}

	s.rdOp.o = windows.Overlapped{}
	addrLen := uint32(len(s.acceptBuf) / 2)
	var recvd uint32
	err = windows.AcceptEx(s.sys(), client, &s.acceptBuf[0], 0, addrLen, addrLen, &recvd, &s.rdOp.o)
	switch err {
	case nil:
		s.acceptSock = client
		return api.Completed(0), nil
	case windows.ERROR_IO_PENDING:
		s.acceptSock = client
		s.rdOp.pending = true
		return api.Retrying(0), nil
	default:
		_ = windows.Closesocket(client)
		return api.Failed(0), fmt.Errorf("acceptex: %w", err)
	}
}

func (s *Socket) finishAccept(peer *Address) (*Socket, api.Result, error) {
	client := s.acceptSock
	s.acceptSock = windows.InvalidHandle

	lsn := s.sys()
	_ = windows.Setsockopt(client, windows.SOL_SOCKET, windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&lsn)), int32(unsafe.Sizeof(lsn)))

	if peer != nil {
		addrLen := uint32(len(s.acceptBuf) / 2)
		var local, remote *windows.RawSockaddrAny
		var localLen, remoteLen int32
		windows.GetAcceptExSockaddrs(&s.acceptBuf[0], 0, addrLen, addrLen,
			&local, &localLen, &remote, &remoteLen)
		if remote != nil {
			if sa, err := remote.Sockaddr(); err == nil {
				peer.setSockaddr(sa)
			}
		}
	}
	_ = windows.SetFileCompletionNotificationModes(client,
		windows.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS|windows.FILE_SKIP_SET_EVENT_ON_HANDLE)
	return newSocketFromHandle(client, s.flags), api.Completed(0), nil
}

// Read gathers bytes into bufs in order. Locks the READ pipe. A zero
// StatusCompleted count means end of stream.
func (s *Socket) Read(bufs []Buffer) (api.Result, error) {
	if err := s.rd.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.rd.release()

	if s.rdOp.pending {
		return s.harvest(&s.rdOp)
	}
	views := wsaBufs(bufs)
	s.rdOp.o = windows.Overlapped{}
	var recvd, recvFlags uint32
	err := windows.WSARecv(s.sys(), &views[0], uint32(len(views)), &recvd, &recvFlags, &s.rdOp.o, nil)
	return s.submitted(&s.rdOp, int(recvd), err, "read")
}

// Write scatters bytes from bufs in order. Locks the WRITE pipe.
func (s *Socket) Write(bufs []Buffer) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()

	if s.wrOp.pending {
		return s.harvest(&s.wrOp)
	}
	views := wsaBufs(bufs)
	s.wrOp.o = windows.Overlapped{}
	var sent uint32
	err := windows.WSASend(s.sys(), &views[0], uint32(len(views)), &sent, 0, &s.wrOp.o, nil)
	return s.submitted(&s.wrOp, int(sent), err, "write")
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

	if s.rdOp.pending {
		res, err := s.harvest(&s.rdOp)
		if res.Status == api.StatusCompleted && addr != nil {
			s.storeFrom(addr)
		}
		return res, err
	}
	views := wsaBufs(bufs)
	s.rdOp.o = windows.Overlapped{}
	s.fromLen = int32(unsafe.Sizeof(s.fromRaw))
	var recvd, recvFlags uint32
	err := windows.WSARecvFrom(s.sys(), &views[0], uint32(len(views)), &recvd, &recvFlags,
		&s.fromRaw, &s.fromLen, &s.rdOp.o, nil)
	if err == windows.WSAEMSGSIZE {
		return api.MoreMemory(), nil
	}
	res, err := s.submitted(&s.rdOp, int(recvd), err, "readfrom")
	if res.Status == api.StatusCompleted && addr != nil {
		s.storeFrom(addr)
	}
	return res, err
}

// WriteTo sends bufs as one datagram to addr. Locks the WRITE pipe. addr
// must stay valid until StatusCompleted is observed.
func (s *Socket) WriteTo(addr *Address, bufs []Buffer) (api.Result, error) {
	if err := s.wr.acquire(); err != nil {
		return api.Failed(0), err
	}
	defer s.wr.release()

	if s.wrOp.pending {
		return s.harvest(&s.wrOp)
	}
	sa := addr.sockaddr()
	if sa == nil {
		return api.Failed(0), api.ErrInvalidValue
	}
	views := wsaBufs(bufs)
	s.wrOp.o = windows.Overlapped{}
	var sent uint32
	err := windows.WSASendto(s.sys(), &views[0], uint32(len(views)), &sent, 0, sa, &s.wrOp.o, nil)
	return s.submitted(&s.wrOp, int(sent), err, "writeto")
}

// Shutdown half-closes the pipes selected by how (PollRead, PollWrite or
// both).
func (s *Socket) Shutdown(how api.PollFlags) error {
	var mode int
	switch {
	case how.Has(api.PollRead | api.PollWrite):
		mode = windows.SHUT_RDWR
	case how.Has(api.PollRead):
		mode = windows.SHUT_RD
	case how.Has(api.PollWrite):
		mode = windows.SHUT_WR
	default:
		return api.ErrInvalidValue
	}
	if err := windows.Shutdown(s.sys(), mode); err != nil {
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
	if err := windows.SetsockoptInt(s.sys(), level, name, value); err != nil {
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
	v, err := windows.GetsockoptInt(s.sys(), level, name)
	if err != nil {
		return 0, fmt.Errorf("getsockopt: %w", err)
	}
	return v, nil
}

func sockoptNames(opt Option) (level, name int, err error) {
	switch opt {
	case ReuseAddr:
		return windows.SOL_SOCKET, windows.SO_REUSEADDR, nil
	case TcpNoDelay:
		return windows.IPPROTO_TCP, windows.TCP_NODELAY, nil
	case RecvBuffer:
		return windows.SOL_SOCKET, windows.SO_RCVBUF, nil
	case SendBuffer:
		return windows.SOL_SOCKET, windows.SO_SNDBUF, nil
	case KeepAlive:
		return windows.SOL_SOCKET, windows.SO_KEEPALIVE, nil
	}
	return 0, 0, api.ErrInvalidValue
}

// submitted folds the outcome of a freshly posted overlapped call into the
// Result model.
func (s *Socket) submitted(op *ioOp, n int, err error, what string) (api.Result, error) {
	switch err {
	case nil:
		return api.Completed(n), nil
	case windows.ERROR_IO_PENDING:
		op.pending = true
		if s.flags.Nonblocking() {
			return api.Retrying(0), nil
		}
		return s.waitOp(op)
	default:
		return api.Failed(0), fmt.Errorf("%s: %w", what, err)
	}
}

// harvest collects a previously queued operation without blocking.
func (s *Socket) harvest(op *ioOp) (api.Result, error) {
	return s.overlappedResult(op, false)
}

// finishOp is harvest under a different retry site (connect).
func (s *Socket) finishOp(op *ioOp) (api.Result, error) {
	return s.overlappedResult(op, false)
}

// waitOp blocks until the queued operation finishes (blocking sockets).
func (s *Socket) waitOp(op *ioOp) (api.Result, error) {
	return s.overlappedResult(op, true)
}

func (s *Socket) overlappedResult(op *ioOp, wait bool) (api.Result, error) {
	var n, oflags uint32
	err := windows.WSAGetOverlappedResult(s.sys(), &op.o, &n, wait, &oflags)
	switch err {
	case nil:
		op.pending = false
		return api.Completed(int(n)), nil
	case windows.ERROR_IO_INCOMPLETE, windows.WSAEWOULDBLOCK:
		return api.Retrying(0), nil
	case windows.WSAEMSGSIZE:
		op.pending = false
		return api.MoreMemory(), nil
	default:
		op.pending = false
		return api.Failed(int(n)), fmt.Errorf("overlapped result: %w", err)
	}
}

func (s *Socket) storeFrom(addr *Address) {
	if sa, err := s.fromRaw.Sockaddr(); err == nil {
		addr.setSockaddr(sa)
	}
}

func (s *Socket) wildcardAddr() Address {
	if fam, _ := s.flags.Family(); fam == api.SockIpv6 {
		return AddrFromIPv6([16]byte{}, 0)
	}
	return AddrFromIPv4([4]byte{}, 0)
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
