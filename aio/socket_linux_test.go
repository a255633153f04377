//go:build linux

package aio

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
)

func newUdpSocket(t *testing.T) *Socket {
	t.Helper()
	s, err := NewSocket(api.SockUdp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("udp socket: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	loopback := AddrFromIPv4([4]byte{127, 0, 0, 1}, 0)
	if err := s.Bind(&loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return s
}

func TestNewSocketFlagValidation(t *testing.T) {
	if _, err := NewSocket(api.SockTcp); err != api.ErrInvalidValue {
		t.Errorf("missing family: got %v, want %v", err, api.ErrInvalidValue)
	}
	if _, err := NewSocket(api.SockIpv4); err != api.ErrInvalidValue {
		t.Errorf("missing transport: got %v, want %v", err, api.ErrInvalidValue)
	}
}

func TestSocketFlagsFixedForLifetime(t *testing.T) {
	flags := api.SockTcp | api.SockIpv4 | api.SockNonblock
	s, err := NewSocket(flags)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer s.Close()
	if s.Flags() != flags {
		t.Errorf("flags = %b, want %b", s.Flags(), flags)
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	sender := newUdpSocket(t)
	receiver := newUdpSocket(t)

	dst, err := receiver.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}

	payload := []byte("datagram payload")
	res, err := sender.WriteTo(&dst, []Buffer{BufferFrom(payload)})
	if err != nil {
		t.Fatalf("writeto: %v", err)
	}
	if res.Status != api.StatusCompleted || res.N != len(payload) {
		t.Fatalf("writeto result: %+v", res)
	}

	out := make([]byte, 64)
	var peer Address
	res = pollUntilComplete(t, func() (api.Result, error) {
		return receiver.ReadFrom(&peer, []Buffer{BufferFrom(out)})
	})
	if res.N != len(payload) || !bytes.Equal(out[:res.N], payload) {
		t.Fatalf("readfrom result: %+v, data %q", res, out[:res.N])
	}
	if !peer.IsIPv4() || peer.IPv4() != [4]byte{127, 0, 0, 1} {
		t.Errorf("peer address not populated: %+v", peer)
	}

	src, err := sender.LocalAddr()
	if err != nil {
		t.Fatalf("sender addr: %v", err)
	}
	if peer.Port() != src.Port() {
		t.Errorf("peer port = %d, want %d", peer.Port(), src.Port())
	}
}

func TestDatagramTruncationReportsMoreMemory(t *testing.T) {
	sender := newUdpSocket(t)
	receiver := newUdpSocket(t)

	dst, err := receiver.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}
	payload := []byte("oversized datagram")
	if res, err := sender.WriteTo(&dst, []Buffer{BufferFrom(payload)}); err != nil || res.Status != api.StatusCompleted {
		t.Fatalf("writeto: res=%+v err=%v", res, err)
	}

	small := make([]byte, 4)
	res := pollUntilNotRetry(t, func() (api.Result, error) {
		return receiver.ReadFrom(nil, []Buffer{BufferFrom(small)})
	})
	if res.Status != api.StatusMoreMemory {
		t.Fatalf("truncated datagram: got %v, want %v", res.Status, api.StatusMoreMemory)
	}
}

func TestScatterGatherOrder(t *testing.T) {
	sender := newUdpSocket(t)
	receiver := newUdpSocket(t)

	dst, err := receiver.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}
	parts := []Buffer{
		BufferFrom([]byte("alpha-")),
		BufferFrom([]byte("beta-")),
		BufferFrom([]byte("gamma")),
	}
	res, err := sender.WriteTo(&dst, parts)
	if err != nil || res.Status != api.StatusCompleted {
		t.Fatalf("writeto: res=%+v err=%v", res, err)
	}

	first := make([]byte, 6)
	rest := make([]byte, 32)
	res = pollUntilComplete(t, func() (api.Result, error) {
		return receiver.ReadFrom(nil, []Buffer{BufferFrom(first), BufferFrom(rest)})
	})
	want := []byte("alpha-beta-gamma")
	got := append(append([]byte{}, first...), rest[:res.N-len(first)]...)
	if res.N != len(want) || !bytes.Equal(got, want) {
		t.Fatalf("scatter order broken: %q (n=%d)", got, res.N)
	}
}

func TestPipeLockIsSinglePermit(t *testing.T) {
	s, err := NewSocket(api.SockTcp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer s.Close()

	if err := s.rd.acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := s.rd.acquire(); err != api.ErrPipeBusy {
		t.Fatalf("second acquire: got %v, want %v", err, api.ErrPipeBusy)
	}
	// The WRITE pipe stays independent.
	if err := s.wr.acquire(); err != nil {
		t.Fatalf("write pipe blocked by read pipe: %v", err)
	}
	s.wr.release()
	s.rd.release()
	if err := s.rd.acquire(); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	s.rd.release()
}

func TestBindFailureCarriesStructuredError(t *testing.T) {
	first, err := NewSocket(api.SockTcp | api.SockIpv4)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer first.Close()
	loopback := AddrFromIPv4([4]byte{127, 0, 0, 1}, 0)
	if err := first.Bind(&loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	taken, err := first.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}

	second, err := NewSocket(api.SockTcp | api.SockIpv4)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer second.Close()

	err = second.Bind(&taken)
	if err == nil {
		t.Fatal("binding an occupied address succeeded")
	}
	var se *api.Error
	if !errors.As(err, &se) {
		t.Fatalf("bind error not structured: %v", err)
	}
	if !errors.Is(err, unix.EADDRINUSE) {
		t.Errorf("cause = %v, want EADDRINUSE", err)
	}
	if se.Context["port"] == nil {
		t.Error("missing port context")
	}
}

func TestSocketOptions(t *testing.T) {
	s, err := NewSocket(api.SockTcp | api.SockIpv4)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer s.Close()

	if err := s.SetOption(ReuseAddr, 1); err != nil {
		t.Fatalf("set reuseaddr: %v", err)
	}
	v, err := s.GetOption(ReuseAddr)
	if err != nil {
		t.Fatalf("get reuseaddr: %v", err)
	}
	if v == 0 {
		t.Error("reuseaddr did not stick")
	}

	if err := s.SetOption(TcpNoDelay, 1); err != nil {
		t.Fatalf("set nodelay: %v", err)
	}
	if _, err := s.GetOption(Option(999)); err != api.ErrInvalidValue {
		t.Errorf("unknown option: got %v, want %v", err, api.ErrInvalidValue)
	}
}

// pollUntilComplete spins a bounded number of times on a non-blocking
// operation that is expected to complete promptly.
func pollUntilComplete(t *testing.T, op func() (api.Result, error)) api.Result {
	t.Helper()
	res := pollUntilNotRetry(t, op)
	if res.Status != api.StatusCompleted {
		t.Fatalf("operation did not complete: %+v", res)
	}
	return res
}

func pollUntilNotRetry(t *testing.T, op func() (api.Result, error)) api.Result {
	t.Helper()
	for i := 0; i < 1000; i++ {
		res, err := op()
		if err != nil {
			t.Fatalf("operation failed: %v", err)
		}
		if res.Status != api.StatusRetry {
			return res
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("operation never left Retry")
	return api.Result{}
}
