//go:build linux

package aio

import (
	"bytes"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-aio/api"
)

const (
	listenerTag = uintptr(0x11)
	clientTag   = uintptr(0x22)
)

// TestStreamEndToEnd drives the full non-blocking connect/accept/transfer
// protocol through the poller: Retry on first attempt, readiness events,
// retried operations completing, then a byte-for-byte echo.
func TestStreamEndToEnd(t *testing.T) {
	listener, err := NewSocket(api.SockTcp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("listener socket: %v", err)
	}
	defer listener.Close()

	loopback := AddrFromIPv4([4]byte{127, 0, 0, 1}, 0)
	if err := listener.Bind(&loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := listener.Listen(16); err != nil {
		t.Fatalf("listen: %v", err)
	}
	target, err := listener.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}

	client, err := NewSocket(api.SockTcp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("client socket: %v", err)
	}
	defer client.Close()

	poller, err := NewEventPoller()
	if err != nil {
		t.Fatalf("poller: %v", err)
	}
	defer poller.Close()

	if err := poller.Register(listener.Handle(), api.PollRead|api.PollEdgeTrigger, listenerTag); err != nil {
		t.Fatalf("register listener: %v", err)
	}
	if err := poller.Register(client.Handle(), api.PollWrite|api.PollEdgeTrigger, clientTag); err != nil {
		t.Fatalf("register client: %v", err)
	}

	res, err := client.Connect(&target)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if res.Status != api.StatusRetry && res.Status != api.StatusCompleted {
		t.Fatalf("first connect: %+v", res)
	}

	var sawClientWrite, sawListenerRead bool
	events := make([]Event, DefaultMaxEvents)
	for i := 0; i < 100 && !(sawClientWrite && sawListenerRead); i++ {
		n, err := poller.Poll(events, 1000)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		for _, ev := range events[:n] {
			switch ev.Data {
			case clientTag:
				if ev.Writable() {
					sawClientWrite = true
				}
			case listenerTag:
				if ev.Readable() {
					sawListenerRead = true
				}
			}
		}
	}
	if !sawClientWrite || !sawListenerRead {
		t.Fatalf("missing readiness: clientWrite=%v listenerRead=%v", sawClientWrite, sawListenerRead)
	}

	// Retrying the identical operations must now complete.
	res, err = client.Connect(&target)
	if err != nil || res.Status != api.StatusCompleted {
		t.Fatalf("retried connect: res=%+v err=%v", res, err)
	}
	var peer Address
	accepted, res, err := listener.Accept(&peer)
	if err != nil || res.Status != api.StatusCompleted {
		t.Fatalf("accept: res=%+v err=%v", res, err)
	}
	defer accepted.Close()
	if !peer.IsIPv4() {
		t.Errorf("peer address not populated: %+v", peer)
	}

	payload := []byte("substrate round trip")
	res, err = client.Write([]Buffer{BufferFrom(payload)})
	if err != nil || res.Status != api.StatusCompleted || res.N != len(payload) {
		t.Fatalf("write: res=%+v err=%v", res, err)
	}

	out := make([]byte, 64)
	res = pollUntilComplete(t, func() (api.Result, error) {
		return accepted.Read([]Buffer{BufferFrom(out)})
	})
	if res.N != len(payload) || !bytes.Equal(out[:res.N], payload) {
		t.Fatalf("read: res=%+v data=%q", res, out[:res.N])
	}
}

// TestStreamReadRetryThenData checks the would-block protocol on an
// accepted stream: Retry with no data pending, Completed after the peer
// writes, end-of-stream after shutdown.
func TestStreamReadRetryThenData(t *testing.T) {
	listener, err := NewSocket(api.SockTcp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer listener.Close()
	loopback := AddrFromIPv4([4]byte{127, 0, 0, 1}, 0)
	if err := listener.Bind(&loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := listener.Listen(1); err != nil {
		t.Fatalf("listen: %v", err)
	}
	target, err := listener.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}

	client, err := NewSocket(api.SockTcp | api.SockIpv4 | api.SockNonblock)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	var g errgroup.Group
	g.Go(func() error {
		_, err := pollUntilDone(client.Connect, &target)
		return err
	})

	var accepted *Socket
	for i := 0; i < 1000 && accepted == nil; i++ {
		var res api.Result
		accepted, res, err = listener.Accept(nil)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if res.Status == api.StatusRetry {
			accepted = nil
			time.Sleep(time.Millisecond)
		}
	}
	if accepted == nil {
		t.Fatal("accept never completed")
	}
	defer accepted.Close()
	if err := g.Wait(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	buf := make([]byte, 16)
	res, err := accepted.Read([]Buffer{BufferFrom(buf)})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Status != api.StatusRetry {
		t.Fatalf("idle stream read: got %v, want %v", res.Status, api.StatusRetry)
	}

	if res, err := client.Write([]Buffer{BufferFrom([]byte("ping"))}); err != nil || res.Status != api.StatusCompleted {
		t.Fatalf("write: res=%+v err=%v", res, err)
	}
	res = pollUntilComplete(t, func() (api.Result, error) {
		return accepted.Read([]Buffer{BufferFrom(buf)})
	})
	if res.N != 4 || !bytes.Equal(buf[:4], []byte("ping")) {
		t.Fatalf("read after write: res=%+v data=%q", res, buf[:res.N])
	}

	if err := client.Shutdown(api.PollWrite); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	res = pollUntilNotRetry(t, func() (api.Result, error) {
		return accepted.Read([]Buffer{BufferFrom(buf)})
	})
	if res.Status != api.StatusCompleted || res.N != 0 {
		t.Fatalf("end of stream: %+v", res)
	}
}

func pollUntilDone(op func(*Address) (api.Result, error), addr *Address) (api.Result, error) {
	var res api.Result
	var err error
	for i := 0; i < 1000; i++ {
		res, err = op(addr)
		if err != nil || res.Status != api.StatusRetry {
			return res, err
		}
		time.Sleep(time.Millisecond)
	}
	return res, nil
}
