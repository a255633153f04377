//go:build linux

package aio

import (
	"os"
	"testing"

	"github.com/momentics/hioload-aio/api"
)

func TestMain(m *testing.M) {
	if err := Initialize(); err != nil {
		panic(err)
	}
	code := m.Run()
	if err := Cleanup(); err != nil {
		panic(err)
	}
	os.Exit(code)
}

func TestDoubleInitializeFails(t *testing.T) {
	if err := Initialize(); err != api.ErrUnexpected {
		t.Fatalf("second Initialize: got %v, want %v", err, api.ErrUnexpected)
	}
}

func TestUseBeforeInitializeFails(t *testing.T) {
	// Tear the subsystem down, verify factories refuse to run, restore.
	if err := Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	defer func() {
		if err := Initialize(); err != nil {
			t.Fatalf("re-initialize: %v", err)
		}
	}()

	if _, err := NewSocket(api.SockTcp | api.SockIpv4); err != api.ErrNotInitialized {
		t.Errorf("NewSocket: got %v, want %v", err, api.ErrNotInitialized)
	}
	if _, err := NewEventPoller(); err != api.ErrNotInitialized {
		t.Errorf("NewEventPoller: got %v, want %v", err, api.ErrNotInitialized)
	}
	if err := Cleanup(); err != api.ErrUnexpected {
		t.Errorf("second Cleanup: got %v, want %v", err, api.ErrUnexpected)
	}
}
