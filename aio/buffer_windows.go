//go:build windows

// File: aio/buffer_windows.go
// Author: momentics <momentics@gmail.com>
//
// Buffer encodes a byte region as a WSABUF, the layout the overlapped
// WSASend/WSARecv family consumes directly.

package aio

import (
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

// maxBufferLen is the largest length the descriptor's 32-bit count field
// admits. Longer slices are truncated to it, a documented precision loss
// rather than an error.
const maxBufferLen = math.MaxUint32

// Buffer is a backend-encoded descriptor of a byte region.
type Buffer struct {
	wsa windows.WSABuf
}

// BufferFrom encodes b. The round trip BufferFrom(b).Bytes() preserves
// length and content for any b no longer than maxBufferLen.
func BufferFrom(b []byte) Buffer {
	var wsa windows.WSABuf
	if len(b) > 0 {
		wsa.Buf = &b[0]
	}
	if uint64(len(b)) > maxBufferLen {
		wsa.Len = ^uint32(0)
	} else {
		wsa.Len = uint32(len(b))
	}
	return Buffer{wsa: wsa}
}

// Bytes returns the described region as a slice. The returned slice aliases
// the memory given to BufferFrom.
func (b Buffer) Bytes() []byte {
	if b.wsa.Buf == nil {
		return nil
	}
	return unsafe.Slice(b.wsa.Buf, b.wsa.Len)
}

// Len reports the described byte count.
func (b Buffer) Len() int { return int(b.wsa.Len) }

// wsaBufs exposes a buffer set as the contiguous WSABUF array the
// overlapped calls take.
func wsaBufs(bufs []Buffer) []windows.WSABuf {
	out := make([]windows.WSABuf, len(bufs))
	for i, b := range bufs {
		out[i] = b.wsa
	}
	return out
}
