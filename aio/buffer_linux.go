//go:build linux

// File: aio/buffer_linux.go
// Author: momentics <momentics@gmail.com>
//
// Buffer encodes a byte region as a struct iovec, the layout readv/writev
// and the sendmsg/recvmsg family consume directly.

package aio

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxBufferLen is the largest length the descriptor's count field admits.
// Longer slices are truncated to it, a documented precision loss rather
// than an error.
const maxBufferLen = int(^uint(0) >> 1)

// Buffer is a backend-encoded descriptor of a byte region.
type Buffer struct {
	iov unix.Iovec
}

// BufferFrom encodes b. The round trip BufferFrom(b).Bytes() preserves
// length and content for any b no longer than maxBufferLen.
func BufferFrom(b []byte) Buffer {
	var iov unix.Iovec
	if len(b) > 0 {
		iov.Base = &b[0]
	}
	n := len(b)
	if n > maxBufferLen {
		n = maxBufferLen
	}
	iov.SetLen(n)
	return Buffer{iov: iov}
}

// Bytes returns the described region as a slice. The returned slice aliases
// the memory given to BufferFrom.
func (b Buffer) Bytes() []byte {
	if b.iov.Base == nil {
		return nil
	}
	return unsafe.Slice(b.iov.Base, b.iov.Len)
}

// Len reports the described byte count.
func (b Buffer) Len() int { return int(b.iov.Len) }

// byteViews exposes a buffer set as the [][]byte shape the x/sys vectored
// calls take.
func byteViews(bufs []Buffer) [][]byte {
	views := make([][]byte, len(bufs))
	for i, b := range bufs {
		views[i] = b.Bytes()
	}
	return views
}
