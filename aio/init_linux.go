//go:build linux

// File: aio/init_linux.go
// Author: momentics <momentics@gmail.com>

package aio

// The Linux backend needs no kernel-level setup; lifecycle tracking in
// init.go is the whole story.

func platformInit() error { return nil }

func platformCleanup() error { return nil }
