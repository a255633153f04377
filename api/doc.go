// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the platform-neutral contract of hioload-aio: the
// four-way Result/Status outcome model shared by readiness-based and
// completion-based backends, the bitmask flag sets used to configure pollers
// and sockets, and the error taxonomy for setup and registration failures.
//
// Steady-state I/O never fails through Go errors alone: every transfer
// operation reports a Result whose Status folds would-block, partial progress
// and failure into one enumeration, with the specific failure cause carried
// out-of-band as an error value.
package api
