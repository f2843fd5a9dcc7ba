/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs classifies the campaign-level error taxonomy: setup
// failures and tracee-memory failures are fatal to the whole campaign,
// unexpected stops are fatal to only the current run, and a tracee exit is
// not an error at all.
package errdefs

import "github.com/pkg/errors"

var (
	// ErrSetup covers breakpoint file problems, failure to spawn a child, or
	// a child that never reaches its initial trap. Fatal — abort the
	// campaign.
	ErrSetup = errors.New("setup failure")
	// ErrTraceeMemory covers a read or write at a breakpoint address
	// failing. Fatal — the live table may be inconsistent with the tracee's
	// actual address space; abort the campaign.
	ErrTraceeMemory = errors.New("tracee memory access failure")
	// ErrUnexpectedStop covers a wait that returns a stop which is not a
	// trap, or a trap at an address absent from the live table. Fatal for
	// the current run only.
	ErrUnexpectedStop = errors.New("unexpected tracee stop")
	// ErrAlreadyExists is returned when a record already occupies a key a
	// caller expected to be free.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a record does not exist under a key a
	// caller expected to be present.
	ErrNotFound = errors.New("not found")
)

// IsSetup returns true if err is, or wraps, ErrSetup.
func IsSetup(err error) bool {
	return errors.Is(err, ErrSetup)
}

// IsTraceeMemory returns true if err is, or wraps, ErrTraceeMemory.
func IsTraceeMemory(err error) bool {
	return errors.Is(err, ErrTraceeMemory)
}

// IsUnexpectedStop returns true if err is, or wraps, ErrUnexpectedStop.
func IsUnexpectedStop(err error) bool {
	return errors.Is(err, ErrUnexpectedStop)
}

// IsAlreadyExists returns true if err is, or wraps, ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound returns true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
