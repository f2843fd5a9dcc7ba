/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package tracee drives a single child process through the kernel's
// process-tracing facility: spawn under trace, peek/poke words in its
// address space, read/write its register file, resume it, and wait for its
// next stop. It owns exactly one tracee at a time and is not safe for
// concurrent use — the breakpoint bootstrap (pkg/breakpoint) and the
// Coverage Engine (pkg/coverage) are its callers and drive it from a single
// goroutine, per the single-threaded controller model.
package tracee

import "github.com/pkg/errors"

// StopKind classifies the outcome of Wait.
type StopKind int

const (
	// StopTrap: the tracee is stopped having delivered a trap signal
	// (SIGTRAP), the only stop the Coverage Engine dispatches on.
	StopTrap StopKind = iota
	// StopSignal: the tracee is stopped by a signal other than SIGTRAP.
	StopSignal
	// Exited: the tracee ran to completion.
	Exited
	// Killed: the tracee was terminated by a signal and did not stop.
	Killed
)

// WaitStatus is the normalized result of a wait call.
type WaitStatus struct {
	Kind     StopKind
	Signal   int // meaningful for StopTrap, StopSignal, Killed
	ExitCode int // meaningful for Exited
}

// ErrNoSuchProcess is returned by operations that require a live tracee
// when none has been spawned yet, or the tracee has already terminated.
var ErrNoSuchProcess = errors.New("tracee: no such process")

// Controller drives one tracee across its lifetime: spawn, memory and
// register access, resume, kill, and wait. All methods are synchronous.
// Overlapping Spawn calls on the same Controller are undefined; callers
// must Kill or observe termination before spawning again.
type Controller interface {
	// Spawn forks argv[0] with argv[1:], enabling tracing before the
	// execve, and blocks until the child reaches the post-execve trap
	// stop. The child's stdout and stderr are discarded.
	Spawn(argv []string) error
	// Pid returns the current tracee's process id, or 0 if none is spawned.
	Pid() int
	// ReadWord reads one machine word at addr in the tracee.
	ReadWord(addr Address) (uint64, error)
	// WriteWord overwrites one machine word at addr in the tracee.
	WriteWord(addr Address, word uint64) error
	// Regs fetches the tracee's general-purpose register file.
	Regs() (Regs, error)
	// SetRegs stores the tracee's general-purpose register file.
	SetRegs(r Regs) error
	// Continue resumes the tracee, delivering no signal.
	Continue() error
	// Kill terminates the tracee and reaps it, if one is spawned.
	Kill() error
	// Wait blocks for the tracee's next status change.
	Wait() (WaitStatus, error)
}
