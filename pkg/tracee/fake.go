/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

// FakeController is an in-memory stand-in for a real ptrace Controller. It
// lets the Coverage Engine's state machine be exercised deterministically
// without an actual traced child, matching the spec's Scenarios A-F. Tests
// drive it by pre-loading Mem with the bytes a real tracee would hold at
// each breakpoint address and queuing the stops a real Wait would report in
// WaitScript; each Wait call serves the next queued status.
type FakeController struct {
	Mem        map[Address]uint64
	WaitScript []WaitStatus
	Registers  Regs
	Pid_       int
	Spawned    bool
	Killed     bool
	SpawnArgv  []string
}

// NewFake returns a FakeController with an empty address space.
func NewFake() *FakeController {
	return &FakeController{Mem: make(map[Address]uint64)}
}

func (f *FakeController) Pid() int { return f.Pid_ }

func (f *FakeController) Spawn(argv []string) error {
	f.Spawned = true
	f.SpawnArgv = argv
	if f.Pid_ == 0 {
		f.Pid_ = 4242
	}
	return nil
}

func (f *FakeController) ReadWord(addr Address) (uint64, error) {
	return f.Mem[addr], nil
}

func (f *FakeController) WriteWord(addr Address, word uint64) error {
	f.Mem[addr] = word
	return nil
}

func (f *FakeController) Regs() (Regs, error) { return f.Registers, nil }

func (f *FakeController) SetRegs(r Regs) error {
	f.Registers = r
	return nil
}

func (f *FakeController) Continue() error {
	return nil
}

func (f *FakeController) Kill() error {
	f.Killed = true
	f.Pid_ = 0
	return nil
}

// Wait pops the next status from WaitScript and returns ErrNoSuchProcess
// once the script is exhausted.
func (f *FakeController) Wait() (WaitStatus, error) {
	if len(f.WaitScript) == 0 {
		return WaitStatus{}, ErrNoSuchProcess
	}
	next := f.WaitScript[0]
	f.WaitScript = f.WaitScript[1:]
	if next.Kind == Exited || next.Kind == Killed {
		f.Pid_ = 0
	}
	return next, nil
}
