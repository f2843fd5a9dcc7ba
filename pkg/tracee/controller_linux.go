//go:build linux
// +build linux

/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

import (
	"encoding/binary"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const wordSize = 8

// linuxController drives one tracee via PTRACE. ptrace's contract requires
// every call for a given tracee to originate from the same OS thread that
// attached to it, so the controller locks its goroutine to one OS thread
// for its entire lifetime.
type linuxController struct {
	cmd *exec.Cmd
	pid int
}

// NewController returns a Controller backed by the Linux ptrace facility.
func NewController() Controller {
	runtime.LockOSThread()
	return &linuxController{}
}

func (c *linuxController) Pid() int {
	return c.pid
}

func (c *linuxController) Spawn(argv []string) error {
	if len(argv) == 0 {
		return errors.New("spawn: empty argv")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "open /dev/null")
	}
	defer devNull.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	// os/exec's SysProcAttr field is typed against the standard library's
	// syscall package even on a build that otherwise drives ptrace through
	// golang.org/x/sys/unix below; there is no unix.SysProcAttr variant to
	// substitute here.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:    true,
		Pdeathsig: syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start tracee %q", argv[0])
	}

	c.cmd = cmd
	c.pid = cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(c.pid, &ws, 0, nil); err != nil {
		return errors.Wrap(err, "wait for initial trap stop")
	}
	if !ws.Stopped() || ws.StopSignal() != unix.SIGTRAP {
		return errors.Errorf("tracee did not reach the post-execve trap stop, status=%#x", ws)
	}

	return nil
}

func (c *linuxController) ReadWord(addr Address) (uint64, error) {
	if c.pid == 0 {
		return 0, ErrNoSuchProcess
	}

	var buf [wordSize]byte
	n, err := unix.PtracePeekText(c.pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, errors.Wrapf(err, "peek word at %s", addr)
	}
	if n != wordSize {
		return 0, errors.Errorf("peek word at %s: got %d bytes, want %d", addr, n, wordSize)
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *linuxController) WriteWord(addr Address, word uint64) error {
	if c.pid == 0 {
		return ErrNoSuchProcess
	}

	var buf [wordSize]byte
	binary.LittleEndian.PutUint64(buf[:], word)

	n, err := unix.PtracePokeText(c.pid, uintptr(addr), buf[:])
	if err != nil {
		return errors.Wrapf(err, "poke word at %s", addr)
	}
	if n != wordSize {
		return errors.Errorf("poke word at %s: wrote %d bytes, want %d", addr, n, wordSize)
	}

	return nil
}

func (c *linuxController) Regs() (Regs, error) {
	if c.pid == 0 {
		return Regs{}, ErrNoSuchProcess
	}

	var r Regs
	if err := unix.PtraceGetRegs(c.pid, &r.sys); err != nil {
		return Regs{}, errors.Wrap(err, "get registers")
	}
	return r, nil
}

func (c *linuxController) SetRegs(r Regs) error {
	if c.pid == 0 {
		return ErrNoSuchProcess
	}
	if err := unix.PtraceSetRegs(c.pid, &r.sys); err != nil {
		return errors.Wrap(err, "set registers")
	}
	return nil
}

func (c *linuxController) Continue() error {
	if c.pid == 0 {
		return ErrNoSuchProcess
	}
	if err := unix.PtraceCont(c.pid, 0); err != nil {
		return errors.Wrap(err, "continue tracee")
	}
	return nil
}

func (c *linuxController) Kill() error {
	if c.pid == 0 {
		return nil
	}

	pid := c.pid
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return errors.Wrapf(err, "kill pid %d", pid)
	}

	var ws unix.WaitStatus
	// Reap regardless of kill outcome: the tracee may already have exited.
	_, _ = unix.Wait4(pid, &ws, 0, nil)
	c.pid = 0
	c.cmd = nil

	return nil
}

func (c *linuxController) Wait() (WaitStatus, error) {
	if c.pid == 0 {
		return WaitStatus{}, ErrNoSuchProcess
	}

	var ws unix.WaitStatus
	wpid, err := unix.Wait4(c.pid, &ws, 0, nil)
	if err != nil {
		return WaitStatus{}, errors.Wrapf(err, "wait4 pid %d", c.pid)
	}

	switch {
	case ws.Exited():
		c.pid = 0
		return WaitStatus{Kind: Exited, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		c.pid = 0
		return WaitStatus{Kind: Killed, Signal: int(ws.Signal())}, nil
	case ws.Stopped():
		sig := ws.StopSignal()
		if sig == unix.SIGTRAP {
			return WaitStatus{Kind: StopTrap, Signal: int(sig)}, nil
		}
		return WaitStatus{Kind: StopSignal, Signal: int(sig)}, nil
	default:
		return WaitStatus{}, errors.Errorf("wait4 pid %d: unexpected status %#x", wpid, ws)
	}
}
