//go:build linux
// +build linux

/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

import "golang.org/x/sys/unix"

// Regs wraps the kernel's general-purpose register file for the tracee.
type Regs struct {
	sys unix.PtraceRegs
}

// PC returns the instruction pointer.
func (r Regs) PC() uint64 { return r.sys.Rip }

// SetPC overwrites the instruction pointer.
func (r *Regs) SetPC(pc uint64) { r.sys.Rip = pc }
