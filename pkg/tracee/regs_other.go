//go:build !linux
// +build !linux

/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

// Regs is an unimplemented stand-in on non-Linux hosts: the kernel tracing
// contract this package relies on (PTRACE_PEEKTEXT/POKETEXT, GETREGS/SETREGS,
// Wait4 status decoding) is Linux-specific.
type Regs struct{}

func (r Regs) PC() uint64    { return 0 }
func (r *Regs) SetPC(uint64) {}
