//go:build !linux
// +build !linux

/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracee

import "github.com/pkg/errors"

var errUnsupported = errors.New("tracee: ptrace control channel is only supported on linux")

type unsupportedController struct{}

// NewController returns a Controller stub on hosts without the Linux
// ptrace facility this package depends on.
func NewController() Controller {
	return &unsupportedController{}
}

func (c *unsupportedController) Pid() int                  { return 0 }
func (c *unsupportedController) Spawn(argv []string) error { return errUnsupported }
func (c *unsupportedController) ReadWord(addr Address) (uint64, error) {
	return 0, errUnsupported
}
func (c *unsupportedController) WriteWord(addr Address, word uint64) error {
	return errUnsupported
}
func (c *unsupportedController) Regs() (Regs, error)      { return Regs{}, errUnsupported }
func (c *unsupportedController) SetRegs(r Regs) error     { return errUnsupported }
func (c *unsupportedController) Continue() error          { return errUnsupported }
func (c *unsupportedController) Kill() error              { return nil }
func (c *unsupportedController) Wait() (WaitStatus, error) { return WaitStatus{}, errUnsupported }
