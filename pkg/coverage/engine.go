/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package coverage implements the trap-handling state machine described in
// the design: arm the live breakpoint table before a run, drive the tracee
// to completion, and consume each breakpoint the tracee actually reaches.
package coverage

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/breakpoint"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/errdefs"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

// RunOutcome summarizes one attach_and_run invocation.
type RunOutcome struct {
	StartedAt time.Time
	Ended     tracee.WaitStatus
	// RunErr is non-nil when the run terminated because of a trap at an
	// address the live table doesn't recognize — fatal for this run only;
	// the campaign may continue with the next mutation.
	RunErr error
}

// Engine owns the live Table and the Controller for one campaign and drives
// the S0..S4 state machine once per attach_and_run call. It is not safe for
// concurrent use: exactly one goroutine may call AttachAndRun on an Engine
// at a time, mirroring the single controller thread the design assumes.
type Engine struct {
	Controller tracee.Controller
	Table      *breakpoint.Table
	Arch       tracee.Arch
	Counters   *Counters
}

// NewEngine returns an Engine over an already-bootstrapped table.
func NewEngine(ctrl tracee.Controller, table *breakpoint.Table, arch tracee.Arch) *Engine {
	return &Engine{
		Controller: ctrl,
		Table:      table,
		Arch:       arch,
		Counters:   NewCounters(table.TotalOriginal),
	}
}

func spliceLowByte(word uint64, b byte) uint64 {
	return (word &^ 0xff) | uint64(b)
}

// arm writes the trap opcode into every still-live, enabled breakpoint's
// low byte, leaving the higher bytes of the word untouched. OriginalByte is
// not re-read; it holds the value captured at bootstrap.
func (e *Engine) arm() error {
	for _, bp := range e.Table.Live() {
		if !bp.Enabled {
			continue
		}

		word, err := e.Controller.ReadWord(bp.Address)
		if err != nil {
			return errors.Wrapf(err, "arm breakpoint at %s", bp.Address)
		}

		if err := e.Controller.WriteWord(bp.Address, spliceLowByte(word, e.Arch.TrapOpcode)); err != nil {
			return errors.Wrapf(err, "arm breakpoint at %s", bp.Address)
		}
	}

	return nil
}

// dispatch handles one S3 (trap) stop: identify which breakpoint fired,
// restore its original byte, rewind the instruction pointer, consume it
// from the live table, and resume the tracee. When the trap does not
// correspond to a live breakpoint it returns an error wrapping
// errdefs.ErrUnexpectedStop — no safe resume is possible in that case, since
// the instruction pointer cannot be correctly adjusted. Any other error is a
// register, tracee-memory, or resume failure.
func (e *Engine) dispatch(ctx context.Context) error {
	regs, err := e.Controller.Regs()
	if err != nil {
		return errors.Wrap(err, "read registers on trap")
	}

	candidate := tracee.Address(regs.PC() - uint64(e.Arch.TrapLen))

	bp, ok := e.Table.Get(candidate)
	if !ok {
		return errors.Wrapf(errdefs.ErrUnexpectedStop, "trap at %s does not match a live breakpoint", candidate)
	}

	word, err := e.Controller.ReadWord(candidate)
	if err != nil {
		return errors.Wrapf(err, "read word at %s for restore", candidate)
	}
	if err := e.Controller.WriteWord(candidate, spliceLowByte(word, bp.OriginalByte)); err != nil {
		return errors.Wrapf(err, "restore original byte at %s", candidate)
	}

	regs.SetPC(regs.PC() - uint64(e.Arch.Rewind))
	if err := e.Controller.SetRegs(regs); err != nil {
		return errors.Wrapf(err, "rewind instruction pointer to %s", candidate)
	}

	label := bp.Label
	e.Table.Remove(candidate)
	_, percent := e.Counters.IncrementHit()

	log.G(ctx).
		WithField("percent", fmt.Sprintf("%.1f", percent)).
		Infof("Hit breakpoint %s in function %s", candidate, label)

	if err := e.Controller.Continue(); err != nil {
		return errors.Wrap(err, "continue tracee after dispatch")
	}

	return nil
}

// AttachAndRun spawns a fresh tracee, arms all still-live breakpoints,
// resumes it, and loops dispatching traps until the run ends. A returned
// error means setup, register or tracee-memory access, or resuming the
// tracee failed and the whole campaign should abort; a non-nil
// RunOutcome.RunErr means only this run ended abnormally and the next
// mutation may proceed.
func (e *Engine) AttachAndRun(ctx context.Context, argv []string) (*RunOutcome, error) {
	out := &RunOutcome{StartedAt: time.Now()}

	if err := e.Controller.Spawn(argv); err != nil {
		return nil, errors.Wrap(err, "spawn tracee")
	}

	if err := e.arm(); err != nil {
		_ = e.Controller.Kill()
		return nil, errors.Wrap(err, "arm live breakpoints")
	}

	if err := e.Controller.Continue(); err != nil {
		_ = e.Controller.Kill()
		return nil, errors.Wrap(err, "continue tracee after arming")
	}

	for {
		ws, err := e.Controller.Wait()
		if err != nil {
			_ = e.Controller.Kill()
			return nil, errors.Wrap(err, "wait for tracee")
		}

		if ws.Kind != tracee.StopTrap {
			out.Ended = ws
			if ws.Kind == tracee.StopSignal {
				if err := e.Controller.Kill(); err != nil {
					log.G(ctx).WithError(err).Warn("failed to reap tracee after non-trap stop")
				}
			}
			e.logSummary(ctx, out)
			return out, nil
		}

		if derr := e.dispatch(ctx); derr != nil {
			if !errdefs.IsUnexpectedStop(derr) {
				_ = e.Controller.Kill()
				return nil, errors.Wrap(derr, "dispatch trap")
			}
			out.RunErr = derr
			if err := e.Controller.Kill(); err != nil {
				log.G(ctx).WithError(err).Warn("failed to reap tracee after fatal-for-run dispatch error")
			}
			e.logSummary(ctx, out)
			return out, nil
		}
	}
}

// logSummary emits one end-of-run line once a tracee has terminated,
// carrying the campaign-wide coverage counters alongside how this
// particular run ended.
func (e *Engine) logSummary(ctx context.Context, out *RunOutcome) {
	hit, total, percent := e.Counters.Snapshot()
	entry := log.G(ctx).
		WithField("percent", fmt.Sprintf("%.1f", percent)).
		WithField("hit", hit).
		WithField("total_original", total).
		WithField("elapsed", time.Since(out.StartedAt))

	switch {
	case out.RunErr != nil:
		entry.WithError(out.RunErr).Warn("Run ended on an unexpected stop")
	case out.Ended.Kind == tracee.Exited:
		entry.Infof("Run exited with code %d", out.Ended.ExitCode)
	case out.Ended.Kind == tracee.Killed:
		entry.Infof("Run killed by signal %d", out.Ended.Signal)
	default:
		entry.Infof("Run stopped by signal %d", out.Ended.Signal)
	}
}
