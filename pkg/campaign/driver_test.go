/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package campaign

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.Nil(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDriverRunRecordsCrashOnSignalDeath(t *testing.T) {
	dir := t.TempDir()
	bpFile := writeTempFile(t, dir, "breakpoints.txt", "0x1000 main\n")
	seedFile := writeTempFile(t, dir, "corpus.jpg", "\xff\xd8\xff\xe0 payload of some length")

	ctrl := tracee.NewFake()
	ctrl.Mem[0x1000] = 0x1122334455667700

	ctx := context.Background()
	cfg := Config{
		TargetPath:      "djpeg",
		BreakpointsFile: bpFile,
		SeedPath:        seedFile,
		WorkingPath:     filepath.Join(dir, "input_corpus.jpg"),
		Seed:            0x1337fe44,
		MaxRuns:         3,
	}

	d, err := New(ctx, cfg, ctrl, filepath.Join(dir, "crash_dumps"))
	require.Nil(t, err)
	assert.True(t, ctrl.Killed, "dry run child must be reaped after bootstrap")

	// First run: trap at main, then signal death. main is consumed there,
	// so the second and third runs end in signal death with no trap.
	ctrl.WaitScript = []tracee.WaitStatus{
		{Kind: tracee.StopTrap},
		{Kind: tracee.Killed, Signal: 11},
		{Kind: tracee.Killed, Signal: 11},
		{Kind: tracee.Killed, Signal: 11},
	}
	var pc tracee.Regs
	pc.SetPC(0x1001)
	ctrl.Registers = pc

	require.Nil(t, d.Run(ctx))
	assert.Equal(t, uint64(3), d.RunCount())

	entries, err := os.ReadDir(filepath.Join(dir, "crash_dumps"))
	require.Nil(t, err)
	assert.NotEmpty(t, entries)
}

func TestDriverRunStopsAtMaxRuns(t *testing.T) {
	dir := t.TempDir()
	bpFile := writeTempFile(t, dir, "breakpoints.txt", "0x2000 main\n")
	seedFile := writeTempFile(t, dir, "corpus.jpg", "\xff\xd8\xff\xe0 payload")

	ctrl := tracee.NewFake()
	ctrl.Mem[0x2000] = 0x1122334455667700

	ctx := context.Background()
	cfg := Config{
		TargetPath:      "djpeg",
		BreakpointsFile: bpFile,
		SeedPath:        seedFile,
		WorkingPath:     filepath.Join(dir, "input_corpus.jpg"),
		Seed:            1,
		MaxRuns:         2,
	}

	d, err := New(ctx, cfg, ctrl, filepath.Join(dir, "crash_dumps"))
	require.Nil(t, err)

	ctrl.WaitScript = []tracee.WaitStatus{
		{Kind: tracee.Exited, ExitCode: 0},
		{Kind: tracee.Exited, ExitCode: 0},
	}

	require.Nil(t, d.Run(ctx))
	assert.Equal(t, uint64(2), d.RunCount())
}
