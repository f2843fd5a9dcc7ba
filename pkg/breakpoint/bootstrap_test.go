/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package breakpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

func TestBootstrapReadsOriginalBytesAndKillsDryRun(t *testing.T) {
	ctrl := tracee.NewFake()
	ctrl.Mem[0x4004e7] = 0x1122334455667788
	ctrl.Mem[0x400540] = 0xaabbccddeeff0011

	records := []Record{
		{Address: 0x4004e7, Label: "main"},
		{Address: 0x400540, Label: "unreached"},
	}

	table, err := Bootstrap(ctrl, []string{"target"}, records)
	require.Nil(t, err)
	require.NotNil(t, table)

	bp, ok := table.Get(0x4004e7)
	require.True(t, ok)
	assert.Equal(t, byte(0x88), bp.OriginalByte)
	assert.True(t, bp.Enabled)

	bp, ok = table.Get(0x400540)
	require.True(t, ok)
	assert.Equal(t, byte(0x11), bp.OriginalByte)

	assert.True(t, ctrl.Killed, "dry run child must be killed once bootstrap completes")
	assert.Equal(t, 2, table.TotalOriginal)
}

func TestBootstrapFailsOnSpawnError(t *testing.T) {
	ctrl := tracee.NewFake()
	// FakeController.ReadWord never errors, so this asserts Bootstrap
	// surfaces a Spawn failure.
	records := []Record{{Address: 0x1000, Label: "a"}}

	failing := &spawnFailsController{FakeController: ctrl}
	_, err := Bootstrap(failing, []string{"target"}, records)
	require.Error(t, err)
}

type spawnFailsController struct {
	*tracee.FakeController
}

func (s *spawnFailsController) Spawn(argv []string) error {
	return errors.New("spawn failed")
}
