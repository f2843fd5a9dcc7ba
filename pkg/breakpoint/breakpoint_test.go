/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package breakpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

func TestParseFileValid(t *testing.T) {
	records, err := ParseFile(strings.NewReader("0x4004e7 main\n0x400540 unreached\n"))
	require.Nil(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tracee.Address(0x4004e7), records[0].Address)
	assert.Equal(t, "main", records[0].Label)
	assert.Equal(t, tracee.Address(0x400540), records[1].Address)
	assert.Equal(t, "unreached", records[1].Label)
}

func TestParseFileRejectsBlankLine(t *testing.T) {
	_, err := ParseFile(strings.NewReader("0x4004e7 main\n\n0x400540 unreached\n"))
	require.Error(t, err)
}

func TestParseFileRejectsFieldsReversed(t *testing.T) {
	// Scenario D: fields reversed is a malformed line, fatal before any spawn.
	_, err := ParseFile(strings.NewReader("main 0x4004e7\n"))
	require.Error(t, err)
}

func TestParseFileRejectsMissingPrefix(t *testing.T) {
	_, err := ParseFile(strings.NewReader("4004e7 main\n"))
	require.Error(t, err)
}

func TestParseFileRejectsDuplicateAddress(t *testing.T) {
	_, err := ParseFile(strings.NewReader("0x4004e7 main\n0x4004e7 again\n"))
	require.Error(t, err)
}

func TestParseFileRejectsEmptyInput(t *testing.T) {
	_, err := ParseFile(strings.NewReader(""))
	require.Error(t, err)
}

func TestTableAddGetRemove(t *testing.T) {
	table := NewTable()
	table.Add(Breakpoint{Address: 0x1000, OriginalByte: 0xAB, Label: "a", Enabled: true})
	table.Add(Breakpoint{Address: 0x2000, OriginalByte: 0xCD, Label: "b", Enabled: true})

	assert.Equal(t, 2, table.TotalOriginal)
	assert.Equal(t, 2, table.LiveCount())

	bp, ok := table.Get(0x1000)
	require.True(t, ok)
	assert.Equal(t, "a", bp.Label)

	table.Remove(0x1000)
	assert.Equal(t, 1, table.LiveCount())
	assert.Equal(t, 2, table.TotalOriginal, "TotalOriginal must stay stable across consumption")

	_, ok = table.Get(0x1000)
	assert.False(t, ok)
}

func TestTableAddPanicsOnDuplicate(t *testing.T) {
	table := NewTable()
	table.Add(Breakpoint{Address: 0x1000, Label: "a"})
	assert.Panics(t, func() {
		table.Add(Breakpoint{Address: 0x1000, Label: "a-again"})
	})
}

func TestTableLivePreservesInsertionOrder(t *testing.T) {
	table := NewTable()
	table.Add(Breakpoint{Address: 0x3000, Label: "c"})
	table.Add(Breakpoint{Address: 0x1000, Label: "a"})
	table.Add(Breakpoint{Address: 0x2000, Label: "b"})

	live := table.Live()
	require.Len(t, live, 3)
	assert.Equal(t, tracee.Address(0x3000), live[0].Address)
	assert.Equal(t, tracee.Address(0x1000), live[1].Address)
	assert.Equal(t, tracee.Address(0x2000), live[2].Address)
}
