/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package breakpoint

import (
	"github.com/pkg/errors"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

// Bootstrap populates a Table exactly once per campaign. It spawns the
// target under trace, relying on Controller.Spawn to block until the
// post-execve trap, then reads the original byte at each record's address
// from that live, pristine address space. The dry-run child is killed once
// every address has been read; the breakpoint file itself is never
// consulted again afterwards.
func Bootstrap(ctrl tracee.Controller, argv []string, records []Record) (*Table, error) {
	if err := ctrl.Spawn(argv); err != nil {
		return nil, errors.Wrap(err, "bootstrap dry run: spawn target")
	}
	defer func() {
		_ = ctrl.Kill()
	}()

	table := NewTable()
	for _, rec := range records {
		word, err := ctrl.ReadWord(rec.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "bootstrap: read original byte at %s", rec.Address)
		}

		table.Add(Breakpoint{
			Address:      rec.Address,
			OriginalByte: byte(word & 0xff),
			Label:        rec.Label,
			Enabled:      true,
		})
	}

	return table, nil
}
