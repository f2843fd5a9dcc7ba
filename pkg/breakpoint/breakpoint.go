/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package breakpoint holds the in-memory table of software breakpoints
// instrumented into a target's address space: one entry per basic block the
// fuzzing campaign wants to observe.
package breakpoint

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

// Breakpoint is one instrumented basic block.
//
// Invariant: at any given moment either (a) the low byte at Address in the
// tracee equals the architecture's trap opcode and OriginalByte holds the
// prior value, or (b) the low byte equals OriginalByte and the breakpoint is
// either not yet armed or already consumed. OriginalByte is never the trap
// opcode.
type Breakpoint struct {
	Address      tracee.Address
	OriginalByte byte
	Label        string
	Enabled      bool
}

// Table is the ordered, address-keyed collection of Breakpoints for one
// campaign. Entries are removed from the live set when consumed during a
// run; TotalOriginal retains the count present right after bootstrap so the
// coverage percentage stays stable across runs.
type Table struct {
	order         []tracee.Address
	byAddr        map[tracee.Address]*Breakpoint
	TotalOriginal int
}

// NewTable returns an empty breakpoint table.
func NewTable() *Table {
	return &Table{byAddr: make(map[tracee.Address]*Breakpoint)}
}

// Add appends a breakpoint, preserving input order. Addresses must be
// unique; Add panics on a duplicate since that indicates a malformed
// breakpoint file that should have been rejected by the parser.
func (t *Table) Add(bp Breakpoint) {
	if _, exists := t.byAddr[bp.Address]; exists {
		panic("breakpoint: duplicate address " + bp.Address.String())
	}
	cp := bp
	t.byAddr[bp.Address] = &cp
	t.order = append(t.order, bp.Address)
	t.TotalOriginal++
}

// Get returns the live breakpoint at addr, if any.
func (t *Table) Get(addr tracee.Address) (*Breakpoint, bool) {
	bp, ok := t.byAddr[addr]
	return bp, ok
}

// Remove consumes (deletes) the live entry at addr.
func (t *Table) Remove(addr tracee.Address) {
	delete(t.byAddr, addr)
}

// Live returns the still-live breakpoints in insertion order. The returned
// slice is a snapshot; mutating the table afterwards does not affect it.
func (t *Table) Live() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(t.byAddr))
	for _, addr := range t.order {
		if bp, ok := t.byAddr[addr]; ok {
			out = append(out, bp)
		}
	}
	return out
}

// LiveCount returns the number of not-yet-consumed breakpoints.
func (t *Table) LiveCount() int {
	return len(t.byAddr)
}

// Record describes one line parsed from a breakpoint file, before the
// original byte at Address is known. Bootstrap (bootstrap.go, called from
// pkg/campaign) reads the original byte from a live dry-run child and turns
// each Record into an enabled Breakpoint.
type Record struct {
	Address tracee.Address
	Label   string
}

// ParseFile reads the breakpoint file format: one record per line, two
// whitespace-separated fields — a "0x"-prefixed hexadecimal address and a
// whitespace-free label token. Blank lines and malformed lines are fatal;
// there is no silent skipping.
func ParseFile(r io.Reader) ([]Record, error) {
	var records []Record
	seen := make(map[tracee.Address]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			return nil, errors.Errorf("breakpoint file: line %d is blank", lineNo)
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("breakpoint file: line %d: want 2 fields, got %d", lineNo, len(fields))
		}

		addrField, label := fields[0], fields[1]
		if !strings.HasPrefix(addrField, "0x") && !strings.HasPrefix(addrField, "0X") {
			return nil, errors.Errorf("breakpoint file: line %d: address %q missing 0x prefix", lineNo, addrField)
		}

		hexDigits := addrField[2:]
		if len(hexDigits) == 0 || len(hexDigits) > 16 {
			return nil, errors.Errorf("breakpoint file: line %d: address %q has invalid length", lineNo, addrField)
		}

		val, err := strconv.ParseUint(hexDigits, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "breakpoint file: line %d: address %q", lineNo, addrField)
		}

		addr := tracee.Address(val)
		if seen[addr] {
			return nil, errors.Errorf("breakpoint file: line %d: duplicate address %s", lineNo, addr)
		}
		seen[addr] = true

		records = append(records, Record{Address: addr, Label: label})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "breakpoint file: read")
	}
	if len(records) == 0 {
		return nil, errors.New("breakpoint file: no records")
	}

	return records, nil
}
