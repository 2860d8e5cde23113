// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package table accesses the chip's indexed hardware tables (VLAN, ACL, L2,
// IGMP) through the shared control/address/data register engine. The engine
// registers are common to every table kind, so all access is serialized by a
// single mutex; a transaction taken with Do sees no interleaved table access.
package table

import (
	"fmt"
	"sync"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

// Kind names one of the chip's indexed tables.
type Kind int

const (
	AclRule Kind = iota + 1
	AclAction
	Vlan4K
	L2
	IgmpGroup

	numKinds
)

var kindNames = [numKinds]string{
	AclRule:   "acl-rule",
	AclAction: "acl-action",
	Vlan4K:    "vlan-4k",
	L2:        "l2",
	IgmpGroup: "igmp-group",
}

func (k Kind) String() string {
	if k < AclRule || k >= numKinds {
		return fmt.Sprintf("table(%d)", int(k))
	}
	return kindNames[k]
}

// Width returns the table's row width in 16-bit words. Only the VLAN 4K
// row layout has been verified on hardware; the other kinds are reachable
// through the same access protocol but their payload layout is not decoded
// here, so their width is zero.
func (k Kind) Width() int {
	switch k {
	case Vlan4K:
		return 3
	case AclRule, AclAction, L2, IgmpGroup:
		return 0
	}
	return -1
}

const (
	controlReg smi.Addr = 0x0500
	addressReg smi.Addr = 0x0501
	lutReg     smi.Addr = 0x0502

	writeDataBase smi.Addr = 0x0510 // up to 0x0519
	readDataBase  smi.Addr = 0x0520 // up to 0x0529

	// controlReg [2:0] table, [3] 0=read 1=write, [7:4] method,
	// [11:8] source port mask.
	controlTableMask   uint16 = 0x0007
	controlCommandMask uint16 = 0x0008

	addressMask uint16 = 0x3fff

	lutBusy uint16 = 1 << 13

	// The 10th data register of a 10-word row uses only its low 4 bits.
	// Taken from the vendor sources; not verified on hardware.
	lastDataRegMask uint16 = 0x000f
)

// Engine serializes access to the shared table registers.
type Engine struct {
	mu   sync.Mutex
	conn smi.Conn
}

func New(conn smi.Conn) *Engine { return &Engine{conn: conn} }

// Tx is a table transaction. It is only valid inside the Do callback that
// produced it.
type Tx struct {
	e *Engine
}

// Do runs f with the table mutex held, so that a read-modify-write of a row
// cannot interleave with another caller's access.
func (e *Engine) Do(f func(tx Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(Tx{e: e})
}

// Read fetches row index of the given table into row, which must have
// exactly the table's width.
func (e *Engine) Read(kind Kind, index uint16, row []uint16) error {
	return e.Do(func(tx Tx) error { return tx.Read(kind, index, row) })
}

// Write stores row at index of the given table; row must have exactly the
// table's width.
func (e *Engine) Write(kind Kind, index uint16, row []uint16) error {
	return e.Do(func(tx Tx) error { return tx.Write(kind, index, row) })
}

func check(kind Kind, index uint16, row []uint16) error {
	w := kind.Width()
	if w < 0 {
		return fmt.Errorf("%v: %w", kind, smi.ErrInvalidArgument)
	}
	if len(row) != w {
		return fmt.Errorf("%v row is %d words, not %d: %w",
			kind, w, len(row), smi.ErrInvalidArgument)
	}
	if index&^addressMask != 0 {
		return fmt.Errorf("%v index %d: %w",
			kind, index, smi.ErrInvalidArgument)
	}
	return nil
}

func (tx Tx) Read(kind Kind, index uint16, row []uint16) error {
	if err := check(kind, index, row); err != nil {
		return err
	}
	c := tx.e.conn

	// The vendor protocol pre-checks the busy flag before a read; writes
	// skip the pre-check.
	if err := smi.PollClear(c, lutReg, lutBusy); err != nil {
		return err
	}
	if err := tx.command(kind, index, false); err != nil {
		return err
	}
	if err := smi.PollClear(c, lutReg, lutBusy); err != nil {
		return err
	}
	if err := smi.BulkRead(c, readDataBase, row); err != nil {
		return err
	}
	if len(row) == 10 {
		row[9] &= lastDataRegMask
	}
	return nil
}

func (tx Tx) Write(kind Kind, index uint16, row []uint16) error {
	if err := check(kind, index, row); err != nil {
		return err
	}
	c := tx.e.conn

	n := len(row)
	if n == 10 {
		n = 9
	}
	if err := smi.BulkWrite(c, writeDataBase, row[:n]); err != nil {
		return err
	}
	if len(row) == 10 {
		err := c.Write(writeDataBase+9, row[9]&lastDataRegMask)
		if err != nil {
			return err
		}
	}
	return tx.command(kind, index, true)
}

func (tx Tx) command(kind Kind, index uint16, write bool) error {
	c := tx.e.conn
	if err := c.Write(addressReg, index&addressMask); err != nil {
		return err
	}
	// The method and source-port-mask fields share the register and must
	// survive; the register triggers on write, so the write must not be
	// elided even when the merged value is unchanged.
	v, err := c.Read(controlReg)
	if err != nil {
		return err
	}
	v &^= controlTableMask | controlCommandMask
	v |= uint16(kind) & controlTableMask
	if write {
		v |= controlCommandMask
	}
	return c.Write(controlReg, v)
}
