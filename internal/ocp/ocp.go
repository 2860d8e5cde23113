// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ocp accesses the per-PHY registers of the integrated gigabit PHYs.
// The PHYs live in the chip's OCP (on-chip peripheral) address space and are
// reached through an indirect access engine: an address-translation register
// pair, a data register and a busy-polled command register.
package ocp

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	NumPhys = 8
	NumRegs = 32
)

const (
	ctrlReg      smi.Addr = 0x1f00
	statusReg    smi.Addr = 0x1f01
	addressReg   smi.Addr = 0x1f02
	writeDataReg smi.Addr = 0x1f03
	readDataReg  smi.Addr = 0x1f04

	// ctrlReg [0] execute, [1] 0=read 1=write
	ctrlCmd   uint16 = 1 << 0
	ctrlWrite uint16 = 1 << 1

	// addressReg [4:0] ocpAddr[5:1], [7:5] phy, [11:8] ocpAddr[9:6],
	// ored with the PHY base.
	phyBase uint16 = 0x2000

	// OCP address prefix register; the upper 6 bits of the OCP address
	// go in bits [11:6].
	ocpPrefixReg  smi.Addr = 0x1d15
	ocpPrefixMask uint16   = 0x0fc0

	// OCP addresses of standard PHY registers 0..31 start here.
	phyRegOcpBase uint32 = 0xa400
)

// Engine executes indirect reads and writes of numbered PHY registers.
// Each operation runs under the bus exclusive-access scope for the whole
// prepare/command/poll sequence.
type Engine struct {
	conn smi.Conn
}

func New(conn smi.Conn) *Engine { return &Engine{conn: conn} }

// Read returns the value of PHY register reg of PHY phy.
func (e *Engine) Read(phy, reg int) (uint16, error) {
	if err := checkArgs(phy, reg); err != nil {
		return 0, err
	}
	ocpAddr := phyRegOcpBase + uint32(reg)*2

	e.conn.Lock()
	defer e.conn.Unlock()

	if err := e.pollBusy(); err != nil {
		return 0, err
	}
	if err := e.prepare(phy, ocpAddr); err != nil {
		return 0, err
	}
	if err := e.conn.Write(ctrlReg, ctrlCmd); err != nil {
		return 0, err
	}
	if err := e.pollBusy(); err != nil {
		return 0, err
	}
	return e.conn.Read(readDataReg)
}

// Write sets PHY register reg of PHY phy to val.
func (e *Engine) Write(phy, reg int, val uint16) error {
	if err := checkArgs(phy, reg); err != nil {
		return err
	}
	ocpAddr := phyRegOcpBase + uint32(reg)*2

	e.conn.Lock()
	defer e.conn.Unlock()

	if err := e.pollBusy(); err != nil {
		return err
	}
	if err := e.prepare(phy, ocpAddr); err != nil {
		return err
	}
	if err := e.conn.Write(writeDataReg, val); err != nil {
		return err
	}
	if err := e.conn.Write(ctrlReg, ctrlCmd|ctrlWrite); err != nil {
		return err
	}
	return e.pollBusy()
}

func checkArgs(phy, reg int) error {
	if phy < 0 || phy >= NumPhys {
		return fmt.Errorf("phy %d: %w", phy, smi.ErrInvalidArgument)
	}
	if reg < 0 || reg >= NumRegs {
		return fmt.Errorf("phy register %d: %w", reg, smi.ErrInvalidArgument)
	}
	return nil
}

// The status register reads nonzero while an indirect access is in flight.
func (e *Engine) pollBusy() error {
	return smi.PollClear(e.conn, statusReg, 0xffff)
}

// prepare programs the OCP address prefix and the composite address
// register for the given PHY and OCP address.
func (e *Engine) prepare(phy int, ocpAddr uint32) error {
	prefix := uint16(ocpAddr>>10) << 6
	err := smi.UpdateBits(e.conn, ocpPrefixReg, ocpPrefixMask, prefix)
	if err != nil {
		return err
	}
	v := phyBase |
		uint16(phy)<<5 |
		uint16(ocpAddr>>1)&0x1f |
		(uint16(ocpAddr>>6)&0xf)<<8
	return e.conn.Write(addressReg, v)
}
