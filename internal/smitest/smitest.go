// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smitest is an in-memory register file that stands in for the
// switch during tests. Writes to the engine trigger registers behave like
// the chip: the indirect PHY engine moves data between the data registers
// and a per-PHY register bank, the table engine moves rows in and out of a
// row store, and the MIB engine loads the counter line for a requested
// SRAM address.
package smitest

import (
	"sync"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	phyCtrlReg      smi.Addr = 0x1f00
	phyStatusReg    smi.Addr = 0x1f01
	phyAddressReg   smi.Addr = 0x1f02
	phyWriteDataReg smi.Addr = 0x1f03
	phyReadDataReg  smi.Addr = 0x1f04
	ocpPrefixReg    smi.Addr = 0x1d15

	phyCtrlCmd   uint16 = 1 << 0
	phyCtrlWrite uint16 = 1 << 1

	phyRegOcpBase = 0xa400

	tableCtrlReg  smi.Addr = 0x0500
	tableAddrReg  smi.Addr = 0x0501
	tableWriteReg smi.Addr = 0x0510
	tableReadReg  smi.Addr = 0x0520

	tableRowWords = 10

	mibCounterBase smi.Addr = 0x1000
	mibAddressReg  smi.Addr = 0x1004
	mibCtrl0Reg    smi.Addr = 0x1005

	mibPortStride = 0x7c

	chipResetReg smi.Addr = 0x1322

	irqStatusReg   smi.Addr = 0x1102
	linkdownIndReg smi.Addr = 0x1106
	linkupIndReg   smi.Addr = 0x1107
)

// Conn implements smi.Conn against in-memory state.
type Conn struct {
	mu sync.Mutex

	regs    map[smi.Addr]uint16
	phyRegs map[int]map[int]uint16
	rows    map[uint32][tableRowWords]uint16
	mibMem  map[int][]uint16

	// Stuck pins a register to a value on every read, e.g. to hold a
	// busy flag set forever.
	Stuck map[smi.Addr]uint16

	// ReadErr and WriteErr, when non-nil, may fail an access.
	ReadErr  func(a smi.Addr) error
	WriteErr func(a smi.Addr) error

	// MibFault makes the next counter fetch report the fault flag.
	MibFault bool

	reads, writes int
	lockDepth     int
}

func New() *Conn {
	return &Conn{
		regs:    make(map[smi.Addr]uint16),
		phyRegs: make(map[int]map[int]uint16),
		rows:    make(map[uint32][tableRowWords]uint16),
		mibMem:  make(map[int][]uint16),
		Stuck:   make(map[smi.Addr]uint16),
	}
}

func (c *Conn) Lock() {
	c.mu.Lock()
	c.lockDepth++
	c.mu.Unlock()
}

func (c *Conn) Unlock() {
	c.mu.Lock()
	c.lockDepth--
	c.mu.Unlock()
}

// Ops reports how many reads and writes have hit the register file.
func (c *Conn) Ops() (reads, writes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads, c.writes
}

// LockDepth reports the current Lock/Unlock nesting; zero when balanced.
func (c *Conn) LockDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockDepth
}

func (c *Conn) Read(a smi.Addr) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.ReadErr != nil {
		if err := c.ReadErr(a); err != nil {
			return 0, err
		}
	}
	if v, ok := c.Stuck[a]; ok {
		return v, nil
	}
	return c.regs[a], nil
}

func (c *Conn) Write(a smi.Addr, v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if c.WriteErr != nil {
		if err := c.WriteErr(a); err != nil {
			return err
		}
	}
	switch a {
	case irqStatusReg, linkupIndReg, linkdownIndReg:
		// Write 1 to clear.
		c.regs[a] &^= v
		return nil
	case chipResetReg:
		// Reset completes instantly; the busy bit never reads back.
		c.regs[a] = 0
		return nil
	}

	c.regs[a] = v

	switch a {
	case phyCtrlReg:
		if v&phyCtrlCmd != 0 {
			c.phyCommand(v&phyCtrlWrite != 0)
		}
	case tableCtrlReg:
		c.tableCommand(v)
	case mibAddressReg:
		c.mibFetch(v)
	}
	return nil
}

// Poke sets a plain register without counting as a transport write.
func (c *Conn) Poke(a smi.Addr, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[a] = v
}

// Peek reads a plain register without counting as a transport read.
func (c *Conn) Peek(a smi.Addr) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[a]
}

// Phy returns the backing value of a PHY register.
func (c *Conn) Phy(phy, reg int) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phyRegs[phy][reg]
}

// SetPhy sets the backing value of a PHY register.
func (c *Conn) SetPhy(phy, reg int, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.phyRegs[phy]
	if b == nil {
		b = make(map[int]uint16)
		c.phyRegs[phy] = b
	}
	b[reg] = v
}

// Row returns the stored table row for (kind, index).
func (c *Conn) Row(kind int, index uint16) []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := c.rows[rowKey(kind, index)]
	return row[:]
}

// SetRow seeds a table row.
func (c *Conn) SetRow(kind int, index uint16, words []uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var row [tableRowWords]uint16
	copy(row[:], words)
	c.rows[rowKey(kind, index)] = row
}

// SetCounter seeds a MIB counter value at a word offset of a port's SRAM,
// least significant word lowest.
func (c *Conn) SetCounter(port, offset, words int, val uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mem := c.mibMem[port]
	if mem == nil {
		mem = make([]uint16, mibPortStride)
		c.mibMem[port] = mem
	}
	for i := 0; i < words; i++ {
		mem[offset+i] = uint16(val >> (16 * i))
	}
}

func rowKey(kind int, index uint16) uint32 {
	return uint32(kind)<<16 | uint32(index)
}

// phyCommand decodes the composite address and OCP prefix back into a
// (phy, register) pair and moves the data word.
func (c *Conn) phyCommand(write bool) {
	addr := c.regs[phyAddressReg]
	prefix := (c.regs[ocpPrefixReg] >> 6) & 0x3f

	ocp := uint32(prefix)<<10 |
		uint32(addr>>8&0xf)<<6 |
		uint32(addr&0x1f)<<1
	phy := int(addr >> 5 & 0x7)

	if ocp < phyRegOcpBase {
		return
	}
	reg := int(ocp-phyRegOcpBase) / 2

	b := c.phyRegs[phy]
	if b == nil {
		b = make(map[int]uint16)
		c.phyRegs[phy] = b
	}
	if write {
		b[reg] = c.regs[phyWriteDataReg]
	} else {
		c.regs[phyReadDataReg] = b[reg]
	}
}

func (c *Conn) tableCommand(ctrl uint16) {
	kind := int(ctrl & 0x7)
	index := c.regs[tableAddrReg] & 0x3fff
	key := rowKey(kind, index)

	if ctrl&0x8 != 0 {
		var row [tableRowWords]uint16
		for i := 0; i < tableRowWords; i++ {
			row[i] = c.regs[tableWriteReg+smi.Addr(i)]
		}
		c.rows[key] = row
	} else {
		row := c.rows[key]
		for i := 0; i < tableRowWords; i++ {
			c.regs[tableReadReg+smi.Addr(i)] = row[i]
		}
	}
}

// mibFetch loads the 4-word counter line addressed by a longword SRAM
// address into the counter registers.
func (c *Conn) mibFetch(addr uint16) {
	wordBase := int(addr) << 2
	port := wordBase / mibPortStride
	offset := wordBase - port*mibPortStride

	if c.MibFault {
		c.regs[mibCtrl0Reg] = 1 << 1
		c.MibFault = false
		return
	}
	c.regs[mibCtrl0Reg] = 0

	mem := c.mibMem[port]
	for i := 0; i < 4; i++ {
		var w uint16
		if mem != nil && offset+i < len(mem) {
			w = mem[offset+i]
		}
		c.regs[mibCounterBase+smi.Addr(i)] = w
	}
}

var _ smi.Conn = (*Conn)(nil)
