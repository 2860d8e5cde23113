// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smi is the register bus boundary of the driver. The switch is
// configured entirely through 16-bit registers reached over a slow two-wire
// management bus (SMI or MDIO); Conn abstracts the transport so that the
// engines above it never care which one is wired up.
package smi

// Addr is a 16-bit register address. All chip state is addressed this way.
type Addr uint16

// Conn is a connection to the switch management bus.
//
// Lock/Unlock delimit an exclusive-access scope: any multi-register sequence
// that must appear atomic to other bus users is executed with the scope held.
// Read and Write are individually atomic at the transport level and may be
// called with or without the scope.
type Conn interface {
	Read(a Addr) (uint16, error)
	Write(a Addr, v uint16) error
	Lock()
	Unlock()
}

// UpdateBits read-modify-writes the bits of a selected by mask.
func UpdateBits(c Conn, a Addr, mask, val uint16) error {
	v, err := c.Read(a)
	if err != nil {
		return err
	}
	n := v&^mask | val&mask
	if n == v {
		return nil
	}
	return c.Write(a, n)
}

// BulkRead reads len(buf) consecutive registers starting at base.
func BulkRead(c Conn, base Addr, buf []uint16) error {
	for i := range buf {
		v, err := c.Read(base + Addr(i))
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

// BulkWrite writes len(buf) consecutive registers starting at base.
func BulkWrite(c Conn, base Addr, buf []uint16) error {
	for i, v := range buf {
		if err := c.Write(base+Addr(i), v); err != nil {
			return err
		}
	}
	return nil
}
