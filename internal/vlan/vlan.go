// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vlan keeps the chip's two VLAN views consistent. The 4K table,
// reached through the table engine, is authoritative for membership and
// untagged sets. The 32-slot member-config array, plain registers, is what
// the ingress pipeline consults for PVID assignment; slot 0 is reserved at
// init for VID 0 so that ports with no PVID of their own still classify.
package vlan

import (
	"fmt"
	"sync"

	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/smi"
	"github.com/platinasystems/rtl8365mb/internal/table"
)

const (
	NumSlots = 32

	// The 4K table has 4096 rows; the member config vid field is 13
	// bits wide, so VIDs above 4095 exist only in the slot view.
	maxVid4K = 0x0fff
	maxVidMC = 0x1fff
)

const (
	vlanCtrlReg      smi.Addr = 0x07a8
	vlanIngressReg   smi.Addr = 0x07a9
	acceptFrameBase  smi.Addr = 0x07aa
	pvidBase         smi.Addr = 0x0700
	memberConfigBase smi.Addr = 0x0728

	vlanCtrlEnable uint16 = 1 << 0

	memberConfigWords = 4
)

// AcceptFrameType selects which frames a port's ingress accepts.
type AcceptFrameType uint16

const (
	AcceptAll AcceptFrameType = iota
	AcceptTaggedOnly
	AcceptUntaggedOnly
	_
)

// Flags qualifies a port's membership in a VLAN.
type Flags struct {
	// Untagged egresses frames for this VLAN without a tag.
	Untagged bool
	// PVID classifies untagged ingress on this port into this VLAN.
	PVID bool
}

// Vlan4K is a decoded row of the authoritative 4K table.
type Vlan4K struct {
	Vid      uint16
	Members  uint16 // port mask
	Untagged uint16 // port mask, subset of Members
	Fid      uint8
}

func (v *Vlan4K) decode(row []uint16) {
	v.Members = row[0]&0x00ff | (row[2]&0x0007)<<8
	v.Untagged = (row[0]&0xff00)>>8 | (row[2]&0x0038)<<5
	v.Fid = uint8(row[1] & 0x000f)
}

func (v *Vlan4K) encode(row []uint16) {
	row[0] = v.Members&0x00ff | (v.Untagged&0x00ff)<<8
	row[1] = uint16(v.Fid) & 0x000f
	row[2] = (v.Members>>8)&0x0007 | ((v.Untagged>>8)&0x0007)<<3
}

// VlanMC is a decoded slot of the 32-entry member-config array.
type VlanMC struct {
	Vid      uint16
	Members  uint16
	Fid      uint8
	Priority uint8
}

func (v *VlanMC) decode(row []uint16) {
	v.Members = row[0] & 0x07ff
	v.Fid = uint8(row[1] & 0x000f)
	v.Priority = uint8((row[2] >> 1) & 0x0007)
	v.Vid = row[3] & 0x1fff
}

func (v *VlanMC) encode(row []uint16) {
	row[0] = v.Members & 0x07ff
	row[1] = uint16(v.Fid) & 0x000f
	row[2] = (uint16(v.Priority) & 0x0007) << 1
	row[3] = v.Vid & 0x1fff
}

// Manager layers the consistency rules over the raw views. All methods are
// safe for concurrent use; mutations of the two views are serialized by one
// mutex so a reader through the manager never observes a half-applied
// change.
type Manager struct {
	mu      sync.Mutex
	conn    smi.Conn
	tables  *table.Engine
	familyD bool

	// infraPorts, typically the CPU port, populate the reserved slot 0
	// and do not hold a slot in use on their own: a member-config slot
	// whose members are all infrastructure is reclaimable.
	infraPorts uint16
}

func New(conn smi.Conn, tables *table.Engine, infraPorts uint16, familyD bool) *Manager {
	return &Manager{
		conn:       conn,
		tables:     tables,
		familyD:    familyD,
		infraPorts: infraPorts,
	}
}

// Init reserves slot 0 for VID 0 with the infrastructure ports as members
// and enables VLAN operation. Untagged frames on ports without an assigned
// PVID classify into VID 0 through this slot.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc := VlanMC{Vid: 0, Members: m.infraPorts}
	if err := m.writeMC(0, &mc); err != nil {
		return err
	}
	for i := 1; i < NumSlots; i++ {
		if err := m.writeMC(i, &VlanMC{}); err != nil {
			return err
		}
	}
	return smi.UpdateBits(m.conn, vlanCtrlReg, vlanCtrlEnable,
		vlanCtrlEnable)
}

// SetFiltering enables or disables ingress VLAN filtering on a port.
func (m *Manager) SetFiltering(port int, enable bool) error {
	bit := uint16(1) << port
	var v uint16
	if enable {
		v = bit
	}
	return smi.UpdateBits(m.conn, vlanIngressReg, bit, v)
}

// Get returns the authoritative 4K row for vid.
func (m *Manager) Get(vid uint16) (Vlan4K, error) {
	var v Vlan4K
	if vid > maxVid4K {
		return v, fmt.Errorf("vid %d: %w", vid, smi.ErrInvalidArgument)
	}
	row := make([]uint16, table.Vlan4K.Width())
	if err := m.tables.Read(table.Vlan4K, vid, row); err != nil {
		return v, err
	}
	v.decode(row)
	v.Vid = vid
	return v, nil
}

// Add joins port to vid. An existing member-config slot for vid always
// gains the port; a new slot is only created when Flags.PVID requires one,
// seeded from the 4K membership so the two views agree for VLANs that
// existed before gaining a PVID. When all 31 non-reserved slots carry
// other VLANs a PVID add fails with resource exhaustion and neither view
// is modified.
func (m *Manager) Add(port int, vid uint16, flags Flags) error {
	if vid == 0 || vid > maxVidMC || port < 0 || port > 10 {
		return fmt.Errorf("port %d vid %d: %w",
			port, vid, smi.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var seed uint16
	if vid <= maxVid4K {
		row := make([]uint16, table.Vlan4K.Width())
		if err := m.tables.Read(table.Vlan4K, vid, row); err != nil {
			return err
		}
		var v Vlan4K
		v.decode(row)
		seed = v.Members
	}

	// Slot first. If the 4K update later fails the slot is rolled back,
	// so a failed add never leaves a slot claiming membership the 4K
	// table does not confirm.
	slot, savedMC, claimed, err := m.joinSlot(port, vid, flags.PVID, seed)
	if err != nil {
		return err
	}

	if vid <= maxVid4K {
		err = m.update4K(vid, func(v *Vlan4K) {
			bit := uint16(1) << port
			v.Members |= bit
			if flags.Untagged {
				v.Untagged |= bit
			} else {
				v.Untagged &^= bit
			}
		})
		if err != nil {
			if claimed {
				if rberr := m.writeMC(slot, &savedMC); rberr != nil {
					log.Print("err: vlan: slot ", slot,
						" rollback: ", rberr)
				}
			}
			return err
		}
	}

	if flags.PVID {
		if err := m.setPvid(port, slot); err != nil {
			return err
		}
		// A PVID implies untagged ingress must be accepted.
		return m.relaxAcceptFrameType(port)
	}
	return nil
}

// Del removes port from vid. The 4K row is updated first; the slot view
// only ever lags toward fewer claims, never the reverse. A slot left with
// only infrastructure members is released, and a port losing the VLAN it
// used as PVID reverts to slot 0, with untagged acceptance tightened back
// to tagged-only if the PVID had relaxed it.
func (m *Manager) Del(port int, vid uint16) error {
	if vid == 0 || vid > maxVidMC || port < 0 || port > 10 {
		return fmt.Errorf("port %d vid %d: %w",
			port, vid, smi.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if vid <= maxVid4K {
		err := m.update4K(vid, func(v *Vlan4K) {
			bit := uint16(1) << port
			v.Members &^= bit
			v.Untagged &^= bit
		})
		if err != nil {
			return err
		}
	}

	slot, mc, err := m.findSlot(vid)
	if err != nil {
		return err
	}
	if slot < 0 {
		return nil
	}

	mc.Members &^= uint16(1) << port
	if mc.Members&^m.infraPorts == 0 {
		mc = VlanMC{}
	}
	if err := m.writeMC(slot, &mc); err != nil {
		return err
	}

	wasPvid, err := m.pvidIndex(port)
	if err != nil {
		return err
	}
	if wasPvid == slot {
		if err := m.setPvid(port, 0); err != nil {
			return err
		}
		return m.tightenAcceptFrameType(port)
	}
	return nil
}

// update4K read-modify-writes the 4K row under a single table transaction.
func (m *Manager) update4K(vid uint16, f func(*Vlan4K)) error {
	return m.tables.Do(func(tx table.Tx) error {
		row := make([]uint16, table.Vlan4K.Width())
		if err := tx.Read(table.Vlan4K, vid, row); err != nil {
			return err
		}
		var v Vlan4K
		v.decode(row)
		f(&v)
		v.encode(row)
		return tx.Write(table.Vlan4K, vid, row)
	})
}

// joinSlot adds port to the member-config slot carrying vid. A missing
// slot is allocated only when isPvid requires one, seeded with the 4K
// membership; without isPvid a missing slot stays missing and the slot
// reported is -1. It reports the slot's prior contents for rollback and
// whether anything was written.
func (m *Manager) joinSlot(port int, vid uint16, isPvid bool, seed uint16) (int, VlanMC, bool, error) {
	bit := uint16(1) << port
	free := -1
	for i := 1; i < NumSlots; i++ {
		mc, err := m.readMC(i)
		if err != nil {
			return -1, VlanMC{}, false, err
		}
		if mc.Vid == vid {
			saved := mc
			mc.Members |= bit
			if mc.Members == saved.Members {
				return i, saved, false, nil
			}
			if err := m.writeMC(i, &mc); err != nil {
				return -1, VlanMC{}, false, err
			}
			return i, saved, true, nil
		}
		if free < 0 && mc.Vid == 0 && mc.Members == 0 {
			free = i
		}
	}
	if !isPvid {
		return -1, VlanMC{}, false, nil
	}
	if free < 0 {
		return -1, VlanMC{}, false, fmt.Errorf(
			"vid %d needs a member config slot: %w",
			vid, smi.ErrResourceExhausted)
	}
	mc := VlanMC{Vid: vid, Members: seed | bit}
	if err := m.writeMC(free, &mc); err != nil {
		return -1, VlanMC{}, false, err
	}
	return free, VlanMC{}, true, nil
}

// findSlot returns the member-config slot carrying vid, or -1.
func (m *Manager) findSlot(vid uint16) (int, VlanMC, error) {
	for i := 1; i < NumSlots; i++ {
		mc, err := m.readMC(i)
		if err != nil {
			return -1, VlanMC{}, err
		}
		if mc.Vid == vid {
			return i, mc, nil
		}
	}
	return -1, VlanMC{}, nil
}

func (m *Manager) readMC(slot int) (VlanMC, error) {
	var mc VlanMC
	row := make([]uint16, memberConfigWords)
	base := memberConfigBase + smi.Addr(slot*memberConfigWords)
	if err := smi.BulkRead(m.conn, base, row); err != nil {
		return mc, err
	}
	mc.decode(row)
	return mc, nil
}

func (m *Manager) writeMC(slot int, mc *VlanMC) error {
	row := make([]uint16, memberConfigWords)
	mc.encode(row)
	base := memberConfigBase + smi.Addr(slot*memberConfigWords)
	return smi.BulkWrite(m.conn, base, row)
}

// The PVID register packs two ports per register on older chips and one
// per register on family D.
func (m *Manager) pvidReg(port int) (smi.Addr, int, uint16) {
	if m.familyD {
		return pvidBase + smi.Addr(port), 0, 0x0fff
	}
	return pvidBase + smi.Addr(port>>1), (port & 1) * 8, 0x00ff
}

func (m *Manager) setPvid(port, slot int) error {
	a, shift, mask := m.pvidReg(port)
	return smi.UpdateBits(m.conn, a, mask<<shift,
		uint16(slot)<<shift)
}

func (m *Manager) pvidIndex(port int) (int, error) {
	a, shift, mask := m.pvidReg(port)
	v, err := m.conn.Read(a)
	if err != nil {
		return 0, err
	}
	return int(v>>shift) & int(mask), nil
}

func (m *Manager) acceptFrameType(port int) (smi.Addr, int, AcceptFrameType, error) {
	a := acceptFrameBase + smi.Addr(port>>3)
	shift := (port & 7) * 2
	v, err := m.conn.Read(a)
	return a, shift, AcceptFrameType(v >> shift & 0x3), err
}

// relaxAcceptFrameType admits untagged ingress for a new PVID. Only the
// tagged-only setting is relaxed; an untagged-only port keeps it.
func (m *Manager) relaxAcceptFrameType(port int) error {
	a, shift, t, err := m.acceptFrameType(port)
	if err != nil || t != AcceptTaggedOnly {
		return err
	}
	return smi.UpdateBits(m.conn, a, 0x3<<shift,
		uint16(AcceptAll)<<shift)
}

// tightenAcceptFrameType reverts a port losing its PVID to tagged-only
// ingress, but only if a PVID had relaxed it to accept-all.
func (m *Manager) tightenAcceptFrameType(port int) error {
	a, shift, t, err := m.acceptFrameType(port)
	if err != nil || t != AcceptAll {
		return err
	}
	return smi.UpdateBits(m.conn, a, 0x3<<shift,
		uint16(AcceptTaggedOnly)<<shift)
}
