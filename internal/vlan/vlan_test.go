// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vlan_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinasystems/rtl8365mb/internal/smi"
	"github.com/platinasystems/rtl8365mb/internal/smitest"
	"github.com/platinasystems/rtl8365mb/internal/table"
	"github.com/platinasystems/rtl8365mb/internal/vlan"
)

const (
	cpuPort  = 6
	cpuMask  = 1 << cpuPort
	mcBase   = smi.Addr(0x0728)
	pvidBase = smi.Addr(0x0700)
	aftBase  = smi.Addr(0x07aa)
	ctrlReg  = smi.Addr(0x07a8)
)

func newManager(t *testing.T, familyD bool) (*vlan.Manager, *smitest.Conn) {
	t.Helper()
	conn := smitest.New()
	m := vlan.New(conn, table.New(conn), cpuMask, familyD)
	require.NoError(t, m.Init())
	return m, conn
}

func mcWord(c *smitest.Conn, slot, word int) uint16 {
	return c.Peek(mcBase + smi.Addr(slot*4+word))
}

func TestInitReservesSlotZero(t *testing.T) {
	_, conn := newManager(t, false)

	require.Equal(t, uint16(cpuMask), mcWord(conn, 0, 0))
	require.Equal(t, uint16(0), mcWord(conn, 0, 3))
	require.Equal(t, uint16(1), conn.Peek(ctrlReg)&1)
}

func TestAddAndDelMembership(t *testing.T) {
	m, _ := newManager(t, false)

	require.NoError(t, m.Add(0, 100, vlan.Flags{Untagged: true}))
	v, err := m.Get(100)
	require.NoError(t, err)
	require.Equal(t, uint16(1), v.Members)
	require.Equal(t, uint16(1), v.Untagged)

	require.NoError(t, m.Add(9, 100, vlan.Flags{}))
	v, err = m.Get(100)
	require.NoError(t, err)
	require.Equal(t, uint16(1|1<<9), v.Members)
	require.Equal(t, uint16(1), v.Untagged)

	require.NoError(t, m.Del(0, 100))
	require.NoError(t, m.Del(9, 100))
	v, err = m.Get(100)
	require.NoError(t, err)
	require.Zero(t, v.Members)
	require.Zero(t, v.Untagged)
}

func TestAddDelRestoresRow(t *testing.T) {
	m, _ := newManager(t, false)

	require.NoError(t, m.Add(1, 100, vlan.Flags{Untagged: true}))
	before, err := m.Get(100)
	require.NoError(t, err)

	require.NoError(t, m.Add(3, 100, vlan.Flags{}))
	require.NoError(t, m.Del(3, 100))

	after, err := m.Get(100)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestPvidLifecycle(t *testing.T) {
	m, conn := newManager(t, false)

	// Port 2 starts out accepting tagged frames only.
	conn.Poke(aftBase, 1<<4)

	require.NoError(t, m.Add(2, 100, vlan.Flags{PVID: true}))

	require.Equal(t, uint16(100), mcWord(conn, 1, 3))
	require.Equal(t, uint16(1<<2), mcWord(conn, 1, 0))
	require.Equal(t, uint16(1), conn.Peek(pvidBase+1)&0xff)
	require.Zero(t, conn.Peek(aftBase)>>4&0x3, "untagged ingress accepted")

	require.NoError(t, m.Del(2, 100))

	require.Zero(t, conn.Peek(pvidBase+1)&0xff)
	require.Equal(t, uint16(1), conn.Peek(aftBase)>>4&0x3,
		"tagged-only restored")
	require.Zero(t, mcWord(conn, 1, 3), "slot released")
	require.Zero(t, mcWord(conn, 1, 0))
}

func TestSharedSlot(t *testing.T) {
	m, conn := newManager(t, false)

	require.NoError(t, m.Add(2, 100, vlan.Flags{PVID: true}))
	require.NoError(t, m.Add(3, 100, vlan.Flags{PVID: true}))

	require.Equal(t, uint16(1<<2|1<<3), mcWord(conn, 1, 0))
	require.Equal(t, uint16(1), conn.Peek(pvidBase+1)&0xff)
	require.Equal(t, uint16(1), conn.Peek(pvidBase+1)>>8&0xff)

	require.NoError(t, m.Del(2, 100))

	require.Equal(t, uint16(1<<3), mcWord(conn, 1, 0))
	require.Equal(t, uint16(100), mcWord(conn, 1, 3), "slot kept for port 3")
	require.Zero(t, conn.Peek(pvidBase+1)&0xff)
	require.Equal(t, uint16(1), conn.Peek(pvidBase+1)>>8&0xff)
}

func TestSlotExhaustion(t *testing.T) {
	m, conn := newManager(t, false)

	// Occupy all but the last slot with foreign VLANs.
	for slot := 1; slot <= 30; slot++ {
		conn.Poke(mcBase+smi.Addr(slot*4), 1<<1|cpuMask)
		conn.Poke(mcBase+smi.Addr(slot*4+3), uint16(1000+slot))
	}

	require.NoError(t, m.Add(0, 200, vlan.Flags{PVID: true}))
	require.Equal(t, uint16(200), mcWord(conn, 31, 3))

	err := m.Add(0, 201, vlan.Flags{PVID: true})
	require.ErrorIs(t, err, smi.ErrResourceExhausted)

	// The failed add must not have touched the authoritative table.
	v, gerr := m.Get(201)
	require.NoError(t, gerr)
	require.Zero(t, v.Members)
}

func TestSlotRollbackOnTableError(t *testing.T) {
	m, conn := newManager(t, false)

	// The first table command is the read seeding the new slot; fail
	// the write-back so the claimed slot must be rolled back.
	boom := errors.New("boom")
	n := 0
	conn.WriteErr = func(a smi.Addr) error {
		if a == 0x0500 {
			n++
			if n > 1 {
				return boom
			}
		}
		return nil
	}

	err := m.Add(0, 300, vlan.Flags{PVID: true})
	require.ErrorIs(t, err, boom)

	// The member config slot claimed for the PVID is given back.
	require.Zero(t, mcWord(conn, 1, 0))
	require.Zero(t, mcWord(conn, 1, 3))
	require.Zero(t, conn.Peek(pvidBase)&0xff)
}

func TestVidBounds(t *testing.T) {
	m, conn := newManager(t, false)

	require.ErrorIs(t, m.Add(0, 0, vlan.Flags{}), smi.ErrInvalidArgument)
	require.ErrorIs(t, m.Add(0, 8192, vlan.Flags{}),
		smi.ErrInvalidArgument)
	require.ErrorIs(t, m.Del(0, 8192), smi.ErrInvalidArgument)
	_, err := m.Get(4096)
	require.ErrorIs(t, err, smi.ErrInvalidArgument)

	// VIDs above 4095 exist only in the member config view; the 4K
	// table has no row for them and must stay untouched.
	require.NoError(t, m.Add(0, 5000, vlan.Flags{PVID: true}))
	for _, w := range conn.Row(int(table.Vlan4K), 5000) {
		require.Zero(t, w)
	}
	require.Equal(t, uint16(5000), mcWord(conn, 1, 3))
	require.Equal(t, uint16(1), conn.Peek(pvidBase)&0xff)

	require.NoError(t, m.Del(0, 5000))
	require.Zero(t, mcWord(conn, 1, 3), "slot released")
}

func TestMemberConfigTracksLateJoiners(t *testing.T) {
	m, conn := newManager(t, false)

	require.NoError(t, m.Add(2, 100, vlan.Flags{PVID: true}))
	require.NoError(t, m.Add(3, 100, vlan.Flags{}))

	// The slot view must carry port 3 even though only port 2 uses the
	// VLAN as its PVID.
	require.Equal(t, uint16(1<<2|1<<3), mcWord(conn, 1, 0))
}

func TestNewSlotSeededFromTable(t *testing.T) {
	m, conn := newManager(t, false)

	// No slot is created while the VLAN is not anyone's PVID.
	require.NoError(t, m.Add(0, 100, vlan.Flags{}))
	require.Zero(t, mcWord(conn, 1, 3))

	// The slot created for the PVID picks up port 0 from the 4K row.
	require.NoError(t, m.Add(2, 100, vlan.Flags{PVID: true}))
	require.Equal(t, uint16(100), mcWord(conn, 1, 3))
	require.Equal(t, uint16(1<<0|1<<2), mcWord(conn, 1, 0))
}

func TestAcceptFrameTypePreserved(t *testing.T) {
	m, conn := newManager(t, false)

	// Port 2 is configured untagged-only; a PVID add must not relax it
	// and losing the PVID must not tighten it.
	conn.Poke(aftBase, uint16(vlan.AcceptUntaggedOnly)<<4)

	require.NoError(t, m.Add(2, 100, vlan.Flags{PVID: true}))
	require.Equal(t, uint16(vlan.AcceptUntaggedOnly),
		conn.Peek(aftBase)>>4&0x3)

	require.NoError(t, m.Del(2, 100))
	require.Equal(t, uint16(vlan.AcceptUntaggedOnly),
		conn.Peek(aftBase)>>4&0x3)
}

func TestPvidRegisterFamilyD(t *testing.T) {
	m, conn := newManager(t, true)

	// Family D stores one full-width PVID index per register.
	require.NoError(t, m.Add(3, 100, vlan.Flags{PVID: true}))
	require.Equal(t, uint16(1), conn.Peek(pvidBase+3)&0xfff)
}

func TestSetFiltering(t *testing.T) {
	m, conn := newManager(t, false)

	require.NoError(t, m.SetFiltering(3, true))
	require.Equal(t, uint16(1<<3), conn.Peek(0x07a9)&(1<<3))
	require.NoError(t, m.SetFiltering(3, false))
	require.Zero(t, conn.Peek(0x07a9)&(1<<3))
}
