// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinasystems/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/internal/smitest"
	"github.com/platinasystems/rtl8365mb/internal/vlan"
)

func newVC(t *testing.T) (*rtl8365mb.Switch, *smitest.Conn) {
	t.Helper()
	conn := smitest.New()
	conn.Poke(0x1300, 0x6367) // chip id
	conn.Poke(0x1301, 0x0040) // chip version

	sw, err := rtl8365mb.Attach(conn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sw.Close() })
	return sw, conn
}

func waitFor(t *testing.T, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ok() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAttachIdentifies(t *testing.T) {
	sw, _ := newVC(t)
	require.Equal(t, "RTL8365MB-VC", sw.Chip().Name)
	require.False(t, sw.Chip().FamilyD())
}

func TestAttachUnknownChip(t *testing.T) {
	conn := smitest.New()
	conn.Poke(0x1300, 0x1234)
	_, err := rtl8365mb.Attach(conn, nil)
	require.ErrorIs(t, err, rtl8365mb.ErrUnsupported)
}

func TestAttachInitialState(t *testing.T) {
	_, conn := newVC(t)

	// CPU tagging towards port 6.
	require.Equal(t, uint16(1<<6), conn.Peek(0x1219)&0x07ff)
	require.Equal(t, uint16(1), conn.Peek(0x121a)&1)

	// User ports forward only to the CPU, with learning off.
	for port := 0; port < 4; port++ {
		require.Equal(t, uint16(1<<6),
			conn.Peek(0x08a2+rtl8365mb.Addr(port)),
			"port %d isolation", port)
		require.Zero(t, conn.Peek(0x0a20+rtl8365mb.Addr(port)),
			"port %d learn limit", port)
	}
	// CPU port forwards to the user ports.
	require.Equal(t, uint16(0x000f), conn.Peek(0x08a2+6))

	// 1500-byte MTU plus headers and FCS.
	require.Equal(t, uint16(1522), conn.Peek(0x088c)&0x3fff)

	// Vendor jam applied and VLAN operation on.
	require.Equal(t, uint16(0x7fcb), conn.Peek(0x1200))
	require.Equal(t, uint16(1), conn.Peek(0x07a8)&1)
}

func TestPhyAccess(t *testing.T) {
	sw, conn := newVC(t)

	conn.SetPhy(1, 2, 0x001c) // PHY id high word
	v, err := sw.PhyRead(1, 2)
	require.NoError(t, err)
	require.Equal(t, uint16(0x001c), v)

	require.NoError(t, sw.PhyWrite(1, 4, 0x01e1))
	require.Equal(t, uint16(0x01e1), conn.Phy(1, 4))

	_, err = sw.PhyRead(8, 0)
	require.ErrorIs(t, err, rtl8365mb.ErrInvalidArgument)
}

func TestVlanThroughSwitch(t *testing.T) {
	sw, _ := newVC(t)

	require.NoError(t, sw.Vlans().Add(6, 42, vlan.Flags{}))
	require.NoError(t, sw.Vlans().Add(1, 42,
		vlan.Flags{Untagged: true, PVID: true}))
	v, err := sw.Vlans().Get(42)
	require.NoError(t, err)
	require.Equal(t, uint16(1<<1|1<<6), v.Members)
	require.Equal(t, uint16(1<<1), v.Untagged)

	require.NoError(t, sw.Vlans().Del(1, 42))
	v, err = sw.Vlans().Get(42)
	require.NoError(t, err)
	require.Equal(t, uint16(1<<6), v.Members)
}

func TestTagProtocol(t *testing.T) {
	sw, conn := newVC(t)

	require.NoError(t, sw.SetTagProtocol(rtl8365mb.TagRtl8_4T))
	require.NotZero(t, conn.Peek(0x121a)&0x0040, "tag before CRC")

	require.NoError(t, sw.SetTagProtocol(rtl8365mb.TagRtl8_4))
	require.Zero(t, conn.Peek(0x121a)&0x0040)

	require.ErrorIs(t, sw.SetTagProtocol(rtl8365mb.TagProtocol(7)),
		rtl8365mb.ErrUnsupported)
}

func TestStpStates(t *testing.T) {
	sw, conn := newVC(t)

	require.NoError(t, sw.SetStpState(2, rtl8365mb.StpForwarding))
	require.Equal(t, uint16(3), conn.Peek(0x0a00)>>4&0x3)

	require.NoError(t, sw.SetStpState(9, rtl8365mb.StpBlocking))
	require.Equal(t, uint16(1), conn.Peek(0x0a01)>>2&0x3)

	require.ErrorIs(t, sw.SetStpState(2, rtl8365mb.StpState(9)),
		rtl8365mb.ErrInvalidArgument)
	require.ErrorIs(t, sw.SetStpState(11, rtl8365mb.StpDisabled),
		rtl8365mb.ErrInvalidArgument)
}

func TestMTUBounds(t *testing.T) {
	sw, conn := newVC(t)

	require.NoError(t, sw.SetMTU(sw.MaxMTU()))
	require.Equal(t, uint16(0x3fff), conn.Peek(0x088c)&0x3fff)
	require.ErrorIs(t, sw.SetMTU(sw.MaxMTU()+1),
		rtl8365mb.ErrInvalidArgument)
}

func TestExtInterface(t *testing.T) {
	cfg := rtl8365mb.DefaultConfig()
	cfg.Ports[6] = rtl8365mb.PortConfig{TxDelayPs: 2000, RxDelayPs: 900}

	conn := smitest.New()
	conn.Poke(0x1300, 0x6367)
	conn.Poke(0x1301, 0x0040)
	sw, err := rtl8365mb.Attach(conn, cfg)
	require.NoError(t, err)
	defer sw.Close()

	require.NoError(t, sw.ConfigRGMII(6))
	// Port 6 is ext interface 1: delays then mode nibble.
	require.Equal(t, uint16(1<<3|3), conn.Peek(0x1307)&0x000f)
	require.Equal(t, uint16(1), conn.Peek(0x1305)>>4&0xf)

	require.NoError(t, sw.ForceLink(6, true, rtl8365mb.Speed1000,
		true, true, true))
	v := conn.Peek(0x1311)
	require.NotZero(t, v&0x1000, "force enable")
	require.NotZero(t, v&0x0010, "link up")
	require.Equal(t, uint16(2), v&0x0003, "gigabit")

	require.NoError(t, sw.ForceLink(6, false, 0, false, false, false))
	require.Zero(t, conn.Peek(0x1311)&0x0010)

	require.ErrorIs(t, sw.ConfigRGMII(0), rtl8365mb.ErrUnsupported)
	require.ErrorIs(t, sw.ForceLink(6, true, rtl8365mb.Speed2500,
		true, false, false), rtl8365mb.ErrUnsupported)
}

func TestInterruptDrivesStatsPolling(t *testing.T) {
	sw, conn := newVC(t)

	// Port 0 PHY reports link up; rx unicast counter has traffic.
	conn.SetPhy(0, 1, 1<<2)
	conn.SetCounter(0, 16, 2, 99) // ifInUcastPkts

	conn.Poke(0x1102, 0x0001)
	conn.Poke(0x1107, 1<<0)
	handled, err := sw.Interrupt()
	require.NoError(t, err)
	require.True(t, handled)

	waitFor(t, func() bool { return sw.Stats(0).RxPackets == 99 })

	// Link drops; polling stops.
	conn.SetPhy(0, 1, 0)
	conn.Poke(0x1102, 0x0001)
	conn.Poke(0x1106, 1<<0)
	handled, err = sw.Interrupt()
	require.NoError(t, err)
	require.True(t, handled)

	// The last snapshot stays readable.
	waitFor(t, func() bool { return sw.Stats(0).RxPackets == 99 })
}

func TestCounterNames(t *testing.T) {
	names := rtl8365mb.CounterNames()
	require.Equal(t, "ifInOctets", names[0])
	require.Contains(t, names, "etherStatsCollisions")
}
