// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	// NumPorts is the size of the family's port space. Not every chip
	// wires every port.
	NumPorts = 11

	// NumExtInts is the most external interfaces any family member has.
	NumExtInts = 3
)

const (
	chipIdReg    smi.Addr = 0x1300
	chipVerReg   smi.Addr = 0x1301
	chipResetReg smi.Addr = 0x1322
	magicReg     smi.Addr = 0x13c2

	chipResetHW uint16 = 1 << 0
	chipResetSW uint16 = 1 << 1

	// The chip id and version registers only read back correctly while
	// this value sits in the magic register.
	magicValue uint16 = 0x0249
)

// InterfaceMode is a bitmask of MAC-to-PHY interface modes an external
// interface supports.
type InterfaceMode uint

const (
	ModeInternal InterfaceMode = 1 << iota
	ModeMII
	ModeTMII
	ModeRMII
	ModeRGMII
	ModeSGMII
	ModeHSGMII
)

// ExtInt maps a port to its external interface id and supported modes.
type ExtInt struct {
	Port  int
	Id    int
	Modes InterfaceMode
}

// ChipInfo is the static description of one family member.
type ChipInfo struct {
	Name    string
	ChipId  uint16
	ChipVer uint16
	ExtInts []ExtInt

	jam []jamEntry
}

// FamilyD reports whether the chip uses the revised register layout of the
// RTL8367S-VB generation, which moves the forcemode registers and widens
// the PVID field.
func (ci *ChipInfo) FamilyD() bool { return ci.ChipId == 0x6642 }

// ExtIntFor returns the external interface behind port, or nil.
func (ci *ChipInfo) ExtIntFor(port int) *ExtInt {
	for i := range ci.ExtInts {
		if ci.ExtInts[i].Port == port {
			return &ci.ExtInts[i]
		}
	}
	return nil
}

type jamEntry struct {
	reg smi.Addr
	val uint16
}

// Vendor-defined initial state, lifted from the vendor driver sources.
var jamVC = []jamEntry{
	{0x13eb, 0x15bb}, {0x1303, 0x06d6}, {0x1304, 0x0700},
	{0x13e2, 0x003f}, {0x13f9, 0x0090}, {0x121e, 0x03ca},
	{0x1233, 0x0352}, {0x1237, 0x00a0}, {0x123a, 0x0030},
	{0x1239, 0x0084}, {0x0301, 0x1000}, {0x1349, 0x001f},
	{0x18e0, 0x4004}, {0x122b, 0x241c}, {0x1305, 0xc000},
	{0x13f0, 0x0000},
}

var jamCommon = []jamEntry{
	{0x1200, 0x7fcb}, {0x0884, 0x0003}, {0x06eb, 0x0001},
	{0x03fa, 0x0007}, {0x08c8, 0x00c0}, {0x0a30, 0x020e},
	{0x0800, 0x0000}, {0x0802, 0x0000}, {0x09da, 0x0013},
	{0x1d32, 0x0002},
}

var chipInfos = []ChipInfo{
	{
		Name:    "RTL8365MB-VC",
		ChipId:  0x6367,
		ChipVer: 0x0040,
		ExtInts: []ExtInt{
			{6, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367S",
		ChipId:  0x6367,
		ChipVer: 0x00a0,
		ExtInts: []ExtInt{
			{6, 1, ModeSGMII | ModeHSGMII},
			{7, 2, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367RB-VB",
		ChipId:  0x6367,
		ChipVer: 0x0020,
		ExtInts: []ExtInt{
			{6, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
			{7, 2, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367S-VB",
		ChipId:  0x6642,
		ChipVer: 0x0010,
		ExtInts: []ExtInt{
			{6, 0, ModeSGMII | ModeHSGMII},
			{7, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
}

// identify reads the chip id and version and matches them against the
// known family members.
func identify(conn smi.Conn) (*ChipInfo, error) {
	if err := conn.Write(magicReg, magicValue); err != nil {
		return nil, err
	}
	id, err := conn.Read(chipIdReg)
	if err != nil {
		return nil, err
	}
	ver, err := conn.Read(chipVerReg)
	if err != nil {
		return nil, err
	}
	if err = conn.Write(magicReg, 0); err != nil {
		return nil, err
	}
	for i := range chipInfos {
		ci := &chipInfos[i]
		if ci.ChipId == id && ci.ChipVer == ver {
			return ci, nil
		}
	}
	return nil, fmt.Errorf("unrecognized switch id 0x%04x ver 0x%04x: %w",
		id, ver, smi.ErrUnsupported)
}

// jamInit programs the vendor-defined initial state.
func jamInit(conn smi.Conn, ci *ChipInfo) error {
	for _, e := range ci.jam {
		if err := conn.Write(e.reg, e.val); err != nil {
			return err
		}
	}
	for _, e := range jamCommon {
		if err := conn.Write(e.reg, e.val); err != nil {
			return err
		}
	}
	return nil
}
