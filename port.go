// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	maxLenReg  smi.Addr = 0x088c
	maxLenMask uint16   = 0x3fff

	learnLimitBase smi.Addr = 0x0a20
	learnLimitMax  uint16   = 2112

	isolationBase smi.Addr = 0x08a2
	isolationMask uint16   = 0x07ff

	mstiCtrlBase smi.Addr = 0x0a00
)

// StpState is a port's spanning tree state.
type StpState int

const (
	StpDisabled StpState = iota
	StpBlocking
	StpLearning
	StpForwarding
)

// SetIsolation restricts which ports port may forward to.
func (sw *Switch) SetIsolation(port int, mask uint16) error {
	if err := sw.checkPort(port); err != nil {
		return err
	}
	return sw.conn.Write(isolationBase+smi.Addr(port),
		mask&isolationMask)
}

// SetLearning enables or disables address learning on port. The chip has
// no learning switch as such; a learn limit of zero disables it and the
// chip maximum restores it.
func (sw *Switch) SetLearning(port int, enable bool) error {
	if err := sw.checkPort(port); err != nil {
		return err
	}
	var limit uint16
	if enable {
		limit = learnLimitMax
	}
	return sw.conn.Write(learnLimitBase+smi.Addr(port), limit)
}

// SetStpState sets port's state in spanning tree instance 0.
func (sw *Switch) SetStpState(port int, state StpState) error {
	if err := sw.checkPort(port); err != nil {
		return err
	}
	if state < StpDisabled || state > StpForwarding {
		return fmt.Errorf("stp state %d: %w",
			int(state), smi.ErrInvalidArgument)
	}
	const msti = 0
	a := mstiCtrlBase + smi.Addr(msti<<1) + smi.Addr(port>>3)
	shift := (port & 7) * 2
	return smi.UpdateBits(sw.conn, a, 0x3<<shift, uint16(state)<<shift)
}

// SetMTU programs the switch-wide maximum frame length for the given
// payload size, leaving room for the ethernet header, a VLAN tag and the
// FCS.
func (sw *Switch) SetMTU(mtu int) error {
	frame := mtu + 18 + 4
	if frame < 0 || frame > int(maxLenMask) {
		return fmt.Errorf("mtu %d: %w", mtu, smi.ErrInvalidArgument)
	}
	return smi.UpdateBits(sw.conn, maxLenReg, maxLenMask, uint16(frame))
}

// MaxMTU is the largest payload SetMTU accepts.
func (sw *Switch) MaxMTU() int { return int(maxLenMask) - 18 - 4 }

func (sw *Switch) checkPort(port int) error {
	if port < 0 || port >= NumPorts {
		return fmt.Errorf("port %d: %w", port, smi.ErrInvalidArgument)
	}
	return nil
}

// External interface configuration. Each chip routes one or two of its
// high ports through a configurable MAC interface; the registers are
// indexed by the interface id, not the port.

const (
	extModeDisable uint16 = 0
	extModeRGMII   uint16 = 1

	rgmxfRxDelayMask uint16 = 0x0007
	rgmxfTxDelayMask uint16 = 0x0008

	forceEn         uint16 = 0x1000
	forceTxPause    uint16 = 0x0040
	forceRxPause    uint16 = 0x0020
	forceLink       uint16 = 0x0010
	forceDuplex     uint16 = 0x0004
	forceSpeedMask  uint16 = 0x0003
	forceSpeedMaskD uint16 = 0x3000
)

// Speed is a forced link speed in Mb/s.
type Speed int

const (
	Speed10   Speed = 10
	Speed100  Speed = 100
	Speed1000 Speed = 1000
	Speed2500 Speed = 2500
)

func extSelectReg(id int) smi.Addr {
	if id == 2 {
		return 0x13c3
	}
	return 0x1305
}

func extRgmxfReg(id int) (smi.Addr, error) {
	switch id {
	case 0:
		return 0x1306, nil
	case 1:
		return 0x1307, nil
	case 2:
		return 0x13c5, nil
	}
	return 0, fmt.Errorf("ext interface %d: %w", id, smi.ErrInvalidArgument)
}

// ConfigRGMII puts port's external interface in RGMII mode with the
// configured clock delays. The tx delay is a coarse on/off for 2 ns; the
// rx delay steps in 0.3 ns increments up to 2.1 ns.
func (sw *Switch) ConfigRGMII(port int) error {
	ext := sw.info.ExtIntFor(port)
	if ext == nil || ext.Modes&ModeRGMII == 0 {
		return fmt.Errorf("port %d has no RGMII interface: %w",
			port, smi.ErrUnsupported)
	}

	var txDelay, rxDelay uint16
	if pc, ok := sw.cfg.Ports[port]; ok {
		tx := (pc.TxDelayPs + 500) / 1000
		if tx == 0 || tx == 2 {
			txDelay = uint16(tx / 2)
		} else {
			log.Print("port ", port, ": RGMII tx delay must be 0 or 2 ns")
		}
		rx := (pc.RxDelayPs + 150) / 300
		if rx <= 7 {
			rxDelay = uint16(rx)
		} else {
			log.Print("port ", port, ": RGMII rx delay must be 0 to 2.1 ns")
		}
	}

	rgmxf, err := extRgmxfReg(ext.Id)
	if err != nil {
		return err
	}
	err = smi.UpdateBits(sw.conn, rgmxf,
		rgmxfTxDelayMask|rgmxfRxDelayMask,
		txDelay<<3|rxDelay)
	if err != nil {
		return err
	}

	shift := (ext.Id % 2) * 4
	return smi.UpdateBits(sw.conn, extSelectReg(ext.Id),
		0xf<<shift, extModeRGMII<<shift)
}

// ForceLink forces port's external interface MAC up at the given speed and
// duplex, or down with the configuration cleared.
func (sw *Switch) ForceLink(port int, up bool, speed Speed, fullDuplex, txPause, rxPause bool) error {
	ext := sw.info.ExtIntFor(port)
	if ext == nil {
		return fmt.Errorf("port %d has no external interface: %w",
			port, smi.ErrUnsupported)
	}
	familyD := sw.info.FamilyD()

	var v uint16
	if up {
		v = forceLink
		if txPause {
			v |= forceTxPause
		}
		if rxPause {
			v |= forceRxPause
		}
		if fullDuplex {
			v |= forceDuplex
		}
		switch speed {
		case Speed10:
		case Speed100:
			v |= 1
		case Speed1000:
			v |= 2
		case Speed2500:
			if !familyD {
				return fmt.Errorf("port %d speed 2500: %w",
					port, smi.ErrUnsupported)
			}
			// Speed code 5, split across the two speed fields.
			v |= 5 & forceSpeedMask
			v |= 5 >> 2 << 12 & forceSpeedMaskD
		default:
			return fmt.Errorf("port %d speed %d: %w",
				port, int(speed), smi.ErrInvalidArgument)
		}
	}

	if !familyD {
		v |= forceEn
		return sw.conn.Write(forceReg(ext.Id, false), v)
	}
	if err := sw.conn.Write(forceReg(ext.Id, true), v); err != nil {
		return err
	}
	return sw.conn.Write(forceEnReg(ext.Id), 0xffff)
}

func forceReg(id int, familyD bool) smi.Addr {
	if familyD {
		return 0x12c0 + smi.Addr(id)
	}
	switch id {
	case 1:
		return 0x1311
	case 2:
		return 0x13c4
	}
	return 0x1310
}

func forceEnReg(id int) smi.Addr { return 0x12c8 + smi.Addr(id) }
