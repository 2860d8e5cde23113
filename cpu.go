// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	cpuPortMaskReg smi.Addr = 0x1219
	cpuCtrlReg     smi.Addr = 0x121a

	cpuPortMaskMask uint16 = 0x07ff

	cpuCtrlEnable      uint16 = 0x0001
	cpuCtrlInsertShift         = 1
	cpuCtrlTrapShift           = 3
	cpuCtrlPosition    uint16 = 0x0040
	cpuCtrlRxLen64     uint16 = 0x0080
	cpuCtrlFormat4     uint16 = 0x0200
	cpuCtrlTrapExt     uint16 = 0x0400
)

// TagProtocol selects how the CPU port tags frames toward the host.
type TagProtocol int

const (
	// TagRtl8_4 is the 8-byte tag inserted after the source address.
	TagRtl8_4 TagProtocol = iota
	// TagRtl8_4T is the same tag inserted just before the FCS.
	TagRtl8_4T
)

type cpuInsert int

const (
	cpuInsertToAll cpuInsert = iota
	cpuInsertToTrapping
	cpuInsertToNone
)

// cpuConfig mirrors the CPU tagging register pair.
type cpuConfig struct {
	enable    bool
	mask      uint16
	trapPort  int
	insert    cpuInsert
	beforeCRC bool
	rxLen64   bool
	format4   bool
}

func (sw *Switch) writeCpuConfig() error {
	cpu := &sw.cpu
	err := smi.UpdateBits(sw.conn, cpuPortMaskReg, cpuPortMaskMask,
		cpu.mask)
	if err != nil {
		return err
	}

	var v uint16
	if cpu.enable {
		v |= cpuCtrlEnable
	}
	v |= uint16(cpu.insert) << cpuCtrlInsertShift
	v |= uint16(cpu.trapPort&0x7) << cpuCtrlTrapShift
	if cpu.trapPort>>3&1 != 0 {
		v |= cpuCtrlTrapExt
	}
	if cpu.beforeCRC {
		v |= cpuCtrlPosition
	}
	if cpu.rxLen64 {
		v |= cpuCtrlRxLen64
	}
	if cpu.format4 {
		v |= cpuCtrlFormat4
	}
	return sw.conn.Write(cpuCtrlReg, v)
}

// SetTagProtocol switches the CPU tag placement. The chip also has a
// 4-byte tag format with no public documentation; it is not offered here.
func (sw *Switch) SetTagProtocol(proto TagProtocol) error {
	switch proto {
	case TagRtl8_4:
		sw.cpu.format4 = false
		sw.cpu.beforeCRC = false
	case TagRtl8_4T:
		sw.cpu.format4 = false
		sw.cpu.beforeCRC = true
	default:
		return fmt.Errorf("tag protocol %d: %w",
			int(proto), smi.ErrUnsupported)
	}
	return sw.writeCpuConfig()
}
