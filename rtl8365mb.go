// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtl8365mb drives the control plane of the Realtek RTL8365MB
// family of ethernet switch chips over their 16-bit register interface.
// The caller supplies the register transport; everything above it, the
// indirect PHY engine, table access, VLAN bookkeeping, counter polling
// and interrupt fan-out, lives here.
package rtl8365mb

import (
	"fmt"
	"time"

	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/rtl8365mb/internal/irq"
	"github.com/platinasystems/rtl8365mb/internal/mib"
	"github.com/platinasystems/rtl8365mb/internal/ocp"
	"github.com/platinasystems/rtl8365mb/internal/smi"
	"github.com/platinasystems/rtl8365mb/internal/table"
	"github.com/platinasystems/rtl8365mb/internal/vlan"
)

// Conn is the register transport the caller provides, typically an
// MDIO/SMI master. Lock and Unlock fence multi-register sequences that
// must not interleave with other register traffic.
type Conn = smi.Conn

// Addr is a 16-bit switch register address.
type Addr = smi.Addr

// Switch is an attached chip.
type Switch struct {
	conn Conn
	info *ChipInfo
	cfg  *Config

	phy    *ocp.Engine
	tables *table.Engine
	vlans  *vlan.Manager
	mibs   *mib.Reader
	stats  *mib.Cache
	irqs   *irq.Demux

	cpu cpuConfig
}

// Attach resets and identifies the chip on conn, programs the vendor
// initial state and brings up the engines. A nil cfg gets DefaultConfig.
func Attach(conn Conn, cfg *Config) (*Switch, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	sw := &Switch{conn: conn, cfg: cfg}

	if cfg.ResetPin != nil {
		if err := hardReset(cfg.ResetPin); err != nil {
			return nil, err
		}
	}
	if err := softReset(conn); err != nil {
		return nil, err
	}

	info, err := identify(conn)
	if err != nil {
		return nil, err
	}
	sw.info = info
	log.Print("found an ", info.Name, " switch")

	if err = jamInit(conn, info); err != nil {
		return nil, err
	}

	sw.phy = ocp.New(conn)
	sw.tables = table.New(conn)
	sw.mibs = mib.NewReader(conn)
	sw.vlans = vlan.New(conn, sw.tables, 1<<cfg.CpuPort, info.FamilyD())

	var pub chan<- string
	if cfg.PubHash != "" {
		pub, err = redis.Publish(cfg.PubHash)
		if err != nil {
			log.Print("err: redis publish: ", err)
			pub = nil
		}
	}
	sw.stats = mib.NewCache(sw.mibs, pub, "port")

	sw.irqs = irq.New(conn, NumPorts)
	pol := irq.ActiveHigh
	if cfg.IrqActiveLow {
		pol = irq.ActiveLow
	}
	if err = sw.irqs.Setup(pol); err != nil {
		return nil, err
	}
	for port := 0; port < ocp.NumPhys; port++ {
		if cfg.UserPorts&(1<<port) == 0 {
			continue
		}
		port := port
		sw.irqs.SetHandler(port, func() { sw.linkEvent(port) })
	}

	if err = sw.setupForwarding(); err != nil {
		sw.irqs.Teardown()
		return nil, err
	}
	return sw, nil
}

// setupForwarding brings the data plane to a safe initial state: CPU
// tagging on, user ports isolated to the CPU with learning off and
// spanning tree disabled, and the VLAN views initialized.
func (sw *Switch) setupForwarding() error {
	cfg := sw.cfg

	sw.cpu = cpuConfig{
		enable:   true,
		mask:     1 << cfg.CpuPort,
		trapPort: cfg.CpuPort,
		insert:   cpuInsertToAll,
		rxLen64:  true,
	}
	if err := sw.writeCpuConfig(); err != nil {
		return err
	}
	if err := sw.SetIsolation(cfg.CpuPort, cfg.UserPorts); err != nil {
		return err
	}

	for port := 0; port < NumPorts; port++ {
		if cfg.UserPorts&(1<<port) == 0 {
			continue
		}
		err := sw.SetIsolation(port, 1<<cfg.CpuPort)
		if err == nil {
			err = sw.SetLearning(port, false)
		}
		if err == nil {
			err = sw.SetStpState(port, StpDisabled)
		}
		if err != nil {
			return err
		}
	}

	if err := sw.SetMTU(1500); err != nil {
		return err
	}
	return sw.vlans.Init()
}

// Close stops the pollers and quiesces the chip's interrupt output. The
// chip keeps forwarding.
func (sw *Switch) Close() error {
	sw.stats.StopAll()
	return sw.irqs.Teardown()
}

// Chip describes the attached chip.
func (sw *Switch) Chip() *ChipInfo { return sw.info }

// Vlans exposes the VLAN manager.
func (sw *Switch) Vlans() *vlan.Manager { return sw.vlans }

// PhyRead reads a register of one of the integrated PHYs.
func (sw *Switch) PhyRead(phy, reg int) (uint16, error) {
	v, err := sw.phy.Read(phy, reg)
	if err != nil {
		log.Print("err: phy ", phy, " reg ", reg, " read: ", err)
	}
	return v, err
}

// PhyWrite writes a register of one of the integrated PHYs.
func (sw *Switch) PhyWrite(phy, reg int, val uint16) error {
	err := sw.phy.Write(phy, reg, val)
	if err != nil {
		log.Print("err: phy ", phy, " reg ", reg, " write: ", err)
	}
	return err
}

// Interrupt services one assertion of the chip's interrupt line; the
// caller hooks it to whatever edge or level source the line is wired to.
func (sw *Switch) Interrupt() (bool, error) { return sw.irqs.Interrupt() }

// Stats returns port's cached derived statistics.
func (sw *Switch) Stats(port int) mib.Stats { return sw.stats.Stats(port) }

// Counters reads every hardware counter of port directly, bypassing the
// cache. It blocks on the counter engine.
func (sw *Switch) Counters(port int) ([]uint64, error) {
	if err := sw.checkPort(port); err != nil {
		return nil, err
	}
	return sw.mibs.ReadAll(port)
}

// MacStats reads port's IEEE 802.3 MAC statistics view.
func (sw *Switch) MacStats(port int) (mib.MacStats, error) {
	if err := sw.checkPort(port); err != nil {
		return mib.MacStats{}, err
	}
	return sw.mibs.MacStats(port)
}

// PhyStats reads port's symbol error count.
func (sw *Switch) PhyStats(port int) (uint64, error) {
	if err := sw.checkPort(port); err != nil {
		return 0, err
	}
	return sw.mibs.SymbolErrors(port)
}

// CtrlStats reads port's count of control frames with unknown opcodes.
func (sw *Switch) CtrlStats(port int) (uint64, error) {
	if err := sw.checkPort(port); err != nil {
		return 0, err
	}
	return sw.mibs.UnknownOpcodes(port)
}

// CounterNames lists the hardware counter names in Counters order.
func CounterNames() []string {
	names := make([]string, mib.NumCounters)
	for i := range names {
		names[i] = mib.Counters[i].Name
	}
	return names
}

// linkEvent runs on the interrupt dispatcher when port's link changed. It
// consults the PHY and pauses or resumes stats polling so a dead port
// costs no register traffic.
func (sw *Switch) linkEvent(port int) {
	const miiBMSR = 1
	const bmsrLink = 1 << 2

	bmsr, err := sw.phy.Read(port, miiBMSR)
	if err != nil {
		log.Print("err: port ", port, " link status: ", err)
		return
	}
	if bmsr&bmsrLink != 0 {
		log.Print("port ", port, " link up")
		sw.stats.Start(port)
	} else {
		log.Print("port ", port, " link down")
		sw.stats.Stop(port)
	}
}

func hardReset(pin *gpio.Pin) error {
	if err := pin.SetValue(true); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := pin.SetValue(false); err != nil {
		return err
	}
	// The chip needs time out of reset before it answers.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// softReset pulses the chip's own reset bit and waits for it to clear.
// Realtek documentation gives the chip a full second to come back.
func softReset(conn Conn) error {
	// The chip drops off the bus mid-write; an ack failure here is
	// expected.
	conn.Write(chipResetReg, chipResetHW)
	time.Sleep(100 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		v, err := conn.Read(chipResetReg)
		if err == nil && v&chipResetHW == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return err
			}
			return fmt.Errorf("chip stuck in reset: %w",
				smi.ErrTimeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
