// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb

import (
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
)

// PortConfig carries per-port attach parameters. The RGMII delays apply
// only to ports behind an RGMII external interface.
type PortConfig struct {
	RxDelayPs uint32
	TxDelayPs uint32
}

// Config carries everything Attach needs beyond the register connection.
type Config struct {
	// CpuPort is the port wired to the host MAC.
	CpuPort int

	// UserPorts is the mask of wired user-facing ports.
	UserPorts uint16

	// IrqActiveLow selects the polarity of the chip's interrupt output.
	IrqActiveLow bool

	// ResetPin, when non-nil, is pulsed to hard-reset the chip before
	// the soft reset.
	ResetPin *gpio.Pin

	// PubHash, when non-empty, is the redis hash stats are published
	// under.
	PubHash string

	Ports map[int]PortConfig
}

// DefaultConfig suits the common RTL8365MB-VC evaluation wiring with the
// CPU on port 6 and four user ports.
func DefaultConfig() *Config {
	return &Config{
		CpuPort:   6,
		UserPorts: 0x000f,
		Ports:     make(map[int]PortConfig),
	}
}

// ParseFdt fills c from the flattened device tree in buf. It looks for an
// ethernet-switch node with optional realtek,irq-active-low, cpu-port and
// user-ports properties and port@N children carrying RGMII delay
// properties. Absent properties keep their current values.
func (c *Config) ParseFdt(buf []byte) error {
	t := &fdt.Tree{}
	if err := t.Parse(buf); err != nil {
		return err
	}
	if c.Ports == nil {
		c.Ports = make(map[int]PortConfig)
	}
	t.EachNodeFrom("ethernet-switch", func(n *fdt.Node) {
		if n.Name == "ethernet-switch" {
			if v, ok := n.Properties["cpu-port"]; ok {
				c.CpuPort = int(t.PropUint32(v))
			}
			if v, ok := n.Properties["user-ports"]; ok {
				c.UserPorts = uint16(t.PropUint32(v))
			}
			if _, ok := n.Properties["realtek,irq-active-low"]; ok {
				c.IrqActiveLow = true
			}
			return
		}
		if !strings.HasPrefix(n.Name, "port@") {
			return
		}
		port, err := strconv.Atoi(strings.TrimPrefix(n.Name, "port@"))
		if err != nil || port < 0 || port >= NumPorts {
			log.Print("err: fdt: bad port node ", n.Name)
			return
		}
		pc := c.Ports[port]
		if v, ok := n.Properties["rx-internal-delay-ps"]; ok {
			pc.RxDelayPs = t.PropUint32(v)
		}
		if v, ok := n.Properties["tx-internal-delay-ps"]; ok {
			pc.TxDelayPs = t.PropUint32(v)
		}
		c.Ports[port] = pc
	})
	return nil
}
