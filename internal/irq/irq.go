// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irq fans the chip's single interrupt line out to per-port
// virtual lines. The chip asserts its line on link change; the status
// register says which event fired and a pair of indicator registers say
// which ports changed. Handlers run on a dispatcher goroutine, so they
// may block on the bus without stalling the caller of Interrupt.
package irq

import (
	"sync"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	polarityReg smi.Addr = 0x1100
	ctrlReg     smi.Addr = 0x1101
	statusReg   smi.Addr = 0x1102

	linkdownIndReg smi.Addr = 0x1106
	linkupIndReg   smi.Addr = 0x1107

	polarityMask uint16 = 0x0001
	allEvents    uint16 = 0x1bff
	linkChange   uint16 = 0x0001

	portIndMask uint16 = 0x07ff
)

// Polarity is the electrical sense of the chip's interrupt output.
type Polarity int

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// Demux owns the interrupt registers and the per-port handler table.
type Demux struct {
	conn     smi.Conn
	numPorts int

	mu       sync.Mutex
	handlers map[int]func()

	events chan uint16
	done   chan struct{}
}

func New(conn smi.Conn, numPorts int) *Demux {
	return &Demux{
		conn:     conn,
		numPorts: numPorts,
		handlers: make(map[int]func()),
	}
}

// Setup programs the line polarity, clears any latched events and enables
// link-change interrupts. It also starts the dispatcher.
func (d *Demux) Setup(p Polarity) error {
	var pol uint16
	if p == ActiveLow {
		pol = 1
	}
	err := smi.UpdateBits(d.conn, polarityReg, polarityMask, pol)
	if err != nil {
		return err
	}
	// All sources off while we clear stale status.
	if err = d.conn.Write(ctrlReg, 0); err != nil {
		return err
	}
	if err = d.conn.Write(statusReg, allEvents); err != nil {
		return err
	}
	if err = d.enable(true); err != nil {
		return err
	}

	d.mu.Lock()
	d.events = make(chan uint16, 16)
	d.done = make(chan struct{})
	go d.dispatch(d.events, d.done)
	d.mu.Unlock()
	return nil
}

// SetHandler installs f as port's virtual interrupt line. A nil f removes
// the line.
func (d *Demux) SetHandler(port int, f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f == nil {
		delete(d.handlers, port)
		return
	}
	d.handlers[port] = f
}

// Interrupt services one assertion of the chip's line. It reports whether
// any port line was triggered. The status register is read and written
// back so only the observed events are acknowledged.
func (d *Demux) Interrupt() (bool, error) {
	stat, err := d.readAndClear(statusReg)
	if err != nil {
		return false, err
	}

	var lines uint16
	if stat&linkChange != 0 {
		up, err := d.readAndClear(linkupIndReg)
		if err != nil {
			return false, err
		}
		down, err := d.readAndClear(linkdownIndReg)
		if err != nil {
			return false, err
		}
		lines = (up | down) & portIndMask
	}
	if lines == 0 {
		return false, nil
	}

	d.mu.Lock()
	events, done := d.events, d.done
	d.mu.Unlock()
	if events == nil {
		return false, nil
	}
	select {
	case events <- lines:
	case <-done:
	}
	return true, nil
}

// Teardown disables the chip's interrupt sources, stops the dispatcher and
// removes all port lines, in that order, so no handler fires afterward.
func (d *Demux) Teardown() error {
	err := d.enable(false)

	d.mu.Lock()
	if d.done != nil {
		close(d.done)
		d.done = nil
		d.events = nil
	}
	d.handlers = make(map[int]func())
	d.mu.Unlock()
	return err
}

func (d *Demux) dispatch(events chan uint16, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case lines := <-events:
			for port := 0; port < d.numPorts; port++ {
				if lines&(1<<port) == 0 {
					continue
				}
				d.mu.Lock()
				f := d.handlers[port]
				d.mu.Unlock()
				if f != nil {
					f()
				}
			}
		}
	}
}

func (d *Demux) enable(on bool) error {
	var v uint16
	if on {
		v = linkChange
	}
	return smi.UpdateBits(d.conn, ctrlReg, linkChange, v)
}

func (d *Demux) readAndClear(a smi.Addr) (uint16, error) {
	v, err := d.conn.Read(a)
	if err != nil {
		return 0, err
	}
	if err := d.conn.Write(a, v); err != nil {
		return 0, err
	}
	return v, nil
}
