// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mib reads the chip's per-port MIB counters. Counters live in an
// SRAM window reached by writing an address register and polling a busy
// flag, then reading the value out of a four-register line 16 bits at a
// time; a mutex serializes the whole sequence.
package mib

import (
	"fmt"
	"sync"

	"github.com/platinasystems/rtl8365mb/internal/smi"
)

const (
	counterBase smi.Addr = 0x1000
	addressReg  smi.Addr = 0x1004
	ctrl0Reg    smi.Addr = 0x1005

	ctrl0Busy  uint16 = 1 << 0
	ctrl0Reset uint16 = 1 << 1

	// Each port's counters occupy 0x7c bytes of SRAM.
	portStride = 0x7c
)

// Reader fetches raw counter values.
type Reader struct {
	mu   sync.Mutex
	conn smi.Conn
}

func NewReader(conn smi.Conn) *Reader { return &Reader{conn: conn} }

// Read fetches one counter for port. It blocks on the hardware busy flag.
func (r *Reader) Read(port int, idx Index) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(port, idx)
}

// ReadAll fetches every counter for port in catalog order. On error the
// returned slice is nil; a snapshot is never partially filled.
func (r *Reader) ReadAll(port int) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals := make([]uint64, NumCounters)
	for i := Index(0); i < NumCounters; i++ {
		v, err := r.read(port, i)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// readSome fetches the counters whose indices are keys of out, leaving out
// untouched on any error.
func (r *Reader) readSome(port int, out map[Index]uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	got := make(map[Index]uint64, len(out))
	for i := Index(0); i < NumCounters; i++ {
		if _, want := out[i]; !want {
			continue
		}
		v, err := r.read(port, i)
		if err != nil {
			return err
		}
		got[i] = v
	}
	for i, v := range got {
		out[i] = v
	}
	return nil
}

func (r *Reader) read(port int, idx Index) (uint64, error) {
	if idx < 0 || idx >= NumCounters {
		return 0, fmt.Errorf("counter %d: %w",
			int(idx), smi.ErrInvalidArgument)
	}
	c := Counters[idx]
	conn := r.conn

	// The address register takes a longword SRAM address.
	addr := uint16(portStride*port+c.Offset) >> 2
	if err := conn.Write(addressReg, addr); err != nil {
		return 0, err
	}
	if err := smi.PollClear(conn, ctrl0Reg, ctrl0Busy); err != nil {
		return 0, err
	}
	v, err := conn.Read(ctrl0Reg)
	if err != nil {
		return 0, err
	}
	// The reset flag coming back set means the fetch faulted.
	if v&ctrl0Reset != 0 {
		return 0, fmt.Errorf("%s port %d fetch fault: %w",
			c.Name, port, smi.ErrIO)
	}

	// The counter line is four registers; a 2-word counter sits in the
	// upper or lower pair depending on its offset. Read high word first.
	word := 3
	if c.Length != 4 {
		word = (c.Offset + 1) % 4
	}
	var val uint64
	for i := 0; i < c.Length; i++ {
		w, err := conn.Read(counterBase + smi.Addr(word-i))
		if err != nil {
			return 0, err
		}
		val = val<<16 | uint64(w)
	}
	return val, nil
}
