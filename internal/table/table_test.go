// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinasystems/rtl8365mb/internal/smi"
	"github.com/platinasystems/rtl8365mb/internal/smitest"
	"github.com/platinasystems/rtl8365mb/internal/table"
)

func TestVlan4KRoundTrip(t *testing.T) {
	conn := smitest.New()
	e := table.New(conn)

	want := []uint16{0x1234, 0x000a, 0x0015}
	require.NoError(t, e.Write(table.Vlan4K, 100, want))

	got := make([]uint16, 3)
	require.NoError(t, e.Read(table.Vlan4K, 100, got))
	require.Equal(t, want, got)
}

func TestRowsIndependentAcrossIndices(t *testing.T) {
	conn := smitest.New()
	e := table.New(conn)

	for _, vid := range []uint16{0, 1, 4095} {
		row := []uint16{vid, vid + 1, vid + 2}
		require.NoError(t, e.Write(table.Vlan4K, vid, row))
	}
	for _, vid := range []uint16{0, 1, 4095} {
		got := make([]uint16, 3)
		require.NoError(t, e.Read(table.Vlan4K, vid, got))
		require.Equal(t, []uint16{vid, vid + 1, vid + 2}, got)
	}
}

func TestBadArguments(t *testing.T) {
	conn := smitest.New()
	e := table.New(conn)

	// Wrong row width.
	err := e.Read(table.Vlan4K, 0, make([]uint16, 4))
	require.ErrorIs(t, err, smi.ErrInvalidArgument)

	// Index beyond the 14-bit address field.
	err = e.Write(table.Vlan4K, 0x4000, make([]uint16, 3))
	require.ErrorIs(t, err, smi.ErrInvalidArgument)

	// Unknown kind.
	err = e.Read(table.Kind(9), 0, nil)
	require.ErrorIs(t, err, smi.ErrInvalidArgument)

	reads, writes := conn.Ops()
	require.Zero(t, reads)
	require.Zero(t, writes)
}

func TestCommandPreservesControlFields(t *testing.T) {
	conn := smitest.New()
	e := table.New(conn)

	// The method and source-port-mask fields share the control register
	// with the command and must survive it.
	conn.Poke(smi.Addr(0x0500), 0x0ff0)
	require.NoError(t, e.Write(table.Vlan4K, 3, []uint16{7, 8, 9}))
	require.Equal(t, uint16(0x0ff0), conn.Peek(smi.Addr(0x0500))&0x0ff0)

	got := make([]uint16, 3)
	require.NoError(t, e.Read(table.Vlan4K, 3, got))
	require.Equal(t, []uint16{7, 8, 9}, got)
	require.Equal(t, uint16(0x0ff0), conn.Peek(smi.Addr(0x0500))&0x0ff0)
}

func TestBusyNeverClears(t *testing.T) {
	conn := smitest.New()
	conn.Stuck[smi.Addr(0x0502)] = 1 << 13
	e := table.New(conn)

	err := e.Read(table.Vlan4K, 5, make([]uint16, 3))
	require.ErrorIs(t, err, smi.ErrTimeout)
}

func TestTransactionSeesOwnWrite(t *testing.T) {
	conn := smitest.New()
	e := table.New(conn)

	err := e.Do(func(tx table.Tx) error {
		row := []uint16{1, 2, 3}
		if err := tx.Write(table.Vlan4K, 7, row); err != nil {
			return err
		}
		got := make([]uint16, 3)
		if err := tx.Read(table.Vlan4K, 7, got); err != nil {
			return err
		}
		require.Equal(t, row, got)
		return nil
	})
	require.NoError(t, err)
}
