// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mib

// MacStats is the IEEE 802.3 managed-object view of a port's MAC. The chip
// exposes MIB objects; the translation follows RFC 3635 where it can.
type MacStats struct {
	FramesTransmittedOK         uint64
	SingleCollisionFrames       uint64
	MultipleCollisionFrames     uint64
	FramesReceivedOK            uint64
	FrameCheckSequenceErrors    uint64
	OctetsTransmittedOK         uint64
	FramesWithDeferredXmissions uint64
	LateCollisions              uint64
	FramesAbortedDueToXSColls   uint64
	OctetsReceivedOK            uint64
	MulticastFramesXmittedOK    uint64
	BroadcastFramesXmittedOK    uint64
	MulticastFramesReceivedOK   uint64
	BroadcastFramesReceivedOK   uint64
}

// MacStats reads the counters behind the 802.3 MAC view in one pass.
func (r *Reader) MacStats(port int) (MacStats, error) {
	var s MacStats
	cnt := map[Index]uint64{
		IfOutOctets:                      0,
		IfOutUcastPkts:                   0,
		IfOutMulticastPkts:               0,
		IfOutBroadcastPkts:               0,
		Dot3OutPauseFrames:               0,
		IfOutDiscards:                    0,
		IfInOctets:                       0,
		IfInUcastPkts:                    0,
		IfInMulticastPkts:                0,
		IfInBroadcastPkts:                0,
		Dot3InPauseFrames:                0,
		Dot3StatsSingleCollisionFrames:   0,
		Dot3StatsMultipleCollisionFrames: 0,
		Dot3StatsFCSErrors:               0,
		Dot3StatsDeferredTransmissions:   0,
		Dot3StatsLateCollisions:          0,
		Dot3StatsExcessiveCollisions:     0,
	}
	if err := r.readSome(port, cnt); err != nil {
		return s, err
	}

	s.FramesTransmittedOK = cnt[IfOutUcastPkts] + cnt[IfOutMulticastPkts] +
		cnt[IfOutBroadcastPkts] + cnt[Dot3OutPauseFrames] -
		cnt[IfOutDiscards]
	s.SingleCollisionFrames = cnt[Dot3StatsSingleCollisionFrames]
	s.MultipleCollisionFrames = cnt[Dot3StatsMultipleCollisionFrames]
	s.FramesReceivedOK = cnt[IfInUcastPkts] + cnt[IfInMulticastPkts] +
		cnt[IfInBroadcastPkts] + cnt[Dot3InPauseFrames]
	s.FrameCheckSequenceErrors = cnt[Dot3StatsFCSErrors]
	// The octet objects count payload only; back out 18 bytes of header
	// and FCS per frame.
	s.OctetsTransmittedOK = cnt[IfOutOctets] - 18*s.FramesTransmittedOK
	s.FramesWithDeferredXmissions = cnt[Dot3StatsDeferredTransmissions]
	s.LateCollisions = cnt[Dot3StatsLateCollisions]
	s.FramesAbortedDueToXSColls = cnt[Dot3StatsExcessiveCollisions]
	s.OctetsReceivedOK = cnt[IfInOctets] - 18*s.FramesReceivedOK
	s.MulticastFramesXmittedOK = cnt[IfOutMulticastPkts]
	s.BroadcastFramesXmittedOK = cnt[IfOutBroadcastPkts]
	s.MulticastFramesReceivedOK = cnt[IfInMulticastPkts]
	s.BroadcastFramesReceivedOK = cnt[IfInBroadcastPkts]
	return s, nil
}

// SymbolErrors is the 802.3 PHY view: symbol errors during carrier.
func (r *Reader) SymbolErrors(port int) (uint64, error) {
	return r.Read(port, Dot3StatsSymbolErrors)
}

// UnknownOpcodes is the 802.3 MAC control view: received control frames
// with an unsupported opcode.
func (r *Reader) UnknownOpcodes(port int) (uint64, error) {
	return r.Read(port, Dot3ControlInUnknownOpcodes)
}
