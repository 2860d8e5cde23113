// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mib

// Index names a hardware MIB counter.
type Index int

const (
	IfInOctets Index = iota
	Dot3StatsFCSErrors
	Dot3StatsSymbolErrors
	Dot3InPauseFrames
	Dot3ControlInUnknownOpcodes
	EtherStatsFragments
	EtherStatsJabbers
	IfInUcastPkts
	EtherStatsDropEvents
	IfInMulticastPkts
	IfInBroadcastPkts
	InMldChecksumError
	InIgmpChecksumError
	InMldSpecificQuery
	InMldGeneralQuery
	InIgmpSpecificQuery
	InIgmpGeneralQuery
	InMldLeaves
	InIgmpLeaves
	EtherStatsOctets
	EtherStatsUnderSizePkts
	EtherOversizeStats
	EtherStatsPkts64Octets
	EtherStatsPkts65to127Octets
	EtherStatsPkts128to255Octets
	EtherStatsPkts256to511Octets
	EtherStatsPkts512to1023Octets
	EtherStatsPkts1024to1518Octets
	IfOutOctets
	Dot3StatsSingleCollisionFrames
	Dot3StatsMultipleCollisionFrames
	Dot3StatsDeferredTransmissions
	Dot3StatsLateCollisions
	EtherStatsCollisions
	Dot3StatsExcessiveCollisions
	Dot3OutPauseFrames
	IfOutDiscards
	Dot1dTpPortInDiscards
	IfOutUcastPkts
	IfOutMulticastPkts
	IfOutBroadcastPkts
	OutOampduPkts
	InOampduPkts
	InIgmpJoinsSuccess
	InIgmpJoinsFail
	InMldJoinsSuccess
	InMldJoinsFail
	InReportSuppressionDrop
	InLeaveSuppressionDrop
	OutIgmpReports
	OutIgmpLeaves
	OutIgmpGeneralQuery
	OutIgmpSpecificQuery
	OutMldReports
	OutMldLeaves
	OutMldGeneralQuery
	OutMldSpecificQuery
	InKnownMulticastPkts

	NumCounters
)

// Counter describes a counter's location in the per-port SRAM window.
// Offset is in 16-bit words; Length is 2 or 4 words.
type Counter struct {
	Name   string
	Offset int
	Length int
}

// Counters is the chip's per-port counter catalog, in SRAM order.
var Counters = [NumCounters]Counter{
	IfInOctets:                       {"ifInOctets", 0, 4},
	Dot3StatsFCSErrors:               {"dot3StatsFCSErrors", 4, 2},
	Dot3StatsSymbolErrors:            {"dot3StatsSymbolErrors", 6, 2},
	Dot3InPauseFrames:                {"dot3InPauseFrames", 8, 2},
	Dot3ControlInUnknownOpcodes:      {"dot3ControlInUnknownOpcodes", 10, 2},
	EtherStatsFragments:              {"etherStatsFragments", 12, 2},
	EtherStatsJabbers:                {"etherStatsJabbers", 14, 2},
	IfInUcastPkts:                    {"ifInUcastPkts", 16, 2},
	EtherStatsDropEvents:             {"etherStatsDropEvents", 18, 2},
	IfInMulticastPkts:                {"ifInMulticastPkts", 20, 2},
	IfInBroadcastPkts:                {"ifInBroadcastPkts", 22, 2},
	InMldChecksumError:               {"inMldChecksumError", 24, 2},
	InIgmpChecksumError:              {"inIgmpChecksumError", 26, 2},
	InMldSpecificQuery:               {"inMldSpecificQuery", 28, 2},
	InMldGeneralQuery:                {"inMldGeneralQuery", 30, 2},
	InIgmpSpecificQuery:              {"inIgmpSpecificQuery", 32, 2},
	InIgmpGeneralQuery:               {"inIgmpGeneralQuery", 34, 2},
	InMldLeaves:                      {"inMldLeaves", 36, 2},
	InIgmpLeaves:                     {"inIgmpLeaves", 38, 2},
	EtherStatsOctets:                 {"etherStatsOctets", 40, 4},
	EtherStatsUnderSizePkts:          {"etherStatsUnderSizePkts", 44, 2},
	EtherOversizeStats:               {"etherOversizeStats", 46, 2},
	EtherStatsPkts64Octets:           {"etherStatsPkts64Octets", 48, 2},
	EtherStatsPkts65to127Octets:      {"etherStatsPkts65to127Octets", 50, 2},
	EtherStatsPkts128to255Octets:     {"etherStatsPkts128to255Octets", 52, 2},
	EtherStatsPkts256to511Octets:     {"etherStatsPkts256to511Octets", 54, 2},
	EtherStatsPkts512to1023Octets:    {"etherStatsPkts512to1023Octets", 56, 2},
	EtherStatsPkts1024to1518Octets:   {"etherStatsPkts1024to1518Octets", 58, 2},
	IfOutOctets:                      {"ifOutOctets", 60, 4},
	Dot3StatsSingleCollisionFrames:   {"dot3StatsSingleCollisionFrames", 64, 2},
	Dot3StatsMultipleCollisionFrames: {"dot3StatsMultipleCollisionFrames", 66, 2},
	Dot3StatsDeferredTransmissions:   {"dot3StatsDeferredTransmissions", 68, 2},
	Dot3StatsLateCollisions:          {"dot3StatsLateCollisions", 70, 2},
	EtherStatsCollisions:             {"etherStatsCollisions", 72, 2},
	Dot3StatsExcessiveCollisions:     {"dot3StatsExcessiveCollisions", 74, 2},
	Dot3OutPauseFrames:               {"dot3OutPauseFrames", 76, 2},
	IfOutDiscards:                    {"ifOutDiscards", 78, 2},
	Dot1dTpPortInDiscards:            {"dot1dTpPortInDiscards", 80, 2},
	IfOutUcastPkts:                   {"ifOutUcastPkts", 82, 2},
	IfOutMulticastPkts:               {"ifOutMulticastPkts", 84, 2},
	IfOutBroadcastPkts:               {"ifOutBroadcastPkts", 86, 2},
	OutOampduPkts:                    {"outOampduPkts", 88, 2},
	InOampduPkts:                     {"inOampduPkts", 90, 2},
	InIgmpJoinsSuccess:               {"inIgmpJoinsSuccess", 92, 4},
	InIgmpJoinsFail:                  {"inIgmpJoinsFail", 96, 2},
	InMldJoinsSuccess:                {"inMldJoinsSuccess", 98, 2},
	InMldJoinsFail:                   {"inMldJoinsFail", 100, 2},
	InReportSuppressionDrop:          {"inReportSuppressionDrop", 102, 2},
	InLeaveSuppressionDrop:           {"inLeaveSuppressionDrop", 104, 2},
	OutIgmpReports:                   {"outIgmpReports", 106, 2},
	OutIgmpLeaves:                    {"outIgmpLeaves", 108, 2},
	OutIgmpGeneralQuery:              {"outIgmpGeneralQuery", 110, 2},
	OutIgmpSpecificQuery:             {"outIgmpSpecificQuery", 112, 2},
	OutMldReports:                    {"outMldReports", 114, 2},
	OutMldLeaves:                     {"outMldLeaves", 116, 2},
	OutMldGeneralQuery:               {"outMldGeneralQuery", 118, 2},
	OutMldSpecificQuery:              {"outMldSpecificQuery", 120, 2},
	InKnownMulticastPkts:             {"inKnownMulticastPkts", 122, 2},
}

func (i Index) String() string {
	if i < 0 || i >= NumCounters {
		return "mib(?)"
	}
	return Counters[i].Name
}
