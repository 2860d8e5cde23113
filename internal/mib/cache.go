// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mib

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/log"
)

// PollInterval is how often a running port poller refreshes its stats.
const PollInterval = 3 * time.Second

// Stats is the derived per-port view computed from a consistent set of
// counters on each poll.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64

	RxDropped  uint64
	TxDropped  uint64
	Multicast  uint64
	Collisions uint64

	RxLengthErrors uint64
	RxCrcErrors    uint64
	RxErrors       uint64

	TxAbortedErrors uint64
	TxWindowErrors  uint64
	TxErrors        uint64
}

// Cache keeps per-port derived stats fresh with one poller goroutine per
// started port. Snapshot reads never touch hardware, so they are safe from
// contexts that must not block on the bus.
type Cache struct {
	reader *Reader

	// pub, when non-nil, receives "key: value" lines for each refreshed
	// field. Sends never block; a full channel drops the update.
	pub    chan<- string
	prefix string

	mu    sync.Mutex
	ports map[int]*portCache
}

type portCache struct {
	mu    sync.Mutex
	stats Stats

	stop chan struct{}
	done chan struct{}
}

func NewCache(reader *Reader, pub chan<- string, prefix string) *Cache {
	return &Cache{
		reader: reader,
		pub:    pub,
		prefix: prefix,
		ports:  make(map[int]*portCache),
	}
}

// Start begins polling port. The first refresh happens immediately so a
// port coming up has fresh stats without waiting out an interval. Starting
// a started port is a no-op.
func (c *Cache) Start(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.ports[port]
	if !ok {
		p = new(portCache)
		c.ports[port] = p
	}
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go c.poll(port, p, p.stop, p.done)
}

// Stop halts port's poller and waits for it to finish, so no refresh is in
// flight after Stop returns. The last snapshot remains readable.
func (c *Cache) Stop(port int) {
	c.mu.Lock()
	p := c.ports[port]
	var stop, done chan struct{}
	if p != nil && p.stop != nil {
		stop, done = p.stop, p.done
		p.stop = nil
		p.done = nil
	}
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// StopAll halts every running poller.
func (c *Cache) StopAll() {
	c.mu.Lock()
	ports := make([]int, 0, len(c.ports))
	for port := range c.ports {
		ports = append(ports, port)
	}
	c.mu.Unlock()
	for _, port := range ports {
		c.Stop(port)
	}
}

// Stats returns port's last refreshed snapshot without touching hardware.
func (c *Cache) Stats(port int) Stats {
	c.mu.Lock()
	p := c.ports[port]
	c.mu.Unlock()
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (c *Cache) poll(port int, p *portCache, stop, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(PollInterval)
	defer t.Stop()

	c.refresh(port, p)
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.refresh(port, p)
		}
	}
}

// refresh reads the counters the derived view needs and recomputes it. A
// read error discards the whole batch; the snapshot keeps its prior values
// rather than mixing counters from different polls.
func (c *Cache) refresh(port int, p *portCache) {
	cnt := map[Index]uint64{
		IfInOctets:              0,
		IfInUcastPkts:           0,
		IfInMulticastPkts:       0,
		IfInBroadcastPkts:       0,
		IfOutOctets:             0,
		IfOutUcastPkts:          0,
		IfOutMulticastPkts:      0,
		IfOutBroadcastPkts:      0,
		IfOutDiscards:           0,
		EtherStatsDropEvents:    0,
		EtherStatsCollisions:    0,
		EtherStatsFragments:     0,
		EtherStatsJabbers:       0,
		Dot3StatsFCSErrors:      0,
		Dot3StatsLateCollisions: 0,
	}
	if err := c.reader.readSome(port, cnt); err != nil {
		log.Print("err: port ", port, " stats refresh: ", err)
		return
	}

	var s Stats
	s.RxPackets = cnt[IfInUcastPkts] + cnt[IfInMulticastPkts] +
		cnt[IfInBroadcastPkts] - cnt[IfOutDiscards]
	s.TxPackets = cnt[IfOutUcastPkts] + cnt[IfOutMulticastPkts] +
		cnt[IfOutBroadcastPkts]

	// if{In,Out}Octets counts the FCS; back it out.
	s.RxBytes = cnt[IfInOctets] - 4*s.RxPackets
	s.TxBytes = cnt[IfOutOctets] - 4*s.TxPackets

	s.RxDropped = cnt[EtherStatsDropEvents]
	s.TxDropped = cnt[IfOutDiscards]
	s.Multicast = cnt[IfInMulticastPkts]
	s.Collisions = cnt[EtherStatsCollisions]

	s.RxLengthErrors = cnt[EtherStatsFragments] + cnt[EtherStatsJabbers]
	s.RxCrcErrors = cnt[Dot3StatsFCSErrors]
	s.RxErrors = s.RxLengthErrors + s.RxCrcErrors

	s.TxAbortedErrors = cnt[IfOutDiscards]
	s.TxWindowErrors = cnt[Dot3StatsLateCollisions]
	s.TxErrors = s.TxAbortedErrors + s.TxWindowErrors

	p.mu.Lock()
	p.stats = s
	p.mu.Unlock()

	c.publish(port, &s)
}

func (c *Cache) publish(port int, s *Stats) {
	if c.pub == nil {
		return
	}
	send := func(field string, v uint64) {
		select {
		case c.pub <- fmt.Sprint(c.prefix, port, ".", field,
			": ", v):
		default:
		}
	}
	send("rx.packets", s.RxPackets)
	send("tx.packets", s.TxPackets)
	send("rx.bytes", s.RxBytes)
	send("tx.bytes", s.TxBytes)
	send("rx.dropped", s.RxDropped)
	send("tx.dropped", s.TxDropped)
	send("multicast", s.Multicast)
	send("collisions", s.Collisions)
	send("rx.errors", s.RxErrors)
	send("tx.errors", s.TxErrors)
}
