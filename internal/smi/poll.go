// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smi

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Busy-poll pacing. The chip engines finish in a few microseconds; 10 us
// between reads with a 100 us budget matches the vendor protocol.
const (
	PollInterval = 10 * time.Microsecond
	PollBudget   = 100 * time.Microsecond
)

// PollClear reads a until v&mask == 0 or the poll budget is exhausted.
func PollClear(c Conn, a Addr, mask uint16) error {
	b := &backoff.Backoff{
		Min:    PollInterval,
		Max:    4 * PollInterval,
		Factor: 1.5,
	}
	deadline := time.Now().Add(PollBudget)
	for {
		v, err := c.Read(a)
		if err != nil {
			return err
		}
		if v&mask == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("register %#04x bits %#04x: %w",
				uint16(a), mask, ErrTimeout)
		}
		time.Sleep(b.Duration())
	}
}
