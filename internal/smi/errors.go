// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package smi

import "errors"

// Error taxonomy shared by every engine in the driver. Callers match with
// errors.Is; engines wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidArgument: out-of-range index or address, rejected before
	// any transaction is issued.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout: a busy flag did not clear within the poll budget.
	ErrTimeout = errors.New("busy poll timeout")

	// ErrIO: transport failure or a chip-reported fault bit.
	ErrIO = errors.New("i/o error")

	// ErrResourceExhausted: no free slot in a fixed-size hardware table.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrUnsupported: unrecognized chip or unsupported mode request.
	ErrUnsupported = errors.New("unsupported")
)
