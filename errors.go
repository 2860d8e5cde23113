// Copyright 2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8365mb

import "github.com/platinasystems/rtl8365mb/internal/smi"

// Sentinel errors returned, possibly wrapped, by every operation in this
// module. Match with errors.Is.
var (
	ErrInvalidArgument   = smi.ErrInvalidArgument
	ErrTimeout           = smi.ErrTimeout
	ErrIO                = smi.ErrIO
	ErrResourceExhausted = smi.ErrResourceExhausted
	ErrUnsupported       = smi.ErrUnsupported
)
