// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import "errors"

// Errors returned by the lc3 package.
var (
	ErrInvalidNumber        = errors.New("unable to normalize number")
	ErrInvalidRegister      = errors.New("invalid register")
	ErrInvalidValue         = errors.New("invalid value")
	ErrInvalidConditionCode = errors.New("CC can only be set to NEGATIVE, ZERO, or POSITIVE")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrTimeout              = errors.New("simulator did not stop in time")
	ErrClosed               = errors.New("simulator client is closed")
)

// A SimError reports an ERR line that terminated a simulator command.
type SimError struct {
	Msg string // the full ERR line
}

func (e *SimError) Error() string {
	return "simulator: " + e.Msg
}
