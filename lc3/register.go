// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import "strings"

// Register numbers as reported by the simulator's REG messages.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	PC  // program counter
	IR  // instruction register
	PSR // processor status register
	CC  // condition code

	NumRegisters
)

// Condition code values held by the CC register.
const (
	Negative = "NEGATIVE"
	ZeroCC   = "ZERO"
	Positive = "POSITIVE"
)

var registerNames = [NumRegisters]string{
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "PC", "IR", "PSR", "CC",
}

// Registers contains the mirrored state of all LC-3 registers. Numeric
// registers hold canonical word strings; CC holds one of NEGATIVE, ZERO or
// POSITIVE.
type Registers [NumRegisters]string

// Init resets every numeric register to x0000 and CC to ZERO.
func (r *Registers) Init() {
	for i := range r {
		r[i] = Zero
	}
	r[CC] = ZeroCC
}

// Get returns the value of the named register.
func (r *Registers) Get(name string) (string, bool) {
	i, ok := RegisterIndex(name)
	if !ok {
		return "", false
	}
	return r[i], true
}

// RegisterIndex returns the register number for a register name such as
// "R3", "pc" or "CC".
func RegisterIndex(name string) (int, bool) {
	name = strings.ToUpper(name)
	for i, n := range registerNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func isConditionCode(v string) bool {
	switch v {
	case Negative, ZeroCC, Positive:
		return true
	default:
		return false
	}
}
