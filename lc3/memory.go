// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"sort"
	"strings"
)

// A Cell is one mirrored memory location.
type Cell struct {
	Value string // canonical word value
	Info  string // disassembly text reported by the simulator
}

// Memory is a sparse mirror of the simulator's 16-bit address space.
// Untouched addresses read as x0000.
type Memory struct {
	cells map[Word]Cell
}

// NewMemory creates an empty memory mirror.
func NewMemory() *Memory {
	return &Memory{cells: make(map[Word]Cell)}
}

// Load returns the canonical value stored at the address.
func (m *Memory) Load(addr Word) string {
	if c, ok := m.cells[addr]; ok {
		return c.Value
	}
	return Zero
}

// Cell returns the mirrored cell at the address, if any value was
// reported for it.
func (m *Memory) Cell(addr Word) (Cell, bool) {
	c, ok := m.cells[addr]
	return c, ok
}

// Store records a value and its disassembly at the address.
func (m *Memory) Store(addr Word, value Word, info string) {
	m.cells[addr] = Cell{Value: value.String(), Info: info}
}

// Labels maps uppercase symbol names to the addresses they denote.
type Labels struct {
	addrs map[string]Word
}

// NewLabels creates an empty label table.
func NewLabels() *Labels {
	return &Labels{addrs: make(map[string]Word)}
}

// Insert binds a label to an address unless the label is already bound.
// It reports whether the table changed.
func (l *Labels) Insert(label string, addr Word) bool {
	label = strings.ToUpper(label)
	if _, ok := l.addrs[label]; ok {
		return false
	}
	l.addrs[label] = addr
	return true
}

// Address returns the address bound to the label.
func (l *Labels) Address(label string) (Word, bool) {
	a, ok := l.addrs[strings.ToUpper(label)]
	return a, ok
}

// Label returns the first label, in name order, bound to the address.
func (l *Labels) Label(addr Word) (string, bool) {
	for _, name := range l.Names() {
		if l.addrs[name] == addr {
			return name, true
		}
	}
	return "", false
}

// Names returns all labels in sorted order.
func (l *Labels) Names() []string {
	names := make([]string, 0, len(l.addrs))
	for n := range l.addrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
