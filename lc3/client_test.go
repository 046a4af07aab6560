// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/lc3spec/lc3/lc3test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lc3test.Main(m)
}

const countSource = `
	.ORIG x3000
	AND R0, R0, #0
	AND R1, R1, #0
	ADD R1, R1, #5
LOOP	ADD R0, R0, #1
	ADD R1, R1, #-1
	BRp LOOP
	ADD R0, R0, #0
DONE	HALT
	.END
`

const helloSource = `
	.ORIG x3000
	LEA R0, MSG
	PUTS
	HALT
MSG	.STRINGZ "Hi"
	.END
`

const spinSource = `
	.ORIG x3000
SPIN	BRnzp SPIN
	.END
`

// assemble writes source to dir/name.asm and assembles it.
func assemble(t *testing.T, dir, name, source string) {
	t.Helper()
	path := filepath.Join(dir, name+".asm")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	require.NoError(t, lc3test.AssembleFile(path))
}

func newClient(t *testing.T) (*lc3.Client, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := lc3.New(context.Background(), lc3test.Settings(t),
		lc3.WithDir(dir), lc3.WithLogOutput(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func expectRegister(t *testing.T, c *lc3.Client, name, exp string) {
	t.Helper()
	got, err := c.Register(name)
	require.NoError(t, err)
	assert.Equal(t, exp, got, "register %s", name)
}

func expectMemory(t *testing.T, c *lc3.Client, addr any, exp string) {
	t.Helper()
	got, err := c.Memory(addr)
	require.NoError(t, err)
	assert.Equal(t, exp, got, "memory at %v", addr)
}

func TestClientStartup(t *testing.T) {
	c, _ := newClient(t)

	for _, r := range []string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "PC", "IR", "PSR"} {
		expectRegister(t, c, r, lc3.Zero)
	}
	expectRegister(t, c, "CC", lc3.ZeroCC)

	addr, ok := c.Address("os_start")
	assert.True(t, ok)
	assert.Equal(t, "x0200", addr)
	_, ok = c.Address("MY_LITTLE_PONY")
	assert.False(t, ok)

	expectMemory(t, c, "OS_START", "xE002")
	expectMemory(t, c, "x0448", lc3.Zero)
	expectMemory(t, c, "x6EAD", lc3.Zero)
	expectMemory(t, c, 0xfff0, lc3.Zero)

	out, err := c.Output()
	require.NoError(t, err)
	assert.Empty(t, out, "startup output should be drained")
}

func TestClientSetRegister(t *testing.T) {
	c, _ := newClient(t)

	values := map[string]any{
		"R0": "x1234", "R3": -2, "R7": 0x7fff, "PC": "3000", "IR": "0xabcd", "PSR": "x8002",
	}
	for name, v := range values {
		require.NoError(t, c.SetRegister(name, v))
		exp, err := lc3.Normalize(v)
		require.NoError(t, err)
		expectRegister(t, c, name, exp)
	}

	require.NoError(t, c.SetRegister("cc", lc3.Positive))
	expectRegister(t, c, "CC", lc3.Positive)

	for _, v := range []any{"xABCD", 5, "hello", "positive"} {
		err := c.SetRegister("CC", v)
		assert.ErrorIs(t, err, lc3.ErrInvalidConditionCode, "CC value %v", v)
	}
	assert.ErrorIs(t, c.SetRegister("CC", nil), lc3.ErrInvalidValue)
	assert.ErrorIs(t, c.SetRegister("R1", nil), lc3.ErrInvalidValue)
	assert.ErrorIs(t, c.SetRegister("R1", "hello"), lc3.ErrInvalidValue)
	assert.ErrorIs(t, c.SetRegister("R8", "x0001"), lc3.ErrInvalidRegister)

	_, err := c.Register("EAX")
	assert.ErrorIs(t, err, lc3.ErrInvalidRegister)
	expectRegister(t, c, "CC", lc3.Positive)
}

func TestClientSetMemory(t *testing.T) {
	c, _ := newClient(t)

	require.NoError(t, c.SetMemory("x6000", "x1234"))
	require.NoError(t, c.SetMemory(0x7700, "xABCD"))
	require.NoError(t, c.SetMemory("TRAP_HALT", "xCAFE"))
	expectMemory(t, c, "x6000", "x1234")
	expectMemory(t, c, "x7700", "xABCD")
	expectMemory(t, c, "x048E", "xCAFE")

	// A value naming a label stores the label's address.
	require.NoError(t, c.SetMemory("x6000", "TRAP_HALT"))
	require.NoError(t, c.SetMemory("OS_R0", "os_start"))
	expectMemory(t, c, "x6000", "x048E")
	expectMemory(t, c, "x0447", "x0200")

	for _, addr := range []any{"NONEXISTENT_LABEL", "x20302", c} {
		assert.ErrorIs(t, c.SetMemory(addr, "xDEAD"), lc3.ErrInvalidAddress)
		_, err := c.Memory(addr)
		assert.ErrorIs(t, err, lc3.ErrInvalidAddress)
	}
	for _, v := range []any{"foobar", c, nil} {
		assert.ErrorIs(t, c.SetMemory("x6000", v), lc3.ErrInvalidValue)
	}
}

func TestClientStep(t *testing.T) {
	c, _ := newClient(t)

	require.NoError(t, c.SetRegister("PC", "xA000"))
	expectRegister(t, c, "PC", "xA000")

	require.NoError(t, c.Step())
	expectRegister(t, c, "PC", "xA001")

	require.NoError(t, c.Step())
	expectRegister(t, c, "PC", "xA002")
}

func TestClientCountToFive(t *testing.T) {
	c, dir := newClient(t)
	assemble(t, dir, "count", countSource)

	require.NoError(t, c.File("count"))
	expectRegister(t, c, "PC", "x3000")
	expectMemory(t, c, "LOOP", "x1021")

	require.NoError(t, c.Continue())
	expectRegister(t, c, "R0", "x0005")
	expectRegister(t, c, "CC", lc3.Positive)

	state := c.State()
	assert.Equal(t, "x3003", state.Labels["LOOP"])
	assert.Equal(t, "x0005", state.Registers["R0"])
	assert.Contains(t, c.String(), "R0=x0005")

	labels := c.Labels()
	assert.Contains(t, labels, "LOOP")
	assert.Contains(t, labels, "DONE")
	assert.IsIncreasing(t, labels)

	name, ok := c.Label(0x3003)
	assert.True(t, ok)
	assert.Equal(t, "LOOP", name)
	_, ok = c.Label(0x3004)
	assert.False(t, ok)

	cell, ok := c.Cell(0x3003)
	require.True(t, ok)
	assert.Equal(t, "x1021", cell.Value)
	assert.Equal(t, "ADD R0,R0,#1", cell.Info)
}

func TestClientBreakpoints(t *testing.T) {
	c, dir := newClient(t)
	assemble(t, dir, "count", countSource)
	require.NoError(t, c.File("count"))

	loop, ok := c.Address("LOOP")
	require.True(t, ok)
	done, ok := c.Address("DONE")
	require.True(t, ok)

	require.NoError(t, c.SetBreakpoint("LOOP"))
	require.NoError(t, c.Continue())
	expectRegister(t, c, "PC", loop)
	expectRegister(t, c, "R0", lc3.Zero)

	// Continuing from a breakpoint runs to the next visit.
	require.NoError(t, c.Continue())
	expectRegister(t, c, "PC", loop)
	expectRegister(t, c, "R0", "x0001")

	require.NoError(t, c.ClearBreakpoint("loop"))
	require.NoError(t, c.Continue())
	expectRegister(t, c, "PC", done)
	expectRegister(t, c, "R0", "x0005")

	require.NoError(t, c.SetBreakpoint("x3005"))
	require.NoError(t, c.SetBreakpoint(0x3006))
	require.NoError(t, c.ClearBreakpoints())
	require.NoError(t, c.SetRegister("PC", "x3000"))
	require.NoError(t, c.Continue())
	expectRegister(t, c, "PC", done)

	assert.ErrorIs(t, c.SetBreakpoint("NOWHERE"), lc3.ErrInvalidAddress)
}

func TestClientOutput(t *testing.T) {
	c, dir := newClient(t)
	assemble(t, dir, "hello", helloSource)
	require.NoError(t, c.File("hello"))
	require.NoError(t, c.Continue())

	out, err := c.Output()
	require.NoError(t, err)
	assert.Equal(t, "Hi", out)

	out, err = c.Output()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClientContinueTimeout(t *testing.T) {
	c, dir := newClient(t)
	assemble(t, dir, "spin", spinSource)
	require.NoError(t, c.File("spin"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.ContinueContext(ctx)
	assert.ErrorIs(t, err, lc3.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	// The client cannot be trusted after an abandoned command.
	err = c.Step()
	assert.ErrorIs(t, err, lc3.ErrClosed)
	assert.ErrorIs(t, err, lc3.ErrTimeout)

	start = time.Now()
	c.Close()
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientFileErrors(t *testing.T) {
	c, dir := newClient(t)

	err := c.File("missing")
	var simErr *lc3.SimError
	require.True(t, errors.As(err, &simErr), "got %v", err)
	assert.Contains(t, simErr.Msg, "ERR")

	// A missing symbol table is only a warning.
	assemble(t, dir, "count", countSource)
	require.NoError(t, os.Remove(filepath.Join(dir, "count.sym")))
	require.NoError(t, c.File("count"))
	expectMemory(t, c, "x3002", "x1265")
	_, ok := c.Address("LOOP")
	assert.False(t, ok)

	// The client is still usable after a failed load.
	require.NoError(t, c.SetRegister("R2", "x0002"))
	expectRegister(t, c, "R2", "x0002")
}

func TestClientLabelFirstWriteWins(t *testing.T) {
	c, dir := newClient(t)
	assemble(t, dir, "first", ".ORIG x3000\nFOO .FILL x0001\n.END\n")
	assemble(t, dir, "second", ".ORIG x4000\nFOO .FILL x0002\n.END\n")

	require.NoError(t, c.File("first"))
	require.NoError(t, c.File("second.obj"))

	addr, ok := c.Address("FOO")
	require.True(t, ok)
	assert.Equal(t, "x3000", addr)
	expectMemory(t, c, "FOO", "x0001")
	expectMemory(t, c, "x4000", "x0002")
}

func TestClientClose(t *testing.T) {
	c, _ := newClient(t)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	assert.ErrorIs(t, c.Step(), lc3.ErrClosed)
	assert.ErrorIs(t, c.SetRegister("R0", 1), lc3.ErrClosed)
	_, err := c.Output()
	assert.ErrorIs(t, err, lc3.ErrClosed)

	// The mirror stays readable.
	expectRegister(t, c, "CC", lc3.ZeroCC)
}

func TestClientStartFailure(t *testing.T) {
	s := lc3test.Settings(t)
	s.Simulator = filepath.Join(t.TempDir(), "no-such-simulator")

	_, err := lc3.New(context.Background(), s, lc3.WithLogOutput(io.Discard))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no-such-simulator"), "got %v", err)
}
