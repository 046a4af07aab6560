// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package console_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/lc3spec/console"
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

// run executes a command script in a directory holding the given files
// and returns everything the console printed.
func run(t *testing.T, s *lc3.Settings, files map[string]string, script string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	t.Chdir(dir)

	c := console.New(s)
	defer c.Close()

	var out strings.Builder
	c.RunCommands(strings.NewReader(script), &out, false)
	return out.String()
}

// memoryLine formats a line of memory get output.
func memoryLine(addr, value, label, info string) string {
	return strings.TrimRight(fmt.Sprintf("%s  %s  %-16s  %s", addr, value, label, info), " ") + "\n"
}

func TestRunProgram(t *testing.T) {
	out := run(t, lc3test.Settings(t), map[string]string{"count.asm": countSource}, `
assemble count
file count
breakpoint set LOOP
continue
register R0
breakpoint clear all
continue
register R0
register CC
memory get LOOP 2
`)

	assert.Contains(t, out, "Assembled 'count.asm' to 'count.obj'.")
	assert.Contains(t, out, "Loaded 'count.obj'.")
	assert.Contains(t, out, "Breakpoint set at LOOP.")
	assert.Contains(t, out, "R0 = x0000\n")
	assert.Contains(t, out, "All breakpoints cleared.")
	assert.Contains(t, out, "R0 = x0005\n")
	assert.Contains(t, out, "CC = POSITIVE\n")
	assert.Contains(t, out, memoryLine("x3003", "x1021", "LOOP", "ADD R0,R0,#1"))
	assert.Contains(t, out, memoryLine("x3004", "x127F", "", "ADD R1,R1,#-1"))
}

func TestRegisterAndMemory(t *testing.T) {
	out := run(t, lc3test.Settings(t), nil, `
register R3 #-1
register R3
register CC zero
register R9 x1
memory set x4000 #10
memory get x4000 1

memory
`)

	assert.Contains(t, out, "Register R3 set to xFFFF.")
	assert.Contains(t, out, "R3 = xFFFF\n")
	assert.Contains(t, out, "Register CC set to ZERO.")
	assert.Contains(t, out, lc3.ErrInvalidRegister.Error())
	assert.Contains(t, out, "Memory x4000 set to x000A.")
	assert.Contains(t, out, "x4000  x000A")

	// An empty line repeats the memory command after the displayed word.
	assert.Contains(t, out, "x4001  x0000\n")

	// A subtree name lists its commands.
	assert.Contains(t, out, "memory commands:")
	assert.Contains(t, out, "Display memory")
}

func TestStep(t *testing.T) {
	out := run(t, lc3test.Settings(t), map[string]string{"count.asm": countSource}, `
assemble count
file count
step 3
register R1
`)

	assert.Contains(t, out, "R1 = x0005\n")
	assert.Equal(t, 4, strings.Count(out, "R0=x0000"), out)
}

func TestContinueTimeout(t *testing.T) {
	s := lc3test.Settings(t)
	s.ContinueTimeout = 200 * time.Millisecond

	out := run(t, s, map[string]string{
		"spin.asm": "\t.ORIG x3000\nSPIN\tBR SPIN\n\t.END\n",
	}, `
assemble spin
file spin
continue
register PC
`)

	assert.Contains(t, out, "did not stop in time")
	assert.Contains(t, out, "The simulator will be restarted by the next command.")

	// The restarted simulator starts from its power-on state.
	assert.Contains(t, out, "PC = x0000\n")
}

func TestAssembleFailure(t *testing.T) {
	out := run(t, lc3test.Settings(t), map[string]string{
		"bad.asm": "\t.ORIG x3000\n\tFROB R9, R0\n\t.END\n",
	}, "assemble bad\n")

	assert.Contains(t, out, "does not assemble")
	_, err := os.Stat("bad.obj")
	assert.True(t, os.IsNotExist(err))
}

func TestSet(t *testing.T) {
	s := lc3test.Settings(t)
	out := run(t, s, nil, `
set continuetimeout 2s
set outputpollr 3
set debug true
set nosuch 1
set
`)

	assert.Equal(t, 3, strings.Count(out, "Setting updated."), out)
	assert.Contains(t, out, "Setting 'nosuch' not found")
	assert.Contains(t, out, "Variables:")
	assert.Equal(t, 2*time.Second, s.ContinueTimeout)
	assert.Equal(t, 3, s.OutputPollRetries)
	assert.True(t, s.Debug)
}

func TestHelpAndQuit(t *testing.T) {
	out := run(t, lc3test.Settings(t), nil, `
help
help step
frobnicate
quit
help
`)

	assert.Equal(t, 1, strings.Count(out, "lc3spec commands:"), out)
	assert.Contains(t, out, "Usage: step [<count>]")
	assert.Contains(t, out, "Shortcut: s\n")
	assert.Contains(t, out, "Command not found.")
}

func TestShortcuts(t *testing.T) {
	out := run(t, lc3test.Settings(t), map[string]string{"count.asm": countSource}, `
a count
file count
bp LOOP
c
r R0
bc all
c
r R0
help bp
`)

	assert.Contains(t, out, "Assembled 'count.asm' to 'count.obj'.")
	assert.Contains(t, out, "Breakpoint set at LOOP.")
	assert.Contains(t, out, "R0 = x0000\n")
	assert.Contains(t, out, "All breakpoints cleared.")
	assert.Contains(t, out, "R0 = x0005\n")
	assert.Contains(t, out, "Usage: breakpoint set <address>")
	assert.Contains(t, out, "Shortcut: bp\n")
}

func TestLabels(t *testing.T) {
	out := run(t, lc3test.Settings(t), map[string]string{"count.asm": countSource}, `
labels
assemble count
file count
labels
memory get DONE 1
breakpoint set
`)

	assert.Contains(t, out, "No labels.")
	assert.Contains(t, out, "Labels:\n    DONE             x3007\n    LOOP             x3003\n")
	assert.Contains(t, out, memoryLine("x3007", "xF025", "DONE", "TRAP x25"))

	// A command missing its arguments shows its usage.
	assert.Contains(t, out, "Usage: breakpoint set <address>\n")
}
