// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package console implements an interactive command interpreter that
// drives an LC-3 simulator through an lc3.Client.
//
// Within the console it is possible to assemble and load programs, step
// and run them, set breakpoints, inspect and change registers and memory,
// and display the program's output. The simulator is started when the
// first command needing it is issued, and restarted after a continue that
// does not stop in time.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/cmd"
	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/lc3spec/sandbox"
	"github.com/k0kubun/pp/v3"
)

const memoryGetWords = 8

var errQuit = errors.New("Exiting program")

// A selection is a looked-up command and its arguments.
type selection struct {
	command *cmd.Command
	args    []string
}

// A Console reads commands and applies them to a simulator.
type Console struct {
	settings    *lc3.Settings
	client      *lc3.Client
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	lastCmd     *selection

	mu     sync.Mutex
	cancel context.CancelFunc // ends the running continue
}

// New creates a console using the given settings, or the default
// settings if s is nil.
func New(s *lc3.Settings) *Console {
	if s == nil {
		s = lc3.NewSettings()
	}
	return &Console{settings: s}
}

// RunCommands accepts console commands from a reader and outputs the
// results to a writer. If the commands are interactive, a prompt is
// displayed while the console waits for the next command. An empty line
// repeats the previous command. RunCommands returns when the input ends or
// a quit command is read.
func (c *Console) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	c.input = bufio.NewScanner(r)
	c.output = bufio.NewWriter(w)
	c.interactive = interactive

	for {
		c.prompt()

		line, err := c.getLine()
		if err != nil {
			break
		}

		var sel selection
		if strings.TrimSpace(line) != "" {
			n, args, err := cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				c.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				c.println("Command is ambiguous.")
				continue
			case err != nil:
				c.printf("ERROR: %v.\n", err)
				continue
			}

			// A subtree name lists the subtree's commands.
			cn, ok := n.(*cmd.Command)
			if !ok {
				n.DisplayHelp(c.output)
				c.flush()
				continue
			}
			sel = selection{command: cn, args: args}
		} else if c.lastCmd != nil {
			sel = *c.lastCmd
		}

		if sel.command == nil {
			continue
		}
		c.lastCmd = &sel

		handler := sel.command.Data.(func(*Console, selection) error)
		if err := handler(c, sel); err != nil {
			break
		}
	}
}

// Break interrupts a running continue command. The interrupted simulator
// is restarted by the next command that needs it.
func (c *Console) Break() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Close shuts down the simulator if it is running.
func (c *Console) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// sim returns the running simulator, starting it if necessary.
func (c *Console) sim() (*lc3.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	client, err := lc3.New(context.Background(), c.settings)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// restartIfUnusable drops a client that can no longer process commands
// so the next command starts a new simulator.
func (c *Console) restartIfUnusable(err error) {
	if errors.Is(err, lc3.ErrClosed) || errors.Is(err, lc3.ErrTimeout) ||
		errors.Is(err, context.Canceled) {
		c.Close()
		c.println("The simulator will be restarted by the next command.")
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.output, format, args...)
	c.flush()
}

func (c *Console) println(args ...any) {
	fmt.Fprintln(c.output, args...)
	c.flush()
}

func (c *Console) flush() {
	c.output.Flush()
}

func (c *Console) getLine() (string, error) {
	if c.input.Scan() {
		return c.input.Text(), nil
	}
	if c.input.Err() != nil {
		return "", c.input.Err()
	}
	return "", io.EOF
}

func (c *Console) prompt() {
	if c.interactive {
		c.printf("* ")
	}
}

// report prints a command failure and keeps the console running.
func (c *Console) report(err error) error {
	c.printf("%v\n", err)
	c.restartIfUnusable(err)
	return nil
}

func (c *Console) displayRegisters() {
	if c.client != nil {
		c.println(c.client.String())
	}
}

func (c *Console) cmdHelp(sel selection) error {
	if err := cmds.GetHelp(c.output, sel.args); err != nil {
		c.printf("%v\n", err)
		return nil
	}
	c.flush()
	return nil
}

func (c *Console) cmdAssemble(sel selection) error {
	if len(sel.args) < 1 {
		c.displayUsage(sel)
		return nil
	}

	filename := sel.args[0]
	if filepath.Ext(filename) == "" {
		filename += ".asm"
	}

	if err := sandbox.RunAssembler(context.Background(), c.settings, "", filename); err != nil {
		c.printf("%v\n", err)
		return nil
	}
	c.printf("Assembled '%s' to '%s'.\n", filename,
		strings.TrimSuffix(filename, filepath.Ext(filename))+".obj")
	return nil
}

func (c *Console) cmdBreakpointSet(sel selection) error {
	if len(sel.args) < 1 {
		c.displayUsage(sel)
		return nil
	}
	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}
	if err := sim.SetBreakpoint(sel.args[0]); err != nil {
		return c.report(err)
	}
	c.printf("Breakpoint set at %s.\n", sel.args[0])
	return nil
}

func (c *Console) cmdBreakpointClear(sel selection) error {
	if len(sel.args) < 1 {
		c.displayUsage(sel)
		return nil
	}
	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}
	if err := sim.ClearBreakpoint(sel.args[0]); err != nil {
		return c.report(err)
	}
	if strings.EqualFold(sel.args[0], lc3.AllBreakpoints) {
		c.println("All breakpoints cleared.")
	} else {
		c.printf("Breakpoint at %s cleared.\n", sel.args[0])
	}
	return nil
}

func (c *Console) cmdContinue(sel selection) error {
	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}

	c.printf("Running for up to %v. Press ctrl-C to break.\n", c.settings.ContinueTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), c.settings.ContinueTimeout)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	if err := sim.ContinueContext(ctx); err != nil {
		return c.report(err)
	}
	c.displayRegisters()
	return nil
}

func (c *Console) cmdFile(sel selection) error {
	if len(sel.args) < 1 {
		c.displayUsage(sel)
		return nil
	}

	filename := sel.args[0]
	if filepath.Ext(filename) == ".obj" {
		filename = strings.TrimSuffix(filename, ".obj")
	}

	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}
	if err := sim.File(filename); err != nil {
		return c.report(err)
	}
	c.printf("Loaded '%s.obj'.\n", filename)
	c.displayRegisters()
	return nil
}

func (c *Console) cmdLabels(sel selection) error {
	var names []string
	if c.client != nil {
		names = c.client.Labels()
	}
	if len(names) == 0 {
		c.println("No labels.")
		return nil
	}

	c.println("Labels:")
	for _, name := range names {
		addr, _ := c.client.Address(name)
		c.printf("    %-16s %s\n", name, addr)
	}
	return nil
}

func (c *Console) cmdMemoryGet(sel selection) error {
	if len(sel.args) < 1 {
		c.displayUsage(sel)
		return nil
	}

	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}

	start := sel.args[0]
	if a, ok := sim.Address(start); ok {
		start = a
	}
	addr, err := lc3.ParseWord(start)
	if err != nil {
		c.printf("%v\n", err)
		return nil
	}

	count, err := parseCount(sel.args, 1, memoryGetWords)
	if err != nil {
		c.printf("%v\n", err)
		return nil
	}

	for i := 0; i < count; i++ {
		a := addr + lc3.Word(i)
		cell, ok := sim.Cell(a)
		if !ok {
			cell.Value = lc3.Zero
		}
		label, _ := sim.Label(a)
		line := fmt.Sprintf("%s  %s  %-16s  %s", a, cell.Value, label, cell.Info)
		c.println(strings.TrimRight(line, " "))
	}

	// Repeating the command continues after the displayed words.
	c.lastCmd.args = []string{(addr + lc3.Word(count)).String(), fmt.Sprintf("%d", count)}
	return nil
}

func (c *Console) cmdMemorySet(sel selection) error {
	if len(sel.args) < 2 {
		c.displayUsage(sel)
		return nil
	}

	v, err := parseValue(sel.args[1])
	if err != nil {
		c.printf("%v\n", err)
		return nil
	}

	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}
	if err := sim.SetMemory(sel.args[0], v); err != nil {
		return c.report(err)
	}
	actual, _ := sim.Memory(sel.args[0])
	c.printf("Memory %s set to %s.\n", sel.args[0], actual)
	return nil
}

func (c *Console) cmdOutput(sel selection) error {
	if c.client == nil {
		c.println("No output.")
		return nil
	}

	out, err := c.client.Output()
	if err != nil {
		return c.report(err)
	}
	if out == "" {
		c.println("No output.")
		return nil
	}
	c.printf("%s", out)
	if !strings.HasSuffix(out, "\n") {
		c.println()
	}
	return nil
}

func (c *Console) cmdQuit(sel selection) error {
	return errQuit
}

func (c *Console) cmdRegister(sel selection) error {
	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}

	switch len(sel.args) {
	case 0:
		c.displayRegisters()

	case 1:
		v, err := sim.Register(sel.args[0])
		if err != nil {
			c.printf("%v\n", err)
			return nil
		}
		c.printf("%s = %s\n", strings.ToUpper(sel.args[0]), v)

	default:
		value := sel.args[1]
		if i, ok := lc3.RegisterIndex(sel.args[0]); ok && i == lc3.CC {
			value = strings.ToUpper(value)
		}
		v, err := parseValue(value)
		if err != nil {
			c.printf("%v\n", err)
			return nil
		}
		if err := sim.SetRegister(sel.args[0], v); err != nil {
			return c.report(err)
		}
		actual, _ := sim.Register(sel.args[0])
		c.printf("Register %s set to %s.\n", strings.ToUpper(sel.args[0]), actual)
	}
	return nil
}

func (c *Console) cmdSet(sel selection) error {
	switch len(sel.args) {
	case 0:
		c.println("Variables:")
		c.settings.Display(c.output)
		c.flush()

	case 1:
		c.displayUsage(sel)

	default:
		key, value := strings.ToLower(sel.args[0]), strings.Join(sel.args[1:], " ")

		var err error
		switch c.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("Setting '%s' not found", key)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = c.settings.Set(key, v)
			}
		case reflect.Int:
			var n int
			n, err = strconv.Atoi(value)
			if err == nil {
				err = c.settings.Set(key, n)
			}
		default:
			err = c.settings.Set(key, value)
		}

		if err == nil {
			c.println("Setting updated.")
		} else {
			c.printf("%v\n", err)
		}
	}
	return nil
}

func (c *Console) cmdState(sel selection) error {
	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}

	printer := pp.New()
	printer.SetColoringEnabled(c.interactive)
	printer.Fprintln(c.output, sim.State())
	c.flush()
	return nil
}

func (c *Console) cmdStep(sel selection) error {
	count, err := parseCount(sel.args, 0, 1)
	if err != nil {
		c.printf("%v\n", err)
		return nil
	}

	sim, err := c.sim()
	if err != nil {
		return c.report(err)
	}

	start := time.Now()
	for i := 0; i < count; i++ {
		if err := sim.Step(); err != nil {
			return c.report(err)
		}
		if i >= count-1 || count <= 3 {
			c.displayRegisters()
		}
	}
	if count > 3 {
		c.printf("Stepped %d instructions in %v.\n", count, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func (c *Console) displayUsage(sel selection) {
	sel.command.DisplayUsage(c.output)
	c.flush()
}
