// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lc3 drives an external LC-3 simulator through its line-oriented
// protocol.
//
// A Client launches the simulator, announces the port of a local output
// socket, waits for the simulator to connect back to it, and then issues
// commands over the simulator's standard input. Every reply line is parsed
// into a local mirror of the simulator's registers, memory and symbol
// table, so register and memory reads never round-trip to the simulator.
// Each command blocks until the reply line that terminates it arrives.
package lc3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// AllBreakpoints may be passed to ClearBreakpoint to clear every
// breakpoint.
const AllBreakpoints = "all"

// A Client is a connection to a running simulator process. A Client is
// not safe for concurrent use.
type Client struct {
	settings *Settings
	log      *logger
	logw     io.Writer
	dir      string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	conn     *conn
	output   *outputSocket
	mirror   *Mirror
	failed   error // set once the reply stream can no longer be trusted
	closed   bool
}

// An Option customizes a Client created by New.
type Option func(c *Client)

// WithLogOutput sends the client's log, and the simulator's standard
// error, to w.
func WithLogOutput(w io.Writer) Option {
	return func(c *Client) {
		c.logw = w
	}
}

// WithDir runs the simulator in dir. File paths passed to the simulator
// are resolved against it.
func WithDir(dir string) Option {
	return func(c *Client) {
		c.dir = dir
	}
}

// New starts a simulator and returns a client connected to it. It
// returns once the simulator has connected to the output socket and
// finished reporting its startup state.
func New(ctx context.Context, s *Settings, opts ...Option) (*Client, error) {
	if s == nil {
		s = NewSettings()
	}

	c := &Client{
		settings: s,
		logw:     os.Stderr,
		mirror:   NewMirror(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = newLogger(c.logw, s.Debug)

	if s.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.StartTimeout)
		defer cancel()
	}

	out, err := listenOutput()
	if err != nil {
		return nil, err
	}
	c.output = out

	var args []string
	if s.ProtocolFlag != "" {
		args = append(args, s.ProtocolFlag)
	}
	cmd := exec.Command(s.Simulator, args...)
	cmd.Dir = c.dir
	cmd.Stderr = c.logw
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		out.Close()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		out.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("starting %s: %w", s.Simulator, err)
	}
	c.cmd, c.stdin = cmd, stdin
	c.conn = newConn(stdout, stdin)

	// The simulator connects back once it reads the port number.
	var g errgroup.Group
	g.Go(out.accept)
	stop := context.AfterFunc(ctx, func() { out.listener.Close() })
	err = c.conn.Println(out.port())
	if err != nil {
		out.listener.Close()
		g.Wait()
	} else {
		err = g.Wait()
	}
	stop()
	if err != nil {
		c.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("simulator did not connect: %w", ctx.Err())
		}
		return nil, err
	}

	// Read the startup messages, mostly the operating system load.
	if _, err := c.readUntil(ctx, isCCReport); err != nil {
		c.Close()
		return nil, err
	}
	if _, err := out.Drain(s.OutputDrainWait); err != nil {
		c.Close()
		return nil, err
	}

	c.log.debugf("simulator started, output on port %d", out.port())
	return c, nil
}

// Register returns the value of a register: R0-R7, PC, IR, PSR or CC.
func (c *Client) Register(name string) (string, error) {
	v, ok := c.mirror.Reg.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRegister, name)
	}
	return v, nil
}

// SetRegister sets a register. Numeric registers accept anything
// Normalize accepts; CC accepts exactly NEGATIVE, ZERO or POSITIVE.
func (c *Client) SetRegister(name string, value any) error {
	i, ok := RegisterIndex(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRegister, name)
	}
	if value == nil {
		return fmt.Errorf("%w for %s: nil", ErrInvalidValue, registerNames[i])
	}

	var v string
	if i == CC {
		s, ok := value.(string)
		if !ok || !isConditionCode(s) {
			return fmt.Errorf("%w: %v", ErrInvalidConditionCode, value)
		}
		v = s
	} else {
		var err error
		v, err = Normalize(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %w", ErrInvalidValue, registerNames[i], err)
		}
	}

	msg, err := c.command(context.Background(), "register "+registerNames[i]+" "+v,
		func(m message) bool { return m.kind == msgErr || m.kind == msgToCode })
	if err != nil {
		return err
	}
	return msg.failure()
}

// Memory returns the value stored at an address or label. A label takes
// precedence over an address with the same spelling.
func (c *Client) Memory(addr any) (string, error) {
	if s, ok := addr.(string); ok {
		if a, ok := c.mirror.Labels.Address(s); ok {
			return c.mirror.Mem.Load(a), nil
		}
	}
	a, err := ToWord(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return c.mirror.Mem.Load(a), nil
}

// SetMemory stores a value at an address or label. If value names a known
// label, the label's address is stored.
func (c *Client) SetMemory(addr, value any) error {
	a, err := c.addressArg(addr)
	if err != nil {
		return err
	}

	var v string
	if s, ok := value.(string); ok && c.isLabel(s) {
		v = strings.ToUpper(s)
	} else {
		v, err = Normalize(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	}

	msg, err := c.command(context.Background(), "memory "+a+" "+v,
		func(m message) bool { return m.kind == msgErr || m.kind == msgCode || m.kind == msgToCode })
	if err != nil {
		return err
	}
	return msg.failure()
}

// Address returns the address bound to a label.
func (c *Client) Address(label string) (string, bool) {
	a, ok := c.mirror.Labels.Address(label)
	if !ok {
		return "", false
	}
	return a.String(), true
}

// Labels returns every known label in sorted order.
func (c *Client) Labels() []string {
	return c.mirror.Labels.Names()
}

// Label returns the label bound to an address. When several labels share
// the address, the first in sorted order is returned.
func (c *Client) Label(addr Word) (string, bool) {
	return c.mirror.Labels.Label(addr)
}

// Cell returns the mirrored value at an address together with the
// disassembly the simulator reported for it.
func (c *Client) Cell(addr Word) (Cell, bool) {
	return c.mirror.Mem.Cell(addr)
}

// File loads an object file, given its path without extension. Loading
// is complete after the simulator signals twice that it is ready for
// code. A missing symbol table is only a warning; any other ERR line
// aborts the load.
func (c *Client) File(path string) error {
	if err := c.send("file " + path); err != nil {
		return err
	}

	for remaining := 2; remaining > 0; {
		msg, err := c.readUntil(context.Background(),
			func(m message) bool { return m.kind == msgToCode || m.kind == msgErr })
		if err != nil {
			return err
		}
		switch {
		case msg.kind == msgToCode:
			remaining--
		case strings.Contains(msg.line, "WARNING: No symbols"):
		default:
			return &SimError{Msg: msg.line}
		}
	}
	return nil
}

// Step executes one instruction.
func (c *Client) Step() error {
	_, err := c.command(context.Background(), "step", isCCReport)
	return err
}

// Continue executes until the program halts or reaches a breakpoint. It
// blocks for as long as the program runs.
func (c *Client) Continue() error {
	return c.ContinueContext(context.Background())
}

// ContinueContext is Continue bounded by a context. If the context ends
// first, the command is abandoned, the error wraps ErrTimeout (for a
// deadline) and the client becomes unusable.
func (c *Client) ContinueContext(ctx context.Context) error {
	_, err := c.command(ctx, "continue", isCCReport)
	return err
}

// SetBreakpoint sets a breakpoint at an address or label.
func (c *Client) SetBreakpoint(addr any) error {
	a, err := c.addressArg(addr)
	if err != nil {
		return err
	}
	return c.breakpoint("set", a)
}

// ClearBreakpoint clears the breakpoint at an address or label, or every
// breakpoint when passed AllBreakpoints.
func (c *Client) ClearBreakpoint(addr any) error {
	if s, ok := addr.(string); ok && strings.EqualFold(s, AllBreakpoints) {
		return c.breakpoint("clear", AllBreakpoints)
	}
	a, err := c.addressArg(addr)
	if err != nil {
		return err
	}
	return c.breakpoint("clear", a)
}

// ClearBreakpoints clears every breakpoint.
func (c *Client) ClearBreakpoints() error {
	return c.ClearBreakpoint(AllBreakpoints)
}

// Output returns the program output captured since the last call, with
// the halt banner removed. The simulator does not signal when output is
// ready: Output polls OutputPollRetries times, OutputPollInterval apart,
// so output produced after it gives up is only seen by a later call.
// Call it after Continue or Step has returned.
func (c *Client) Output() (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	s := c.settings
	return c.output.Read(s.OutputPollInterval, s.OutputPollRetries, s.OutputDrainWait)
}

// State returns a snapshot of the mirrored simulator state.
func (c *Client) State() State {
	return c.mirror.Snapshot()
}

// String returns the register contents on a single line.
func (c *Client) String() string {
	var sb strings.Builder
	for i, v := range c.mirror.Reg {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(registerNames[i])
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	return sb.String()
}

// Close shuts down the output socket and the simulator. The simulator is
// given ShutdownGrace to exit after its input closes; then its process
// group is killed.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.output.Close()
	if c.cmd == nil {
		return err
	}

	c.stdin.Close()
	c.conn.Close()

	done := make(chan struct{})
	go func() {
		c.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.settings.ShutdownGrace):
		c.log.debugf("killing simulator process %d", c.cmd.Process.Pid)
		if kerr := killProcessGroup(c.cmd); kerr != nil && err == nil {
			err = kerr
		}
		<-done
	}
	return err
}

func (c *Client) check() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.failed != nil:
		return fmt.Errorf("%w: %w", ErrClosed, c.failed)
	}
	return nil
}

func (c *Client) send(line string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.log.debugf("> %s", line)
	if err := c.conn.Println(line); err != nil {
		c.failed = err
		return err
	}
	return nil
}

func (c *Client) command(ctx context.Context, line string, done func(message) bool) (message, error) {
	if err := c.send(line); err != nil {
		return message{}, err
	}
	return c.readUntil(ctx, done)
}

// readUntil parses reply lines into the mirror until one satisfies done.
// If the context ends or the pipe fails first, the client is marked
// unusable: the rest of the reply is still in flight.
func (c *Client) readUntil(ctx context.Context, done func(message) bool) (message, error) {
	for {
		line, err := c.conn.GetLine(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				c.failed = fmt.Errorf("%w: %w", ErrTimeout, err)
			case ctx.Err() != nil:
				c.failed = fmt.Errorf("simulator command abandoned: %w", err)
			default:
				c.failed = fmt.Errorf("reading from simulator: %w", err)
			}
			return message{}, c.failed
		}

		msg := parseMessage(line, c.mirror, c.log)
		if done(msg) {
			return msg, nil
		}
	}
}

func (c *Client) breakpoint(op, target string) error {
	if err := c.send("break " + op + " " + target); err != nil {
		return err
	}
	for _, line := range c.conn.Drain(c.settings.BreakpointDrainWait) {
		parseMessage(line, c.mirror, c.log)
	}
	return nil
}

// addressArg returns the simulator's spelling of an address argument:
// the uppercased label if it is known, otherwise the canonical address.
func (c *Client) addressArg(addr any) (string, error) {
	if s, ok := addr.(string); ok && c.isLabel(s) {
		return strings.ToUpper(s), nil
	}
	a, err := Normalize(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return a, nil
}

func (c *Client) isLabel(s string) bool {
	_, ok := c.mirror.Labels.Address(s)
	return ok
}

func isCCReport(m message) bool {
	return m.isRegister(CC)
}

// failure converts a terminating ERR line into an error. Warnings are
// not failures.
func (m message) failure() error {
	if m.kind == msgErr && !m.warning {
		return &SimError{Msg: m.line}
	}
	return nil
}
