// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sandbox runs simulator tests in isolated working directories.
//
// Each test gets a fresh temporary directory and its own simulator. Input
// files are staged into the directory and validated with the assembler
// before they are loaded. A test that times out in Continue or whose
// files do not assemble fails with a reported message; any other error
// returned by the test body is passed back to the caller.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/lc3spec/report"
)

// Errors returned by the sandbox package.
var (
	ErrDoesNotAssemble = errors.New("file does not assemble")
	ErrInvalidFilename = errors.New("invalid filename")
)

// A Sandbox runs test bodies against fresh simulators.
type Sandbox struct {
	Settings  *lc3.Settings
	SourceDir string    // where staged files come from; the working directory if empty
	LogOutput io.Writer // client log destination; stderr if nil
}

// New creates a sandbox using the given settings, or the default
// settings if s is nil.
func New(s *lc3.Settings) *Sandbox {
	if s == nil {
		s = lc3.NewSettings()
	}
	return &Sandbox{Settings: s}
}

// Run executes one test body in a new temporary directory with a new
// simulator. Timeouts and assembly failures returned by the body are
// recorded in the reporter; other errors are returned. The simulator is
// shut down and the directory removed before Run returns.
func (s *Sandbox) Run(ctx context.Context, body func(t *Test) error) (*report.Reporter, error) {
	r := report.New()

	source := s.SourceDir
	if source == "" {
		wd, err := os.Getwd()
		if err != nil {
			return r, err
		}
		source = wd
	}

	dir, err := os.MkdirTemp("", "lc3spec-")
	if err != nil {
		return r, err
	}
	defer os.RemoveAll(dir)

	opts := []lc3.Option{lc3.WithDir(dir)}
	if s.LogOutput != nil {
		opts = append(opts, lc3.WithLogOutput(s.LogOutput))
	}
	c, err := lc3.New(ctx, s.Settings, opts...)
	if err != nil {
		return r, err
	}
	defer c.Close()

	t := &Test{
		Client:   c,
		Reporter: r,
		ctx:      ctx,
		settings: s.Settings,
		dir:      dir,
		source:   source,
	}

	if err := body(t); err != nil {
		if !recoverable(err) {
			return r, err
		}
		r.Report(err.Error())
	}
	return r, nil
}

func recoverable(err error) bool {
	return errors.Is(err, lc3.ErrTimeout) || errors.Is(err, ErrDoesNotAssemble)
}

// RunAssembler assembles a source file in dir. A failed assembly returns
// ErrDoesNotAssemble with the assembler's output.
func RunAssembler(ctx context.Context, s *lc3.Settings, dir, path string) error {
	cmd := exec.CommandContext(ctx, s.Assembler, path)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s\n%s", ErrDoesNotAssemble, path, out)
	}
	return fmt.Errorf("running %s: %w", s.Assembler, err)
}
