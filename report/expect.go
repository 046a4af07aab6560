// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/prefixtree/v2"
)

// A Simulator exposes the simulator state read by the checks. An
// *lc3.Client is a Simulator.
type Simulator interface {
	Register(name string) (string, error)
	Memory(addr any) (string, error)
	Output() (string, error)
}

// A Resolver resolves the file names passed to the nonempty check. A
// Simulator running in its own directory implements it.
type Resolver interface {
	Path(name string) string
}

// ExpectRegister reports a failure if a register does not hold the
// expected value. The CC register is compared against its symbolic
// value; other registers against the normalized value.
func ExpectRegister(sim Simulator, r *Reporter, reg string, val any) error {
	actual, err := sim.Register(reg)
	if err != nil {
		return err
	}

	var expected string
	if i, _ := lc3.RegisterIndex(reg); i == lc3.CC {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: %v", lc3.ErrInvalidConditionCode, val)
		}
		expected = s
	} else {
		expected, err = lc3.Normalize(val)
		if err != nil {
			return err
		}
	}

	if expected != actual {
		r.Reportf("Incorrect %s: %s", reg, diff(expected, actual))
	}
	return nil
}

// ExpectMemory reports a failure if a memory address or label does not
// hold the expected value.
func ExpectMemory(sim Simulator, r *Reporter, addr, val any) error {
	expected, err := lc3.Normalize(val)
	if err != nil {
		return err
	}
	actual, err := sim.Memory(addr)
	if err != nil {
		return err
	}

	if expected != actual {
		r.Reportf("Incorrect mem[%v]: %s", addr, diff(expected, actual))
	}
	return nil
}

// ExpectOutput reports a failure if the captured program output differs
// from the expected output, ignoring blank lines and runs of horizontal
// whitespace.
func ExpectOutput(sim Simulator, r *Reporter, expected string) error {
	actual, err := sim.Output()
	if err != nil {
		return err
	}

	if !IgnoreWhitespaceEqual(expected, actual) {
		r.Reportf("Incorrect output:\n  expected:\n%s\n  actual:\n%s",
			block(expected), block(actual))
	}
	return nil
}

// ExpectNonEmpty reports a failure if an object file holds no code. An
// object file containing only its origin word, the output of a program
// with nothing between .ORIG and .END, has no code. The ".obj" extension
// is added to path if missing.
func ExpectNonEmpty(r *Reporter, path string) error {
	if filepath.Ext(path) != ".obj" {
		path += ".obj"
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Size() <= 2 {
		r.Reportf("File %s has no code", path)
	}
	return nil
}

func diff(expected, actual string) string {
	return fmt.Sprintf("expected: %s, actual: %s", expected, actual)
}

// block indents every line of s.
func block(s string) string {
	if s == "" {
		return s
	}
	var sb strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if line != "" {
			sb.WriteString("    ")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

var (
	blankLine  = regexp.MustCompile(`^\s*$`)
	horizontal = regexp.MustCompile(`[ \t]+`)
)

// IgnoreWhitespaceEqual compares two texts after dropping blank lines,
// collapsing runs of spaces and tabs and trimming the result.
func IgnoreWhitespaceEqual(a, b string) bool {
	return squeeze(a) == squeeze(b)
}

func squeeze(s string) string {
	var sb strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if blankLine.MatchString(line) {
			continue
		}
		sb.WriteString(horizontal.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(sb.String())
}

// A Check is a named expectation. Its arguments follow the simulator
// and reporter.
type Check func(sim Simulator, r *Reporter, args ...any) error

var checks = prefixtree.New[Check]()

func init() {
	checks.Add("register", func(sim Simulator, r *Reporter, args ...any) error {
		if err := wantArgs("register", args, 2); err != nil {
			return err
		}
		reg, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("%w: %v", lc3.ErrInvalidRegister, args[0])
		}
		return ExpectRegister(sim, r, reg, args[1])
	})
	checks.Add("memory", func(sim Simulator, r *Reporter, args ...any) error {
		if err := wantArgs("memory", args, 2); err != nil {
			return err
		}
		return ExpectMemory(sim, r, args[0], args[1])
	})
	checks.Add("output", func(sim Simulator, r *Reporter, args ...any) error {
		if err := wantArgs("output", args, 1); err != nil {
			return err
		}
		return ExpectOutput(sim, r, fmt.Sprint(args[0]))
	})
	checks.Add("nonempty", func(sim Simulator, r *Reporter, args ...any) error {
		if err := wantArgs("nonempty", args, 1); err != nil {
			return err
		}
		path := fmt.Sprint(args[0])
		if res, ok := sim.(Resolver); ok {
			path = res.Path(path)
		}
		return ExpectNonEmpty(r, path)
	})
}

// Lookup returns the check whose name starts with the given prefix:
// register, memory, output or nonempty.
func Lookup(name string) (Check, error) {
	c, err := checks.FindValue(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("expectation '%s': %w", name, err)
	}
	return c, nil
}

func wantArgs(name string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("expectation '%s' takes %d arguments, got %d", name, n, len(args))
	}
	return nil
}
