// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lc3test provides a fake LC-3 simulator and assembler for tests.
//
// A test binary that calls Main from its TestMain can re-execute itself
// as either program. Settings returns client settings pointing at the
// re-executed binary, so tests can drive a real subprocess over the real
// protocol without lc3sim or lc3as installed.
package lc3test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/beevik/lc3spec/lc3"
)

const envFake = "LC3SPEC_FAKE"

// Main runs the tests, or the fake simulator or assembler when the test
// binary was re-executed by a client built from Settings.
func Main(m *testing.M) {
	if os.Getenv(envFake) == "1" {
		os.Exit(runFake(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// Settings returns client settings whose simulator and assembler are the
// current test binary. The test must not be parallel.
func Settings(t testing.TB) *lc3.Settings {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locating test binary: %v", err)
	}
	t.Setenv(envFake, "1")

	s := lc3.NewSettings()
	s.Simulator = exe
	s.Assembler = exe
	s.ShutdownGrace = 100 * time.Millisecond
	s.ContinueTimeout = 500 * time.Millisecond
	return s
}

func runFake(args []string) int {
	switch {
	case len(args) > 0 && args[0] == "-gui":
		return runSimulator()
	case len(args) > 0:
		return runAssembler(args[len(args)-1])
	default:
		fmt.Fprintln(os.Stderr, "usage: fake [-gui | file.asm]")
		return 2
	}
}
