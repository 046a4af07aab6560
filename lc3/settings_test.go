// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSettingsSet(t *testing.T) {
	s := NewSettings()

	if err := s.Set("sim", "/opt/lc3/lc3sim"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.Simulator != "/opt/lc3/lc3sim" {
		t.Errorf("Simulator incorrect. got: %s", s.Simulator)
	}

	if err := s.Set("ContinueTimeout", "3s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.ContinueTimeout != 3*time.Second {
		t.Errorf("ContinueTimeout incorrect. got: %v", s.ContinueTimeout)
	}

	if err := s.Set("outputpollr", 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.OutputPollRetries != 3 {
		t.Errorf("OutputPollRetries incorrect. got: %d", s.OutputPollRetries)
	}

	if err := s.Set("debug", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Debug {
		t.Errorf("Debug not set")
	}
}

func TestSettingsSetErrors(t *testing.T) {
	s := NewSettings()
	if err := s.Set("nonexistent", 1); err == nil {
		t.Errorf("unknown setting should fail")
	}
	if err := s.Set("output", 1); err == nil {
		t.Errorf("ambiguous setting should fail")
	}
	if err := s.Set("simulator", 5); err == nil {
		t.Errorf("int for a string setting should fail")
	}
	if err := s.Set("outputpollretries", "many"); err == nil {
		t.Errorf("string for an int setting should fail")
	}
	if err := s.Set("starttimeout", "soon"); err == nil {
		t.Errorf("bad duration should fail")
	}
}

func TestSettingsKind(t *testing.T) {
	s := NewSettings()
	if k := s.Kind("assem"); k != reflect.String {
		t.Errorf("Kind(assem) incorrect. got: %v", k)
	}
	if k := s.Kind("sim"); k != reflect.String {
		t.Errorf("Kind(sim) incorrect. got: %v", k)
	}
	if k := s.Kind("output"); k != reflect.Invalid {
		t.Errorf("Kind(output) should be ambiguous. got: %v", k)
	}
	if k := s.Kind("debug"); k != reflect.Bool {
		t.Errorf("Kind(debug) incorrect. got: %v", k)
	}
	if k := s.Kind("zzz"); k != reflect.Invalid {
		t.Errorf("Kind(zzz) incorrect. got: %v", k)
	}
}

func TestSettingsEnv(t *testing.T) {
	t.Setenv("LC3DEBUG", "1")
	t.Setenv("LC3SIM", "/usr/local/bin/lc3sim")
	t.Setenv("LC3AS", "")

	s := NewSettings()
	s.ApplyEnv()
	if !s.Debug {
		t.Errorf("LC3DEBUG should enable debugging")
	}
	if s.Simulator != "/usr/local/bin/lc3sim" {
		t.Errorf("Simulator incorrect. got: %s", s.Simulator)
	}
	if s.Assembler != "lc3as" {
		t.Errorf("Assembler incorrect. got: %s", s.Assembler)
	}
}

func TestSettingsDisplay(t *testing.T) {
	var buf bytes.Buffer
	NewSettings().Display(&buf)

	out := buf.String()
	for _, want := range []string{`"lc3sim"`, "ContinueTimeout", "1.5s", "(assembler executable)"} {
		if !strings.Contains(out, want) {
			t.Errorf("display missing %q:\n%s", want, out)
		}
	}
}
