// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/beevik/prefixtree/v2"
)

// Settings configures how a Client launches and talks to the simulator.
type Settings struct {
	Simulator           string        `doc:"simulator executable"`
	ProtocolFlag        string        `doc:"simulator flag enabling protocol mode"`
	Assembler           string        `doc:"assembler executable"`
	StartTimeout        time.Duration `doc:"bound on simulator startup"`
	ContinueTimeout     time.Duration `doc:"bound on a sandboxed continue"`
	OutputPollInterval  time.Duration `doc:"wait between output polls"`
	OutputPollRetries   int           `doc:"output polls before giving up"`
	OutputDrainWait     time.Duration `doc:"idle time ending an output drain"`
	BreakpointDrainWait time.Duration `doc:"reply drain after breakpoint commands"`
	ShutdownGrace       time.Duration `doc:"wait for exit before killing"`
	Debug               bool          `doc:"log every simulator message"`
}

// NewSettings returns the default settings.
func NewSettings() *Settings {
	return &Settings{
		Simulator:           "lc3sim",
		ProtocolFlag:        "-gui",
		Assembler:           "lc3as",
		StartTimeout:        5 * time.Second,
		ContinueTimeout:     1500 * time.Millisecond,
		OutputPollInterval:  100 * time.Millisecond,
		OutputPollRetries:   10,
		OutputDrainWait:     10 * time.Millisecond,
		BreakpointDrainWait: 10 * time.Millisecond,
		ShutdownGrace:       250 * time.Millisecond,
		Debug:               false,
	}
}

// ApplyEnv overrides settings from the LC3DEBUG, LC3SIM and LC3AS
// environment variables.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv("LC3DEBUG"); v != "" {
		s.Debug = true
	}
	if v := os.Getenv("LC3SIM"); v != "" {
		s.Simulator = v
	}
	if v := os.Getenv("LC3AS"); v != "" {
		s.Assembler = v
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	typ   reflect.Type
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
	durationType   = reflect.TypeOf(time.Duration(0))
)

func init() {
	settingsType := reflect.TypeOf(Settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			typ:   f.Type,
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

// Display writes every setting, its value and its description.
func (s *Settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var s string
		switch f.kind {
		case reflect.String:
			s = fmt.Sprintf("    %-20s \"%s\"", f.name, v.String())
		default:
			s = fmt.Sprintf("    %-20s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-36s (%s)\n", s, f.doc)
	}
}

// Kind returns the kind of the setting matching the key prefix, or
// reflect.Invalid if there is none.
func (s *Settings) Kind(key string) reflect.Kind {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return reflect.Invalid
	}
	return f.kind
}

// Set assigns a value to the setting matching the key prefix. Duration
// settings also accept strings such as "250ms".
func (s *Settings) Set(key string, value any) error {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return fmt.Errorf("setting '%s' not found", key)
	}

	if str, ok := value.(string); ok && f.typ == durationType {
		d, err := time.ParseDuration(str)
		if err != nil {
			return err
		}
		value = d
	}

	vIn := reflect.ValueOf(value)
	if !vIn.IsValid() ||
		(f.kind == reflect.String && vIn.Type().Kind() != reflect.String) ||
		(f.kind != reflect.String && vIn.Type().Kind() == reflect.String) ||
		!vIn.Type().ConvertibleTo(f.typ) {
		return errors.New("invalid type")
	}
	vInConverted := vIn.Convert(f.typ)

	vOut := reflect.ValueOf(s).Elem().Field(f.index)
	vOut.Set(vInConverted)

	return nil
}
