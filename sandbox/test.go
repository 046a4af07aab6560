// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/lc3spec/report"
)

// A Test is the context of one test body. It embeds the simulator client
// and adds file staging, a bounded Continue and expectations.
type Test struct {
	*lc3.Client
	Reporter *report.Reporter

	ctx      context.Context
	settings *lc3.Settings
	dir      string
	source   string
}

// Dir returns the test's temporary directory.
func (t *Test) Dir() string {
	return t.dir
}

// Path resolves a file name against the test's directory.
func (t *Test) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(t.dir, name)
}

// EnsureFilePresent stages a file into the test directory. If no file
// with the same base name is present yet, every file sharing the base
// name is copied from the file's directory, or from the source directory
// when the name is relative.
func (t *Test) EnsureFilePresent(name string) error {
	if name == "" {
		return ErrInvalidFilename
	}

	stem := stemOf(name)
	if found, err := hasStem(t.dir, stem); err != nil || found {
		return err
	}

	from := filepath.Dir(name)
	if !filepath.IsAbs(name) {
		from = filepath.Join(t.source, from)
	}
	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf("%w: cannot find %s: %v", ErrDoesNotAssemble, name, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && matchesStem(e.Name(), stem) {
			if err := copyFile(filepath.Join(t.dir, e.Name()), filepath.Join(from, e.Name())); err != nil {
				return err
			}
		}
	}

	if found, err := hasStem(t.dir, stem); err != nil || !found {
		if err == nil {
			err = fmt.Errorf("%w: cannot find %s", ErrDoesNotAssemble, name)
		}
		return err
	}
	return nil
}

// EnsureAssembled validates a file in the test directory and returns the
// name of the file it validated. A name without an .asm or .obj extension
// refers to the .asm file if present, otherwise the .obj file. An .asm
// file must assemble; an .obj file must be non-empty.
func (t *Test) EnsureAssembled(name string) (string, error) {
	if ext := filepath.Ext(name); ext != ".asm" && ext != ".obj" {
		asm, obj := name+".asm", name+".obj"
		switch {
		case fileExists(t.Path(asm)):
			name = asm
		case fileExists(t.Path(obj)):
			name = obj
		default:
			return "", fmt.Errorf("%w: cannot find %s or %s", ErrDoesNotAssemble, asm, obj)
		}
	}

	if filepath.Ext(name) == ".asm" {
		return name, RunAssembler(t.ctx, t.settings, t.dir, name)
	}

	info, err := os.Stat(t.Path(name))
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: file has zero size or does not exist: %s", ErrDoesNotAssemble, name)
	}
	return name, nil
}

// File stages, validates and loads a program.
func (t *Test) File(name string) error {
	if err := t.EnsureFilePresent(name); err != nil {
		return err
	}
	local, err := t.EnsureAssembled(filepath.Base(name))
	if err != nil {
		return err
	}
	return t.Client.File(strings.TrimSuffix(local, filepath.Ext(local)))
}

// FileFromASM assembles and loads inline source. The temporary source file
// and everything the assembler produced from it are removed afterward.
func (t *Test) FileFromASM(source string) error {
	f, err := os.CreateTemp(t.dir, "lc3spec-tmp-*.asm")
	if err != nil {
		return err
	}
	prefix := strings.TrimSuffix(f.Name(), ".asm")
	defer removePrefix(prefix)

	_, err = io.WriteString(f, source)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if _, err := t.EnsureAssembled(f.Name()); err != nil {
		return err
	}
	return t.Client.File(prefix)
}

// SetLabel binds a new label to an address by loading a program that
// defines only the label. Existing labels cannot be rebound.
func (t *Test) SetLabel(label string, addr any) error {
	label = strings.ToUpper(label)
	if _, ok := t.Address(label); ok {
		return fmt.Errorf("unable to replace label %s", label)
	}
	a, err := lc3.Normalize(addr)
	if err != nil {
		return fmt.Errorf("%w: %w", lc3.ErrInvalidAddress, err)
	}
	return t.FileFromASM(fmt.Sprintf(".ORIG %s\n%s\n.END\n", a, label))
}

// Continue runs the program for at most the ContinueTimeout setting.
func (t *Test) Continue() error {
	ctx, cancel := context.WithTimeout(t.ctx, t.settings.ContinueTimeout)
	defer cancel()
	return t.ContinueContext(ctx)
}

// Expect runs the named expectation (see report.Lookup) against the
// test's simulator and reporter.
func (t *Test) Expect(name string, args ...any) error {
	check, err := report.Lookup(name)
	if err != nil {
		return err
	}
	return check(t, t.Reporter, args...)
}

// removePrefix deletes every file in the prefix's directory whose name
// starts with the prefix's base name.
func removePrefix(prefix string) {
	base := filepath.Base(prefix)
	if prefix == "" || base == "" || base == "." || base == string(filepath.Separator) {
		return
	}

	dir := filepath.Dir(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

func stemOf(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func matchesStem(name, stem string) bool {
	return name == stem || strings.HasPrefix(name, stem+".")
}

func hasStem(dir, stem string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if matchesStem(e.Name(), stem) {
			return true, nil
		}
	}
	return false, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
