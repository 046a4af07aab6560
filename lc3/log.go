// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"io"
	"log"
)

type logger struct {
	l     *log.Logger
	debug bool
}

func newLogger(w io.Writer, debug bool) *logger {
	return &logger{l: log.New(w, "", 0), debug: debug}
}

func (l *logger) debugf(format string, args ...any) {
	if l.debug {
		l.l.Printf("DEBUG: "+format, args...)
	}
}

// Warnings are only shown alongside debug output.
func (l *logger) warnf(format string, args ...any) {
	if l.debug {
		l.l.Printf("WARN: "+format, args...)
	}
}

func (l *logger) errorf(format string, args ...any) {
	l.l.Printf("ERROR: "+format, args...)
}
