// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report collects test failures and checks simulator state
// against expected values.
package report

import "fmt"

// A Reporter is the ordered list of failures of one test. A test passes
// when nothing was reported.
type Reporter struct {
	reports []string
}

// New creates an empty reporter.
func New() *Reporter {
	return &Reporter{}
}

// Report appends a failure message.
func (r *Reporter) Report(msg string) {
	r.reports = append(r.reports, msg)
}

// Reportf appends a formatted failure message.
func (r *Reporter) Reportf(format string, args ...any) {
	r.Report(fmt.Sprintf(format, args...))
}

// Pass returns true if no failure has been reported.
func (r *Reporter) Pass() bool {
	return len(r.reports) == 0
}

// Fail returns true if any failure has been reported.
func (r *Reporter) Fail() bool {
	return len(r.reports) > 0
}

// Errors returns a copy of the reported failures, in order.
func (r *Reporter) Errors() []string {
	return append([]string(nil), r.reports...)
}
