// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// A conn is the command pipe to the simulator. Commands are written one
// per line; reply lines are read by a single goroutine and queued on a
// channel so that reads can be abandoned when a context expires.
type conn struct {
	output *bufio.Writer
	lines  chan string
	done   chan struct{}
	err    error // read error, valid once lines is closed
}

func newConn(r io.Reader, w io.Writer) *conn {
	c := &conn{
		output: bufio.NewWriter(w),
		lines:  make(chan string, 256),
		done:   make(chan struct{}),
	}
	go c.readLines(bufio.NewScanner(r))
	return c
}

func (c *conn) readLines(input *bufio.Scanner) {
	defer close(c.lines)
	for input.Scan() {
		select {
		case c.lines <- input.Text():
		case <-c.done:
			return
		}
	}
	c.err = input.Err()
}

// Println writes one command line and flushes it to the simulator.
func (c *conn) Println(args ...any) error {
	fmt.Fprintln(c.output, args...)
	return c.output.Flush()
}

// GetLine returns the next trimmed reply line, blocking until one
// arrives, the pipe closes or the context is done.
func (c *conn) GetLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			if c.err != nil {
				return "", c.err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Drain returns every reply line that arrives within the wait, followed
// by any lines already queued when it ends.
func (c *conn) Drain(wait time.Duration) []string {
	var lines []string
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return lines
			}
			lines = append(lines, strings.TrimSpace(line))
		case <-timer.C:
			for {
				select {
				case line, ok := <-c.lines:
					if !ok {
						return lines
					}
					lines = append(lines, strings.TrimSpace(line))
				default:
					return lines
				}
			}
		}
	}
}

// Close stops the reader goroutine. The underlying pipes are owned by
// the caller.
func (c *conn) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
