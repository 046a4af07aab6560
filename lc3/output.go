// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// HaltBanner is appended to the program output by the simulator whenever
// execution halts.
const HaltBanner = "\n\n--- halting the LC-3 ---\n\n"

// An outputSocket is the one-way side channel carrying the target
// program's character output.
type outputSocket struct {
	listener net.Listener
	conn     net.Conn // set once by the acceptor goroutine
}

func listenOutput() (*outputSocket, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &outputSocket{listener: ln}, nil
}

func (o *outputSocket) port() int {
	return o.listener.Addr().(*net.TCPAddr).Port
}

func (o *outputSocket) accept() error {
	c, err := o.listener.Accept()
	if err != nil {
		return err
	}
	o.conn = c
	return nil
}

// Read polls for output up to retries times, interval apart, and then
// drains everything available until the socket has been idle for
// drainWait. The drain runs even when retries is zero. The simulator
// gives no ready signal, so output written after the polls give up is
// returned by a later Read.
func (o *outputSocket) Read(interval time.Duration, retries int, drainWait time.Duration) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1024)

	for i := 0; i < retries; i++ {
		n, err := o.readWithin(buf, interval)
		sb.Write(buf[:n])
		if n > 0 {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}

	s, err := o.Drain(drainWait)
	sb.WriteString(s)
	if err != nil {
		return sb.String(), err
	}

	return strings.ReplaceAll(sb.String(), HaltBanner, ""), nil
}

// Drain returns all bytes arriving before the socket has been idle for
// the wait.
func (o *outputSocket) Drain(wait time.Duration) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1024)
	for {
		n, err := o.readWithin(buf, wait)
		sb.Write(buf[:n])
		switch {
		case err == nil && n == 0:
			return sb.String(), nil
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return sb.String(), nil
		default:
			return sb.String(), err
		}
	}
}

// readWithin reads once with a deadline. A deadline expiry is reported as
// a nil error with n == 0.
func (o *outputSocket) readWithin(buf []byte, wait time.Duration) (int, error) {
	if err := o.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return 0, err
	}
	n, err := o.conn.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (o *outputSocket) Close() error {
	var err error
	if o.conn != nil {
		err = o.conn.Close()
	}
	if lerr := o.listener.Close(); err == nil {
		err = lerr
	}
	return err
}
