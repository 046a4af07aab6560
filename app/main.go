// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The app command runs the LC-3 console. Command files named on the
// command line are run first; then commands are read from standard input.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/lc3spec/console"
	"github.com/beevik/lc3spec/lc3"
	"github.com/beevik/term"
)

func main() {
	settings := lc3.NewSettings()
	settings.ApplyEnv()

	c := console.New(settings)
	defer c.Close()

	// Run commands contained in command-line files.
	for _, filename := range os.Args[1:] {
		file, err := os.Open(filename)
		if err != nil {
			c.Close()
			exitOnError(err)
		}
		c.RunCommands(file, os.Stdout, false)
		file.Close()
	}

	// Break on Ctrl-C.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go handleInterrupt(c, ch)

	// Run commands from standard input, prompting if it is a terminal.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	c.RunCommands(os.Stdin, os.Stdout, interactive)
}

func handleInterrupt(c *console.Console, ch chan os.Signal) {
	for {
		<-ch
		c.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
