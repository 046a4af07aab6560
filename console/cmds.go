// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package console

import (
	"fmt"

	"github.com/beevik/cmd"
)

var cmds *cmd.Tree

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "lc3spec"})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "help",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Console).cmdHelp,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "assemble",
		Brief: "Assemble a source file",
		Description: "Run the assembler on the specified source file," +
			" producing an object file and symbol table if successful.",
		Usage: "assemble <filename>",
		Data:  (*Console).cmdAssemble,
	})

	// Breakpoint commands
	bp := root.AddSubtree(cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:        "set",
		Brief:       "Set a breakpoint",
		Description: "Set a breakpoint at the specified address or label.",
		Usage:       "breakpoint set <address>",
		Data:        (*Console).cmdBreakpointSet,
	})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:  "clear",
		Brief: "Clear a breakpoint",
		Description: "Clear the breakpoint at the specified address or" +
			" label. Use \"all\" to clear every breakpoint.",
		Usage: "breakpoint clear <address>|all",
		Data:  (*Console).cmdBreakpointClear,
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:  "continue",
		Brief: "Run the program",
		Description: "Run the program until it halts or reaches a" +
			" breakpoint. A program still running after the continue timeout" +
			" setting is abandoned and the simulator is restarted.",
		Usage: "continue",
		Data:  (*Console).cmdContinue,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "file",
		Brief: "Load an object file",
		Description: "Load an object file and its symbol table into the" +
			" simulator. The file name is given without its extension.",
		Usage: "file <filename>",
		Data:  (*Console).cmdFile,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "labels",
		Brief:       "List labels",
		Description: "List every label reported by the simulator and its address.",
		Usage:       "labels",
		Data:        (*Console).cmdLabels,
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "get",
		Brief: "Display memory",
		Description: "Display the contents of memory starting at the" +
			" specified address or label. The number of words to display" +
			" may be specified as an option.",
		Usage: "memory get <address> [<count>]",
		Data:  (*Console).cmdMemoryGet,
	})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set memory",
		Description: "Store a value at the specified address or label. The" +
			" value may be a label, in which case its address is stored.",
		Usage: "memory set <address> <value>",
		Data:  (*Console).cmdMemorySet,
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:        "output",
		Brief:       "Display program output",
		Description: "Display the program output captured since it was last displayed.",
		Usage:       "output",
		Data:        (*Console).cmdOutput,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Shut down the simulator and quit the program.",
		Usage:       "quit",
		Data:        (*Console).cmdQuit,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "register",
		Brief: "Display or set registers",
		Description: "Without arguments, display every register. With a" +
			" register name, display that register. With a name and a value," +
			" set the register. CC takes NEGATIVE, ZERO or POSITIVE.",
		Usage: "register [<name> [<value>]]",
		Data:  (*Console).cmdRegister,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. Type the set" +
			" command without a variable name or value to display the current" +
			" values of all configuration variables. Settings that launch the" +
			" simulator apply when it is next started.",
		Usage: "set <var> <value>",
		Data:  (*Console).cmdSet,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "state",
		Brief:       "Dump the simulator state",
		Description: "Dump the registers, memory and labels mirrored from the simulator.",
		Usage:       "state",
		Data:        (*Console).cmdState,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "step",
		Brief: "Step the simulator",
		Description: "Execute a single instruction. The number of steps may" +
			" be specified as an option.",
		Usage: "step [<count>]",
		Data:  (*Console).cmdStep,
	})

	// Add command shortcuts.
	shortcuts := []struct{ shortcut, target string }{
		{"a", "assemble"},
		{"bp", "breakpoint set"},
		{"bc", "breakpoint clear"},
		{"c", "continue"},
		{"l", "labels"},
		{"m", "memory get"},
		{"ms", "memory set"},
		{"o", "output"},
		{"r", "register"},
		{"s", "step"},
		{"?", "help"},
	}
	for _, sc := range shortcuts {
		if err := root.AddShortcut(sc.shortcut, sc.target); err != nil {
			panic(fmt.Sprintf("shortcut %s: %v", sc.shortcut, err))
		}
	}

	cmds = root
}
