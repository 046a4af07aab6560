// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3test

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/lc3spec/lc3"
)

// Startup contents of the fake operating system image.
var osImage = []struct {
	label string
	addr  uint16
	value uint16
}{
	{"OS_START", 0x0200, 0xe002},
	{"LOW_8_BITS", 0x0444, 0x00ff},
	{"OS_R0", 0x0447, 0x0000},
	{"OS_R1", 0x0448, 0x0000},
	{"TRAP_GETC", 0x044c, 0xa3f3},
	{"TRAP_PUTS", 0x0456, 0x3e16},
	{"TRAP_HALT", 0x048e, 0x3e04},
}

// A simulator is a fake lc3sim speaking the protocol of its -gui mode. It
// executes a small subset of the instruction set.
type simulator struct {
	out    *bufio.Writer
	sock   io.Writer
	mem    [1 << 16]uint16
	reg    [8]uint16
	pc     uint16
	ir     uint16
	psr    uint16
	cc     string
	halted bool
	labels map[string]uint16
	names  map[uint16]string
	breaks map[uint16]bool
}

func runSimulator() int {
	in := bufio.NewScanner(os.Stdin)
	if !in.Scan() {
		return 1
	}
	port := strings.TrimSpace(in.Text())
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer conn.Close()

	s := &simulator{
		out:    bufio.NewWriter(os.Stdout),
		sock:   conn,
		cc:     lc3.ZeroCC,
		labels: make(map[string]uint16),
		names:  make(map[uint16]string),
		breaks: make(map[uint16]bool),
	}

	fmt.Fprint(s.sock, "LC-3 simulator ready\n")
	for _, e := range osImage {
		s.mem[e.addr] = e.value
		s.labels[e.label] = e.addr
	}
	s.indexNames()
	for _, e := range osImage {
		s.code(e.addr)
	}
	s.registers()
	s.out.Flush()

	for in.Scan() {
		s.command(strings.Fields(in.Text()))
		s.out.Flush()
	}
	return 0
}

func (s *simulator) reply(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *simulator) command(args []string) {
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "register":
		s.setRegister(args[1:])
	case "memory":
		s.setMemory(args[1:])
	case "file":
		s.load(args[1:])
	case "step":
		s.execute()
		s.stopped()
	case "continue":
		s.reply("CONT")
		s.run()
		s.stopped()
	case "break":
		s.breakpoint(args[1:])
	default:
		s.reply("ERR {Unknown command %s.}", args[0])
	}
}

func (s *simulator) setRegister(args []string) {
	if len(args) != 2 {
		s.reply("ERR {register needs a name and a value.}")
		return
	}

	name := strings.ToUpper(args[0])
	if name == "CC" {
		switch args[1] {
		case lc3.Negative, lc3.ZeroCC, lc3.Positive:
			s.cc = args[1]
			s.reply("REG R11 %s", s.cc)
			s.reply("TOCODE")
		default:
			s.reply("ERR {CC can only be set to NEGATIVE, ZERO, or POSITIVE.}")
		}
		return
	}

	v, ok := s.value(args[1])
	if !ok {
		s.reply("ERR {No address or label corresponding to the desired value exists.}")
		return
	}

	var n int
	switch name {
	case "PC":
		n, s.pc = 8, v
	case "IR":
		n, s.ir = 9, v
	case "PSR":
		n, s.psr = 10, v
	default:
		i, err := strconv.Atoi(strings.TrimPrefix(name, "R"))
		if !strings.HasPrefix(name, "R") || err != nil || i < 0 || i > 7 {
			s.reply("ERR {Registers are R0...R7, PC, IR, PSR, and CC.}")
			return
		}
		n, s.reg[i] = i, v
	}
	s.reply("REG R%d x%04X", n, v)
	s.reply("TOCODE")
}

func (s *simulator) setMemory(args []string) {
	if len(args) != 2 {
		s.reply("ERR {memory needs an address and a value.}")
		return
	}
	addr, ok := s.value(args[0])
	if !ok {
		s.reply("ERR {No address or label corresponding to the desired memory address exists.}")
		return
	}
	v, ok := s.value(args[1])
	if !ok {
		s.reply("ERR {No address or label corresponding to the desired value exists.}")
		return
	}
	s.mem[addr] = v
	s.code(addr)
}

func (s *simulator) load(args []string) {
	if len(args) != 1 {
		s.reply("ERR {file needs a file name.}")
		return
	}
	path := args[0]
	if filepath.Ext(path) != ".obj" {
		path += ".obj"
	}

	data, err := os.ReadFile(path)
	if err != nil || len(data) < 2 || len(data)%2 != 0 {
		s.reply("ERR {Failed to read object file %s.}", path)
		return
	}

	s.reply("TOCODE")
	words := make([]uint16, len(data)/2)
	binary.Read(strings.NewReader(string(data)), binary.BigEndian, words)
	origin, code := words[0], words[1:]

	seen := make(map[uint16]bool)
	for i, w := range code {
		a := origin + uint16(i)
		s.mem[a] = w
		seen[a] = true
	}

	syms, err := readSymbols(strings.TrimSuffix(path, ".obj") + ".sym")
	if err != nil {
		s.reply("ERR {WARNING: No symbols are available.}")
	}
	for name, a := range syms {
		s.labels[name] = a
		seen[a] = true
	}
	s.indexNames()

	addrs := make([]uint16, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	if len(code) > 0 {
		s.pc = origin
	}
	for _, a := range addrs {
		s.code(a)
	}
	s.registers()
	s.reply("TOCODE")
}

func (s *simulator) breakpoint(args []string) {
	if len(args) != 2 || (args[0] != "set" && args[0] != "clear") {
		s.reply("ERR {break needs set or clear and an address.}")
		return
	}

	if args[0] == "clear" && strings.EqualFold(args[1], "all") {
		s.breaks = make(map[uint16]bool)
		s.reply("BCLEAR all")
		return
	}

	addr, ok := s.value(args[1])
	if !ok {
		s.reply("ERR {No address or label corresponding to the desired breakpoint exists.}")
		return
	}
	if args[0] == "set" {
		s.breaks[addr] = true
		s.reply("BREAK x%04X", addr)
	} else {
		delete(s.breaks, addr)
		s.reply("BCLEAR x%04X", addr)
	}
	s.code(addr)
}

// value resolves a label or a hexadecimal number.
func (s *simulator) value(tok string) (uint16, bool) {
	if a, ok := s.labels[strings.ToUpper(tok)]; ok {
		return a, true
	}
	w, err := lc3.ParseWord(tok)
	if err != nil {
		return 0, false
	}
	return uint16(w), true
}

func (s *simulator) indexNames() {
	names := make([]string, 0, len(s.labels))
	for n := range s.labels {
		names = append(names, n)
	}
	sort.Strings(names)

	s.names = make(map[uint16]string)
	for _, n := range names {
		if _, ok := s.names[s.labels[n]]; !ok {
			s.names[s.labels[n]] = n
		}
	}
}

func (s *simulator) code(addr uint16) {
	p, b := ' ', ' '
	if addr == s.pc {
		p = 'P'
	}
	if s.breaks[addr] {
		b = 'B'
	}
	s.reply("CODE%c%5d%c %-16s x%04X x%04X %s",
		p, int(addr)+1, b, s.names[addr], addr, s.mem[addr], disassemble(s.mem[addr]))
}

func (s *simulator) registers() {
	for i, v := range s.reg {
		s.reply("REG R%d x%04X", i, v)
	}
	s.reply("REG R8 x%04X", s.pc)
	s.reply("REG R9 x%04X", s.ir)
	s.reply("REG R10 x%04X", s.psr)
	s.reply("REG R11 %s", s.cc)
}

func (s *simulator) stopped() {
	s.code(s.pc)
	s.registers()
}

// run executes until the program halts or reaches a breakpoint. The
// first instruction always executes, so a run can leave a breakpoint.
func (s *simulator) run() {
	s.halted = false
	for {
		s.execute()
		if s.halted || s.breaks[s.pc] {
			return
		}
	}
}

func (s *simulator) execute() {
	ir := s.mem[s.pc]
	s.ir = ir
	s.pc++

	dr := (ir >> 9) & 7
	sr1 := (ir >> 6) & 7
	switch ir >> 12 {
	case 0x0: // BR
		if (ir&0x800 != 0 && s.cc == lc3.Negative) ||
			(ir&0x400 != 0 && s.cc == lc3.ZeroCC) ||
			(ir&0x200 != 0 && s.cc == lc3.Positive) {
			s.pc += sext(ir, 9)
		}
	case 0x1, 0x5: // ADD, AND
		b := s.reg[ir&7]
		if ir&0x20 != 0 {
			b = sext(ir, 5)
		}
		if ir>>12 == 0x1 {
			s.setReg(dr, s.reg[sr1]+b)
		} else {
			s.setReg(dr, s.reg[sr1]&b)
		}
	case 0x9: // NOT
		s.setReg(dr, ^s.reg[sr1])
	case 0x2: // LD
		s.setReg(dr, s.mem[s.pc+sext(ir, 9)])
	case 0x3: // ST
		s.mem[s.pc+sext(ir, 9)] = s.reg[dr]
	case 0xe: // LEA
		s.setReg(dr, s.pc+sext(ir, 9))
	case 0xf: // TRAP
		s.trap(ir & 0xff)
	}
}

func (s *simulator) trap(vector uint16) {
	s.reg[7] = s.pc
	switch vector {
	case 0x21: // OUT
		s.sock.Write([]byte{byte(s.reg[0])})
	case 0x22: // PUTS
		var b []byte
		for a := s.reg[0]; s.mem[a] != 0; a++ {
			b = append(b, byte(s.mem[a]))
		}
		s.sock.Write(b)
	case 0x25: // HALT
		io.WriteString(s.sock, lc3.HaltBanner)
		s.pc--
		s.halted = true
	}
}

func (s *simulator) setReg(r, v uint16) {
	s.reg[r] = v
	switch {
	case v == 0:
		s.cc, s.psr = lc3.ZeroCC, s.psr&^7|2
	case v&0x8000 != 0:
		s.cc, s.psr = lc3.Negative, s.psr&^7|4
	default:
		s.cc, s.psr = lc3.Positive, s.psr&^7|1
	}
}

func sext(v uint16, bits uint) uint16 {
	m := uint16(1) << (bits - 1)
	v &= 1<<bits - 1
	return (v ^ m) - m
}

func readSymbols(path string) (map[string]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms := make(map[string]uint16)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimPrefix(scanner.Text(), "//"))
		if len(fields) != 2 {
			continue
		}
		w, err := lc3.ParseWord(fields[1])
		if err != nil {
			continue
		}
		syms[strings.ToUpper(fields[0])] = uint16(w)
	}
	return syms, scanner.Err()
}

func disassemble(w uint16) string {
	dr, sr1 := (w>>9)&7, (w>>6)&7
	switch w >> 12 {
	case 0x0:
		if w&0xe00 == 0 {
			return "NOP"
		}
		cond := ""
		for i, c := range "nzp" {
			if w&(0x800>>i) != 0 {
				cond += string(c)
			}
		}
		return fmt.Sprintf("BR%s #%d", cond, int16(sext(w, 9)))
	case 0x1, 0x5:
		op := "ADD"
		if w>>12 == 0x5 {
			op = "AND"
		}
		if w&0x20 != 0 {
			return fmt.Sprintf("%s R%d,R%d,#%d", op, dr, sr1, int16(sext(w, 5)))
		}
		return fmt.Sprintf("%s R%d,R%d,R%d", op, dr, sr1, w&7)
	case 0x9:
		return fmt.Sprintf("NOT R%d,R%d", dr, sr1)
	case 0x2:
		return fmt.Sprintf("LD R%d,#%d", dr, int16(sext(w, 9)))
	case 0x3:
		return fmt.Sprintf("ST R%d,#%d", dr, int16(sext(w, 9)))
	case 0xe:
		return fmt.Sprintf("LEA R%d,#%d", dr, int16(sext(w, 9)))
	case 0xf:
		return fmt.Sprintf("TRAP x%02X", w&0xff)
	}
	return fmt.Sprintf(".FILL x%04X", w)
}
