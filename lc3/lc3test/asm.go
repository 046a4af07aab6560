// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3test

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// A Program is the result of assembling LC-3 source.
type Program struct {
	Origin  uint16
	Code    []uint16
	Symbols map[string]uint16
}

type asmLine struct {
	num   int
	label string
	op    string // uppercase opcode or directive; empty for a label-only line
	args  []string
	str   string // .STRINGZ operand
	addr  uint16
}

var trapAliases = map[string]uint16{
	"GETC": 0x20,
	"OUT":  0x21,
	"PUTS": 0x22,
	"IN":   0x23,
	"HALT": 0x25,
}

var opcodes = map[string]bool{
	"ADD": true, "AND": true, "NOT": true, "LD": true, "ST": true,
	"LEA": true, "TRAP": true,
}

func isOp(tok string) bool {
	tok = strings.ToUpper(tok)
	if strings.HasPrefix(tok, ".") || opcodes[tok] {
		return true
	}
	if _, ok := trapAliases[tok]; ok {
		return true
	}
	return strings.TrimLeft(strings.TrimPrefix(tok, "BR"), "NZP") == "" && strings.HasPrefix(tok, "BR")
}

// Assemble assembles a subset of LC-3 assembly: the .ORIG, .FILL, .BLKW,
// .STRINGZ and .END directives, labels, the ADD, AND, NOT, BR, LD, ST,
// LEA and TRAP instructions, and the GETC, OUT, PUTS, IN and HALT trap
// aliases.
func Assemble(r io.Reader) (*Program, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, err
	}

	p := &Program{Symbols: make(map[string]uint16)}

	// Pass 1: assign addresses and collect symbols.
	var addr uint16
	origin := false
	var body []*asmLine
	for _, l := range lines {
		if l.op == ".END" {
			break
		}
		if l.op == ".ORIG" {
			if origin {
				return nil, fmt.Errorf("line %d: duplicate .ORIG", l.num)
			}
			if len(l.args) != 1 {
				return nil, fmt.Errorf("line %d: .ORIG needs an address", l.num)
			}
			v, err := parseNumber(l.args[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", l.num, err)
			}
			origin = true
			p.Origin, addr = uint16(v), uint16(v)
			continue
		}
		if !origin {
			return nil, fmt.Errorf("line %d: code before .ORIG", l.num)
		}

		l.addr = addr
		if l.label != "" {
			name := strings.ToUpper(l.label)
			if _, ok := p.Symbols[name]; ok {
				return nil, fmt.Errorf("line %d: duplicate label %s", l.num, name)
			}
			p.Symbols[name] = addr
		}

		n, err := l.size()
		if err != nil {
			return nil, err
		}
		addr += n
		body = append(body, l)
	}
	if !origin {
		return nil, errors.New("no .ORIG directive")
	}

	// Pass 2: encode.
	for _, l := range body {
		words, err := p.encode(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", l.num, err)
		}
		p.Code = append(p.Code, words...)
	}
	return p, nil
}

func scanLines(r io.Reader) ([]*asmLine, error) {
	var lines []*asmLine
	scanner := bufio.NewScanner(r)
	for num := 1; scanner.Scan(); num++ {
		text := scanner.Text()

		q, c := strings.IndexByte(text, '"'), strings.IndexByte(text, ';')
		if c >= 0 && (q < 0 || c < q) {
			text = text[:c]
		}

		var str string
		if i := strings.IndexByte(text, '"'); i >= 0 {
			j := strings.LastIndexByte(text, '"')
			if j == i {
				return nil, fmt.Errorf("line %d: unterminated string", num)
			}
			s, err := strconv.Unquote(text[i : j+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad string %s", num, text[i:j+1])
			}
			str, text = s, text[:i]
		}
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}

		tokens := strings.FieldsFunc(text, func(r rune) bool {
			return unicode.IsSpace(r) || r == ','
		})
		if len(tokens) == 0 {
			continue
		}

		l := &asmLine{num: num, str: str}
		if !isOp(tokens[0]) {
			l.label, tokens = tokens[0], tokens[1:]
		}
		if len(tokens) > 0 {
			l.op, l.args = strings.ToUpper(tokens[0]), tokens[1:]
		}
		lines = append(lines, l)
	}
	return lines, scanner.Err()
}

func (l *asmLine) size() (uint16, error) {
	switch l.op {
	case "":
		return 0, nil
	case ".FILL":
		return 1, nil
	case ".BLKW":
		if len(l.args) != 1 {
			return 0, fmt.Errorf("line %d: .BLKW needs a count", l.num)
		}
		n, err := parseNumber(l.args[0])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("line %d: bad .BLKW count", l.num)
		}
		return uint16(n), nil
	case ".STRINGZ":
		return uint16(len(l.str) + 1), nil
	default:
		if strings.HasPrefix(l.op, ".") {
			return 0, fmt.Errorf("line %d: unknown directive %s", l.num, l.op)
		}
		return 1, nil
	}
}

func (p *Program) encode(l *asmLine) ([]uint16, error) {
	switch l.op {
	case "":
		return nil, nil
	case ".FILL":
		if len(l.args) != 1 {
			return nil, errors.New(".FILL needs a value")
		}
		v, err := p.value(l.args[0])
		return []uint16{v}, err
	case ".BLKW":
		n, _ := parseNumber(l.args[0])
		return make([]uint16, n), nil
	case ".STRINGZ":
		words := make([]uint16, 0, len(l.str)+1)
		for i := 0; i < len(l.str); i++ {
			words = append(words, uint16(l.str[i]))
		}
		return append(words, 0), nil
	}

	if v, ok := trapAliases[l.op]; ok {
		return []uint16{0xf000 | v}, nil
	}

	var w uint16
	var err error
	switch l.op {
	case "ADD", "AND":
		w, err = p.encodeALU(l)
	case "NOT":
		if err = wantArgs(l, 2); err == nil {
			var dr, sr uint16
			dr, err = register(l.args[0])
			if err == nil {
				sr, err = register(l.args[1])
			}
			w = 0x9000 | dr<<9 | sr<<6 | 0x3f
		}
	case "LD", "ST", "LEA":
		if err = wantArgs(l, 2); err == nil {
			var r, off uint16
			r, err = register(l.args[0])
			if err == nil {
				off, err = p.offset(l, l.args[1], 9)
			}
			op := map[string]uint16{"LD": 0x2000, "ST": 0x3000, "LEA": 0xe000}[l.op]
			w = op | r<<9 | off
		}
	case "TRAP":
		if err = wantArgs(l, 1); err == nil {
			var v int
			v, err = parseNumber(l.args[0])
			if err == nil && (v < 0 || v > 0xff) {
				err = fmt.Errorf("trap vector %s out of range", l.args[0])
			}
			w = 0xf000 | uint16(v)
		}
	default:
		if !strings.HasPrefix(l.op, "BR") {
			return nil, fmt.Errorf("unknown instruction %s", l.op)
		}
		if err = wantArgs(l, 1); err == nil {
			cond := strings.TrimPrefix(l.op, "BR")
			if cond == "" {
				cond = "NZP"
			}
			for _, c := range cond {
				w |= map[rune]uint16{'N': 0x800, 'Z': 0x400, 'P': 0x200}[c]
			}
			var off uint16
			off, err = p.offset(l, l.args[0], 9)
			w |= off
		}
	}
	if err != nil {
		return nil, err
	}
	return []uint16{w}, nil
}

func (p *Program) encodeALU(l *asmLine) (uint16, error) {
	if err := wantArgs(l, 3); err != nil {
		return 0, err
	}
	dr, err := register(l.args[0])
	if err != nil {
		return 0, err
	}
	sr1, err := register(l.args[1])
	if err != nil {
		return 0, err
	}

	w := uint16(0x1000)
	if l.op == "AND" {
		w = 0x5000
	}
	w |= dr<<9 | sr1<<6

	if sr2, err := register(l.args[2]); err == nil {
		return w | sr2, nil
	}
	v, err := parseNumber(l.args[2])
	if err != nil {
		return 0, err
	}
	if v < -16 || v > 15 {
		return 0, fmt.Errorf("immediate %s out of range", l.args[2])
	}
	return w | 0x20 | uint16(v)&0x1f, nil
}

// offset returns the PC-relative offset field for a label or a literal
// offset.
func (p *Program) offset(l *asmLine, arg string, bits uint) (uint16, error) {
	var off int
	if a, ok := p.Symbols[strings.ToUpper(arg)]; ok {
		off = int(int16(a - (l.addr + 1)))
	} else {
		v, err := parseNumber(arg)
		if err != nil {
			return 0, fmt.Errorf("unknown label %s", arg)
		}
		off = v
	}
	limit := 1 << (bits - 1)
	if off < -limit || off >= limit {
		return 0, fmt.Errorf("offset to %s out of range", arg)
	}
	return uint16(off) & (1<<bits - 1), nil
}

func (p *Program) value(arg string) (uint16, error) {
	if a, ok := p.Symbols[strings.ToUpper(arg)]; ok {
		return a, nil
	}
	v, err := parseNumber(arg)
	if err != nil {
		return 0, err
	}
	if v < -0x8000 || v > 0xffff {
		return 0, fmt.Errorf("value %s out of range", arg)
	}
	return uint16(v), nil
}

func wantArgs(l *asmLine, n int) error {
	if len(l.args) != n {
		return fmt.Errorf("%s needs %d operands", l.op, n)
	}
	return nil
}

func register(s string) (uint16, error) {
	if len(s) == 2 && (s[0] == 'R' || s[0] == 'r') && s[1] >= '0' && s[1] <= '7' {
		return uint16(s[1] - '0'), nil
	}
	return 0, fmt.Errorf("bad register %s", s)
}

func parseNumber(s string) (int, error) {
	var v int64
	var err error
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseInt(s[1:], 10, 32)
	case strings.HasPrefix(s, "x") || strings.HasPrefix(s, "X"):
		v, err = strconv.ParseInt(s[1:], 16, 32)
	default:
		v, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("bad number %s", s)
	}
	return int(v), nil
}

// WriteObj writes the program in object file format: the origin followed
// by the code, as big-endian words.
func (p *Program) WriteObj(w io.Writer) error {
	words := append([]uint16{p.Origin}, p.Code...)
	return binary.Write(w, binary.BigEndian, words)
}

// WriteSym writes the program's symbol table in the assembler's text
// format.
func (p *Program) WriteSym(w io.Writer) error {
	names := make([]string, 0, len(p.Symbols))
	for n := range p.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "// Symbol table\n")
	fmt.Fprintf(bw, "// Scope level 0:\n")
	fmt.Fprintf(bw, "//\tSymbol Name       Page Address\n")
	fmt.Fprintf(bw, "//\t----------------  ------------\n")
	for _, n := range names {
		fmt.Fprintf(bw, "//\t%-16s  %04X\n", n, p.Symbols[n])
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

// AssembleFile assembles a source file and writes the object and symbol
// files next to it, as the assembler does.
func AssembleFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	p, err := Assemble(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}

	prefix := strings.TrimSuffix(path, filepath.Ext(path))
	if err := writeFile(prefix+".obj", p.WriteObj); err != nil {
		return err
	}
	return writeFile(prefix+".sym", p.WriteSym)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runAssembler(path string) int {
	fmt.Println("STARTING PASS 1")
	if err := AssembleFile(path); err != nil {
		fmt.Println(err)
		fmt.Println("1 errors found in first pass.")
		return 1
	}
	fmt.Println("0 errors found in first pass.")
	return 0
}
