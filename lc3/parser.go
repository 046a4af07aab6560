// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"strconv"
	"strings"
)

type msgKind byte

const (
	msgUnknown msgKind = iota
	msgCode
	msgReg
	msgErr
	msgBreak
	msgBClear
	msgCont
	msgToCode
	msgTrans
)

// A message is one classified line of simulator output.
type message struct {
	kind    msgKind
	line    string
	reg     int // msgReg: register number
	value   string
	warning bool // msgErr: the line carries a WARNING marker
}

func (m message) isRegister(reg int) bool {
	return m.kind == msgReg && m.reg == reg
}

// parseMessage classifies a trimmed simulator output line and applies any
// state it reports to the mirror.
func parseMessage(line string, m *Mirror, log *logger) message {
	log.debugf("%s", line)

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return message{kind: msgUnknown, line: line}
	}

	cmd := tokens[0]
	tokens = tokens[1:]

	msg := message{line: line}
	switch {
	case strings.HasPrefix(cmd, "CODE"):
		msg.kind = msgCode
		parseCode(cmd[len("CODE"):], tokens, m, log)

	case cmd == "REG":
		msg.kind = msgReg
		msg.reg, msg.value = parseReg(tokens, m, log)

	case cmd == "ERR":
		msg.kind = msgErr
		msg.warning = strings.Contains(line, "WARNING")
		if msg.warning {
			log.warnf("%s", line)
		} else {
			log.errorf("%s", line)
		}

	case cmd == "BREAK":
		msg.kind = msgBreak
	case cmd == "BCLEAR":
		msg.kind = msgBClear
	case cmd == "CONT":
		msg.kind = msgCont
	case cmd == "TOCODE":
		msg.kind = msgToCode

	case cmd == "TRANS":
		msg.kind = msgTrans
		if len(tokens) >= 2 {
			addr, err := Denormalize(tokens[0])
			if err != nil {
				log.debugf("bad TRANS address: %s", line)
				break
			}
			log.debugf("label translation: %d -> %s", addr, tokens[1])
		}

	default:
		msg.kind = msgUnknown
		log.debugf("Unexpected message: %s", line)
	}
	return msg
}

// parseCode handles a disassembled code line:
//
//	CODE[P]<index>[B] [<label>] x<addr> x<value> <disassembly>
//
// where index is the address plus one. The P marker flags the line at
// the program counter and B flags a breakpoint.
func parseCode(rest string, tokens []string, m *Mirror, log *logger) {
	rest = strings.TrimPrefix(rest, "P")
	if rest == "" {
		if len(tokens) == 0 {
			log.debugf("CODE line missing index")
			return
		}
		rest, tokens = tokens[0], tokens[1:]
	}

	index, ok := leadingInt(rest)
	if !ok {
		log.debugf("CODE line has bad index %q", rest)
		return
	}
	numAddr := Word(index - 1)

	var label string
	if len(tokens) > 0 && tokens[0] != numAddr.String() {
		label, tokens = strings.ToUpper(tokens[0]), tokens[1:]
	}
	if len(tokens) < 2 {
		log.debugf("CODE line too short")
		return
	}

	addr, err := ParseWord(tokens[0])
	if err != nil {
		log.debugf("CODE line has bad address %q", tokens[0])
		return
	}
	value, err := ParseWord(tokens[1])
	if err != nil {
		log.debugf("CODE line has bad value %q", tokens[1])
		return
	}

	if label != "" {
		m.Labels.Insert(label, addr)
	}
	m.Mem.Store(addr, value, strings.Join(tokens[2:], " "))
}

func parseReg(tokens []string, m *Mirror, log *logger) (reg int, value string) {
	if len(tokens) < 2 {
		log.debugf("REG line too short")
		return -1, ""
	}

	n, err := strconv.Atoi(strings.TrimPrefix(tokens[0], "R"))
	if err != nil || n < 0 || n >= NumRegisters {
		log.debugf("REG line has unknown register %q", tokens[0])
		return -1, ""
	}

	// A malformed value is dropped, but the line still counts as a
	// report of register n.
	value = tokens[1]
	if n == CC {
		if !isConditionCode(value) {
			log.debugf("REG line has bad condition code %q", value)
			return n, ""
		}
	} else {
		w, err := ParseWord(value)
		if err != nil {
			log.debugf("REG line has bad value %q", value)
			return n, ""
		}
		value = w.String()
	}
	m.Reg[n] = value
	return n, value
}

// leadingInt parses the decimal digits at the start of s, ignoring any
// trailing marker characters.
func leadingInt(s string) (int, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:i])
	return n, err == nil
}
