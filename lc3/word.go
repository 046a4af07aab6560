// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lc3

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
)

// A Word is a 16-bit LC-3 value or address.
type Word uint16

// Zero is the canonical form of the zero word.
const Zero = "x0000"

var hexString = "0123456789ABCDEF"

var wordPattern = regexp.MustCompile(`^(?:x|0x|X|0X)?([0-9A-Fa-f]{1,4})$`)

// String returns the canonical form of the word: an 'x' followed by four
// uppercase hexadecimal digits.
func (w Word) String() string {
	b := []byte{'x', 0, 0, 0, 0}
	wordToBuf(w, b[1:])
	return string(b)
}

// Int returns the two's-complement signed value of the word.
func (w Word) Int() int {
	return int(int16(w))
}

// ParseWord parses a 1-4 digit hexadecimal string, with or without an x
// or 0x prefix, into a word.
func ParseWord(s string) (Word, error) {
	m := wordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	v, err := strconv.ParseUint(m[1], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return Word(v), nil
}

// ToWord converts a hexadecimal string or an integer in the range
// [-32768, 65535] to a word. Any other type fails with ErrInvalidNumber.
func ToWord(v any) (Word, error) {
	switch n := v.(type) {
	case Word:
		return n, nil
	case string:
		return ParseWord(n)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < -0x8000 || i > 0xffff {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidNumber, i)
		}
		return Word(uint16(i)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 0xffff {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidNumber, u)
		}
		return Word(u), nil
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidNumber, v)
}

// Normalize returns the canonical string form of a hexadecimal string or
// an integer.
func Normalize(v any) (string, error) {
	w, err := ToWord(v)
	if err != nil {
		return "", err
	}
	return w.String(), nil
}

// Denormalize returns the signed 16-bit integer value of a hexadecimal
// string or an integer. Hex strings shorter than four digits are
// sign-extended when their leading digit is 8 or higher, so "x8" is -8.
func Denormalize(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		w, err := ToWord(v)
		if err != nil {
			return 0, err
		}
		return w.Int(), nil
	}

	m := wordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	digits := m[1]
	pad := byte('0')
	if hexchar(digits[0]) > 7 {
		pad = 'F'
	}
	for len(digits) < 4 {
		digits = string(pad) + digits
	}
	u, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return Word(u).Int(), nil
}

func wordToBuf(w Word, b []byte) {
	b[0] = hexString[(w>>12)&0xf]
	b[1] = hexString[(w>>8)&0xf]
	b[2] = hexString[(w>>4)&0xf]
	b[3] = hexString[w&0xf]
}

func hexchar(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
