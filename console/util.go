// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package console

import (
	"fmt"
	"strconv"
	"strings"
)

func stringToBool(s string) (bool, error) {
	s = strings.ToLower(s)
	switch s {
	case "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value '%s'", s)
	}
}

// parseValue converts a command argument into a value accepted by the
// client. A '#' prefix marks a decimal number; anything else is passed
// through as a hexadecimal string, label or condition code.
func parseValue(s string) (any, error) {
	if d, ok := strings.CutPrefix(s, "#"); ok {
		n, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal value '%s'", s)
		}
		return n, nil
	}
	return s, nil
}

// parseCount parses an optional positive count argument.
func parseCount(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[i], "#"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count '%s'", args[i])
	}
	return n, nil
}
