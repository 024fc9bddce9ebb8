package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// parseNumber parses a numeric literal as written in SIRC assembly source:
// an optional leading '#' (present on immediates, .ORG/.EQU values; absent
// when parseNumber is called on an already-unwrapped operand), an optional
// '-' sign, then either a "0x"-prefixed hex literal or a decimal one.
func parseNumber(tok string) (int64, error) {
	s := strings.TrimSpace(tok)
	s = strings.TrimPrefix(s, "#")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v int64
	var err error
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		u, perr := strconv.ParseUint(s[2:], 16, 64)
		v, err = int64(u), perr
	} else {
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q: %w", tok, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}
