package asm

import (
	"fmt"
	"strings"

	"sirc/regs"
)

// operandKind discriminates the operand forms spec.md §4.I's syntax table
// lists: direct registers, immediates, indirect addressing through the
// implicit "a" address-register pair, and the two symbolic forms (a
// resolved-at-link symbol reference, an resolved-at-assemble placeholder).
type operandKind int

const (
	opRegister operandKind = iota
	opImmediate
	opSymbol
	opPlaceholder
	opIndirectImmediate // (off, a)
	opIndirectRegister  // (rN, a)
	opPreDecrement      // -(a)
	opPostIncrement     // (a)+
)

// refSuffix is the ".u"/".l" modifier on a @symbol reference, narrowing
// which half of a resolved address it wants. parseOperand rejects any other
// suffix, ".r" included.
type refSuffix int

const (
	refWhole refSuffix = iota
	refUpper
	refLower
)

type operand struct {
	kind operandKind
	reg  regs.Index
	imm  int64

	symbol      string
	refSuffix   refSuffix
	placeholder string

	indirectReg regs.Index
}

func parseOperand(tok string) (operand, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return operand{}, fmt.Errorf("empty operand")
	}

	switch {
	case strings.HasPrefix(tok, "-(") && strings.HasSuffix(tok, ")"):
		inner := strings.TrimSpace(tok[2 : len(tok)-1])
		if inner != "a" {
			return operand{}, fmt.Errorf("pre-decrement addressing is only defined for the address register pair, got %q", tok)
		}
		return operand{kind: opPreDecrement}, nil

	case strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")+"):
		inner := strings.TrimSpace(tok[1 : len(tok)-2])
		if inner != "a" {
			return operand{}, fmt.Errorf("post-increment addressing is only defined for the address register pair, got %q", tok)
		}
		return operand{kind: opPostIncrement}, nil

	case strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")"):
		inner := tok[1 : len(tok)-1]
		parts := strings.SplitN(inner, ",", 2)
		if len(parts) != 2 {
			return operand{}, fmt.Errorf("indirect operand %q must be (offset, a) or (rN, a)", tok)
		}
		displacement := strings.TrimSpace(parts[0])
		base := strings.TrimSpace(parts[1])
		if base != "a" {
			return operand{}, fmt.Errorf("indirect operand %q must address the 'a' register pair", tok)
		}
		if strings.HasPrefix(displacement, "#") {
			n, err := parseNumber(displacement)
			if err != nil {
				return operand{}, err
			}
			return operand{kind: opIndirectImmediate, imm: n}, nil
		}
		idx, ok := regs.Lookup(strings.ToLower(displacement))
		if !ok {
			return operand{}, fmt.Errorf("unknown displacement register %q", displacement)
		}
		return operand{kind: opIndirectRegister, indirectReg: idx}, nil

	case strings.HasPrefix(tok, "#"):
		n, err := parseNumber(tok)
		if err != nil {
			return operand{}, err
		}
		return operand{kind: opImmediate, imm: n}, nil

	case strings.HasPrefix(tok, "@"):
		name := tok[1:]
		suffix := refWhole
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			switch name[idx+1:] {
			case "u":
				suffix = refUpper
			case "l":
				suffix = refLower
			default:
				return operand{}, fmt.Errorf("unknown symbol reference suffix in %q", tok)
			}
			name = name[:idx]
		}
		return operand{kind: opSymbol, symbol: name, refSuffix: suffix}, nil

	case strings.HasPrefix(tok, "$"):
		return operand{kind: opPlaceholder, placeholder: tok[1:]}, nil

	default:
		idx, ok := regs.Lookup(strings.ToLower(tok))
		if !ok {
			return operand{}, fmt.Errorf("unrecognized operand %q", tok)
		}
		return operand{kind: opRegister, reg: idx}, nil
	}
}
