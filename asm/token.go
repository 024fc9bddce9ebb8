// Package asm implements the SIRC assembler: a line-oriented tokenizer and
// a two-pass object builder that turn source text into an
// object.Definition, generalized from the teacher's tokenizer/parser pair
// (vm/parse.go) from a single flat opcode space to SIRC's three
// instruction formats, directive set and symbol/placeholder syntax.
package asm

import (
	"fmt"
	"strings"
)

// TokenKind classifies one parsed source statement.
type TokenKind int

const (
	TokenLabel TokenKind = iota
	TokenOrigin
	TokenEqu
	TokenData
	TokenInstruction
)

// Token is one parsed, not-yet-assembled source statement.
type Token struct {
	Kind TokenKind
	Line int
	File string

	Label string // TokenLabel

	OriginValue string // TokenOrigin: raw "#value" text

	EquName  string // TokenEqu: placeholder name, without '$'
	EquValue string // raw "#value" text

	DataWidth int    // TokenData: 1 (.DB), 2 (.DW) or 4 (.DQ)
	DataValue string // raw operand text: number, @symbol[.u|.l] or $name

	Mnemonic  string // TokenInstruction, upper-cased
	Condition string // suffix after the first '|', e.g. "!=" in "BRAN|!="
	SRSrc     string // suffix after a second '|', if present; see splitSuffixes
	Operands  []string
}

// Tokenize splits src into Tokens, one per logical statement. A label at
// the start of a physical line may be followed by another statement on the
// same line (":loop SUBI r1, #1"); each produces its own token.
func Tokenize(file, src string) ([]Token, error) {
	var tokens []Token
	for lineNo, raw := range strings.Split(src, "\n") {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := tokenizeLine(file, lineNo+1, line, &tokens); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// tokenizeLine handles a possible leading ":label" before delegating the
// remainder (if any) to tokenizeStatement, recursing so ":loop SUBI r1, #1"
// and ":loop" alone both work.
func tokenizeLine(file string, lineNo int, line string, out *[]Token) error {
	if strings.HasPrefix(line, ":") {
		rest := line[1:]
		end := 0
		for end < len(rest) && isIdentChar(rest[end]) {
			end++
		}
		if end == 0 {
			return fmt.Errorf("%s:%d: expected identifier after ':'", file, lineNo)
		}
		*out = append(*out, Token{Kind: TokenLabel, Line: lineNo, File: file, Label: rest[:end]})
		remainder := strings.TrimSpace(rest[end:])
		if remainder == "" {
			return nil
		}
		return tokenizeLine(file, lineNo, remainder, out)
	}

	tok, err := tokenizeStatement(file, lineNo, line)
	if err != nil {
		return err
	}
	*out = append(*out, tok)
	return nil
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func tokenizeStatement(file string, lineNo int, line string) (Token, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Token{}, fmt.Errorf("%s:%d: empty statement", file, lineNo)
	}
	head := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, head))

	switch strings.ToUpper(head) {
	case ".ORG":
		return Token{Kind: TokenOrigin, Line: lineNo, File: file, OriginValue: strings.TrimSpace(rest)}, nil
	case ".EQU":
		parts := strings.Fields(rest)
		if len(parts) != 2 {
			return Token{}, fmt.Errorf("%s:%d: .EQU requires a $name and a #value", file, lineNo)
		}
		name := strings.TrimPrefix(parts[0], "$")
		return Token{Kind: TokenEqu, Line: lineNo, File: file, EquName: name, EquValue: parts[1]}, nil
	case ".DB", ".DW", ".DQ":
		width := map[string]int{".DB": 1, ".DW": 2, ".DQ": 4}[strings.ToUpper(head)]
		value := strings.TrimSpace(rest)
		if value == "" {
			return Token{}, fmt.Errorf("%s:%d: %s requires a value", file, lineNo, head)
		}
		return Token{Kind: TokenData, Line: lineNo, File: file, DataWidth: width, DataValue: value}, nil
	default:
		mnemonic, condition, srSrc := splitSuffixes(head)
		operands := splitOperands(rest)
		return Token{
			Kind: TokenInstruction, Line: lineNo, File: file,
			Mnemonic: strings.ToUpper(mnemonic), Condition: condition, SRSrc: srSrc,
			Operands: operands,
		}, nil
	}
}

// splitSuffixes splits "BRAN|!=|sr" into ("BRAN", "!=", "sr"). The second
// suffix (sr_src, spec.md §4.I) selects an instruction-level override for
// which status register commits flags; this assembler parses it and stores
// it on the Token, but nothing encodes it into the instruction and the
// pipeline's write-back stage always commits ALU flags when an ALU op
// produces them (cpu/memory.go), so SRSrc has no behavioral effect.
func splitSuffixes(head string) (mnemonic, condition, srSrc string) {
	parts := strings.Split(head, "|")
	mnemonic = parts[0]
	if len(parts) > 1 {
		condition = parts[1]
	}
	if len(parts) > 2 {
		srSrc = parts[2]
	}
	return mnemonic, condition, srSrc
}

// splitOperands comma-splits rest, respecting parenthesis nesting so an
// indirect-addressing operand like "(off, a)" stays one operand rather
// than being cut at its internal comma.
func splitOperands(rest string) []string {
	if rest == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if field := strings.TrimSpace(rest[start:i]); field != "" {
					out = append(out, field)
				}
				start = i + 1
			}
		}
	}
	if field := strings.TrimSpace(rest[start:]); field != "" {
		out = append(out, field)
	}
	return out
}
