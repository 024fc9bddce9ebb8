package main

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// errorLocation matches the "file:line: message" shape every asm package
// error is built with (asm/mnemonic.go, asm/assemble.go, asm/token.go all
// wrap with fmt.Errorf("%s:%d: %w", tok.File, tok.Line, ...)).
var errorLocation = regexp.MustCompile(`^(.+):(\d+): (.*)$`)

// formatDiagnostic renders an assemble error as a compiler-style diagnostic:
// the offending line plus one line of context on either side, and a caret
// under the first non-blank column, per spec.md §4.I. Errors that don't
// carry a recognizable file:line prefix (a plain IO error, say) are
// returned unchanged.
func formatDiagnostic(src string, err error) error {
	m := errorLocation.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	lineNum, convErr := strconv.Atoi(m[2])
	if convErr != nil {
		return err
	}

	lines := splitLines(src)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", color.RedString("error: %s", m[3]))
	for i := lineNum - 1; i <= lineNum+1; i++ {
		if i < 1 || i > len(lines) {
			continue
		}
		prefix := fmt.Sprintf("%4d | ", i)
		fmt.Fprintf(&b, "%s%s\n", prefix, lines[i-1])
		if i == lineNum {
			caret := leadingSpaceWidth(lines[i-1])
			fmt.Fprintf(&b, "%s%s%s\n", strings.Repeat(" ", len(prefix)), strings.Repeat(" ", caret), color.YellowString("^"))
		}
	}
	return fmt.Errorf("%s:%d: %s\n%s", m[1], lineNum, m[3], b.String())
}

func leadingSpaceWidth(line string) int {
	n := 0
	for _, r := range line {
		if r != ' ' && r != '\t' {
			break
		}
		n++
	}
	return n
}

func splitLines(src string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
