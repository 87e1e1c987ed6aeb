package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
)

// Line is an instruction tagged with its 1-based source line.
type Line struct {
	Inst Instruction
	Num  int
}

// ParseLine parses one line of assembly. A blank line yields a nil
// instruction and no error.
func ParseLine(line string) (Instruction, error) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "//") {
		return Comment{Text: strings.TrimSpace(trimmed[2:])}, nil
	}
	if idx := strings.Index(trimmed, "//"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, trimmed)

	switch {
	case s == "":
		return nil, nil
	case s[0] == '(':
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("unterminated label '%s'", s)
		}
		name := s[1 : len(s)-1]
		if !IsSymbol(name) {
			return nil, fmt.Errorf("invalid label name '%s'", name)
		}
		return LabelDef{Name: name}, nil
	case s[0] == '@':
		return parseA(s[1:])
	}

	var dest, jump string
	comp := s
	if before, after, ok := strings.Cut(comp, ";"); ok {
		comp, jump = before, after
		if jump == "" {
			return nil, fmt.Errorf("unknown jump ''")
		}
	}
	if before, after, ok := strings.Cut(comp, "="); ok {
		dest, comp = before, after
		if dest == "" {
			return nil, fmt.Errorf("invalid dest ''")
		}
	}
	c, err := NewC(dest, comp, jump)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func parseA(operand string) (Instruction, error) {
	if operand == "" {
		return nil, fmt.Errorf("missing A-instruction operand")
	}
	if operand[0] >= '0' && operand[0] <= '9' {
		n, err := strconv.Atoi(operand)
		if err != nil {
			return nil, fmt.Errorf("invalid address '%s'", operand)
		}
		if n > config.MaxAddress {
			return nil, fmt.Errorf("address %d out of range 0..%d", n, config.MaxAddress)
		}
		return A(uint16(n)), nil
	}
	if !IsSymbol(operand) {
		return nil, fmt.Errorf("invalid symbol '%s'", operand)
	}
	return At(operand), nil
}

// IsSymbol reports whether s is a legal Hack symbol: letters, digits and
// _ . $ : with no leading digit.
func IsSymbol(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_.$:", r):
		default:
			return false
		}
	}
	return true
}

// Parse reads a whole assembly file. file only labels diagnostics.
func Parse(file, text string) ([]Line, error) {
	var lines []Line
	for i, raw := range strings.Split(text, "\n") {
		inst, err := ParseLine(raw)
		if err != nil {
			return nil, util.Errorf(file, i+1, 0, "%v", err)
		}
		if inst != nil {
			lines = append(lines, Line{Inst: inst, Num: i + 1})
		}
	}
	return lines, nil
}

// Number tags generated instructions with consecutive line numbers.
func Number(insts []Instruction) []Line {
	lines := make([]Line, len(insts))
	for i, inst := range insts {
		lines[i] = Line{Inst: inst, Num: i + 1}
	}
	return lines
}
