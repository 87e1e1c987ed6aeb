package asm

import (
	"fmt"

	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
)

// Predefined returns a fresh copy of the built-in symbol table.
func Predefined() map[string]uint16 {
	syms := map[string]uint16{
		"SP": 0, "LCL": 1, "ARG": 2, "THIS": 3, "THAT": 4,
		"SCREEN": config.ScreenBase, "KBD": config.KbdAddress,
	}
	for i := uint16(0); i < 16; i++ {
		syms[fmt.Sprintf("R%d", i)] = i
	}
	return syms
}

type Assembler struct {
	// File labels diagnostics.
	File    string
	symbols map[string]uint16
	nextVar uint16
}

func NewAssembler() *Assembler {
	return &Assembler{symbols: Predefined(), nextVar: config.VarBase}
}

// Symbols exposes the table after assembly: labels and variables included.
func (a *Assembler) Symbols() map[string]uint16 { return a.symbols }

// Assemble translates a parsed program into machine words.
func (a *Assembler) Assemble(lines []Line) ([]uint16, error) {
	if err := a.pass1(lines); err != nil {
		return nil, err
	}
	return a.pass2(lines)
}

// pass1 binds every label to the address of the next real instruction.
func (a *Assembler) pass1(lines []Line) error {
	predefined := Predefined()
	labels := make(map[string]int)
	var address int

	for _, l := range lines {
		switch in := l.Inst.(type) {
		case LabelDef:
			if _, ok := predefined[in.Name]; ok {
				return util.Errorf(a.File, l.Num, 0, "cannot redefine predefined symbol %q", in.Name)
			}
			if prev, ok := labels[in.Name]; ok {
				return util.Errorf(a.File, l.Num, 0, "duplicate label %q (first defined on line %d)", in.Name, prev)
			}
			if address > config.MaxAddress {
				return util.Errorf(a.File, l.Num, 0, "label %q points past the end of ROM", in.Name)
			}
			labels[in.Name] = l.Num
			a.symbols[in.Name] = uint16(address)
		case AInstr, CInstr:
			address++
		}
	}
	return nil
}

// pass2 encodes instructions, allocating variables from RAM 16 upwards on
// first use.
func (a *Assembler) pass2(lines []Line) ([]uint16, error) {
	words := make([]uint16, 0, len(lines))
	for _, l := range lines {
		switch in := l.Inst.(type) {
		case Comment, LabelDef:
			continue
		case AInstr:
			if in.Symbol != "" {
				if _, ok := a.symbols[in.Symbol]; !ok {
					if a.nextVar >= config.ScreenBase {
						return nil, util.Errorf(a.File, l.Num, 0, "no RAM left for variable %q", in.Symbol)
					}
					a.symbols[in.Symbol] = a.nextVar
					a.nextVar++
				}
			}
		}
		w, err := Encode(l.Inst, a.symbols)
		if err != nil {
			return nil, util.Errorf(a.File, l.Num, 0, "%v", err)
		}
		words = append(words, w)
	}
	return words, nil
}

// Assemble parses and assembles a complete source text.
func Assemble(file, text string) ([]uint16, error) {
	lines, err := Parse(file, text)
	if err != nil {
		return nil, err
	}
	a := NewAssembler()
	a.File = file
	return a.Assemble(lines)
}
