// Package asm models Hack assembly: its instruction forms, a line parser,
// and the two-pass assembler that turns them into 16-bit machine words.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/jackc/pkg/config"
)

type Instruction interface {
	isInstruction()
	String() string
}

type Comment struct{ Text string }

type LabelDef struct{ Name string }

// AInstr loads either a numeric constant or the address bound to Symbol.
type AInstr struct {
	Symbol string
	Value  uint16
}

// Dest is the set of registers a C-instruction stores into.
type Dest uint8

const (
	DestM Dest = 1 << iota
	DestD
	DestA
)

type CInstr struct {
	Dest Dest
	Comp string
	Jump string
}

func (Comment) isInstruction()  {}
func (LabelDef) isInstruction() {}
func (AInstr) isInstruction()   {}
func (CInstr) isInstruction()   {}

func (c Comment) String() string  { return "// " + c.Text }
func (l LabelDef) String() string { return "(" + l.Name + ")" }

func (a AInstr) String() string {
	if a.Symbol != "" {
		return "@" + a.Symbol
	}
	return "@" + strconv.Itoa(int(a.Value))
}

func (d Dest) String() string {
	var sb strings.Builder
	if d&DestA != 0 {
		sb.WriteByte('A')
	}
	if d&DestM != 0 {
		sb.WriteByte('M')
	}
	if d&DestD != 0 {
		sb.WriteByte('D')
	}
	return sb.String()
}

func (c CInstr) String() string {
	s := c.Comp
	if c.Dest != 0 {
		s = c.Dest.String() + "=" + s
	}
	if c.Jump != "" {
		s += ";" + c.Jump
	}
	return s
}

// A returns a numeric A-instruction.
func A(n uint16) AInstr { return AInstr{Value: n} }

// At returns a symbolic A-instruction.
func At(symbol string) AInstr { return AInstr{Symbol: symbol} }

// comp holds the a bit followed by c1..c6.
var comps = map[string]uint16{
	"0": 0b0101010, "1": 0b0111111, "-1": 0b0111010,
	"D": 0b0001100, "A": 0b0110000, "!D": 0b0001101,
	"!A": 0b0110001, "-D": 0b0001111, "-A": 0b0110011,
	"D+1": 0b0011111, "A+1": 0b0110111, "D-1": 0b0001110,
	"A-1": 0b0110010, "D+A": 0b0000010, "D-A": 0b0010011,
	"A-D": 0b0000111, "D&A": 0b0000000, "D|A": 0b0010101,

	"M": 0b1110000, "!M": 0b1110001, "-M": 0b1110011,
	"M+1": 0b1110111, "M-1": 0b1110010, "D+M": 0b1000010,
	"D-M": 0b1010011, "M-D": 0b1000111, "D&M": 0b1000000,
	"D|M": 0b1010101,

	"A+D": 0b0000010, "M+D": 0b1000010,
	"A&D": 0b0000000, "M&D": 0b1000000,
	"A|D": 0b0010101, "M|D": 0b1010101,
}

var jumps = map[string]uint16{
	"":    0b000,
	"JGT": 0b001,
	"JEQ": 0b010,
	"JGE": 0b011,
	"JLT": 0b100,
	"JNE": 0b101,
	"JLE": 0b110,
	"JMP": 0b111,
}

// ParseDest accepts any ordering of A, D and M, each at most once.
func ParseDest(s string) (Dest, error) {
	var d Dest
	for _, r := range s {
		var bit Dest
		switch r {
		case 'A':
			bit = DestA
		case 'D':
			bit = DestD
		case 'M':
			bit = DestM
		default:
			return 0, fmt.Errorf("invalid dest '%s'", s)
		}
		if d&bit != 0 {
			return 0, fmt.Errorf("invalid dest '%s': '%c' repeated", s, r)
		}
		d |= bit
	}
	return d, nil
}

// NewC builds a validated C-instruction from its three textual fields.
func NewC(dest, comp, jump string) (CInstr, error) {
	d, err := ParseDest(dest)
	if err != nil {
		return CInstr{}, err
	}
	if comp == "" {
		return CInstr{}, fmt.Errorf("missing comp")
	}
	if _, ok := comps[comp]; !ok {
		return CInstr{}, fmt.Errorf("unknown comp '%s'", comp)
	}
	if _, ok := jumps[jump]; !ok {
		return CInstr{}, fmt.Errorf("unknown jump '%s'", jump)
	}
	return CInstr{Dest: d, Comp: comp, Jump: jump}, nil
}

// Encode produces the machine word for a C-instruction.
func (c CInstr) Encode() (uint16, error) {
	comp, ok := comps[c.Comp]
	if !ok {
		return 0, fmt.Errorf("unknown comp '%s'", c.Comp)
	}
	jump, ok := jumps[c.Jump]
	if !ok {
		return 0, fmt.Errorf("unknown jump '%s'", c.Jump)
	}
	if c.Dest > DestA|DestD|DestM {
		return 0, fmt.Errorf("invalid dest bits %03b", uint8(c.Dest))
	}
	return 0b111<<13 | comp<<6 | uint16(c.Dest)<<3 | jump, nil
}

// Encode produces the machine word for inst. Symbolic A-instructions are
// resolved through symbols; labels and comments have no encoding.
func Encode(inst Instruction, symbols map[string]uint16) (uint16, error) {
	switch in := inst.(type) {
	case AInstr:
		if in.Symbol == "" {
			if in.Value > config.MaxAddress {
				return 0, fmt.Errorf("address %d out of range 0..%d", in.Value, config.MaxAddress)
			}
			return in.Value, nil
		}
		addr, ok := symbols[in.Symbol]
		if !ok {
			return 0, fmt.Errorf("unresolved symbol '%s'", in.Symbol)
		}
		return addr, nil
	case CInstr:
		return in.Encode()
	}
	return 0, fmt.Errorf("%T has no machine encoding", inst)
}

// Format renders words as the textual .hack format, one 16-character
// binary line per word.
func Format(words []uint16) string {
	var sb strings.Builder
	sb.Grow(len(words) * 17)
	for _, w := range words {
		fmt.Fprintf(&sb, "%016b\n", w)
	}
	return sb.String()
}

// Render writes instructions as assembly source. Labels sit at the left
// margin and everything else is indented.
func Render(insts []Instruction) string {
	var sb strings.Builder
	for _, inst := range insts {
		if _, ok := inst.(LabelDef); !ok {
			sb.WriteString("    ")
		}
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
